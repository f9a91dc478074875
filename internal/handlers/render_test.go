package handlers

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/dashboard"},
		{"/orders?page=2", "/orders?page=2"},
		{"//evil.example.com/x", "/dashboard"},
		{"/\\evil.example.com", "/dashboard"},
		{"https://evil.example.com", "/dashboard"},
		{"orders", "/dashboard"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeRedirect(tt.in, "/dashboard"), tt.in)
	}
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 2, seconds(2*time.Second))
	assert.Equal(t, 2, seconds(1500*time.Millisecond))
	assert.Equal(t, 1, seconds(0))
}

func TestPagesRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, pages["login"].ExecuteTemplate(&buf, "login.html", loginPage{
		Title:    "Sign in",
		Error:    `<b>bad</b>`,
		Redirect: "/orders",
	}))
	assert.Contains(t, buf.String(), "&lt;b&gt;bad&lt;/b&gt;")
	assert.Contains(t, buf.String(), `name="redirect" value="/orders"`)

	buf.Reset()
	require.NoError(t, pages["subscribe"].ExecuteTemplate(&buf, "subscribe.html", subscribePage{
		Title:           "Subscribe",
		Amount:          "1000",
		Currency:        "NPR",
		Employee:        true,
		EmployeeMessage: "owners only",
	}))
	assert.Contains(t, buf.String(), "owners only")
	assert.NotContains(t, buf.String(), `action="/subscribe/pay"`)
	assert.NotContains(t, buf.String(), "http-equiv=\"refresh\"")

	buf.Reset()
	require.NoError(t, pages["pending"].ExecuteTemplate(&buf, "pending.html", pendingPage{
		Title:          "Payment pending",
		HasSubmittedAt: true,
		Elapsed:        "01:30",
		EventsURL:      "/payment/pending/events?since=1",
		ElapsedEvent:   "elapsed",
		GrantedEvent:   "granted",
		SupportEmail:   supportEmail,
	}))
	assert.Contains(t, buf.String(), `id="elapsed">01:30<`)
	assert.Contains(t, buf.String(), "beforeunload")
}
