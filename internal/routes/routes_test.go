package routes

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/access"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/backend"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/payment"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/sessionstore"
)

const (
	cookieName = "portal_session"
	ownerToken = "tok-owner"
	staffToken = "tok-staff"
)

// fakeBackend stands in for the restaurant REST backend.
type fakeBackend struct {
	mu            sync.Mutex
	access        map[string]backend.AccessResponse
	grantAfter    int
	accessCalls   atomic.Int32
	initiateCalls atomic.Int32
	initiateErr   map[string]any
	verifyQuery   url.Values
	refundCalls   atomic.Int32
	submittedAt   time.Time
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	token := func(r *http.Request) string {
		return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		var req backend.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
			return
		}
		staff := strings.HasPrefix(req.Email, "staff")
		tok := ownerToken
		if staff {
			tok = staffToken
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access":      tok,
			"refresh":     "refresh-" + tok,
			"user":        map[string]any{"id": 7, "email": req.Email},
			"is_employee": staff,
		})
	})
	mux.HandleFunc("/api/billing/subscription/access/", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.accessCalls.Add(1))
		f.mu.Lock()
		resp := f.access[token(r)]
		if f.grantAfter > 0 && n >= f.grantAfter {
			resp = backend.AccessResponse{HasAccess: true}
		}
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, resp)
	})
	mux.HandleFunc("/api/billing/subscription/status/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "expired"})
	})
	mux.HandleFunc("/api/billing/payment/initiate/", func(w http.ResponseWriter, r *http.Request) {
		f.initiateCalls.Add(1)
		f.mu.Lock()
		initErr := f.initiateErr
		f.mu.Unlock()
		if initErr != nil {
			writeJSON(w, http.StatusBadRequest, initErr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"esewa_url": "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
			"message":   "ok",
			"payment_data": map[string]any{
				"amount":         "1000",
				"total_amount":   "1000",
				"product_code":   "EPAYTEST",
				"message":        "ok",
				"esewa_url":      "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
				"transaction_id": "tx-1",
			},
		})
	})
	mux.HandleFunc("/api/billing/payment/manual/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeJSON(w, http.StatusCreated, map[string]any{"transaction_id": 9})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"transaction_id":       9,
			"status":               "pending",
			"payment_submitted_at": f.submittedAt.Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/api/billing/payment/verify/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.verifyQuery = r.URL.Query()
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("/api/billing/payment/history/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
	})
	mux.HandleFunc("/api/billing/billing/history/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 41, "amount": "1000.00", "paid": true, "created_at": "2026-03-01T00:00:00Z"}})
	})
	mux.HandleFunc("/api/billing/refund-request/", func(w http.ResponseWriter, r *http.Request) {
		f.refundCalls.Add(1)
		writeJSON(w, http.StatusCreated, map[string]any{"id": 3, "billing_record_id": 41, "reason": "double charge", "status": "pending", "created_at": "2026-03-02T00:00:00Z"})
	})
	return mux
}

func (f *fakeBackend) setInitiateError(body map[string]any) {
	f.mu.Lock()
	f.initiateErr = body
	f.mu.Unlock()
}

type portal struct {
	app     *fiber.App
	backend *fakeBackend
}

func newPortal(t *testing.T) *portal {
	t.Helper()

	fb := &fakeBackend{
		access:      map[string]backend.AccessResponse{},
		submittedAt: time.Now().Add(-90 * time.Second),
	}
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>spa</html>"), 0o644))

	sealer, err := sessionstore.NewSealer(strings.Repeat("ab", 32))
	require.NoError(t, err)

	client := backend.NewClient(srv.URL, 2*time.Second)
	plan := payment.Plan{Amount: "1000", Currency: "NPR"}
	app := fiber.New()
	Setup(app, staticDir,
		middleware.SessionConfig{
			Store:       sessionstore.NewMemoryStore(),
			Sealer:      sealer,
			CookieName:  cookieName,
			IdleTimeout: 30 * time.Minute,
		},
		access.NewChecker(client),
		handlers.NewAuthHandler(client),
		handlers.NewHealthHandler("memory"),
		handlers.NewSessionHandler(),
		handlers.NewSubscribeHandler(client, payment.NewInitiator(client, plan, 2*time.Second, nil), plan),
		handlers.NewPendingHandler(client, 50*time.Millisecond, 20*time.Millisecond),
		handlers.NewPaymentCallbackHandler(client),
		handlers.NewBillingHandler(client),
	)
	return &portal{app: app, backend: fb}
}

func (p *portal) do(t *testing.T, req *http.Request, session string) *http.Response {
	t.Helper()
	if session != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: session})
	}
	resp, err := p.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func (p *portal) get(t *testing.T, target, session string) *http.Response {
	return p.do(t, httptest.NewRequest(http.MethodGet, target, nil), session)
}

func (p *portal) postForm(t *testing.T, target, session string, form url.Values) *http.Response {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.do(t, req, session)
}

func (p *portal) postJSON(t *testing.T, target, session string, body any) *http.Response {
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return p.do(t, req, session)
}

// login signs in and returns the session cookie value.
func (p *portal) login(t *testing.T, email string) string {
	t.Helper()
	resp := p.postForm(t, "/login", "", url.Values{"email": {email}, "password": {"pw"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			return c.Value
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func (p *portal) setAccess(token string, resp backend.AccessResponse) {
	p.backend.mu.Lock()
	p.backend.access[token] = resp
	p.backend.mu.Unlock()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestLoginThenGatedPage(t *testing.T) {
	p := newPortal(t)

	resp := p.get(t, "/dashboard", "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?redirect=%2Fdashboard", resp.Header.Get("Location"))

	resp = p.postForm(t, "/login", "", url.Values{
		"email":    {"owner@example.com"},
		"password": {"pw"},
		"redirect": {"/menu?tab=drinks"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/menu?tab=drinks", resp.Header.Get("Location"))

	session := p.login(t, "owner@example.com")
	p.setAccess(ownerToken, backend.AccessResponse{HasAccess: true})

	resp = p.get(t, "/dashboard", session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "spa")

	resp = p.get(t, "/portal/api/session", session)
	var sess map[string]any
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &sess))
	assert.Equal(t, true, sess["authenticated"])
	assert.Equal(t, true, sess["show_welcome_toast"])

	resp = p.get(t, "/portal/api/session", session)
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &sess))
	assert.Equal(t, false, sess["show_welcome_toast"])
}

func TestLoginRejected(t *testing.T) {
	p := newPortal(t)

	resp := p.postForm(t, "/login", "", url.Values{"email": {"owner@example.com"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Invalid email or password.")

	resp = p.postJSON(t, "/login", "", map[string]string{"email": "owner@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":true,"message":"Email and password are required."}`, readBody(t, resp))
}

func TestLoginIgnoresOffsiteRedirect(t *testing.T) {
	p := newPortal(t)

	for _, target := range []string{"//evil.example.com", "https://evil.example.com", "/\\evil.example.com"} {
		resp := p.postForm(t, "/login", "", url.Values{
			"email":    {"owner@example.com"},
			"password": {"pw"},
			"redirect": {target},
		})
		assert.Equal(t, "/dashboard", resp.Header.Get("Location"), target)
	}
}

func TestEmployeeDeniedLogsOut(t *testing.T) {
	p := newPortal(t)
	session := p.login(t, "staff@example.com")
	p.setAccess(staffToken, backend.AccessResponse{UserType: backend.UserTypeEmployee, Message: "Restaurant subscription inactive"})

	resp := p.get(t, "/orders", session)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?error="+url.QueryEscape("Restaurant subscription inactive"), resp.Header.Get("Location"))

	resp = p.get(t, "/portal/api/session", session)
	assert.JSONEq(t, `{"authenticated":false,"show_welcome_toast":false}`, readBody(t, resp))
}

func TestPayRendersGatewayForm(t *testing.T) {
	p := newPortal(t)
	session := p.login(t, "owner@example.com")

	resp := p.postForm(t, "/subscribe/pay", session, url.Values{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `action="https://rc-epay.esewa.com.np/api/epay/main/v2/form"`)
	assert.Contains(t, body, `name="amount" value="1000"`)
	assert.Contains(t, body, `name="product_code"`)
	assert.NotContains(t, body, `name="message"`)
	assert.NotContains(t, body, `name="transaction_id"`)
}

func TestPayBlockedForEmployees(t *testing.T) {
	p := newPortal(t)
	session := p.login(t, "staff@example.com")

	resp := p.postForm(t, "/subscribe/pay", session, url.Values{})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Only the restaurant owner")
	assert.Zero(t, p.backend.initiateCalls.Load())
}

func TestPayAlreadyActive(t *testing.T) {
	p := newPortal(t)
	p.backend.setInitiateError(map[string]any{"error": "subscription_already_active", "message": "Already subscribed"})
	session := p.login(t, "owner@example.com")

	resp := p.postForm(t, "/subscribe/pay", session, url.Values{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Already subscribed")
	assert.Contains(t, body, `content="2;url=/dashboard"`)
}

func TestPayUnknownError(t *testing.T) {
	p := newPortal(t)
	p.backend.setInitiateError(map[string]any{"error": "gateway_timeout"})
	session := p.login(t, "owner@example.com")

	resp := p.postForm(t, "/subscribe/pay", session, url.Values{})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/subscribe?error="+url.QueryEscape(payment.GenericFailureMessage), resp.Header.Get("Location"))
}

func TestManualPaymentPendingFlow(t *testing.T) {
	p := newPortal(t)
	session := p.login(t, "owner@example.com")
	p.setAccess(ownerToken, backend.AccessResponse{SubscriptionStatus: backend.StatePendingPayment})

	resp := p.postForm(t, "/subscribe/manual", session, url.Values{"reference_number": {""}})
	assert.Contains(t, resp.Header.Get("Location"), "/subscribe?error=")

	resp = p.postForm(t, "/subscribe/manual", session, url.Values{"reference_number": {"REF-123"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/payment/pending", resp.Header.Get("Location"))

	resp = p.get(t, "/dashboard", session)
	assert.Equal(t, "/payment/pending", resp.Header.Get("Location"))

	resp = p.get(t, "/payment/pending", session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := readBody(t, resp)
	assert.Contains(t, page, "01:3")
	assert.Contains(t, page, "beforeunload")
	assert.Contains(t, page, "/payment/pending/events?since=")

	since := p.backend.submittedAt.UnixMilli()
	p.backend.mu.Lock()
	p.backend.grantAfter = int(p.backend.accessCalls.Load()) + 3
	p.backend.mu.Unlock()

	resp = p.get(t, "/payment/pending/events?since="+strconv.FormatInt(since, 10), session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	stream := readBody(t, resp)
	assert.Contains(t, stream, "event: elapsed\ndata: 01:3")
	assert.True(t, strings.HasSuffix(stream, "event: granted\ndata: /dashboard\n\n"))
	assert.Equal(t, 1, strings.Count(stream, "event: granted"))

	resp = p.get(t, "/portal/api/session", session)
	assert.Contains(t, readBody(t, resp), "Payment confirmed")
}

func TestPendingEventsStopPollingAfterDisconnect(t *testing.T) {
	p := newPortal(t)
	session := p.login(t, "owner@example.com")
	p.setAccess(ownerToken, backend.AccessResponse{SubscriptionStatus: backend.StatePendingPayment})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = p.app.Listener(ln) }()
	t.Cleanup(func() { _ = p.app.ShutdownWithTimeout(time.Second) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+ln.Addr().String()+"/payment/pending/events", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: session})

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Without a submission time the stream only carries heartbeats.
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", line)

	started := p.backend.accessCalls.Load()
	require.Eventually(t, func() bool {
		return p.backend.accessCalls.Load() >= started+2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	_ = resp.Body.Close()

	last := int32(-1)
	require.Eventually(t, func() bool {
		n := p.backend.accessCalls.Load()
		settled := n == last
		last = n
		return settled
	}, 3*time.Second, 200*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, last, p.backend.accessCalls.Load(), "backend still polled after the client left")
}

func TestPendingEventsRequireLogin(t *testing.T) {
	p := newPortal(t)
	resp := p.get(t, "/payment/pending/events", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBillingReadsFailOpen(t *testing.T) {
	p := newPortal(t)

	resp := p.get(t, "/portal/api/billing/billing-history", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	session := p.login(t, "owner@example.com")

	resp = p.get(t, "/portal/api/billing/payment-history", session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"items":[],"error":"Could not load billing data. Please try again later."}`, readBody(t, resp))

	resp = p.get(t, "/portal/api/billing/billing-history", session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Items []backend.BillingRecord `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, backend.FlexibleID("41"), list.Items[0].ID)
}

func TestRefundRequestValidation(t *testing.T) {
	p := newPortal(t)
	session := p.login(t, "owner@example.com")

	resp := p.postJSON(t, "/portal/api/billing/refund-requests", session, map[string]string{"billing_record_id": "41", "reason": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, p.backend.refundCalls.Load())

	resp = p.postJSON(t, "/portal/api/billing/refund-requests", session, map[string]string{"billing_record_id": "41", "reason": "double charge"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created backend.RefundRequest
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &created))
	assert.Equal(t, backend.FlexibleID("3"), created.ID)
	assert.Equal(t, backend.FlexibleID("41"), created.BillingRecordID)
	assert.Equal(t, int32(1), p.backend.refundCalls.Load())

	staff := p.login(t, "staff@example.com")
	resp = p.get(t, "/portal/api/billing/refund-requests?all=true", staff)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPaymentCallbacks(t *testing.T) {
	p := newPortal(t)
	session := p.login(t, "owner@example.com")

	resp := p.get(t, "/payment/success?data=eyJzdGF0dXMiOiJDT01QTEVURSJ9", session)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	p.backend.mu.Lock()
	assert.Equal(t, "eyJzdGF0dXMiOiJDT01QTEVURSJ9", p.backend.verifyQuery.Get("data"))
	p.backend.mu.Unlock()

	resp = p.get(t, "/payment/failure", session)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/subscribe?error="))
}

func TestLogout(t *testing.T) {
	p := newPortal(t)
	session := p.login(t, "owner@example.com")

	resp := p.postForm(t, "/logout", session, url.Values{})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = p.get(t, "/portal/api/billing/billing-history", session)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	p := newPortal(t)
	resp := p.get(t, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"store":"memory"`)
	assert.Empty(t, resp.Cookies())
}
