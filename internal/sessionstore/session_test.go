package sessionstore

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestSession(t *testing.T) (*Session, *MemoryStore) {
	t.Helper()
	sealer, err := NewSealer(testSecret)
	require.NoError(t, err)
	store := NewMemoryStore()
	return New("session-1", store, sealer), store
}

func TestSaveLogin_EmployeeClearsAdminNamespace(t *testing.T) {
	ctx := context.Background()
	sess, store := newTestSession(t)

	require.NoError(t, sess.SaveLogin(ctx, Login{
		AccessToken: "admin-token", RefreshToken: "admin-refresh",
		User: User{ID: "1", Email: "owner@example.com"},
	}))
	require.NoError(t, sess.SaveLogin(ctx, Login{
		AccessToken: "emp-token", RefreshToken: "emp-refresh",
		User: User{ID: "2", Email: "cashier@example.com"}, IsEmployee: true,
	}))

	for _, k := range NamespaceAdmin.Keys() {
		_, ok, err := store.Get(ctx, "session-1", k)
		require.NoError(t, err)
		assert.False(t, ok, "admin key %s should be cleared", k)
	}

	p, err := sess.Principal(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, NamespaceEmployee, p.Namespace)
	assert.Equal(t, "emp-token", p.AccessToken)
	assert.True(t, p.IsEmployee())
	assert.True(t, p.User.IsEmployee)
}

func TestSaveLogin_AdminClearsEmployeeNamespace(t *testing.T) {
	ctx := context.Background()
	sess, store := newTestSession(t)

	require.NoError(t, sess.SaveLogin(ctx, Login{AccessToken: "emp", IsEmployee: true}))
	require.NoError(t, sess.SaveLogin(ctx, Login{AccessToken: "admin"}))

	_, ok, _ := store.Get(ctx, "session-1", NamespaceEmployee.Key(FieldAccessToken))
	assert.False(t, ok)

	p, err := sess.Principal(ctx)
	require.NoError(t, err)
	assert.Equal(t, NamespaceAdmin, p.Namespace)
	assert.False(t, p.IsEmployee())
}

func TestPrincipal_NoneWhenTokenless(t *testing.T) {
	sess, _ := newTestSession(t)
	p, err := sess.Principal(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLogout_RemovesBothNamespacesButKeepsFlash(t *testing.T) {
	ctx := context.Background()
	sess, store := newTestSession(t)

	require.NoError(t, sess.SaveLogin(ctx, Login{AccessToken: "a", RememberMe: true, Credentials: &Credentials{Email: "a@b.c", Password: "pw"}}))
	require.NoError(t, store.Set(ctx, "session-1", NamespaceEmployee.Key(FieldAccessToken), []byte(`"stray"`)))
	require.NoError(t, sess.SetManualTransactionID(ctx, "tx-9"))
	require.NoError(t, sess.SetFlash(ctx, "signed out"))

	require.NoError(t, sess.Logout(ctx))

	for _, k := range append(PrincipalKeys(), KeyManualTransactionID, KeyShowWelcomeToast) {
		_, ok, err := store.Get(ctx, "session-1", k)
		require.NoError(t, err)
		assert.False(t, ok, "key %s should be cleared", k)
	}
	msg, err := sess.TakeFlash(ctx)
	require.NoError(t, err)
	assert.Equal(t, "signed out", msg)
}

func TestRememberedCredentials_SealedAtRest(t *testing.T) {
	ctx := context.Background()
	sess, store := newTestSession(t)

	require.NoError(t, sess.SaveLogin(ctx, Login{
		AccessToken: "a",
		RememberMe:  true,
		Credentials: &Credentials{Email: "owner@example.com", Password: "hunter22"},
	}))

	raw, ok, err := store.Get(ctx, "session-1", NamespaceAdmin.Key(FieldRememberCredentials))
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, strings.Contains(string(raw), "hunter22"))

	creds, err := sess.RememberedCredentials(ctx)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "owner@example.com", creds.Email)
	assert.Equal(t, "hunter22", creds.Password)
}

func TestOneShotFlags(t *testing.T) {
	ctx := context.Background()
	sess, _ := newTestSession(t)
	require.NoError(t, sess.SaveLogin(ctx, Login{AccessToken: "a"}))

	show, err := sess.TakeWelcomeToast(ctx)
	require.NoError(t, err)
	assert.True(t, show)

	show, err = sess.TakeWelcomeToast(ctx)
	require.NoError(t, err)
	assert.False(t, show)
}

func TestExpireIfIdle(t *testing.T) {
	ctx := context.Background()
	sess, _ := newTestSession(t)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	expired, err := sess.ExpireIfIdle(ctx, start, 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, expired)

	require.NoError(t, sess.SaveLogin(ctx, Login{AccessToken: "a"}))

	expired, err = sess.ExpireIfIdle(ctx, start.Add(10*time.Minute), 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, expired)

	expired, err = sess.ExpireIfIdle(ctx, start.Add(41*time.Minute), 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, expired)

	p, err := sess.Principal(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestExpireIfIdle_KeepsRememberedCredentials(t *testing.T) {
	ctx := context.Background()
	sess, _ := newTestSession(t)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, sess.SaveLogin(ctx, Login{
		AccessToken: "a",
		RememberMe:  true,
		Credentials: &Credentials{Email: "owner@example.com", Password: "hunter22"},
	}))
	_, err := sess.ExpireIfIdle(ctx, start, time.Minute)
	require.NoError(t, err)

	expired, err := sess.ExpireIfIdle(ctx, start.Add(time.Hour), time.Minute)
	require.NoError(t, err)
	require.True(t, expired)

	p, err := sess.Principal(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)

	creds, err := sess.RememberedCredentials(ctx)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "owner@example.com", creds.Email)

	require.NoError(t, sess.Logout(ctx))
	creds, err = sess.RememberedCredentials(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestPrincipalSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-42"}).SignedString([]byte("backend-key"))
	require.NoError(t, err)

	assert.Equal(t, "user-42", (&Principal{AccessToken: token}).Subject())
	assert.Equal(t, "", (&Principal{AccessToken: "opaque"}).Subject())
	assert.Equal(t, "", (*Principal)(nil).Subject())

	assert.True(t, (&Principal{AccessToken: token}).LogAttr().Equal(slog.String("principal", "user-42")))
	assert.True(t, (&Principal{AccessToken: "opaque"}).LogAttr().Equal(slog.Attr{}))
}

func TestSealer(t *testing.T) {
	_, err := NewSealer("abc")
	assert.Error(t, err)

	s, err := NewSealer(testSecret)
	require.NoError(t, err)
	sealed, err := s.Seal([]byte("payload"))
	require.NoError(t, err)

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plain))

	tampered := []byte(sealed)
	if tampered[0] == 'A' {
		tampered[0] = 'B'
	} else {
		tampered[0] = 'A'
	}
	_, err = s.Open(string(tampered))
	assert.ErrorIs(t, err, ErrInvalidSealed)
}

func TestRememberMe(t *testing.T) {
	ctx := context.Background()
	sess, _ := newTestSession(t)

	remember, err := sess.RememberMe(ctx)
	require.NoError(t, err)
	assert.False(t, remember)

	require.NoError(t, sess.SaveLogin(ctx, Login{
		AccessToken: "emp",
		IsEmployee:  true,
		RememberMe:  true,
		Credentials: &Credentials{Email: "cashier@example.com", Password: "pw"},
	}))
	remember, err = sess.RememberMe(ctx)
	require.NoError(t, err)
	assert.True(t, remember)

	require.NoError(t, sess.SaveLogin(ctx, Login{AccessToken: "admin"}))
	remember, err = sess.RememberMe(ctx)
	require.NoError(t, err)
	assert.False(t, remember)
}

func TestForceLogout_WipesSession(t *testing.T) {
	ctx := context.Background()
	sess, store := newTestSession(t)

	require.NoError(t, sess.SaveLogin(ctx, Login{
		AccessToken: "emp",
		IsEmployee:  true,
		RememberMe:  true,
		Credentials: &Credentials{Email: "cashier@example.com", Password: "pw"},
	}))
	require.NoError(t, sess.SetManualTransactionID(ctx, "9"))
	require.NoError(t, sess.SetFlash(ctx, "hello"))
	require.NoError(t, store.Touch(ctx, sess.ID(), time.Now()))

	require.NoError(t, sess.ForceLogout(ctx))

	keys, err := store.Keys(ctx, sess.ID())
	require.NoError(t, err)
	assert.Empty(t, keys)
	_, ok, err := store.LastSeen(ctx, sess.ID())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpireIfIdle_DropsUnlistedKeys(t *testing.T) {
	ctx := context.Background()
	sess, store := newTestSession(t)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, sess.SaveLogin(ctx, Login{AccessToken: "a"}))
	require.NoError(t, store.Set(ctx, sess.ID(), NamespaceAdmin.Key("legacy"), []byte(`"x"`)))
	_, err := sess.ExpireIfIdle(ctx, start, time.Minute)
	require.NoError(t, err)

	expired, err := sess.ExpireIfIdle(ctx, start.Add(time.Hour), time.Minute)
	require.NoError(t, err)
	require.True(t, expired)

	keys, err := store.Keys(ctx, sess.ID())
	require.NoError(t, err)
	assert.Empty(t, keys)
}
