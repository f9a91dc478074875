package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSealer = errors.New("remember-me credentials require a session secret")

// User is the serialized user object returned by the backend at login.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	IsEmployee   bool   `json:"is_employee"`
	RestaurantID string `json:"restaurant_id,omitempty"`
}

// Credentials are kept only when the user ticks "remember me".
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Principal is the authenticated admin or employee bound to a session.
type Principal struct {
	Namespace    Namespace
	AccessToken  string
	RefreshToken string
	User         *User
}

// IsEmployee reports whether the stored user record marks an employee.
func (p *Principal) IsEmployee() bool {
	if p == nil {
		return false
	}
	if p.User != nil && p.User.IsEmployee {
		return true
	}
	return p.Namespace == NamespaceEmployee
}

// Subject reads the sub claim of the access token without verifying it. The
// backend is the only party holding the signing key; the value is a log label.
func (p *Principal) Subject() string {
	if p == nil || p.AccessToken == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(p.AccessToken, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

// LogAttr labels a log line with the principal's subject. It is empty, and
// dropped by slog handlers, when the token carries no subject.
func (p *Principal) LogAttr() slog.Attr {
	if sub := p.Subject(); sub != "" {
		return slog.String("principal", sub)
	}
	return slog.Attr{}
}

// Login is what a successful backend login writes into the session.
type Login struct {
	AccessToken  string
	RefreshToken string
	User         User
	IsEmployee   bool
	RememberMe   bool
	Credentials  *Credentials
}

// Session is the typed view over one browser session's stored keys.
type Session struct {
	id     string
	store  Store
	sealer *Sealer
}

func New(id string, store Store, sealer *Sealer) *Session {
	return &Session{id: id, store: store, sealer: sealer}
}

func (s *Session) ID() string { return s.id }

func (s *Session) getJSON(ctx context.Context, key Key, out any) (bool, error) {
	raw, ok, err := s.store.Get(ctx, s.id, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Session) setJSON(ctx context.Context, key Key, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.store.Set(ctx, s.id, key, raw)
}

// Principal returns the stored principal, or nil when no namespace holds an
// access token.
func (s *Session) Principal(ctx context.Context) (*Principal, error) {
	for _, ns := range Namespaces {
		var token string
		ok, err := s.getJSON(ctx, ns.Key(FieldAccessToken), &token)
		if err != nil {
			return nil, err
		}
		if !ok || token == "" {
			continue
		}

		p := &Principal{Namespace: ns, AccessToken: token}
		if _, err := s.getJSON(ctx, ns.Key(FieldRefreshToken), &p.RefreshToken); err != nil {
			return nil, err
		}
		var user User
		if ok, err := s.getJSON(ctx, ns.Key(FieldUser), &user); err != nil {
			return nil, err
		} else if ok {
			p.User = &user
		}
		return p, nil
	}
	return nil, nil
}

// SaveLogin writes a new login into the namespace chosen by the role flag and
// clears the other namespace.
func (s *Session) SaveLogin(ctx context.Context, login Login) error {
	ns := NamespaceAdmin
	if login.IsEmployee {
		ns = NamespaceEmployee
	}
	login.User.IsEmployee = login.IsEmployee

	if err := s.store.ClearNamespace(ctx, s.id, ns.Other()); err != nil {
		return err
	}
	if err := s.setJSON(ctx, ns.Key(FieldAccessToken), login.AccessToken); err != nil {
		return err
	}
	if err := s.setJSON(ctx, ns.Key(FieldRefreshToken), login.RefreshToken); err != nil {
		return err
	}
	if err := s.setJSON(ctx, ns.Key(FieldUser), login.User); err != nil {
		return err
	}

	if login.RememberMe && login.Credentials != nil {
		if s.sealer == nil {
			return ErrNoSealer
		}
		plain, err := json.Marshal(login.Credentials)
		if err != nil {
			return err
		}
		sealed, err := s.sealer.Seal(plain)
		if err != nil {
			return err
		}
		if err := s.setJSON(ctx, ns.Key(FieldRememberMe), true); err != nil {
			return err
		}
		if err := s.setJSON(ctx, ns.Key(FieldRememberCredentials), sealed); err != nil {
			return err
		}
	} else {
		if err := s.store.Delete(ctx, s.id, ns.Key(FieldRememberMe), ns.Key(FieldRememberCredentials)); err != nil {
			return err
		}
	}

	return s.setJSON(ctx, KeyShowWelcomeToast, true)
}

// RememberMe reports whether the last login asked to be remembered.
func (s *Session) RememberMe(ctx context.Context) (bool, error) {
	for _, ns := range Namespaces {
		var remember bool
		ok, err := s.getJSON(ctx, ns.Key(FieldRememberMe), &remember)
		if err != nil {
			return false, err
		}
		if ok && remember {
			return true, nil
		}
	}
	return false, nil
}

// RememberedCredentials returns the sealed credentials stored by a
// remember-me login, if any.
func (s *Session) RememberedCredentials(ctx context.Context) (*Credentials, error) {
	if s.sealer == nil {
		return nil, nil
	}
	for _, ns := range Namespaces {
		var sealed string
		ok, err := s.getJSON(ctx, ns.Key(FieldRememberCredentials), &sealed)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		plain, err := s.sealer.Open(sealed)
		if err != nil {
			return nil, err
		}
		var creds Credentials
		if err := json.Unmarshal(plain, &creds); err != nil {
			return nil, err
		}
		return &creds, nil
	}
	return nil, nil
}

// Logout removes every key of both namespaces and the pending manual
// transaction. The flash message survives so a reason can be shown on the
// login page.
func (s *Session) Logout(ctx context.Context) error {
	for _, ns := range Namespaces {
		if err := s.store.ClearNamespace(ctx, s.id, ns); err != nil {
			return err
		}
	}
	return s.store.Delete(ctx, s.id, KeyManualTransactionID, KeyShowWelcomeToast)
}

// ForceLogout wipes the whole session, flash and activity included. Used when
// the backend refuses the principal outright.
func (s *Session) ForceLogout(ctx context.Context) error {
	return s.store.ClearAll(ctx, s.id)
}

// survivesExpiry reports whether key is kept when an idle session expires.
func survivesExpiry(k Key) bool {
	if k == KeyFlash {
		return true
	}
	f, ok := k.Field()
	return ok && (f == FieldRememberMe || f == FieldRememberCredentials)
}

func (s *Session) SetManualTransactionID(ctx context.Context, id string) error {
	return s.setJSON(ctx, KeyManualTransactionID, id)
}

func (s *Session) ManualTransactionID(ctx context.Context) (string, error) {
	var id string
	_, err := s.getJSON(ctx, KeyManualTransactionID, &id)
	return id, err
}

func (s *Session) SetFlash(ctx context.Context, message string) error {
	return s.setJSON(ctx, KeyFlash, message)
}

// TakeFlash returns and clears the one-shot flash message.
func (s *Session) TakeFlash(ctx context.Context) (string, error) {
	var msg string
	ok, err := s.getJSON(ctx, KeyFlash, &msg)
	if err != nil || !ok {
		return "", err
	}
	return msg, s.store.Delete(ctx, s.id, KeyFlash)
}

// TakeWelcomeToast reports whether the welcome toast should be shown, and
// clears the flag.
func (s *Session) TakeWelcomeToast(ctx context.Context) (bool, error) {
	var show bool
	ok, err := s.getJSON(ctx, KeyShowWelcomeToast, &show)
	if err != nil || !ok {
		return false, err
	}
	return show, s.store.Delete(ctx, s.id, KeyShowWelcomeToast)
}

// ExpireIfIdle drops the login when the session was last seen more than
// timeout before now, then records now as the last activity. Remember-me
// credentials survive expiry so the login page can offer them again.
func (s *Session) ExpireIfIdle(ctx context.Context, now time.Time, timeout time.Duration) (bool, error) {
	last, ok, err := s.store.LastSeen(ctx, s.id)
	if err != nil {
		return false, err
	}
	expired := ok && timeout > 0 && now.Sub(last) > timeout
	if expired {
		keys, err := s.store.Keys(ctx, s.id)
		if err != nil {
			return false, err
		}
		var drop []Key
		for _, k := range keys {
			if !survivesExpiry(k) {
				drop = append(drop, k)
			}
		}
		if err := s.store.Delete(ctx, s.id, drop...); err != nil {
			return false, err
		}
	}
	return expired, s.store.Touch(ctx, s.id, now)
}
