package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gastondana627/orielfx/internal/api"
)

// expirySkew is how close to expiry the access token may get before Token
// refreshes it proactively instead of waiting for a 401.
const expirySkew = 30 * time.Second

// tokenResponse is the shape of the login/register/refresh responses.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
	User         *User  `json:"user,omitempty"`
}

// StatusResponse is the /api/auth/status response.
type StatusResponse struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
}

// Manager owns the session lifecycle: register, login, refresh, logout.
// It implements api.TokenSource; all refreshes are serialized through a
// single-flight group, so any number of concurrent 401s produce exactly
// one refresh request.
type Manager struct {
	client *api.Client
	store  *Store

	mu      sync.Mutex
	session *Session

	sf  singleflight.Group
	now func() time.Time
}

// NewManager loads the stored session and wires itself into the client as
// its token source.
func NewManager(client *api.Client, store *Store) (*Manager, error) {
	sess, err := store.Load()
	if err != nil {
		return nil, err
	}
	m := &Manager{
		client:  client,
		store:   store,
		session: sess,
		now:     time.Now,
	}
	client.SetTokenSource(m)
	return m, nil
}

// Login authenticates with the backend and persists the session.
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	req := map[string]string{"email": email, "password": password}
	var resp tokenResponse
	if err := m.client.DoPublic(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := m.adopt(&resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Register creates an account and persists the returned session.
func (m *Manager) Register(ctx context.Context, email, password, name string) (*User, error) {
	req := map[string]string{"email": email, "password": password, "name": name}
	var resp tokenResponse
	if err := m.client.DoPublic(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if err := m.adopt(&resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Logout discards the session locally. The backend keeps no server-side
// session state for this client.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.session = &Session{}
	m.mu.Unlock()
	return m.store.Clear()
}

// Status asks the backend whether the current token is valid.
func (m *Manager) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := m.client.Do(ctx, http.MethodGet, "/api/auth/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("auth status: %w", err)
	}
	return &resp, nil
}

// CurrentUser returns the locally cached user, if logged in.
func (m *Manager) CurrentUser() (*User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Empty() || m.session.User == nil {
		return nil, false
	}
	u := *m.session.User
	return &u, true
}

// Authenticated reports whether a session is stored.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.session.Empty()
}

// Token implements api.TokenSource. It refreshes proactively when the
// access token is within the expiry skew window. If that refresh fails
// transiently while the stored token has not actually expired yet, the
// stored token is used anyway.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.session.Empty() {
		m.mu.Unlock()
		return "", api.ErrNotAuthenticated
	}
	tok := m.session.AccessToken
	expiry := m.session.TokenExpiry
	expiring := m.expiringLocked()
	canRefresh := m.session.RefreshToken != ""
	m.mu.Unlock()

	if tok != "" && (!expiring || !canRefresh) {
		return tok, nil
	}

	fresh, err := m.Refresh(ctx)
	if err != nil {
		if tok != "" && !api.IsAuthError(err) && notExpired(expiry, m.now()) {
			return tok, nil
		}
		return "", err
	}
	return fresh, nil
}

// notExpired reports whether the RFC3339 expiry lies strictly in the
// future, without the skew window applied.
func notExpired(expiry string, now time.Time) bool {
	if expiry == "" {
		return false
	}
	exp, err := time.Parse(time.RFC3339, expiry)
	return err == nil && now.Before(exp)
}

// expiringLocked reports whether the access token is missing, unparseable
// or inside the skew window. Caller holds m.mu.
func (m *Manager) expiringLocked() bool {
	if m.session.AccessToken == "" {
		return true
	}
	if m.session.TokenExpiry == "" {
		return false
	}
	exp, err := time.Parse(time.RFC3339, m.session.TokenExpiry)
	if err != nil {
		return false
	}
	return m.now().Add(expirySkew).After(exp)
}

// Refresh implements api.TokenSource. Concurrent callers share one
// in-flight refresh request; a 401 from the refresh endpoint is terminal
// and clears the session.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	tok, err, _ := m.sf.Do("refresh", func() (any, error) {
		return m.refreshOnce(ctx)
	})
	if err != nil {
		return "", err
	}
	return tok.(string), nil
}

func (m *Manager) refreshOnce(ctx context.Context) (string, error) {
	m.mu.Lock()
	refreshToken := m.session.RefreshToken
	m.mu.Unlock()

	if refreshToken == "" {
		return "", api.ErrNotAuthenticated
	}

	req := map[string]string{"refresh_token": refreshToken}
	var resp tokenResponse
	if err := m.client.DoPublic(ctx, http.MethodPost, "/api/auth/refresh", req, &resp); err != nil {
		if api.IsAuthError(err) {
			// Refresh token rejected: the session is dead.
			m.mu.Lock()
			m.session = &Session{}
			m.mu.Unlock()
			if cerr := m.store.Clear(); cerr != nil {
				return "", fmt.Errorf("refresh rejected, clearing session: %w", cerr)
			}
		}
		return "", fmt.Errorf("refresh: %w", err)
	}

	if err := m.adopt(&resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// adopt installs a token response as the current session and persists it.
// The refresh token and user are kept from the previous session when the
// response omits them.
func (m *Manager) adopt(resp *tokenResponse) error {
	m.mu.Lock()
	sess := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}
	if sess.RefreshToken == "" {
		sess.RefreshToken = m.session.RefreshToken
	}
	if sess.User == nil {
		sess.User = m.session.User
	}
	if resp.ExpiresIn > 0 {
		sess.TokenExpiry = m.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Format(time.RFC3339)
	}
	m.session = sess
	m.mu.Unlock()

	return m.store.Save(sess)
}
