package devserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// account is one registered user held in memory.
type account struct {
	ID        string
	Email     string
	Name      string
	Plan      string
	CreatedAt time.Time
	Password  string
	Prefs     json.RawMessage
}

// grant maps an issued token to its account.
type grant struct {
	userID    string
	refresh   bool
	expiresAt time.Time
}

// defaultPrefs mirrors the defaults a new account gets from the real backend.
var defaultPrefs = json.RawMessage(`{"theme":"dark","visualizer":"geometric","audio_reactivity":0.8,"reduced_motion":false}`)

// state is the in-memory backing store. Everything is lost on restart,
// which is the point of a dev stub.
type state struct {
	mu       sync.Mutex
	users    map[string]*account // keyed by email
	tokens   map[string]grant
	tokenTTL time.Duration
}

func newState(tokenTTL time.Duration) *state {
	return &state{
		users:    make(map[string]*account),
		tokens:   make(map[string]grant),
		tokenTTL: tokenTTL,
	}
}

// createAccount registers a new user. Returns false if the email is taken.
func (s *state) createAccount(email, password, name string) (*account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return nil, false
	}
	acct := &account{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Plan:      "free",
		CreatedAt: time.Now().UTC(),
		Password:  password,
		Prefs:     defaultPrefs,
	}
	s.users[email] = acct
	return acct, true
}

// authenticate checks the password for an email.
func (s *state) authenticate(email, password string) (*account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.users[email]
	if !ok || acct.Password != password {
		return nil, false
	}
	return acct, true
}

// issuePair mints an access/refresh token pair for an account.
func (s *state) issuePair(userID string) (access, refresh string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	access = uuid.NewString()
	refresh = uuid.NewString()
	now := time.Now()
	s.tokens[access] = grant{userID: userID, expiresAt: now.Add(s.tokenTTL)}
	// Refresh tokens live much longer than access tokens.
	s.tokens[refresh] = grant{userID: userID, refresh: true, expiresAt: now.Add(30 * 24 * time.Hour)}
	return access, refresh, s.tokenTTL
}

// redeem validates a token of the given kind and returns its account.
// Redeeming a refresh token revokes it (rotation).
func (s *state) redeem(token string, wantRefresh bool) (*account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.tokens[token]
	if !ok || g.refresh != wantRefresh || time.Now().After(g.expiresAt) {
		return nil, false
	}
	if wantRefresh {
		delete(s.tokens, token)
	}
	acct, ok := s.accountByID(g.userID)
	return acct, ok
}

// accountByID looks up an account. Caller holds s.mu.
func (s *state) accountByID(id string) (*account, bool) {
	for _, acct := range s.users {
		if acct.ID == id {
			return acct, true
		}
	}
	return nil, false
}
