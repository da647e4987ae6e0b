package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// User is the backend's representation of an account, cached locally
// alongside the tokens.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Plan      string `json:"plan,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Session holds the stored tokens and cached user for the current login.
type Session struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenExpiry  string `json:"token_expiry,omitempty"` // RFC3339
	User         *User  `json:"user,omitempty"`
}

// Empty reports whether the session holds no tokens.
func (s *Session) Empty() bool {
	return s == nil || (s.AccessToken == "" && s.RefreshToken == "")
}

// Store persists the session as JSON under the data directory with
// restricted permissions.
type Store struct {
	path string
}

// NewStore creates a store writing to <dataDir>/credentials.json.
func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, "credentials.json")}
}

// Path returns the credentials file path.
func (s *Store) Path() string { return s.path }

// Load reads the stored session. Returns an empty session if the file
// doesn't exist.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Session{}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return &sess, nil
}

// Save writes the session with restricted permissions.
func (s *Store) Save(sess *Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling credentials: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// Clear removes the stored session. Missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}
