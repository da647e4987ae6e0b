package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gastondana627/orielfx/internal/api"
)

// PreferencesCache is the local fallback used when the backend is
// unreachable. Implemented by the history database.
type PreferencesCache interface {
	SavePreferences(payload []byte) error
	LoadPreferences() ([]byte, error)
}

// Profile is the backend's user profile representation.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Plan      string `json:"plan,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ProfileUpdate carries the mutable profile fields.
type ProfileUpdate struct {
	Name string `json:"name"`
}

// Preferences are the visualizer settings synced with the backend.
type Preferences struct {
	Theme           string  `json:"theme"`
	Visualizer      string  `json:"visualizer"`
	AudioReactivity float64 `json:"audio_reactivity"`
	ReducedMotion   bool    `json:"reduced_motion"`
}

// DefaultPreferences returns the backend defaults for a new account.
func DefaultPreferences() *Preferences {
	return &Preferences{
		Theme:           "dark",
		Visualizer:      "geometric",
		AudioReactivity: 0.8,
	}
}

// Service exposes the /api/user endpoints.
type Service struct {
	client *api.Client
	cache  PreferencesCache // optional
}

// NewService creates the user service. cache may be nil to disable
// offline preference reads.
func NewService(client *api.Client, cache PreferencesCache) *Service {
	return &Service{client: client, cache: cache}
}

// Profile fetches the current user's profile.
func (s *Service) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := s.client.Do(ctx, http.MethodGet, "/api/user/profile", nil, &p); err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	return &p, nil
}

// UpdateProfile applies the given profile changes.
func (s *Service) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*Profile, error) {
	var p Profile
	if err := s.client.Do(ctx, http.MethodPut, "/api/user/profile", upd, &p); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return &p, nil
}

// Preferences fetches the current preferences and refreshes the local
// cache. fromCache is true when the backend was unreachable and the
// cached copy was served instead.
func (s *Service) Preferences(ctx context.Context) (prefs *Preferences, fromCache bool, err error) {
	var p Preferences
	err = s.client.Do(ctx, http.MethodGet, "/api/user/preferences", nil, &p)
	if err == nil {
		s.cachePreferences(&p)
		return &p, false, nil
	}

	// Serve the cached copy only for availability failures, not for auth
	// or other client errors.
	if s.cache == nil || !(api.IsRetryable(err) || isCircuitOpen(err)) {
		return nil, false, fmt.Errorf("fetching preferences: %w", err)
	}

	payload, cacheErr := s.cache.LoadPreferences()
	if cacheErr != nil {
		return nil, false, fmt.Errorf("fetching preferences: %w", err)
	}
	var cached Preferences
	if jsonErr := json.Unmarshal(payload, &cached); jsonErr != nil {
		return nil, false, fmt.Errorf("decoding cached preferences: %w", jsonErr)
	}
	return &cached, true, nil
}

// UpdatePreferences pushes new preferences and refreshes the cache.
func (s *Service) UpdatePreferences(ctx context.Context, prefs *Preferences) error {
	if err := s.client.Do(ctx, http.MethodPut, "/api/user/preferences", prefs, nil); err != nil {
		return fmt.Errorf("updating preferences: %w", err)
	}
	s.cachePreferences(prefs)
	return nil
}

func (s *Service) cachePreferences(p *Preferences) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	// Best-effort: a cache write failure never fails the call.
	_ = s.cache.SavePreferences(payload)
}

func isCircuitOpen(err error) bool {
	return errors.Is(err, api.ErrCircuitOpen)
}
