package auth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreLoadMissingFile(t *testing.T) {
	s := NewStore(t.TempDir())

	sess, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !sess.Empty() {
		t.Errorf("expected empty session, got %+v", sess)
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	original := &Session{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenExpiry:  "2026-01-02T15:04:05Z",
		User:         &User{ID: "u1", Email: "ada@example.com", Name: "Ada", Plan: "pro"},
	}
	if err := s.Save(original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.AccessToken != original.AccessToken {
		t.Errorf("access token: got %q, want %q", loaded.AccessToken, original.AccessToken)
	}
	if loaded.RefreshToken != original.RefreshToken {
		t.Errorf("refresh token: got %q, want %q", loaded.RefreshToken, original.RefreshToken)
	}
	if loaded.TokenExpiry != original.TokenExpiry {
		t.Errorf("expiry: got %q, want %q", loaded.TokenExpiry, original.TokenExpiry)
	}
	if loaded.User == nil || loaded.User.Email != "ada@example.com" {
		t.Errorf("user not round-tripped: %+v", loaded.User)
	}
}

func TestStoreFilePermissions(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "nested"))

	if err := s.Save(&Session{AccessToken: "tok"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Save(&Session{AccessToken: "tok"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	sess, err := s.Load()
	if err != nil {
		t.Fatalf("Load after Clear: %v", err)
	}
	if !sess.Empty() {
		t.Errorf("expected empty session after Clear, got %+v", sess)
	}

	// Clearing twice is fine.
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestSessionEmpty(t *testing.T) {
	if !(&Session{}).Empty() {
		t.Error("zero session should be empty")
	}
	if (&Session{AccessToken: "a"}).Empty() {
		t.Error("session with access token should not be empty")
	}
	if (&Session{RefreshToken: "r"}).Empty() {
		t.Error("session with refresh token should not be empty")
	}
}
