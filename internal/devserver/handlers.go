package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ctxKey int

const accountKey ctxKey = iota

// userPayload is the wire form of an account.
type userPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Plan      string `json:"plan,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toPayload(a *account) userPayload {
	return userPayload{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Plan:      a.Plan,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.cfg.Version,
		"time":    time.Now().UTC(),
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid_email", "a valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "weak_password", "password must be at least 8 characters")
		return
	}

	acct, ok := s.state.createAccount(req.Email, req.Password, req.Name)
	if !ok {
		writeError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
		return
	}

	s.writeTokenPair(w, http.StatusCreated, acct)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	acct, ok := s.state.authenticate(req.Email, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
		return
	}

	s.writeTokenPair(w, http.StatusOK, acct)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	acct, ok := s.state.redeem(req.RefreshToken, true)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "refresh token is expired or revoked")
		return
	}

	s.writeTokenPair(w, http.StatusOK, acct)
}

func (s *Server) writeTokenPair(w http.ResponseWriter, status int, acct *account) {
	access, refresh, ttl := s.state.issuePair(acct.ID)
	writeJSON(w, status, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    int(ttl.Seconds()),
		"user":          toPayload(acct),
	})
}

// requireAuth validates the bearer token and stashes the account in the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "Authorization header required")
			return
		}
		acct, ok := s.state.redeem(token, false)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid_token", "access token is expired or unknown")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey, acct)))
	})
}

func requestAccount(r *http.Request) *account {
	return r.Context().Value(accountKey).(*account)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	acct := requestAccount(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          toPayload(acct),
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toPayload(requestAccount(r)))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	acct := requestAccount(r)
	s.state.mu.Lock()
	acct.Name = req.Name
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, toPayload(acct))
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	acct := requestAccount(r)
	s.state.mu.Lock()
	prefs := acct.Prefs
	s.state.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(prefs)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	acct := requestAccount(r)
	s.state.mu.Lock()
	acct.Prefs = prefs
	s.state.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportData(w http.ResponseWriter, r *http.Request) {
	acct := requestAccount(r)
	s.state.mu.Lock()
	export := map[string]any{
		"user":        toPayload(acct),
		"preferences": acct.Prefs,
		"exported_at": time.Now().UTC().Format(time.RFC3339),
	}
	s.state.mu.Unlock()

	payload, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export_failed", "could not build export")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="oriel-export.json"`)
	w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
