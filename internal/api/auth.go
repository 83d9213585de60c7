package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/molt/scummgr/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// requireAuth rejects requests without a valid bearer token
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

// requireAdmin rejects requests without a valid admin token
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !claims.IsAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

// authenticate extracts and validates the token from the Authorization
// header, or from the token query parameter for WebSocket clients that
// cannot set headers.
func (s *Server) authenticate(r *http.Request) (*auth.Claims, bool) {
	token := ""
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	} else if q := r.URL.Query().Get("token"); q != "" {
		token = q
	}
	if token == "" {
		return nil, false
	}

	claims, err := s.auth.ValidateToken(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// requestClaims returns the claims stored by the auth middleware
func requestClaims(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	user, err := s.store.GetUserByUsername(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.auth.IssueToken(user.Username, user.IsAdmin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	if err := s.store.TouchUserLogin(user.Username, time.Now()); err != nil {
		log.Printf("touching last login for %s: %v", user.Username, err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":                    token,
		"username":                 user.Username,
		"is_admin":                 user.IsAdmin,
		"password_change_required": user.PasswordChangeRequired,
	})
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"username": claims.Username,
		"is_admin": claims.IsAdmin,
	})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(r)

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "new password must be at least 8 characters")
		return
	}

	user, err := s.store.GetUserByUsername(claims.Username)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "password change failed")
		return
	}
	if auth.CheckPassword(user.PasswordHash, req.CurrentPassword) != nil {
		writeError(w, http.StatusUnauthorized, "current password is wrong")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password change failed")
		return
	}
	if err := s.store.UpdateUserPassword(user.Username, hash); err != nil {
		writeError(w, http.StatusInternalServerError, "password change failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}
