package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/middleware"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func toTokenResponse(pair auth.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	}
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, ValidationErr("Email and password are required", nil))
		return
	}

	pair, err := s.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccountLocked):
			logger.Warn("Login refused for locked account", "email", req.Email)
		case errors.Is(err, auth.ErrInvalidCredentials):
			logger.Warn("Invalid login attempt", "email", req.Email)
		}
		s.fail(w, r, "User", err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, ValidationErr("Refresh token is required", nil))
		return
	}

	pair, err := s.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.fail(w, r, "Refresh token", err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		s.fail(w, r, "Refresh token", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
