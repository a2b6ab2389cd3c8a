package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/github-users/internal/apperror"
	"github.com/sakif/github-users/internal/auth"
)

// TokenResponse is the body of a successful POST /auth/token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// TokenHandler exchanges Basic credentials for a short-lived bearer token.
type TokenHandler struct {
	tokens *auth.TokenService // nil when no JWT secret is configured
	logger *slog.Logger
}

// NewTokenHandler creates a TokenHandler. tokens may be nil.
func NewTokenHandler(tokens *auth.TokenService, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, logger: logger}
}

// HandleIssue returns a signed JWT for the authenticated subject.
//
// HTTP: POST /auth/token
// Auth: Basic (RequireAuth puts the username in the context)
func (h *TokenHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeError(w, apperror.NotFound("route", r.URL.Path))
		return
	}

	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid credentials required"))
		return
	}

	token, err := h.tokens.Issue(subject)
	if err != nil {
		h.logger.Error("token issue failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.logger.Info("token issued", slog.String("subject", subject))
	writeJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: int(auth.TokenTTL.Seconds()),
	})
}
