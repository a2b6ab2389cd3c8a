// Package handler contains the HTTP handlers of the query service.
//
// Handlers parse the request, call the service layer and write the response.
// They hold no business logic; status codes come from the domain errors via
// writeError.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/github-users/internal/apperror"
	"github.com/sakif/github-users/internal/model"
)

// SnapshotHeader tells clients which population answered the request.
// The list route reads the raw snapshot; search and detail read the
// filtered one.
const SnapshotHeader = "X-Snapshot"

// UserQuerier is what UserHandler needs from the service layer.
// *service.UserService satisfies it.
type UserQuerier interface {
	List(ctx context.Context) ([]json.RawMessage, error)
	Search(ctx context.Context, q string) []model.UserRecord
	Detail(ctx context.Context, login string) (model.APIUser, error)
}

// UserHandler serves the /users routes.
type UserHandler struct {
	users          UserQuerier
	listErrorsAsOK bool
	logger         *slog.Logger
}

// NewUserHandler creates a UserHandler. With listErrorsAsOK set, list
// failures are answered with 200 and {"error": message}.
func NewUserHandler(users UserQuerier, listErrorsAsOK bool, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:          users,
		listErrorsAsOK: listErrorsAsOK,
		logger:         logger,
	}
}

// HandleList returns the raw snapshot verbatim.
//
// HTTP: GET /users/
//
// Any read failure, a missing file included, is a 500.
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(SnapshotHeader, "raw")

	records, err := h.users.List(r.Context())
	if err != nil {
		if h.listErrorsAsOK {
			writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
			return
		}
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// HandleSearch returns filtered users whose login contains q.
//
// HTTP: GET /users/search?q=<substring>
// Auth: required
//
// An absent q is a 400; q= (present but empty) matches everyone.
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(SnapshotHeader, "filtered")

	values := r.URL.Query()
	if !values.Has("q") {
		writeError(w, apperror.ValidationFailed("q", "query parameter q is required"))
		return
	}

	writeJSON(w, http.StatusOK, h.users.Search(r.Context(), values.Get("q")))
}

// HandleDetail returns one filtered user by login, ignoring case.
//
// HTTP: GET /users/{login}
// Auth: required
func (h *UserHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(SnapshotHeader, "filtered")

	login := chi.URLParam(r, "login")
	user, err := h.users.Detail(r.Context(), login)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
