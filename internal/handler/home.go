package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/home.html
var templateFS embed.FS

// Counter reports how many filtered users the service holds.
type Counter interface {
	Count() int
}

// HomeHandler serves the landing page and the health check.
// The template is parsed once at construction.
type HomeHandler struct {
	templates *template.Template
	users     Counter
	logger    *slog.Logger
}

// NewHomeHandler parses the embedded landing page template.
func NewHomeHandler(users Counter, logger *slog.Logger) (*HomeHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/home.html")
	if err != nil {
		return nil, err
	}

	return &HomeHandler{
		templates: tmpl,
		users:     users,
		logger:    logger,
	}, nil
}

// HandleHome renders the landing page listing the available routes.
//
// HTTP: GET /
func (h *HomeHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"Title": "GitHub users",
		"Users": h.users.Count(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := h.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// HandleFavicon answers browsers with an empty 204.
//
// HTTP: GET /favicon.ico
func (h *HomeHandler) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth reports liveness and the size of the filtered index.
//
// HTTP: GET /healthz
func (h *HomeHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"users":  h.users.Count(),
	})
}
