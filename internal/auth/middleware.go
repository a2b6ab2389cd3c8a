package auth

import (
	"context"
	"net/http"
	"strings"
)

// Realm is advertised in the WWW-Authenticate challenge.
const Realm = "github-users"

type contextKey string

const subjectKey contextKey = "subject"

// RequireAuth admits requests carrying valid Basic credentials, or a valid
// bearer token when tokens is non-nil. Everything else gets a 401 with a
// Basic challenge.
func RequireAuth(creds *Credentials, tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := authenticate(r, creds, tokens)
			if !ok {
				writeChallenge(w)
				return
			}
			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the authenticated principal set by RequireAuth.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok && s != ""
}

func authenticate(r *http.Request, creds *Credentials, tokens *TokenService) (string, bool) {
	if user, pass, ok := r.BasicAuth(); ok {
		return user, creds.Verify(user, pass)
	}

	header := r.Header.Get("Authorization")
	if tokens == nil || len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	subject, err := tokens.Validate(strings.TrimSpace(header[7:]))
	if err != nil {
		return "", false
	}
	return subject, true
}

func writeChallenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"valid credentials required"}` + "\n"))
}
