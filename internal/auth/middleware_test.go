package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// echoSubject writes the authenticated subject so tests can assert on it.
var echoSubject = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	s, _ := SubjectFromContext(r.Context())
	w.Write([]byte(s))
})

func serve(h http.Handler, setup func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/users/search?q=a", nil)
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth_Basic(t *testing.T) {
	h := RequireAuth(NewCredentials("admin", "tok"), nil)(echoSubject)

	rec := serve(h, func(r *http.Request) { r.SetBasicAuth("admin", "tok") })

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "admin" {
		t.Errorf("subject = %q, want admin", rec.Body.String())
	}
}

func TestRequireAuth_Challenges(t *testing.T) {
	ts := newTestTokenService(t)
	h := RequireAuth(NewCredentials("admin", "tok"), ts)(echoSubject)

	tests := []struct {
		name  string
		setup func(*http.Request)
	}{
		{"no header", nil},
		{"wrong password", func(r *http.Request) { r.SetBasicAuth("admin", "bad") }},
		{"wrong user", func(r *http.Request) { r.SetBasicAuth("guest", "tok") }},
		{"bad bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }},
		{"unknown scheme", func(r *http.Request) { r.Header.Set("Authorization", "Digest abc") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.setup)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if got := rec.Header().Get("WWW-Authenticate"); got != `Basic realm="github-users"` {
				t.Errorf("WWW-Authenticate = %q", got)
			}
			if got := rec.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q", got)
			}
		})
	}
}

func TestRequireAuth_Bearer(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Issue("admin")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	h := RequireAuth(NewCredentials("admin", "tok"), ts)(echoSubject)

	rec := serve(h, func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) })

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "admin" {
		t.Errorf("subject = %q, want admin", rec.Body.String())
	}
}

func TestRequireAuth_BearerIgnoredWithoutTokenService(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Issue("admin")
	h := RequireAuth(NewCredentials("admin", "tok"), nil)(echoSubject)

	rec := serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
