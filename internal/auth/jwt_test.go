package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/github-users/internal/apperror"
)

// newTestTokenService uses a fixed secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short")
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_ValidSecret(t *testing.T) {
	_, err := NewTokenService("this-is-16-chars")
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
}

// =========================================================================
// ISSUE / VALIDATE
// =========================================================================

func TestIssue_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Issue("admin")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if n := strings.Count(token, "."); n != 2 {
		t.Errorf("Issue() token has %d dots, want 2", n)
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Issue("admin")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != "admin" {
		t.Errorf("Validate() subject = %q, want %q", got, "admin")
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.issue("admin", -time.Second)
	if err != nil {
		t.Fatalf("issue() error = %v", err)
	}

	_, err = ts.Validate(token)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("Validate() error = %v, want ErrUnauthorized", err)
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("Validate() error = %q, want mention of expiry", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	good, _ := ts.Issue("admin")
	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!")
	foreign, _ := other.Issue("admin")
	empty, _ := ts.issue("", time.Minute)

	tests := []struct {
		name  string
		token string
	}{
		{"tampered signature", good[:len(good)-3] + "xxx"},
		{"signed with another secret", foreign},
		{"empty string", ""},
		{"garbage", "not.a.jwt.token"},
		{"no subject", empty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Validate(tt.token)
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Errorf("Validate() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}
