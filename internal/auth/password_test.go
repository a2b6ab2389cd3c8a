package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestCredentials_Plaintext(t *testing.T) {
	c := NewCredentials("admin", "s3cret-token")

	tests := []struct {
		name     string
		user     string
		password string
		want     bool
	}{
		{"correct pair", "admin", "s3cret-token", true},
		{"wrong password", "admin", "s3cret-tokem", false},
		{"password prefix", "admin", "s3cret", false},
		{"wrong user", "root", "s3cret-token", false},
		{"user is case sensitive", "Admin", "s3cret-token", false},
		{"empty password", "admin", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Verify(tt.user, tt.password); got != tt.want {
				t.Errorf("Verify(%q, %q) = %v, want %v", tt.user, tt.password, got, tt.want)
			}
		})
	}
}

func TestCredentials_BcryptSecret(t *testing.T) {
	hash, err := HashSecret("s3cret-token", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashSecret() error = %v", err)
	}
	c := NewCredentials("admin", hash)

	if !c.Verify("admin", "s3cret-token") {
		t.Error("Verify() rejected the plaintext of the configured hash")
	}
	if c.Verify("admin", hash) {
		t.Error("Verify() accepted the hash itself as a password")
	}
	if c.Verify("admin", "nope") {
		t.Error("Verify() accepted a wrong password")
	}
}

func TestHashSecret_LooksBcrypt(t *testing.T) {
	hash, err := HashSecret("password123", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashSecret() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("HashSecret() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHashSecret_SaltsEachHash(t *testing.T) {
	a, _ := HashSecret("same", bcrypt.MinCost)
	b, _ := HashSecret("same", bcrypt.MinCost)
	if a == b {
		t.Error("HashSecret() returned identical hashes for the same input")
	}
}

func TestHashSecret_RejectsOver72Bytes(t *testing.T) {
	_, err := HashSecret(strings.Repeat("a", 73), bcrypt.MinCost)
	if err == nil {
		t.Fatal("HashSecret() should reject secrets longer than 72 bytes")
	}
}
