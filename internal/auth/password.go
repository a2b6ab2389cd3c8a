package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt cost used by HashSecret.
const DefaultHashCost = 12

// Credentials checks HTTP Basic username/password pairs against the single
// configured API account.
//
// The configured secret is either the plaintext access token or a bcrypt hash
// of it. Plaintext secrets are compared through SHA-256 digests with
// subtle.ConstantTimeCompare, so neither content nor length leaks through
// timing.
type Credentials struct {
	username [sha256.Size]byte
	secret   [sha256.Size]byte
	hash     []byte // set when the configured secret is a bcrypt hash
}

// NewCredentials builds a verifier for username and secret.
func NewCredentials(username, secret string) *Credentials {
	c := &Credentials{username: sha256.Sum256([]byte(username))}
	if _, err := bcrypt.Cost([]byte(secret)); err == nil {
		c.hash = []byte(secret)
	} else {
		c.secret = sha256.Sum256([]byte(secret))
	}
	return c
}

// Verify reports whether username and password match the account.
func (c *Credentials) Verify(username, password string) bool {
	u := sha256.Sum256([]byte(username))
	userOK := subtle.ConstantTimeCompare(u[:], c.username[:]) == 1

	var passOK bool
	if c.hash != nil {
		passOK = bcrypt.CompareHashAndPassword(c.hash, []byte(password)) == nil
	} else {
		p := sha256.Sum256([]byte(password))
		passOK = subtle.ConstantTimeCompare(p[:], c.secret[:]) == 1
	}
	return userOK && passOK
}

// HashSecret returns a bcrypt hash of plaintext suitable for api_access_token.
func HashSecret(plaintext string, cost int) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: secret must be 72 bytes or fewer")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing secret: %w", err)
	}
	return string(hashed), nil
}
