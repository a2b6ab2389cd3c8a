package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/github-users/internal/apperror"
)

// TokenTTL is the lifetime of an issued bearer token.
const TokenTTL = 15 * time.Minute

const issuer = "github-users"

// TokenService issues and validates HS256 bearer tokens for API clients that
// already proved their Basic credentials once.
type TokenService struct {
	secret []byte
}

// NewTokenService returns an error for secrets shorter than 16 bytes.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Issue signs a token for subject valid for TokenTTL.
func (s *TokenService) Issue(subject string) (string, error) {
	return s.issue(subject, TokenTTL)
}

func (s *TokenService) issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, issuer and expiry and returns the subject.
// Every failure wraps apperror.ErrUnauthorized.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperror.Unauthorized("token expired")
		}
		return "", fmt.Errorf("%w: %v", apperror.Unauthorized("invalid token"), err)
	}
	if !token.Valid || c.Subject == "" {
		return "", apperror.Unauthorized("token has no subject")
	}
	return c.Subject, nil
}
