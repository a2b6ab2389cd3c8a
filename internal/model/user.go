// Package model defines the data structures shared by the pipeline stages
// and the HTTP API.
package model

import (
	"fmt"
	"strings"
	"time"
)

// CreatedAtLayout is the fixed timestamp format GitHub uses for created_at.
const CreatedAtLayout = "2006-01-02T15:04:05Z"

// UserRecord is one public GitHub profile as stored in the raw and filtered
// snapshots.
//
// ID is the identity key. Login can be reused after a rename, so anything
// that deduplicates must key on ID.
//
// Bio is a pointer so that a JSON null survives a load/save round trip; an
// empty or whitespace-only bio counts as absent either way.
type UserRecord struct {
	Login     string  `json:"login"`
	ID        int64   `json:"id"`
	CreatedAt string  `json:"created_at"`
	AvatarURL string  `json:"avatar_url"`
	Bio       *string `json:"bio"`
}

// HasBio reports whether the record carries a non-blank bio.
func (u UserRecord) HasBio() bool {
	return u.Bio != nil && strings.TrimSpace(*u.Bio) != ""
}

// CreatedTime parses CreatedAt with CreatedAtLayout. time.Parse accepts
// fractional seconds the layout does not mention, so the value must also
// format back to itself.
func (u UserRecord) CreatedTime() (time.Time, error) {
	t, err := time.Parse(CreatedAtLayout, u.CreatedAt)
	if err != nil {
		return time.Time{}, err
	}
	if t.Format(CreatedAtLayout) != u.CreatedAt {
		return time.Time{}, fmt.Errorf("created_at %q is not in %s form", u.CreatedAt, CreatedAtLayout)
	}
	return t, nil
}

// APIUser is the detail view returned by GET /users/{login}.
//
// The field names differ from UserRecord: avatar_url is exposed as avatar and
// html_url as url. Snapshot records have no html_url, so URL is empty unless
// the caller supplies one.
type APIUser struct {
	Login     string  `json:"login"`
	ID        int64   `json:"id"`
	CreatedAt string  `json:"created_at"`
	Bio       *string `json:"bio"`
	URL       string  `json:"url"`
	Avatar    string  `json:"avatar"`
}

// ToAPI remaps a snapshot record into the detail view.
func (u UserRecord) ToAPI(htmlURL string) APIUser {
	return APIUser{
		Login:     u.Login,
		ID:        u.ID,
		CreatedAt: u.CreatedAt,
		Bio:       u.Bio,
		URL:       htmlURL,
		Avatar:    u.AvatarURL,
	}
}

// StringPtr is a small helper for building records with a bio.
func StringPtr(s string) *string {
	return &s
}
