// Package filter holds the inclusion predicate shared by the extractor and the
// post-filter, and the post-filter itself: dedup by id, re-check, reshape.
package filter

import (
	"strings"
	"time"

	"github.com/sakif/github-users/internal/model"
)

// Cutoff is the earliest accepted account creation time.
var Cutoff = time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)

// Reason explains why a record was rejected. The empty Reason means accepted.
type Reason string

const (
	Accepted           Reason = ""
	ReasonBadCreatedAt Reason = "bad_created_at"
	ReasonTooOld       Reason = "created_before_cutoff"
	ReasonNoAvatar     Reason = "no_avatar"
	ReasonNoBio        Reason = "no_bio"
)

// Check applies the inclusion predicate to a single record.
// A malformed created_at is a rejection, never an error.
func Check(u model.UserRecord) Reason {
	created, err := u.CreatedTime()
	if err != nil {
		return ReasonBadCreatedAt
	}
	if created.Before(Cutoff) {
		return ReasonTooOld
	}
	if strings.TrimSpace(u.AvatarURL) == "" {
		return ReasonNoAvatar
	}
	if !u.HasBio() {
		return ReasonNoBio
	}
	return Accepted
}

// Stats summarises one post-filter pass.
type Stats struct {
	Loaded            int
	DuplicatesRemoved int
	Rejected          int
	Kept              int
}

// Process deduplicates records by id and re-applies the inclusion predicate.
//
// For a duplicated id the last occurrence wins, but it keeps the position of
// the first occurrence. The result depends only on the input, so running it
// twice over the same snapshot gives identical output.
func Process(records []model.UserRecord) ([]model.UserRecord, Stats) {
	stats := Stats{Loaded: len(records)}

	order := make([]int64, 0, len(records))
	latest := make(map[int64]model.UserRecord, len(records))
	for _, r := range records {
		if _, seen := latest[r.ID]; !seen {
			order = append(order, r.ID)
		}
		latest[r.ID] = r
	}
	stats.DuplicatesRemoved = len(records) - len(order)

	kept := make([]model.UserRecord, 0, len(order))
	for _, id := range order {
		r := latest[id]
		if Check(r) != Accepted {
			stats.Rejected++
			continue
		}
		kept = append(kept, reshape(r))
	}
	stats.Kept = len(kept)

	return kept, stats
}

// reshape copies the canonical fields so the output shares no memory with
// the input.
func reshape(r model.UserRecord) model.UserRecord {
	var bio *string
	if r.Bio != nil {
		bio = model.StringPtr(*r.Bio)
	}
	return model.UserRecord{
		Login:     r.Login,
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		AvatarURL: r.AvatarURL,
		Bio:       bio,
	}
}
