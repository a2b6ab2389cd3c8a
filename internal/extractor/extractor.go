// Package extractor walks the upstream user listing with a since-id cursor,
// fetches the profile of every candidate and keeps those that pass the
// inclusion predicate.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/github-users/internal/filter"
	"github.com/sakif/github-users/internal/github"
	"github.com/sakif/github-users/internal/model"
)

// StartSinceID is where every run begins unless told to resume.
const StartSinceID int64 = 30000000

const (
	// PageInterval is the minimum spacing between two listing requests.
	PageInterval = time.Second
	// PageRetryDelay is the pause after a failed listing request.
	PageRetryDelay = 5 * time.Second
	// StallLimit is how many pages in a row may yield nothing before giving up.
	StallLimit = 5
)

// StopReason says why a run ended.
type StopReason string

const (
	StopMaxReached StopReason = "max_reached"
	StopExhausted  StopReason = "exhausted"
	StopStalled    StopReason = "stalled"
	StopCancelled  StopReason = "cancelled"
)

// Cursor is the exclusive lower bound on user ids for the next page.
// It only moves forward.
type Cursor struct {
	sinceID int64
}

// NewCursor returns a cursor positioned at sinceID.
func NewCursor(sinceID int64) Cursor {
	return Cursor{sinceID: sinceID}
}

// SinceID returns the value sent as the since query parameter.
func (c Cursor) SinceID() int64 { return c.sinceID }

// Advance returns the cursor moved to id. Ids at or below the current
// position leave it unchanged.
func (c Cursor) Advance(id int64) Cursor {
	if id > c.sinceID {
		return Cursor{sinceID: id}
	}
	return c
}

// Upstream is the subset of the GitHub client the extractor needs.
type Upstream interface {
	ListUsers(ctx context.Context, since int64) ([]github.UserSummary, error)
	GetUser(ctx context.Context, login string) (*github.UserDetail, error)
}

// Recorder receives run counters. *metrics.Extractor satisfies it.
type Recorder interface {
	Page()
	Accepted()
	Rejected(reason string)
	UpstreamError(endpoint, class string)
}

// CheckpointFunc persists the cursor after each page.
type CheckpointFunc func(ctx context.Context, sinceID int64) error

// Result summarises a run.
type Result struct {
	StopReason StopReason
	Pages      int
	Accepted   int
	Rejected   int
	Skipped    int // candidates whose detail fetch failed
	Cursor     int64
}

// Extractor runs one extraction at a time. It is not safe for concurrent use.
type Extractor struct {
	client     Upstream
	logger     *slog.Logger
	sleep      github.Sleeper
	limiter    *rate.Limiter
	recorder   Recorder
	checkpoint CheckpointFunc
	start      int64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSleeper replaces the blocking wait used for backoffs.
func WithSleeper(s github.Sleeper) Option {
	return func(e *Extractor) { e.sleep = s }
}

// WithLimiter replaces the page pacing limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(e *Extractor) { e.limiter = l }
}

// WithRecorder sets the counters sink.
func WithRecorder(r Recorder) Option {
	return func(e *Extractor) { e.recorder = r }
}

// WithCheckpoint sets the callback invoked with the cursor after every page.
func WithCheckpoint(fn CheckpointFunc) Option {
	return func(e *Extractor) { e.checkpoint = fn }
}

// WithStartCursor begins the walk at sinceID instead of StartSinceID.
func WithStartCursor(sinceID int64) Option {
	return func(e *Extractor) { e.start = sinceID }
}

// New creates an Extractor reading from client.
func New(client Upstream, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		client:   client,
		logger:   logger,
		sleep:    github.Sleep,
		limiter:  rate.NewLimiter(rate.Every(PageInterval), 1),
		recorder: nopRecorder{},
		start:    StartSinceID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract collects up to maxCount accepted records.
//
// Cancellation of ctx is not an error: the records gathered so far are
// returned with StopCancelled. An error is returned only when upstream
// rejects the credentials or a checkpoint cannot be written.
func (e *Extractor) Extract(ctx context.Context, maxCount int) ([]model.UserRecord, Result, error) {
	users := []model.UserRecord{}
	cursor := NewCursor(e.start)
	res := Result{StopReason: StopMaxReached, Cursor: cursor.SinceID()}
	stalled := 0

	e.logger.Info("extraction started",
		slog.Int("max_users", maxCount),
		slog.Int64("since", cursor.SinceID()),
	)

	for len(users) < maxCount {
		if err := e.limiter.Wait(ctx); err != nil {
			res.StopReason = StopCancelled
			break
		}

		page, err := e.client.ListUsers(ctx, cursor.SinceID())
		if err != nil {
			if ctx.Err() != nil {
				res.StopReason = StopCancelled
				break
			}
			if statusOf(err) == http.StatusUnauthorized {
				return users, res, fmt.Errorf("extractor: listing rejected credentials: %w", err)
			}
			class, _ := classify(err)
			e.recorder.UpstreamError("page", class)
			e.logger.Warn("listing request failed, retrying",
				slog.Int64("since", cursor.SinceID()),
				slog.Duration("retry_in", PageRetryDelay),
				slog.String("error", err.Error()),
			)
			if err := e.sleep(ctx, PageRetryDelay); err != nil {
				res.StopReason = StopCancelled
				break
			}
			continue
		}

		res.Pages++
		e.recorder.Page()
		if len(page) == 0 {
			res.StopReason = StopExhausted
			break
		}

		added := 0
		for _, candidate := range page {
			if len(users) >= maxCount {
				break
			}
			rec, ok := e.fetchDetail(ctx, candidate.Login)
			if ctx.Err() != nil {
				break
			}
			if !ok {
				res.Skipped++
				continue
			}
			if reason := filter.Check(rec); reason != filter.Accepted {
				res.Rejected++
				e.recorder.Rejected(string(reason))
				e.logger.Debug("user rejected",
					slog.String("login", rec.Login),
					slog.String("reason", string(reason)),
				)
				continue
			}
			users = append(users, rec)
			added++
			res.Accepted++
			e.recorder.Accepted()
			e.logger.Debug("user accepted", slog.String("login", rec.Login))
		}

		if ctx.Err() != nil {
			res.StopReason = StopCancelled
			break
		}

		cursor = cursor.Advance(page[len(page)-1].ID)
		res.Cursor = cursor.SinceID()
		if e.checkpoint != nil {
			if err := e.checkpoint(ctx, cursor.SinceID()); err != nil {
				return users, res, fmt.Errorf("extractor: checkpoint at %d: %w", cursor.SinceID(), err)
			}
		}

		if added == 0 {
			stalled++
			e.logger.Info("page yielded no users", slog.Int("consecutive", stalled))
			if stalled >= StallLimit {
				res.StopReason = StopStalled
				break
			}
		} else {
			stalled = 0
		}
	}

	e.logger.Info("extraction finished",
		slog.String("stop_reason", string(res.StopReason)),
		slog.Int("accepted", res.Accepted),
		slog.Int("rejected", res.Rejected),
		slog.Int("skipped", res.Skipped),
		slog.Int("pages", res.Pages),
		slog.Int64("cursor", res.Cursor),
	)
	return users, res, nil
}

// fetchDetail returns the candidate's record, or false after applying the
// backoff for the failure class.
func (e *Extractor) fetchDetail(ctx context.Context, login string) (model.UserRecord, bool) {
	d, err := e.client.GetUser(ctx, login)
	if err == nil {
		return d.Record(), true
	}
	if ctx.Err() != nil {
		return model.UserRecord{}, false
	}

	class, backoff := classify(err)
	e.recorder.UpstreamError("detail", class)
	e.logger.Warn("user detail fetch failed",
		slog.String("login", login),
		slog.String("class", class),
		slog.Duration("backoff", backoff),
		slog.String("error", err.Error()),
	)
	if backoff > 0 {
		_ = e.sleep(ctx, backoff)
	}
	return model.UserRecord{}, false
}

// classify maps an upstream failure to a label and the pause that follows it.
func classify(err error) (string, time.Duration) {
	status := statusOf(err)
	switch {
	case status == 0:
		return "transport", 0
	case status == http.StatusForbidden:
		return "forbidden", 60 * time.Second
	case status == http.StatusTooManyRequests:
		return "too_many_requests", 10 * time.Second
	case status >= 500 && status < 600:
		return "server", 5 * time.Second
	default:
		return "client", 0
	}
}

func statusOf(err error) int {
	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type nopRecorder struct{}

func (nopRecorder) Page()                        {}
func (nopRecorder) Accepted()                    {}
func (nopRecorder) Rejected(string)              {}
func (nopRecorder) UpstreamError(string, string) {}
