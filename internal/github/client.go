// Package github is a minimal client for the two GitHub REST endpoints the
// extractor needs: the paginated user listing and the per-user detail.
//
// Every response, successful or not, is checked against the rate-limit
// headers before it is handed back. When the quota is exhausted the client
// blocks until the reset time plus a safety margin, so callers never issue a
// request into an empty quota.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/github-users/internal/model"
)

// DefaultBaseURL is the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

// RateLimitMargin is added to the advertised reset time before resuming.
const RateLimitMargin = 5 * time.Second

const (
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
	maxErrorBody    = 512
)

// UserSummary is one entry of GET /users.
type UserSummary struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// UserDetail is the subset of GET /users/{login} the pipeline keeps.
type UserDetail struct {
	Login     string  `json:"login"`
	ID        int64   `json:"id"`
	CreatedAt string  `json:"created_at"`
	AvatarURL string  `json:"avatar_url"`
	Bio       *string `json:"bio"`
	HTMLURL   string  `json:"html_url"`
}

// Record converts the detail payload into a snapshot record.
func (d UserDetail) Record() model.UserRecord {
	return model.UserRecord{
		Login:     d.Login,
		ID:        d.ID,
		CreatedAt: d.CreatedAt,
		AvatarURL: d.AvatarURL,
		Bio:       d.Bio,
	}
}

// APIError represents a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Body)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper, backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client talks to the GitHub REST API with a personal access token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	sleep      Sleeper
	onWait     func(time.Duration)
}

// Option configures Client behavior.
type Option func(*Client)

// WithLogger sets the logger used for rate-limit notices.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock replaces time.Now, used to compute rate-limit waits.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSleeper replaces the blocking wait used for rate limiting.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithRateLimitHook registers a callback invoked with every rate-limit wait.
func WithRateLimitHook(fn func(time.Duration)) Option {
	return func(c *Client) { c.onWait = fn }
}

// New creates a Client. The token is sent as "Authorization: token <token>"
// through an oauth2 static token source.
func New(ctx context.Context, baseURL, token string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "token",
	})

	c := &Client{
		baseURL:    baseURL,
		httpClient: oauth2.NewClient(ctx, src),
		logger:     slog.Default(),
		now:        time.Now,
		sleep:      Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListUsers returns the page of users whose id is strictly greater than since,
// in ascending id order. An empty page means the listing is exhausted.
func (c *Client) ListUsers(ctx context.Context, since int64) ([]UserSummary, error) {
	q := url.Values{}
	q.Set("since", strconv.FormatInt(since, 10))

	var page []UserSummary
	if err := c.getJSON(ctx, "/users", q, &page); err != nil {
		return nil, err
	}
	return page, nil
}

// GetUser fetches the full profile of login.
func (c *Client) GetUser(ctx context.Context, login string) (*UserDetail, error) {
	var d UserDetail
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(login), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// getJSON sends a GET and decodes a 2xx body into dest. Non-2xx responses
// come back as *APIError. Retrying is left to the caller.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("github: building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github: GET %s: %w", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("github: reading %s: %w", path, err)
	}

	if err := c.awaitRateLimit(ctx, resp.Header); err != nil {
		return err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("github: decoding %s: %w", path, err)
		}
		return nil
	}

	bodyStr := string(body)
	if len(bodyStr) > maxErrorBody {
		bodyStr = bodyStr[:maxErrorBody]
	}
	return &APIError{StatusCode: resp.StatusCode, Body: bodyStr}
}

// awaitRateLimit blocks until the quota resets when the response reports
// zero remaining requests. Missing or malformed headers mean "not limited".
func (c *Client) awaitRateLimit(ctx context.Context, h http.Header) error {
	remaining, err := strconv.Atoi(h.Get(headerRemaining))
	if err != nil || remaining > 0 {
		return nil
	}
	resetUnix, err := strconv.ParseInt(h.Get(headerReset), 10, 64)
	if err != nil {
		return nil
	}

	wait := time.Unix(resetUnix, 0).Sub(c.now())
	if wait <= 0 {
		return nil
	}
	wait += RateLimitMargin

	c.logger.Warn("github quota exhausted, waiting for reset",
		slog.Time("reset", time.Unix(resetUnix, 0)),
		slog.Duration("wait", wait),
	)
	if c.onWait != nil {
		c.onWait(wait)
	}
	if err := c.sleep(ctx, wait); err != nil {
		return fmt.Errorf("github: waiting for rate limit reset: %w", err)
	}
	return nil
}
