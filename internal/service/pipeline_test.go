package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/github-users/internal/apperror"
	"github.com/sakif/github-users/internal/extractor"
	"github.com/sakif/github-users/internal/github"
	"github.com/sakif/github-users/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================

// fakeRunRepo is an in-memory run ledger.
type fakeRunRepo struct {
	runs    map[string]*model.Run
	cursors []int64
	nextID  int
	last    int64 // returned by LastCursor when non-zero
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: map[string]*model.Run{}}
}

func (f *fakeRunRepo) StartRun(_ context.Context, run *model.Run) error {
	f.nextID++
	run.ID = fmt.Sprintf("run-%d", f.nextID)
	stored := *run
	f.runs[run.ID] = &stored
	return nil
}

func (f *fakeRunRepo) UpdateCursor(_ context.Context, id string, cursor int64) error {
	r, ok := f.runs[id]
	if !ok {
		return apperror.NotFound("run", id)
	}
	r.Cursor = cursor
	f.cursors = append(f.cursors, cursor)
	return nil
}

func (f *fakeRunRepo) FinishRun(_ context.Context, run *model.Run) error {
	if _, ok := f.runs[run.ID]; !ok {
		return apperror.NotFound("run", run.ID)
	}
	stored := *run
	f.runs[run.ID] = &stored
	return nil
}

func (f *fakeRunRepo) GetRun(_ context.Context, id string) (*model.Run, error) {
	r, ok := f.runs[id]
	if !ok {
		return nil, apperror.NotFound("run", id)
	}
	out := *r
	return &out, nil
}

func (f *fakeRunRepo) LastCursor(_ context.Context) (int64, error) {
	if f.last == 0 {
		return 0, apperror.NotFound("cursor", "extract")
	}
	return f.last, nil
}

func (f *fakeRunRepo) only(t *testing.T) *model.Run {
	t.Helper()
	if len(f.runs) != 1 {
		t.Fatalf("ledger has %d runs, want 1", len(f.runs))
	}
	for _, r := range f.runs {
		return r
	}
	return nil
}

// fakeStore keeps snapshots in memory by name.
type fakeStore struct {
	files   map[string][]model.UserRecord
	loadErr error
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: map[string][]model.UserRecord{}}
}

func (f *fakeStore) Load(name string) ([]model.UserRecord, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	recs, ok := f.files[name]
	if !ok {
		return nil, apperror.NotFound("snapshot", name)
	}
	return recs, nil
}

func (f *fakeStore) Save(name string, records []model.UserRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.files[name] = records
	return nil
}

// stubUpstream serves three good users per page, then an empty page.
type stubUpstream struct {
	pages    int
	maxPages int
	sinces   []int64
}

func (s *stubUpstream) ListUsers(_ context.Context, since int64) ([]github.UserSummary, error) {
	s.sinces = append(s.sinces, since)
	s.pages++
	if s.pages > s.maxPages {
		return []github.UserSummary{}, nil
	}
	out := make([]github.UserSummary, 3)
	for i := range out {
		id := since + int64(i) + 1
		out[i] = github.UserSummary{Login: fmt.Sprintf("u%d", id), ID: id}
	}
	return out, nil
}

func (s *stubUpstream) GetUser(_ context.Context, login string) (*github.UserDetail, error) {
	var id int64
	fmt.Sscanf(login, "u%d", &id)
	return &github.UserDetail{
		Login:     login,
		ID:        id,
		CreatedAt: "2019-01-01T00:00:00Z",
		AvatarURL: "https://a/" + login,
		Bio:       model.StringPtr("bio"),
	}, nil
}

func newTestExtractService(up extractor.Upstream, store *fakeStore, runs *fakeRunRepo) *ExtractService {
	return NewExtractService(up, store, runs, "users.json", discardLogger(),
		extractor.WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		extractor.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
}

// =========================================================================
// EXTRACT
// =========================================================================

func TestExtractRun_WritesSnapshotAndLedger(t *testing.T) {
	up := &stubUpstream{maxPages: 10}
	store := newFakeStore()
	runs := newFakeRunRepo()

	res, err := newTestExtractService(up, store, runs).Run(context.Background(), 4, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.StopReason != extractor.StopMaxReached {
		t.Errorf("StopReason = %q, want max_reached", res.StopReason)
	}
	if got := len(store.files["users.json"]); got != 4 {
		t.Errorf("snapshot has %d users, want 4", got)
	}
	if up.sinces[0] != extractor.StartSinceID {
		t.Errorf("first since = %d, want %d", up.sinces[0], extractor.StartSinceID)
	}

	run := runs.only(t)
	if run.Kind != model.RunExtract {
		t.Errorf("Kind = %q, want extract", run.Kind)
	}
	if run.Accepted != 4 || run.StopReason != "max_reached" {
		t.Errorf("ledger run = %+v", run)
	}
	if len(runs.cursors) != 2 || run.Cursor != runs.cursors[1] {
		t.Errorf("cursor checkpoints = %v, final %d", runs.cursors, run.Cursor)
	}
}

func TestExtractRun_Resume(t *testing.T) {
	up := &stubUpstream{maxPages: 1}
	runs := newFakeRunRepo()
	runs.last = 30000900

	_, err := newTestExtractService(up, newFakeStore(), runs).Run(context.Background(), 60, true)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if up.sinces[0] != 30000900 {
		t.Errorf("first since = %d, want 30000900", up.sinces[0])
	}
}

func TestExtractRun_ResumeWithoutHistoryStartsFresh(t *testing.T) {
	up := &stubUpstream{maxPages: 0}

	_, err := newTestExtractService(up, newFakeStore(), newFakeRunRepo()).Run(context.Background(), 60, true)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if up.sinces[0] != extractor.StartSinceID {
		t.Errorf("first since = %d, want %d", up.sinces[0], extractor.StartSinceID)
	}
}

func TestExtractRun_ExhaustedWritesEmptySnapshot(t *testing.T) {
	store := newFakeStore()

	res, err := newTestExtractService(&stubUpstream{}, store, newFakeRunRepo()).Run(context.Background(), 60, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.StopReason != extractor.StopExhausted {
		t.Errorf("StopReason = %q, want exhausted", res.StopReason)
	}
	recs, ok := store.files["users.json"]
	if !ok || len(recs) != 0 {
		t.Errorf("snapshot = %v (written=%v), want empty and written", recs, ok)
	}
}

func TestExtractRun_SaveFailure(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("read-only filesystem")
	runs := newFakeRunRepo()

	_, err := newTestExtractService(&stubUpstream{maxPages: 1}, store, runs).Run(context.Background(), 2, false)

	if !errors.Is(err, store.saveErr) {
		t.Fatalf("Run() error = %v, want save error", err)
	}
	if got := runs.only(t).StopReason; got != "error" {
		t.Errorf("StopReason = %q, want error", got)
	}
}

func TestExtractRun_RejectsMaxBelowOne(t *testing.T) {
	for _, n := range []int{-1, 0} {
		up := &stubUpstream{maxPages: 1}
		store := newFakeStore()
		runs := newFakeRunRepo()

		_, err := newTestExtractService(up, store, runs).Run(context.Background(), n, false)

		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("Run(max=%d) error = %v, want ErrValidation", n, err)
		}
		if len(up.sinces) != 0 || len(store.files) != 0 || len(runs.runs) != 0 {
			t.Errorf("Run(max=%d) did work: requests=%d files=%d runs=%d", n, len(up.sinces), len(store.files), len(runs.runs))
		}
	}
}

// =========================================================================
// FILTER
// =========================================================================

func TestFilterRun(t *testing.T) {
	store := newFakeStore()
	store.files["users.json"] = []model.UserRecord{
		{Login: "alice", ID: 1, CreatedAt: "2016-01-01T00:00:00Z", AvatarURL: "x", Bio: model.StringPtr("a")},
		{Login: "old", ID: 2, CreatedAt: "2010-01-01T00:00:00Z", AvatarURL: "x", Bio: model.StringPtr("b")},
		{Login: "alice2", ID: 1, CreatedAt: "2016-01-01T00:00:00Z", AvatarURL: "x", Bio: model.StringPtr("c")},
	}
	runs := newFakeRunRepo()
	svc := NewFilterService(store, runs, "users.json", "filtered_users.json", discardLogger())

	stats, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.Loaded != 3 || stats.DuplicatesRemoved != 1 || stats.Kept != 1 {
		t.Errorf("stats = %+v", stats)
	}
	kept := store.files["filtered_users.json"]
	if len(kept) != 1 || kept[0].Login != "alice2" {
		t.Errorf("filtered snapshot = %+v, want only alice2", kept)
	}

	run := runs.only(t)
	if run.Kind != model.RunFilter || run.StopReason != "completed" || run.Accepted != 1 || run.Rejected != 1 {
		t.Errorf("ledger run = %+v", run)
	}
}

func TestFilterRun_LoadErrorsWriteNothing(t *testing.T) {
	tests := []struct {
		name    string
		loadErr error
		want    error
	}{
		{"missing raw snapshot", nil, apperror.ErrNotFound},
		{"schema violation", apperror.SchemaViolation("users.json", "bio", "missing key"), apperror.ErrSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.loadErr = tt.loadErr
			runs := newFakeRunRepo()
			svc := NewFilterService(store, runs, "users.json", "filtered_users.json", discardLogger())

			_, err := svc.Run(context.Background())

			if !errors.Is(err, tt.want) {
				t.Errorf("Run() error = %v, want %v", err, tt.want)
			}
			if _, written := store.files["filtered_users.json"]; written {
				t.Error("filtered snapshot was written despite a load error")
			}
			if got := runs.only(t).StopReason; got != "error" {
				t.Errorf("StopReason = %q, want error", got)
			}
		})
	}
}
