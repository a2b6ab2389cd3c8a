package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/github-users/internal/apperror"
	"github.com/sakif/github-users/internal/extractor"
	"github.com/sakif/github-users/internal/filter"
	"github.com/sakif/github-users/internal/model"
	"github.com/sakif/github-users/internal/repository"
)

// stopReasonError is written to the ledger for runs that ended in an error.
const stopReasonError = "error"

// SnapshotStore is the subset of *snapshot.Store the pipeline runs need.
type SnapshotStore interface {
	Load(name string) ([]model.UserRecord, error)
	Save(name string, records []model.UserRecord) error
}

// ExtractService performs one extraction run: walk upstream, write the raw
// snapshot, and keep the run ledger up to date.
type ExtractService struct {
	client  extractor.Upstream
	store   SnapshotStore
	runs    repository.RunRepository
	rawName string
	logger  *slog.Logger
	opts    []extractor.Option
}

// NewExtractService wires an extraction run. opts are passed to every
// extractor the service builds.
func NewExtractService(
	client extractor.Upstream,
	store SnapshotStore,
	runs repository.RunRepository,
	rawName string,
	logger *slog.Logger,
	opts ...extractor.Option,
) *ExtractService {
	return &ExtractService{
		client:  client,
		store:   store,
		runs:    runs,
		rawName: rawName,
		logger:  logger,
		opts:    opts,
	}
}

// Run extracts up to maxUsers records and overwrites the raw snapshot.
//
// With resume set, the walk starts from the furthest cursor in the ledger
// instead of extractor.StartSinceID. A cancelled run still writes what it
// collected.
func (s *ExtractService) Run(ctx context.Context, maxUsers int, resume bool) (extractor.Result, error) {
	if maxUsers < 1 {
		return extractor.Result{}, apperror.ValidationFailed("max_users", "max users must be at least 1")
	}

	start := extractor.StartSinceID
	if resume {
		cursor, err := s.runs.LastCursor(ctx)
		switch {
		case err == nil:
			start = cursor
		case errors.Is(err, apperror.ErrNotFound):
			s.logger.Info("no cursor to resume from, starting fresh", slog.Int64("since", start))
		default:
			return extractor.Result{}, fmt.Errorf("reading resume cursor: %w", err)
		}
	}

	run := &model.Run{Kind: model.RunExtract, Cursor: start}
	if err := s.runs.StartRun(ctx, run); err != nil {
		return extractor.Result{}, fmt.Errorf("recording run start: %w", err)
	}
	logger := s.logger.With(slog.String("run_id", run.ID))

	opts := append([]extractor.Option{
		extractor.WithStartCursor(start),
		extractor.WithCheckpoint(func(ctx context.Context, sinceID int64) error {
			return s.runs.UpdateCursor(context.WithoutCancel(ctx), run.ID, sinceID)
		}),
	}, s.opts...)
	users, res, err := extractor.New(s.client, logger, opts...).Extract(ctx, maxUsers)

	run.Cursor = res.Cursor
	run.Accepted = res.Accepted
	run.Rejected = res.Rejected
	run.StopReason = string(res.StopReason)
	if err != nil {
		run.StopReason = stopReasonError
		s.finish(ctx, run, logger)
		return res, err
	}

	if err := s.store.Save(s.rawName, users); err != nil {
		run.StopReason = stopReasonError
		s.finish(ctx, run, logger)
		return res, fmt.Errorf("writing raw snapshot: %w", err)
	}
	logger.Info("raw snapshot written",
		slog.String("file", s.rawName),
		slog.Int("users", len(users)),
	)

	s.finish(ctx, run, logger)
	return res, nil
}

// finish records the outcome even when ctx is already cancelled. A ledger
// failure here is logged, never returned: the snapshot is the product.
func (s *ExtractService) finish(ctx context.Context, run *model.Run, logger *slog.Logger) {
	if err := s.runs.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to record run end", slog.String("error", err.Error()))
	}
}

// FilterService performs one post-filter run over the raw snapshot.
type FilterService struct {
	store        SnapshotStore
	runs         repository.RunRepository
	rawName      string
	filteredName string
	logger       *slog.Logger
}

// NewFilterService wires a post-filter run.
func NewFilterService(store SnapshotStore, runs repository.RunRepository, rawName, filteredName string, logger *slog.Logger) *FilterService {
	return &FilterService{
		store:        store,
		runs:         runs,
		rawName:      rawName,
		filteredName: filteredName,
		logger:       logger,
	}
}

// Run loads the raw snapshot, deduplicates and re-filters it, and overwrites
// the filtered snapshot. A missing or malformed raw snapshot is returned as
// an error and nothing is written.
func (s *FilterService) Run(ctx context.Context) (filter.Stats, error) {
	run := &model.Run{Kind: model.RunFilter}
	if err := s.runs.StartRun(ctx, run); err != nil {
		return filter.Stats{}, fmt.Errorf("recording run start: %w", err)
	}
	logger := s.logger.With(slog.String("run_id", run.ID))

	raw, err := s.store.Load(s.rawName)
	if err != nil {
		run.StopReason = stopReasonError
		s.finish(ctx, run, logger)
		return filter.Stats{}, fmt.Errorf("loading raw snapshot: %w", err)
	}

	kept, stats := filter.Process(raw)

	if err := s.store.Save(s.filteredName, kept); err != nil {
		run.StopReason = stopReasonError
		s.finish(ctx, run, logger)
		return stats, fmt.Errorf("writing filtered snapshot: %w", err)
	}

	logger.Info("filtered snapshot written",
		slog.String("file", s.filteredName),
		slog.Int("loaded", stats.Loaded),
		slog.Int("duplicates_removed", stats.DuplicatesRemoved),
		slog.Int("rejected", stats.Rejected),
		slog.Int("kept", stats.Kept),
	)

	run.Accepted = stats.Kept
	run.Rejected = stats.Rejected
	run.StopReason = "completed"
	s.finish(ctx, run, logger)
	return stats, nil
}

func (s *FilterService) finish(ctx context.Context, run *model.Run, logger *slog.Logger) {
	if err := s.runs.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to record run end", slog.String("error", err.Error()))
	}
}
