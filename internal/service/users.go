package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sakif/github-users/internal/apperror"
	"github.com/sakif/github-users/internal/model"
	"github.com/sakif/github-users/internal/snapshot"
)

// RawSource reads a snapshot verbatim. *snapshot.Store satisfies it.
type RawSource interface {
	LoadRaw(name string) ([]json.RawMessage, error)
}

// UserService answers the query API.
//
// List reads the raw snapshot from disk on every call. Search and Detail
// use the filtered snapshot index built once at startup, so the two views
// may disagree until the server is restarted.
type UserService struct {
	raw     RawSource
	rawName string
	index   *snapshot.Index
	logger  *slog.Logger
}

// NewUserService wires the raw snapshot source and the filtered index.
func NewUserService(raw RawSource, rawName string, index *snapshot.Index, logger *slog.Logger) *UserService {
	return &UserService{
		raw:     raw,
		rawName: rawName,
		index:   index,
		logger:  logger,
	}
}

// List returns every record of the raw snapshot, unmodified.
func (s *UserService) List(_ context.Context) ([]json.RawMessage, error) {
	records, err := s.raw.LoadRaw(s.rawName)
	if err != nil {
		s.logger.Error("failed to read raw snapshot",
			slog.String("file", s.rawName),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return records, nil
}

// Search returns filtered records whose login contains q, ignoring case.
// An empty q matches every record.
func (s *UserService) Search(_ context.Context, q string) []model.UserRecord {
	results := s.index.Search(q)
	s.logger.Debug("search", slog.String("q", q), slog.Int("results", len(results)))
	return results
}

// Detail looks up login, ignoring case, and returns its API view.
func (s *UserService) Detail(_ context.Context, login string) (model.APIUser, error) {
	rec, ok := s.index.Lookup(login)
	if !ok {
		return model.APIUser{}, apperror.NotFound("user", login)
	}
	// filtered snapshots never carry html_url
	return rec.ToAPI(""), nil
}

// Count returns the number of records in the filtered index.
func (s *UserService) Count() int {
	return s.index.Len()
}
