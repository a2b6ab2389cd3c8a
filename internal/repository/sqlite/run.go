package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/github-users/internal/apperror"
	"github.com/sakif/github-users/internal/model"
	"github.com/sakif/github-users/internal/repository"
)

// compile-time check that *DB implements repository.RunRepository
var _ repository.RunRepository = (*DB)(nil)

const runColumns = `id, kind, started_at, finished_at, cursor, accepted, rejected, stop_reason`

// StartRun inserts a new run. ID and StartedAt are assigned here and
// written back into run.
func (db *DB) StartRun(ctx context.Context, run *model.Run) error {
	run.ID = xid.New().String()
	run.StartedAt = time.Now().UTC()
	run.FinishedAt = nil

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO runs (id, kind, started_at, cursor)
		 VALUES (?, ?, ?, ?)`,
		run.ID,
		string(run.Kind),
		run.StartedAt,
		run.Cursor,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting %s run: %w", run.Kind, err)
	}
	return nil
}

// UpdateCursor records the cursor an extraction run has advanced to.
func (db *DB) UpdateCursor(ctx context.Context, id string, cursor int64) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE runs SET cursor = ? WHERE id = ?`,
		cursor, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating cursor of run %s: %w", id, err)
	}
	return requireOneRow(result, id)
}

// FinishRun stamps FinishedAt and stores the final counts and stop reason.
func (db *DB) FinishRun(ctx context.Context, run *model.Run) error {
	now := time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE runs
		 SET finished_at = ?, cursor = ?, accepted = ?, rejected = ?, stop_reason = ?
		 WHERE id = ?`,
		now,
		run.Cursor,
		run.Accepted,
		run.Rejected,
		run.StopReason,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: finishing run %s: %w", run.ID, err)
	}
	if err := requireOneRow(result, run.ID); err != nil {
		return err
	}
	run.FinishedAt = &now
	return nil
}

// GetRun retrieves a run by id. Returns apperror.ErrNotFound if absent.
func (db *DB) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("run", id)
		}
		return nil, fmt.Errorf("sqlite: getting run %s: %w", id, err)
	}
	return run, nil
}

// LastCursor returns the furthest cursor any extraction run reached.
// Returns apperror.ErrNotFound when no extraction has advanced yet.
func (db *DB) LastCursor(ctx context.Context) (int64, error) {
	var cursor sql.NullInt64
	err := db.conn.QueryRowContext(ctx,
		`SELECT MAX(cursor) FROM runs WHERE kind = ? AND cursor > 0`,
		string(model.RunExtract),
	).Scan(&cursor)
	if err != nil {
		return 0, fmt.Errorf("sqlite: reading last cursor: %w", err)
	}
	if !cursor.Valid {
		return 0, apperror.NotFound("cursor", string(model.RunExtract))
	}
	return cursor.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*model.Run, error) {
	var (
		run      model.Run
		kind     string
		finished sql.NullTime
	)
	err := s.Scan(
		&run.ID,
		&kind,
		&run.StartedAt,
		&finished,
		&run.Cursor,
		&run.Accepted,
		&run.Rejected,
		&run.StopReason,
	)
	if err != nil {
		return nil, err
	}
	run.Kind = model.RunKind(kind)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func requireOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("run", id)
	}
	return nil
}
