package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrBatchNotFound is returned by ReadBatch for an unknown id.
var ErrBatchNotFound = errors.New("batch not found")

// ListBatches returns the most recent batches, newest first, without their
// story outcomes. limit <= 0 returns all batches.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]Batch, error) {
	query := `
		SELECT id, started_at, duration_ms, status, stories, failed, filter
		FROM batches
		ORDER BY started_at DESC, id COLLATE BINARY DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	batches := []Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// ReadBatch returns a batch with its story outcomes in batch order.
func (s *Store) ReadBatch(ctx context.Context, id string) (Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, duration_ms, status, stories, failed, filter
		FROM batches
		WHERE id = ?
	`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, fmt.Errorf("read batch %s: %w", id, ErrBatchNotFound)
	}
	if err != nil {
		return Batch{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, path, status, duration_ms, failure
		FROM story_outcomes
		WHERE batch_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return Batch{}, fmt.Errorf("query story outcomes: %w", err)
	}
	defer rows.Close()

	b.Stories = []StoryOutcome{}
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return Batch{}, err
		}
		b.Stories = append(b.Stories, o)
	}
	if err := rows.Err(); err != nil {
		return Batch{}, fmt.Errorf("iterate story outcomes: %w", err)
	}
	return b, nil
}

// StoryHistory returns the recorded outcomes of one story path, newest
// batch first. limit <= 0 returns all of them.
func (s *Store) StoryHistory(ctx context.Context, path string, limit int) ([]StoryOutcome, error) {
	query := `
		SELECT o.batch_id, o.path, o.status, o.duration_ms, o.failure
		FROM story_outcomes o
		JOIN batches b ON b.id = o.batch_id
		WHERE o.path = ?
		ORDER BY b.started_at DESC, b.id COLLATE BINARY DESC, o.seq ASC
	`
	args := []any{path}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query story history: %w", err)
	}
	defer rows.Close()

	outcomes := []StoryOutcome{}
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate story history: %w", err)
	}
	return outcomes, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (Batch, error) {
	var (
		b       Batch
		started string
		ms      int64
	)
	if err := row.Scan(&b.ID, &started, &ms, &b.Status, &b.Total, &b.Failed, &b.Filter); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Batch{}, err
		}
		return Batch{}, fmt.Errorf("scan batch: %w", err)
	}
	t, err := time.Parse(timeFormat, started)
	if err != nil {
		return Batch{}, fmt.Errorf("parse started_at of batch %s: %w", b.ID, err)
	}
	b.Started = t
	b.Duration = time.Duration(ms) * time.Millisecond
	return b, nil
}

func scanOutcome(row scanner) (StoryOutcome, error) {
	var (
		o  StoryOutcome
		ms int64
	)
	if err := row.Scan(&o.BatchID, &o.Path, &o.Status, &ms, &o.Failure); err != nil {
		return StoryOutcome{}, fmt.Errorf("scan story outcome: %w", err)
	}
	o.Duration = time.Duration(ms) * time.Millisecond
	return o, nil
}
