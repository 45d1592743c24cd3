package store

import (
	"context"
	"fmt"
)

// timeFormat is fixed width so that stored times sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// WriteBatch records a batch and its story outcomes in one transaction.
// Writing a batch id twice replaces the earlier record.
func (s *Store) WriteBatch(ctx context.Context, b Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, b.ID); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (id, started_at, duration_ms, status, stories, failed, filter)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID,
		b.Started.UTC().Format(timeFormat),
		b.Duration.Milliseconds(),
		b.Status,
		b.Total,
		b.Failed,
		b.Filter,
	)
	if err != nil {
		return fmt.Errorf("write batch: %w", err)
	}

	for i, o := range b.Stories {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO story_outcomes (batch_id, seq, path, status, duration_ms, failure)
			VALUES (?, ?, ?, ?, ?, ?)
		`, b.ID, i, o.Path, o.Status, o.Duration.Milliseconds(), o.Failure)
		if err != nil {
			return fmt.Errorf("write story outcome %s: %w", o.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}
