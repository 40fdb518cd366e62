package store

import (
	"context"
	"fmt"

	"github.com/roach88/extcall/internal/ir"
)

// WriteRun inserts a run record. Uses ON CONFLICT(id) DO NOTHING for
// idempotency: writing the same run twice is silently ignored.
func (s *Store) WriteRun(ctx context.Context, run ir.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, seed, seq, engine_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Name,
		run.Seed,
		run.Seq,
		run.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// AppendEvents writes the events of one call in a single transaction, so
// a crash never leaves half a call's trace behind. Events already present
// (same content-addressed ID) are skipped.
//
// The run referenced by each record must exist (foreign key constraint).
func (s *Store) AppendEvents(ctx context.Context, recs []ir.EventRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (id, run_id, step, seq, kind, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("append events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		payload, err := marshalPayload(rec.Payload)
		if err != nil {
			return fmt.Errorf("append events: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.RunID, rec.Step, rec.Seq, rec.Kind, payload); err != nil {
			return fmt.Errorf("append events: insert %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append events: commit: %w", err)
	}
	return nil
}

// WriteViolation records a failed contract check. Uses
// ON CONFLICT(run_id, seq) DO NOTHING for idempotency.
func (s *Store) WriteViolation(ctx context.Context, v ir.ViolationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO violations (run_id, seq, op, property, message)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		v.RunID,
		v.Seq,
		v.Op,
		v.Property,
		v.Message,
	)
	if err != nil {
		return fmt.Errorf("write violation: %w", err)
	}
	return nil
}
