package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/ir"
	"github.com/roach88/extcall/internal/queryir"
)

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.Run, error) {
	var run ir.Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, seed, seq, engine_version
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.Name, &run.Seed, &run.Seq, &run.EngineVersion)
	if err != nil {
		return ir.Run{}, err
	}
	return run, nil
}

// ListRuns returns all runs in creation order.
//
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, seed, seq, engine_version
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		var run ir.Run
		if err := rows.Scan(&run.ID, &run.Name, &run.Seed, &run.Seq, &run.EngineVersion); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns the event records of a run.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]ir.EventRecord, error) {
	return s.QueryEvents(ctx, queryir.Select{
		From:   queryir.Events,
		Filter: queryir.Equals{Field: "run_id", Value: ir.IRString(runID)},
	})
}

// ReadTrace decodes the stored trace of a run.
func (s *Store) ReadTrace(ctx context.Context, runID string) (events.Trace, error) {
	recs, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return nil, err
	}
	payloads := make([]ir.IRObject, len(recs))
	for i, rec := range recs {
		payloads[i] = rec.Payload
	}
	t, err := events.DecodeTrace(payloads)
	if err != nil {
		return nil, fmt.Errorf("decode trace of run %s: %w", runID, err)
	}
	return t, nil
}

// ReadViolations returns the violations recorded for a run, in seq order.
func (s *Store) ReadViolations(ctx context.Context, runID string) ([]ir.ViolationRecord, error) {
	return s.QueryViolations(ctx, queryir.Select{
		From:   queryir.Violations,
		Filter: queryir.Equals{Field: "run_id", Value: ir.IRString(runID)},
	})
}

// LastSeq returns the highest seq stored in any table, or 0 for an empty
// store. A clock resumed with engine.NewClockAt(LastSeq) never reuses a seq.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM runs
			UNION ALL SELECT seq FROM events
			UNION ALL SELECT seq FROM violations
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

func scanEvent(rows *sql.Rows) (ir.EventRecord, error) {
	var rec ir.EventRecord
	var payload string
	if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Step, &rec.Seq, &rec.Kind, &payload); err != nil {
		return ir.EventRecord{}, fmt.Errorf("scan event: %w", err)
	}
	obj, err := unmarshalPayload(payload)
	if err != nil {
		return ir.EventRecord{}, fmt.Errorf("event %s: %w", rec.ID, err)
	}
	rec.Payload = obj
	return rec, nil
}
