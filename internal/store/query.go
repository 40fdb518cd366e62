package store

import (
	"context"
	"fmt"

	"github.com/roach88/extcall/internal/ir"
	"github.com/roach88/extcall/internal/queryir"
	"github.com/roach88/extcall/internal/querysql"
)

// QueryEvents returns the event records selected by q, which must read
// from queryir.Events.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) QueryEvents(ctx context.Context, q queryir.Select) ([]ir.EventRecord, error) {
	if q.From != queryir.Events {
		return nil, fmt.Errorf("query events: select from %q", q.From)
	}
	sqlText, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	recs := []ir.EventRecord{}
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return recs, nil
}

// QueryViolations returns the violation records selected by q, which must
// read from queryir.Violations.
func (s *Store) QueryViolations(ctx context.Context, q queryir.Select) ([]ir.ViolationRecord, error) {
	if q.From != queryir.Violations {
		return nil, fmt.Errorf("query violations: select from %q", q.From)
	}
	sqlText, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	vs := []ir.ViolationRecord{}
	for rows.Next() {
		var v ir.ViolationRecord
		if err := rows.Scan(&v.RunID, &v.Seq, &v.Op, &v.Property, &v.Message); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		vs = append(vs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate violations: %w", err)
	}
	return vs, nil
}
