package store

import (
	"context"
	"strings"
	"testing"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/ir"
	"github.com/roach88/extcall/internal/queryir"
)

// seedQueryStore writes two runs: run-1 with events at steps 0..2 and
// run-2 with one event.
func seedQueryStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	ctx := context.Background()

	for _, run := range []ir.Run{createTestRun("run-1", 1), createTestRun("run-2", 10)} {
		if err := s.WriteRun(ctx, run); err != nil {
			t.Fatalf("WriteRun() failed: %v", err)
		}
	}
	recs := []ir.EventRecord{
		createTestEvent(t, "run-1", 0, 2, events.VLoad{Chunk: ast.Mint32, ID: "dev", Ofs: 0, Res: events.EVInt(1)}),
		createTestEvent(t, "run-1", 1, 3, events.VStore{Chunk: ast.Mint32, ID: "dev", Ofs: 4, Arg: events.EVInt(2)}),
		createTestEvent(t, "run-1", 2, 4, events.Annot{Text: "done"}),
		createTestEvent(t, "run-2", 0, 11, events.VLoad{Chunk: ast.Mint32, ID: "dev", Ofs: 0, Res: events.EVInt(7)}),
	}
	if err := s.AppendEvents(ctx, recs); err != nil {
		t.Fatalf("AppendEvents() failed: %v", err)
	}
	return s
}

func seqsOf(recs []ir.EventRecord) []int64 {
	seqs := make([]int64, len(recs))
	for i, r := range recs {
		seqs[i] = r.Seq
	}
	return seqs
}

func TestQueryEvents_Filters(t *testing.T) {
	s := seedQueryStore(t)
	run1 := queryir.Equals{Field: "run_id", Value: ir.IRString("run-1")}

	tests := []struct {
		name   string
		filter queryir.Predicate
		limit  int
		want   []int64
	}{
		{"all", nil, 0, []int64{2, 3, 4, 11}},
		{"one run", run1, 0, []int64{2, 3, 4}},
		{"kind across runs", queryir.Equals{Field: "kind", Value: ir.IRString("vload")}, 0, []int64{2, 11}},
		{"volatile accesses of a run", queryir.Where(run1, queryir.OneOf{
			Field:  "kind",
			Values: []ir.IRValue{ir.IRString("vload"), ir.IRString("vstore")},
		}), 0, []int64{2, 3}},
		{"step range", queryir.Where(run1, queryir.Between{Field: "step", Min: 1, Max: 2}), 0, []int64{3, 4}},
		{"limit", nil, 2, []int64{2, 3}},
		{"no match", queryir.Equals{Field: "kind", Value: ir.IRString("syscall")}, 0, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := s.QueryEvents(context.Background(), queryir.Select{From: queryir.Events, Filter: tt.filter, Limit: tt.limit})
			if err != nil {
				t.Fatalf("QueryEvents() failed: %v", err)
			}
			if recs == nil {
				t.Fatal("QueryEvents() = nil, want empty slice")
			}
			got := seqsOf(recs)
			if len(got) != len(tt.want) {
				t.Fatalf("QueryEvents() seqs = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("QueryEvents() seqs = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestQueryEvents_RejectsBadQueries(t *testing.T) {
	s := seedQueryStore(t)
	ctx := context.Background()

	if _, err := s.QueryEvents(ctx, queryir.Select{From: queryir.Violations}); err == nil {
		t.Error("QueryEvents(violations) succeeded, want error")
	}
	_, err := s.QueryEvents(ctx, queryir.Select{
		From:   queryir.Events,
		Filter: queryir.Equals{Field: "payload", Value: ir.IRString("{}")},
	})
	if err == nil || !strings.Contains(err.Error(), "no column") {
		t.Errorf("QueryEvents(payload filter) error = %v, want no column", err)
	}
}

func TestQueryViolations(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if err := s.WriteRun(ctx, createTestRun("run-1", 1)); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	for i, prop := range []string{"determinism", "memory-extends", "determinism"} {
		v := ir.ViolationRecord{RunID: "run-1", Seq: int64(i + 2), Op: "op", Property: prop, Message: "m"}
		if err := s.WriteViolation(ctx, v); err != nil {
			t.Fatalf("WriteViolation() failed: %v", err)
		}
	}

	got, err := s.QueryViolations(ctx, queryir.Select{
		From:   queryir.Violations,
		Filter: queryir.Equals{Field: "property", Value: ir.IRString("determinism")},
	})
	if err != nil {
		t.Fatalf("QueryViolations() failed: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 2 || got[1].Seq != 4 {
		t.Errorf("QueryViolations() = %+v, want seqs 2 and 4", got)
	}

	if _, err := s.QueryViolations(ctx, queryir.Select{From: queryir.Events}); err == nil {
		t.Error("QueryViolations(events) succeeded, want error")
	}
}
