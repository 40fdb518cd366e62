package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/extcall/internal/ir"
	"github.com/roach88/extcall/internal/queryir"
)

func TestCompile_RunEvents(t *testing.T) {
	compiler := NewSQLCompiler()

	query := queryir.Select{
		From:   queryir.Events,
		Filter: queryir.Equals{Field: "run_id", Value: ir.IRString("run-1")},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, run_id, step, seq, kind, payload FROM events WHERE run_id = ? ORDER BY seq ASC, id COLLATE BINARY ASC",
		sql)
	assert.NotContains(t, sql, "run-1")
	assert.Equal(t, []any{"run-1"}, params)
}

func TestCompile_Violations(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(&queryir.Select{
		From:   queryir.Violations,
		Filter: &queryir.Equals{Field: "property", Value: ir.IRString("determinism")},
		Limit:  5,
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT run_id, seq, op, property, message FROM violations WHERE property = ? ORDER BY seq ASC, op COLLATE BINARY ASC LIMIT ?",
		sql)
	assert.Equal(t, []any{"determinism", 5}, params)
}

func TestCompile_NoFilter(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(queryir.Select{From: queryir.Events})
	require.NoError(t, err)

	assert.NotContains(t, sql, "WHERE")
	assert.Contains(t, sql, "ORDER BY")
	assert.Empty(t, params)
}

func TestCompile_Predicates(t *testing.T) {
	tests := []struct {
		name       string
		filter     queryir.Predicate
		wantWhere  string
		wantParams []any
	}{
		{
			name: "one of",
			filter: queryir.OneOf{Field: "kind", Values: []ir.IRValue{
				ir.IRString("vload"), ir.IRString("vstore"),
			}},
			wantWhere:  "kind IN (?, ?)",
			wantParams: []any{"vload", "vstore"},
		},
		{
			name:       "between",
			filter:     &queryir.Between{Field: "step", Min: 2, Max: 4},
			wantWhere:  "step BETWEEN ? AND ?",
			wantParams: []any{int64(2), int64(4)},
		},
		{
			name:       "integer equals",
			filter:     queryir.Equals{Field: "seq", Value: ir.IRInt(9)},
			wantWhere:  "seq = ?",
			wantParams: []any{int64(9)},
		},
		{
			name: "and",
			filter: queryir.And{Predicates: []queryir.Predicate{
				queryir.Equals{Field: "run_id", Value: ir.IRString("r")},
				queryir.Equals{Field: "kind", Value: ir.IRString("annot")},
			}},
			wantWhere:  "run_id = ? AND kind = ?",
			wantParams: []any{"r", "annot"},
		},
		{
			name: "nested and",
			filter: queryir.And{Predicates: []queryir.Predicate{
				queryir.Equals{Field: "run_id", Value: ir.IRString("r")},
				queryir.And{Predicates: []queryir.Predicate{
					queryir.Between{Field: "step", Min: 0, Max: 1},
				}},
			}},
			wantWhere:  "run_id = ? AND (step BETWEEN ? AND ?)",
			wantParams: []any{"r", int64(0), int64(1)},
		},
		{
			name:      "empty and",
			filter:    queryir.And{},
			wantWhere: "1 = 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := NewSQLCompiler().Compile(queryir.Select{From: queryir.Events, Filter: tt.filter})
			require.NoError(t, err)
			assert.Contains(t, sql, " WHERE "+tt.wantWhere+" ORDER BY ")
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestCompile_RejectsInvalidQueries(t *testing.T) {
	tests := []struct {
		name  string
		query queryir.Query
		want  string
	}{
		{"nil", nil, "nil query"},
		{"unknown table", queryir.Select{From: "runs; DROP TABLE events"}, "unknown table"},
		{"unknown column", queryir.Select{
			From:   queryir.Events,
			Filter: queryir.Equals{Field: "1=1 OR kind", Value: ir.IRString("x")},
		}, "no column"},
		{"bad value", queryir.Select{
			From:   queryir.Events,
			Filter: queryir.Equals{Field: "kind", Value: ir.IRArray{}},
		}, "only strings and integers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewSQLCompiler().Compile(tt.query)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompile_Deterministic(t *testing.T) {
	query := queryir.Select{
		From: queryir.Events,
		Filter: queryir.Where(
			queryir.Equals{Field: "run_id", Value: ir.IRString("r")},
			queryir.OneOf{Field: "kind", Values: []ir.IRValue{ir.IRString("syscall")}},
		),
	}

	sql1, params1, err := NewSQLCompiler().Compile(query)
	require.NoError(t, err)
	sql2, params2, err := NewSQLCompiler().Compile(query)
	require.NoError(t, err)

	assert.Equal(t, sql1, sql2)
	assert.Equal(t, params1, params2)
}
