package queryir

import "github.com/roach88/extcall/internal/ir"

// Table names a stored relation.
type Table string

const (
	Events     Table = "events"
	Violations Table = "violations"
)

// ColumnType is the storage class of a filterable column.
type ColumnType int

const (
	Text ColumnType = iota
	Integer
)

func (t ColumnType) String() string {
	if t == Integer {
		return "integer"
	}
	return "text"
}

// schema lists the filterable columns of each table. Event payloads are
// canonical JSON and are not filterable.
var schema = map[Table]map[string]ColumnType{
	Events: {
		"id":     Text,
		"run_id": Text,
		"step":   Integer,
		"seq":    Integer,
		"kind":   Text,
	},
	Violations: {
		"run_id":   Text,
		"seq":      Integer,
		"op":       Text,
		"property": Text,
		"message":  Text,
	},
}

// Column reports the type of a filterable column of t.
func Column(t Table, field string) (ColumnType, bool) {
	cols, ok := schema[t]
	if !ok {
		return 0, false
	}
	typ, ok := cols[field]
	return typ, ok
}

// Query is a sealed interface; Select is its only form.
type Query interface {
	queryNode()
}

// Predicate is a sealed interface over row conditions.
type Predicate interface {
	predicateNode()
}

// Select reads the rows of From that satisfy Filter, in the table's
// stable order (seq first).
//
//	Select{
//	  From: Events,
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "run_id", Value: ir.IRString("0190...")},
//	    OneOf{Field: "kind", Values: []ir.IRValue{ir.IRString("vload"), ir.IRString("vstore")}},
//	  }},
//	}
//
// reads the volatile accesses of one run.
type Select struct {
	From   Table
	Filter Predicate // nil = every row
	Limit  int       // 0 = no limit
}

func (Select) queryNode() {}

// Equals holds when the field equals Value.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// OneOf holds when the field equals any of Values.
type OneOf struct {
	Field  string
	Values []ir.IRValue
}

func (OneOf) predicateNode() {}

// Between holds when Min <= field <= Max, for integer fields.
type Between struct {
	Field string
	Min   int64
	Max   int64
}

func (Between) predicateNode() {}

// And holds when all of Predicates hold. An empty And always holds.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where conjoins the non-nil predicates ps. It returns nil when none is
// left, so the result can go straight into Select.Filter.
func Where(ps ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}
