package queryir

import (
	"fmt"

	"github.com/roach88/extcall/internal/ir"
)

// ValidationResult lists what is wrong with a query.
type ValidationResult struct {
	// Valid reports that the query can be compiled by any backend.
	Valid bool

	// Problems is empty when Valid is true.
	Problems []string
}

// Validate checks a query against the schema: the table must exist,
// every field must be a filterable column of it, and every literal must
// match the column's type.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	table    Table
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addProblem("nil query")
			return
		}
		v.validateSelect(*query)
	case nil:
		v.addProblem("nil query")
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if _, ok := schema[sel.From]; !ok {
		v.addProblem("unknown table %q", sel.From)
		return
	}
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	v.table = sel.From
	v.validatePredicate(sel.Filter)
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		// No filter.
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case OneOf:
		v.validateOneOf(pred)
	case *OneOf:
		v.validateOneOf(*pred)
	case Between:
		v.validateBetween(pred)
	case *Between:
		v.validateBetween(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

// column returns the type of field, recording a problem if it is not a
// column of the current table.
func (v *validator) column(field string) (ColumnType, bool) {
	typ, ok := Column(v.table, field)
	if !ok {
		v.addProblem("%s has no column %q", v.table, field)
	}
	return typ, ok
}

func (v *validator) validateValue(field string, typ ColumnType, val ir.IRValue) {
	switch val.(type) {
	case ir.IRString:
		if typ != Text {
			v.addProblem("field %q is %s, compared to a string", field, typ)
		}
	case ir.IRInt:
		if typ != Integer {
			v.addProblem("field %q is %s, compared to an integer", field, typ)
		}
	case nil:
		v.addProblem("field %q compared to nothing", field)
	default:
		v.addProblem("field %q compared to %T; only strings and integers are comparable", field, val)
	}
}

func (v *validator) validateEquals(eq Equals) {
	if typ, ok := v.column(eq.Field); ok {
		v.validateValue(eq.Field, typ, eq.Value)
	}
}

func (v *validator) validateOneOf(in OneOf) {
	typ, ok := v.column(in.Field)
	if !ok {
		return
	}
	if len(in.Values) == 0 {
		v.addProblem("field %q compared to an empty set", in.Field)
	}
	for _, val := range in.Values {
		v.validateValue(in.Field, typ, val)
	}
}

func (v *validator) validateBetween(b Between) {
	typ, ok := v.column(b.Field)
	if !ok {
		return
	}
	if typ != Integer {
		v.addProblem("field %q is %s; ranges need an integer field", b.Field, typ)
	}
	if b.Min > b.Max {
		v.addProblem("field %q has an empty range %d..%d", b.Field, b.Min, b.Max)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}
