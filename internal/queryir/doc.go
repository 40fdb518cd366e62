// Package queryir is the filter language over stored runs.
//
// A query selects the rows of one stored table (events or violations)
// that satisfy a predicate built from Equals, OneOf, Between and And.
// Queries are plain values: the trace command builds them from its
// flags and the store compiles them to SQL through querysql.
//
// Query and Predicate are sealed interfaces using the marker method
// pattern, so backends can switch exhaustively over the node types:
//
//	switch q := query.(type) {
//	case Select, *Select:
//	    // the only query form
//	}
//
// Fields are checked against a fixed schema before any backend sees
// them. Validate reports every problem of a query at once; a query that
// validates compiles.
//
// All literal values are ir.IRValue, so filters never carry floats and
// compare the way stored values were canonically encoded.
package queryir
