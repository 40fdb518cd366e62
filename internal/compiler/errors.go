package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is an environment declaration that could not be compiled.
// Field is the dotted path of the offending declaration, e.g.
// "global.table.init" or "external.read.args".
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos

	// More counts further CUE errors reported alongside this one.
	More int
}

func (e *CompileError) Error() string {
	msg := e.Field + ": " + e.Message
	if e.Pos.IsValid() {
		msg = fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), msg)
	}
	if e.More > 0 {
		msg += fmt.Sprintf(" (and %d more)", e.More)
	}
	return msg
}

// formatCUEError turns a CUE evaluation error into a CompileError at the
// path CUE reports, keeping the first error and counting the rest.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "cue"
	if path := first.Path(); len(path) > 0 {
		field = strings.Join(path, ".")
	}
	format, args := first.Msg()
	cerr := &CompileError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		More:    len(errs) - 1,
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		cerr.Pos = positions[0]
	}
	return cerr
}
