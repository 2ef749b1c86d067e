// Package continuation implements the splitter/recombiner that packs a
// field list of arbitrary size into the minimum number of Cube-sized
// chunks, wiring them together with CONTINUED_IN references placed at
// the head of the first chunk, spilling into the head of later chunks
// when the first chunk's reference set alone won't fit (spec §4.4).
package continuation

import "fmt"

// Code identifies a class of continuation failure, mirroring the
// cube package's Code/Error pattern.
type Code string

const (
	// CodeOverflow: the reference set required to address every
	// content chunk cannot be distributed across the available chunks
	// even after spilling into every chunk that can hold one.
	CodeOverflow Code = "ReferenceOverflowError"
	// CodePlanning: the reference-count fixed point did not converge.
	CodePlanning Code = "PlanningError"
	// CodeEmpty: Recombine was called with no chunks.
	CodeEmpty Code = "EmptyChunkListError"
)

// Error is the error type returned by continuation package operations.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func newErr(code Code, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
