// Package cryptochunk implements the per-chunk encryption pipeline: four
// ciphertext framing variants selected by the caller's session state
// (spec §4.5), multi-recipient key-slot distribution, and the
// BLAKE2b-chained nonce sequence that links a chunk's ciphertext to the
// one before it.
package cryptochunk

import "fmt"

// Code identifies a class of cryptochunk failure, mirroring the cube
// package's Code/Error pattern. Only encryption-time misuse is raised
// synchronously (spec §7): decrypt failures are reported as a plain
// bool, never an error, because ciphertext corruption on an untrusted
// network is an expected, recoverable condition.
type Code string

const (
	// CodeNoRecipients: EncryptMultiRecipient called with zero
	// recipients.
	CodeNoRecipients Code = "NoRecipientsError"
	// CodeRandom: the system random source failed, or the key-slot
	// keystream cipher could not be constructed.
	CodeRandom Code = "RandomSourceError"
)

// Error is the error type returned by cryptochunk package operations.
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
