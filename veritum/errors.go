// Package veritum assembles a Veritum — a content-addressed Cube chain
// carrying one logical message — on top of the continuation splitter
// and the per-chunk crypto pipeline (spec §3 "Veritum", §4.6 "Veritum
// assembly and disassembly").
package veritum

import "fmt"

// Code identifies a class of veritum failure, mirroring the cube and
// continuation packages' Code/Error pattern.
type Code string

const (
	// CodeCryptoOptions: CryptoOptions specified no recipient scheme,
	// or more than the caller intended — exactly one of PresharedKey,
	// SingleRecipientPub, MultiRecipientPubs must be set.
	CodeCryptoOptions Code = "CryptoOptionsError"
	// CodeEncode: a chunk's field list could not be TLV-encoded into
	// plaintext bytes ahead of encryption.
	CodeEncode Code = "FieldEncodeError"
	// CodeEmpty: FromChunks was called with no chunks, or with a
	// headerChunks count that leaves no content chunk.
	CodeEmpty Code = "EmptyChunkListError"
)

// Error is the error type returned by veritum package operations.
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
