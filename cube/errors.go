package cube

import "fmt"

// Code identifies a class of Cube failure, grounded on the teacher's
// consensus.ErrorCode/TxError pattern (string-const code + ctor).
type Code string

const (
	// CodeFieldStructure: field list does not start/end with the
	// declared positionals in order (spec §4.1 step 1).
	CodeFieldStructure Code = "FieldStructureError"
	// CodeFieldSize: payload overflows the space between leading and
	// trailing positionals (spec §4.1 step 7), or a TLV length exceeds
	// the 10-bit field.
	CodeFieldSize Code = "FieldSizeError"
	// CodeBinaryLength: blob is not exactly CubeSize bytes.
	CodeBinaryLength Code = "BinaryLengthError"
	// CodeSignature: signature verification failed for a signed type.
	CodeSignature Code = "SignatureError"
	// CodeType: an operation was attempted against the wrong Cube type
	// (e.g. VerifySignature on a FROZEN cube).
	CodeType Code = "TypeError"
	// CodeHashcash: the compiled blob's hash does not meet the
	// configured trailing-zero-bit difficulty (spec §4.3 Policy).
	CodeHashcash Code = "HashcashError"
)

// Error is the error type returned by cube package operations.
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
