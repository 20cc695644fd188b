package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies failures by origin.
type ErrorKind int

const (
	// KindUnknown uncategorized failure.
	KindUnknown ErrorKind = iota
	// KindLocal storage failure: disk full, corruption, serialization.
	KindLocal
	// KindRemote market data failure: network, malformed response, timeout.
	KindRemote
	// KindValidation rejected input or rule violation.
	KindValidation
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// ErrorCode refines validation failures.
type ErrorCode string

const (
	CodeInvalidAmount        ErrorCode = "invalid_amount"
	CodeOutOfBounds          ErrorCode = "out_of_bounds"
	CodeInsufficientFunds    ErrorCode = "insufficient_funds"
	CodeInsufficientHoldings ErrorCode = "insufficient_holdings"
	CodeUnknown              ErrorCode = "unknown"
)

// Error is the error type returned across the engine boundary.
type Error struct {
	Kind ErrorKind
	Code ErrorCode
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg != "" {
			msg = msg + ": " + e.Err.Error()
		} else {
			msg = e.Err.Error()
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// LocalError wraps a storage failure.
func LocalError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindLocal, Op: op, Err: err}
}

// RemoteError wraps a market data failure.
func RemoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindRemote, Op: op, Err: err}
}

// ValidationError builds a rejected-input failure.
func ValidationError(code ErrorCode, msg string) error {
	return &Error{Kind: KindValidation, Code: code, Msg: msg}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the validation code of err, or "" when err is not a validation failure.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindValidation {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err is a validation failure with the given code.
func IsValidation(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
