package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess  Code = 0
	CodeInternal Code = 1
	CodeUsage    Code = 2

	// Vault-side failures. These mirror the revert taxonomy of the Trade
	// contract so the CLI and the tests can match on them.
	CodeUnauthorized        Code = 10
	CodeHashMismatch        Code = 11
	CodeInvalidSignature    Code = 12
	CodeSwapFailed          Code = 13
	CodeInsufficientBalance Code = 14
	CodeUnsupportedAsset    Code = 15
	CodeValueMismatch       Code = 16
	CodeAlreadyInitialized  Code = 17

	// Client-side failures.
	CodeUnavailable Code = 20
	CodeSigner      Code = 21
	// CodeTimeout means confirmation was not observed within the deadline.
	// It is NOT a definitive failure: the transaction may still be mined
	// later, so callers must re-query chain state before retrying.
	CodeTimeout     Code = 22
	CodeAuth        Code = 23
	CodeRateLimited Code = 24
)

// Error is a typed error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if typed, ok := As(err); ok {
		return typed.Code == code
	}
	return false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if typed, ok := As(err); ok {
		return int(typed.Code)
	}
	return int(CodeInternal)
}
