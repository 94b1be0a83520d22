package types

import "errors"

// ErrorKind classifies engine errors for propagation decisions.
type ErrorKind int

const (
	ErrParse ErrorKind = iota
	ErrType
	ErrDivisionByZero
	ErrUndefinedVariable
	ErrRuntime
	ErrMaxCallDepth
	ErrStopped
)

// String returns the taxonomy name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrParse:
		return "ParseError"
	case ErrType:
		return "TypeError"
	case ErrDivisionByZero:
		return "DivisionByZero"
	case ErrUndefinedVariable:
		return "UndefinedVariable"
	case ErrRuntime:
		return "RuntimeError"
	case ErrMaxCallDepth:
		return "MaxCallDepthExceeded"
	case ErrStopped:
		return "StoppedByUser"
	default:
		return "UnknownError"
	}
}

// EngineError is the error type produced by the expression engine and the
// IR executor. The message alone is what reaches logs and `last_error`.
type EngineError struct {
	Kind    ErrorKind
	Message string
}

func (e *EngineError) Error() string {
	return e.Message
}

// ErrStoppedByUser is the distinguished cancellation error. It bypasses
// try/catch handlers and is logged at Info level.
var ErrStoppedByUser = &EngineError{Kind: ErrStopped, Message: "Execution stopped by user"}

// NewParseError creates a ParseError.
func NewParseError(msg string) *EngineError {
	return &EngineError{Kind: ErrParse, Message: msg}
}

// NewTypeError creates a TypeError.
func NewTypeError(msg string) *EngineError {
	return &EngineError{Kind: ErrType, Message: msg}
}

// NewDivisionByZeroError creates a DivisionByZero error.
func NewDivisionByZeroError(msg string) *EngineError {
	return &EngineError{Kind: ErrDivisionByZero, Message: msg}
}

// NewUndefinedVariableError creates an UndefinedVariable error for name.
func NewUndefinedVariableError(name string) *EngineError {
	return &EngineError{Kind: ErrUndefinedVariable, Message: "Undefined variable: " + name}
}

// NewRuntimeError creates a generic RuntimeError.
func NewRuntimeError(msg string) *EngineError {
	return &EngineError{Kind: ErrRuntime, Message: msg}
}

// NewMaxCallDepthError creates a MaxCallDepthExceeded error.
func NewMaxCallDepthError(msg string) *EngineError {
	return &EngineError{Kind: ErrMaxCallDepth, Message: msg}
}

// KindOf extracts the ErrorKind from err, defaulting to RuntimeError for
// errors that did not originate in the engine.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ErrRuntime
}

// IsStopped reports whether err is the user-cancellation error.
func IsStopped(err error) bool {
	return KindOf(err) == ErrStopped
}
