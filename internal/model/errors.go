package model

import (
	"errors"
	"fmt"
)

// ErrorPrefix starts every pipeline error message so callers can tell
// loader failures apart from failures raised by the loaded program.
const ErrorPrefix = "[unrun]"

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	// KindConfig marks invalid or missing input.
	KindConfig ErrorKind = "config"

	// KindBundle marks a failure reported by the bundling engine.
	KindBundle ErrorKind = "bundle"

	// KindLoad marks a failure while evaluating generated code.
	KindLoad ErrorKind = "load"

	// KindExecutor marks a child process that could not be started.
	KindExecutor ErrorKind = "executor"
)

// Sentinel errors matched through errors.Is against an *Error of the same
// kind. They are never returned directly.
var (
	ErrConfig   = errors.New("configuration error")
	ErrBundle   = errors.New("bundle error")
	ErrLoad     = errors.New("load error")
	ErrExecutor = errors.New("executor error")
)

// Error is the pipeline error type. It carries the failure class, a
// human-readable message, and the underlying cause.
type Error struct {
	// Kind is the failure class.
	Kind ErrorKind

	// Message describes the failure. It does not include ErrorPrefix.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", ErrorPrefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", ErrorPrefix, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an *Error against the sentinel of its kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindConfig:
		return target == ErrConfig
	case KindBundle:
		return target == ErrBundle
	case KindLoad:
		return target == ErrLoad
	case KindExecutor:
		return target == ErrExecutor
	}
	return false
}

// NewConfigError reports invalid input. The message should name the
// offending field.
func NewConfigError(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// WrapBundleError wraps an engine diagnostic without altering its text.
func WrapBundleError(message string, err error) *Error {
	return &Error{Kind: KindBundle, Message: message, Err: err}
}

// WrapLoadError wraps an evaluation failure. codeLength distinguishes an
// empty artifact from a large one that failed at runtime.
func WrapLoadError(codeLength int, err error) *Error {
	return &Error{
		Kind:    KindLoad,
		Message: fmt.Sprintf("Import failed (code length: %d)", codeLength),
		Err:     err,
	}
}

// WrapExecutorError wraps a child process start failure.
func WrapExecutorError(message string, err error) *Error {
	return &Error{Kind: KindExecutor, Message: message, Err: err}
}

// ExitCode defines the CLI exit codes.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError covers configuration errors and unhandled pipeline
	// failures.
	ExitGeneralError ExitCode = 1
)

// CLIError carries an exit code through cobra's RunE error return so the
// CLI layer can translate it into an OS exit status.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description. Empty when the exit
	// code alone is the outcome (for example, a program's own exit status).
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface.
func (e *CLIError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("exit status %d", e.Code)
	}
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
