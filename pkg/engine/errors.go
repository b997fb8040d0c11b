package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error raised during a resolution pass.
type ErrorClass string

const (
	// ErrorClassUsage indicates a user-authoring mistake in a plus file.
	// Examples: unknown config, malformed extends, conflicting environments.
	// Usage errors invalidate the whole pass and are never silently recovered.
	ErrorClassUsage ErrorClass = "usage"

	// ErrorClassLoad indicates that a plus file could not be loaded.
	// Examples: Starlark syntax error, invalid CUE, malformed YAML.
	ErrorClassLoad ErrorClass = "load"

	// ErrorClassInvariant indicates an internal defect.
	// Invariant violations are raised with panic and must not be recovered.
	ErrorClassInvariant ErrorClass = "invariant"
)

// Error represents a classified resolution error with context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable, file-qualified error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// File is the plus file (as shown to the user) that caused the error, if known.
	File string `json:"file,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Class, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewUsageError creates a new usage error.
func NewUsageError(message string) *Error {
	return &Error{
		Class:   ErrorClassUsage,
		Message: message,
	}
}

// Usagef creates a new usage error with a formatted message.
func Usagef(format string, args ...interface{}) *Error {
	return NewUsageError(fmt.Sprintf(format, args...))
}

// NewLoadError creates a new load error for the given file.
func NewLoadError(file string, err error) *Error {
	return &Error{
		Class:   ErrorClassLoad,
		Message: fmt.Sprintf("failed to load %s", file),
		Code:    ErrCodeLoadFailed,
		File:    file,
		Err:     err,
	}
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithFile adds file context to an error.
func (e *Error) WithFile(file string) *Error {
	e.File = file
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsUsage returns true if the error is classified as a usage error.
func IsUsage(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassUsage
	}
	return false
}

// IsLoad returns true if the error is classified as a load error.
func IsLoad(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassLoad
	}
	return false
}

// CodeOf returns the code of the first *Error in the chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Assert panics with an invariant error when cond is false.
func Assert(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	panic(&Error{
		Class:   ErrorClassInvariant,
		Message: fmt.Sprintf(format, args...),
		Code:    ErrCodeInternal,
	})
}

// Common error codes.
const (
	ErrCodeUnknownConfig     = "UNKNOWN_CONFIG"
	ErrCodeGlobalPlacement   = "GLOBAL_PLACEMENT"
	ErrCodeExtendsLoop       = "EXTENDS_LOOP"
	ErrCodeInvalidExtends    = "INVALID_EXTENDS"
	ErrCodeEnvConflict       = "ENV_CONFLICT"
	ErrCodeCumulativeMix     = "CUMULATIVE_MIX"
	ErrCodeCumulativeType    = "CUMULATIVE_TYPE"
	ErrCodeInvalidMeta       = "INVALID_META"
	ErrCodeInvalidEffect     = "INVALID_EFFECT"
	ErrCodeInvalidExports    = "INVALID_EXPORTS"
	ErrCodeInvalidImport     = "INVALID_IMPORT"
	ErrCodeUnresolvedImport  = "UNRESOLVED_IMPORT"
	ErrCodeReservedCharacter = "RESERVED_CHARACTER"
	ErrCodeInvalidValue      = "INVALID_VALUE"
	ErrCodeLoadFailed        = "LOAD_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)
