package errors

import (
	stderrors "errors"
	"fmt"
)

// DocragError is the structured error type for docrag.
// It carries the failing stage and offending identifier so callers can log and abort.
type DocragError struct {
	// Code is the unique error code (e.g., "ERR_202_INDEX_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Service, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the caller may re-invoke the operation.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *DocragError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DocragError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with DocragError.
func (e *DocragError) Is(target error) bool {
	if t, ok := target.(*DocragError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *DocragError) WithDetail(key, value string) *DocragError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithStage records the pipeline stage that failed.
func (e *DocragError) WithStage(stage string) *DocragError {
	return e.WithDetail("stage", stage)
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *DocragError) WithSuggestion(suggestion string) *DocragError {
	e.Suggestion = suggestion
	return e
}

// New creates a new DocragError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *DocragError {
	return &DocragError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DocragError from an existing error.
// The error's message becomes the DocragError message.
func Wrap(code string, err error) *DocragError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons by code.
var (
	ErrEmptyInput        = New(ErrCodeEmptyInput, "empty input", nil)
	ErrInvalidInput      = New(ErrCodeInvalidInput, "invalid input", nil)
	ErrEmbeddingService  = New(ErrCodeEmbeddingService, "embedding service failed", nil)
	ErrGenerationService = New(ErrCodeGenerationService, "generation service failed", nil)
	ErrPersistence       = New(ErrCodePersistence, "persistence failed", nil)
	ErrIndexNotFound     = New(ErrCodeIndexNotFound, "index not found", nil)
	ErrIndexCorrupt      = New(ErrCodeIndexCorrupt, "index corrupt", nil)
	ErrQueryEmbedding    = New(ErrCodeQueryEmbedding, "query embedding failed", nil)
	ErrEmptyIndex        = New(ErrCodeEmptyIndex, "index is empty", nil)
	ErrConfigInvalid     = New(ErrCodeConfigInvalid, "invalid configuration", nil)
)

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *DocragError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *DocragError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *DocragError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first DocragError in err's chain.
func As(err error) (*DocragError, bool) {
	var de *DocragError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain holds a DocragError with Retryable set.
func IsRetryable(err error) bool {
	if de, ok := As(err); ok {
		return de.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if de, ok := As(err); ok {
		return de.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a DocragError.
// Returns empty string if none is in the chain.
func GetCode(err error) string {
	if de, ok := As(err); ok {
		return de.Code
	}
	return ""
}

// GetCategory extracts the category from a DocragError.
// Returns empty string if none is in the chain.
func GetCategory(err error) Category {
	if de, ok := As(err); ok {
		return de.Category
	}
	return ""
}

// GetStage returns the "stage" detail of a DocragError, if any.
func GetStage(err error) string {
	if de, ok := As(err); ok {
		return de.Details["stage"]
	}
	return ""
}
