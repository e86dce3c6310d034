// Package errors provides a lightweight structured error type (DocPagesError)
// for category-based classification and exit-code mapping in the CLI.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a docpages error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// External system integration errors
	CategoryBuilder ErrorCategory = "builder"
	CategoryGit     ErrorCategory = "git"
	CategoryPublish ErrorCategory = "publish"

	// Runtime and infrastructure errors
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryDaemon     ErrorCategory = "daemon"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// DocPagesError is a structured error with category, retryability, and context
type DocPagesError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for DocPagesError
type ContextFields map[string]any

// Error implements the error interface
func (e *DocPagesError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *DocPagesError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *DocPagesError) WithContext(key string, value any) *DocPagesError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new DocPagesError
func New(category ErrorCategory, severity ErrorSeverity, message string) *DocPagesError {
	return &DocPagesError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new DocPagesError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *DocPagesError {
	return &DocPagesError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// WrapRetryable creates a new retryable DocPagesError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *DocPagesError {
	return &DocPagesError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if dpe, ok := err.(*DocPagesError); ok {
		return dpe.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if dpe, ok := err.(*DocPagesError); ok {
		return dpe.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a DocPagesError
func GetCategory(err error) ErrorCategory {
	if dpe, ok := err.(*DocPagesError); ok {
		return dpe.Category
	}
	return CategoryInternal
}
