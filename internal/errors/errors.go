// Package errors provides a lightweight structured error type (PxBuildError)
// for category-based classification of build failures in the CLI and preview server.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCategory represents the category of a pxbuild error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Bundling pass errors
	CategoryResolve   ErrorCategory = "resolve"
	CategoryTransform ErrorCategory = "transform"
	CategoryInvariant ErrorCategory = "invariant"

	// Publication and persistence errors
	CategorySink    ErrorCategory = "sink"
	CategoryNetwork ErrorCategory = "network"
	CategoryStorage ErrorCategory = "storage"

	// Runtime and infrastructure errors
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// PxBuildError is a structured error with category, severity and context
type PxBuildError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for PxBuildError
type ContextFields map[string]any

// Error implements the error interface
func (e *PxBuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *PxBuildError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *PxBuildError) WithContext(key string, value any) *PxBuildError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new PxBuildError
func New(category ErrorCategory, severity ErrorSeverity, message string) *PxBuildError {
	return &PxBuildError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new PxBuildError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *PxBuildError {
	return &PxBuildError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// As extracts the outermost PxBuildError from an error chain.
func As(err error) (*PxBuildError, bool) {
	var pe *PxBuildError
	if stdErrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if pe, ok := As(err); ok {
		return pe.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a PxBuildError
func GetCategory(err error) ErrorCategory {
	if pe, ok := As(err); ok {
		return pe.Category
	}
	return CategoryInternal
}
