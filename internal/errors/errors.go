// Package errors provides structured error types for Hookstream.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStore      ErrorCategory = "STORE"
	ErrCategoryMigration  ErrorCategory = "MIGRATION"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategoryBroadcast  ErrorCategory = "BROADCAST"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidEvent     = "INVALID_EVENT"
	CodeMissingSessionID = "MISSING_SESSION_ID"
	CodeInvalidLimit     = "INVALID_LIMIT"

	// Store codes
	CodeInsertFailed  = "INSERT_FAILED"
	CodeOpenFailed    = "OPEN_FAILED"
	CodeNoBackupFound = "NO_BACKUP_FOUND"

	// Migration codes
	CodeSchemaProbeFailed = "SCHEMA_PROBE_FAILED"
	CodeBackfillFailed    = "BACKFILL_FAILED"

	// Query codes
	CodeScanFailed  = "SCAN_FAILED"
	CodeBusyTimeout = "BUSY_TIMEOUT"

	// Broadcast codes
	CodeObserverGone = "OBSERVER_GONE"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// HookstreamError is the structured error type used throughout the system.
type HookstreamError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *HookstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *HookstreamError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *HookstreamError) Is(target error) bool {
	var t *HookstreamError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new HookstreamError.
func New(category ErrorCategory, code, message string) *HookstreamError {
	return &HookstreamError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new HookstreamError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *HookstreamError {
	return &HookstreamError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *HookstreamError) WithDetails(details map[string]interface{}) *HookstreamError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var he *HookstreamError
	if errors.As(err, &he) {
		return he.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a HookstreamError.
func GetCategory(err error) ErrorCategory {
	var he *HookstreamError
	if errors.As(err, &he) {
		return he.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a HookstreamError.
func GetCode(err error) string {
	var he *HookstreamError
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStore && code == CodeInsertFailed:
		return true
	case category == ErrCategoryQuery && code == CodeBusyTimeout:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *HookstreamError {
	return New(ErrCategoryValidation, code, message)
}

func NewStoreError(code, message string, cause error) *HookstreamError {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewMigrationError(code, message string, cause error) *HookstreamError {
	return Wrap(ErrCategoryMigration, code, message, cause)
}

func NewQueryError(code, message string, cause error) *HookstreamError {
	return Wrap(ErrCategoryQuery, code, message, cause)
}

func NewInternalError(message string, cause error) *HookstreamError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

// ErrNoBackup is the sentinel for a restore attempted before any rollback.
var ErrNoBackup = New(ErrCategoryStore, CodeNoBackupFound, "no priority backup found; run rollback first")
