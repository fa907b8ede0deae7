// Package errors provides structured error handling for repoindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (storage, locks, disk)
//   - 4XX: Validation errors (identity, input)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates storage and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates identity and input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound      = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid       = "ERR_102_CONFIG_INVALID"
	ErrCodeRepositoryIDMissing = "ERR_103_REPOSITORY_ID_MISSING"

	// IO errors (200-299)
	ErrCodeIOFailure      = "ERR_201_IO_FAILURE"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeCorruptIndex   = "ERR_205_CORRUPT_INDEX"
	ErrCodeLockHeld       = "ERR_206_LOCK_HELD"

	// Validation errors (400-499)
	ErrCodeIdentityMismatch = "ERR_401_IDENTITY_MISMATCH"
	ErrCodeInvalidInput     = "ERR_402_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeContextClosed = "ERR_502_CONTEXT_CLOSED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeLockHeld, ErrCodeIdentityMismatch, ErrCodeCorruptIndex,
		ErrCodeRepositoryIDMissing, ErrCodeContextClosed:
		return SeverityFatal
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Lock contention is the only condition worth waiting out: the holder
// may release the write lock at any moment.
func isRetryableCode(code string) bool {
	return code == ErrCodeLockHeld
}
