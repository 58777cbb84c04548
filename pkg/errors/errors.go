package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// Transfer errors
	ErrResolveFailed   ErrorCode = "RESOLVE_FAILED"
	ErrTransferFailed  ErrorCode = "TRANSFER_FAILED"
	ErrRemoteNotFound  ErrorCode = "REMOTE_NOT_FOUND"
	ErrRemoteBadStatus ErrorCode = "REMOTE_BAD_STATUS"

	// Manifest errors
	ErrManifestFetch ErrorCode = "MANIFEST_FETCH"
	ErrManifestParse ErrorCode = "MANIFEST_PARSE"
	ErrManifestField ErrorCode = "MANIFEST_FIELD"

	// Archive errors
	ErrArchiveOpen    ErrorCode = "ARCHIVE_OPEN"
	ErrArchiveEntry   ErrorCode = "ARCHIVE_ENTRY"
	ErrArchiveExtract ErrorCode = "ARCHIVE_EXTRACT"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"

	// Blacklist errors
	ErrPatternInvalid ErrorCode = "PATTERN_INVALID"

	// FileSystem errors
	ErrFileCreate    ErrorCode = "FILE_CREATE"
	ErrFileWrite     ErrorCode = "FILE_WRITE"
	ErrDirCreate     ErrorCode = "DIR_CREATE"
	ErrBackupFailed  ErrorCode = "BACKUP_FAILED"
	ErrCopyFailed    ErrorCode = "COPY_FAILED"
	ErrSymlinkCreate ErrorCode = "SYMLINK_CREATE"

	// Loader errors
	ErrInstallerFetch  ErrorCode = "INSTALLER_FETCH"
	ErrInstallerFailed ErrorCode = "INSTALLER_FAILED"
)

// PackupError represents a structured error with code and details
type PackupError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *PackupError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *PackupError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *PackupError) Is(target error) bool {
	var targetErr *PackupError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new PackupError with the given code and message
func New(code ErrorCode, message string) *PackupError {
	return &PackupError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new PackupError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *PackupError {
	return &PackupError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a PackupError
func Wrap(err error, code ErrorCode, message string) *PackupError {
	if err == nil {
		return nil
	}
	return &PackupError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *PackupError {
	if err == nil {
		return nil
	}
	return &PackupError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *PackupError) WithDetail(key string, value interface{}) *PackupError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var packupErr *PackupError
	if errors.As(err, &packupErr) {
		return packupErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a PackupError
func GetErrorCode(err error) ErrorCode {
	var packupErr *PackupError
	if errors.As(err, &packupErr) {
		return packupErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a PackupError
func GetErrorDetails(err error) map[string]interface{} {
	var packupErr *PackupError
	if errors.As(err, &packupErr) {
		return packupErr.Details
	}
	return nil
}
