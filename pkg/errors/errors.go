package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "SLH1001"
	ErrCodeConnectionTimeout    ErrorCode = "SLH1002"
	ErrCodeAuthenticationFailed ErrorCode = "SLH1003"
	ErrCodeNetworkUnavailable   ErrorCode = "SLH1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound   ErrorCode = "SLH2001"
	ErrCodeConfigInvalid    ErrorCode = "SLH2002"
	ErrCodeConfigPermission ErrorCode = "SLH2003"

	// Definition sync errors (3xxx)
	ErrCodeRepoNotFound     ErrorCode = "SLH3001"
	ErrCodeRepoAccessDenied ErrorCode = "SLH3002"
	ErrCodeRepoSyncFailed   ErrorCode = "SLH3003"

	// Pipeline errors (4xxx)
	ErrCodePipelineCycle       ErrorCode = "SLH4001"
	ErrCodePipelineUnknownInput ErrorCode = "SLH4002"
	ErrCodePipelineDuplicate   ErrorCode = "SLH4003"
	ErrCodeRefreshFailed       ErrorCode = "SLH4004"
	ErrCodeRefreshSkipped      ErrorCode = "SLH4005"

	// Store and stream errors (5xxx)
	ErrCodeTableNotFound  ErrorCode = "SLH5001"
	ErrCodeTableExists    ErrorCode = "SLH5002"
	ErrCodeRowNotFound    ErrorCode = "SLH5003"
	ErrCodeDuplicateKey   ErrorCode = "SLH5004"
	ErrCodeSnapshotFailed ErrorCode = "SLH5005"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "SLH6001"
	ErrCodeInvalidInput     ErrorCode = "SLH6002"
	ErrCodeRequiredField    ErrorCode = "SLH6003"

	// Security errors (7xxx)
	ErrCodeEncryptionFailed   ErrorCode = "SLH7001"
	ErrCodeCredentialsMissing ErrorCode = "SLH7002"

	// Export errors (8xxx)
	ErrCodeExportFailed ErrorCode = "SLH8001"
	ErrCodeSQLExecution ErrorCode = "SLH8002"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "SLH9001"
	ErrCodeTimeout            ErrorCode = "SLH9002"
	ErrCodeResourceExhausted  ErrorCode = "SLH9003"
	ErrCodeServiceUnavailable ErrorCode = "SLH9004"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // System failure, requires immediate attention
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed, but system continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit its context
	if ae, ok := err.(*AppError); ok {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// IsRecoverable reports whether err (or any error it wraps) is a recoverable
// AppError.
func IsRecoverable(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Recoverable
	}
	return false
}

// GetErrorCode returns the code of err if it is an AppError, ErrCodeInternal
// otherwise.
func GetErrorCode(err error) ErrorCode {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrCodeInternal
}

// ConnectionError creates a recoverable connection error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).AsRecoverable()
}

// ValidationError creates a validation error
func ValidationError(message string) *AppError {
	return New(ErrCodeValidationFailed, message)
}

// RefreshError creates a pipeline refresh error for a derived table
func RefreshError(table string, cause error) *AppError {
	return Wrap(cause, ErrCodeRefreshFailed, fmt.Sprintf("refresh of %s failed", table)).
		WithContext("table", table).
		AsRecoverable()
}

func captureStack() string {
	var b strings.Builder
	pcs := make([]uintptr, 10)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return b.String()
}
