package wifi

import "fmt"

// ErrorType represents the category of WiFi control error that occurred
type ErrorType int

const (
	// ErrTypeAdapterUnavailable indicates no usable WiFi interface is present.
	// This is fatal to a whole provisioning batch.
	ErrTypeAdapterUnavailable ErrorType = iota
	// ErrTypeConnectTimeout indicates an association did not complete in time
	ErrTypeConnectTimeout
	// ErrTypeAuthFailure indicates the network rejected the credentials
	ErrTypeAuthFailure
	// ErrTypeRestoreFailed indicates the original network could not be restored.
	// This is reported as a warning, never raised as fatal.
	ErrTypeRestoreFailed
	// ErrTypeCommandFailed indicates the platform WiFi tool itself failed
	ErrTypeCommandFailed
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeAdapterUnavailable:
		return "Adapter Unavailable"
	case ErrTypeConnectTimeout:
		return "Connect Timeout"
	case ErrTypeAuthFailure:
		return "Authentication Failure"
	case ErrTypeRestoreFailed:
		return "Restore Failed"
	case ErrTypeCommandFailed:
		return "Command Failed"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error represents an error from the host WiFi control layer
type Error struct {
	Type    ErrorType // Category of error
	SSID    string    // Network involved (empty for adapter-level errors)
	Message string    // Human-readable error message
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewAdapterError creates an adapter-unavailable error
func NewAdapterError(message string, err error) *Error {
	return &Error{Type: ErrTypeAdapterUnavailable, Message: message, Err: err}
}

// NewTimeoutError creates a connect-timeout error for the given network
func NewTimeoutError(ssid string) *Error {
	return &Error{
		Type:    ErrTypeConnectTimeout,
		SSID:    ssid,
		Message: fmt.Sprintf("association with %q did not complete in time", ssid),
	}
}

// NewAuthError creates an authentication-failure error for the given network
func NewAuthError(ssid string) *Error {
	return &Error{
		Type:    ErrTypeAuthFailure,
		SSID:    ssid,
		Message: fmt.Sprintf("network %q rejected the supplied credentials", ssid),
	}
}

// NewRestoreError creates a restore-failed error
func NewRestoreError(ssid string, err error) *Error {
	return &Error{
		Type:    ErrTypeRestoreFailed,
		SSID:    ssid,
		Message: fmt.Sprintf("could not restore original network %q", ssid),
		Err:     err,
	}
}

// NewCommandError creates a platform-tool failure error
func NewCommandError(message string, err error) *Error {
	return &Error{Type: ErrTypeCommandFailed, Message: message, Err: err}
}

// IsAdapterUnavailable checks if an error is an adapter-unavailable error
func IsAdapterUnavailable(err error) bool {
	if wErr, ok := err.(*Error); ok {
		return wErr.Type == ErrTypeAdapterUnavailable
	}
	return false
}

// IsConnectTimeout checks if an error is a connect-timeout error
func IsConnectTimeout(err error) bool {
	if wErr, ok := err.(*Error); ok {
		return wErr.Type == ErrTypeConnectTimeout
	}
	return false
}

// IsAuthFailure checks if an error is an authentication failure
func IsAuthFailure(err error) bool {
	if wErr, ok := err.(*Error); ok {
		return wErr.Type == ErrTypeAuthFailure
	}
	return false
}

// IsRestoreFailed checks if an error is a restore failure
func IsRestoreFailed(err error) bool {
	if wErr, ok := err.(*Error); ok {
		return wErr.Type == ErrTypeRestoreFailed
	}
	return false
}
