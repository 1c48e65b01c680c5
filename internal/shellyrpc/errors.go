package shellyrpc

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrorType represents the category of device API error that occurred
type ErrorType int

const (
	// ErrTypeUnreachable indicates the device did not respond at all
	// (refused, no route, reset)
	ErrTypeUnreachable ErrorType = iota
	// ErrTypeTimeout indicates the device did not respond in time
	ErrTypeTimeout
	// ErrTypeRejectedConfig indicates the device accepted the request but
	// reported the parameters invalid (JSON-RPC error response)
	ErrTypeRejectedConfig
	// ErrTypeHTTP indicates an HTTP-level error (non-200 status code)
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed response body
	ErrTypeParse
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeUnreachable:
		return "Device Unreachable"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeRejectedConfig:
		return "Rejected Config"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred while talking to a device
type DeviceError struct {
	Type       ErrorType // Category of error
	Method     string    // RPC method involved (e.g., "MQTT.SetConfig")
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	RPCCode    int       // JSON-RPC error code from the device (if applicable)
	Err        error     // Underlying error (if any)
	Retryable  bool      // Whether the error is transient and worth retrying
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	prefix := e.Type.String()
	if e.Method != "" {
		prefix = fmt.Sprintf("%s (%s)", prefix, e.Method)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// classifyTransportError maps a transport failure onto the device error
// taxonomy. Timeouts and connection resets are retryable, everything else
// is reported as plain unreachable.
func classifyTransportError(method string, err error) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &DeviceError{
			Type:      ErrTypeTimeout,
			Method:    method,
			Message:   "device did not respond in time",
			Err:       err,
			Retryable: true,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &DeviceError{
				Type:      ErrTypeTimeout,
				Method:    method,
				Message:   "device did not respond in time",
				Err:       err,
				Retryable: true,
			}
		}
		return classifyTransportError(method, urlErr.Err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &DeviceError{
				Type:      ErrTypeUnreachable,
				Method:    method,
				Message:   "device refused connection",
				Err:       err,
				Retryable: true,
			}
		case errors.Is(opErr.Err, syscall.ECONNRESET):
			return &DeviceError{
				Type:      ErrTypeUnreachable,
				Method:    method,
				Message:   "connection reset by device",
				Err:       err,
				Retryable: true,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH), errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &DeviceError{
				Type:      ErrTypeUnreachable,
				Method:    method,
				Message:   "device not reachable",
				Err:       err,
				Retryable: true,
			}
		}
	}

	return &DeviceError{
		Type:      ErrTypeUnreachable,
		Method:    method,
		Message:   "request failed",
		Err:       err,
		Retryable: true,
	}
}

// NewRejectedError creates a rejected-config error from a device RPC error
// response. The device already understood the request, so it is never
// retryable.
func NewRejectedError(method string, code int, message string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeRejectedConfig,
		Method:  method,
		Message: message,
		RPCCode: code,
	}
}

// NewHTTPError creates an HTTP-level error. Server errors are retryable.
func NewHTTPError(method string, statusCode int) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Method:     method,
		Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
	}
}

// NewParseError creates a parsing error
func NewParseError(method string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeParse,
		Method:  method,
		Message: "failed to parse device response",
		Err:     err,
	}
}

// IsUnreachable checks if an error means the device could not be reached
func IsUnreachable(err error) bool {
	if devErr, ok := err.(*DeviceError); ok {
		return devErr.Type == ErrTypeUnreachable || devErr.Type == ErrTypeTimeout
	}
	return false
}

// IsRejectedConfig checks if an error is a device-side config rejection
func IsRejectedConfig(err error) bool {
	if devErr, ok := err.(*DeviceError); ok {
		return devErr.Type == ErrTypeRejectedConfig
	}
	return false
}

// IsTimeout checks if an error is a device timeout
func IsTimeout(err error) bool {
	if devErr, ok := err.(*DeviceError); ok {
		return devErr.Type == ErrTypeTimeout
	}
	return false
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	if devErr, ok := err.(*DeviceError); ok {
		return devErr.Retryable
	}
	// Unknown errors are not retryable by default
	return false
}

// ShortMessage returns a concise, user-friendly message for an error
func ShortMessage(err error) string {
	devErr, ok := err.(*DeviceError)
	if !ok {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeUnreachable:
		return "Device unreachable - check WiFi association"
	case ErrTypeRejectedConfig:
		if devErr.RPCCode != 0 {
			return fmt.Sprintf("Device rejected configuration (code %d): %s", devErr.RPCCode, devErr.Message)
		}
		return "Device rejected configuration: " + devErr.Message
	case ErrTypeHTTP:
		return fmt.Sprintf("Device error (HTTP %d)", devErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse device response"
	default:
		return devErr.Message
	}
}
