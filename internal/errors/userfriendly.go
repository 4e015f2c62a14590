package errors

import (
	"fmt"
	"strings"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapNetworkError wraps network errors with user-friendly context
func WrapNetworkError(err error, ip string, port int) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to communicate with device at %s:%d", ip, port),
		Reason:  extractNetworkReason(err),
		Hint:    "Device may not be a CIP/EtherNet-IP device, or there may be a network connectivity issue",
		Try:     fmt.Sprintf("cipstack identity --ip %s --port %d", ip, port),
		Err:     err,
	}
}

// WrapCIPError wraps CIP protocol errors with user-friendly context
func WrapCIPError(err error, operation string) error {
	if err == nil {
		return nil
	}

	hint := "The device may not support this operation, or the CIP path may be incorrect"
	var conn *ConnectionError
	if As(err, &conn) {
		hint = "The device refused the connection; retry without --connected or lower connection.network.maximum_size"
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("CIP operation failed: %s", operation),
		Reason:  extractCIPReason(err),
		Hint:    hint,
		Try:     "Check the class/instance/attribute values, or run: cipstack classes",
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Generate a commented starting point with the config init command",
		Try:     fmt.Sprintf("cipstack config init %s.example", configPath),
		Err:     err,
	}
}

func extractNetworkReason(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timeout - device may be offline or unreachable"
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused - device may not be listening on this port"
	}
	if strings.Contains(errStr, "no route to host") {
		return "No route to host - network routing issue or device unreachable"
	}
	if strings.Contains(errStr, "connection reset") {
		return "Connection reset - device closed the connection unexpectedly"
	}

	return "Network communication failed"
}

func extractCIPReason(err error) string {
	var status *ProtocolStatusError
	if As(err, &status) {
		return fmt.Sprintf("Device returned a CIP error status code 0x%02X (%s)", status.Code, status.Description)
	}
	var decodeErr *DecodeError
	if As(err, &decodeErr) {
		return "Received invalid or malformed response from device"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "status 0x") {
		return "Device returned a CIP error status code"
	}
	if strings.Contains(errStr, "invalid packet") || strings.Contains(errStr, "decode") {
		return "Received invalid or malformed response from device"
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Device did not respond within timeout period"
	}

	return "CIP protocol error occurred"
}
