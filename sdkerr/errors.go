// Package sdkerr defines the typed error taxonomy surfaced to SDK callers.
//
// Every error returned across package boundaries wraps one of the Kind
// values below so callers can branch on failure class (e.g. to decide
// whether to retry) without string matching. Wrapped causes are recorded
// with github.com/pkg/errors.WithStack, so formatting an error's Cause
// with %+v shows the stack at the point it was wrapped; the SDKError's own
// Error text does not include it.
package sdkerr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind identifies which layer of the pipeline raised an error.
type Kind string

const (
	KindTransport Kind = "transport"
	KindProtocol  Kind = "protocol"
	KindParser    Kind = "parser"
	KindDevice    Kind = "device"
	KindConfig    Kind = "config"
)

// SDKError is the base error type all other Kinds embed. It carries a Kind
// for machine dispatch and an optional cause for humans.
type SDKError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SDKError) Unwrap() error { return e.Cause }

func newKind(kind Kind, format string, args ...interface{}) *SDKError {
	return &SDKError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapKind(kind Kind, cause error, format string, args ...interface{}) *SDKError {
	return &SDKError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: pkgerrors.WithStack(cause)}
}

// TransportError reports failures below the wire: connect, publish, ack or
// response timeouts, or a mid-wait disconnect. Only TransportErrors are
// retried by RetryPolicy.
func TransportError(format string, args ...interface{}) *SDKError {
	return newKind(KindTransport, format, args...)
}

// WrapTransport wraps an underlying error (e.g. from paho) as a TransportError.
func WrapTransport(cause error, format string, args ...interface{}) *SDKError {
	return wrapKind(KindTransport, cause, format, args...)
}

// ProtocolError reports Modbus framing/CRC/exception-response failures.
func ProtocolError(format string, args ...interface{}) *SDKError {
	return newKind(KindProtocol, format, args...)
}

func WrapProtocol(cause error, format string, args ...interface{}) *SDKError {
	return wrapKind(KindProtocol, cause, format, args...)
}

// ParserError reports schema resolution or required-field parse failures.
func ParserError(format string, args ...interface{}) *SDKError {
	return newKind(KindParser, format, args...)
}

func WrapParser(cause error, format string, args ...interface{}) *SDKError {
	return wrapKind(KindParser, cause, format, args...)
}

// DeviceError reports unknown-group / unknown-plugin / device-model misuse.
func DeviceError(format string, args ...interface{}) *SDKError {
	return newKind(KindDevice, format, args...)
}

func WrapDevice(cause error, format string, args ...interface{}) *SDKError {
	return wrapKind(KindDevice, cause, format, args...)
}

// ConfigError reports misconfiguration: unknown transport/protocol key,
// schema id conflicts, malformed options.
func ConfigError(format string, args ...interface{}) *SDKError {
	return newKind(KindConfig, format, args...)
}

func WrapConfig(cause error, format string, args ...interface{}) *SDKError {
	return wrapKind(KindConfig, cause, format, args...)
}

// Is reports whether err is (or wraps) an SDKError of the given Kind.
func Is(err error, kind Kind) bool {
	var se *SDKError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
