// Package nxerrors defines the failure kinds shared by every transport, so a
// caller handles a rejected command the same way whether it came back from
// NX-API or from a terminal session.
package nxerrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConnect              = errors.New("connect failure")
	ErrCommandRejected      = errors.New("command rejected")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrUnknownDevice        = errors.New("unknown device error")
	ErrUnexpectedShape      = errors.New("unexpected response shape")
	ErrProtocol             = errors.New("protocol error")
	ErrRequestNotSupported  = errors.New("request not supported")
	ErrConfigSourceNotFound = errors.New("config source not found")
	ErrUsage                = errors.New("invalid invocation")
)

// ConnectError is returned when a transport cannot establish its session
type ConnectError struct {
	Host      string
	Transport string
	Hints     []string
	Err       error
}

func (e *ConnectError) Error() string {
	msg := fmt.Sprintf("could not connect to %s over %s: %v", e.Host, e.Transport, e.Err)
	if len(e.Hints) > 0 {
		msg += " (" + strings.Join(e.Hints, "; ") + ")"
	}
	return msg
}

func (e *ConnectError) Unwrap() error        { return e.Err }
func (e *ConnectError) Is(target error) bool { return target == ErrConnect }

// CommandRejectedError carries the device's rejection of one command. On
// NX-API, PreviousCommands lists the commands of the batch that ran before it.
type CommandRejectedError struct {
	Command          string
	Code             string
	Message          string
	CLIError         string
	PreviousCommands []string
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("command %q rejected (code %s): %s: %s", e.Command, e.Code, e.Message, strings.TrimSpace(e.CLIError))
}

func (e *CommandRejectedError) Is(target error) bool { return target == ErrCommandRejected }

// PayloadTooLargeError reports a 413 from the device. The request should be
// split; it also matches ErrRequestNotSupported.
type PayloadTooLargeError struct {
	Message string
}

func (e *PayloadTooLargeError) Error() string {
	return "payload too large: " + e.Message
}

func (e *PayloadTooLargeError) Is(target error) bool {
	return target == ErrPayloadTooLarge || target == ErrRequestNotSupported
}

// UnknownDeviceError is any per-command code the client does not recognize
type UnknownDeviceError struct {
	Code    string
	Message string
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("unknown device error (code %s): %s", e.Code, e.Message)
}

func (e *UnknownDeviceError) Is(target error) bool { return target == ErrUnknownDevice }

type UnexpectedShapeError struct {
	Detail string
}

func (e *UnexpectedShapeError) Error() string {
	return "unexpected response shape: " + e.Detail
}

func (e *UnexpectedShapeError) Is(target error) bool { return target == ErrUnexpectedShape }

// ProtocolError is a transport level failure with status >= 500
type ProtocolError struct {
	Status int
	Body   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("nxapi protocol error: status %d: %s", e.Status, e.Body)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// RequestNotSupportedError is a transport level failure with status < 500
type RequestNotSupportedError struct {
	Status int
	Body   string
}

func (e *RequestNotSupportedError) Error() string {
	return fmt.Sprintf("nxapi request not supported: status %d: %s", e.Status, e.Body)
}

func (e *RequestNotSupportedError) Is(target error) bool { return target == ErrRequestNotSupported }

type ConfigSourceNotFoundError struct {
	Source string
}

func (e *ConfigSourceNotFoundError) Error() string {
	return fmt.Sprintf("Source file %s not found", e.Source)
}

func (e *ConfigSourceNotFoundError) Is(target error) bool { return target == ErrConfigSourceNotFound }

// UsageError reports arguments that make an operation impossible to run
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

func (e *UsageError) Is(target error) bool { return target == ErrUsage }

// Status classifies a transport level status code
func Status(status int, body string) error {
	if status >= 500 {
		return &ProtocolError{Status: status, Body: body}
	}
	return &RequestNotSupportedError{Status: status, Body: body}
}

// RejectedWithCode reports whether err is a command rejection with the given code
func RejectedWithCode(err error, code string) bool {
	var rejected *CommandRejectedError
	return errors.As(err, &rejected) && rejected.Code == code
}
