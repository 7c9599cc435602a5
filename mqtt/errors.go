// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"fmt"
	"log/slog"
)

// ClientState indicates the current state of a session.
type ClientState byte

const (
	// The session is connected and has not been closed.
	Open ClientState = iota

	// The session has been closed by the user or lost its connection.
	Closed
)

// ClientStateError is returned when the operation cannot proceed due to the
// state of the session.
type ClientStateError struct {
	State ClientState
}

func (e *ClientStateError) Error() string {
	switch e.State {
	case Open:
		return "the session is already open"
	case Closed:
		return "the session has been closed"
	default:
		// It should not be possible to get here.
		return ""
	}
}

// DisconnectError indicates that the server sent a DISCONNECT packet.
type DisconnectError struct {
	ReasonCode byte
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf(
		"received DISCONNECT packet with reason code %x",
		e.ReasonCode,
	)
}

// ConnectionError indicates an issue opening or keeping the network
// connection to the MQTT server. It may wrap an underlying error using Go
// standard error wrapping.
type ConnectionError struct {
	wrapped error
	message string
}

func (e *ConnectionError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *ConnectionError) Unwrap() error {
	return e.wrapped
}

// ConnackError indicates that the server rejected the connection.
type ConnackError struct {
	ReasonCode byte
}

func (e *ConnackError) Error() string {
	return fmt.Sprintf(
		"received CONNACK packet with error reason code %x",
		e.ReasonCode,
	)
}

// Attrs returns additional error attributes for slog.
func (e *ConnackError) Attrs() []slog.Attr {
	return []slog.Attr{slog.Int("reason_code", int(e.ReasonCode))}
}

// SubackError indicates that the server refused a subscription.
type SubackError struct {
	Topic      string
	ReasonCode byte
}

func (e *SubackError) Error() string {
	return fmt.Sprintf(
		"subscription to %q refused with reason code %x",
		e.Topic,
		e.ReasonCode,
	)
}

// Attrs returns additional error attributes for slog.
func (e *SubackError) Attrs() []slog.Attr {
	return []slog.Attr{
		slog.String("topic", e.Topic),
		slog.Int("reason_code", int(e.ReasonCode)),
	}
}

// InvalidArgumentError indicates that the user has provided an invalid value
// for an option. It may wrap an underlying error using Go standard error
// wrapping.
type InvalidArgumentError struct {
	wrapped error
	message string
}

func (e *InvalidArgumentError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *InvalidArgumentError) Unwrap() error {
	return e.wrapped
}
