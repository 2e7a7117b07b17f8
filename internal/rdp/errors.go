package rdp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the connection.
var (
	// ErrConnectionClosed indicates the transport closed before a reply
	// arrived. All pending requests fail with this error on disconnect.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrInvalidPacket indicates inbound bytes that do not form a
	// length-prefixed protocol packet.
	ErrInvalidPacket = errors.New("invalid protocol packet")
)

// RemoteError is a failure payload sent by an actor in place of a reply.
type RemoteError struct {
	// Actor is the actor that reported the failure.
	Actor string

	// Code is the remote error code ("noSuchActor", "unknownFrame", ...).
	Code string

	// Message is the remote error message, possibly empty.
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("actor %s: %s: %s", e.Actor, e.Code, e.Message)
	}
	return fmt.Sprintf("actor %s: %s", e.Actor, e.Code)
}
