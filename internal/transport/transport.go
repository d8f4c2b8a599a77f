// Package transport defines the message transport contract between the
// update agent and one firmware device. Framing, chunking and addressing are
// owned by implementations.
package transport

import (
	"errors"
	"time"
)

var (
	ErrTimeout         = errors.New("transport: receive timeout")
	ErrMessageTooLarge = errors.New("transport: message larger than receive buffer")
	ErrClosed          = errors.New("transport: closed")
)

// Transport carries complete PLDM messages to and from one device.
//
// Send transmits msg. For requests the transport allocates and returns a
// message tag; for responses tag must be the tag of the request being
// answered and is returned unchanged.
//
// Recv copies the next complete message into buf and returns its length and
// tag. A zero timeout polls; when nothing is pending Recv returns ErrTimeout.
type Transport interface {
	Send(isRequest bool, msg []byte, tag uint8) (uint8, error)
	Recv(timeout time.Duration, buf []byte) (int, uint8, error)
	DeviceName() string
}
