// Package transport moves XCP packets between the host and the bootloader.
// Every transport adds and strips its own framing so the loader only ever
// sees bare packets.
package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/luma/xcpflash/protocol"
)

var (
	// ErrTimeout is returned by SendPacket when no response arrived in time.
	ErrTimeout = errors.New("No response received before the timeout")

	// ErrClosed is returned by SendPacket when the peer went away while a
	// response was outstanding.
	ErrClosed = errors.New("Connection closed by the peer")

	ErrNotConnected   = errors.New("Transport is not connected")
	ErrPacketTooLarge = errors.New("Packet does not fit in a single transport frame")
	ErrFrameTooShort  = errors.New("Received frame is too short")
	ErrUnknownKind    = errors.New("Unknown transport kind")
)

// Transport carries one request packet to the slave and returns its response.
type Transport interface {
	Connect() error
	Disconnect() error

	// SendPacket transmits req and waits up to timeout for the response. A
	// zero length req skips the transmit and only waits for a packet.
	SendPacket(req protocol.Packet, timeout time.Duration) (protocol.Packet, error)
}

// IsNoResponse reports whether err means the slave did not answer, as opposed
// to the transport failing.
func IsNoResponse(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrClosed)
}

type Kind string

const (
	KindSerial Kind = "xcp_rs232"
	KindNet    Kind = "xcp_net"
	KindCAN    Kind = "xcp_can"
)

// Kinds lists every transport New can build.
var Kinds = []Kind{KindSerial, KindNet, KindCAN}

// New builds the transport for kind. The returned transport is not connected.
func New(kind Kind, options Options) (Transport, error) {
	options = options.withDefaults()

	var t Transport

	switch kind {
	case KindSerial:
		t = NewSerial(options)
	case KindNet:
		t = NewNet(options)
	case KindCAN:
		t = NewCAN(options)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if options.Trace {
		t = &traced{next: t, log: options.Log.Named("trace")}
	}

	return t, nil
}
