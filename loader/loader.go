// Package loader drives a bootloader through the XCP programming sequence:
// connect and negotiate packet sizes, unlock programming, erase, write and read
// back memory, and finally reset the slave.
//
// A Loader owns one session and is not safe for concurrent use.
package loader

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/xcpflash/protocol"
	"github.com/luma/xcpflash/transport"
)

// ConnectRetries is the number of CONNECT attempts Start makes.
const ConnectRetries = 5

type Loader struct {
	settings  Settings
	transport transport.Transport
	log       *zap.Logger

	// connected is only true between a successful Start and the next Stop.
	connected bool

	// programmingEnded is set once the empty PROGRAM went out, the slave then
	// has written every buffered block.
	programmingEnded bool

	// transportUp is set while the transport is open, which can outlive a
	// failed Start until Stop releases it.
	transportUp bool

	order      protocol.ByteOrder
	maxCto     int
	maxProgCto int
	maxDto     int
}

func New(settings Settings) *Loader {
	settings = settings.withDefaults()

	return &Loader{
		settings:  settings,
		transport: settings.Transport,
		log:       settings.Log.Named("loader"),
	}
}

func (l *Loader) IsConnected() bool {
	return l.connected
}

// Limits returns the negotiated packet sizes. They are zero before Start.
func (l *Loader) Limits() (maxCto, maxProgCto, maxDto int) {
	return l.maxCto, l.maxProgCto, l.maxDto
}

func (l *Loader) ByteOrder() protocol.ByteOrder {
	return l.order
}

// Start opens the transport, connects to the slave, unlocks programming when
// the slave protects it and enters programming mode. Any previous session is
// stopped first.
//
// If CONNECT never succeeds the transport is closed again. Failures after that
// leave the transport open, the next Start or Stop releases it.
func (l *Loader) Start() error {
	if err := l.Stop(); err != nil {
		l.log.Warn("Previous session did not stop cleanly", zap.Error(err))
	}

	if err := l.transport.Connect(); err != nil {
		return &CommunicationError{Command: protocol.CmdConnect, Err: err}
	}
	l.transportUp = true

	var err error
	for attempt := 1; attempt <= ConnectRetries; attempt++ {
		if err = l.connect(); err == nil {
			break
		}

		var negotiation *NegotiationError
		if errors.As(err, &negotiation) {
			break
		}

		l.log.Debug("CONNECT attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	if err != nil {
		if derr := l.releaseTransport(); derr != nil {
			l.log.Warn("Failed to disconnect transport", zap.Error(derr))
		}

		return fmt.Errorf("failed to connect to slave: %w", err)
	}

	status, err := l.sendGetStatus()
	if err != nil {
		return err
	}

	if status.Protection&protocol.ResourcePgm != 0 {
		l.log.Info("Programming is protected, unlocking")

		if err := l.unlock(protocol.ResourcePgm); err != nil {
			return err
		}
	}

	progStart, err := l.sendProgramStart()
	if err != nil {
		return err
	}

	if progStart.MaxProgCto < 2 {
		return &NegotiationError{Field: "MAX_CTO_PGM", Value: progStart.MaxProgCto}
	}

	l.maxProgCto = clampPacketSize(progStart.MaxProgCto)
	l.connected = true

	l.log.Info("Session started",
		zap.Stringer("byteOrder", l.order),
		zap.Int("maxCto", l.maxCto),
		zap.Int("maxProgCto", l.maxProgCto),
		zap.Int("maxDto", l.maxDto))

	return nil
}

// connect performs a single CONNECT and records the negotiated sizes.
func (l *Loader) connect() error {
	info, err := l.sendConnect()
	if err != nil {
		return err
	}

	// a packet needs room for at least the command code or PID and one byte
	if info.MaxCto < 2 {
		return &NegotiationError{Field: "MAX_CTO", Value: info.MaxCto}
	}

	if info.MaxDto < 2 || info.MaxDto > protocol.PacketSizeMax {
		return &NegotiationError{Field: "MAX_DTO", Value: info.MaxDto}
	}

	l.order = info.Order
	l.maxCto = clampPacketSize(info.MaxCto)
	l.maxDto = info.MaxDto
	l.maxProgCto = l.maxCto

	return nil
}

func clampPacketSize(n int) int {
	if n > protocol.PacketSizeMax {
		return protocol.PacketSizeMax
	}

	return n
}

// Stop ends the programming sequence and resets the slave, then disconnects
// the transport. The transport is released even when the slave does not
// cooperate, the first error is still returned.
func (l *Loader) Stop() error {
	var err error

	if l.connected {
		if !l.programmingEnded {
			err = l.sendProgram(nil)
		}

		if err == nil {
			err = l.sendProgramReset()
		}

		l.log.Info("Session stopped", zap.Error(err))
	}

	if l.transportUp {
		err = multierr.Append(err, l.releaseTransport())
	}

	l.connected = false
	l.programmingEnded = false

	return err
}

// EndProgramming ends the programming sequence with an empty PROGRAM. Slaves
// buffer written data until then, so memory reads back what was programmed
// only afterwards. Stop does not repeat it. Erasing or programming is refused
// once the sequence has ended.
func (l *Loader) EndProgramming() error {
	if !l.connected {
		return ErrNotConnected
	}

	if l.programmingEnded {
		return nil
	}

	if err := l.sendProgram(nil); err != nil {
		return err
	}

	l.programmingEnded = true
	l.log.Debug("Programming sequence ended")

	return nil
}

func (l *Loader) releaseTransport() error {
	l.transportUp = false

	if err := l.transport.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect transport: %w", err)
	}

	return nil
}
