package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/luma/xcpflash/protocol"
)

// Serial is XCP on RS232. Every packet is preceded by a single length byte.
type Serial struct {
	device   string
	baudrate int

	port serial.Port
	log  *zap.Logger
}

func NewSerial(options Options) *Serial {
	options = options.withDefaults()

	return &Serial{
		device:   options.Device,
		baudrate: options.Baudrate,
		log:      options.Log.Named("serial"),
	}
}

func (s *Serial) Connect() error {
	if s.port != nil {
		return nil
	}

	port, err := serial.Open(s.device, &serial.Mode{
		BaudRate: s.baudrate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.device, err)
	}

	s.log.Info("Opened serial port", zap.String("device", s.device), zap.Int("baudrate", s.baudrate))
	s.port = port

	return nil
}

func (s *Serial) Disconnect() error {
	if s.port == nil {
		return nil
	}

	err := s.port.Close()
	s.port = nil

	return err
}

func (s *Serial) SendPacket(req protocol.Packet, timeout time.Duration) (protocol.Packet, error) {
	if s.port == nil {
		return nil, ErrNotConnected
	}

	if len(req) > protocol.PacketSizeMax {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(req))
	}

	if len(req) > 0 {
		frame := make([]byte, 0, len(req)+1)
		frame = append(frame, byte(len(req)))
		frame = append(frame, req...)

		if _, err := s.port.Write(frame); err != nil {
			return nil, fmt.Errorf("failed to write frame: %w", err)
		}
	}

	return readLengthPrefixed(s.port, time.Now().Add(timeout))
}

// timedReader is the part of serial.Port the framing needs.
type timedReader interface {
	SetReadTimeout(t time.Duration) error
	Read(p []byte) (int, error)
}

// readLengthPrefixed reads one length byte followed by that many packet bytes.
// Zero length bytes are line noise and skipped.
func readLengthPrefixed(r timedReader, deadline time.Time) (protocol.Packet, error) {
	var length [1]byte

	for length[0] == 0 {
		if err := readFull(r, length[:], deadline); err != nil {
			return nil, err
		}
	}

	packet := make(protocol.Packet, length[0])
	if err := readFull(r, packet, deadline); err != nil {
		return nil, err
	}

	return packet, nil
}

func readFull(r timedReader, buf []byte, deadline time.Time) error {
	for got := 0; got < len(buf); {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}

		if err := r.SetReadTimeout(remaining); err != nil {
			return err
		}

		// the port returns 0 bytes and no error once the read timeout expires
		n, err := r.Read(buf[got:])
		if err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}

		got += n
	}

	return nil
}

var _ Transport = (*Serial)(nil)
