package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/luma/xcpflash/protocol"
)

// CounterSize is the size of the counter that prefixes every packet on XCP on
// TCP/IP. Requests carry the CRO counter, responses the DTO counter.
const CounterSize = 4

// Net is XCP on TCP/IP. Each response is taken from a single read, so the
// slave is assumed to keep one frame per TCP segment. Two responses that
// arrive coalesced, such as a late CONNECT reply followed by the GET_STATUS
// reply, are read as one malformed packet.
type Net struct {
	addr        string
	dialTimeout time.Duration

	conn    net.Conn
	counter uint32

	log *zap.Logger
}

func NewNet(options Options) *Net {
	options = options.withDefaults()

	return &Net{
		addr:        net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		dialTimeout: options.DialTimeout,
		log:         options.Log.Named("net"),
	}
}

func (n *Net) Connect() error {
	if n.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("tcp", n.addr, n.dialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", n.addr, err)
	}

	n.log.Info("Connected", zap.String("addr", n.addr))

	n.conn = conn
	n.counter = 1

	return nil
}

func (n *Net) Disconnect() error {
	if n.conn == nil {
		return nil
	}

	err := n.conn.Close()
	n.conn = nil

	return err
}

func (n *Net) SendPacket(req protocol.Packet, timeout time.Duration) (protocol.Packet, error) {
	if n.conn == nil {
		return nil, ErrNotConnected
	}

	if len(req) > protocol.PacketSizeMax {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(req))
	}

	deadline := time.Now().Add(timeout)

	if len(req) > 0 {
		frame := make([]byte, CounterSize, CounterSize+len(req))
		binary.LittleEndian.PutUint32(frame, n.counter)
		frame = append(frame, req...)
		n.counter++

		if err := n.conn.SetWriteDeadline(deadline); err != nil {
			return nil, err
		}

		if _, err := n.conn.Write(frame); err != nil {
			return nil, fmt.Errorf("failed to write frame: %w", err)
		}
	}

	if err := n.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	buf := make([]byte, CounterSize+protocol.PacketSizeMax)
	got, err := n.conn.Read(buf)
	if err != nil {
		var netErr net.Error
		switch {
		case errors.As(err, &netErr) && netErr.Timeout():
			return nil, ErrTimeout
		case errors.Is(err, io.EOF):
			return nil, ErrClosed
		default:
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
	}

	if got <= CounterSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, got)
	}

	resp := make(protocol.Packet, got-CounterSize)
	copy(resp, buf[CounterSize:got])

	return resp, nil
}

var _ Transport = (*Net)(nil)
