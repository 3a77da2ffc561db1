//go:build linux
// +build linux

package transport

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/luma/xcpflash/protocol"
)

const (
	// canFrameSize is sizeof(struct can_frame)
	canFrameSize = 16

	// CANPacketSizeMax is the classic CAN payload size.
	CANPacketSizeMax = 8
)

// hostOrder is the byte order of can_id inside struct can_frame.
var hostOrder binary.ByteOrder = func() binary.ByteOrder {
	x := uint16(1)
	if (*[2]byte)(unsafe.Pointer(&x))[0] == 1 {
		return binary.LittleEndian
	}

	return binary.BigEndian
}()

// CAN is XCP on CAN using a Linux SocketCAN raw socket. Each packet travels in
// a single frame.
type CAN struct {
	iface string
	txID  uint32
	rxID  uint32

	fd     int
	poller *Poller

	log *zap.Logger
}

func NewCAN(options Options) *CAN {
	options = options.withDefaults()

	c := &CAN{
		iface: options.Interface,
		txID:  options.TransmitID & unix.CAN_SFF_MASK,
		rxID:  options.ReceiveID & unix.CAN_SFF_MASK,
		fd:    -1,
		log:   options.Log.Named("can"),
	}

	if options.Extended {
		c.txID = options.TransmitID&unix.CAN_EFF_MASK | unix.CAN_EFF_FLAG
		c.rxID = options.ReceiveID&unix.CAN_EFF_MASK | unix.CAN_EFF_FLAG
	}

	return c
}

func (c *CAN) Connect() error {
	if c.fd >= 0 {
		return nil
	}

	iface, err := net.InterfaceByName(c.iface)
	if err != nil {
		return fmt.Errorf("failed to find CAN interface %q: %w", c.iface, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return fmt.Errorf("failed to open CAN socket: %w", err)
	}

	// only let responses from the slave through
	filter := []unix.CanFilter{{
		Id:   c.rxID,
		Mask: unix.CAN_EFF_FLAG | unix.CAN_RTR_FLAG | unix.CAN_EFF_MASK,
	}}
	if c.rxID&unix.CAN_EFF_FLAG == 0 {
		filter[0].Mask = unix.CAN_EFF_FLAG | unix.CAN_RTR_FLAG | unix.CAN_SFF_MASK
	}

	if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filter); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to set CAN filter: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: iface.Index}); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to bind to %s: %w", c.iface, err)
	}

	poller, err := MakePoller(fd)
	if err != nil {
		unix.Close(fd)
		return err
	}

	c.log.Info("Opened CAN interface",
		zap.String("iface", c.iface),
		zap.Uint32("txID", c.txID),
		zap.Uint32("rxID", c.rxID))

	c.fd = fd
	c.poller = poller

	return nil
}

func (c *CAN) Disconnect() error {
	if c.fd < 0 {
		return nil
	}

	err := c.poller.Close()
	if cerr := unix.Close(c.fd); err == nil {
		err = cerr
	}

	c.fd = -1
	c.poller = nil

	return err
}

func (c *CAN) SendPacket(req protocol.Packet, timeout time.Duration) (protocol.Packet, error) {
	if c.fd < 0 {
		return nil, ErrNotConnected
	}

	if len(req) > CANPacketSizeMax {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(req))
	}

	if len(req) > 0 {
		frame := encodeFrame(c.txID, req)

		if _, err := unix.Write(c.fd, frame[:]); err != nil {
			return nil, fmt.Errorf("failed to write CAN frame: %w", err)
		}
	}

	deadline := time.Now().Add(timeout)
	var frame [canFrameSize]byte

	for {
		ready, err := c.poller.Wait(time.Until(deadline))
		if err != nil {
			return nil, err
		}
		if !ready {
			return nil, ErrTimeout
		}

		n, err := unix.Read(c.fd, frame[:])
		if err != nil {
			return nil, fmt.Errorf("failed to read CAN frame: %w", err)
		}

		// the filter should stop foreign frames, but the socket may have
		// queued some before it was installed
		if resp, ok := decodeFrame(frame[:n], c.rxID); ok {
			return resp, nil
		}
	}
}

// encodeFrame lays out a struct can_frame: id in host order, DLC at byte 4
// and the payload from byte 8.
func encodeFrame(id uint32, data []byte) [canFrameSize]byte {
	var frame [canFrameSize]byte

	hostOrder.PutUint32(frame[0:4], id)
	frame[4] = byte(len(data))
	copy(frame[8:], data)

	return frame
}

// decodeFrame returns the payload of frame if it is a complete frame from id.
// A DLC above 8 is clamped, CAN FD lengths are not supported.
func decodeFrame(frame []byte, id uint32) (protocol.Packet, bool) {
	if len(frame) < canFrameSize || hostOrder.Uint32(frame[0:4]) != id {
		return nil, false
	}

	dlc := int(frame[4])
	if dlc > CANPacketSizeMax {
		dlc = CANPacketSizeMax
	}

	resp := make(protocol.Packet, dlc)
	copy(resp, frame[8:8+dlc])

	return resp, true
}

var _ Transport = (*CAN)(nil)
