//go:build !linux
// +build !linux

package transport

import (
	"errors"
	"time"

	"github.com/luma/xcpflash/protocol"
)

var ErrCANUnsupported = errors.New("CAN is only supported through SocketCAN on Linux")

// CANPacketSizeMax is the classic CAN payload size.
const CANPacketSizeMax = 8

type CAN struct{}

func NewCAN(options Options) *CAN {
	return &CAN{}
}

func (c *CAN) Connect() error {
	return ErrCANUnsupported
}

func (c *CAN) Disconnect() error {
	return nil
}

func (c *CAN) SendPacket(req protocol.Packet, timeout time.Duration) (protocol.Packet, error) {
	return nil, ErrCANUnsupported
}

var _ Transport = (*CAN)(nil)
