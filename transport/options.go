package transport

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaudrate    = 57600
	DefaultNetPort     = 1000
	DefaultTransmitID  = 0x667
	DefaultReceiveID   = 0x7E1
	DefaultDialTimeout = 2 * time.Second
)

type Options struct {
	// Device is the serial port, e.g. /dev/ttyUSB0 or COM3
	Device string

	Baudrate int

	// Host and Port of an XCP on TCP/IP bootloader
	Host string
	Port int

	DialTimeout time.Duration

	// Interface is the SocketCAN network interface, e.g. can0
	Interface string

	// TransmitID and ReceiveID are the CAN identifiers used for commands and
	// responses. Extended selects 29 bit identifiers.
	TransmitID uint32
	ReceiveID  uint32
	Extended   bool

	// Trace will log every packet. This is only useful in local debugging
	Trace bool

	Log *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Baudrate == 0 {
		o.Baudrate = DefaultBaudrate
	}

	if o.Port == 0 {
		o.Port = DefaultNetPort
	}

	if o.DialTimeout == 0 {
		o.DialTimeout = DefaultDialTimeout
	}

	if o.TransmitID == 0 {
		o.TransmitID = DefaultTransmitID
	}

	if o.ReceiveID == 0 {
		o.ReceiveID = DefaultReceiveID
	}

	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	return o
}
