package transport

import (
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/luma/xcpflash/protocol"
)

// traced dumps every packet that passes through the wrapped transport.
type traced struct {
	next Transport
	log  *zap.Logger
}

func (t *traced) Connect() error {
	t.log.Debug("Connecting")
	return t.next.Connect()
}

func (t *traced) Disconnect() error {
	t.log.Debug("Disconnecting")
	return t.next.Disconnect()
}

func (t *traced) SendPacket(req protocol.Packet, timeout time.Duration) (protocol.Packet, error) {
	if len(req) > 0 {
		t.log.Debug("TX", zap.String("data", hex.EncodeToString(req)))
	}

	start := time.Now()
	resp, err := t.next.SendPacket(req, timeout)
	if err != nil {
		t.log.Debug("RX failed", zap.Duration("after", time.Since(start)), zap.Error(err))
		return nil, err
	}

	t.log.Debug("RX",
		zap.String("data", hex.EncodeToString(resp)),
		zap.Duration("after", time.Since(start)))

	return resp, nil
}

var _ Transport = (*traced)(nil)
