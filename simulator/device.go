// Package simulator is an in-memory XCP bootloader. It answers the same
// commands a real target does, which makes it useful for trying the tool
// without hardware and for end to end tests.
package simulator

import (
	"bytes"
	"crypto/rand"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/luma/xcpflash/protocol"
	"github.com/luma/xcpflash/seedkey"
	"github.com/luma/xcpflash/storage"
)

// BlankValue is what erased flash reads back as.
const BlankValue = 0xFF

type Config struct {
	MaxCto     int
	MaxDto     int
	MaxProgCto int
	Order      protocol.ByteOrder

	// SeedKey protects programming when set. SeedLength is the size of the
	// seeds handed out.
	SeedKey    seedkey.Algorithm
	SeedLength int

	// InfoTableAddress and InfoTableLength describe the firmware info table.
	// A zero length means the device does not support the info table commands.
	InfoTableAddress uint32
	InfoTableLength  uint16

	// LateConnectResponse makes the device answer the first GET_STATUS after a
	// CONNECT with a second CONNECT response, like slow targets do.
	LateConnectResponse bool

	Log *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		MaxCto:     8,
		MaxDto:     8,
		MaxProgCto: 8,
		Order:      protocol.LittleEndian,
		SeedLength: 4,
	}
}

// Device holds the state of one simulated target. It is safe for concurrent
// use, the flash is shared by every connection.
type Device struct {
	config  Config
	flash   *storage.InmemoryStore
	metrics *metrics
	log     *zap.Logger

	// pending holds programmed data until the empty PROGRAM commits it to
	// flash, like targets that write whole flash blocks from RAM buffers.
	pending *storage.InmemoryStore

	mu          sync.Mutex
	connected   bool
	programming bool
	protection  protocol.Resource
	mta         uint32
	seed        []byte
	seedOffset  int
	key         []byte
	table       []byte
	lateConnect bool
	resets      int
}

func NewDevice(config Config) *Device {
	if config.Log == nil {
		config.Log = zap.NewNop()
	}

	flash := storage.NewInmemoryStore()

	return &Device{
		config:  config,
		flash:   flash,
		pending: storage.NewInmemoryStore(),
		metrics: newMetrics(flash),
		log:     config.Log.Named("device"),
	}
}

// Registry holds the metrics of this device.
func (d *Device) Registry() *prometheus.Registry {
	return d.metrics.registry
}

// Flash is the device memory. Only programmed ranges hold segments.
func (d *Device) Flash() *storage.InmemoryStore {
	return d.flash
}

// Resets counts the PROGRAM_RESET commands the device has received.
func (d *Device) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.resets
}

// Handle processes one command and returns the packets the device sends in
// response, usually exactly one.
func (d *Device) Handle(req protocol.Packet) []protocol.Packet {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(req) == 0 {
		return nil
	}

	cmd := req.Command()
	d.log.Debug("Command", zap.Stringer("cmd", cmd), zap.Int("len", len(req)))

	resps := d.handle(cmd, req)
	d.metrics.observe(cmd, resps)

	return resps
}

func (d *Device) handle(cmd protocol.Command, req protocol.Packet) []protocol.Packet {
	if cmd == protocol.CmdConnect {
		return d.connect()
	}

	if !d.connected {
		return nil
	}

	if cmd == protocol.CmdGetStatus && d.lateConnect {
		d.lateConnect = false
		return []protocol.Packet{d.connectResponse(), d.status()}
	}

	return []protocol.Packet{d.dispatch(cmd, req)}
}

func (d *Device) dispatch(cmd protocol.Command, req protocol.Packet) protocol.Packet {
	switch cmd {
	case protocol.CmdGetStatus:
		return d.status()
	case protocol.CmdGetSeed:
		return d.getSeed(req)
	case protocol.CmdUnlock:
		return d.unlock(req)
	case protocol.CmdSetMta:
		return d.setMta(req)
	case protocol.CmdUpload:
		return d.upload(req)
	case protocol.CmdProgramStart:
		return d.programStart()
	case protocol.CmdProgramClear:
		return d.programClear(req)
	case protocol.CmdProgram:
		return d.program(req)
	case protocol.CmdProgramMax:
		return d.programMax(req)
	case protocol.CmdProgramReset:
		return d.programReset()
	case protocol.CmdUser:
		return d.user(req)
	default:
		return protocol.NegativeResponse(protocol.ErrCmdUnknown)
	}
}

func (d *Device) connect() []protocol.Packet {
	d.connected = true
	d.programming = false
	d.seed = nil
	d.key = nil
	d.table = nil
	d.pending.Clear()
	d.lateConnect = d.config.LateConnectResponse

	d.protection = 0
	if d.config.SeedKey != nil {
		d.protection = protocol.ResourcePgm
	}

	return []protocol.Packet{d.connectResponse()}
}

func (d *Device) connectResponse() protocol.Packet {
	return protocol.EncodeConnect(&protocol.ConnectResponse{
		Resources: protocol.ResourcePgm,
		Order:     d.config.Order,
		MaxCto:    d.config.MaxCto,
		MaxDto:    d.config.MaxDto,
	})
}

func (d *Device) status() protocol.Packet {
	return protocol.EncodeStatus(&protocol.StatusResponse{Protection: d.protection}, d.config.Order)
}

func (d *Device) getSeed(req protocol.Packet) protocol.Packet {
	if len(req) != 3 || protocol.Resource(req[2]) != protocol.ResourcePgm {
		return protocol.NegativeResponse(protocol.ErrOutOfRange)
	}

	if d.protection&protocol.ResourcePgm == 0 {
		return protocol.EncodeSeed(&protocol.SeedResponse{})
	}

	perResponse := d.config.MaxDto - 2

	if req[1] == protocol.SeedModeFirst {
		d.seed = make([]byte, d.config.SeedLength)
		if _, err := rand.Read(d.seed); err != nil {
			return protocol.NegativeResponse(protocol.ErrGeneric)
		}
		d.seedOffset = 0
		d.key = nil
	} else if d.seed == nil || d.seedOffset+perResponse >= len(d.seed) {
		return protocol.NegativeResponse(protocol.ErrSequence)
	} else {
		d.seedOffset += perResponse
	}

	part := d.seed[d.seedOffset:]
	if len(part) > perResponse {
		part = part[:perResponse]
	}

	return protocol.EncodeSeed(&protocol.SeedResponse{
		Remaining: len(d.seed) - d.seedOffset,
		Seed:      part,
	})
}

func (d *Device) unlock(req protocol.Packet) protocol.Packet {
	if d.seed == nil || len(req) < 3 {
		return protocol.NegativeResponse(protocol.ErrSequence)
	}

	d.key = append(d.key, req[2:]...)

	// remaining covers this chunk, so the key is complete once they match
	if int(req[1]) != len(req)-2 {
		return protocol.EncodeUnlock(d.protection)
	}

	expected, err := d.config.SeedKey.ComputeKey(protocol.ResourcePgm, d.seed)
	if err == nil && bytes.Equal(expected, d.key) {
		d.protection &^= protocol.ResourcePgm
	} else {
		d.log.Warn("Rejected key")
	}

	d.seed = nil
	d.key = nil

	return protocol.EncodeUnlock(d.protection)
}

func (d *Device) setMta(req protocol.Packet) protocol.Packet {
	if len(req) != 8 {
		return protocol.NegativeResponse(protocol.ErrCmdSyntax)
	}

	d.mta = protocol.Decode32(req[4:8], d.config.Order)
	return protocol.AckResponse()
}

func (d *Device) upload(req protocol.Packet) protocol.Packet {
	if len(req) != 2 || int(req[1]) >= d.config.MaxDto {
		return protocol.NegativeResponse(protocol.ErrOutOfRange)
	}

	data := make([]byte, req[1])
	d.flash.Read(d.mta, data, BlankValue)
	d.mta += uint32(len(data))

	return protocol.EncodeUpload(data)
}

func (d *Device) programStart() protocol.Packet {
	if d.protection&protocol.ResourcePgm != 0 {
		return protocol.NegativeResponse(protocol.ErrAccessLocked)
	}

	d.programming = true

	return protocol.EncodeProgramStart(&protocol.ProgramStartResponse{MaxProgCto: d.config.MaxProgCto})
}

func (d *Device) programClear(req protocol.Packet) protocol.Packet {
	if !d.programming {
		return protocol.NegativeResponse(protocol.ErrSequence)
	}

	if len(req) != 8 {
		return protocol.NegativeResponse(protocol.ErrCmdSyntax)
	}

	length := protocol.Decode32(req[4:8], d.config.Order)
	d.flash.RemoveData(d.mta, length)
	d.pending.RemoveData(d.mta, length)

	return protocol.AckResponse()
}

func (d *Device) program(req protocol.Packet) protocol.Packet {
	if !d.programming {
		return protocol.NegativeResponse(protocol.ErrSequence)
	}

	if len(req) < 2 || int(req[1]) != len(req)-2 || int(req[1]) > d.config.MaxProgCto-2 {
		return protocol.NegativeResponse(protocol.ErrCmdSyntax)
	}

	// an empty PROGRAM ends the sequence
	if req[1] == 0 {
		d.programming = false
		return d.commit()
	}

	return d.write(req[2:])
}

func (d *Device) programMax(req protocol.Packet) protocol.Packet {
	if !d.programming {
		return protocol.NegativeResponse(protocol.ErrSequence)
	}

	if len(req) != d.config.MaxProgCto {
		return protocol.NegativeResponse(protocol.ErrCmdSyntax)
	}

	return d.write(req[1:])
}

func (d *Device) write(data []byte) protocol.Packet {
	if err := d.pending.AddData(d.mta, data); err != nil {
		return protocol.NegativeResponse(protocol.ErrOutOfRange)
	}

	d.mta += uint32(len(data))
	return protocol.AckResponse()
}

func (d *Device) commit() protocol.Packet {
	defer d.pending.Clear()

	for i := 0; i < d.pending.SegmentCount(); i++ {
		seg := d.pending.Segment(i)
		if err := d.flash.AddData(seg.Base, seg.Data); err != nil {
			return protocol.NegativeResponse(protocol.ErrGeneric)
		}
	}

	return protocol.AckResponse()
}

// programReset returns no response, the target resets before it could send
// one.
func (d *Device) programReset() protocol.Packet {
	d.connected = false
	d.programming = false
	d.pending.Clear()
	d.resets++

	return nil
}

func (d *Device) user(req protocol.Packet) protocol.Packet {
	if len(req) < 3 || req[1] != protocol.UserCmdInfoTable || d.config.InfoTableLength == 0 {
		return protocol.NegativeResponse(protocol.ErrCmdUnknown)
	}

	switch req[2] {
	case protocol.InfoTableGetInfo:
		d.table = d.table[:0]

		return protocol.EncodeInfoTableInfo(&protocol.InfoTableInfo{
			Length:  d.config.InfoTableLength,
			Address: d.config.InfoTableAddress,
		}, d.config.Order)

	case protocol.InfoTableDownload:
		if len(req) < 4 || int(req[3]) != len(req)-4 {
			return protocol.NegativeResponse(protocol.ErrCmdSyntax)
		}

		d.table = append(d.table, req[4:]...)
		return protocol.EncodeInfoTableDownload()

	case protocol.InfoTableCheck:
		return protocol.EncodeInfoTableCheck(d.tableAcceptable())

	default:
		return protocol.NegativeResponse(protocol.ErrCmdUnknown)
	}
}

// tableAcceptable accepts a table that matches the one already programmed, or
// any complete table when nothing is programmed there yet.
func (d *Device) tableAcceptable() bool {
	if len(d.table) != int(d.config.InfoTableLength) {
		return false
	}

	current := make([]byte, len(d.table))
	d.flash.Read(d.config.InfoTableAddress, current, BlankValue)

	if bytes.Equal(current, bytes.Repeat([]byte{BlankValue}, len(current))) {
		return true
	}

	return bytes.Equal(current, d.table)
}
