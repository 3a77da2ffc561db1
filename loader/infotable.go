package loader

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/luma/xcpflash/protocol"
	"github.com/luma/xcpflash/storage"
)

// Segments is the read side of a firmware store.
type Segments interface {
	SegmentCount() int
	Segment(i int) *storage.Segment
}

type InfoTableResult struct {
	// Supported is false when the bootloader has no info table support.
	Supported bool

	// Okay is the bootloader's verdict. It is true when the table is not
	// supported, as there is nothing to object to.
	Okay bool
}

// CheckInfoTable asks the bootloader where the firmware info table lives,
// downloads that part of the new firmware and lets the bootloader decide
// whether the firmware may be programmed.
func (l *Loader) CheckInfoTable(firmware Segments) (InfoTableResult, error) {
	unsupported := InfoTableResult{Supported: false, Okay: true}

	if !l.connected {
		return InfoTableResult{}, ErrNotConnected
	}

	info, err := l.sendInfoTableGetInfo()
	if err != nil {
		var deviceErr *DeviceError
		if errors.As(err, &deviceErr) && deviceErr.Code == protocol.ErrCmdUnknown {
			l.log.Info("Bootloader does not support the info table")
			return unsupported, nil
		}

		return InfoTableResult{}, &InfoTableError{Op: "get info", Err: err}
	}

	if info.Length == 0 {
		l.log.Info("Bootloader reports an empty info table")
		return unsupported, nil
	}

	table, err := extractTable(firmware, info.Address, int(info.Length))
	if err != nil {
		return InfoTableResult{}, &InfoTableError{Op: "extract", Err: err}
	}

	perCommand := l.maxCto - 4
	if perCommand < 1 {
		return InfoTableResult{}, &NegotiationError{Field: "MAX_CTO", Value: l.maxCto}
	}

	for offset := 0; offset < len(table); offset += perCommand {
		end := offset + perCommand
		if end > len(table) {
			end = len(table)
		}

		if err := l.sendInfoTableDownload(table[offset:end]); err != nil {
			return InfoTableResult{}, &InfoTableError{Op: "download", Err: err}
		}
	}

	okay, err := l.sendInfoTableCheck()
	if err != nil {
		return InfoTableResult{}, &InfoTableError{Op: "check", Err: err}
	}

	l.log.Info("Info table checked",
		zap.Uint32("address", info.Address),
		zap.Uint16("length", info.Length),
		zap.Bool("okay", okay))

	return InfoTableResult{Supported: true, Okay: okay}, nil
}

// extractTable copies the table out of the single segment that holds it.
func extractTable(firmware Segments, address uint32, length int) ([]byte, error) {
	for i := 0; i < firmware.SegmentCount(); i++ {
		seg := firmware.Segment(i)
		if seg == nil || !seg.Contains(address, length) {
			continue
		}

		start := int(address - seg.Base)
		table := make([]byte, length)
		copy(table, seg.Data[start:start+length])

		return table, nil
	}

	return nil, fmt.Errorf("%w: 0x%08X + %d", ErrTableNotFound, address, length)
}
