// Package client runs complete firmware updates on top of a loader session.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/luma/xcpflash/internal/utils"
	"github.com/luma/xcpflash/loader"
	"github.com/luma/xcpflash/storage"
)

const (
	// EraseChunkSize bounds a single PROGRAM_CLEAR, larger erases could exceed
	// the T4 timeout on slow flash.
	EraseChunkSize = 32 * 1024

	// ProgramChunkSize is the amount of data handed to the loader per write.
	ProgramChunkSize = 256

	// BackdoorInterval is the pause between connection attempts while waiting
	// for the target to enter its bootloader.
	BackdoorInterval = 20 * time.Millisecond
)

var (
	ErrInfoTableRejected = errors.New("Bootloader rejected the firmware info table")
	ErrNoFirmware        = errors.New("Firmware holds no data")
)

// VerifyError reports the first byte that read back differently from what
// was programmed.
type VerifyError struct {
	Address  uint32
	Expected byte
	Actual   byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify failed at 0x%08X: wrote 0x%02X, read 0x%02X", e.Address, e.Expected, e.Actual)
}

type Phase string

const (
	PhaseConnecting  Phase = "connecting"
	PhaseChecking    Phase = "checking"
	PhaseErasing     Phase = "erasing"
	PhaseProgramming Phase = "programming"
	PhaseVerifying   Phase = "verifying"
	PhaseReading     Phase = "reading"
	PhaseDone        Phase = "done"
)

// Progress is passed to the ProgressCallback after every chunk.
type Progress struct {
	Phase Phase

	// Segment is the index of the firmware segment being worked on
	Segment int

	// Done and Total count bytes over the whole phase
	Done  int
	Total int
}

func (p Progress) Percentage() float64 {
	if p.Total == 0 {
		return 100
	}

	return float64(p.Done) * 100 / float64(p.Total)
}

// ProgressCallback should return quickly, it runs on the update goroutine.
type ProgressCallback func(Progress)

// Firmware is the data to program. storage.InmemoryStore satisfies it.
type Firmware interface {
	loader.Segments
	Size() int
}

type Options struct {
	Settings loader.Settings

	// Backdoor keeps trying to connect until the context is done, for targets
	// that only listen briefly after a reset.
	Backdoor bool

	// Verify reads back every segment after programming
	Verify bool

	Progress ProgressCallback

	Log *zap.Logger
}

// Updater is not safe for concurrent use, it owns a single loader session.
type Updater struct {
	loader   *loader.Loader
	options  Options
	progress ProgressCallback

	// log carries the id of the current session, base does not
	log  *zap.Logger
	base *zap.Logger
}

func New(options Options) *Updater {
	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	settings := options.Settings
	if settings.Log == nil {
		settings.Log = options.Log
	}

	progress := options.Progress
	if progress == nil {
		progress = func(Progress) {}
	}

	return &Updater{
		loader:   loader.New(settings),
		options:  options,
		progress: progress,
		log:      options.Log.Named("updater"),
		base:     options.Log.Named("updater"),
	}
}

// Run programs firmware: it connects, checks the info table, erases and
// programs every segment, ends the programming sequence, optionally verifies
// the segments and finally resets the target. The session is stopped even when a step fails.
func (u *Updater) Run(ctx context.Context, firmware Firmware) (err error) {
	if firmware.SegmentCount() == 0 {
		return ErrNoFirmware
	}

	log, err := u.sessionLog()
	if err != nil {
		return err
	}

	started := time.Now()

	log.Info("Starting update",
		zap.Int("segments", firmware.SegmentCount()),
		zap.String("size", utils.DisplayBi(uint64(firmware.Size()))))

	if err := u.start(ctx); err != nil {
		return multierr.Append(err, u.loader.Stop())
	}

	defer func() {
		if stopErr := u.loader.Stop(); stopErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to stop session: %w", stopErr))
		}
	}()

	u.progress(Progress{Phase: PhaseChecking})

	result, err := u.loader.CheckInfoTable(firmware)
	if err != nil {
		return err
	}

	if !result.Okay {
		return ErrInfoTableRejected
	}

	if !result.Supported {
		log.Debug("Bootloader has no info table check")
	}

	if err := u.erase(ctx, firmware); err != nil {
		return err
	}

	if err := u.program(ctx, firmware); err != nil {
		return err
	}

	// the target commits its buffered blocks only now, read back after this
	if err := u.loader.EndProgramming(); err != nil {
		return err
	}

	if u.options.Verify {
		if err := u.verify(ctx, firmware); err != nil {
			return err
		}
	}

	elapsed := time.Since(started)
	log.Info("Update complete",
		zap.Duration("elapsed", elapsed),
		zap.String("rate", utils.DisplayRate(uint64(firmware.Size()), elapsed)))

	u.progress(Progress{Phase: PhaseDone, Done: firmware.Size(), Total: firmware.Size()})

	return nil
}

// Read uploads length bytes from address in a session of its own.
func (u *Updater) Read(ctx context.Context, address uint32, length int) (data []byte, err error) {
	if _, err := u.sessionLog(); err != nil {
		return nil, err
	}

	if err := u.start(ctx); err != nil {
		return nil, multierr.Append(err, u.loader.Stop())
	}

	defer func() {
		if stopErr := u.loader.Stop(); stopErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to stop session: %w", stopErr))
		}
	}()

	data = make([]byte, length)

	err = chunked(ctx, address, data, ProgramChunkSize, func(addr uint32, chunk []byte, done int) error {
		if err := u.loader.ReadData(addr, chunk); err != nil {
			return err
		}

		u.progress(Progress{Phase: PhaseReading, Done: done + len(chunk), Total: length})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

func (u *Updater) sessionLog() (*zap.Logger, error) {
	id, err := utils.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to create session id: %w", err)
	}

	u.log = u.base.With(zap.Stringer("session", id))
	return u.log, nil
}

// start connects to the target. In backdoor mode failed attempts are retried
// every BackdoorInterval until ctx is done.
func (u *Updater) start(ctx context.Context) error {
	u.progress(Progress{Phase: PhaseConnecting})

	err := u.loader.Start()
	if err == nil || !u.options.Backdoor {
		return err
	}

	u.log.Info("Waiting for the target to enter its bootloader")

	limiter := rate.NewLimiter(rate.Every(BackdoorInterval), 1)

	for attempts := 1; ; attempts++ {
		if werr := limiter.Wait(ctx); werr != nil {
			cause := ctx.Err()
			if cause == nil {
				// the next attempt would start past the deadline
				cause = context.DeadlineExceeded
			}

			return fmt.Errorf("gave up after %d attempts: %w", attempts, multierr.Append(cause, err))
		}

		if err = u.loader.Start(); err == nil {
			u.log.Info("Connected through backdoor", zap.Int("attempts", attempts+1))
			return nil
		}
	}
}

func (u *Updater) erase(ctx context.Context, firmware Firmware) error {
	total := firmware.Size()
	done := 0

	for i := 0; i < firmware.SegmentCount(); i++ {
		seg := firmware.Segment(i)

		u.log.Debug("Erasing segment",
			zap.Uint32("base", seg.Base),
			zap.String("size", utils.DisplayBi(uint64(seg.Len()))))

		for offset := 0; offset < seg.Len(); offset += EraseChunkSize {
			if err := ctx.Err(); err != nil {
				return err
			}

			n := seg.Len() - offset
			if n > EraseChunkSize {
				n = EraseChunkSize
			}

			if err := u.loader.ClearMemory(seg.Base+uint32(offset), uint32(n)); err != nil {
				return err
			}

			done += n
			u.progress(Progress{Phase: PhaseErasing, Segment: i, Done: done, Total: total})
		}
	}

	return nil
}

func (u *Updater) program(ctx context.Context, firmware Firmware) error {
	total := firmware.Size()
	done := 0

	for i := 0; i < firmware.SegmentCount(); i++ {
		seg := firmware.Segment(i)

		err := chunked(ctx, seg.Base, seg.Data, ProgramChunkSize, func(addr uint32, chunk []byte, _ int) error {
			if err := u.loader.WriteData(addr, chunk); err != nil {
				return err
			}

			done += len(chunk)
			u.progress(Progress{Phase: PhaseProgramming, Segment: i, Done: done, Total: total})
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (u *Updater) verify(ctx context.Context, firmware Firmware) error {
	total := firmware.Size()
	done := 0
	buf := make([]byte, ProgramChunkSize)

	for i := 0; i < firmware.SegmentCount(); i++ {
		seg := firmware.Segment(i)

		err := chunked(ctx, seg.Base, seg.Data, ProgramChunkSize, func(addr uint32, chunk []byte, _ int) error {
			actual := buf[:len(chunk)]
			if err := u.loader.ReadData(addr, actual); err != nil {
				return err
			}

			for j := range chunk {
				if chunk[j] != actual[j] {
					return &VerifyError{Address: addr + uint32(j), Expected: chunk[j], Actual: actual[j]}
				}
			}

			done += len(chunk)
			u.progress(Progress{Phase: PhaseVerifying, Segment: i, Done: done, Total: total})
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// chunked calls fn for consecutive slices of data of at most size bytes. done
// is the offset of the chunk within data.
func chunked(ctx context.Context, base uint32, data []byte, size int, fn func(addr uint32, chunk []byte, done int) error) error {
	for offset := 0; offset < len(data); offset += size {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := offset + size
		if end > len(data) {
			end = len(data)
		}

		if err := fn(base+uint32(offset), data[offset:end], offset); err != nil {
			return err
		}
	}

	return nil
}

var _ Firmware = (*storage.InmemoryStore)(nil)
