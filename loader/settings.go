package loader

import (
	"time"

	"go.uber.org/zap"

	"github.com/luma/xcpflash/seedkey"
	"github.com/luma/xcpflash/transport"
)

// Settings configure a Loader. They are copied by New and not changed after.
type Settings struct {
	// T1 is the timeout of regular commands
	T1 time.Duration

	// T2 is the timeout of PROGRAM and PROGRAM_MAX
	T2 time.Duration

	// T3 is the timeout of PROGRAM_START
	T3 time.Duration

	// T4 is the timeout of PROGRAM_CLEAR
	T4 time.Duration

	// T5 is the timeout of PROGRAM_RESET
	T5 time.Duration

	// T6 is the timeout of CONNECT and of the re-read after a stray packet
	T6 time.Duration

	// T7 is used for any of the above that is left at zero
	T7 time.Duration

	ConnectMode byte

	// SeedKey unlocks protected resources. It may be nil when the bootloader
	// does not protect programming.
	SeedKey seedkey.Algorithm

	// Transport is borrowed, the Loader connects and disconnects it but never
	// closes it for good.
	Transport transport.Transport

	Log *zap.Logger
}

func DefaultSettings() Settings {
	return Settings{
		T1: 1000 * time.Millisecond,
		T2: 1000 * time.Millisecond,
		T3: 2000 * time.Millisecond,
		T4: 10000 * time.Millisecond,
		T5: 1000 * time.Millisecond,
		T6: 50 * time.Millisecond,
		T7: 2000 * time.Millisecond,
	}
}

func (s Settings) withDefaults() Settings {
	if s.T7 <= 0 {
		s.T7 = DefaultSettings().T7
	}

	for _, t := range []*time.Duration{&s.T1, &s.T2, &s.T3, &s.T4, &s.T5, &s.T6} {
		if *t <= 0 {
			*t = s.T7
		}
	}

	if s.Log == nil {
		s.Log = zap.NewNop()
	}

	return s
}
