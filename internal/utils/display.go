package utils

import (
	"fmt"
	"time"
)

const (
	kib = 1024
	mib = 1024 * 1024
)

// DisplayBi formats a byte count with binary prefixes, flash sizes are
// usually quoted that way.
func DisplayBi(bytes uint64) string {
	switch {
	case bytes >= mib:
		return fmt.Sprintf("%.2f MiB", float64(bytes)/mib)
	case bytes >= kib:
		return fmt.Sprintf("%.2f KiB", float64(bytes)/kib)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// DisplayRate formats a transfer rate in bytes per second.
func DisplayRate(bytes uint64, duration time.Duration) string {
	if duration <= 0 {
		return "0 B/s"
	}

	return DisplayBi(uint64(float64(bytes)/duration.Seconds())) + "/s"
}
