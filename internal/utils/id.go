package utils

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

var entropy = rand.Reader

// NewSessionID returns a ULID that tags the log lines of one update.
func NewSessionID() (ulid.ULID, error) {
	return ulid.New(ulid.Now(), entropy)
}
