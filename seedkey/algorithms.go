package seedkey

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/luma/xcpflash/protocol"
)

const (
	DecrementName = "decrement"
	HMACName      = "hmac-sha256"
)

// Decrement is the algorithm of the OpenBLT demo bootloaders. It only unlocks
// programming and derives each key byte by subtracting one from the seed byte.
type Decrement struct{}

func (Decrement) AvailableResources() protocol.Resource {
	return protocol.ResourcePgm
}

func (d Decrement) ComputeKey(resource protocol.Resource, seed []byte) ([]byte, error) {
	if err := checkRequest(d, resource, seed); err != nil {
		return nil, err
	}

	key := make([]byte, len(seed))
	for i, b := range seed {
		key[i] = b - 1
	}

	return key, nil
}

// HMAC keys are the HMAC-SHA256 of the seed under a shared secret, truncated to
// the seed length.
type HMAC struct {
	Secret    []byte
	Resources protocol.Resource
}

func (h *HMAC) AvailableResources() protocol.Resource {
	return h.Resources
}

func (h *HMAC) ComputeKey(resource protocol.Resource, seed []byte) ([]byte, error) {
	if err := checkRequest(h, resource, seed); err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, h.Secret)
	mac.Write([]byte{byte(resource)})
	mac.Write(seed)
	sum := mac.Sum(nil)

	if len(seed) < len(sum) {
		sum = sum[:len(seed)]
	}

	return sum, nil
}

var (
	_ Algorithm = Decrement{}
	_ Algorithm = (*HMAC)(nil)
)
