// Package seedkey holds the algorithms that turn a seed issued by the
// bootloader into the key that unlocks a protected resource.
package seedkey

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/luma/xcpflash/protocol"
)

var (
	ErrUnsupportedResource = errors.New("Algorithm cannot unlock the requested resource")
	ErrUnknownAlgorithm    = errors.New("No seed/key algorithm registered under that name")
	ErrEmptySeed           = errors.New("Seed is empty")
	ErrMissingSecret       = errors.New("Algorithm requires a secret")
)

// Algorithm computes unlock keys. Implementations are vendor specific and must
// match the algorithm compiled into the bootloader.
type Algorithm interface {
	// AvailableResources is the mask of resources the algorithm has a key for.
	AvailableResources() protocol.Resource

	ComputeKey(resource protocol.Resource, seed []byte) ([]byte, error)
}

// Factory builds an Algorithm. secret may be nil for algorithms without one.
type Factory func(secret []byte) (Algorithm, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes an algorithm available to Lookup. Registering the same name
// twice replaces the earlier factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[name] = factory
}

// Lookup builds the algorithm registered under name.
func Lookup(name string, secret []byte) (Algorithm, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}

	return factory(secret)
}

// Names lists the registered algorithms in alphabetical order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func checkRequest(a Algorithm, resource protocol.Resource, seed []byte) error {
	if a.AvailableResources()&resource == 0 || !resource.Valid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedResource, resource)
	}

	if len(seed) == 0 {
		return ErrEmptySeed
	}

	return nil
}

func init() {
	Register(DecrementName, func([]byte) (Algorithm, error) {
		return Decrement{}, nil
	})

	Register(HMACName, func(secret []byte) (Algorithm, error) {
		if len(secret) == 0 {
			return nil, ErrMissingSecret
		}

		return &HMAC{Secret: secret, Resources: protocol.ResourcePgm}, nil
	})
}
