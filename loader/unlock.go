package loader

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/luma/xcpflash/protocol"
)

// Unlock runs the seed/key exchange for resource.
func (l *Loader) Unlock(resource protocol.Resource) error {
	if !l.connected {
		return ErrNotConnected
	}

	return l.unlock(resource)
}

func (l *Loader) unlock(resource protocol.Resource) error {
	if err := l.checkAlgorithm(resource); err != nil {
		return err
	}

	seed, err := l.requestSeed(resource)
	if err != nil {
		return err
	}

	if len(seed) == 0 {
		l.log.Info("Resource is already unlocked", zap.Stringer("resource", resource))
		return nil
	}

	key, err := l.computeKey(resource, seed)
	if err != nil {
		return err
	}

	return l.submitKey(resource, key)
}

func (l *Loader) checkAlgorithm(resource protocol.Resource) error {
	if l.settings.SeedKey == nil || l.settings.SeedKey.AvailableResources()&resource == 0 {
		return &UnlockError{Resource: resource, Err: ErrNoAlgorithm}
	}

	return nil
}

// requestSeed collects the full seed for resource, issuing GET_SEED
// continuations while the slave has more than fits in one response. An empty
// seed means the resource is not protected.
func (l *Loader) requestSeed(resource protocol.Resource) ([]byte, error) {
	part, err := l.sendGetSeed(protocol.SeedModeFirst, resource)
	if err != nil {
		return nil, err
	}

	total := part.Remaining
	if total == 0 {
		return nil, nil
	}

	perResponse := l.maxDto - 2
	if perResponse < 1 {
		return nil, &NegotiationError{Field: "MAX_DTO", Value: l.maxDto}
	}

	seed := make([]byte, total)
	cursor := copy(seed, part.Seed)

	for remaining := part.Remaining; remaining > perResponse; {
		part, err = l.sendGetSeed(protocol.SeedModeContinue, resource)
		if err != nil {
			return nil, err
		}

		remaining = part.Remaining
		if remaining != total-cursor || remaining == 0 {
			return nil, &ProtocolError{
				Command: protocol.CmdGetSeed,
				Err:     fmt.Errorf("%w: %d bytes left, expected %d", ErrSeedInconsistent, remaining, total-cursor),
			}
		}

		cursor += copy(seed[cursor:], part.Seed)
	}

	return seed, nil
}

// computeKey derives the key for seed with the configured algorithm.
func (l *Loader) computeKey(resource protocol.Resource, seed []byte) ([]byte, error) {
	if err := l.checkAlgorithm(resource); err != nil {
		return nil, err
	}

	key, err := l.settings.SeedKey.ComputeKey(resource, seed)
	if err != nil {
		return nil, &UnlockError{Resource: resource, Err: err}
	}

	return key, nil
}

// submitKey sends key in as many UNLOCK commands as it takes and checks that
// resource is unprotected afterwards.
func (l *Loader) submitKey(resource protocol.Resource, key []byte) error {
	if len(key) == 0 || len(key) > protocol.PacketSizeMax {
		return &UnlockError{Resource: resource, Err: ErrKeyLength}
	}

	perCommand := l.maxCto - 2
	if perCommand < 1 {
		return &NegotiationError{Field: "MAX_CTO", Value: l.maxCto}
	}

	var protection protocol.Resource

	for offset := 0; offset < len(key); {
		n := len(key) - offset
		if n > perCommand {
			n = perCommand
		}

		var err error
		protection, err = l.sendUnlock(byte(len(key)-offset), key[offset:offset+n])
		if err != nil {
			return err
		}

		offset += n
	}

	if protection&resource != 0 {
		return &UnlockError{Resource: resource, Err: ErrStillLocked}
	}

	l.log.Info("Unlocked resource", zap.Stringer("resource", resource))

	return nil
}
