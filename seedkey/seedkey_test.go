package seedkey_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/xcpflash/protocol"
	"github.com/luma/xcpflash/seedkey"
)

var _ = Describe("seedkey", func() {
	Describe("Decrement", func() {
		It("subtracts one from every seed byte", func() {
			key, err := seedkey.Decrement{}.ComputeKey(protocol.ResourcePgm, []byte{0x01, 0x00, 0xFF})
			Expect(err).To(Succeed())
			Expect(key).To(Equal([]byte{0x00, 0xFF, 0xFE}))
		})

		It("only unlocks programming", func() {
			_, err := seedkey.Decrement{}.ComputeKey(protocol.ResourceDaq, []byte{0x01})
			Expect(errors.Is(err, seedkey.ErrUnsupportedResource)).To(BeTrue())
		})

		It("rejects an empty seed", func() {
			_, err := seedkey.Decrement{}.ComputeKey(protocol.ResourcePgm, nil)
			Expect(err).To(MatchError(seedkey.ErrEmptySeed))
		})
	})

	Describe("HMAC", func() {
		It("produces a key as long as a short seed", func() {
			algo := &seedkey.HMAC{Secret: []byte("secret"), Resources: protocol.ResourcePgm}

			key, err := algo.ComputeKey(protocol.ResourcePgm, []byte{1, 2, 3, 4})
			Expect(err).To(Succeed())
			Expect(key).To(HaveLen(4))

			again, err := algo.ComputeKey(protocol.ResourcePgm, []byte{1, 2, 3, 4})
			Expect(err).To(Succeed())
			Expect(again).To(Equal(key))
		})

		It("caps the key at the digest size", func() {
			algo := &seedkey.HMAC{Secret: []byte("secret"), Resources: protocol.ResourcePgm}

			key, err := algo.ComputeKey(protocol.ResourcePgm, make([]byte, 100))
			Expect(err).To(Succeed())
			Expect(key).To(HaveLen(32))
		})

		It("depends on the secret", func() {
			a, _ := (&seedkey.HMAC{Secret: []byte("a"), Resources: protocol.ResourcePgm}).ComputeKey(protocol.ResourcePgm, []byte{9, 9})
			b, _ := (&seedkey.HMAC{Secret: []byte("b"), Resources: protocol.ResourcePgm}).ComputeKey(protocol.ResourcePgm, []byte{9, 9})
			Expect(a).NotTo(Equal(b))
		})
	})

	Describe("Lookup()", func() {
		It("finds the built in algorithms", func() {
			Expect(seedkey.Names()).To(ContainElements(seedkey.DecrementName, seedkey.HMACName))

			algo, err := seedkey.Lookup(seedkey.DecrementName, nil)
			Expect(err).To(Succeed())
			Expect(algo.AvailableResources()).To(Equal(protocol.ResourcePgm))
		})

		It("requires a secret for HMAC", func() {
			_, err := seedkey.Lookup(seedkey.HMACName, nil)
			Expect(err).To(MatchError(seedkey.ErrMissingSecret))
		})

		It("fails for unknown names", func() {
			_, err := seedkey.Lookup("rot13", nil)
			Expect(errors.Is(err, seedkey.ErrUnknownAlgorithm)).To(BeTrue())
		})
	})
})
