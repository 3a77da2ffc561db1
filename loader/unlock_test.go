package loader_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/xcpflash/loader"
	"github.com/luma/xcpflash/protocol"
	"github.com/luma/xcpflash/seedkey"
)

func seedReply(remaining int, seed ...byte) reply {
	return ok(protocol.EncodeSeed(&protocol.SeedResponse{Remaining: remaining, Seed: seed}))
}

func unlockReply(protection protocol.Resource) reply {
	return ok(protocol.EncodeUnlock(protection))
}

var _ = Describe("Unlock", func() {
	var (
		fake     *scriptedTransport
		settings loader.Settings
	)

	BeforeEach(func() {
		fake = &scriptedTransport{}

		settings = loader.DefaultSettings()
		settings.Transport = fake
		settings.SeedKey = seedkey.Decrement{}
	})

	// protectedSession scripts a connect and a status that reports PGM as
	// protected.
	protectedSession := func(maxCto, maxDto int) {
		fake.then(
			connectReply(maxCto, maxDto, protocol.LittleEndian),
			statusReply(protocol.ResourcePgm),
		)
	}

	It("collects a long seed with continuations and sends the key in chunks", func() {
		protectedSession(8, 5)
		fake.then(
			seedReply(12, 1, 2, 3),
			seedReply(9, 4, 5, 6),
			seedReply(6, 7, 8, 9),
			seedReply(3, 10, 11, 12),
			unlockReply(protocol.ResourcePgm),
			unlockReply(0),
			programStartReply(8),
		)

		Expect(loader.New(settings).Start()).To(Succeed())

		seeds := fake.sentWith(protocol.CmdGetSeed)
		Expect(seeds).To(HaveLen(4))
		Expect(seeds[0]).To(Equal(protocol.Packet{0xF8, protocol.SeedModeFirst, byte(protocol.ResourcePgm)}))
		for _, p := range seeds[1:] {
			Expect(p[1]).To(Equal(protocol.SeedModeContinue))
		}

		// maxCto 8 leaves room for 6 key bytes per UNLOCK
		Expect(fake.sentWith(protocol.CmdUnlock)).To(Equal([]protocol.Packet{
			{0xF7, 12, 0, 1, 2, 3, 4, 5},
			{0xF7, 6, 6, 7, 8, 9, 10, 11},
		}))
	})

	It("needs one continuation for a five byte seed arriving three bytes at a time", func() {
		protectedSession(8, 5)
		fake.then(
			seedReply(5, 0x11, 0x12, 0x13),
			seedReply(2, 0x14, 0x15),
			unlockReply(0),
			programStartReply(8),
		)

		Expect(loader.New(settings).Start()).To(Succeed())

		seeds := fake.sentWith(protocol.CmdGetSeed)
		Expect(seeds).To(HaveLen(2))
		Expect(seeds[0][1]).To(Equal(protocol.SeedModeFirst))
		Expect(seeds[1][1]).To(Equal(protocol.SeedModeContinue))
		Expect(fake.sentWith(protocol.CmdUnlock)).To(Equal([]protocol.Packet{
			{0xF7, 5, 0x10, 0x11, 0x12, 0x13, 0x14},
		}))
	})

	It("skips the key when the seed is empty", func() {
		protectedSession(8, 8)
		fake.then(
			seedReply(0),
			programStartReply(8),
		)

		Expect(loader.New(settings).Start()).To(Succeed())
		Expect(fake.sentWith(protocol.CmdUnlock)).To(BeEmpty())
	})

	It("fails when the resource is still locked after the key", func() {
		protectedSession(8, 8)
		fake.then(
			seedReply(2, 5, 6),
			unlockReply(protocol.ResourcePgm),
		)

		err := loader.New(settings).Start()

		var unlockErr *loader.UnlockError
		Expect(errors.As(err, &unlockErr)).To(BeTrue())
		Expect(unlockErr.Resource).To(Equal(protocol.ResourcePgm))
		Expect(errors.Is(err, loader.ErrStillLocked)).To(BeTrue())
		Expect(fake.sentWith(protocol.CmdProgramStart)).To(BeEmpty())
	})

	It("only looks at the requested resource bit", func() {
		protectedSession(8, 8)
		fake.then(
			seedReply(1, 9),
			unlockReply(protocol.ResourceDaq|protocol.ResourceCalPag),
			programStartReply(8),
		)

		Expect(loader.New(settings).Start()).To(Succeed())
	})

	It("fails before requesting a seed without an algorithm", func() {
		settings.SeedKey = nil
		protectedSession(8, 8)

		err := loader.New(settings).Start()

		Expect(errors.Is(err, loader.ErrNoAlgorithm)).To(BeTrue())
		Expect(fake.sentWith(protocol.CmdGetSeed)).To(BeEmpty())
	})

	It("rejects continuations that do not add up", func() {
		protectedSession(8, 5)
		fake.then(
			seedReply(6, 1, 2, 3),
			seedReply(5, 4, 5, 6),
		)

		err := loader.New(settings).Start()

		var protoErr *loader.ProtocolError
		Expect(errors.As(err, &protoErr)).To(BeTrue())
		Expect(errors.Is(err, loader.ErrSeedInconsistent)).To(BeTrue())
	})
})
