package simulator_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/xcpflash/protocol"
	"github.com/luma/xcpflash/seedkey"
	"github.com/luma/xcpflash/simulator"
)

func handle(d *simulator.Device, req protocol.Packet) protocol.Packet {
	resps := d.Handle(req)
	Expect(resps).To(HaveLen(1))

	return resps[0]
}

var _ = Describe("Device", func() {
	var device *simulator.Device

	BeforeEach(func() {
		device = simulator.NewDevice(simulator.DefaultConfig())
	})

	It("ignores commands before CONNECT", func() {
		Expect(device.Handle(protocol.GetStatusRequest())).To(BeEmpty())
	})

	It("reports its limits on CONNECT", func() {
		resp, err := protocol.ParseConnect(handle(device, protocol.ConnectRequest(0)))
		Expect(err).To(Succeed())
		Expect(resp.MaxCto).To(Equal(8))
		Expect(resp.MaxDto).To(Equal(8))
		Expect(resp.Order).To(Equal(protocol.LittleEndian))
	})

	It("refuses to program before PROGRAM_START", func() {
		handle(device, protocol.ConnectRequest(0))
		handle(device, protocol.SetMtaRequest(0x100, protocol.LittleEndian))

		err := protocol.ParseAck(handle(device, protocol.ProgramRequest([]byte{1, 2})))

		var errResp *protocol.ErrorResponse
		Expect(err).To(BeAssignableToTypeOf(errResp))
		Expect(err.(*protocol.ErrorResponse).Code).To(Equal(protocol.ErrSequence))
	})

	It("programs, reads back and erases flash", func() {
		handle(device, protocol.ConnectRequest(0))
		handle(device, protocol.ProgramStartRequest())

		Expect(protocol.ParseAck(handle(device, protocol.SetMtaRequest(0x100, protocol.LittleEndian)))).To(Succeed())
		Expect(protocol.ParseAck(handle(device, protocol.ProgramRequest([]byte{1, 2, 3})))).To(Succeed())
		Expect(protocol.ParseAck(handle(device, protocol.ProgramMaxRequest([]byte{4, 5, 6, 7, 8, 9, 10})))).To(Succeed())

		upload := func() []byte {
			handle(device, protocol.SetMtaRequest(0xFE, protocol.LittleEndian))
			data, err := protocol.ParseUpload(handle(device, protocol.UploadRequest(6)), 6)
			Expect(err).To(Succeed())
			return data
		}

		By("holding the data until the sequence ends")
		Expect(upload()).To(Equal([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}))
		Expect(device.Flash().Size()).To(BeZero())

		Expect(protocol.ParseAck(handle(device, protocol.ProgramRequest(nil)))).To(Succeed())
		Expect(upload()).To(Equal([]byte{0xFF, 0xFF, 1, 2, 3, 4}))

		handle(device, protocol.ProgramStartRequest())
		handle(device, protocol.SetMtaRequest(0x100, protocol.LittleEndian))
		Expect(protocol.ParseAck(handle(device, protocol.ProgramClearRequest(4, protocol.LittleEndian)))).To(Succeed())
		Expect(device.Flash().Size()).To(Equal(6))
	})

	It("drops unfinished data on reset", func() {
		handle(device, protocol.ConnectRequest(0))
		handle(device, protocol.ProgramStartRequest())
		handle(device, protocol.SetMtaRequest(0x100, protocol.LittleEndian))
		handle(device, protocol.ProgramRequest([]byte{1, 2, 3}))

		device.Handle(protocol.ProgramResetRequest())
		handle(device, protocol.ConnectRequest(0))
		handle(device, protocol.ProgramStartRequest())
		Expect(protocol.ParseAck(handle(device, protocol.ProgramRequest(nil)))).To(Succeed())

		Expect(device.Flash().Size()).To(BeZero())
	})

	It("does not answer PROGRAM_RESET", func() {
		handle(device, protocol.ConnectRequest(0))

		Expect(device.Handle(protocol.ProgramResetRequest())).To(ContainElement(BeNil()))
		Expect(device.Resets()).To(Equal(1))
		Expect(device.Handle(protocol.GetStatusRequest())).To(BeEmpty())
	})

	It("sends a late CONNECT response ahead of the first status", func() {
		config := simulator.DefaultConfig()
		config.LateConnectResponse = true
		device = simulator.NewDevice(config)

		handle(device, protocol.ConnectRequest(0))

		resps := device.Handle(protocol.GetStatusRequest())
		Expect(resps).To(HaveLen(2))
		Expect(protocol.IsConnectResponse(resps[0])).To(BeTrue())

		Expect(device.Handle(protocol.GetStatusRequest())).To(HaveLen(1))
	})

	Describe("protection", func() {
		BeforeEach(func() {
			config := simulator.DefaultConfig()
			config.SeedKey = seedkey.Decrement{}
			config.SeedLength = 9
			device = simulator.NewDevice(config)

			handle(device, protocol.ConnectRequest(0))
		})

		seed := func() []byte {
			var seed []byte

			resp, err := protocol.ParseSeed(handle(device, protocol.GetSeedRequest(protocol.SeedModeFirst, protocol.ResourcePgm)), 8)
			Expect(err).To(Succeed())
			Expect(resp.Remaining).To(Equal(9))
			seed = append(seed, resp.Seed...)

			for resp.Remaining > 6 {
				resp, err = protocol.ParseSeed(handle(device, protocol.GetSeedRequest(protocol.SeedModeContinue, protocol.ResourcePgm)), 8)
				Expect(err).To(Succeed())
				seed = append(seed, resp.Seed...)
			}

			Expect(seed).To(HaveLen(9))
			return seed
		}

		It("rejects PROGRAM_START while locked", func() {
			err := protocol.ParseAck(handle(device, protocol.ProgramStartRequest()))
			Expect(err).To(HaveOccurred())
		})

		It("unlocks with the right key", func() {
			key, err := seedkey.Decrement{}.ComputeKey(protocol.ResourcePgm, seed())
			Expect(err).To(Succeed())

			protection, err := protocol.ParseUnlock(handle(device, protocol.UnlockRequest(9, key[:6])))
			Expect(err).To(Succeed())
			Expect(protection).To(Equal(protocol.ResourcePgm))

			protection, err = protocol.ParseUnlock(handle(device, protocol.UnlockRequest(3, key[6:])))
			Expect(err).To(Succeed())
			Expect(protection).To(BeZero())

			_, err = protocol.ParseProgramStart(handle(device, protocol.ProgramStartRequest()))
			Expect(err).To(Succeed())
		})

		It("stays locked with the wrong key", func() {
			seed()

			protection, err := protocol.ParseUnlock(handle(device, protocol.UnlockRequest(2, []byte{0, 0})))
			Expect(err).To(Succeed())
			Expect(protection).To(Equal(protocol.ResourcePgm))
		})
	})

	Describe("info table", func() {
		BeforeEach(func() {
			config := simulator.DefaultConfig()
			config.InfoTableAddress = 0x400
			config.InfoTableLength = 4
			device = simulator.NewDevice(config)

			handle(device, protocol.ConnectRequest(0))
		})

		check := func(table []byte) bool {
			_, err := protocol.ParseInfoTableInfo(handle(device, protocol.InfoTableGetInfoRequest()), protocol.LittleEndian)
			Expect(err).To(Succeed())
			Expect(protocol.ParseInfoTableDownload(handle(device, protocol.InfoTableDownloadRequest(table)))).To(Succeed())

			okay, err := protocol.ParseInfoTableCheck(handle(device, protocol.InfoTableCheckRequest()))
			Expect(err).To(Succeed())
			return okay
		}

		It("accepts any table over blank flash", func() {
			Expect(check([]byte{1, 2, 3, 4})).To(BeTrue())
		})

		It("only accepts the programmed table afterwards", func() {
			Expect(device.Flash().AddData(0x400, []byte{1, 2, 3, 4})).To(Succeed())

			Expect(check([]byte{1, 2, 3, 4})).To(BeTrue())
			Expect(check([]byte{1, 2, 3, 5})).To(BeFalse())
		})

		It("is unknown when not configured", func() {
			device = simulator.NewDevice(simulator.DefaultConfig())
			handle(device, protocol.ConnectRequest(0))

			err := protocol.ParseAck(handle(device, protocol.InfoTableGetInfoRequest()))
			Expect(err).To(HaveOccurred())
			Expect(err.(*protocol.ErrorResponse).Code).To(Equal(protocol.ErrCmdUnknown))
		})
	})
})
