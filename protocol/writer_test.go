package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/xcpflash/protocol"
)

var _ = Describe("Writing", func() {
	Describe("requests", func() {
		It("encodes SET_MTA with the address in slave byte order", func() {
			Expect(protocol.SetMtaRequest(0x08004000, protocol.LittleEndian)).To(Equal(
				protocol.Packet{0xF6, 0, 0, 0, 0x00, 0x40, 0x00, 0x08},
			))
			Expect(protocol.SetMtaRequest(0x08004000, protocol.BigEndian)).To(Equal(
				protocol.Packet{0xF6, 0, 0, 0, 0x08, 0x00, 0x40, 0x00},
			))
		})

		It("encodes PROGRAM_CLEAR with the length in slave byte order", func() {
			Expect(protocol.ProgramClearRequest(0x8000, protocol.BigEndian)).To(Equal(
				protocol.Packet{0xD1, 0, 0, 0, 0x00, 0x00, 0x80, 0x00},
			))
		})

		It("prefixes PROGRAM with the payload length", func() {
			Expect(protocol.ProgramRequest([]byte{1, 2, 3})).To(Equal(protocol.Packet{0xD0, 3, 1, 2, 3}))
			Expect(protocol.ProgramRequest(nil)).To(Equal(protocol.Packet{0xD0, 0}))
		})

		It("sends PROGRAM_MAX without a length", func() {
			Expect(protocol.ProgramMaxRequest([]byte{1, 2})).To(Equal(protocol.Packet{0xC9, 1, 2}))
		})

		It("encodes the unlock and seed requests", func() {
			Expect(protocol.GetSeedRequest(protocol.SeedModeContinue, protocol.ResourcePgm)).To(Equal(protocol.Packet{0xF8, 1, 0x10}))
			Expect(protocol.UnlockRequest(5, []byte{9, 8})).To(Equal(protocol.Packet{0xF7, 5, 9, 8}))
		})

		It("encodes the info table user commands", func() {
			Expect(protocol.InfoTableGetInfoRequest()).To(Equal(protocol.Packet{0xF1, 0x17, 0x04}))
			Expect(protocol.InfoTableDownloadRequest([]byte{0xAA})).To(Equal(protocol.Packet{0xF1, 0x17, 0x06, 1, 0xAA}))
			Expect(protocol.InfoTableCheckRequest()).To(Equal(protocol.Packet{0xF1, 0x17, 0x08}))
		})
	})

	Describe("responses", func() {
		It("encodes a CONNECT response the parser accepts", func() {
			want := &protocol.ConnectResponse{
				Resources: protocol.ResourcePgm,
				Order:     protocol.BigEndian,
				MaxCto:    64,
				MaxDto:    200,
			}

			got, err := protocol.ParseConnect(protocol.EncodeConnect(want))
			Expect(err).To(Succeed())
			Expect(got).To(Equal(want))
		})

		It("encodes GET_INFO so the address survives both byte orders", func() {
			for _, order := range []protocol.ByteOrder{protocol.LittleEndian, protocol.BigEndian} {
				want := &protocol.InfoTableInfo{Length: 16, Address: 0x0800C000}

				got, err := protocol.ParseInfoTableInfo(protocol.EncodeInfoTableInfo(want, order), order)
				Expect(err).To(Succeed())
				Expect(got).To(Equal(want))
			}
		})
	})
})
