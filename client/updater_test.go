package client_test

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/xcpflash/client"
	"github.com/luma/xcpflash/loader"
	"github.com/luma/xcpflash/protocol"
	"github.com/luma/xcpflash/seedkey"
	"github.com/luma/xcpflash/simulator"
	"github.com/luma/xcpflash/storage"
	"github.com/luma/xcpflash/transport"
)

func netSettings(addr string) loader.Settings {
	host, port, err := net.SplitHostPort(addr)
	Expect(err).To(Succeed())

	portNum, err := strconv.Atoi(port)
	Expect(err).To(Succeed())

	t, err := transport.New(transport.KindNet, transport.Options{Host: host, Port: portNum})
	Expect(err).To(Succeed())

	settings := loader.DefaultSettings()
	settings.T5 = 50 * time.Millisecond
	settings.SeedKey = seedkey.Decrement{}
	settings.Transport = t

	return settings
}

func pattern(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = seed + byte(i*7)
	}

	return data
}

var _ = Describe("Updater", func() {
	var (
		server   *simulator.Server
		firmware *storage.InmemoryStore
		phases   []client.Phase
	)

	startServer := func(config simulator.Config) {
		server = simulator.NewServer(simulator.NewDevice(config), simulator.ServerOptions{
			Host:         "127.0.0.1",
			NumListeners: 1,
		})
		Expect(server.Start(context.Background())).To(Succeed())
	}

	newUpdater := func(verify bool) *client.Updater {
		return client.New(client.Options{
			Settings: netSettings(server.Addr()),
			Verify:   verify,
			Progress: func(p client.Progress) {
				if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
					phases = append(phases, p.Phase)
				}
			},
		})
	}

	BeforeEach(func() {
		phases = nil

		firmware = storage.NewInmemoryStore()
		Expect(firmware.AddData(0x08000000, pattern(700, 1))).To(Succeed())
		Expect(firmware.AddData(0x08010000, pattern(300, 9))).To(Succeed())

		config := simulator.DefaultConfig()
		config.MaxCto = 64
		config.MaxDto = 64
		config.MaxProgCto = 64
		config.SeedKey = seedkey.Decrement{}
		config.InfoTableAddress = 0x08000100
		config.InfoTableLength = 16
		startServer(config)
	})

	AfterEach(func() {
		Expect(server.Close()).To(Succeed())
		firmware.Close()
	})

	It("programs and verifies every segment", func() {
		Expect(newUpdater(true).Run(context.Background(), firmware)).To(Succeed())

		flash := server.Device().Flash()
		Expect(flash.SegmentCount()).To(Equal(2))
		Expect(flash.Segment(0)).To(Equal(firmware.Segment(0)))
		Expect(flash.Segment(1)).To(Equal(firmware.Segment(1)))
		Expect(server.Device().Resets()).To(Equal(1))

		Expect(phases).To(Equal([]client.Phase{
			client.PhaseConnecting,
			client.PhaseChecking,
			client.PhaseErasing,
			client.PhaseProgramming,
			client.PhaseVerifying,
			client.PhaseDone,
		}))
	})

	It("erases old data inside the firmware ranges", func() {
		flash := server.Device().Flash()
		Expect(flash.AddData(0x08000300, []byte{0xAA, 0xBB})).To(Succeed())
		Expect(flash.AddData(0x080002B0, pattern(16, 3))).To(Succeed())

		Expect(newUpdater(false).Run(context.Background(), firmware)).To(Succeed())

		readBack := make([]byte, 700)
		flash.Read(0x08000000, readBack, simulator.BlankValue)
		Expect(readBack).To(Equal(pattern(700, 1)))
	})

	It("stops before erasing when the info table is rejected", func() {
		flash := server.Device().Flash()
		Expect(flash.AddData(0x08000100, make([]byte, 16))).To(Succeed())

		err := newUpdater(false).Run(context.Background(), firmware)
		Expect(errors.Is(err, client.ErrInfoTableRejected)).To(BeTrue())

		Expect(phases).NotTo(ContainElement(client.PhaseErasing))
		Expect(server.Device().Resets()).To(Equal(1))
		Expect(flash.Size()).To(Equal(16))
	})

	It("reads memory back", func() {
		Expect(server.Device().Flash().AddData(0x2000, pattern(600, 5))).To(Succeed())

		data, err := newUpdater(false).Read(context.Background(), 0x2000, 600)
		Expect(err).To(Succeed())
		Expect(data).To(Equal(pattern(600, 5)))
	})

	It("refuses empty firmware", func() {
		err := newUpdater(false).Run(context.Background(), storage.NewInmemoryStore())
		Expect(err).To(MatchError(client.ErrNoFirmware))
	})

	It("keeps knocking in backdoor mode until the context ends", func() {
		settings := netSettings("127.0.0.1:1")
		updater := client.New(client.Options{Settings: settings, Backdoor: true})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := updater.Run(ctx, firmware)
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})
})

var _ = Describe("Progress", func() {
	It("reports a percentage", func() {
		Expect(client.Progress{Done: 1, Total: 4}.Percentage()).To(Equal(25.0))
		Expect(client.Progress{}.Percentage()).To(Equal(100.0))
	})
})

var _ = Describe("VerifyError", func() {
	It("names the address and both values", func() {
		err := &client.VerifyError{Address: 0x08000010, Expected: 0x12, Actual: protocol.PIDResponse}
		Expect(err.Error()).To(Equal("verify failed at 0x08000010: wrote 0x12, read 0xFF"))
	})
})
