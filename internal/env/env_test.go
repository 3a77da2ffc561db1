package env_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/xcpflash/internal/env"
)

var _ = Describe("LoadConfig()", func() {
	AfterEach(func() {
		os.Unsetenv("XCPFLASH_TRANSPORT")
		os.Unsetenv("XCPFLASH_T4")
	})

	It("falls back to the defaults", func() {
		conf, err := env.LoadConfig(context.Background())
		Expect(err).To(Succeed())
		Expect(conf.T1).To(Equal(1000))
		Expect(conf.T6).To(Equal(50))
		Expect(conf.Transport).To(Equal("xcp_rs232"))
		Expect(conf.CANTransmitID).To(Equal(uint32(0x667)))
		Expect(conf.CANReceiveID).To(Equal(uint32(0x7E1)))
	})

	It("reads XCPFLASH variables", func() {
		os.Setenv("XCPFLASH_TRANSPORT", "xcp_net")
		os.Setenv("XCPFLASH_T4", "20000")

		conf, err := env.LoadConfig(context.Background())
		Expect(err).To(Succeed())
		Expect(conf.Transport).To(Equal("xcp_net"))
		Expect(conf.T4).To(Equal(20000))
	})
})

var _ = Describe("MakeLogger()", func() {
	It("accepts known levels", func() {
		log, err := env.MakeLogger("debug", "json")
		Expect(err).To(Succeed())
		Expect(log).NotTo(BeNil())
	})

	It("rejects unknown levels", func() {
		_, err := env.MakeLogger("chatty", "console")
		Expect(err).To(HaveOccurred())
	})
})
