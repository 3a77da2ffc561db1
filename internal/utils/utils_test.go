package utils_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/xcpflash/internal/utils"
)

var _ = Describe("DisplayBi()", func() {
	It("picks the largest fitting unit", func() {
		Expect(utils.DisplayBi(512)).To(Equal("512 B"))
		Expect(utils.DisplayBi(32 * 1024)).To(Equal("32.00 KiB"))
		Expect(utils.DisplayBi(3 * 1024 * 1024 / 2)).To(Equal("1.50 MiB"))
	})
})

var _ = Describe("DisplayRate()", func() {
	It("divides by the elapsed time", func() {
		Expect(utils.DisplayRate(2048, 2*time.Second)).To(Equal("1.00 KiB/s"))
		Expect(utils.DisplayRate(2048, 0)).To(Equal("0 B/s"))
	})
})

var _ = Describe("NewSessionID()", func() {
	It("returns distinct ids", func() {
		a, err := utils.NewSessionID()
		Expect(err).To(Succeed())

		b, err := utils.NewSessionID()
		Expect(err).To(Succeed())

		Expect(a).NotTo(Equal(b))
	})
})
