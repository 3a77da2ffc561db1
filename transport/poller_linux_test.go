//go:build linux
// +build linux

package transport_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"

	"github.com/luma/xcpflash/transport"
)

var _ = Describe("Poller", func() {
	var fds [2]int

	BeforeEach(func() {
		Expect(unix.Pipe2(fds[:], unix.O_CLOEXEC)).To(Succeed())
	})

	AfterEach(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})

	It("reports readiness once data arrives", func() {
		poller, err := transport.MakePoller(fds[0])
		Expect(err).To(Succeed())
		defer poller.Close()

		ready, err := poller.Wait(20 * time.Millisecond)
		Expect(err).To(Succeed())
		Expect(ready).To(BeFalse())

		_, err = unix.Write(fds[1], []byte{1})
		Expect(err).To(Succeed())

		ready, err = poller.Wait(time.Second)
		Expect(err).To(Succeed())
		Expect(ready).To(BeTrue())
	})
})
