package transport_test

import (
	"encoding/binary"
	"errors"
	"net"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/xcpflash/protocol"
	"github.com/luma/xcpflash/transport"
)

// echoSlave answers every frame with the bytes in reply, prefixed by its own
// counter, and reports the frames it received.
func echoSlave(listener net.Listener, reply []byte, frames chan<- []byte) {
	conn, err := listener.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	buf := make([]byte, 512)
	var counter uint32

	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}

		frames <- append([]byte(nil), buf[:n]...)

		if reply == nil {
			continue
		}

		counter++
		frame := make([]byte, transport.CounterSize)
		binary.LittleEndian.PutUint32(frame, counter+100)
		if _, err := conn.Write(append(frame, reply...)); err != nil {
			return
		}
	}
}

var _ = Describe("Net", func() {
	var (
		listener net.Listener
		frames   chan []byte
	)

	BeforeEach(func() {
		var err error
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(Succeed())

		frames = make(chan []byte, 16)
	})

	AfterEach(func() {
		listener.Close()
	})

	dial := func() *transport.Net {
		_, port, err := net.SplitHostPort(listener.Addr().String())
		Expect(err).To(Succeed())

		portNum, err := strconv.Atoi(port)
		Expect(err).To(Succeed())

		t := transport.NewNet(transport.Options{Host: "127.0.0.1", Port: portNum})
		Expect(t.Connect()).To(Succeed())

		return t
	}

	It("numbers requests from 1 and strips the response counter", func() {
		go echoSlave(listener, []byte{0xFF, 0x01}, frames)

		t := dial()
		defer t.Disconnect()

		for i := 1; i <= 2; i++ {
			resp, err := t.SendPacket(protocol.GetStatusRequest(), time.Second)
			Expect(err).To(Succeed())
			Expect(resp).To(Equal(protocol.Packet{0xFF, 0x01}))

			var frame []byte
			Eventually(frames).Should(Receive(&frame))
			Expect(binary.LittleEndian.Uint32(frame)).To(Equal(uint32(i)))
			Expect(frame[transport.CounterSize:]).To(Equal([]byte{0xFD}))
		}
	})

	It("restarts the counter after reconnecting", func() {
		go func() {
			echoSlave(listener, []byte{0xFF}, frames)
			echoSlave(listener, []byte{0xFF}, frames)
		}()

		t := dial()
		_, err := t.SendPacket(protocol.GetStatusRequest(), time.Second)
		Expect(err).To(Succeed())
		_, err = t.SendPacket(protocol.GetStatusRequest(), time.Second)
		Expect(err).To(Succeed())
		Expect(t.Disconnect()).To(Succeed())

		Expect(t.Connect()).To(Succeed())
		defer t.Disconnect()
		_, err = t.SendPacket(protocol.GetStatusRequest(), time.Second)
		Expect(err).To(Succeed())

		var frame []byte
		for i := 0; i < 3; i++ {
			Eventually(frames).Should(Receive(&frame))
		}
		Expect(binary.LittleEndian.Uint32(frame)).To(Equal(uint32(1)))
	})

	It("times out when the slave stays silent", func() {
		go echoSlave(listener, nil, frames)

		t := dial()
		defer t.Disconnect()

		_, err := t.SendPacket(protocol.GetStatusRequest(), 30*time.Millisecond)
		Expect(err).To(MatchError(transport.ErrTimeout))
		Expect(transport.IsNoResponse(err)).To(BeTrue())
	})

	It("reports a closed connection", func() {
		go func() {
			conn, err := listener.Accept()
			if err != nil {
				return
			}

			// swallow the request and hang up
			buf := make([]byte, 512)
			_, _ = conn.Read(buf)
			conn.Close()
		}()

		t := dial()
		defer t.Disconnect()

		_, err := t.SendPacket(protocol.GetStatusRequest(), time.Second)
		Expect(err).To(MatchError(transport.ErrClosed))
	})

	It("refuses to send before Connect", func() {
		t := transport.NewNet(transport.Options{Host: "127.0.0.1"})

		_, err := t.SendPacket(protocol.GetStatusRequest(), time.Second)
		Expect(err).To(MatchError(transport.ErrNotConnected))
	})

	It("rejects oversized packets", func() {
		go echoSlave(listener, []byte{0xFF}, frames)

		t := dial()
		defer t.Disconnect()

		_, err := t.SendPacket(make(protocol.Packet, protocol.PacketSizeMax+1), time.Second)
		Expect(errors.Is(err, transport.ErrPacketTooLarge)).To(BeTrue())
	})
})
