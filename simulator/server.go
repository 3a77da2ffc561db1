package simulator

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/xcpflash/protocol"
	"github.com/luma/xcpflash/transport"
)

// ResponseGap separates consecutive responses to one command so each arrives
// in its own read on the host.
const ResponseGap = 20 * time.Millisecond

type ServerOptions struct {
	Host string
	Port int

	// NumListeners defaults to the number of CPUs
	NumListeners int

	Log *zap.Logger
}

// Server exposes a Device as an XCP on TCP/IP bootloader.
type Server struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr string

	numListeners int
	listeners    []*Listener

	device *Device

	log *zap.Logger
}

func NewServer(device *Device, options ServerOptions) *Server {
	numListeners := options.NumListeners
	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}

	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	return &Server{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		numListeners: numListeners,
		listeners:    make([]*Listener, 0, numListeners),
		device:       device,
		log:          options.Log.Named("server"),
	}
}

func (s *Server) Device() *Device {
	return s.device
}

// Addr is the address the server listens on. Once started it carries the
// bound port, which differs from the configured one when that was 0.
func (s *Server) Addr() string {
	if len(s.listeners) > 0 {
		return s.listeners[0].listener.Addr().String()
	}

	return s.addr
}

// Start opens the listeners. Listeners share the port through SO_REUSEPORT.
func (s *Server) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancel = cancel

	s.log.Info("Starting tcp listeners", zap.Int("count", s.numListeners), zap.String("addr", s.addr))

	for i := 0; i < s.numListeners; i++ {
		listener, err := reuseport.Listen("tcp", s.addr)
		if err != nil {
			cancel()
			return multierr.Append(err, s.closeListeners())
		}

		s.startListener(ctx, listener)
	}

	return nil
}

func (s *Server) startListener(ctx context.Context, netListener net.Listener) {
	listener := NewListener(
		ctx,
		netListener,
		s.device,
		s.log.Named("listener").With(zap.Int("listener", len(s.listeners))),
	)

	s.listeners = append(s.listeners, listener)

	s.stopWaiter.Add(1)
	go func() {
		defer s.stopWaiter.Done()

		if err := listener.Listen(); err != nil {
			s.log.Error("Failed to listen", zap.Error(err))
		}
	}()
}

// Close immediately closes all listeners and connections.
func (s *Server) Close() error {
	s.log.Info("Stopping TCP server")

	if s.cancel != nil {
		s.cancel()
	}

	err := s.closeListeners()
	s.stopWaiter.Wait()

	s.log.Info("TCP server stopped")

	return err
}

func (s *Server) closeListeners() (err error) {
	for _, listener := range s.listeners {
		err = multierr.Append(err, listener.Close())
	}

	return err
}

type Listener struct {
	ctx context.Context

	listener net.Listener
	device   *Device
	log      *zap.Logger

	mu          sync.Mutex
	activeConns map[*Conn]struct{}
}

func NewListener(ctx context.Context, listener net.Listener, device *Device, log *zap.Logger) *Listener {
	return &Listener{
		ctx:         ctx,
		listener:    listener,
		device:      device,
		activeConns: make(map[*Conn]struct{}),
		log:         log,
	}
}

func (l *Listener) Close() error {
	err := l.listener.Close()
	if err != nil && isClosedErr(err) {
		err = nil
	}

	l.mu.Lock()
	conns := make([]*Conn, 0, len(l.activeConns))
	for conn := range l.activeConns {
		conns = append(conns, conn)
	}
	l.mu.Unlock()

	for _, conn := range conns {
		err = multierr.Append(err, conn.Close())
	}

	return err
}

func (l *Listener) Listen() error {
	var loopWaiter sync.WaitGroup
	defer loopWaiter.Wait()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if isClosedErr(err) {
				l.log.Info("Listener stopped")
				return nil
			}

			return err
		}

		tcpConn := NewConn(l.ctx, conn.(*net.TCPConn), l.device, l.log.Named("conn"))
		l.addConn(tcpConn)

		loopWaiter.Add(1)
		go func() {
			defer loopWaiter.Done()
			defer l.removeConn(tcpConn)

			tcpConn.Start()
		}()
	}
}

func (l *Listener) addConn(conn *Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.activeConns[conn] = struct{}{}
}

func (l *Listener) removeConn(conn *Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.activeConns, conn)
}

// Conn serves one host. Requests are read and handled in the read loop, the
// responses go through the write queue to the write loop.
type Conn struct {
	ctx        context.Context
	cancel     context.CancelFunc
	loopWaiter sync.WaitGroup
	closeOnce  sync.Once

	conn   *net.TCPConn
	device *Device

	writeQueue chan []byte
	counter    uint32

	log *zap.Logger
}

func NewConn(parentCtx context.Context, conn *net.TCPConn, device *Device, log *zap.Logger) *Conn {
	ctx, cancel := context.WithCancel(parentCtx)

	return &Conn{
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		device:     device,
		writeQueue: make(chan []byte, 16),
		log:        log.With(zap.String("remote", conn.RemoteAddr().String())),
	}
}

func (c *Conn) Close() (err error) {
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
		if isClosedErr(err) {
			err = nil
		}
	})

	return err
}

// Start runs the read and write loops until the host disconnects or the
// connection is closed.
func (c *Conn) Start() {
	c.log.Info("Host connected")

	c.loopWaiter.Add(2)

	go func() {
		defer c.loopWaiter.Done()
		c.ReadLoop()
	}()

	go func() {
		defer c.loopWaiter.Done()
		c.WriteLoop()
	}()

	c.loopWaiter.Wait()

	if err := c.Close(); err != nil {
		c.log.Warn("Connection did not close cleanly", zap.Error(err))
	}

	c.log.Info("Host disconnected")
}

func (c *Conn) ReadLoop() {
	// the write loop exits once the read loop is done
	defer c.cancel()

	buf := make([]byte, transport.CounterSize+protocol.PacketSizeMax)

	for c.isRunning() {
		n, err := c.conn.Read(buf)
		if err != nil {
			if !isClosedErr(err) {
				c.log.Debug("Read loop exiting", zap.Error(err))
			}
			return
		}

		if n <= transport.CounterSize {
			c.log.Warn("Dropping short frame", zap.Int("len", n))
			continue
		}

		req := make(protocol.Packet, n-transport.CounterSize)
		copy(req, buf[transport.CounterSize:n])

		for i, resp := range c.device.Handle(req) {
			if resp == nil {
				continue
			}

			if i > 0 {
				time.Sleep(ResponseGap)
			}

			if !c.enqueue(c.frame(resp)) {
				return
			}
		}
	}
}

func (c *Conn) WriteLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return

		case data := <-c.writeQueue:
			if _, err := c.conn.Write(data); err != nil {
				c.log.Warn("Failed to write response", zap.Error(err))
				return
			}
		}
	}
}

func (c *Conn) enqueue(data []byte) bool {
	select {
	case c.writeQueue <- data:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// frame prefixes resp with the DTO counter.
func (c *Conn) frame(resp protocol.Packet) []byte {
	c.counter++

	data := make([]byte, transport.CounterSize, transport.CounterSize+len(resp))
	binary.LittleEndian.PutUint32(data, c.counter)

	return append(data, resp...)
}

// isRunning returns true if Close has not been called
func (c *Conn) isRunning() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || (err != nil && strings.Contains(err.Error(), "use of closed network connection"))
}
