//go:build linux
// +build linux

package transport

import (
	"time"

	"golang.org/x/sys/unix"
)

// Poller waits for a single file descriptor to become readable, so reads on
// raw sockets can honour a timeout.
type Poller struct {
	fd      int
	watchFd int
}

func MakePoller(watchFd int) (*Poller, error) {
	var (
		poller = Poller{watchFd: watchFd}
		err    error
	)

	// https://man7.org/linux/man-pages/man2/epoll_create.2.html
	poller.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	// https://man7.org/linux/man-pages/man2/epoll_ctl.2.html
	event := &unix.EpollEvent{
		Fd:     int32(watchFd),
		Events: unix.EPOLLIN,
	}

	if err = unix.EpollCtl(poller.fd, unix.EPOLL_CTL_ADD, watchFd, event); err != nil {
		unix.Close(poller.fd)
		return nil, err
	}

	return &poller, nil
}

// Wait blocks until the watched descriptor is readable or timeout passes. It
// returns false on timeout.
func (p *Poller) Wait(timeout time.Duration) (bool, error) {
	var events [1]unix.EpollEvent

	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}

		// round up so a sub millisecond remainder does not spin
		ms := int((remaining + time.Millisecond - 1) / time.Millisecond)

		n, err := unix.EpollWait(p.fd, events[:], ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}

		if n > 0 && events[0].Events&unix.EPOLLIN != 0 {
			return true, nil
		}
	}
}

func (p *Poller) Close() error {
	return unix.Close(p.fd)
}
