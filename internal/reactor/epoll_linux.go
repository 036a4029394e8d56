//go:build linux

package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// epollReactor implements Reactor on top of Linux epoll, reusing the
// teacher's practice (internal/uring) of wrapping a raw kernel facility
// behind a small Go-idiomatic interface rather than shelling out to a
// higher-level framework.
type epollReactor struct {
	epfd int
}

// New creates the platform reactor: epoll on Linux.
func New() (Reactor, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &epollReactor{epfd: fd}, nil
}

func (r *epollReactor) ctl(op int, fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, op, fd, &ev)
}

func (r *epollReactor) AddRead(fd int) error {
	return r.ctl(unix.EPOLL_CTL_ADD, fd, unix.EPOLLIN)
}

func (r *epollReactor) AddWrite(fd int) error {
	return r.ctl(unix.EPOLL_CTL_ADD, fd, unix.EPOLLOUT)
}

func (r *epollReactor) ModReadWrite(fd int) error {
	return r.ctl(unix.EPOLL_CTL_MOD, fd, unix.EPOLLIN|unix.EPOLLOUT)
}

func (r *epollReactor) ModRead(fd int) error {
	return r.ctl(unix.EPOLL_CTL_MOD, fd, unix.EPOLLIN)
}

func (r *epollReactor) Del(fd int) error {
	// Linux ignores the event argument for EPOLL_CTL_DEL, but kernels
	// before 2.6.9 require a non-nil pointer.
	ev := unix.EpollEvent{}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, &ev)
}

func (r *epollReactor) Wait(dst []Event, timeout time.Duration) ([]Event, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}

	raw := make([]unix.EpollEvent, 1024)
	n, err := unix.EpollWait(r.epfd, raw, ms)
	if err != nil {
		if err == unix.EINTR {
			return dst[:0], nil
		}
		return dst[:0], fmt.Errorf("reactor: epoll_wait: %w", err)
	}

	out := dst[:0]
	for i := 0; i < n; i++ {
		var kind EventKind
		if raw[i].Events&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			kind |= Readable
		}
		if raw[i].Events&unix.EPOLLOUT != 0 {
			kind |= Writable
		}
		out = append(out, Event{FD: int(raw[i].Fd), Kind: kind})
	}
	return out, nil
}

func (r *epollReactor) Close() error {
	return unix.Close(r.epfd)
}
