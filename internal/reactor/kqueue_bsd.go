//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// kqueueReactor implements Reactor on top of BSD/Darwin kqueue.
type kqueueReactor struct {
	kq int
}

// New creates the platform reactor: kqueue on BSD-family kernels.
func New() (Reactor, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("reactor: kqueue: %w", err)
	}
	return &kqueueReactor{kq: kq}, nil
}

func (r *kqueueReactor) change(fd int, filter int16, flags uint16) error {
	kev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	}
	_, err := unix.Kevent(r.kq, []unix.Kevent_t{kev}, nil, nil)
	return err
}

func (r *kqueueReactor) AddRead(fd int) error {
	return r.change(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
}

func (r *kqueueReactor) AddWrite(fd int) error {
	return r.change(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE)
}

func (r *kqueueReactor) ModReadWrite(fd int) error {
	if err := r.AddRead(fd); err != nil {
		return err
	}
	return r.AddWrite(fd)
}

func (r *kqueueReactor) ModRead(fd int) error {
	if err := r.change(fd, unix.EVFILT_WRITE, unix.EV_DELETE); err != nil {
		// already absent is fine
		_ = err
	}
	return r.AddRead(fd)
}

func (r *kqueueReactor) Del(fd int) error {
	e1 := r.change(fd, unix.EVFILT_READ, unix.EV_DELETE)
	e2 := r.change(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	if e1 != nil {
		return e1
	}
	return e2
}

func (r *kqueueReactor) Wait(dst []Event, timeout time.Duration) ([]Event, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	raw := make([]unix.Kevent_t, 1024)
	n, err := unix.Kevent(r.kq, nil, raw, ts)
	if err != nil {
		if err == unix.EINTR {
			return dst[:0], nil
		}
		return dst[:0], fmt.Errorf("reactor: kevent: %w", err)
	}

	out := dst[:0]
	for i := 0; i < n; i++ {
		var kind EventKind
		switch raw[i].Filter {
		case unix.EVFILT_READ:
			kind = Readable
		case unix.EVFILT_WRITE:
			kind = Writable
		}
		out = append(out, Event{FD: int(raw[i].Ident), Kind: kind})
	}
	return out, nil
}

func (r *kqueueReactor) Close() error {
	return unix.Close(r.kq)
}
