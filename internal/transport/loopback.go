// Package transport provides a loopback iface.Transport for local
// demos and integration tests: two Loopback values created by NewPair
// exchange frames directly in memory, standing in for the socket
// framing a real daemon connection would do. Grounded on the teacher's
// internal/uring package being a swappable Ring implementation behind
// the same interface as the real io_uring backend.
package transport

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/mdlayher/ubus/internal/wire"
)

// Loopback is one end of an in-memory frame pipe.
type Loopback struct {
	out        chan<- wire.Frame
	in         <-chan wire.Frame
	registered bool
}

// NewPair returns two connected Loopback transports: frames sent on a
// are delivered to b's Poll and vice versa.
func NewPair(buffer int) (a, b *Loopback) {
	ab := make(chan wire.Frame, buffer)
	ba := make(chan wire.Frame, buffer)
	a = &Loopback{out: ab, in: ba}
	b = &Loopback{out: ba, in: ab}
	return a, b
}

// Send implements internal/iface.Transport.
func (l *Loopback) Send(hdr wire.Header, payload *wire.Node, fd int) error {
	l.out <- wire.Frame{Header: hdr, Payload: payload, FD: fd}
	return nil
}

// Poll implements internal/iface.Transport: timeout == 0 drains
// whatever is already queued without blocking; timeout < 0 blocks
// until at least one frame arrives; timeout > 0 blocks up to that long.
func (l *Loopback) Poll(timeout time.Duration) ([]wire.Frame, error) {
	var frames []wire.Frame

	if timeout == 0 {
		for {
			select {
			case f := <-l.in:
				frames = append(frames, f)
			default:
				return frames, nil
			}
		}
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case f := <-l.in:
		frames = append(frames, f)
	case <-timer:
		return nil, nil
	}

	// Drain whatever else is already buffered before returning.
	for {
		select {
		case f := <-l.in:
			frames = append(frames, f)
		default:
			return frames, nil
		}
	}
}

// Registered implements internal/iface.Transport.
func (l *Loopback) Registered() bool { return l.registered }

// Register implements internal/iface.Transport.
func (l *Loopback) Register() error {
	l.registered = true
	return nil
}

// Unregister implements internal/iface.Transport.
func (l *Loopback) Unregister() error {
	l.registered = false
	return nil
}

// NewAncillaryPipe creates a real OS pipe and returns its read end as a
// file descriptor, for demonstrating the ancillary-fd-passing path
// (Frame.FD) end to end. The caller owns the returned fd and must close
// it; writeEnd is closed immediately since the loopback demo only needs
// to show a descriptor crossing the Send/Poll boundary, not move bytes
// through it.
func NewAncillaryPipe() (fd int, err error) {
	fds, err := unix.Pipe2(0)
	if err != nil {
		return -1, err
	}
	unix.Close(fds[1])
	return fds[0], nil
}
