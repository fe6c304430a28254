// Package iface collects the interfaces the bus client depends on but
// does not implement itself: the socket transport, the server-side
// object registry, logging, observability hooks, and the clock used by
// the synchronous bridge's timeout arithmetic. Grounded on the
// teacher's internal/interfaces/backend.go split between the block
// device core and its Backend/Logger/Observer collaborators, and on
// internal/uring.Ring for the transport's completion-poll shape.
package iface

import (
	"time"

	"github.com/mdlayher/ubus/internal/wire"
)

// Transport is the socket collaborator: framing, blob (de)serialization,
// and file-descriptor passing live here, external to this module.
type Transport interface {
	// Send encodes and writes a frame with the given header fields and
	// payload tree, optionally passing fd as ancillary data (fd < 0 for
	// none).
	Send(hdr wire.Header, payload *wire.Node, fd int) error

	// Poll blocks up to timeout waiting for inbound frames, mirroring
	// the teacher's Ring.WaitForCompletion. timeout == 0 returns
	// immediately with whatever is already queued; timeout < 0 blocks
	// with no deadline.
	Poll(timeout time.Duration) ([]wire.Frame, error)

	// Registered reports whether this transport is attached to the
	// event loop that owns it (the "connected" half of the C source's
	// uloop_fd registration).
	Registered() bool

	// Register attaches the transport to its owning loop.
	Register() error

	// Unregister detaches the transport; Context.Close calls it.
	Unregister() error
}

// Registry is the server-side object dispatch collaborator: routing
// inbound INVOKE/NOTIFY/UNSUBSCRIBE to registered local objects is
// external to the client core.
type Registry interface {
	// HandleObjectMessage routes a decoded inbound object-directed
	// message (INVOKE, NOTIFY, UNSUBSCRIBE) to whatever local object it
	// targets.
	HandleObjectMessage(hdr wire.Header, payload *wire.Node, attrs [wire.AttrMax]wire.Attr) error
}

// Logger is the leveled logging collaborator, grounded on the teacher's
// internal/logging.Logger interface shape.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Observer receives lifecycle notifications for metrics/tracing hooks,
// grounded on the teacher's Observer interface.
type Observer interface {
	OnRequestStart(seq uint32, method string)
	OnRequestComplete(seq uint32, code int32, dur time.Duration)
	OnNotifyDispatch(seq uint32, peers uint32)
}

// Clock abstracts monotonic time so the synchronous bridge's timeout
// arithmetic is testable without a wall-clock sleep.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }
