// Package dispatch implements the event-loop core: pumping inbound
// frames from a transport, correlating STATUS/DATA replies through a
// requests.Registry, deferring reentrant inbound object messages while
// a synchronous call is in flight, and the synchronous bridge that
// turns an async request into a bounded blocking call. Grounded on the
// teacher's internal/queue/runner.go completion-event loop and on the
// original implementation's ubus_process_msg/ubus_complete_request.
package dispatch

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/mdlayher/ubus/internal/iface"
	"github.com/mdlayher/ubus/internal/requests"
	"github.com/mdlayher/ubus/internal/status"
	"github.com/mdlayher/ubus/internal/wire"
)

// deferredMsg is an inbound object-directed frame held back while a
// synchronous call is in flight.
type deferredMsg struct {
	hdr     wire.Header
	payload *wire.Node
	attrs   [wire.AttrMax]wire.Attr
}

// needsDeferral reports whether a message type must wait for
// stack_depth to return to zero before being routed to the object
// registry, matching ubus_process_msg's deferral set.
func needsDeferral(t wire.MsgType) bool {
	switch t {
	case wire.MsgInvoke, wire.MsgNotify, wire.MsgUnsubscribe:
		return true
	default:
		return false
	}
}

// Loop is the single-threaded dispatch core. It owns no locks: all of
// its state is only ever touched from within RunOnce/CompleteRequest,
// which the caller must never invoke concurrently from more than one
// goroutine, matching the bus client's single-threaded event-loop
// design.
type Loop struct {
	Transport iface.Transport
	Registry  *requests.Registry
	Objects   iface.Registry
	Logger    iface.Logger
	Clock     iface.Clock

	// stackDepth counts nested synchronous calls. While > 0, inbound
	// object-directed messages are deferred instead of dispatched.
	stackDepth int

	deferred []deferredMsg
}

func (l *Loop) logf(format string, args ...interface{}) {
	if l.Logger != nil {
		l.Logger.Debugf(format, args...)
	}
}

// RunOnce polls the transport once for up to timeout (0 = non-blocking,
// < 0 = block indefinitely) and processes whatever frames arrive.
func (l *Loop) RunOnce(timeout time.Duration) error {
	frames, err := l.Transport.Poll(timeout)
	if err != nil {
		return err
	}
	for _, f := range frames {
		l.processFrame(f)
	}
	return nil
}

// processFrame routes one inbound frame either to the reply-correlation
// path (STATUS/DATA), to the deferred/immediate object-message path
// (INVOKE/NOTIFY/UNSUBSCRIBE), or ignores it: every other message type
// (HELLO, PING, LOOKUP, ADD_OBJECT, REMOVE_OBJECT, SUBSCRIBE) is never
// handed to the server-side collaborator.
func (l *Loop) processFrame(f wire.Frame) {
	switch f.Header.Type {
	case wire.MsgStatus:
		l.processStatus(f)
	case wire.MsgData:
		l.processData(f)
	case wire.MsgInvoke, wire.MsgNotify, wire.MsgUnsubscribe:
		l.processObjMsg(f)
	}
}

// processStatus correlates an inbound STATUS frame to its tracked
// request by (seq, peer) and completes it. A STATUS frame with no
// status attribute present maps to InvalidArgument, matching
// _ubus_process_req_status's handling of a missing slot. Any ancillary
// fd carried on the frame is handed to req.OnFD if set, else closed --
// fds are never leaked, matched or not.
func (l *Loop) processStatus(f wire.Frame) {
	req := l.Registry.Find(f.Header.Seq, f.Header.Peer)
	if req == nil {
		l.closeUnmatched(f)
		return
	}

	attrs := wire.DecodeAttrs(wire.MsgStatus, f.Payload)
	code := status.InvalidArgument
	if attrs[wire.AttrStatus].Present {
		if v, ok := attrs[wire.AttrStatus].Node.AsUint32(); ok {
			code = status.Code(v)
		}
	}

	if f.FD >= 0 {
		if req.OnFD != nil {
			req.OnFD(f.FD)
		} else {
			unix.Close(f.FD)
		}
	}

	subscribers := wire.DecodeSubscribers(f.Payload)
	l.Registry.HandleStatus(req, f.Header.Peer, code, subscribers)
}

// processData re-finds the tracked request by (seq, peer) immediately
// before dispatch -- not once, up front -- because a nested handler run
// earlier in this same pump may have already completed and untracked
// it. Matches _ubus_process_req_msg's literal re-lookup.
func (l *Loop) processData(f wire.Frame) {
	attrs := wire.DecodeAttrs(wire.MsgData, f.Payload)
	var payload *wire.Node
	if attrs[wire.AttrData].Present {
		payload = attrs[wire.AttrData].Node
	}

	if ok := l.Registry.HandleData(f.Header.Seq, f.Header.Peer, payload); !ok {
		l.closeUnmatched(f)
	}
}

// closeUnmatched releases any ancillary file descriptor carried by a
// frame that could not be correlated to a tracked request.
func (l *Loop) closeUnmatched(f wire.Frame) {
	// Ownership of the fd passes to us on delivery; an unmatched frame
	// means nobody else will claim it.
	if f.FD >= 0 {
		unix.Close(f.FD)
	}
}

// processObjMsg handles an inbound object-directed message (INVOKE,
// NOTIFY, UNSUBSCRIBE; processFrame routes no other type here). If stack_depth is
// nonzero the message is deferred until DrainDeferred runs, matching
// ubus_process_msg's uloop_timeout_set(&ctx->pending_timer, 0) deferral.
func (l *Loop) processObjMsg(f wire.Frame) {
	attrs := wire.DecodeAttrs(f.Header.Type, f.Payload)

	if needsDeferral(f.Header.Type) && l.stackDepth > 0 {
		l.deferred = append(l.deferred, deferredMsg{hdr: f.Header, payload: f.Payload, attrs: attrs})
		return
	}
	l.dispatchObjMsg(f.Header, f.Payload, attrs)
}

func (l *Loop) dispatchObjMsg(hdr wire.Header, payload *wire.Node, attrs [wire.AttrMax]wire.Attr) {
	if l.Objects == nil {
		return
	}
	if err := l.Objects.HandleObjectMessage(hdr, payload, attrs); err != nil {
		l.logf("object message dispatch failed: %v", err)
	}
}

// DrainDeferred dispatches every object message queued while
// stack_depth was nonzero. Must only be called once stack_depth has
// returned to zero; the synchronous bridge calls it automatically.
func (l *Loop) DrainDeferred() {
	if l.stackDepth > 0 {
		return
	}
	pending := l.deferred
	l.deferred = nil
	for _, m := range pending {
		l.dispatchObjMsg(m.hdr, m.payload, m.attrs)
	}
}
