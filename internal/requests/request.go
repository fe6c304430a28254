// Package requests implements the request state machine and the
// tracked-request registry that correlates inbound STATUS/DATA frames
// with outstanding calls by sequence number. Grounded on the original
// implementation's ubus_request_set_status/_ubus_process_req_data/
// ubus_complete_request_async family of functions in ubus_context.c,
// and structured in the teacher's style of small mutation methods on a
// plain struct (internal/queue/runner.go's per-tag state handling).
package requests

import (
	"github.com/mdlayher/ubus/internal/status"
	"github.com/mdlayher/ubus/internal/wire"
)

// DataFunc is invoked for every DATA frame delivered against a request
// before it terminates.
type DataFunc func(req *Request, payload *wire.Node)

// CompleteFunc is invoked exactly once when a request terminates by
// STATUS or by timeout. It never fires for a request that was aborted.
type CompleteFunc func(req *Request, code status.Code)

// FDFunc is invoked with an ancillary file descriptor delivered on
// STATUS, transferring ownership to the callback. If unset, the
// dispatcher closes the descriptor itself.
type FDFunc func(fd int)

// Request is one outstanding call awaiting a STATUS/DATA reply. Its
// identity is the pointer; the registry never copies a Request once
// tracked, matching the C source's "ubus_request" having a stable
// address for the lifetime of the call.
type Request struct {
	Seq  uint32
	Peer uint32

	tracked bool

	// blocked guards reentrant DATA delivery: if a nested call is
	// inside OnData when another DATA frame for this same request
	// arrives, it is queued rather than dispatched immediately.
	blocked     bool
	pendingData []*wire.Node

	terminated bool
	cancelled  bool
	status     status.Code

	OnData     DataFunc
	OnComplete CompleteFunc
	OnFD       FDFunc

	// NotifySlot, when set, intercepts STATUS handling: it is invoked
	// with the replying peer, that STATUS's code, and (for the daemon's
	// own slot-0 reply) the decoded SUBSCRIBERS list, and reports
	// whether every expected slot has now cleared. While it returns
	// false the request stays tracked, letting a multi-peer
	// NotifyRequest collect one STATUS per subscriber before
	// terminating. A plain Request leaves this nil and completes on the
	// first STATUS, as ubus_invoke's single-peer replies do.
	NotifySlot func(peer uint32, code status.Code, subscribers []uint32) (done bool)

	// UserData is opaque caller state, carried the way the C source's
	// void *priv field is.
	UserData any
}

// Tracked reports whether the registry still owns this request.
func (r *Request) Tracked() bool { return r.tracked }

// Terminated reports whether a terminal status has been delivered.
func (r *Request) Terminated() bool { return r.terminated }

// Cancelled reports whether abort() ended this request, as opposed to
// a STATUS-driven or timeout completion.
func (r *Request) Cancelled() bool { return r.cancelled }

// Status returns the terminal status code. Valid only once Terminated
// is true.
func (r *Request) Status() status.Code { return r.status }

// deliverData runs OnData, queuing reentrant arrivals instead of
// recursing, and draining the queue after the handler returns. Mirrors
// _ubus_process_req_data's blocked flag and pending_data_queue.
func (r *Request) deliverData(payload *wire.Node) {
	if r.blocked {
		r.pendingData = append(r.pendingData, payload)
		return
	}
	r.blocked = true
	if r.OnData != nil {
		r.OnData(r, payload)
	}
	r.blocked = false

	for len(r.pendingData) > 0 {
		next := r.pendingData[0]
		r.pendingData = r.pendingData[1:]
		r.deliverData(next)
	}
}

// setStatus marks the request terminated and fires OnComplete exactly
// once, matching ubus_request_set_status clearing complete_cb before
// invoking it.
func (r *Request) setStatus(code status.Code) {
	if r.terminated {
		return
	}
	r.terminated = true
	r.status = code
	cb := r.OnComplete
	r.OnComplete = nil
	if cb != nil {
		cb(r, code)
	}
}

// abort marks the request cancelled and terminated without ever
// calling OnComplete, matching ubus_abort_request's distinct
// "cancelled" transition: queued pending data is dropped, not
// delivered, and no callback fires again. Idempotent.
func (r *Request) abort() {
	if r.cancelled || r.terminated {
		return
	}
	r.cancelled = true
	r.terminated = true
	r.pendingData = nil
	r.OnData = nil
	r.OnComplete = nil
}
