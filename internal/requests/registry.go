package requests

import (
	"github.com/mdlayher/ubus/internal/status"
	"github.com/mdlayher/ubus/internal/wire"
)

// Registry is the ordered list of outstanding tracked requests, keyed
// for lookup by (seq, peer). It deliberately keeps requests in a plain
// slice of pointers rather than an intrusive linked list -- Go slices
// already give stable pointer identity for heap-allocated elements and
// a slice is simpler to reason about than list_head splicing. Grounded
// on ubus_context.c's requests list walked by ubus_find_request.
type Registry struct {
	seq  uint32
	list []*Request
}

// NextSeq returns the next sequence number to stamp an outgoing
// request with, matching ubus_start_request's ++ctx->request_seq.
func (r *Registry) NextSeq() uint32 {
	r.seq++
	return r.seq
}

// Track adds req to the registry if it is not already tracked,
// matching ubus_complete_request_async's append-if-not-already-on-list
// idempotence.
func (r *Registry) Track(req *Request) {
	if req.tracked {
		return
	}
	req.tracked = true
	r.list = append(r.list, req)
}

// Untrack removes req from the registry. Idempotent: untracking a
// request that isn't tracked is a no-op.
func (r *Registry) Untrack(req *Request) {
	if !req.tracked {
		return
	}
	req.tracked = false
	for i, cand := range r.list {
		if cand == req {
			r.list = append(r.list[:i], r.list[i+1:]...)
			return
		}
	}
}

// Find returns the first tracked request matching seq and peer, or nil
// if none is tracked. Matches ubus_find_request's seq+peer comparison,
// first match wins. A NotifyRequest matches on seq alone, since its
// subscriber slots reply from different peers than the one the
// original NOTIFY was addressed to.
func (r *Registry) Find(seq, peer uint32) *Request {
	for _, req := range r.list {
		if req.Seq != seq {
			continue
		}
		if req.Peer == peer || req.NotifySlot != nil {
			return req
		}
	}
	return nil
}

// Start stamps req with the next sequence number and the given peer.
// It deliberately does not track req: per ubus_start_request, a request
// only becomes "tracked" once Track (or complete_request_async) is
// separately invoked, so a caller whose Send fails after Start never
// had a request on the list to untrack or complete.
func (r *Registry) Start(req *Request, peer uint32) {
	req.Seq = r.NextSeq()
	req.Peer = peer
}

// Abort untracks req and cancels it locally without waiting for a
// STATUS frame, matching ubus_abort_request's distinct "cancelled"
// transition: OnComplete never fires. Idempotent.
func (r *Registry) Abort(req *Request) {
	r.Untrack(req)
	req.abort()
}

// Complete untracks req and terminates it locally via the normal
// set_status transition, firing OnComplete if set. Used by the
// synchronous bridge on timeout, matching ubus_complete_request's
// direct call to ubus_request_set_status(req, UBUS_STATUS_TIMEOUT).
func (r *Registry) Complete(req *Request, code status.Code) {
	r.Untrack(req)
	req.setStatus(code)
}

// HandleStatus processes one inbound STATUS reply from peer, with
// subscribers carrying the decoded SUBSCRIBERS list (non-nil only for
// a notify request's daemon slot-0 reply). A plain request completes
// and untracks immediately, matching ubus_request_set_status. A
// NotifyRequest (identified by NotifySlot being set) stays tracked
// until every expected subscriber slot has replied.
func (r *Registry) HandleStatus(req *Request, peer uint32, code status.Code, subscribers []uint32) {
	if req.NotifySlot != nil {
		if !req.NotifySlot(peer, code, subscribers) {
			return
		}
		r.Untrack(req)
		return
	}
	r.Untrack(req)
	req.setStatus(code)
}

// HandleData re-finds (seq, peer) in the registry and, if still
// tracked, delivers payload through the request's reentrancy-safe
// queue. Returns false if no tracked request matched, matching
// _ubus_process_req_msg's literal re-lookup immediately before DATA
// dispatch: a nested handler run earlier in the same pump may have
// already untracked the request, in which case the DATA is dropped.
func (r *Registry) HandleData(seq, peer uint32, payload *wire.Node) bool {
	req := r.Find(seq, peer)
	if req == nil {
		return false
	}
	req.deliverData(payload)
	return true
}
