package requests

import (
	"testing"

	"github.com/mdlayher/ubus/internal/status"
	"github.com/mdlayher/ubus/internal/wire"
)

func TestRegistryTrackUntrackIdempotent(t *testing.T) {
	var reg Registry
	req := &Request{}

	reg.Track(req)
	reg.Track(req) // second Track is a no-op
	if got := reg.Find(req.Seq, req.Peer); got != req {
		t.Fatalf("Find after Track = %v, want req", got)
	}

	reg.Untrack(req)
	reg.Untrack(req) // second Untrack is a no-op, must not panic
	if got := reg.Find(req.Seq, req.Peer); got != nil {
		t.Fatalf("Find after Untrack = %v, want nil", got)
	}
}

func TestRegistryStartAssignsSeq(t *testing.T) {
	var reg Registry
	a := &Request{}
	b := &Request{}

	reg.Start(a, 5)
	reg.Start(b, 5)

	if a.Seq == b.Seq {
		t.Fatalf("expected distinct sequence numbers, got %d and %d", a.Seq, b.Seq)
	}
	// Start never tracks: a caller whose Send later fails must not have
	// left anything on the list to untrack.
	if reg.Find(a.Seq, 5) != nil {
		t.Fatalf("Start must not track the request")
	}

	reg.Track(a)
	reg.Track(b)
	if reg.Find(a.Seq, 5) != a {
		t.Fatalf("Find did not return a")
	}
	if reg.Find(b.Seq, 5) != b {
		t.Fatalf("Find did not return b")
	}
}

func TestRequestCompletesAtMostOnce(t *testing.T) {
	var reg Registry
	var calls int
	req := &Request{OnComplete: func(r *Request, code status.Code) {
		calls++
	}}
	reg.Start(req, 1)
	reg.Track(req)

	reg.HandleStatus(req, 1, status.OK, nil)
	reg.HandleStatus(req, 1, status.UnknownError, nil) // no-op, already terminated

	if calls != 1 {
		t.Fatalf("OnComplete called %d times, want 1", calls)
	}
	if req.Status() != status.OK {
		t.Fatalf("Status() = %v, want OK", req.Status())
	}
	if req.Tracked() {
		t.Fatalf("request still tracked after status")
	}
}

func TestHandleDataDroppedAfterUntrack(t *testing.T) {
	var reg Registry
	req := &Request{}
	reg.Start(req, 1)
	reg.Track(req)
	reg.Untrack(req)

	ok := reg.HandleData(req.Seq, 1, wire.Str("data", "x"))
	if ok {
		t.Fatalf("HandleData succeeded for untracked request")
	}
}

func TestRequestDataReentrancyQueues(t *testing.T) {
	var order []string
	req := &Request{}
	req.OnData = func(r *Request, payload *wire.Node) {
		name, _ := payload.AsString()
		order = append(order, name)
		if name == "first" {
			// Simulate a nested arrival triggered while still inside
			// the handler for "first": it must be queued, not
			// recursed into immediately.
			req.deliverData(wire.Str("data", "second"))
			order = append(order, "after-nested-call")
		}
	}

	req.deliverData(wire.Str("data", "first"))

	want := []string{"first", "after-nested-call", "second"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestNotifyRequestCompletesOnceAllSlotsClear(t *testing.T) {
	var reg Registry
	var completed bool
	var statuses []uint32

	req := &Request{OnComplete: func(r *Request, code status.Code) {
		completed = true
	}}
	reg.Start(req, 0)
	reg.Track(req)
	nreq := NewNotifyRequest(req)
	nreq.OnStatus = func(n *NotifyRequest, slot uint32, code status.Code) {
		statuses = append(statuses, slot)
	}

	// Slot 0 is the daemon's own enumerating reply; its SUBSCRIBERS list
	// arms slots 1 and 2 -- subscriber identity is never assumed locally.
	nreq.HandleSlotStatus(0, status.OK, []uint32{1, 2})
	if completed {
		t.Fatalf("completed before all slots cleared")
	}
	nreq.HandleSlotStatus(1, status.OK, nil)
	if completed {
		t.Fatalf("completed before all slots cleared")
	}
	nreq.HandleSlotStatus(2, status.OK, nil)

	if !completed {
		t.Fatalf("expected completion once all slots cleared")
	}
	if len(statuses) != 2 || statuses[0] != 1 || statuses[1] != 2 {
		t.Fatalf("statuses = %v, want [1 2]", statuses)
	}
}

func TestRegistryHandleStatusRoutesNotifySlotsByPeer(t *testing.T) {
	var reg Registry
	var completed bool

	req := &Request{OnComplete: func(r *Request, code status.Code) {
		completed = true
	}}
	reg.Start(req, 0)
	reg.Track(req)
	nreq := NewNotifyRequest(req)

	// The daemon's slot-0 STATUS carries SUBSCRIBERS=[1,2], arming the
	// subscriber slots.
	reg.HandleStatus(req, 0, status.OK, []uint32{1, 2})
	if !req.Tracked() {
		t.Fatalf("request untracked before all slots cleared")
	}

	// Subscriber replies arrive from their own peer IDs, not from peer 0
	// the NOTIFY was originally addressed to; Find must still locate the
	// same tracked request by seq alone.
	if reg.Find(req.Seq, 1) != req {
		t.Fatalf("Find did not locate notify request by seq for subscriber peer")
	}

	reg.HandleStatus(req, 1, status.OK, nil)
	if !req.Tracked() {
		t.Fatalf("request untracked before all slots cleared")
	}

	reg.HandleStatus(req, 2, status.OK, nil)

	if !completed {
		t.Fatalf("expected completion once all slots cleared")
	}
	if req.Tracked() {
		t.Fatalf("request still tracked after completion")
	}
	if nreq.Pending() {
		t.Fatalf("expected no slots still pending")
	}
}
