package dispatch

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mdlayher/ubus/internal/requests"
	"github.com/mdlayher/ubus/internal/status"
	"github.com/mdlayher/ubus/internal/transport"
	"github.com/mdlayher/ubus/internal/wire"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock lets tests advance monotonic time deterministically instead
// of sleeping.
type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }
func (f *fakeClock) advance(d time.Duration) {
	f.t = f.t.Add(d)
}

// fakeTransport hands back a scripted sequence of poll results. Each
// Poll call consumes the next batch, advancing clock by step so
// deadline arithmetic in the synchronous bridge actually progresses.
type fakeTransport struct {
	batches []([]wire.Frame)
	clock   *fakeClock
	step    time.Duration
}

func (f *fakeTransport) Send(hdr wire.Header, payload *wire.Node, fd int) error { return nil }

func (f *fakeTransport) Poll(timeout time.Duration) ([]wire.Frame, error) {
	f.clock.advance(f.step)
	if len(f.batches) == 0 {
		return nil, nil
	}
	next := f.batches[0]
	f.batches = f.batches[1:]
	return next, nil
}

func (f *fakeTransport) Registered() bool  { return true }
func (f *fakeTransport) Register() error   { return nil }
func (f *fakeTransport) Unregister() error { return nil }

func statusFrame(seq, peer uint32, code status.Code) wire.Frame {
	return wire.Frame{
		Header:  wire.Header{Type: wire.MsgStatus, Seq: seq, Peer: peer},
		Payload: wire.List("", wire.UInt32("status", uint32(code))),
		FD:      -1,
	}
}

func statusFrameWithFD(seq, peer uint32, code status.Code, fd int) wire.Frame {
	f := statusFrame(seq, peer, code)
	f.FD = fd
	return f
}

func statusFrameWithSubscribers(seq, peer uint32, code status.Code, subscribers ...uint32) wire.Frame {
	subNodes := make([]*wire.Node, 0, len(subscribers))
	for _, s := range subscribers {
		subNodes = append(subNodes, wire.UInt32("", s))
	}
	return wire.Frame{
		Header: wire.Header{Type: wire.MsgStatus, Seq: seq, Peer: peer},
		Payload: wire.List("",
			wire.UInt32("status", uint32(code)),
			wire.List("subscribers", subNodes...),
		),
		FD: -1,
	}
}

func TestCompleteRequestResolvesOnStatus(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	transport := &fakeTransport{
		batches: [][]wire.Frame{
			{statusFrame(1, 0, status.OK)},
		},
		clock: clock,
		step:  10 * time.Millisecond,
	}

	var reg requests.Registry
	loop := &Loop{Transport: transport, Registry: &reg, Clock: clock}

	req := &requests.Request{}
	reg.Start(req, 0)

	got := loop.CompleteRequest(req, time.Second)
	if got != status.OK {
		t.Fatalf("CompleteRequest = %v, want OK", got)
	}
}

func TestCompleteRequestTimesOut(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	transport := &fakeTransport{
		batches: [][]wire.Frame{{}, {}, {}, {}},
		clock:   clock,
		step:    100 * time.Millisecond,
	}

	var reg requests.Registry
	loop := &Loop{Transport: transport, Registry: &reg, Clock: clock}

	req := &requests.Request{}
	reg.Start(req, 0)

	got := loop.CompleteRequest(req, 50*time.Millisecond)
	if got != status.Timeout {
		t.Fatalf("CompleteRequest = %v, want Timeout", got)
	}
	if req.Tracked() {
		t.Fatalf("request still tracked after timeout")
	}
}

func TestDeferredObjectMessageDrainsAfterStackDepthZero(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}

	var handled []string
	registry := &fakeObjectRegistry{onMsg: func(hdr wire.Header, _ *wire.Node, _ [wire.AttrMax]wire.Attr) error {
		handled = append(handled, hdr.Type.String())
		return nil
	}}

	reqStatus := statusFrame(1, 0, status.OK)
	invokeMsg := wire.Frame{
		Header:  wire.Header{Type: wire.MsgInvoke, Seq: 99, Peer: 0},
		Payload: wire.List(""),
		FD:      -1,
	}

	transport := &fakeTransport{
		batches: [][]wire.Frame{
			{invokeMsg, reqStatus}, // arrives while the sync bridge is blocked
		},
		clock: clock,
		step:  time.Millisecond,
	}

	var reg requests.Registry
	loop := &Loop{Transport: transport, Registry: &reg, Objects: registry, Clock: clock}

	req := &requests.Request{}
	reg.Start(req, 0)

	loop.CompleteRequest(req, time.Second)

	if len(handled) != 1 || handled[0] != "INVOKE" {
		t.Fatalf("handled = %v, want deferred INVOKE dispatched after drain", handled)
	}
}

func TestCompleteRequestResolvesNotifyOnceAllSubscriberSlotsReply(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	transport := &fakeTransport{
		batches: [][]wire.Frame{
			// Daemon's own enumerating reply carries SUBSCRIBERS=[7],
			// arming subscriber peer 7's slot.
			{statusFrameWithSubscribers(1, 0, status.OK, 7)},
			{statusFrame(1, 7, status.OK)}, // subscriber at peer 7
		},
		clock: clock,
		step:  10 * time.Millisecond,
	}

	var reg requests.Registry
	loop := &Loop{Transport: transport, Registry: &reg, Clock: clock}

	req := &requests.Request{}
	reg.Start(req, 0)
	requests.NewNotifyRequest(req)

	got := loop.CompleteRequest(req, time.Second)
	if got != status.OK {
		t.Fatalf("CompleteRequest = %v, want OK", got)
	}
	if req.Tracked() {
		t.Fatalf("request still tracked after every slot replied")
	}
}

// TestCompleteRequestDeliversOnFD verifies the on_fd conservation
// property: an fd carried on a matched STATUS is handed to OnFD rather
// than left open or leaked.
func TestCompleteRequestDeliversOnFD(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	fd, err := transport.NewAncillaryPipe()
	if err != nil {
		t.Fatalf("NewAncillaryPipe: %v", err)
	}
	tr := &fakeTransport{
		batches: [][]wire.Frame{
			{statusFrameWithFD(1, 0, status.OK, fd)},
		},
		clock: clock,
		step:  10 * time.Millisecond,
	}

	var reg requests.Registry
	loop := &Loop{Transport: tr, Registry: &reg, Clock: clock}

	var gotFD int
	req := &requests.Request{OnFD: func(fd int) {
		gotFD = fd
		unix.Close(fd)
	}}
	reg.Start(req, 0)

	loop.CompleteRequest(req, time.Second)
	if gotFD != fd {
		t.Fatalf("OnFD received %d, want %d", gotFD, fd)
	}
}

type fakeObjectRegistry struct {
	onMsg func(wire.Header, *wire.Node, [wire.AttrMax]wire.Attr) error
}

func (f *fakeObjectRegistry) HandleObjectMessage(hdr wire.Header, payload *wire.Node, attrs [wire.AttrMax]wire.Attr) error {
	return f.onMsg(hdr, payload, attrs)
}
