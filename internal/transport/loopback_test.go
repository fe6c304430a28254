package transport

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mdlayher/ubus/internal/wire"
)

func TestLoopbackSendPoll(t *testing.T) {
	a, b := NewPair(4)

	hdr := wire.Header{Type: wire.MsgInvoke, Seq: 1, Peer: 0}
	if err := a.Send(hdr, wire.List(""), -1); err != nil {
		t.Fatalf("Send: %v", err)
	}

	frames, err := b.Poll(time.Second)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(frames) != 1 || frames[0].Header.Seq != 1 {
		t.Fatalf("frames = %+v, want one frame with seq 1", frames)
	}
}

func TestLoopbackPollNonBlockingEmpty(t *testing.T) {
	a, _ := NewPair(1)
	frames, err := a.Poll(0)
	if err != nil || len(frames) != 0 {
		t.Fatalf("Poll(0) = %v, %v; want empty, nil", frames, err)
	}
}

func TestLoopbackPollTimesOut(t *testing.T) {
	a, _ := NewPair(1)
	start := time.Now()
	frames, err := a.Poll(20 * time.Millisecond)
	if err != nil || len(frames) != 0 {
		t.Fatalf("Poll = %v, %v; want empty, nil", frames, err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatalf("Poll returned too early")
	}
}

func TestLoopbackRegisterUnregister(t *testing.T) {
	a, _ := NewPair(1)
	if a.Registered() {
		t.Fatalf("expected not registered initially")
	}
	if err := a.Register(); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !a.Registered() {
		t.Fatalf("expected registered after Register")
	}
	if err := a.Unregister(); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if a.Registered() {
		t.Fatalf("expected not registered after Unregister")
	}
}

func TestNewAncillaryPipe(t *testing.T) {
	fd, err := NewAncillaryPipe()
	if err != nil {
		t.Fatalf("NewAncillaryPipe: %v", err)
	}
	defer unix.Close(fd)
	if fd < 0 {
		t.Fatalf("fd = %d, want >= 0", fd)
	}
}
