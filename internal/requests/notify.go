package requests

import (
	"github.com/mdlayher/ubus/internal/constants"
	"github.com/mdlayher/ubus/internal/status"
)

// StatusFunc is invoked once per subscriber slot as its STATUS arrives,
// distinct from the request's own OnComplete which fires once the
// whole fan-out has drained.
type StatusFunc func(nreq *NotifyRequest, peerSlot uint32, code status.Code)

// NotifyRequest composes a Request to fan a single call out to multiple
// subscriber peers, tracking completion with a bitmask rather than a
// count. Slot 0 is reserved for the daemon's own enumerating STATUS,
// which carries the SUBSCRIBERS attribute that slots 1..N are expanded
// from -- subscriber identity is never assumed from local state.
// Composition (not embedding a type hierarchy) follows the design
// notes: a NotifyRequest *is backed by* a Request, it does not
// subclass one.
type NotifyRequest struct {
	*Request

	// pendingMask has a bit set for every slot still awaiting STATUS.
	pendingMask uint32

	// peerIDs maps a slot index to the peer id expected to reply on it.
	// Slot 0 is stamped from req.Peer (the notified object's id) at
	// construction; slots 1..N are filled as the daemon's SUBSCRIBERS
	// list is parsed off its slot-0 reply.
	peerIDs [constants.MaxNotifyPeers + 1]uint32

	// nextSlot is the next free subscriber slot to hand out.
	nextSlot uint32

	OnStatus StatusFunc
}

// NewNotifyRequest wraps req for multi-peer fan-out, wiring req's
// NotifySlot hook so the dispatch loop routes each inbound STATUS
// through HandleSlotStatus instead of completing on the first reply.
// Slot 0 is armed immediately, expecting the daemon's own reply on
// req.Peer.
func NewNotifyRequest(req *Request) *NotifyRequest {
	n := &NotifyRequest{Request: req, pendingMask: 1, nextSlot: 1}
	n.peerIDs[0] = req.Peer
	req.NotifySlot = func(peer uint32, code status.Code, subscribers []uint32) bool {
		n.HandleSlotStatus(peer, code, subscribers)
		return !n.Pending()
	}
	return n
}

// Pending reports whether any slot is still awaiting STATUS. A request
// that has already terminated -- by abort or by set_status -- is never
// pending, regardless of which slots had replied.
func (n *NotifyRequest) Pending() bool { return n.pendingMask != 0 && !n.Terminated() }

// armSubscriber claims the next free subscriber slot for peer, if room
// remains; slots beyond MaxNotifyPeers are silently dropped.
func (n *NotifyRequest) armSubscriber(peer uint32) {
	if n.nextSlot > constants.MaxNotifyPeers {
		return
	}
	slot := n.nextSlot
	n.nextSlot++
	n.peerIDs[slot] = peer
	n.pendingMask |= 1 << slot
}

// slotForPeer returns the still-pending slot expecting a reply from
// peer.
func (n *NotifyRequest) slotForPeer(peer uint32) (uint32, bool) {
	for slot := uint32(0); slot <= constants.MaxNotifyPeers; slot++ {
		if n.pendingMask&(1<<slot) != 0 && n.peerIDs[slot] == peer {
			return slot, true
		}
	}
	return 0, false
}

// HandleSlotStatus processes one inbound STATUS attributed to peer.
// Slot 0 is the daemon's own enumerating reply: subscribers lists the
// expanded subscriber peer ids, each claiming a fresh slot. Slot i>0 is
// a subscriber's own reply: OnStatus fires with its slot and code. Once
// every slot has cleared, the request completes with OK -- the
// individual peer status codes surface only through OnStatus, never
// through OnComplete.
func (n *NotifyRequest) HandleSlotStatus(peer uint32, code status.Code, subscribers []uint32) {
	slot, ok := n.slotForPeer(peer)
	if !ok {
		return
	}
	n.pendingMask &^= 1 << slot

	if slot == 0 {
		for _, sub := range subscribers {
			n.armSubscriber(sub)
		}
	} else if n.OnStatus != nil {
		n.OnStatus(n, slot, code)
	}

	if n.pendingMask == 0 {
		n.setStatus(status.OK)
	}
}
