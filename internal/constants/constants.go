// Package constants holds the small set of protocol-wide limits shared
// across the bus client's layers.
package constants

import "time"

const (
	// MaxMsgLen is the largest padded payload the daemon will accept in a
	// single frame.
	MaxMsgLen = 1 << 16

	// MaxNotifyPeers is the number of subscriber slots a NotifyRequest can
	// track, not counting slot 0 (the daemon itself).
	MaxNotifyPeers = 31

	// AttrMax is the number of slots in the attribute table filled by the
	// message codec adapter.
	AttrMax = 8
)

// DefaultInvokeTimeout is used by Invoke/Notify callers that do not pick
// their own deadline.
const DefaultInvokeTimeout = 30 * time.Second
