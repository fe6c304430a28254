// Package wire defines the message frame, the closed attribute-slot
// enum, and the message codec adapter that fills it. Actual blob
// encoding/decoding is an external concern (see the Transport
// collaborator); this package only deals with the already-decoded
// attribute tree a transport hands back.
package wire

import "github.com/mdlayher/ubus/internal/constants"

// MsgType is the closed message-type enum carried in every frame header.
type MsgType uint8

const (
	MsgHello MsgType = iota
	MsgStatus
	MsgData
	MsgPing
	MsgLookup
	MsgInvoke
	MsgAddObject
	MsgRemoveObject
	MsgSubscribe
	MsgUnsubscribe
	MsgNotify
)

func (t MsgType) String() string {
	switch t {
	case MsgHello:
		return "HELLO"
	case MsgStatus:
		return "STATUS"
	case MsgData:
		return "DATA"
	case MsgPing:
		return "PING"
	case MsgLookup:
		return "LOOKUP"
	case MsgInvoke:
		return "INVOKE"
	case MsgAddObject:
		return "ADD_OBJECT"
	case MsgRemoveObject:
		return "REMOVE_OBJECT"
	case MsgSubscribe:
		return "SUBSCRIBE"
	case MsgUnsubscribe:
		return "UNSUBSCRIBE"
	case MsgNotify:
		return "NOTIFY"
	default:
		return "UNKNOWN"
	}
}

// AttrKind is the closed attribute-slot enum, indexed in a fixed-size
// table of size AttrMax.
type AttrKind int

const (
	AttrObjID AttrKind = iota
	AttrObjPath
	AttrStatus
	AttrData
	AttrMethod
	AttrSignature
	AttrSubscribers
	AttrObjType
)

// AttrMax is the number of slots in the attribute table.
const AttrMax = constants.AttrMax

// Header is the fixed part of every wire frame.
type Header struct {
	Type MsgType
	Seq  uint32
	Peer uint32
}

// Frame is what the transport collaborator hands to the dispatch loop:
// a header, the already-decoded attribute tree for the payload, and an
// optional ancillary file descriptor (-1 if none was received).
type Frame struct {
	Header  Header
	Payload *Node
	FD      int
}

// Attr is one slot of the table the codec adapter fills. Present is
// false for slots the message type never carries or whose child was
// missing from the payload.
type Attr struct {
	Present bool
	Node    *Node
}
