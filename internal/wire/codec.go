package wire

// attrsByType is the positional table of which attribute slots a given
// message type carries, grounded on the original implementation's
// ubus_message_parse policy table.
var attrsByType = map[MsgType][]AttrKind{
	MsgHello:        {AttrObjID},
	MsgStatus:       {AttrStatus},
	MsgData:         {AttrObjID, AttrData},
	MsgLookup:       {AttrObjPath},
	MsgInvoke:       {AttrObjID, AttrMethod, AttrData},
	MsgAddObject:    {AttrObjPath, AttrSignature},
	MsgRemoveObject: {},
	MsgSubscribe:    {},
	MsgUnsubscribe:  {},
	MsgNotify:       {},
	MsgPing:         {},
}

// attrNames maps each slot to the payload field name the transport
// tags decoded children with.
var attrNames = map[AttrKind]string{
	AttrObjID:       "objid",
	AttrObjPath:     "objpath",
	AttrStatus:      "status",
	AttrData:        "data",
	AttrMethod:      "method",
	AttrSignature:   "signature",
	AttrSubscribers: "subscribers",
	AttrObjType:     "objtype",
}

// DecodeAttrs fills the fixed AttrMax-sized slot table for a message of
// the given type by pulling named children out of the payload's
// attribute tree. Slots the message type doesn't carry, or whose
// expected child is absent from payload, are left Present == false.
func DecodeAttrs(msgType MsgType, payload *Node) [AttrMax]Attr {
	var out [AttrMax]Attr

	wanted, ok := attrsByType[msgType]
	if !ok {
		return out
	}

	for _, slot := range wanted {
		name, ok := attrNames[slot]
		if !ok {
			continue
		}
		child := payload.Field(name)
		if child == nil {
			continue
		}
		out[slot] = Attr{Present: true, Node: child}
	}
	return out
}

// DecodeSubscribers extracts the expanded subscriber peer ids from a
// STATUS payload's SUBSCRIBERS child, each expected to be a uint32
// leaf. It returns nil if the payload carries no such child. This is
// deliberately separate from attrsByType/DecodeAttrs: SUBSCRIBERS only
// ever appears on the daemon's slot-0 reply to a notify fan-out, not on
// every STATUS, so it is parsed by the notify sub-state directly
// instead of occupying a table slot every plain STATUS would pay for.
func DecodeSubscribers(payload *Node) []uint32 {
	node := payload.Field(attrNames[AttrSubscribers])
	if node == nil {
		return nil
	}
	children := node.Children()
	ids := make([]uint32, 0, len(children))
	for _, c := range children {
		if v, ok := c.AsUint32(); ok {
			ids = append(ids, v)
		}
	}
	return ids
}
