package wire

import "testing"

func TestDecodeAttrsInvoke(t *testing.T) {
	payload := List("",
		UInt32("objid", 42),
		Str("method", "ping"),
		List("data", Str("arg", "hello")),
	)

	attrs := DecodeAttrs(MsgInvoke, payload)

	if !attrs[AttrObjID].Present {
		t.Fatalf("expected objid slot present")
	}
	if v, ok := attrs[AttrObjID].Node.AsUint32(); !ok || v != 42 {
		t.Fatalf("objid = %v, %v; want 42, true", v, ok)
	}
	if !attrs[AttrMethod].Present {
		t.Fatalf("expected method slot present")
	}
	if v, _ := attrs[AttrMethod].Node.AsString(); v != "ping" {
		t.Fatalf("method = %q; want ping", v)
	}
	if attrs[AttrObjPath].Present {
		t.Fatalf("objpath slot should not be present for INVOKE")
	}
}

func TestDecodeAttrsStatusMissing(t *testing.T) {
	payload := List("")
	attrs := DecodeAttrs(MsgStatus, payload)
	if attrs[AttrStatus].Present {
		t.Fatalf("expected status slot absent when payload has no status child")
	}
}

func TestDecodeAttrsLookupOnlyObjPath(t *testing.T) {
	payload := List("",
		UInt32("objid", 7),
		Str("objpath", "network.interface"),
		UInt32("objtype", 1),
	)
	attrs := DecodeAttrs(MsgLookup, payload)

	if !attrs[AttrObjPath].Present {
		t.Fatalf("expected objpath slot present for LOOKUP")
	}
	if attrs[AttrObjID].Present || attrs[AttrObjType].Present {
		t.Fatalf("LOOKUP should only extract OBJPATH")
	}
}

func TestDecodeAttrsAddObjectOnlyObjPathAndSignature(t *testing.T) {
	payload := List("",
		UInt32("objid", 7),
		Str("objpath", "network.interface"),
		UInt32("objtype", 1),
		List("signature", Str("", "up")),
	)
	attrs := DecodeAttrs(MsgAddObject, payload)

	if !attrs[AttrObjPath].Present || !attrs[AttrSignature].Present {
		t.Fatalf("expected objpath and signature slots present for ADD_OBJECT")
	}
	if attrs[AttrObjID].Present || attrs[AttrObjType].Present {
		t.Fatalf("ADD_OBJECT should only extract OBJPATH, SIGNATURE")
	}
}

func TestDecodeAttrsUnsubscribeExtractsNothing(t *testing.T) {
	payload := List("", UInt32("objid", 7), Str("objpath", "x"))
	attrs := DecodeAttrs(MsgUnsubscribe, payload)
	for i, a := range attrs {
		if a.Present {
			t.Fatalf("slot %d unexpectedly present for UNSUBSCRIBE", i)
		}
	}
}

func TestDecodeAttrsNotifyExtractsNothing(t *testing.T) {
	payload := List("",
		UInt32("objid", 7),
		UInt32("subscribers", 0b101),
		List("data"),
	)
	attrs := DecodeAttrs(MsgNotify, payload)
	for i, a := range attrs {
		if a.Present {
			t.Fatalf("slot %d unexpectedly present for NOTIFY", i)
		}
	}
}

func TestDecodeAttrsUnknownType(t *testing.T) {
	attrs := DecodeAttrs(MsgType(99), List(""))
	for i, a := range attrs {
		if a.Present {
			t.Fatalf("slot %d unexpectedly present for unknown message type", i)
		}
	}
}

func TestDecodeSubscribers(t *testing.T) {
	payload := List("",
		UInt32("status", 0),
		List("subscribers", UInt32("", 0x21), UInt32("", 0x22)),
	)
	ids := DecodeSubscribers(payload)
	if len(ids) != 2 || ids[0] != 0x21 || ids[1] != 0x22 {
		t.Fatalf("DecodeSubscribers = %v, want [0x21 0x22]", ids)
	}
}

func TestDecodeSubscribersAbsent(t *testing.T) {
	payload := List("", UInt32("status", 0))
	if ids := DecodeSubscribers(payload); ids != nil {
		t.Fatalf("DecodeSubscribers = %v, want nil", ids)
	}
}
