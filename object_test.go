package ubus

import "testing"

func TestObjectMethodLookup(t *testing.T) {
	obj := &Object{
		Methods: []MethodSignature{
			{Name: "get"},
			{Name: "set"},
		},
	}

	if _, ok := obj.Method("get"); !ok {
		t.Fatalf("expected to find method get")
	}
	if _, ok := obj.Method("missing"); ok {
		t.Fatalf("did not expect to find method missing")
	}
}

func TestObjectSubscribers(t *testing.T) {
	obj := &Object{}

	if len(obj.Subscribers()) != 0 {
		t.Fatalf("expected no subscribers initially")
	}

	obj.Subscribe(1)
	obj.Subscribe(2)
	if len(obj.Subscribers()) != 2 {
		t.Fatalf("expected 2 subscribers, got %d", len(obj.Subscribers()))
	}

	obj.Unsubscribe(1)
	subs := obj.Subscribers()
	if len(subs) != 1 || subs[0] != 2 {
		t.Fatalf("subscribers = %v, want [2]", subs)
	}
}

func TestObjectUnsubscribeNotPresentIsNoop(t *testing.T) {
	obj := &Object{}
	obj.Unsubscribe(5) // must not panic on an empty subscriber set
	if len(obj.Subscribers()) != 0 {
		t.Fatalf("expected no subscribers")
	}
}
