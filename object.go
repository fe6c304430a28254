package ubus

import "github.com/mdlayher/ubus/internal/wire"

// MethodHandler implements one method of a locally-registered object.
// Returning a non-nil *wire.Node sends it as the reply payload before
// the terminal status; returning StatusCode alone (payload nil) just
// sends the status.
type MethodHandler func(c *Context, peer uint32, args *wire.Node) (*wire.Node, StatusCode)

// MethodSignature describes one method an object exposes, used to
// populate the ADD_OBJECT signature attribute.
type MethodSignature struct {
	Name    string
	Handler MethodHandler
}

// Object is a locally-registered bus object: a path, an ID (assigned
// from a per-Context counter by RegisterObject when left zero), and its
// method table.
type Object struct {
	Path    string
	ID      uint32
	TypeID  uint32
	Methods []MethodSignature

	subscribers map[uint32]bool
}

// Method looks up a method by name.
func (o *Object) Method(name string) (MethodHandler, bool) {
	for _, m := range o.Methods {
		if m.Name == name {
			return m.Handler, true
		}
	}
	return nil, false
}

// Subscribe records peer as subscribed to this object's NOTIFY
// fan-out.
func (o *Object) Subscribe(peer uint32) {
	if o.subscribers == nil {
		o.subscribers = make(map[uint32]bool)
	}
	o.subscribers[peer] = true
}

// Unsubscribe removes peer from this object's subscriber set.
func (o *Object) Unsubscribe(peer uint32) {
	delete(o.subscribers, peer)
}

// Subscribers returns the current subscriber peer IDs.
func (o *Object) Subscribers() []uint32 {
	out := make([]uint32, 0, len(o.subscribers))
	for peer := range o.subscribers {
		out = append(out, peer)
	}
	return out
}

// EventHandler is invoked for events matching a registered pattern,
// grounded on the original implementation's ubus_register_event_handler.
type EventHandler func(c *Context, eventType string, data *wire.Node)

// DeferredRequest represents an inbound INVOKE whose reply will be sent
// later via CompleteDeferredRequest, rather than synchronously from the
// method handler. Grounded on ubus_complete_deferred_request /
// ubus_defer_request in the original implementation.
type DeferredRequest struct {
	Seq    uint32
	Peer   uint32
	ObjID  uint32
	Method string

	notified bool
}

// ObjectInfo is one entry returned by Lookup, matching the record shape
// the original implementation's ubus_lookup_cb parses (id/path/type).
type ObjectInfo struct {
	ID     uint32
	Path   string
	TypeID uint32
}
