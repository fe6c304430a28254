// Package ubus provides a client for the micro-bus RPC runtime: a
// single-threaded, event-loop-driven request/response multiplexer that
// correlates inbound STATUS/DATA frames with outstanding requests by
// sequence number, defers reentrant inbound dispatch while a
// synchronous call is active, and fans a single notify out to many
// subscriber peers. Socket framing, blob (de)serialization, and
// server-side object dispatch beyond this module's own registered
// objects are external collaborators (see internal/iface).
package ubus

import (
	"fmt"
	"time"

	"github.com/mdlayher/ubus/internal/dispatch"
	"github.com/mdlayher/ubus/internal/iface"
	"github.com/mdlayher/ubus/internal/requests"
	"github.com/mdlayher/ubus/internal/wire"
)

// Context is the client's single-threaded event-loop core. None of its
// methods are safe to call concurrently from more than one goroutine;
// callers that need concurrent access must serialize it themselves, the
// same way the original implementation's single-threaded uloop core
// does.
type Context struct {
	transport iface.Transport
	loop      *dispatch.Loop
	registry  requests.Registry

	cfg      Config
	logger   iface.Logger
	observer Observer
	metrics  *Metrics
	clock    iface.Clock

	objectsByID   map[uint32]*Object
	objectsByPath map[string]*Object
	localSeq      uint32

	eventHandlers []eventHandlerEntry
}

type eventHandlerEntry struct {
	pattern string
	handler EventHandler
}

// New creates a Context over transport, registering it with the event
// loop immediately. objects registered later via RegisterObject are
// routed inbound INVOKE/NOTIFY/UNSUBSCRIBE from transport.
func New(transport iface.Transport, opts *Options) (*Context, error) {
	if opts == nil {
		opts = &Options{}
	}
	cfg := opts.Config
	if cfg.InvokeTimeout == 0 {
		cfg = DefaultConfig()
	}

	metrics := NewMetrics()
	observer := opts.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	clock := opts.Clock
	if clock == nil {
		clock = iface.SystemClock{}
	}

	c := &Context{
		transport:     transport,
		cfg:           cfg,
		logger:        opts.Logger,
		observer:      observer,
		metrics:       metrics,
		clock:         clock,
		objectsByID:   make(map[uint32]*Object),
		objectsByPath: make(map[string]*Object),
	}

	c.loop = &dispatch.Loop{
		Transport: transport,
		Registry:  &c.registry,
		Objects:   c,
		Logger:    opts.Logger,
		Clock:     clock,
	}

	if !transport.Registered() {
		if err := transport.Register(); err != nil {
			return nil, WrapError("New", err)
		}
	}

	return c, nil
}

// Close detaches the Context's transport from the event loop.
func (c *Context) Close() error {
	if !c.transport.Registered() {
		return nil
	}
	return c.transport.Unregister()
}

// Metrics returns the Context's metrics collector.
func (c *Context) Metrics() *Metrics { return c.metrics }

// Reset clears all local object registrations and event handlers and
// resets request sequencing, matching the supplemented reconnect
// bookkeeping a real client performs after its transport re-handshakes.
func (c *Context) Reset() {
	c.objectsByID = make(map[uint32]*Object)
	c.objectsByPath = make(map[string]*Object)
	c.eventHandlers = nil
	c.registry = requests.Registry{}
}

func (c *Context) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}

// --- Invocation -------------------------------------------------------

// InvokeAsync starts an INVOKE call against objID/method without
// blocking; onData is called for each DATA frame, onComplete exactly
// once when a STATUS arrives or CompleteRequest times it out. An
// aborted request never calls onComplete. Matches ubus_invoke_async.
func (c *Context) InvokeAsync(objID uint32, method string, args *wire.Node, onData requests.DataFunc, onComplete requests.CompleteFunc) (*requests.Request, error) {
	req := &requests.Request{OnData: onData, OnComplete: onComplete}
	c.registry.Start(req, 0)

	payload := invokePayload(objID, method, args)
	if err := c.transport.Send(wire.Header{Type: wire.MsgInvoke, Seq: req.Seq, Peer: req.Peer}, payload, -1); err != nil {
		return req, WrapError("InvokeAsync", err)
	}
	c.registry.Track(req)

	c.observer.OnRequestStart(req.Seq, method)
	return req, nil
}

// Invoke synchronously calls objID/method, blocking up to timeout (0
// uses the Context's default). It returns the last DATA payload
// delivered, if any, and the terminal status. Matches ubus_invoke's
// composition of ubus_invoke_async with the synchronous bridge.
func (c *Context) Invoke(objID uint32, method string, args *wire.Node, timeout time.Duration) (*wire.Node, StatusCode, error) {
	if timeout == 0 {
		timeout = c.cfg.InvokeTimeout
	}

	var last *wire.Node
	req, err := c.InvokeAsync(objID, method, args, func(r *requests.Request, payload *wire.Node) {
		last = payload
	}, nil)
	if err != nil {
		return nil, StatusConnectionFailed, err
	}

	start := c.clock.Now()
	code := c.loop.CompleteRequest(req, timeout)
	c.observer.OnRequestComplete(req.Seq, int32(code), c.clock.Now().Sub(start))

	if code != StatusOK {
		return last, code, NewObjectError("Invoke", "", method, code, code.String())
	}
	return last, code, nil
}

func invokePayload(objID uint32, method string, args *wire.Node) *wire.Node {
	children := []*wire.Node{wire.UInt32("objid", objID), wire.Str("method", method)}
	if args != nil {
		children = append(children, wire.Named("data", args))
	}
	return wire.List("", children...)
}

// --- Lookup -------------------------------------------------------

// Lookup enumerates objects whose path matches the given prefix (""
// lists every object), blocking up to the Context's default timeout.
// Matches ubus_lookup.
func (c *Context) Lookup(path string) ([]ObjectInfo, error) {
	var infos []ObjectInfo

	req, err := c.startLookup(path, func(r *requests.Request, payload *wire.Node) {
		info, ok := parseObjectInfo(payload)
		if ok {
			infos = append(infos, info)
		}
	})
	if err != nil {
		return nil, err
	}

	code := c.loop.CompleteRequest(req, c.cfg.InvokeTimeout)
	if code != StatusOK {
		return infos, NewError("Lookup", code, code.String())
	}
	return infos, nil
}

// LookupID resolves a single object path to its daemon-assigned ID.
// Matches ubus_lookup_id.
func (c *Context) LookupID(path string) (uint32, error) {
	infos, err := c.Lookup(path)
	if err != nil {
		return 0, err
	}
	for _, info := range infos {
		if info.Path == path {
			return info.ID, nil
		}
	}
	return 0, NewError("LookupID", StatusNotFound, "object not found: "+path)
}

func (c *Context) startLookup(path string, onData requests.DataFunc) (*requests.Request, error) {
	req := &requests.Request{OnData: onData}
	c.registry.Start(req, 0)

	children := []*wire.Node{}
	if path != "" {
		children = append(children, wire.Str("objpath", path))
	}
	payload := wire.List("", children...)

	if err := c.transport.Send(wire.Header{Type: wire.MsgLookup, Seq: req.Seq, Peer: req.Peer}, payload, -1); err != nil {
		return req, WrapError("Lookup", err)
	}
	c.registry.Track(req)
	return req, nil
}

func parseObjectInfo(payload *wire.Node) (ObjectInfo, bool) {
	idNode := payload.Field("objid")
	pathNode := payload.Field("objpath")
	typeNode := payload.Field("objtype")
	if idNode == nil || pathNode == nil || typeNode == nil {
		return ObjectInfo{}, false
	}
	id, _ := idNode.AsUint32()
	path, _ := pathNode.AsString()
	typeID, _ := typeNode.AsUint32()
	return ObjectInfo{ID: id, Path: path, TypeID: typeID}, true
}

// --- Object dispatch -------------------------------------------------

// RegisterObject adds obj to the local object table so inbound INVOKE
// targeting it is routed to its methods and UNSUBSCRIBE updates its
// subscriber set; inbound NOTIFY is not delivered to its methods. An
// ADD_OBJECT announcement is sent to the daemon. Supplements the
// distilled spec with the original implementation's object
// registration bookkeeping (ubus_add_object).
func (c *Context) RegisterObject(obj *Object) error {
	if obj.ID == 0 {
		c.localSeq++
		obj.ID = c.localSeq
	}
	c.objectsByID[obj.ID] = obj
	c.objectsByPath[obj.Path] = obj

	sig := make([]*wire.Node, 0, len(obj.Methods))
	for _, m := range obj.Methods {
		sig = append(sig, wire.Str("", m.Name))
	}
	payload := wire.List("",
		wire.UInt32("objid", obj.ID),
		wire.Str("objpath", obj.Path),
		wire.UInt32("objtype", obj.TypeID),
		wire.List("signature", sig...),
	)

	req := &requests.Request{}
	c.registry.Start(req, 0)
	if err := c.transport.Send(wire.Header{Type: wire.MsgAddObject, Seq: req.Seq, Peer: req.Peer}, payload, -1); err != nil {
		return WrapError("RegisterObject", err)
	}
	code := c.loop.CompleteRequest(req, c.cfg.InvokeTimeout)
	if code != StatusOK {
		return NewObjectError("RegisterObject", obj.Path, "", code, code.String())
	}
	return nil
}

// HandleObjectMessage implements internal/iface.Registry, routing
// inbound INVOKE/NOTIFY/UNSUBSCRIBE to locally-registered objects. It
// is invoked by the dispatch loop, never directly by callers.
func (c *Context) HandleObjectMessage(hdr wire.Header, payload *wire.Node, attrs [wire.AttrMax]wire.Attr) error {
	switch hdr.Type {
	case wire.MsgInvoke:
		return c.handleInvoke(hdr, attrs)
	case wire.MsgUnsubscribe:
		return c.handleUnsubscribe(attrs)
	case wire.MsgNotify:
		// Subscriber-side NOTIFY delivery targets a locally-registered
		// subscription object, out of scope for this client core (see
		// Non-goals); the daemon's own multi-peer fan-out is handled
		// client-side by NotifyAsync/Notify below.
		return nil
	default:
		return nil
	}
}

func (c *Context) handleInvoke(hdr wire.Header, attrs [wire.AttrMax]wire.Attr) error {
	var objID uint32
	if attrs[wire.AttrObjID].Present {
		objID, _ = attrs[wire.AttrObjID].Node.AsUint32()
	}
	obj, ok := c.objectsByID[objID]
	if !ok {
		return c.sendStatus(hdr.Seq, hdr.Peer, StatusNotFound)
	}

	var method string
	if attrs[wire.AttrMethod].Present {
		method, _ = attrs[wire.AttrMethod].Node.AsString()
	}
	handler, ok := obj.Method(method)
	if !ok {
		return c.sendStatus(hdr.Seq, hdr.Peer, StatusMethodNotFound)
	}

	var args *wire.Node
	if attrs[wire.AttrData].Present {
		args = attrs[wire.AttrData].Node
	}

	reply, code := handler(c, hdr.Peer, args)
	if reply != nil {
		if err := c.SendReply(hdr, reply); err != nil {
			return err
		}
	}
	return c.sendStatus(hdr.Seq, hdr.Peer, code)
}

func (c *Context) handleUnsubscribe(attrs [wire.AttrMax]wire.Attr) error {
	if !attrs[wire.AttrObjID].Present {
		return nil
	}
	objID, _ := attrs[wire.AttrObjID].Node.AsUint32()
	obj, ok := c.objectsByID[objID]
	if !ok {
		return nil
	}
	obj.Unsubscribe(0)
	return nil
}

// SendReply sends a DATA frame carrying data back to the peer and
// sequence that originated hdr, matching ubus_send_reply. handleInvoke
// uses it when a method handler returns a payload; CompleteDeferredRequest
// does not call it and sends only the terminal status.
func (c *Context) SendReply(hdr wire.Header, data *wire.Node) error {
	payload := wire.List("", wire.Named("data", data))
	return c.transport.Send(wire.Header{Type: wire.MsgData, Seq: hdr.Seq, Peer: hdr.Peer}, payload, -1)
}

func (c *Context) sendStatus(seq, peer uint32, code StatusCode) error {
	payload := wire.List("", wire.UInt32("status", uint32(code)))
	return c.transport.Send(wire.Header{Type: wire.MsgStatus, Seq: seq, Peer: peer}, payload, -1)
}

// CompleteDeferredRequest sends the terminal status for a previously
// deferred INVOKE, matching ubus_complete_deferred_request.
func (c *Context) CompleteDeferredRequest(req *DeferredRequest, code StatusCode) error {
	if req.notified {
		return fmt.Errorf("ubus: deferred request already completed")
	}
	req.notified = true
	return c.sendStatus(req.Seq, req.Peer, code)
}

// --- Notify fan-out ----------------------------------------------------

// NotifyAsync fans objID's method out to every subscriber, non-blocking.
// timeout < 0 sends fire-and-forget (no STATUS is awaited at all,
// matching ubus_notify with a negative timeout); any other value leaves
// the request tracked without waiting on it.
func (c *Context) NotifyAsync(objID uint32, method string, args *wire.Node, onStatus requests.StatusFunc, timeout time.Duration) (*requests.NotifyRequest, error) {
	req := &requests.Request{}
	c.registry.Start(req, objID)
	nreq := requests.NewNotifyRequest(req)
	nreq.OnStatus = onStatus

	payload := invokePayload(objID, method, args)
	if err := c.transport.Send(wire.Header{Type: wire.MsgNotify, Seq: req.Seq, Peer: req.Peer}, payload, -1); err != nil {
		return nreq, WrapError("NotifyAsync", err)
	}

	if timeout < 0 {
		// Fire-and-forget: abort locally instead of waiting for any
		// reply, matching ubus_notify's negative-timeout branch.
		c.registry.Abort(req)
		return nreq, nil
	}

	// Slot 0 is the daemon's own enumerating STATUS, which carries the
	// SUBSCRIBERS attribute that arms every further slot; subscriber
	// identity is never assumed from local state.
	c.registry.Track(req)
	c.observer.OnNotifyDispatch(req.Seq, 1)
	return nreq, nil
}

// Notify synchronously fans objID's method out and blocks until every
// subscriber slot has replied or timeout elapses.
func (c *Context) Notify(objID uint32, method string, args *wire.Node, timeout time.Duration) error {
	if timeout == 0 {
		timeout = c.cfg.InvokeTimeout
	}
	nreq, err := c.NotifyAsync(objID, method, args, nil, timeout)
	if err != nil {
		return err
	}
	if !nreq.Pending() {
		return nil
	}
	code := c.loop.CompleteRequest(nreq.Request, timeout)
	if code != StatusOK {
		return NewObjectError("Notify", "", method, code, code.String())
	}
	return nil
}

// --- Events -------------------------------------------------------

// RegisterEventHandler arms handler for events whose type matches
// pattern (exact match; "" matches every event), matching
// ubus_register_event_handler.
func (c *Context) RegisterEventHandler(pattern string, handler EventHandler) {
	c.eventHandlers = append(c.eventHandlers, eventHandlerEntry{pattern: pattern, handler: handler})
}

// SendEvent publishes an event with the given type and data by
// invoking the system event object's "send" method, matching
// ubus_send_event's {id, data} table.
func (c *Context) SendEvent(eventType string, data *wire.Node) error {
	payload := wire.List("",
		wire.Str("objpath", eventType),
		wire.Str("method", "send"),
		wire.Named("data", data),
	)
	req := &requests.Request{}
	c.registry.Start(req, 0)
	if err := c.transport.Send(wire.Header{Type: wire.MsgInvoke, Seq: req.Seq, Peer: 0}, payload, -1); err != nil {
		return WrapError("SendEvent", err)
	}
	return nil
}

// dispatchEvent fans an event out to every handler whose pattern
// matches it. No inbound message path calls it: HandleObjectMessage
// does not route events here.
func (c *Context) dispatchEvent(eventType string, data *wire.Node) {
	for _, entry := range c.eventHandlers {
		if entry.pattern == "" || entry.pattern == eventType {
			entry.handler(c, eventType, data)
		}
	}
}

var _ iface.Registry = (*Context)(nil)
