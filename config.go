package ubus

import (
	"time"

	"github.com/mdlayher/ubus/internal/iface"
)

// Config holds the tunables for a Context.
type Config struct {
	// InvokeTimeout is the default bound for Invoke/Notify when the
	// caller does not specify one.
	InvokeTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		InvokeTimeout: DefaultInvokeTimeout,
	}
}

// Options contains the collaborators a Context is built from. A nil
// Logger disables logging; a nil Observer or Clock is replaced by the
// defaults documented on each field.
type Options struct {
	Config Config

	// Logger receives debug/info/warn/error messages.
	Logger iface.Logger

	// Observer receives per-request and per-notify lifecycle hooks. If
	// nil, a MetricsObserver backed by a fresh Metrics is used.
	Observer Observer

	// Clock abstracts time for the synchronous bridge's timeout
	// arithmetic; defaults to the system clock.
	Clock iface.Clock
}
