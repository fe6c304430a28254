package ubus

import "github.com/mdlayher/ubus/internal/constants"

// Re-exported protocol limits, kept in internal/constants so the wire
// and dispatch layers can use them without importing the root package.
const (
	MaxMsgLen            = constants.MaxMsgLen
	MaxNotifyPeers       = constants.MaxNotifyPeers
	AttrMax              = constants.AttrMax
	DefaultInvokeTimeout = constants.DefaultInvokeTimeout
)
