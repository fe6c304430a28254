// Package status defines the closed reply-status enum shared by every
// layer of the bus client, from the wire codec up to the public API.
package status

// Code is a bus reply status. Zero value is OK.
type Code int32

const (
	OK Code = iota
	InvalidCommand
	InvalidArgument
	MethodNotFound
	NotFound
	NoData
	PermissionDenied
	Timeout
	NotSupported
	UnknownError
	ConnectionFailed
)

var names = [...]string{
	"OK",
	"INVALID_COMMAND",
	"INVALID_ARGUMENT",
	"METHOD_NOT_FOUND",
	"NOT_FOUND",
	"NO_DATA",
	"PERMISSION_DENIED",
	"TIMEOUT",
	"NOT_SUPPORTED",
	"UNKNOWN_ERROR",
	"CONNECTION_FAILED",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(names) {
		return names[c]
	}
	return "UNKNOWN_STATUS"
}
