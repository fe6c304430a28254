package ubus

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/mdlayher/ubus/internal/status"
)

// StatusCode is a bus reply status, re-exported from internal/status so
// callers never need to import an internal package.
type StatusCode = status.Code

// Status codes, re-exported from internal/status.
const (
	StatusOK               = status.OK
	StatusInvalidCommand   = status.InvalidCommand
	StatusInvalidArgument  = status.InvalidArgument
	StatusMethodNotFound   = status.MethodNotFound
	StatusNotFound         = status.NotFound
	StatusNoData           = status.NoData
	StatusPermissionDenied = status.PermissionDenied
	StatusTimeout          = status.Timeout
	StatusNotSupported     = status.NotSupported
	StatusUnknownError     = status.UnknownError
	StatusConnectionFailed = status.ConnectionFailed
)

// Error is a structured bus error with call context and a reply status,
// grounded on the teacher's internal errno-mapped Error type.
type Error struct {
	Op     string        // operation that failed (e.g. "Invoke", "Lookup")
	Object string        // object path involved, if any
	Method string        // method name involved, if any
	Code   StatusCode    // reply status this error maps to
	Errno  syscall.Errno // transport-level errno, 0 if not applicable
	Msg    string        // human-readable message
	Inner  error         // wrapped error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Object != "" {
		parts = append(parts, fmt.Sprintf("object=%s", e.Object))
	}
	if e.Method != "" {
		parts = append(parts, fmt.Sprintf("method=%s", e.Method))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = e.Code.String()
	}
	if len(parts) > 0 {
		return fmt.Sprintf("ubus: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("ubus: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is lets errors.Is match two *Error values by Code alone.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError creates a structured error for a given operation and status.
func NewError(op string, code StatusCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewErrorWithErrno creates a structured error carrying a transport
// errno, mapping it to a reply status.
func NewErrorWithErrno(op string, errno syscall.Errno) *Error {
	return &Error{Op: op, Code: mapErrnoToStatus(errno), Errno: errno, Msg: errno.Error()}
}

// NewObjectError creates a structured error scoped to an object/method
// call.
func NewObjectError(op, object, method string, code StatusCode, msg string) *Error {
	return &Error{Op: op, Object: object, Method: method, Code: code, Msg: msg}
}

// WrapError wraps an existing error with bus call context, preserving
// an inner *Error's status code or mapping a raw syscall errno.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	if ue, ok := inner.(*Error); ok {
		return &Error{
			Op:     op,
			Object: ue.Object,
			Method: ue.Method,
			Code:   ue.Code,
			Errno:  ue.Errno,
			Msg:    ue.Msg,
			Inner:  ue.Inner,
		}
	}

	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{Op: op, Code: mapErrnoToStatus(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}

	return &Error{Op: op, Code: StatusUnknownError, Msg: inner.Error(), Inner: inner}
}

// mapErrnoToStatus maps a transport-level errno to the closest reply
// status, mirroring the original implementation's errno-to-status
// mapping in its request/invoke path.
func mapErrnoToStatus(errno syscall.Errno) StatusCode {
	switch errno {
	case syscall.ENOENT:
		return StatusNotFound
	case syscall.EINVAL, syscall.E2BIG:
		return StatusInvalidArgument
	case syscall.ENOSYS, syscall.EOPNOTSUPP:
		return StatusNotSupported
	case syscall.EPERM, syscall.EACCES:
		return StatusPermissionDenied
	case syscall.ETIMEDOUT:
		return StatusTimeout
	case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE:
		return StatusConnectionFailed
	default:
		return StatusUnknownError
	}
}

// IsCode reports whether err (or any error it wraps) is a *Error with
// the given status code.
func IsCode(err error, code StatusCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
