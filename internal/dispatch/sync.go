package dispatch

import (
	"time"

	"github.com/mdlayher/ubus/internal/requests"
	"github.com/mdlayher/ubus/internal/status"
)

// CompleteRequest converts an already-started req (tracking it first if
// it is not yet tracked) into a blocking call bounded by timeout,
// matching ubus_complete_request's
// stack_depth accounting and saved-callback restore. timeout <= 0
// blocks with no deadline.
//
// The caller's own OnComplete (if any) is saved and restored before
// this function returns: CompleteRequest installs its own completion
// callback for the duration of the blocking loop, fires the saved one
// itself once the result is known, and always hands the original
// callback back to req afterward so later async completions (there are
// none once terminated, but the field itself must not leak this
// function's closure) behave as the caller configured.
func (l *Loop) CompleteRequest(req *requests.Request, timeout time.Duration) status.Code {
	l.Registry.Track(req)

	savedComplete := req.OnComplete

	done := false
	var result status.Code
	req.OnComplete = func(r *requests.Request, code status.Code) {
		done = true
		result = code
	}

	l.stackDepth++

	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = l.now().Add(timeout)
	}

	for !done {
		remaining := time.Duration(-1) // block with no deadline
		if hasDeadline {
			remaining = deadline.Sub(l.now())
			if remaining <= 0 {
				break
			}
		}
		if err := l.RunOnce(remaining); err != nil {
			break
		}
	}

	l.stackDepth--

	if !done {
		l.Registry.Complete(req, status.Timeout)
		result = status.Timeout
		done = true
	}

	req.OnComplete = savedComplete
	if savedComplete != nil && !req.Cancelled() {
		savedComplete(req, result)
	}

	if l.stackDepth == 0 {
		l.DrainDeferred()
	}

	return result
}

func (l *Loop) now() time.Time {
	if l.Clock != nil {
		return l.Clock.Now()
	}
	return time.Now()
}
