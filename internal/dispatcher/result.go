// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dispatcher

// Outcome is the result of handling a single event.
type Outcome string

const (
	// Applied means the handler ran to completion.
	Applied Outcome = "applied"

	// Deferred means a precondition was unmet and the event must be
	// re-delivered later. No partial state was applied.
	Deferred Outcome = "deferred"

	// Failed means an external action failed. The failure is reported to
	// the event source, which decides on re-delivery.
	Failed Outcome = "failed"
)

// Result is returned by every event handler.
type Result struct {
	Outcome Outcome

	// Reason is the blocked status message shown while an event is
	// deferred. An empty reason leaves the status alone.
	Reason string

	// Err is set when Outcome is Failed.
	Err error
}

// Apply returns an Applied result.
func Apply() Result {
	return Result{Outcome: Applied}
}

// Defer returns a Deferred result that blocks the unit with reason.
func Defer(reason string) Result {
	return Result{Outcome: Deferred, Reason: reason}
}

// Fail returns a Failed result for err. A nil err is Applied.
func Fail(err error) Result {
	if err == nil {
		return Apply()
	}
	return Result{Outcome: Failed, Err: err}
}
