package metrics

import "time"

// Request emits latency and count for one HTTP request.
func Request(method, route string, status int, elapsed time.Duration) {
	New(Namespace).
		Dimension("Route", route).
		Metric("RequestLatencyMs", float64(elapsed.Milliseconds()), UnitMilliseconds).
		Count("RequestCount").
		Property("method", method).
		Property("status", status).
		Flush()
}

// ActionOutcome describes how a metered action ended.
type ActionOutcome struct {
	Action   string
	Outcome  string
	Attempts int
	Charged  bool
	Elapsed  time.Duration
	TeamID   string
}

// Action emits one document per completed or failed metered action.
func Action(o ActionOutcome) {
	r := New(Namespace).
		Dimension("Action", o.Action).
		Dimension("Outcome", o.Outcome).
		Metric("ActionLatencyMs", float64(o.Elapsed.Milliseconds()), UnitMilliseconds).
		Count("ActionOutcome").
		Property("teamId", o.TeamID).
		Property("charged", o.Charged)
	if o.Attempts > 0 {
		r.Metric("GenerationAttempts", float64(o.Attempts), UnitCount)
	}
	r.Flush()
}

// LedgerWriteFailure counts settlements that failed after the action succeeded.
func LedgerWriteFailure(action string) {
	New(Namespace).
		Dimension("Action", action).
		Count("LedgerWriteFailure").
		Flush()
}
