package authz

import "github.com/iota-uz/tenantcrud/pkg/outcome"

type decision uint8

const (
	decisionAllow decision = iota + 1
	decisionDeny
	decisionDenyWith
)

// Result is a permission decision. A denial either carries its own outcome
// or leaves the choice of outcome to the caller.
type Result struct {
	decision decision
	status   outcome.Status
	reason   string
}

func Allow() Result { return Result{decision: decisionAllow} }

// Deny denies with whatever outcome the caller uses by default.
func Deny() Result { return Result{decision: decisionDeny} }

// DenyWith denies with a specific outcome.
func DenyWith(status outcome.Status, reason string) Result {
	return Result{decision: decisionDenyWith, status: status, reason: reason}
}

func (r Result) Allowed() bool { return r.decision == decisionAllow }

// Outcome returns the status and reason to report for a denial, falling back
// to def when the result carries none.
func (r Result) Outcome(def outcome.Status) (outcome.Status, string) {
	if r.decision == decisionDenyWith {
		return r.status, r.reason
	}
	return def, ""
}
