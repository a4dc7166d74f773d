// Package models defines the domain entities and stable error kinds shared
// across the optimization control plane.
package models

import "errors"

// Stable error kinds (§7). Components check these with errors.Is/errors.As;
// the concrete message text may vary but the sentinel identity does not.
var (
	// ValidationError — input violates a schema/invariant. Fails locally.
	ErrValidation = errors.New("validation error")

	// InvalidStateTransition — disallowed Lead status edge. Never recovered.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// NoBaseline — measure_impact called with no baseline set for the agent/period.
	ErrNoBaseline = errors.New("no baseline set")

	// DuplicateConflict — dedup merge target vanished between check and merge.
	ErrDuplicateConflict = errors.New("duplicate merge conflict")

	// ExternalUnavailable — Store/MessageSender/RoutingAgent call failed.
	ErrExternalUnavailable = errors.New("external collaborator unavailable")

	// Timeout — context deadline exceeded on a blocking call.
	ErrTimeout = errors.New("operation timed out")

	// IntegrityError — invariant violation detected at persistence time.
	ErrIntegrity = errors.New("integrity error")

	// Not-found variants used by Store implementations; distinct from
	// ValidationError since callers branch on existence vs. shape.
	ErrLeadNotFound         = errors.New("lead not found")
	ErrInteractionNotFound  = errors.New("interaction not found")
	ErrSequenceNotFound     = errors.New("sequence not found")
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrSnapshotNotFound     = errors.New("performance snapshot not found")

	// ErrBreakerOpen is returned by a collaborator call short-circuited by
	// an open circuit breaker, distinct from the underlying failure.
	ErrBreakerOpen = errors.New("circuit breaker open")

	// ErrQuarantined — a recommendation whose rollback failed is never retried.
	ErrQuarantined = errors.New("recommendation quarantined after rollback failure")
)

// ValidationErr carries the offending field alongside ErrValidation so
// callers can both errors.Is(err, models.ErrValidation) and read Field.
type ValidationErr struct {
	Field   string
	Message string
}

func (e *ValidationErr) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationErr) Unwrap() error {
	return ErrValidation
}

// ValidationErrs aggregates multiple field failures from one Validate call.
type ValidationErrs []*ValidationErr

func (e ValidationErrs) Error() string {
	if len(e) == 0 {
		return ErrValidation.Error()
	}
	msg := e[0].Error()
	for _, extra := range e[1:] {
		msg += "; " + extra.Error()
	}
	return msg
}

func (e ValidationErrs) Unwrap() error {
	return ErrValidation
}

// StateTransitionErr carries the rejected edge alongside ErrInvalidStateTransition.
type StateTransitionErr struct {
	From LeadStatus
	To   LeadStatus
}

func (e *StateTransitionErr) Error() string {
	return "cannot transition lead from " + string(e.From) + " to " + string(e.To)
}

func (e *StateTransitionErr) Unwrap() error {
	return ErrInvalidStateTransition
}

// ExternalErr wraps a failed collaborator call with the resource name used
// to key circuit breaker and error-monitor bookkeeping (e.g. "gmail.poll").
type ExternalErr struct {
	Resource string
	Err      error
}

func (e *ExternalErr) Error() string {
	return e.Resource + ": " + e.Err.Error()
}

func (e *ExternalErr) Unwrap() error {
	return e.Err
}
