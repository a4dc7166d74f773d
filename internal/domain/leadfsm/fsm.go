// Package leadfsm implements the Lead status state machine (spec §4.1) as a
// pure edge-table lookup, in the style of the teacher's workflow graph
// validation (cycle/edge-reference checks expressed as table lookups rather
// than scattered conditionals).
package leadfsm

import "github.com/leadctl/optimizer/pkg/models"

// edges enumerates every permitted transition. Terminal states (converted,
// lost) have no entry and therefore no outgoing edges.
var edges = map[models.LeadStatus]map[models.LeadStatus]bool{
	models.StatusNew: {
		models.StatusContacted: true,
		models.StatusDormant:   true,
		models.StatusLost:      true,
	},
	models.StatusContacted: {
		models.StatusQualified: true,
		models.StatusDormant:   true,
		models.StatusLost:      true,
	},
	models.StatusQualified: {
		models.StatusAppointmentSched: true,
		models.StatusDormant:          true,
		models.StatusLost:             true,
	},
	models.StatusAppointmentSched: {
		models.StatusConverted: true,
		models.StatusContacted: true,
		models.StatusLost:      true,
	},
	models.StatusDormant: {
		models.StatusContacted: true,
	},
}

// CanTransition reports whether the edge (from, to) is permitted.
func CanTransition(from, to models.LeadStatus) bool {
	allowed, ok := edges[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// Transition validates and returns the target status, or
// *models.StateTransitionErr wrapping models.ErrInvalidStateTransition.
func Transition(from, to models.LeadStatus) (models.LeadStatus, error) {
	if !CanTransition(from, to) {
		return from, &models.StateTransitionErr{From: from, To: to}
	}
	return to, nil
}

// IsTerminal reports whether a status has no outgoing edges.
func IsTerminal(status models.LeadStatus) bool {
	_, ok := edges[status]
	return !ok
}
