package models

import (
	"fmt"
	"time"
)

// InteractionType is the channel an interaction ran on.
type InteractionType string

const (
	InteractionCall     InteractionType = "call"
	InteractionSMS      InteractionType = "sms"
	InteractionEmail    InteractionType = "email"
	InteractionWhatsApp InteractionType = "whatsapp"
)

// InteractionDirection is inbound or outbound relative to the agent.
type InteractionDirection string

const (
	DirectionInbound  InteractionDirection = "inbound"
	DirectionOutbound InteractionDirection = "outbound"
)

// OutcomeStatus is the terminal state of one interaction attempt.
type OutcomeStatus string

const (
	OutcomeSuccessful  OutcomeStatus = "successful"
	OutcomeFailed      OutcomeStatus = "failed"
	OutcomeTransferred OutcomeStatus = "transferred"
	OutcomePending     OutcomeStatus = "pending"
)

// Outcome captures the result of one interaction.
type Outcome struct {
	Status               OutcomeStatus `json:"status"`
	AppointmentBooked     bool          `json:"appointment_booked"`
	QualificationUpdated  bool          `json:"qualification_updated"`
	EscalationRequired    bool          `json:"escalation_required"`
}

// Sentiment is the optional NLU-derived affect score for an interaction.
type Sentiment struct {
	Score      float64 `json:"score"`      // [-1, 1]
	Confidence float64 `json:"confidence"` // [0, 1]
}

// NextAction is an optional follow-up instruction produced by a ResponseAnalyzer.
type NextAction struct {
	Action      string    `json:"action"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Description string    `json:"description,omitempty"`
}

// Interaction is one outbound/inbound exchange on one channel tied to one lead.
type Interaction struct {
	ID         string                `json:"id"`
	LeadID     string                `json:"lead_id"`
	AgentID    string                `json:"agent_id"`
	Type       InteractionType       `json:"type"`
	Direction  InteractionDirection  `json:"direction"`
	Content    string                `json:"content"`
	Outcome    Outcome               `json:"outcome"`
	DurationS  *int                  `json:"duration_s,omitempty"`
	Sentiment  *Sentiment            `json:"sentiment,omitempty"`
	NextAction *NextAction           `json:"next_action,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

var durationBounds = map[InteractionType][2]int{
	InteractionCall:     {30, 3600},
	InteractionSMS:      {0, 300},
	InteractionEmail:    {0, 300},
	InteractionWhatsApp: {0, 300},
}

// Validate checks the channel-specific duration bound and the next-action
// scheduling invariant (§3).
func (i *Interaction) Validate(now time.Time) error {
	var errs ValidationErrs

	if i.DurationS != nil {
		bounds, ok := durationBounds[i.Type]
		if !ok {
			errs = append(errs, &ValidationErr{Field: "type", Message: "unknown interaction type"})
		} else if *i.DurationS < bounds[0] || *i.DurationS > bounds[1] {
			errs = append(errs, &ValidationErr{
				Field:   "duration_s",
				Message: fmt.Sprintf("must be between %d and %d for %s", bounds[0], bounds[1], i.Type),
			})
		}
	}

	if i.NextAction != nil && !i.NextAction.ScheduledAt.After(now) {
		errs = append(errs, &ValidationErr{Field: "next_action.scheduled_at", Message: "must be after now"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
