package models

import "time"

// FeedbackSessionStatus is the lifecycle of a customer-facing CSAT request.
type FeedbackSessionStatus string

const (
	FeedbackPending   FeedbackSessionStatus = "pending"
	FeedbackCompleted FeedbackSessionStatus = "completed"
	FeedbackExpired   FeedbackSessionStatus = "expired"
)

// FeedbackSession is a customer-facing review-collection workflow driven by
// optimization data: the Optimization Loop's validate phase (§4.7.3) may
// request a CSAT signal in addition to the metrics it already tracks, and
// this is where that request and its eventual rating are recorded.
type FeedbackSession struct {
	ID             string                `json:"id"`
	LeadID         string                `json:"lead_id"`
	AgentID        string                `json:"agent_id"`
	OptimizationID string                `json:"optimization_id,omitempty"`
	TriggeredBy    string                `json:"triggered_by"`
	SentAt         time.Time             `json:"sent_at"`
	RespondedAt    *time.Time            `json:"responded_at,omitempty"`
	Rating         *int                  `json:"rating,omitempty"` // 1-5
	Comments       string                `json:"comments,omitempty"`
	Status         FeedbackSessionStatus `json:"status"`
}

// Validate checks the rating range when present.
func (f *FeedbackSession) Validate() error {
	if f.Rating != nil && (*f.Rating < 1 || *f.Rating > 5) {
		return &ValidationErr{Field: "rating", Message: "must be between 1 and 5"}
	}
	return nil
}

// Respond records a customer's rating and transitions the session to completed.
func (f *FeedbackSession) Respond(at time.Time, rating int, comments string) error {
	if rating < 1 || rating > 5 {
		return &ValidationErr{Field: "rating", Message: "must be between 1 and 5"}
	}
	f.RespondedAt = &at
	f.Rating = &rating
	f.Comments = comments
	f.Status = FeedbackCompleted
	return nil
}
