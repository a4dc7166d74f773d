package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/leadctl/optimizer/pkg/models"
)

// FeedbackModel is the bun-mapped row for a FeedbackSession (§4.7.3).
type FeedbackModel struct {
	bun.BaseModel `bun:"table:feedback_sessions,alias:fb"`

	ID             string     `bun:"id,pk,type:uuid"`
	LeadID         string     `bun:"lead_id,notnull"`
	AgentID        string     `bun:"agent_id,notnull"`
	OptimizationID string     `bun:"optimization_id"`
	TriggeredBy    string     `bun:"triggered_by"`
	SentAt         time.Time  `bun:"sent_at,notnull"`
	RespondedAt    *time.Time `bun:"responded_at"`
	Rating         *int       `bun:"rating"`
	Comments       string     `bun:"comments"`
	Status         string     `bun:"status,notnull"`
}

// ToDomain maps the row to a domain FeedbackSession.
func (m *FeedbackModel) ToDomain() *models.FeedbackSession {
	return &models.FeedbackSession{
		ID:             m.ID,
		LeadID:         m.LeadID,
		AgentID:        m.AgentID,
		OptimizationID: m.OptimizationID,
		TriggeredBy:    m.TriggeredBy,
		SentAt:         m.SentAt,
		RespondedAt:    m.RespondedAt,
		Rating:         m.Rating,
		Comments:       m.Comments,
		Status:         models.FeedbackSessionStatus(m.Status),
	}
}

// FeedbackModelFromDomain maps a domain FeedbackSession to its row.
func FeedbackModelFromDomain(f *models.FeedbackSession) *FeedbackModel {
	return &FeedbackModel{
		ID:             f.ID,
		LeadID:         f.LeadID,
		AgentID:        f.AgentID,
		OptimizationID: f.OptimizationID,
		TriggeredBy:    f.TriggeredBy,
		SentAt:         f.SentAt,
		RespondedAt:    f.RespondedAt,
		Rating:         f.Rating,
		Comments:       f.Comments,
		Status:         string(f.Status),
	}
}
