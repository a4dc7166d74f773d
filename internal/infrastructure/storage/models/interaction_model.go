package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/leadctl/optimizer/pkg/models"
)

// InteractionModel is the bun-mapped row for an Interaction (§3).
type InteractionModel struct {
	bun.BaseModel `bun:"table:interactions,alias:i"`

	ID        string    `bun:"id,pk,type:uuid"`
	LeadID    string    `bun:"lead_id,notnull"`
	AgentID   string    `bun:"agent_id,notnull"`
	Type      string    `bun:"type,notnull"`
	Direction string    `bun:"direction,notnull"`
	Content   string    `bun:"content"`

	OutcomeStatus              string `bun:"outcome_status,notnull"`
	OutcomeAppointmentBooked    bool   `bun:"outcome_appointment_booked"`
	OutcomeQualificationUpdated bool   `bun:"outcome_qualification_updated"`
	OutcomeEscalationRequired   bool   `bun:"outcome_escalation_required"`

	DurationS *int `bun:"duration_s"`

	SentimentScore      *float64 `bun:"sentiment_score"`
	SentimentConfidence *float64 `bun:"sentiment_confidence"`

	NextActionAction      string     `bun:"next_action_action"`
	NextActionScheduledAt *time.Time `bun:"next_action_scheduled_at"`
	NextActionDescription string     `bun:"next_action_description"`

	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp"`
}

// ToDomain maps the row to the domain Interaction.
func (m *InteractionModel) ToDomain() *models.Interaction {
	i := &models.Interaction{
		ID:        m.ID,
		LeadID:    m.LeadID,
		AgentID:   m.AgentID,
		Type:      models.InteractionType(m.Type),
		Direction: models.InteractionDirection(m.Direction),
		Content:   m.Content,
		Outcome: models.Outcome{
			Status:               models.OutcomeStatus(m.OutcomeStatus),
			AppointmentBooked:    m.OutcomeAppointmentBooked,
			QualificationUpdated: m.OutcomeQualificationUpdated,
			EscalationRequired:   m.OutcomeEscalationRequired,
		},
		DurationS: m.DurationS,
		Timestamp: m.Timestamp,
	}
	if m.SentimentScore != nil {
		i.Sentiment = &models.Sentiment{Score: *m.SentimentScore, Confidence: deref(m.SentimentConfidence)}
	}
	if m.NextActionScheduledAt != nil {
		i.NextAction = &models.NextAction{
			Action:      m.NextActionAction,
			ScheduledAt: *m.NextActionScheduledAt,
			Description: m.NextActionDescription,
		}
	}
	return i
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// InteractionModelFromDomain maps a domain Interaction to its row representation.
func InteractionModelFromDomain(i *models.Interaction) *InteractionModel {
	m := &InteractionModel{
		ID:                          i.ID,
		LeadID:                      i.LeadID,
		AgentID:                     i.AgentID,
		Type:                        string(i.Type),
		Direction:                   string(i.Direction),
		Content:                     i.Content,
		OutcomeStatus:               string(i.Outcome.Status),
		OutcomeAppointmentBooked:    i.Outcome.AppointmentBooked,
		OutcomeQualificationUpdated: i.Outcome.QualificationUpdated,
		OutcomeEscalationRequired:   i.Outcome.EscalationRequired,
		DurationS:                   i.DurationS,
		Timestamp:                   i.Timestamp,
	}
	if i.Sentiment != nil {
		score, conf := i.Sentiment.Score, i.Sentiment.Confidence
		m.SentimentScore, m.SentimentConfidence = &score, &conf
	}
	if i.NextAction != nil {
		m.NextActionAction = i.NextAction.Action
		m.NextActionScheduledAt = &i.NextAction.ScheduledAt
		m.NextActionDescription = i.NextAction.Description
	}
	return m
}
