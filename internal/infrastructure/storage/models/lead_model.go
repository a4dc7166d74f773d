package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/leadctl/optimizer/pkg/models"
)

// LeadModel is the bun-mapped row for a Lead (§3).
type LeadModel struct {
	bun.BaseModel `bun:"table:leads,alias:l"`

	ID               string      `bun:"id,pk,type:uuid"`
	Source           string      `bun:"source,notnull"`
	ContactName      string      `bun:"contact_name,notnull"`
	ContactEmail     string      `bun:"contact_email"`
	ContactPhone     string      `bun:"contact_phone"`
	PreferredChannel string      `bun:"preferred_channel"`
	Timezone         string      `bun:"timezone"`
	LeadType         string      `bun:"lead_type,notnull"`
	Urgency          int         `bun:"urgency,notnull"`
	IntentSignals    StringArray `bun:"intent_signals,type:text[]"`
	BudgetMin        float64     `bun:"budget_min"`
	BudgetMax        float64     `bun:"budget_max"`
	Location         string      `bun:"location"`
	PropertyType     string      `bun:"property_type"`
	Timeline         string      `bun:"timeline"`
	Score            float64     `bun:"score"`
	Status           string      `bun:"status,notnull"`
	AssignedAgent    string      `bun:"assigned_agent"`
	CustomFields     JSONBMap    `bun:"custom_fields,type:jsonb"`
	CreatedAt        time.Time   `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time   `bun:"updated_at,notnull,default:current_timestamp"`
}

// ToDomain maps the row to the domain Lead.
func (m *LeadModel) ToDomain() *models.Lead {
	return &models.Lead{
		ID:     m.ID,
		Source: models.LeadSource(m.Source),
		Contact: models.Contact{
			Name:             m.ContactName,
			Email:            m.ContactEmail,
			Phone:            m.ContactPhone,
			PreferredChannel: m.PreferredChannel,
			Timezone:         m.Timezone,
		},
		LeadType:      models.LeadType(m.LeadType),
		Urgency:       m.Urgency,
		IntentSignals: []string(m.IntentSignals),
		Qualification: models.Qualification{
			BudgetMin:    m.BudgetMin,
			BudgetMax:    m.BudgetMax,
			Location:     m.Location,
			PropertyType: m.PropertyType,
			Timeline:     m.Timeline,
			Score:        m.Score,
		},
		Status:        models.LeadStatus(m.Status),
		AssignedAgent: m.AssignedAgent,
		CustomFields:  stringMapOf(m.CustomFields),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func stringMapOf(m JSONBMap) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// LeadModelFromDomain maps a domain Lead to its row representation.
func LeadModelFromDomain(l *models.Lead) *LeadModel {
	return &LeadModel{
		ID:               l.ID,
		Source:           string(l.Source),
		ContactName:      l.Contact.Name,
		ContactEmail:     l.Contact.Email,
		ContactPhone:     l.Contact.Phone,
		PreferredChannel: l.Contact.PreferredChannel,
		Timezone:         l.Contact.Timezone,
		LeadType:         string(l.LeadType),
		Urgency:          l.Urgency,
		IntentSignals:    StringArray(l.IntentSignals),
		BudgetMin:        l.Qualification.BudgetMin,
		BudgetMax:        l.Qualification.BudgetMax,
		Location:         l.Qualification.Location,
		PropertyType:     l.Qualification.PropertyType,
		Timeline:         l.Qualification.Timeline,
		Score:            l.Qualification.Score,
		Status:           string(l.Status),
		AssignedAgent:    l.AssignedAgent,
		CustomFields:     jsonbOfStringMap(l.CustomFields),
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}

func jsonbOfStringMap(m map[string]string) JSONBMap {
	if len(m) == 0 {
		return nil
	}
	out := make(JSONBMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
