package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/leadctl/optimizer/pkg/models"
)

// SequenceModel is the bun-mapped row for an OutboundSequence (§3).
type SequenceModel struct {
	bun.BaseModel `bun:"table:outbound_sequences,alias:seq"`

	ID             string      `bun:"id,pk,type:uuid"`
	LeadID         string      `bun:"lead_id,notnull"`
	CampaignID     string      `bun:"campaign_id"`
	Kind           string      `bun:"kind,notnull"`
	CurrentStep    int         `bun:"current_step,notnull"`
	TotalSteps     int         `bun:"total_steps,notnull"`
	NextFireAt     *time.Time  `bun:"next_fire_at"`
	Status         string      `bun:"status,notnull"`
	InteractionIDs StringArray `bun:"interaction_ids,type:text[]"`
	CreatedAt      time.Time   `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt      time.Time   `bun:"updated_at,notnull,default:current_timestamp"`
}

// ToDomain maps the row to a domain OutboundSequence.
func (m *SequenceModel) ToDomain() *models.OutboundSequence {
	return &models.OutboundSequence{
		ID:             m.ID,
		LeadID:         m.LeadID,
		CampaignID:     m.CampaignID,
		Kind:           models.SequenceKind(m.Kind),
		CurrentStep:    m.CurrentStep,
		TotalSteps:     m.TotalSteps,
		NextFireAt:     m.NextFireAt,
		Status:         models.SequenceStatus(m.Status),
		InteractionIDs: []string(m.InteractionIDs),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// SequenceModelFromDomain maps a domain OutboundSequence to its row.
func SequenceModelFromDomain(s *models.OutboundSequence) *SequenceModel {
	return &SequenceModel{
		ID:             s.ID,
		LeadID:         s.LeadID,
		CampaignID:     s.CampaignID,
		Kind:           string(s.Kind),
		CurrentStep:    s.CurrentStep,
		TotalSteps:     s.TotalSteps,
		NextFireAt:     s.NextFireAt,
		Status:         string(s.Status),
		InteractionIDs: StringArray(s.InteractionIDs),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// CampaignModel is the bun-mapped row for a Campaign (§4.6.1).
type CampaignModel struct {
	bun.BaseModel `bun:"table:campaigns,alias:camp"`

	ID            string   `bun:"id,pk,type:uuid"`
	Name          string   `bun:"name,notnull"`
	SequenceKind  string   `bun:"sequence_kind,notnull"`
	Variants      JSONBMap `bun:"variants,type:jsonb"`
	MinSampleSize int      `bun:"min_sample_size,notnull"`
	Status        string   `bun:"status,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ToDomain maps the row to a domain Campaign.
func (m *CampaignModel) ToDomain() *models.Campaign {
	c := &models.Campaign{
		ID:            m.ID,
		Name:          m.Name,
		SequenceKind:  models.SequenceKind(m.SequenceKind),
		MinSampleSize: m.MinSampleSize,
		Status:        models.CampaignStatus(m.Status),
		CreatedAt:     m.CreatedAt,
	}
	for i, key := range []string{"a", "b"} {
		if i >= len(c.Variants) {
			break
		}
		v, ok := m.Variants.Get(key)
		if !ok {
			continue
		}
		vm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		c.Variants[i] = models.ABVariant{
			Name:      stringOf(vm["name"]),
			Sent:      int(floatOf(vm["sent"])),
			Opened:    int(floatOf(vm["opened"])),
			Responded: int(floatOf(vm["responded"])),
			Converted: int(floatOf(vm["converted"])),
		}
	}
	return c
}

// CampaignModelFromDomain maps a domain Campaign to its row.
func CampaignModelFromDomain(c *models.Campaign) *CampaignModel {
	variants := JSONBMap{}
	keys := []string{"a", "b"}
	for i, v := range c.Variants {
		if i >= len(keys) {
			break
		}
		variants[keys[i]] = map[string]any{
			"name":      v.Name,
			"sent":      v.Sent,
			"opened":    v.Opened,
			"responded": v.Responded,
			"converted": v.Converted,
		}
	}
	return &CampaignModel{
		ID:            c.ID,
		Name:          c.Name,
		SequenceKind:  string(c.SequenceKind),
		Variants:      variants,
		MinSampleSize: c.MinSampleSize,
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt,
	}
}
