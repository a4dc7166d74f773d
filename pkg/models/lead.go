package models

import "time"

// LeadSource identifies where a raw payload originated.
type LeadSource string

const (
	SourceGmail      LeadSource = "gmail"
	SourceMetaAds    LeadSource = "meta_ads"
	SourceWebsite    LeadSource = "website"
	SourceSlack      LeadSource = "slack"
	SourceReferral   LeadSource = "referral"
	SourceThirdParty LeadSource = "third_party"
	SourceOther      LeadSource = "other"
)

// LeadType is a coarse temperature classification assigned at normalization time.
type LeadType string

const (
	LeadTypeHot  LeadType = "hot"
	LeadTypeWarm LeadType = "warm"
	LeadTypeCold LeadType = "cold"
)

// LeadStatus is a node in the status state machine (§4.1).
type LeadStatus string

const (
	StatusNew                 LeadStatus = "new"
	StatusContacted           LeadStatus = "contacted"
	StatusQualified           LeadStatus = "qualified"
	StatusAppointmentSched    LeadStatus = "appointment_scheduled"
	StatusConverted           LeadStatus = "converted"
	StatusDormant             LeadStatus = "dormant"
	StatusLost                LeadStatus = "lost"
)

// Contact holds the channel-addressing fields for a Lead.
type Contact struct {
	Name             string `json:"name"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	PreferredChannel string `json:"preferred_channel,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
}

// Qualification holds the lead-sizing fields produced by normalization and
// refined over the lead's lifetime.
type Qualification struct {
	BudgetMin    float64  `json:"budget_min,omitempty"`
	BudgetMax    float64  `json:"budget_max,omitempty"`
	Location     string   `json:"location,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
	Timeline     string   `json:"timeline,omitempty"`
	Score        float64  `json:"score"`
}

// Lead is the customer record flowing through the pipeline.
type Lead struct {
	ID            string     `json:"id"`
	Source        LeadSource `json:"source"`
	Contact       Contact    `json:"contact"`
	LeadType      LeadType   `json:"lead_type"`
	Urgency       int        `json:"urgency"`
	IntentSignals []string   `json:"intent_signals"`
	Qualification Qualification `json:"qualification"`
	Status        LeadStatus `json:"status"`
	AssignedAgent string     `json:"assigned_agent,omitempty"`
	// CustomFields backs the `customFields.*` branch of the Sequence
	// Scheduler's closed personalization substitution set (§4.6).
	CustomFields  map[string]string `json:"custom_fields,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Validate checks the invariants of §3: urgency range, score range, and the
// email-or-phone requirement for any status past `new`.
func (l *Lead) Validate() error {
	var errs ValidationErrs

	if l.Urgency < 1 || l.Urgency > 10 {
		errs = append(errs, &ValidationErr{Field: "urgency", Message: "must be between 1 and 10"})
	}
	if l.Qualification.Score < 0 || l.Qualification.Score > 1 {
		errs = append(errs, &ValidationErr{Field: "qualification.score", Message: "must be between 0 and 1"})
	}
	if l.Status != StatusNew && l.Contact.Email == "" && l.Contact.Phone == "" {
		errs = append(errs, &ValidationErr{Field: "contact", Message: "email or phone required past status new"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// HasContactChannel reports whether the lead has at least one reachable channel.
func (l *Lead) HasContactChannel() bool {
	return l.Contact.Email != "" || l.Contact.Phone != ""
}
