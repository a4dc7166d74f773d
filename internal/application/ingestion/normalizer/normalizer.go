// Package normalizer implements the Normalizer contract (spec §4.2):
// normalize(raw_payload, source) -> NormalizedLead | NormalizationError.
package normalizer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/leadctl/optimizer/pkg/models"
)

// RawPayload is the source-specific inbound record handed to Normalize by a
// poller or webhook handler. Fields is an opaque accessor bag; each per-source
// normalizer reads only the keys its source actually produces.
type RawPayload struct {
	Source models.LeadSource
	Fields map[string]any
	Body   string // free-text body used for keyword/phone/budget extraction
}

func (p RawPayload) str(key string) string {
	v, ok := p.Fields[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// NormalizationError reports why a raw payload could not be turned into a Lead.
type NormalizationError struct {
	Source models.LeadSource
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %s", e.Source, e.Reason)
}

var phoneRe = regexp.MustCompile(`(\+?1?[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)

// Normalize dispatches on source to produce a Lead ready for dedup-check
// (spec §4.2's per-source rules). The returned Lead is always status `new`.
func Normalize(now time.Time, p RawPayload) (*models.Lead, error) {
	var lead *models.Lead
	var err error

	switch p.Source {
	case models.SourceGmail:
		lead, err = normalizeGmail(p)
	case models.SourceMetaAds:
		lead, err = normalizeMeta(p)
	case models.SourceWebsite:
		lead, err = normalizeWebsite(p)
	case models.SourceSlack, models.SourceReferral:
		lead, err = normalizeSlackReferral(p)
	case models.SourceThirdParty, models.SourceOther:
		lead, err = normalizeThirdParty(p)
	default:
		return nil, &NormalizationError{Source: p.Source, Reason: "unrecognized source"}
	}
	if err != nil {
		return nil, err
	}

	lead.Source = p.Source
	lead.Status = models.StatusNew
	lead.CreatedAt = now
	lead.UpdatedAt = now
	lead.IntentSignals = extractIntentSignals(p.Body)

	budgetMin, budgetMax, ok := parseBudget(p.Body)
	if ok {
		lead.Qualification.BudgetMin = budgetMin
		lead.Qualification.BudgetMax = budgetMax
	}
	if tl := parseTimeline(p.Body); tl != "" {
		lead.Qualification.Timeline = tl
	}

	if err := lead.Validate(); err != nil {
		return nil, &NormalizationError{Source: p.Source, Reason: err.Error()}
	}
	return lead, nil
}

func normalizeGmail(p RawPayload) (*models.Lead, error) {
	name := p.str("from_name")
	if name == "" {
		if from := p.str("from_email"); from != "" {
			if at := strings.Index(from, "@"); at > 0 {
				name = from[:at]
			} else {
				name = from
			}
		}
	}
	if name == "" {
		return nil, &NormalizationError{Source: p.Source, Reason: "missing sender identity"}
	}

	phone := phoneRe.FindString(p.Body)

	return &models.Lead{
		Contact: models.Contact{
			Name:             name,
			Email:            p.str("from_email"),
			Phone:            phone,
			PreferredChannel: "email",
		},
		LeadType: models.LeadTypeWarm,
		Urgency:  classifyUrgency(p.Body),
	}, nil
}

func normalizeMeta(p RawPayload) (*models.Lead, error) {
	name := firstNonEmpty(p.str("full_name"), strings.TrimSpace(p.str("first_name")+" "+p.str("last_name")))
	if name == "" {
		return nil, &NormalizationError{Source: p.Source, Reason: "missing full_name"}
	}

	return &models.Lead{
		Contact: models.Contact{
			Name:  name,
			Email: p.str("email"),
			Phone: p.str("phone"),
		},
		LeadType: models.LeadTypeWarm,
		Urgency:  5,
	}, nil
}

func normalizeWebsite(p RawPayload) (*models.Lead, error) {
	name := p.str("name")
	if name == "" {
		return nil, &NormalizationError{Source: p.Source, Reason: "missing name"}
	}

	urgency := 6
	switch p.str("form_type") {
	case "contact":
		urgency = 8
	case "quote":
		urgency = 9
	}

	return &models.Lead{
		Contact: models.Contact{
			Name:  name,
			Email: p.str("email"),
			Phone: p.str("phone"),
		},
		LeadType: models.LeadTypeHot,
		Urgency:  urgency,
	}, nil
}

func normalizeSlackReferral(p RawPayload) (*models.Lead, error) {
	name := p.str("name")
	if name == "" {
		return nil, &NormalizationError{Source: p.Source, Reason: "missing name"}
	}

	return &models.Lead{
		Contact: models.Contact{
			Name:  name,
			Email: p.str("email"),
			Phone: p.str("phone"),
		},
		LeadType: models.LeadTypeWarm,
		Urgency:  4,
	}, nil
}

func normalizeThirdParty(p RawPayload) (*models.Lead, error) {
	name := firstNonEmpty(p.str("name"), "Unknown")

	return &models.Lead{
		Contact: models.Contact{
			Name:  name,
			Email: p.str("email"),
			Phone: p.str("phone"),
		},
		LeadType: models.LeadTypeCold,
		Urgency:  2,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
