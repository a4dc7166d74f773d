package sequencer

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/leadctl/optimizer/internal/domain/repository"
	"github.com/leadctl/optimizer/pkg/models"
)

// stepTemplates holds each kind's per-step message body. Content is a
// placeholder for the real copywriting layer (spec Non-goals §1, §20 —
// script phrasing is out of scope); what matters here is that every
// template references only the closed substitution set named in §4.6.
var stepTemplates = map[models.SequenceKind][]string{
	models.SequenceKindCold: {
		"Hi {{leadName}}, thanks for your interest in {{propertyInterest}} near {{location}}. Happy to answer any questions.",
		"Following up on {{propertyInterest}} in {{location}} — still a good fit for you, {{leadName}}?",
		"Checking back in, {{leadName}} — new listings near {{location}} may match what you're after.",
		"It's been a couple weeks, {{leadName}}. Want a refreshed view on {{propertyInterest}} options in {{location}}?",
		"Last note from {{companyName}} on {{propertyInterest}} in {{location}} — reach out any time, {{leadName}}.",
	},
	models.SequenceKindWarm: {
		"Hi {{leadName}}, great talking with you about {{propertyInterest}} near {{location}}. Here's what I'd suggest next.",
		"Circling back, {{leadName}} — since {{lastInteractionDate}} a few things have opened up near {{location}}.",
		"Ready to take the next step on {{propertyInterest}}, {{leadName}}? {{companyName}} can get you scheduled.",
		"Checking in again, {{leadName}} — still keen on {{propertyInterest}} in {{location}}?",
		"One more note from {{companyName}}: options near {{location}} change fast, {{leadName}}, let's reconnect.",
	},
	models.SequenceKindCampaign: {
		"Hi {{leadName}}, {{companyName}} has new {{propertyInterest}} listings near {{location}} you might like.",
		"Still interested in {{propertyInterest}} near {{location}}, {{leadName}}? Let us know.",
		"Last call from {{companyName}} on {{propertyInterest}} in {{location}}, {{leadName}}.",
		"",
		"",
	},
}

// resolveTemplate returns the message body for a sequence kind's step,
// saturating at the kind's last template when stepIndex runs past the table.
func resolveTemplate(kind models.SequenceKind, stepIndex int) string {
	templates := stepTemplates[kind]
	if len(templates) == 0 {
		return ""
	}
	if stepIndex >= len(templates) {
		stepIndex = len(templates) - 1
	}
	return templates[stepIndex]
}

// substitutionToken matches the closed `{{key}}` substitution set named in
// §4.6: leadName, companyName, lastInteractionDate, propertyInterest,
// location, customFields.*. A flat map keyed by these names (rather than
// text/template's dot-field syntax) is used because customFields.* is a
// caller-defined wildcard, which text/template cannot address without a
// custom FuncMap per key — regexp substitution over a flat map covers the
// same closed set with less machinery (documented in DESIGN.md).
var substitutionToken = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

func personalize(template string, vars map[string]string) string {
	return substitutionToken.ReplaceAllStringFunc(template, func(tok string) string {
		key := strings.TrimSpace(tok[2 : len(tok)-2])
		if v, ok := vars[key]; ok {
			return v
		}
		return ""
	})
}

// buildSubstitutions resolves the closed substitution set for a lead: the
// fixed keys from the lead record plus one customFields.<key> entry per
// custom field, and the lead's most recent interaction timestamp.
func (s *Scheduler) buildSubstitutions(ctx context.Context, lead *models.Lead) map[string]string {
	vars := map[string]string{
		"leadName":         lead.Contact.Name,
		"companyName":      s.companyName,
		"propertyInterest": lead.Qualification.PropertyType,
		"location":         lead.Qualification.Location,
	}
	for k, v := range lead.CustomFields {
		vars["customFields."+k] = v
	}
	vars["lastInteractionDate"] = lastInteractionDate(ctx, s.store, lead.ID)
	return vars
}

func lastInteractionDate(ctx context.Context, store repository.Store, leadID string) string {
	interactions, err := store.QueryInteractions(ctx, repository.InteractionFilter{LeadID: &leadID})
	if err != nil || len(interactions) == 0 {
		return ""
	}
	sort.Slice(interactions, func(i, j int) bool {
		return interactions[i].Timestamp.After(interactions[j].Timestamp)
	})
	return interactions[0].Timestamp.Format("2006-01-02")
}
