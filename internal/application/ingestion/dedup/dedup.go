// Package dedup implements the Deduplicator contract (spec §4.3):
// check(normalized) -> {is_duplicate, existing_id?, confidence, matching_fields[]};
// merge(existing_id, normalized) -> ().
package dedup

import (
	"context"
	"strings"
	"time"

	"github.com/leadctl/optimizer/internal/domain/repository"
	"github.com/leadctl/optimizer/pkg/models"
)

const duplicateThreshold = 0.7

// CheckResult is the outcome of a duplicate check against the Store.
type CheckResult struct {
	IsDuplicate    bool
	ExistingID     string
	Confidence     float64
	MatchingFields []string
}

// Deduplicator checks incoming leads against the Store's recent population
// and merges duplicates in place (spec §4.3, §4.3.3).
type Deduplicator struct {
	store repository.LeadRepository
}

func New(store repository.LeadRepository) *Deduplicator {
	return &Deduplicator{store: store}
}

// Check scores candidate against every lead from the same window the Store
// returns and declares a duplicate at the first candidate scoring >= 0.7.
func (d *Deduplicator) Check(ctx context.Context, candidate *models.Lead) (CheckResult, error) {
	existing, err := d.store.QueryLeads(ctx, repository.LeadFilter{Limit: 500})
	if err != nil {
		return CheckResult{}, err
	}

	for _, other := range existing {
		score, fields := matchScore(candidate, other)
		if score >= duplicateThreshold {
			return CheckResult{IsDuplicate: true, ExistingID: other.ID, Confidence: score, MatchingFields: fields}, nil
		}
	}
	return CheckResult{}, nil
}

// Merge applies the field-by-field merge policy (§4.3.3) to existingID using
// the freshly normalized candidate. It writes no audit row; auditing the
// merge is left to the caller.
func (d *Deduplicator) Merge(ctx context.Context, existingID string, candidate *models.Lead, auditActor string) error {
	existing, err := d.store.GetLead(ctx, existingID)
	if err != nil {
		return err
	}

	before := *existing
	merged := mergeLead(existing, candidate)

	if err := d.store.UpsertLead(ctx, merged); err != nil {
		return err
	}
	_ = before // change diff is computed by the caller's audit wrapper (C4 pipeline owns AuditRepository access)
	return nil
}

// mergeLead applies the §4.3.3 rules and returns the mutated existing record.
func mergeLead(existing, incoming *models.Lead) *models.Lead {
	if incoming.Contact.Name != "" && incoming.Contact.Name != "Unknown" {
		existing.Contact.Name = incoming.Contact.Name
	}
	if incoming.Contact.Email != "" {
		existing.Contact.Email = incoming.Contact.Email
	}
	if incoming.Contact.Phone != "" {
		existing.Contact.Phone = incoming.Contact.Phone
	}
	if incoming.Qualification.Location != "" {
		existing.Qualification.Location = incoming.Qualification.Location
	}
	if incoming.Qualification.PropertyType != "" {
		existing.Qualification.PropertyType = incoming.Qualification.PropertyType
	}
	if incoming.Qualification.Timeline != "" {
		existing.Qualification.Timeline = incoming.Qualification.Timeline
	}
	if incoming.Contact.PreferredChannel != "" {
		existing.Contact.PreferredChannel = incoming.Contact.PreferredChannel
	}
	if incoming.Contact.Timezone != "" {
		existing.Contact.Timezone = incoming.Contact.Timezone
	}

	if incoming.Urgency > existing.Urgency {
		existing.Urgency = incoming.Urgency
	}
	if incoming.Qualification.Score > existing.Qualification.Score {
		existing.Qualification.Score = incoming.Qualification.Score
	}

	existing.IntentSignals = unionTags(existing.IntentSignals, incoming.IntentSignals)
	return existing
}

func unionTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, tags := range [][]string{a, b} {
		for _, t := range tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// matchScore computes the additive match score between two leads (§4.3.1).
func matchScore(a, b *models.Lead) (float64, []string) {
	var score float64
	var fields []string

	if a.Contact.Email != "" && strings.EqualFold(a.Contact.Email, b.Contact.Email) {
		score += 0.50
		fields = append(fields, "email")
	}
	if lastTenDigits(a.Contact.Phone) != "" && lastTenDigits(a.Contact.Phone) == lastTenDigits(b.Contact.Phone) {
		score += 0.40
		fields = append(fields, "phone")
	}
	if sim := nameSimilarity(a.Contact.Name, b.Contact.Name); sim > 0.8 {
		score += 0.30 * sim
		fields = append(fields, "name")
	}
	if a.Source != "" && a.Source == b.Source {
		score += 0.10
		fields = append(fields, "source")
	}
	if a.Qualification.Location != "" && strings.EqualFold(a.Qualification.Location, b.Qualification.Location) {
		score += 0.10
		fields = append(fields, "location")
	}
	if !a.CreatedAt.IsZero() && !b.CreatedAt.IsZero() {
		delta := a.CreatedAt.Sub(b.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= 24*time.Hour {
			score += 0.10
			fields = append(fields, "created_within_1_day")
		} else if delta <= 7*24*time.Hour {
			score += 0.05
			fields = append(fields, "created_within_1_week")
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, fields
}

func lastTenDigits(phone string) string {
	var digits []byte
	for i := len(phone) - 1; i >= 0 && len(digits) < 10; i-- {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append([]byte{phone[i]}, digits...)
		}
	}
	if len(digits) < 10 {
		return ""
	}
	return string(digits)
}

// nameSimilarity implements §4.3.2's ratio.
func nameSimilarity(a, b string) float64 {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}

	tokensA, tokensB := strings.Fields(a), strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	common := 0
	used := make([]bool, len(tokensB))
	for _, ta := range tokensA {
		for i, tb := range tokensB {
			if used[i] {
				continue
			}
			if strings.Contains(ta, tb) || strings.Contains(tb, ta) {
				common++
				used[i] = true
				break
			}
		}
	}

	maxLen := len(tokensA)
	if len(tokensB) > maxLen {
		maxLen = len(tokensB)
	}
	return float64(common) / float64(maxLen)
}
