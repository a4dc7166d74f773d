package sequencer

import (
	"context"
	"math"

	"github.com/leadctl/optimizer/internal/domain/repository"
	"github.com/leadctl/optimizer/pkg/models"
)

// AnalyzeCampaign runs the A/B significance test for a campaign's two
// variants (§4.6.1). It returns nil, nil when either variant has not yet
// reached the campaign's min_sample_size — the caller should treat that as
// "not ready" rather than an error.
func AnalyzeCampaign(ctx context.Context, store repository.Store, campaignID string) (*models.ABResult, error) {
	campaign, err := store.FindCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	a, b := campaign.Variants[0], campaign.Variants[1]
	if a.Sent < campaign.MinSampleSize || b.Sent < campaign.MinSampleSize {
		return nil, nil
	}

	pValue := pooledPValue(a, b)
	result := &models.ABResult{
		PValue:      pValue,
		Significant: pValue < 0.05,
		Winner:      "inconclusive",
	}
	if result.Significant {
		if a.ConversionRate() > b.ConversionRate() {
			result.Winner = a.Name
		} else if b.ConversionRate() > a.ConversionRate() {
			result.Winner = b.Name
		}
	}
	return result, nil
}

// pooledPValue approximates a p-value for the difference in conversion rate
// between two variants via a standard 2x2 contingency chi-square statistic
// against the pooled conversion rate, then p ≈ exp(-chi2/2) (§4.6.1's named
// approximation — chosen over a full chi-square CDF table lookup since the
// spec only fixes the approximation form, not a distribution library;
// documented as an Open Question resolution in DESIGN.md).
func pooledPValue(a, b models.ABVariant) float64 {
	// 2x2 contingency table: converted vs not-converted, per variant.
	aConv, aNot := float64(a.Converted), float64(a.Sent-a.Converted)
	bConv, bNot := float64(b.Converted), float64(b.Sent-b.Converted)
	n := aConv + aNot + bConv + bNot
	if n == 0 {
		return 1
	}

	denom := (aConv + aNot) * (bConv + bNot) * (aConv + bConv) * (aNot + bNot)
	if denom == 0 {
		return 1
	}

	diff := aConv*bNot - aNot*bConv
	chi2 := n * diff * diff / denom

	return math.Exp(-chi2 / 2)
}
