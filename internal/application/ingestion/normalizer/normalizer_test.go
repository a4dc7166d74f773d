package normalizer

import (
	"testing"
	"time"

	"github.com/leadctl/optimizer/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Gmail_NameFallsBackToEmailLocalPart(t *testing.T) {
	lead, err := Normalize(time.Now(), RawPayload{
		Source: models.SourceGmail,
		Fields: map[string]any{"from_email": "jane.doe@example.com"},
		Body:   "I need a house asap, budget around $450,000",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", lead.Contact.Name)
	assert.Equal(t, "email", lead.Contact.PreferredChannel)
	assert.Equal(t, 9, lead.Urgency) // "asap" ranks 1
	assert.Equal(t, models.SourceGmail, lead.Source)
	assert.Equal(t, models.StatusNew, lead.Status)
	assert.InDelta(t, 360000, lead.Qualification.BudgetMin, 1)
	assert.InDelta(t, 540000, lead.Qualification.BudgetMax, 1)
}

func TestNormalize_Gmail_MissingIdentityFails(t *testing.T) {
	_, err := Normalize(time.Now(), RawPayload{Source: models.SourceGmail, Fields: map[string]any{}})
	assert.Error(t, err)
}

func TestNormalize_Website_FormTypeDrivesUrgency(t *testing.T) {
	lead, err := Normalize(time.Now(), RawPayload{
		Source: models.SourceWebsite,
		Fields: map[string]any{"name": "Sam Lee", "form_type": "quote", "email": "sam@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 9, lead.Urgency)
	assert.Equal(t, models.LeadTypeHot, lead.LeadType)
}

func TestNormalize_Meta_UsesFixedUrgency(t *testing.T) {
	lead, err := Normalize(time.Now(), RawPayload{
		Source: models.SourceMetaAds,
		Fields: map[string]any{"full_name": "Pat River", "phone": "5551234567"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, lead.Urgency)
	assert.Equal(t, models.LeadTypeWarm, lead.LeadType)
}

func TestNormalize_ThirdParty_DefaultsToCold(t *testing.T) {
	lead, err := Normalize(time.Now(), RawPayload{Source: models.SourceThirdParty, Fields: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, "Unknown", lead.Contact.Name)
	assert.Equal(t, models.LeadTypeCold, lead.LeadType)
	assert.Equal(t, 2, lead.Urgency)
}

func TestClassifyUrgency_RankOrder(t *testing.T) {
	assert.Equal(t, 9, classifyUrgency("I need this done immediately"))
	assert.Equal(t, 7, classifyUrgency("Hoping to move this week"))
	assert.Equal(t, 5, classifyUrgency("Just interested in learning more"))
	assert.Equal(t, 3, classifyUrgency("Hello there"))
}

func TestExtractIntentSignals_AdditiveMembership(t *testing.T) {
	tags := extractIntentSignals("Looking to buy a house, need financing and want to speak to an agent")
	assert.Contains(t, tags, "buying_intent")
	assert.Contains(t, tags, "financing_need")
	assert.Contains(t, tags, "agent_request")
	assert.NotContains(t, tags, "selling_intent")
}

func TestParseBudget_Range(t *testing.T) {
	min, max, ok := parseBudget("budget is $300,000 - $400,000")
	require.True(t, ok)
	assert.InDelta(t, 300000, min, 1)
	assert.InDelta(t, 400000, max, 1)
}

func TestParseTimeline_KeywordBucket(t *testing.T) {
	assert.Equal(t, "immediate", parseTimeline("need this ASAP"))
	assert.Equal(t, "1 year", parseTimeline("within a year"))
	assert.Equal(t, "", parseTimeline("no timeline mentioned"))
}
