// Package sequencer implements the Outbound Sequence Scheduler (spec §4.6):
// it fires the next step of a lead's contact plan, personalizes the step's
// message template, submits it through the MessageSender collaborator, and
// advances (or terminates) the sequence. Grounded on the teacher's
// CronScheduler/TriggerState interval-trigger path, adapted to a single
// due-sequence poller since sequence count is data-driven and unbounded
// (SPEC_FULL §4.6 Open Question, recorded in DESIGN.md).
package sequencer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leadctl/optimizer/internal/domain/collaborator"
	"github.com/leadctl/optimizer/internal/domain/repository"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	"github.com/leadctl/optimizer/internal/platform/breaker"
	"github.com/leadctl/optimizer/internal/platform/clock"
	"github.com/leadctl/optimizer/pkg/models"
)

// coldDelays is the fixed progressive step-delay table for cold follow-up
// sequences (§4.6): 1, 3, 7, 14, 30 days. Index beyond the table saturates
// at the last entry.
var coldDelays = []time.Duration{
	24 * time.Hour,
	3 * 24 * time.Hour,
	7 * 24 * time.Hour,
	14 * 24 * time.Hour,
	30 * 24 * time.Hour,
}

// warmDelays is reused for both the 3-step and 5-step warm chains (§4.6
// names the progressive cadence but not distinct numbers for warm — the
// same table is used, truncated to whichever length applies; documented as
// a synthesized Open Question resolution in DESIGN.md).
var warmDelays = coldDelays

// stepDelay returns the delay before the given zero-based step index,
// saturating at the table's last entry once the index runs past it.
func stepDelay(table []time.Duration, stepIndex int) time.Duration {
	if stepIndex < 0 {
		stepIndex = 0
	}
	if stepIndex >= len(table) {
		stepIndex = len(table) - 1
	}
	return table[stepIndex]
}

// TotalSteps computes the step count for a new sequence of kind, per §4.6:
// cold is always 5 steps; warm is 3 steps when positiveSentimentFraction
// exceeds 0.6, else 5; campaign sequences reuse the cold table's length
// (spec gives no distinct campaign-cadence rule).
func TotalSteps(kind models.SequenceKind, positiveSentimentFraction, warmThreshold float64) int {
	switch kind {
	case models.SequenceKindWarm:
		if positiveSentimentFraction > warmThreshold {
			return 3
		}
		return 5
	default:
		return len(coldDelays)
	}
}

// delayTableFor selects the progressive-delay table for a sequence kind.
func delayTableFor(kind models.SequenceKind) []time.Duration {
	if kind == models.SequenceKindWarm {
		return warmDelays
	}
	return coldDelays
}

// Scheduler fires due OutboundSequence steps (§4.6). Breakers may be nil —
// Fire then calls the MessageSender directly, ungated.
type Scheduler struct {
	store    repository.Store
	sender   collaborator.MessageSender
	breakers *breaker.Registry
	logger   *logger.Logger
	clk      clock.Clock

	companyName string
}

// Config configures a Scheduler.
type Config struct {
	Store       repository.Store
	Sender      collaborator.MessageSender
	Breakers    *breaker.Registry
	Logger      *logger.Logger
	Clock       clock.Clock
	CompanyName string
}

// New builds a Scheduler, defaulting Clock to clock.Real.
func New(cfg Config) *Scheduler {
	c := cfg.Clock
	if c == nil {
		c = clock.Real{}
	}
	return &Scheduler{
		store:       cfg.Store,
		sender:      cfg.Sender,
		breakers:    cfg.Breakers,
		logger:      cfg.Logger,
		clk:         c,
		companyName: cfg.CompanyName,
	}
}

// NewSequence builds a fresh OutboundSequence ready for its first fire.
func NewSequence(leadID, campaignID string, kind models.SequenceKind, positiveSentimentFraction, warmThreshold float64, now time.Time) *models.OutboundSequence {
	total := TotalSteps(kind, positiveSentimentFraction, warmThreshold)
	next := now.Add(stepDelay(delayTableFor(kind), 0))
	return &models.OutboundSequence{
		ID:         uuid.NewString(),
		LeadID:     leadID,
		CampaignID: campaignID,
		Kind:       kind,
		TotalSteps: total,
		NextFireAt: &next,
		Status:     models.SequenceActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Fire executes one step of seq per §4.6's six-step firing procedure.
func (s *Scheduler) Fire(ctx context.Context, seq *models.OutboundSequence) error {
	now := s.clk.Now()

	if seq.CurrentStep >= seq.TotalSteps {
		seq.Status = models.SequenceCompleted
		seq.NextFireAt = nil
		seq.UpdatedAt = now
		return s.store.UpdateSequence(ctx, seq)
	}

	if s.sender == nil {
		// No MessageSender wired: leave the sequence untouched for a later
		// tick and report the error to the caller instead of panicking.
		return fmt.Errorf("fire sequence %s: no message sender configured", seq.ID)
	}

	lead, err := s.store.GetLead(ctx, seq.LeadID)
	if err != nil {
		return s.fail(ctx, seq, fmt.Errorf("fire sequence: load lead: %w", err))
	}

	template := resolveTemplate(seq.Kind, seq.CurrentStep)
	vars := s.buildSubstitutions(ctx, lead)
	message := personalize(template, vars)

	channel := channelFor(lead.Contact.PreferredChannel)
	destination := destinationFor(lead, channel)

	var result collaborator.SendResult
	sendFn := func(ctx context.Context) error {
		var sendErr error
		result, sendErr = s.sender.Send(ctx, channel, destination, map[string]any{"text": message})
		return sendErr
	}

	resource := "message_sender." + string(channel)
	if s.breakers != nil {
		err = s.breakers.Execute(ctx, resource, sendFn)
	} else {
		err = sendFn(ctx)
	}
	if err != nil {
		return s.fail(ctx, seq, fmt.Errorf("fire sequence: send: %w", err))
	}

	outcomeStatus := models.OutcomeSuccessful
	if !result.Delivered {
		outcomeStatus = models.OutcomeFailed
	}

	interaction := &models.Interaction{
		ID:        uuid.NewString(),
		LeadID:    seq.LeadID,
		AgentID:   lead.AssignedAgent,
		Type:      interactionTypeFor(channel),
		Direction: models.DirectionOutbound,
		Content:   message,
		Outcome:   models.Outcome{Status: outcomeStatus},
		Timestamp: now,
	}
	if err := s.store.AppendInteraction(ctx, interaction, "system:sequencer"); err != nil {
		return s.fail(ctx, seq, fmt.Errorf("fire sequence: append interaction: %w", err))
	}

	seq.InteractionIDs = append(seq.InteractionIDs, interaction.ID)
	seq.CurrentStep++
	seq.UpdatedAt = now

	if seq.CurrentStep >= seq.TotalSteps {
		seq.Status = models.SequenceCompleted
		seq.NextFireAt = nil
	} else {
		next := now.Add(stepDelay(delayTableFor(seq.Kind), seq.CurrentStep))
		seq.NextFireAt = &next
	}

	return s.store.UpdateSequence(ctx, seq)
}

func (s *Scheduler) fail(ctx context.Context, seq *models.OutboundSequence, cause error) error {
	seq.Status = models.SequenceFailed
	seq.NextFireAt = nil
	seq.UpdatedAt = s.clk.Now()
	if err := s.store.UpdateSequence(ctx, seq); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist failed sequence", "sequence_id", seq.ID, "error", err)
	}
	return cause
}

// Pause moves an active sequence to paused (§4.6). Any other transition is
// rejected.
func (s *Scheduler) Pause(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.SequencePaused)
}

// Resume moves a paused sequence back to active, scheduling it to fire on
// the next poller tick.
func (s *Scheduler) Resume(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.SequenceActive)
}

func (s *Scheduler) transition(ctx context.Context, id string, to models.SequenceStatus) error {
	seq, err := s.store.FindSequence(ctx, id)
	if err != nil {
		return err
	}
	if err := models.TransitionSequenceStatus(seq.Status, to); err != nil {
		return err
	}
	seq.Status = to
	if to == models.SequenceActive {
		now := s.clk.Now()
		seq.NextFireAt = &now
	}
	seq.UpdatedAt = s.clk.Now()
	return s.store.UpdateSequence(ctx, seq)
}

func channelFor(preferred string) collaborator.Channel {
	switch preferred {
	case "sms":
		return collaborator.ChannelSMS
	case "whatsapp":
		return collaborator.ChannelWhatsApp
	case "voice":
		return collaborator.ChannelVoice
	default:
		return collaborator.ChannelEmail
	}
}

func interactionTypeFor(channel collaborator.Channel) models.InteractionType {
	switch channel {
	case collaborator.ChannelSMS:
		return models.InteractionSMS
	case collaborator.ChannelWhatsApp:
		return models.InteractionWhatsApp
	case collaborator.ChannelVoice:
		return models.InteractionCall
	default:
		return models.InteractionEmail
	}
}

func destinationFor(lead *models.Lead, channel collaborator.Channel) string {
	if channel == collaborator.ChannelEmail {
		return lead.Contact.Email
	}
	return lead.Contact.Phone
}
