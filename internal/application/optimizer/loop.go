package optimizer

import (
	"context"
	"time"

	"github.com/leadctl/optimizer/internal/application/analytics"
	"github.com/leadctl/optimizer/internal/domain/collaborator"
	"github.com/leadctl/optimizer/internal/domain/repository"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	"github.com/leadctl/optimizer/internal/platform/clock"
	"github.com/leadctl/optimizer/internal/platform/retry"
	"github.com/leadctl/optimizer/pkg/models"
)

// OverrideChecker reports whether an operator override currently suspends
// optimization decisions for an agent (§4.9: overrides "suspend or
// redirect Optimization Loop decisions"). Satisfied by controlplane.Plane.
type OverrideChecker interface {
	IsSuspended(agentID string) bool
}

// Loop is the Optimization Loop (§4.7): it synthesizes recommendations each
// cycle, applies them in priority order, and validates/rolls back
// optimizations whose testing window has elapsed. It holds no feedback
// queue; each cycle reads its inputs from the Store and Analytics Engine.
type Loop struct {
	store     repository.Store
	analytics *analytics.Engine
	routing   collaborator.RoutingAgent
	scripts   collaborator.ScriptMutator
	timing    collaborator.TimingMutator
	logger    *logger.Logger
	clk       clock.Clock
	retry     *retry.Policy
	overrides OverrideChecker

	cycleInterval      time.Duration
	minImprovementPct  float64
	testingDaysDefault int
}

// Config configures a Loop.
type Config struct {
	Store              repository.Store
	Analytics          *analytics.Engine
	Routing            collaborator.RoutingAgent
	Scripts            collaborator.ScriptMutator
	Timing             collaborator.TimingMutator
	Logger             *logger.Logger
	Clock              clock.Clock
	Retry              *retry.Policy
	Overrides          OverrideChecker
	CycleInterval      time.Duration
	MinImprovementPct  float64
	TestingDaysDefault int
}

// New builds a Loop, defaulting Clock to clock.Real and Retry to
// retry.Default() (§7: ExternalUnavailable/Timeout recovery).
func New(cfg Config) *Loop {
	c := cfg.Clock
	if c == nil {
		c = clock.Real{}
	}
	r := cfg.Retry
	if r == nil {
		r = retry.Default()
	}
	return &Loop{
		store:              cfg.Store,
		analytics:          cfg.Analytics,
		routing:            cfg.Routing,
		scripts:            cfg.Scripts,
		timing:             cfg.Timing,
		logger:             cfg.Logger,
		clk:                c,
		retry:              r,
		overrides:          cfg.Overrides,
		cycleInterval:      cfg.CycleInterval,
		minImprovementPct:  cfg.MinImprovementPct,
		testingDaysDefault: cfg.TestingDaysDefault,
	}
}

// Run drives the cycle loop until ctx is cancelled: collect, synthesize,
// apply, validate, sleep, repeat (§4.7).
func (l *Loop) Run(ctx context.Context) {
	for {
		l.RunCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-l.clk.After(l.cycleInterval):
		}
	}
}

// RunCycle executes a single optimization cycle. Each phase's failure is
// logged and the cycle continues, per §4.7 step 1's "any sub-collection
// that fails is logged and skipped".
func (l *Loop) RunCycle(ctx context.Context) {
	now := l.clk.Now()

	fb := l.collectFeedback(ctx, now)
	recs := synthesizeRecommendations(fb, now, l.testingDaysDefault)

	for _, rec := range recs {
		if l.overrides != nil && l.overrides.IsSuspended(targetAgent(rec)) {
			l.logger.InfoContext(ctx, "skipping recommendation: agent suspended by operator override", "recommendation_id", rec.ID, "agent_id", targetAgent(rec))
			continue
		}
		if err := l.apply(ctx, rec, now); err != nil {
			l.logger.WarnContext(ctx, "failed to apply optimization recommendation", "recommendation_id", rec.ID, "type", rec.Type, "error", err)
		}
	}

	if err := l.validatePending(ctx, now); err != nil {
		l.logger.WarnContext(ctx, "failed to validate pending optimizations", "error", err)
	}
}

// collectFeedback implements §4.7 step 1. Every sub-collection is
// independent; a failure in one does not prevent the others from
// contributing to the cycle's recommendation synthesis.
func (l *Loop) collectFeedback(ctx context.Context, now time.Time) feedback {
	fb := feedback{metricsByAgent: l.analytics.CurrentMetrics()}

	scripts, err := l.analytics.AnalyzeScriptPerformance(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "feedback collection: script analysis failed", "error", err)
	} else {
		fb.scripts = scripts
	}

	trendWindow := models.Period{Start: now.Add(-30 * 24 * time.Hour), End: now}
	for _, metric := range []string{"conversion_rate", "avg_response_ms", "appointment_booking_rate", "csat"} {
		trend, err := l.analytics.AnalyzeTrend(ctx, metric, trendWindow)
		if err != nil {
			l.logger.WarnContext(ctx, "feedback collection: trend analysis failed", "metric", metric, "error", err)
			continue
		}
		fb.trends = append(fb.trends, *trend)
	}

	return fb
}
