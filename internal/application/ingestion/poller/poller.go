// Package poller drives the Gmail/Meta polling sources described in spec
// §4.4.1: one goroutine per source, ticking on a configurable interval,
// fetching since a persisted watermark, and feeding raw leads to the
// Ingestion Pipeline. Grounded on the teacher's CronScheduler (interval
// trigger path, one cron.FuncJob per entry) and TriggerState (watermark
// persisted to Redis the same way the teacher persists NextExecution).
package poller

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leadctl/optimizer/internal/application/ingestion"
	"github.com/leadctl/optimizer/internal/application/ingestion/normalizer"
	"github.com/leadctl/optimizer/internal/domain/collaborator"
	"github.com/leadctl/optimizer/internal/infrastructure/cache"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	"github.com/leadctl/optimizer/internal/platform/breaker"
	"github.com/leadctl/optimizer/internal/platform/clock"
	"github.com/leadctl/optimizer/pkg/models"
)

// Source pairs a lead source tag with its fetch collaborator.
type Source struct {
	Tag     models.LeadSource
	Fetcher collaborator.SourceFetcher
}

// Poller ticks every registered Source on a shared interval, each source
// gated by its own named circuit breaker ("gmail.poll", "meta_ads.poll").
type Poller struct {
	pipeline *ingestion.Pipeline
	cache    *cache.RedisCache
	breakers *breaker.Registry
	logger   *logger.Logger
	clock    clock.Clock

	sources  []Source
	cron     *cron.Cron
	interval time.Duration

	// firstRunLookback bounds the window on the very first poll of a
	// source, before any watermark has been persisted (§4.4.1: "last 60
	// min on first run").
	firstRunLookback time.Duration
}

// Config configures a Poller.
type Config struct {
	Pipeline *ingestion.Pipeline
	Cache    *cache.RedisCache
	Breakers *breaker.Registry
	Logger   *logger.Logger
	Clock    clock.Clock
	Interval time.Duration
	Sources  []Source
}

// New builds a Poller from cfg, defaulting Clock to clock.Real and
// firstRunLookback to 60 minutes per §4.4.1.
func New(cfg Config) *Poller {
	c := cfg.Clock
	if c == nil {
		c = clock.Real{}
	}
	return &Poller{
		pipeline:         cfg.Pipeline,
		cache:            cfg.Cache,
		breakers:         cfg.Breakers,
		logger:           cfg.Logger,
		clock:            c,
		sources:          cfg.Sources,
		cron:             cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		interval:         cfg.Interval,
		firstRunLookback: 60 * time.Minute,
	}
}

// Start registers one ConstantDelaySchedule entry per source and starts the
// underlying cron runner.
func (p *Poller) Start(ctx context.Context) error {
	for _, src := range p.sources {
		src := src
		job := cron.FuncJob(func() {
			pollCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			p.pollOnce(pollCtx, src)
		})
		p.cron.Schedule(cron.ConstantDelaySchedule{Delay: p.interval}, job)
	}
	p.cron.Start()
	return nil
}

// Stop drains in-flight poll jobs before returning.
func (p *Poller) Stop() {
	stopCtx := p.cron.Stop()
	<-stopCtx.Done()
}

func (p *Poller) watermarkKey(tag models.LeadSource) string {
	return "poller:" + string(tag) + ":watermark"
}

func (p *Poller) loadWatermark(ctx context.Context, tag models.LeadSource) time.Time {
	raw, err := p.cache.Get(ctx, p.watermarkKey(tag))
	if err != nil || raw == "" {
		return p.clock.Now().Add(-p.firstRunLookback)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return p.clock.Now().Add(-p.firstRunLookback)
	}
	return t
}

func (p *Poller) saveWatermark(ctx context.Context, tag models.LeadSource, t time.Time) {
	if err := p.cache.Set(ctx, p.watermarkKey(tag), t.Format(time.RFC3339Nano), 0); err != nil {
		p.logger.WarnContext(ctx, "failed to persist poller watermark", "source", string(tag), "error", err)
	}
}

func (p *Poller) resourceName(tag models.LeadSource) string {
	return string(tag) + ".poll"
}

// pollOnce fetches since the source's watermark, hands every message to the
// pipeline, and advances the watermark only on a successful fetch. A
// breaker-suspended source is skipped entirely (§4.4.1: "polling suspends
// itself on repeated failures via the circuit breaker for that source").
func (p *Poller) pollOnce(ctx context.Context, src Source) {
	since := p.loadWatermark(ctx, src.Tag)

	var messages []collaborator.RawMessage
	var next time.Time

	err := p.breakers.Execute(ctx, p.resourceName(src.Tag), func(ctx context.Context) error {
		var fetchErr error
		messages, next, fetchErr = src.Fetcher.FetchSince(ctx, since)
		return fetchErr
	})
	if err != nil {
		p.logger.WarnContext(ctx, "poll failed", "source", string(src.Tag), "error", err)
		return
	}

	payloads := make([]normalizer.RawPayload, len(messages))
	for i, m := range messages {
		payloads[i] = normalizer.RawPayload{Source: src.Tag, Fields: m.Fields, Body: m.Body}
	}

	results := p.pipeline.ProcessBatch(ctx, payloads)
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		p.logger.WarnContext(ctx, "poll batch had failures", "source", string(src.Tag), "failed", failed, "total", len(results))
	}

	p.saveWatermark(ctx, src.Tag, next)
}
