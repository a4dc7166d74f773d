package sequencer

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leadctl/optimizer/internal/domain/repository"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	"github.com/leadctl/optimizer/internal/platform/clock"
)

// TickPoller ticks once per interval, pulling every due sequence from the
// store and firing it (SPEC_FULL §4.6 Open Question: one poller over due
// sequences rather than one cron entry per sequence — a sequence's own
// next_fire_at already carries the schedule, so the poller only needs to ask
// "what's due now"). Grounded on the ingestion poller's single
// cron.ConstantDelaySchedule job.
type TickPoller struct {
	scheduler *Scheduler
	store     repository.Store
	logger    *logger.Logger
	clock     clock.Clock

	cron      *cron.Cron
	interval  time.Duration
	batchSize int
	workers   int
}

// TickPollerConfig configures a TickPoller.
type TickPollerConfig struct {
	Scheduler *Scheduler
	Store     repository.Store
	Logger    *logger.Logger
	Clock     clock.Clock
	Interval  time.Duration
	BatchSize int
	// Workers bounds how many due sequences are fired concurrently per
	// tick. Defaults to 8.
	Workers int
}

// NewTickPoller builds a TickPoller from cfg, defaulting Clock to
// clock.Real and Workers to 8.
func NewTickPoller(cfg TickPollerConfig) *TickPoller {
	c := cfg.Clock
	if c == nil {
		c = clock.Real{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	return &TickPoller{
		scheduler: cfg.Scheduler,
		store:     cfg.Store,
		logger:    cfg.Logger,
		clock:     c,
		cron:      cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		workers:   workers,
	}
}

// Start registers the single tick job and starts the underlying cron runner.
func (p *TickPoller) Start(ctx context.Context) error {
	job := cron.FuncJob(func() {
		tickCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		p.tickOnce(tickCtx)
	})
	p.cron.Schedule(cron.ConstantDelaySchedule{Delay: p.interval}, job)
	p.cron.Start()
	return nil
}

// Stop drains any in-flight tick before returning.
func (p *TickPoller) Stop() {
	stopCtx := p.cron.Stop()
	<-stopCtx.Done()
}

// tickOnce fires every currently due sequence, bounded by p.workers
// concurrent Fire calls.
func (p *TickPoller) tickOnce(ctx context.Context) {
	due, err := p.store.FindDueSequences(ctx, p.clock.Now(), p.batchSize)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to load due sequences", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for _, seq := range due {
		seq := seq
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := p.scheduler.Fire(ctx, seq); err != nil {
				p.logger.WarnContext(ctx, "sequence fire failed", "sequence_id", seq.ID, "error", err)
			}
		}()
	}
	wg.Wait()
}
