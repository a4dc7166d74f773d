// Package controlplane implements the Control Plane (spec §4.9): the
// human-facing surface onto an otherwise autonomous system. It keeps the
// agent registry, manages strategic Directive and operator Override
// lifecycles, and composes the read-only dashboard snapshot other
// components' state feeds into. Grounded on the teacher's
// execution_manager.go leaf-output-merge pattern for snapshot composition:
// the same "gather every subsystem's current view, merge, return" shape,
// applied to agents/directives/overrides/alerts/metrics instead of
// per-node execution results.
package controlplane

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadctl/optimizer/internal/application/analytics"
	"github.com/leadctl/optimizer/internal/application/errormonitor"
	"github.com/leadctl/optimizer/internal/application/observer"
	"github.com/leadctl/optimizer/internal/domain/repository"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	"github.com/leadctl/optimizer/internal/platform/clock"
	"github.com/leadctl/optimizer/pkg/models"
)

// Plane is the Control Plane. It is safe for concurrent use.
type Plane struct {
	store     repository.Store
	analytics *analytics.Engine
	monitor   *errormonitor.Monitor
	observers *observer.ObserverManager
	logger    *logger.Logger
	clk       clock.Clock
	startedAt time.Time

	mu         sync.RWMutex
	agents     map[string]models.AgentInfo
	directives map[string]*models.Directive
	overrides  map[string]*models.Override
}

// Config configures a Plane.
type Config struct {
	Store     repository.Store
	Analytics *analytics.Engine
	Monitor   *errormonitor.Monitor
	Observers *observer.ObserverManager
	Logger    *logger.Logger
	Clock     clock.Clock
}

// New builds a Plane. startedAt is recorded at construction time for the
// dashboard snapshot's uptime field.
func New(cfg Config) *Plane {
	c := cfg.Clock
	if c == nil {
		c = clock.Real{}
	}
	return &Plane{
		store:      cfg.Store,
		analytics:  cfg.Analytics,
		monitor:    cfg.Monitor,
		observers:  cfg.Observers,
		logger:     cfg.Logger,
		clk:        c,
		startedAt:  c.Now(),
		agents:     make(map[string]models.AgentInfo),
		directives: make(map[string]*models.Directive),
		overrides:  make(map[string]*models.Override),
	}
}

// RegisterAgent adds or replaces an entry in the agent registry (§4.9).
func (p *Plane) RegisterAgent(id, name, channel string) models.AgentInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := models.AgentInfo{ID: id, Name: name, Channel: channel, RegisteredAt: p.clk.Now()}
	p.agents[id] = info
	return info
}

// Agents returns every registered agent.
func (p *Plane) Agents() []models.AgentInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.AgentInfo, 0, len(p.agents))
	for _, a := range p.agents {
		out = append(out, a)
	}
	return out
}

// IssueDirective creates a new Directive in its draft state (§4.9).
func (p *Plane) IssueDirective(targetAgentID string, priority models.Priority, description string) *models.Directive {
	now := p.clk.Now()
	d := &models.Directive{
		ID:            uuid.NewString(),
		TargetAgentID: targetAgentID,
		Priority:      priority,
		Description:   description,
		Status:        models.DirectiveDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.mu.Lock()
	p.directives[d.ID] = d
	p.mu.Unlock()
	return d
}

// ActivateDirective transitions id from draft to active and publishes
// directive.issued so the dashboard hub and any other observer sees it.
func (p *Plane) ActivateDirective(ctx context.Context, id string) (*models.Directive, error) {
	p.mu.Lock()
	d, ok := p.directives[id]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("directive %s: not found", id)
	}
	if err := models.TransitionDirectiveStatus(d, models.DirectiveActive, p.clk.Now()); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	cp := *d
	p.mu.Unlock()

	p.publish(ctx, observer.EventTypeDirectiveIssued, &cp.TargetAgentID, map[string]any{"directive_id": cp.ID, "priority": cp.Priority})
	return &cp, nil
}

// CompleteDirective transitions id from active to completed.
func (p *Plane) CompleteDirective(id string) error {
	return p.transitionDirective(id, models.DirectiveCompleted)
}

// CancelDirective transitions id to cancelled from draft or active.
func (p *Plane) CancelDirective(id string) error {
	return p.transitionDirective(id, models.DirectiveCancelled)
}

func (p *Plane) transitionDirective(id string, to models.DirectiveStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.directives[id]
	if !ok {
		return fmt.Errorf("directive %s: not found", id)
	}
	return models.TransitionDirectiveStatus(d, to, p.clk.Now())
}

// ActiveDirectives returns every directive currently in the active state.
func (p *Plane) ActiveDirectives() []models.Directive {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []models.Directive
	for _, d := range p.directives {
		if d.Status == models.DirectiveActive {
			out = append(out, *d)
		}
	}
	return out
}

// ApplyOverride records a new operator Override and publishes
// override.applied (§4.9: "typed, timestamped, reversible").
func (p *Plane) ApplyOverride(ctx context.Context, agentID string, typ models.OverrideType, parameters map[string]any, reason, appliedBy string) *models.Override {
	o := &models.Override{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		Type:       typ,
		Parameters: parameters,
		Reason:     reason,
		AppliedAt:  p.clk.Now(),
		AppliedBy:  appliedBy,
	}
	p.mu.Lock()
	p.overrides[o.ID] = o
	p.mu.Unlock()

	p.publish(ctx, observer.EventTypeOverrideApplied, &agentID, map[string]any{"override_id": o.ID, "type": string(typ), "reason": reason})
	return o
}

// RevertOverride marks an Override reverted. Reverting an already-reverted
// override is a no-op.
func (p *Plane) RevertOverride(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.overrides[id]
	if !ok {
		return fmt.Errorf("override %s: not found", id)
	}
	if o.RevertedAt != nil {
		return nil
	}
	now := p.clk.Now()
	o.RevertedAt = &now
	return nil
}

// IsSuspended implements optimizer.OverrideChecker: agentID is suspended
// while it carries an active suspend-type override.
func (p *Plane) IsSuspended(agentID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, o := range p.overrides {
		if o.AgentID == agentID && o.Type == models.OverrideSuspend && o.Active() {
			return true
		}
	}
	return false
}

// ActiveOverrides returns every override not yet reverted.
func (p *Plane) ActiveOverrides() []models.Override {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []models.Override
	for _, o := range p.overrides {
		if o.Active() {
			out = append(out, *o)
		}
	}
	return out
}

// Snapshot composes the read-only dashboard view (§4.9): current metrics,
// active optimizations, recent alerts, and uptime, merged from whichever
// subsystems own each piece.
func (p *Plane) Snapshot(ctx context.Context, now time.Time) (*models.DashboardSnapshot, error) {
	snap := &models.DashboardSnapshot{
		GeneratedAt:      now,
		Uptime:           now.Sub(p.startedAt),
		ActiveDirectives: p.ActiveDirectives(),
		ActiveOverrides:  p.ActiveOverrides(),
	}

	if p.analytics != nil {
		snap.Metrics = p.analytics.CurrentMetrics()
	}

	if p.monitor != nil {
		snap.SystemStatus = p.monitor.SystemStatus(now)
		snap.RecentAlerts = p.monitor.RecentAlerts()
	}

	if p.store != nil {
		pending, err := p.store.FindPendingResults(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshot: load pending optimizations: %w", err)
		}
		snap.ActiveOptimizations = make([]models.OptimizationResult, 0, len(pending))
		for _, r := range pending {
			snap.ActiveOptimizations = append(snap.ActiveOptimizations, *r)
		}
	}

	return snap, nil
}

// publish notifies the observer bus, tolerating a nil manager (e.g. in
// tests that construct a Plane without one).
func (p *Plane) publish(ctx context.Context, eventType observer.EventType, agentID *string, data map[string]any) {
	if p.observers == nil {
		return
	}
	p.observers.Notify(ctx, observer.Event{
		Type:      eventType,
		Timestamp: p.clk.Now(),
		AgentID:   agentID,
		Data:      data,
	})
}
