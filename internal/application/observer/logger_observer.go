package observer

import (
	"context"
	"fmt"

	"github.com/leadctl/optimizer/internal/infrastructure/logger"
)

// LoggerObserver logs every domain event through structured logging.
// Grounded on the teacher's own LoggerObserver, with the workflow-execution
// fields it logged (ExecutionID, WorkflowID, NodeID/NodeName/NodeType,
// WaveIndex, NodeCount, DurationMs) replaced by this domain's Event shape.
type LoggerObserver struct {
	name   string
	logger *logger.Logger
	filter EventFilter
}

// LoggerObserverOption configures a LoggerObserver.
type LoggerObserverOption func(*LoggerObserver)

// WithLoggerInstance sets the logger instance.
func WithLoggerInstance(l *logger.Logger) LoggerObserverOption {
	return func(o *LoggerObserver) { o.logger = l }
}

// WithLoggerFilter narrows which event types this observer logs.
func WithLoggerFilter(filter EventFilter) LoggerObserverOption {
	return func(o *LoggerObserver) { o.filter = filter }
}

// NewLoggerObserver creates a LoggerObserver.
func NewLoggerObserver(opts ...LoggerObserverOption) *LoggerObserver {
	obs := &LoggerObserver{name: "logger"}
	for _, opt := range opts {
		opt(obs)
	}
	return obs
}

// Name returns the observer's name.
func (o *LoggerObserver) Name() string { return o.name }

// Filter returns the event filter.
func (o *LoggerObserver) Filter() EventFilter { return o.filter }

// OnEvent logs event at info level, or error level when it carries one.
func (o *LoggerObserver) OnEvent(ctx context.Context, event Event) error {
	if o.logger == nil {
		return nil
	}

	fields := []any{"event_type", string(event.Type), "status", event.Status}

	if event.LeadID != nil {
		fields = append(fields, "lead_id", *event.LeadID)
	}
	if event.SequenceID != nil {
		fields = append(fields, "sequence_id", *event.SequenceID)
	}
	if event.CampaignID != nil {
		fields = append(fields, "campaign_id", *event.CampaignID)
	}
	if event.RecommendationID != nil {
		fields = append(fields, "recommendation_id", *event.RecommendationID)
	}
	if event.AgentID != nil {
		fields = append(fields, "agent_id", *event.AgentID)
	}
	if event.Resource != nil {
		fields = append(fields, "resource", *event.Resource)
	}

	msg := fmt.Sprintf("domain event: %s", event.Type)

	if event.Error != nil {
		fields = append(fields, "error", event.Error.Error())
		o.logger.ErrorContext(ctx, msg, fields...)
	} else {
		o.logger.InfoContext(ctx, msg, fields...)
	}

	return nil
}
