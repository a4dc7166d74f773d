package controlplane

import (
	"context"
	"encoding/json"
	"time"

	"github.com/leadctl/optimizer/internal/application/observer"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	ws "github.com/leadctl/optimizer/internal/infrastructure/websocket"
)

// DashboardMessage is the envelope pushed to every subscribed dashboard
// client, mirroring the teacher's WebSocketMessage/EventPayload split but
// carrying this domain's event fields instead of workflow-execution ones.
type DashboardMessage struct {
	Type      string          `json:"type"`
	Event     *DashboardEvent `json:"event,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// DashboardEvent is the observer.Event projected into wire form.
type DashboardEvent struct {
	EventType        observer.EventType `json:"event_type"`
	LeadID           *string            `json:"lead_id,omitempty"`
	SequenceID       *string            `json:"sequence_id,omitempty"`
	CampaignID       *string            `json:"campaign_id,omitempty"`
	RecommendationID *string            `json:"recommendation_id,omitempty"`
	AgentID          *string            `json:"agent_id,omitempty"`
	Resource         *string            `json:"resource,omitempty"`
	Status           string             `json:"status,omitempty"`
	Message          *string            `json:"message,omitempty"`
}

// WebSocketObserver bridges the observer bus to the dashboard hub: every
// event it receives is marshalled and broadcast, filtered to the agent a
// client subscribed to by internal/infrastructure/websocket.Client itself.
type WebSocketObserver struct {
	hub    *ws.Hub
	logger *logger.Logger
}

// NewWebSocketObserver builds an observer that pushes to hub.
func NewWebSocketObserver(hub *ws.Hub, l *logger.Logger) *WebSocketObserver {
	return &WebSocketObserver{hub: hub, logger: l}
}

// Name identifies the observer on the bus.
func (w *WebSocketObserver) Name() string { return "dashboard_websocket" }

// Filter returns nil: the dashboard wants every event type. Per-client
// narrowing happens in the hub by each Client's agent filter only; the hub's
// broadcasts do not consult a Client's event-type subscriptions.
func (w *WebSocketObserver) Filter() observer.EventFilter { return nil }

// OnEvent implements observer.Observer.
func (w *WebSocketObserver) OnEvent(ctx context.Context, event observer.Event) error {
	msg := DashboardMessage{
		Type:      "event",
		Timestamp: event.Timestamp,
		Event: &DashboardEvent{
			EventType:        event.Type,
			LeadID:           event.LeadID,
			SequenceID:       event.SequenceID,
			CampaignID:       event.CampaignID,
			RecommendationID: event.RecommendationID,
			AgentID:          event.AgentID,
			Resource:         event.Resource,
			Status:           event.Status,
			Message:          event.Message,
		},
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		if w.logger != nil {
			w.logger.ErrorContext(ctx, "dashboard websocket: failed to marshal event", "error", err)
		}
		return nil
	}

	if event.AgentID != nil {
		w.hub.BroadcastToAgent(*event.AgentID, raw)
		return nil
	}
	w.hub.Broadcast(raw)
	return nil
}
