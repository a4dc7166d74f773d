package controlplane

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadctl/optimizer/internal/application/observer"
	ws "github.com/leadctl/optimizer/internal/infrastructure/websocket"
)

func TestWebSocketObserver_AgentEventAcceptedAndIdentityReported(t *testing.T) {
	hub := ws.NewHub(nil)
	obs := NewWebSocketObserver(hub, nil)

	agentID := "agent-1"
	leadID := "lead-9"
	err := obs.OnEvent(context.Background(), observer.Event{
		Type:      observer.EventTypeLeadIngested,
		Timestamp: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		AgentID:   &agentID,
		LeadID:    &leadID,
		Status:    "new",
	})
	require.NoError(t, err)
	assert.Equal(t, "dashboard_websocket", obs.Name())
	assert.Nil(t, obs.Filter())
}

func TestWebSocketObserver_MarshalsExpectedEnvelope(t *testing.T) {
	hub := ws.NewHub(nil)
	obs := NewWebSocketObserver(hub, nil)

	leadID := "lead-1"
	raw, err := json.Marshal(DashboardMessage{
		Type:      "event",
		Timestamp: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Event: &DashboardEvent{
			EventType: observer.EventTypeLeadIngested,
			LeadID:    &leadID,
			Status:    "new",
		},
	})
	require.NoError(t, err)

	var decoded DashboardMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "event", decoded.Type)
	assert.Equal(t, observer.EventTypeLeadIngested, decoded.Event.EventType)
	_ = obs
}
