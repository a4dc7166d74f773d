package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	ws "github.com/leadctl/optimizer/internal/infrastructure/websocket"
)

// WebSocketHandlers upgrades dashboard connections onto the push hub
// (spec §4.9's live dashboard). Grounded on the teacher's missing-from-pack
// websocket_handler.go, reconstructed from websocket_observer_test.go's
// implied client lifecycle: upgrade, register, spawn read/write pumps.
type WebSocketHandlers struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewWebSocketHandlers builds a WebSocketHandlers bound to hub.
func NewWebSocketHandlers(hub *ws.Hub, log *logger.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// HandleDashboard handles GET /ws/dashboard, optionally scoped to one
// agent's events via the agent_id query parameter.
func (h *WebSocketHandlers) HandleDashboard(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.WarnContext(c.Request.Context(), "websocket upgrade failed", "error", err)
		}
		return
	}

	client := ws.NewClient(uuid.NewString(), conn, h.hub, c.Query("agent_id"))
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump()
}
