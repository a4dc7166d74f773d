package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leadctl/optimizer/internal/application/controlplane"
	"github.com/leadctl/optimizer/pkg/models"
)

// ControlPlaneHandlers exposes the Control Plane's registry, directive,
// override, and dashboard-snapshot operations (spec §4.9).
type ControlPlaneHandlers struct {
	plane *controlplane.Plane
}

// NewControlPlaneHandlers builds a ControlPlaneHandlers.
func NewControlPlaneHandlers(plane *controlplane.Plane) *ControlPlaneHandlers {
	return &ControlPlaneHandlers{plane: plane}
}

// HandleDashboard handles GET /control-plane/dashboard.
func (h *ControlPlaneHandlers) HandleDashboard(c *gin.Context) {
	snap, err := h.plane.Snapshot(c.Request.Context(), time.Now())
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, snap)
}

// HandleListAgents handles GET /control-plane/agents.
func (h *ControlPlaneHandlers) HandleListAgents(c *gin.Context) {
	respondJSON(c, http.StatusOK, h.plane.Agents())
}

// HandleRegisterAgent handles POST /control-plane/agents.
func (h *ControlPlaneHandlers) HandleRegisterAgent(c *gin.Context) {
	var req struct {
		ID      string `json:"id" binding:"required"`
		Name    string `json:"name" binding:"required"`
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(c, http.StatusCreated, h.plane.RegisterAgent(req.ID, req.Name, req.Channel))
}

// HandleIssueDirective handles POST /control-plane/directives.
func (h *ControlPlaneHandlers) HandleIssueDirective(c *gin.Context) {
	var req struct {
		TargetAgentID string          `json:"target_agent_id" binding:"required"`
		Priority      models.Priority `json:"priority" binding:"required"`
		Description   string          `json:"description" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(c, http.StatusCreated, h.plane.IssueDirective(req.TargetAgentID, req.Priority, req.Description))
}

// HandleActivateDirective handles POST /control-plane/directives/:id/activate.
func (h *ControlPlaneHandlers) HandleActivateDirective(c *gin.Context) {
	d, err := h.plane.ActivateDirective(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, d)
}

// HandleCompleteDirective handles POST /control-plane/directives/:id/complete.
func (h *ControlPlaneHandlers) HandleCompleteDirective(c *gin.Context) {
	if err := h.plane.CompleteDirective(c.Param("id")); err != nil {
		respondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleCancelDirective handles POST /control-plane/directives/:id/cancel.
func (h *ControlPlaneHandlers) HandleCancelDirective(c *gin.Context) {
	if err := h.plane.CancelDirective(c.Param("id")); err != nil {
		respondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleApplyOverride handles POST /control-plane/overrides.
func (h *ControlPlaneHandlers) HandleApplyOverride(c *gin.Context) {
	var req struct {
		AgentID    string               `json:"agent_id" binding:"required"`
		Type       models.OverrideType  `json:"type" binding:"required"`
		Parameters map[string]any       `json:"parameters"`
		Reason     string               `json:"reason" binding:"required"`
		AppliedBy  string               `json:"applied_by" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	override := h.plane.ApplyOverride(c.Request.Context(), req.AgentID, req.Type, req.Parameters, req.Reason, req.AppliedBy)
	respondJSON(c, http.StatusCreated, override)
}

// HandleRevertOverride handles POST /control-plane/overrides/:id/revert.
func (h *ControlPlaneHandlers) HandleRevertOverride(c *gin.Context) {
	if err := h.plane.RevertOverride(c.Param("id")); err != nil {
		respondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleListOverrides handles GET /control-plane/overrides.
func (h *ControlPlaneHandlers) HandleListOverrides(c *gin.Context) {
	respondJSON(c, http.StatusOK, h.plane.ActiveOverrides())
}
