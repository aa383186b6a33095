package trust

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-labs/sentinelx/internal/pagination"
	"github.com/sentinel-labs/sentinelx/internal/validation"
)

// Handler provides HTTP endpoints for trust state.
type Handler struct {
	enforcer *Enforcer
	store    Store
}

// NewHandler creates a new trust handler.
func NewHandler(enforcer *Enforcer, store Store) *Handler {
	return &Handler{enforcer: enforcer, store: store}
}

// RegisterRoutes sets up trust endpoints
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/trust", h.ListStates)
	r.GET("/trust/:identity", h.GetState)
	r.POST("/trust/:identity/evaluate", h.Evaluate)
	r.POST("/trust/check", h.CheckAction)
}

// GetState returns the current trust state for an identity. Unknown
// identities report full trust.
func (h *Handler) GetState(c *gin.Context) {
	identity, ok := identityParam(c)
	if !ok {
		return
	}
	state, err := h.enforcer.State(c.Request.Context(), identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "state_unavailable",
			"message": "Failed to load trust state",
		})
		return
	}
	c.JSON(http.StatusOK, state)
}

// Evaluate forces a recomputation from event history.
func (h *Handler) Evaluate(c *gin.Context) {
	identity, ok := identityParam(c)
	if !ok {
		return
	}
	state, err := h.enforcer.Evaluate(c.Request.Context(), identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "evaluation_failed",
			"message": "Failed to evaluate trust state",
		})
		return
	}
	c.JSON(http.StatusOK, state)
}

// identityParam validates the :identity URL parameter, writing a 400
// response itself when the value is malformed.
func identityParam(c *gin.Context) (string, bool) {
	identity := c.Param("identity")
	if !validation.IsValidIdentity(identity) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_identity",
			"message": "Identity must be a bounded handle or address",
		})
		return "", false
	}
	return identity, true
}

type checkRequest struct {
	Identity string `json:"identity" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

// CheckAction gates an action against the identity's enforcement status.
func (h *Handler) CheckAction(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request must contain 'identity' and 'action'",
		})
		return
	}

	if !validation.IsValidIdentity(req.Identity) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_identity",
			"message": "Identity must be a bounded handle or address",
		})
		return
	}

	switch req.Action {
	case ActionLogin, ActionContentSend, ActionTransfer, ActionRead:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_action",
			"message": "Unknown action: " + req.Action,
		})
		return
	}

	decision, err := h.enforcer.CheckAction(c.Request.Context(), req.Identity, req.Action)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "check_failed",
			"message": "Failed to check action",
		})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// ListStates returns known trust states, most recently evaluated first.
// Supports cursor pagination via ?cursor= and ?limit=.
func (h *Handler) ListStates(c *gin.Context) {
	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "Cursor is not valid",
		})
		return
	}

	states, err := h.store.List(c.Request.Context(), cursor, limit+1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list trust states",
		})
		return
	}

	page, nextCursor, hasMore := pagination.ComputePage(states, limit, func(s *TrustState) (time.Time, string) {
		return s.LastEvaluated, s.Identity
	})
	c.JSON(http.StatusOK, gin.H{
		"states":     page,
		"count":      len(page),
		"nextCursor": nextCursor,
		"hasMore":    hasMore,
	})
}
