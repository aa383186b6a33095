package loginrisk

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-labs/sentinelx/internal/audit"
	"github.com/sentinel-labs/sentinelx/internal/metrics"
	"github.com/sentinel-labs/sentinelx/internal/realtime"
	"github.com/sentinel-labs/sentinelx/internal/trust"
)

// Handler provides HTTP endpoints for login scoring.
type Handler struct {
	scorer   *Scorer
	batcher  *audit.Batcher
	enforcer *trust.Enforcer
	hub      *realtime.Hub
}

// NewHandler creates a new login risk handler. batcher, enforcer, and hub
// may be nil; the corresponding side effects are skipped.
func NewHandler(scorer *Scorer, batcher *audit.Batcher, enforcer *trust.Enforcer, hub *realtime.Hub) *Handler {
	return &Handler{scorer: scorer, batcher: batcher, enforcer: enforcer, hub: hub}
}

// RegisterRoutes sets up login risk endpoints
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/logins/score", h.ScoreLogin)
	r.GET("/logins/stats/:identity", h.GetStats)
}

type scoreRequest struct {
	Identity    string `json:"identity" binding:"required"`
	Fingerprint string `json:"deviceFingerprint"`
	Country     string `json:"country"`
	Timestamp   string `json:"timestamp"`
}

// ScoreLogin scores one login attempt and feeds the trust and audit
// pipelines. A locked identity is rejected before scoring.
func (h *Handler) ScoreLogin(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request must contain 'identity'",
		})
		return
	}

	if h.enforcer != nil {
		decision, err := h.enforcer.CheckAction(c.Request.Context(), req.Identity, trust.ActionLogin)
		if err == nil && !decision.Allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"error":    "action_blocked",
				"message":  decision.Reason,
				"decision": decision,
			})
			return
		}
	}

	attempt := &Attempt{
		Identity:    req.Identity,
		Fingerprint: req.Fingerprint,
		Country:     req.Country,
	}
	if req.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			attempt.At = t.UTC()
		}
	}

	result, event, err := h.scorer.Score(c.Request.Context(), attempt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "scoring_failed",
			"message": err.Error(),
		})
		return
	}

	metrics.ScoresTotal.WithLabelValues("login", string(result.Level)).Inc()

	if h.batcher != nil {
		h.batcher.AddEvent(event.EventHash, "login", map[string]string{
			"identity": event.Identity,
			"level":    string(event.Level),
		})
	}

	resp := gin.H{"result": result}
	if h.enforcer != nil {
		if state, err := h.enforcer.Evaluate(c.Request.Context(), req.Identity); err == nil {
			resp["trust"] = state
		}
	}

	if h.hub != nil {
		h.hub.BroadcastLoginScore(map[string]interface{}{
			"identity": result.Identity,
			"score":    result.Score,
			"level":    string(result.Level),
			"action":   result.Action,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// GetStats returns the per-identity login scoring summary.
func (h *Handler) GetStats(c *gin.Context) {
	identity := c.Param("identity")

	stats, err := h.scorer.StatsFor(c.Request.Context(), identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "stats_failed",
			"message": "Failed to compute login stats",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": stats})
}
