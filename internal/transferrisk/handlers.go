package transferrisk

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-labs/sentinelx/internal/audit"
	"github.com/sentinel-labs/sentinelx/internal/metrics"
	"github.com/sentinel-labs/sentinelx/internal/realtime"
	"github.com/sentinel-labs/sentinelx/internal/trust"
)

// Handler provides HTTP endpoints for transfer risk evaluation.
type Handler struct {
	scorer   *Scorer
	batcher  *audit.Batcher
	enforcer *trust.Enforcer
	hub      *realtime.Hub
}

// NewHandler creates a new transfer risk handler. batcher, enforcer, and
// hub may be nil; the corresponding side effects are skipped.
func NewHandler(scorer *Scorer, batcher *audit.Batcher, enforcer *trust.Enforcer, hub *realtime.Hub) *Handler {
	return &Handler{scorer: scorer, batcher: batcher, enforcer: enforcer, hub: hub}
}

// RegisterRoutes sets up transfer risk endpoints
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transfers/evaluate", h.EvaluateTransfer)
}

// EvaluateTransfer scores one proposed transfer and feeds the trust and
// audit pipelines. Enforcement gates run before scoring: a restricted or
// locked sender never reaches the risk engine.
func (h *Handler) EvaluateTransfer(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request must contain 'sender', 'recipient', and 'amountEth'",
		})
		return
	}

	if h.enforcer != nil {
		decision, err := h.enforcer.CheckAction(c.Request.Context(), req.Sender, trust.ActionTransfer)
		if err == nil && !decision.Allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"error":    "action_blocked",
				"message":  decision.Reason,
				"decision": decision,
			})
			return
		}
	}

	result, event, err := h.scorer.Evaluate(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "evaluation_failed",
			"message": err.Error(),
		})
		return
	}

	metrics.ScoresTotal.WithLabelValues("transfer", string(result.Level)).Inc()
	if result.Verdict == VerdictBlock {
		metrics.TransfersBlockedTotal.Inc()
	}

	if h.batcher != nil {
		h.batcher.AddEvent(event.EventHash, "transfer", map[string]string{
			"sender": result.Sender,
			"level":  string(result.Level),
		})
	}

	resp := gin.H{"result": result}
	if h.enforcer != nil {
		if state, err := h.enforcer.Evaluate(c.Request.Context(), result.Sender); err == nil {
			resp["trust"] = state
		}
	}

	if h.hub != nil {
		h.hub.BroadcastTransferScore(map[string]interface{}{
			"sender":       result.Sender,
			"recipient":    result.Recipient,
			"amountEth":    result.AmountETH,
			"score":        result.Score,
			"verdict":      result.Verdict,
			"displayScore": result.DisplayScore,
		})
	}

	c.JSON(http.StatusOK, resp)
}
