package guard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-labs/sentinelx/internal/audit"
	"github.com/sentinel-labs/sentinelx/internal/events"
	"github.com/sentinel-labs/sentinelx/internal/idgen"
	"github.com/sentinel-labs/sentinelx/internal/metrics"
	"github.com/sentinel-labs/sentinelx/internal/realtime"
	"github.com/sentinel-labs/sentinelx/internal/trust"
	"github.com/sentinel-labs/sentinelx/internal/validation"
)

// Handler provides HTTP endpoints for content scanning.
type Handler struct {
	scanner  *Scanner
	history  events.HistoryProvider
	batcher  *audit.Batcher
	enforcer *trust.Enforcer
	hub      *realtime.Hub
}

// NewHandler creates a new guard handler. history, batcher, enforcer, and
// hub may be nil; the corresponding side effects are skipped.
func NewHandler(scanner *Scanner, history events.HistoryProvider, batcher *audit.Batcher, enforcer *trust.Enforcer, hub *realtime.Hub) *Handler {
	return &Handler{scanner: scanner, history: history, batcher: batcher, enforcer: enforcer, hub: hub}
}

// RegisterRoutes sets up guard endpoints
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/guard/scan", h.ScanContent)
	r.POST("/guard/redact", h.RedactContent)
}

type scanRequest struct {
	Identity    string `json:"identity"`
	Text        string `json:"text" binding:"required"`
	UseAdvisory bool   `json:"useAdvisory"`
	// Override marks that the sender proceeded despite a risky verdict
	// on a previous scan of the same content.
	Override bool `json:"override"`
}

// ScanContent scans a payload for leaks and manipulation markers. When an
// identity is supplied the scan is recorded as a content event and feeds
// the trust and audit pipelines.
func (h *Handler) ScanContent(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request must contain 'text'",
		})
		return
	}

	req.Identity = validation.SanitizeString(req.Identity, validation.MaxIdentityLength)

	if h.enforcer != nil && req.Identity != "" {
		decision, err := h.enforcer.CheckAction(c.Request.Context(), req.Identity, trust.ActionContentSend)
		if err == nil && !decision.Allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"error":    "action_blocked",
				"message":  decision.Reason,
				"decision": decision,
			})
			return
		}
	}

	result := h.scanner.Scan(c.Request.Context(), req.Text, req.UseAdvisory)
	metrics.ScansTotal.WithLabelValues(result.Severity).Inc()

	resp := gin.H{"result": result}
	if req.Identity != "" {
		h.recordEvent(c, req.Identity, req.Override, result)

		if h.batcher != nil {
			h.batcher.AddEvent(result.EventHash, "content", map[string]string{
				"identity": req.Identity,
				"severity": result.Severity,
			})
		}
		if h.enforcer != nil {
			if state, err := h.enforcer.Evaluate(c.Request.Context(), req.Identity); err == nil {
				resp["trust"] = state
			}
		}
	}

	if h.hub != nil {
		h.hub.BroadcastScan(map[string]interface{}{
			"identity":  req.Identity,
			"severity":  result.Severity,
			"riskScore": result.RiskScore,
			"isRisky":   result.IsRisky,
			"score":     float64(result.RiskScore) / 100,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// recordEvent stores the scan as a content event for trust aggregation.
func (h *Handler) recordEvent(c *gin.Context, identity string, override bool, result *ScanResult) {
	if h.history == nil {
		return
	}

	event := &events.ScoredEvent{
		ID:          idgen.WithPrefix("scan_"),
		Identity:    identity,
		Kind:        events.KindContent,
		ContentHash: result.ContentHash,
		EventHash:   result.EventHash,
		Score:       float64(result.RiskScore) / 100,
		Level:       severityToLevel(result.Severity),
		Risky:       result.IsRisky,
		Override:    override,
		CreatedAt:   result.ScannedAt,
	}
	_ = h.history.Append(c.Request.Context(), event)
}

type redactRequest struct {
	Text string `json:"text" binding:"required"`
}

// RedactContent replaces detected sensitive spans with typed placeholders.
// Idempotent: redacting already-redacted text is a no-op.
func (h *Handler) RedactContent(c *gin.Context) {
	var req redactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request must contain 'text'",
		})
		return
	}

	c.JSON(http.StatusOK, h.scanner.Redact(req.Text))
}

// severityToLevel folds the four scan severities into the three event
// levels shared by all engines.
func severityToLevel(severity string) events.Level {
	switch severity {
	case SeverityCritical, SeverityHigh:
		return events.LevelHigh
	case SeverityMedium:
		return events.LevelMedium
	default:
		return events.LevelLow
	}
}
