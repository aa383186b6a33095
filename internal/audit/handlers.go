package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for the audit trail.
type Handler struct {
	batcher *Batcher
}

// NewHandler creates a new audit handler.
func NewHandler(batcher *Batcher) *Handler {
	return &Handler{batcher: batcher}
}

// RegisterRoutes sets up audit endpoints
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit/stats", h.GetStats)
	r.POST("/audit/batch", h.ForceBatch)
	r.GET("/audit/proof/:root/:eventHash", h.GetProof)
	r.POST("/audit/verify", h.VerifyProof)
}

// GetStats returns batcher state and recent batch summaries.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.batcher.Stats())
}

// ForceBatch cuts a batch immediately regardless of queue size.
func (h *Handler) ForceBatch(c *gin.Context) {
	batch := h.batcher.CutBatch()
	if batch == nil {
		c.JSON(http.StatusOK, gin.H{
			"batched": false,
			"message": "No pending events to batch",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batched": true,
		"batch":   batch,
	})
}

// GetProof generates an inclusion proof for an event hash in a known batch.
func (h *Handler) GetProof(c *gin.Context) {
	root := c.Param("root")
	eventHash := c.Param("eventHash")

	proof := h.batcher.GetProof(root, eventHash)
	if proof == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "proof_not_found",
			"message": "Unknown batch root or event hash",
		})
		return
	}
	c.JSON(http.StatusOK, proof)
}

type verifyRequest struct {
	EventHash string   `json:"eventHash" binding:"required"`
	Proof     []string `json:"proof"`
	Root      string   `json:"merkleRoot" binding:"required"`
}

// VerifyProof checks a caller-supplied inclusion proof. Pure computation,
// works for proofs generated by other instances.
func (h *Handler) VerifyProof(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request must contain 'eventHash' and 'merkleRoot'",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"eventHash":  req.EventHash,
		"merkleRoot": req.Root,
		"isValid":    VerifyProof(req.EventHash, req.Proof, req.Root),
	})
}
