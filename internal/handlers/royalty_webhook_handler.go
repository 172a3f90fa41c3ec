package handlers

import (
	"io"
	"net/http"
	"strconv"

	"moveregistry-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RoyaltyWebhookHandler receives enhanced transaction notifications from the
// chain indexer and exposes the creator earnings view.
type RoyaltyWebhookHandler struct {
	royaltyService *services.RoyaltyService
}

// NewRoyaltyWebhookHandler creates a new royalty webhook handler.
func NewRoyaltyWebhookHandler(royaltyService *services.RoyaltyService) *RoyaltyWebhookHandler {
	return &RoyaltyWebhookHandler{royaltyService: royaltyService}
}

// HandleWebhook ingests one webhook delivery. Always replies 200 on parse
// success so the indexer does not redeliver processed batches.
// POST /api/v1/webhooks/chain
func (h *RoyaltyWebhookHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 4<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	processed, err := h.royaltyService.Ingest(c.Request.Context(), body)
	if err != nil {
		logrus.WithError(err).Error("❌ Webhook ingestion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "processed": processed})
}

// GetRoyaltySummary returns a creator's royalty totals and recent events.
// GET /api/v1/royalties?creator=...&limit=20
func (h *RoyaltyWebhookHandler) GetRoyaltySummary(c *gin.Context) {
	creator := c.Query("creator")
	if creator == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "creator query parameter is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	summary, err := h.royaltyService.Summary(c.Request.Context(), creator, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load royalty summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
