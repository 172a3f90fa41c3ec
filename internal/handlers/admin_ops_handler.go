package handlers

import (
	"net/http"

	"moveregistry-backend/internal/repository"
	"moveregistry-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminOpsHandler exposes the backoffice operations views.
type AdminOpsHandler struct {
	attempts    repository.AttemptRepository
	mintService *services.MintService
}

// NewAdminOpsHandler creates a new admin operations handler.
func NewAdminOpsHandler(attempts repository.AttemptRepository, mintService *services.MintService) *AdminOpsHandler {
	return &AdminOpsHandler{attempts: attempts, mintService: mintService}
}

// ListUnfinishedAttempts lists attempts stuck mid-flow, for the retry view.
// GET /api/v1/admin/attempts/unfinished
func (h *AdminOpsHandler) ListUnfinishedAttempts(c *gin.Context) {
	attempts, err := h.attempts.FindUnfinished(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list attempts"})
		return
	}

	type row struct {
		ID        string `json:"id"`
		Creator   string `json:"creator"`
		MoveName  string `json:"move_name"`
		State     string `json:"state"`
		Status    string `json:"status"`
		Retryable bool   `json:"retryable"`
	}
	rows := make([]row, 0, len(attempts))
	for _, a := range attempts {
		rows = append(rows, row{
			ID:        a.ID,
			Creator:   a.Creator,
			MoveName:  a.MoveName,
			State:     string(a.State),
			Status:    a.Status,
			Retryable: h.mintService.HasPendingVerification(a.ID),
		})
	}
	c.JSON(http.StatusOK, gin.H{"attempts": rows, "count": len(rows)})
}
