package handlers

import (
	"net/http"
	"strconv"

	"moveregistry-backend/internal/repository"

	"github.com/gin-gonic/gin"
)

// MovesHandler serves the minted move records.
type MovesHandler struct {
	moves     repository.MoveRepository
	royalties repository.RoyaltyRepository
}

// NewMovesHandler creates a new moves handler.
func NewMovesHandler(moves repository.MoveRepository, royalties repository.RoyaltyRepository) *MovesHandler {
	return &MovesHandler{moves: moves, royalties: royalties}
}

// ListMoves returns a page of minted moves, newest first.
// GET /api/v1/moves?page=1&page_size=20
func (h *MovesHandler) ListMoves(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	moves, total, err := h.moves.List(c.Request.Context(), page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list moves"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"moves":     moves,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetMove returns one minted move by its mint address.
// GET /api/v1/moves/:mint
func (h *MovesHandler) GetMove(c *gin.Context) {
	move, err := h.moves.GetByMint(c.Request.Context(), c.Param("mint"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Move not found"})
		return
	}
	c.JSON(http.StatusOK, move)
}

// GetMovesByCreator returns every move a creator has minted.
// GET /api/v1/moves/creator/:creator
func (h *MovesHandler) GetMovesByCreator(c *gin.Context) {
	moves, err := h.moves.FindByCreator(c.Request.Context(), c.Param("creator"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list moves"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"moves": moves, "count": len(moves)})
}

// GetMoveRoyalties returns the royalty events recorded against one move.
// GET /api/v1/moves/:mint/royalties
func (h *MovesHandler) GetMoveRoyalties(c *gin.Context) {
	events, err := h.royalties.FindByMint(c.Request.Context(), c.Param("mint"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list royalties"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"royalties": events, "count": len(events)})
}
