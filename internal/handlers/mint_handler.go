package handlers

import (
	"net/http"
	"strconv"

	"moveregistry-backend/internal/dsl"
	"moveregistry-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MintHandler exposes the mint orchestration endpoints.
type MintHandler struct {
	mintService *services.MintService
	bridge      *services.WalletBridge
}

// NewMintHandler creates a new mint handler.
func NewMintHandler(mintService *services.MintService, bridge *services.WalletBridge) *MintHandler {
	return &MintHandler{
		mintService: mintService,
		bridge:      bridge,
	}
}

// MintMoveRequest is the POST body for starting a mint.
type MintMoveRequest struct {
	Creator        string `json:"creator" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Expression     string `json:"expression" binding:"required"`
	RoyaltyPercent uint8  `json:"royalty_percent"`
}

// StartMint launches a mint attempt and returns its ID immediately. Progress
// is delivered over the creator's WebSocket session.
// POST /api/v1/moves/mint
func (h *MintHandler) StartMint(c *gin.Context) {
	var req MintMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	attempt, err := h.mintService.MintAsync(c.Request.Context(), &services.MintRequest{
		Creator:        req.Creator,
		Name:           req.Name,
		Expression:     req.Expression,
		RoyaltyPercent: req.RoyaltyPercent,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logrus.WithFields(logrus.Fields{
		"attempt": attempt.ID,
		"creator": req.Creator,
		"name":    req.Name,
	}).Info("🎬 Mint attempt started")

	c.JSON(http.StatusAccepted, gin.H{
		"attempt_id": attempt.ID,
		"state":      attempt.State,
	})
}

// GetAttempt returns the current state of one mint attempt.
// GET /api/v1/moves/attempts/:id
func (h *MintHandler) GetAttempt(c *gin.Context) {
	attempt, err := h.mintService.GetAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Attempt not found"})
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// ListAttempts returns a creator's recent mint attempts.
// GET /api/v1/moves/attempts?creator=...&limit=20
func (h *MintHandler) ListAttempts(c *gin.Context) {
	creator := c.Query("creator")
	if creator == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "creator query parameter is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	attempts, err := h.mintService.ListAttempts(c.Request.Context(), creator, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list attempts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts, "count": len(attempts)})
}

// RetryVerification re-submits the cached payment proof of a stuck attempt.
// POST /api/v1/moves/attempts/:id/retry-verification
func (h *MintHandler) RetryVerification(c *gin.Context) {
	attemptID := c.Param("id")
	if !h.mintService.HasPendingVerification(attemptID) {
		c.JSON(http.StatusConflict, gin.H{"error": "Attempt has no pending verification"})
		return
	}

	result, err := h.mintService.RetryVerification(c.Request.Context(), attemptID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": result.Message,
		"tx_hash": result.TxHash,
	})
}

// SignResponse is the wallet's answer to a signing request, for clients that
// respond over REST instead of the WebSocket.
type SignResponse struct {
	RequestID         string `json:"request_id" binding:"required"`
	SignedTransaction string `json:"signed_transaction"`
	Step              string `json:"step"`
	Error             string `json:"error"`
}

// SubmitSignature resolves a pending wallet signing request.
// POST /api/v1/wallet/sign-response
func (h *MintHandler) SubmitSignature(c *gin.Context) {
	var req SignResponse
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	var err error
	if req.Error != "" {
		err = h.bridge.Reject(req.RequestID, req.Step, req.Error)
	} else if req.SignedTransaction != "" {
		err = h.bridge.ProvideSignature(req.RequestID, req.SignedTransaction)
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signed_transaction or error is required"})
		return
	}
	if err != nil {
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ValidateExpression checks DSL syntax without minting anything.
// POST /api/v1/moves/validate-expression
func (h *MintHandler) ValidateExpression(c *gin.Context) {
	var req struct {
		Expression string `json:"expression" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if msg := dsl.Validate(req.Expression); msg != "" {
		c.JSON(http.StatusOK, gin.H{"valid": false, "message": msg, "hint": dsl.Hint})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "is_dsl": dsl.IsDSL(req.Expression)})
}
