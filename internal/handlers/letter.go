package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"letter-service/internal/services"
)

// LetterHandler manages letter endpoints.
type LetterHandler struct {
	letters *services.LetterService
}

// NewLetterHandler builds a LetterHandler.
func NewLetterHandler(letters *services.LetterService) *LetterHandler {
	return &LetterHandler{letters: letters}
}

// CreateLetter creates a sealed letter.
func (h *LetterHandler) CreateLetter(c *gin.Context) {
	var req struct {
		RecipientID        *string    `json:"recipient_id"`
		Body               string     `json:"body"`
		UnlocksAt          time.Time  `json:"unlocks_at" binding:"required"`
		IsAnonymous        bool       `json:"is_anonymous"`
		RevealDelaySeconds *int       `json:"reveal_delay_seconds"`
		ExpiresAt          *time.Time `json:"expires_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	letter, err := h.letters.CreateLetter(c.Request.Context(), userID, services.CreateLetterParams{
		RecipientID:        req.RecipientID,
		Body:               req.Body,
		UnlocksAt:          req.UnlocksAt,
		IsAnonymous:        req.IsAnonymous,
		RevealDelaySeconds: req.RevealDelaySeconds,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, letter)
}

// GetLetter returns a single letter as visible to the caller.
func (h *LetterHandler) GetLetter(c *gin.Context) {
	letter, err := h.letters.GetLetter(c.Request.Context(), c.Param("letter_id"), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, letter)
}

// ListLetters returns the caller's inbox or outbox.
func (h *LetterHandler) ListLetters(c *gin.Context) {
	userID := c.GetString("userID")

	box := c.DefaultQuery("box", "inbox")
	switch box {
	case "inbox":
		letters, err := h.letters.Inbox(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"letters": letters})
	case "outbox":
		letters, err := h.letters.Outbox(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"letters": letters})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "box must be inbox or outbox"})
	}
}

// OpenLetter records the recipient's open.
func (h *LetterHandler) OpenLetter(c *gin.Context) {
	letter, err := h.letters.OpenLetter(c.Request.Context(), c.Param("letter_id"), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, letter)
}

// WithdrawLetter soft-deletes an unopened letter.
func (h *LetterHandler) WithdrawLetter(c *gin.Context) {
	if err := h.letters.WithdrawLetter(c.Request.Context(), c.Param("letter_id"), c.GetString("userID")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateInvite issues (or returns) the letter's invite token.
func (h *LetterHandler) CreateInvite(c *gin.Context) {
	invite, existed, err := h.letters.CreateInvite(c.Request.Context(), c.Param("letter_id"), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"token": invite.Token, "already_existed": existed})
}

// ClaimInvite consumes an invite token for the caller.
func (h *LetterHandler) ClaimInvite(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	letterID, err := h.letters.ClaimInvite(c.Request.Context(), req.Token, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"letter_id": letterID})
}
