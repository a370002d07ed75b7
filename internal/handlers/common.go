package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"letter-service/internal/lifecycle"
	"letter-service/internal/repositories"
	"letter-service/internal/services"
)

// writeError maps domain errors to HTTP statuses with stable codes, so
// clients can tell a lost race or a policy rejection from a genuine
// failure.
func writeError(c *gin.Context, err error) {
	var validation *services.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "code": "validation_error"})
		return
	}

	switch {
	case errors.Is(err, repositories.ErrLetterNotFound),
		errors.Is(err, repositories.ErrInviteNotFound),
		errors.Is(err, repositories.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "code": "not_found"})
	case errors.Is(err, lifecycle.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized", "code": "not_authorized"})
	case errors.Is(err, lifecycle.ErrNotYetEligible):
		c.JSON(http.StatusLocked, gin.H{"error": "not yet eligible", "code": "not_yet_eligible"})
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid transition", "code": "invalid_transition"})
	case errors.Is(err, services.ErrAlreadyOpened):
		c.JSON(http.StatusConflict, gin.H{"error": "letter already opened", "code": "already_opened"})
	case errors.Is(err, services.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{"error": "someone else already claimed this invite", "code": "already_claimed"})
	case errors.Is(err, services.ErrAlreadyResponded):
		c.JSON(http.StatusConflict, gin.H{"error": "request already responded", "code": "already_responded"})
	case errors.Is(err, services.ErrAlreadyPendingOrConnected):
		c.JSON(http.StatusConflict, gin.H{"error": "already pending or connected", "code": "already_pending_or_connected"})
	case errors.Is(err, services.ErrLetterDeleted):
		c.JSON(http.StatusGone, gin.H{"error": "letter withdrawn", "code": "letter_deleted"})
	case errors.Is(err, services.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "daily request limit reached, try again tomorrow", "code": "rate_limited"})
	case errors.Is(err, services.ErrCooldownActive):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "cooldown active, try again later", "code": "cooldown_active"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong", "code": "internal"})
	}
}
