package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"letter-service/internal/services"
)

// SocialHandler manages connection endpoints.
type SocialHandler struct {
	social *services.SocialService
}

// NewSocialHandler builds a SocialHandler.
func NewSocialHandler(social *services.SocialService) *SocialHandler {
	return &SocialHandler{social: social}
}

// RequestConnection creates a pending connection request.
func (h *SocialHandler) RequestConnection(c *gin.Context) {
	var req struct {
		ToUser  string  `json:"to_user" binding:"required"`
		Message *string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	request, err := h.social.RequestConnection(c.Request.Context(), userID, req.ToUser, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

// RespondToRequest accepts or declines a pending request.
func (h *SocialHandler) RespondToRequest(c *gin.Context) {
	var req struct {
		Action string  `json:"action" binding:"required,oneof=accept decline"`
		Reason *string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	request, err := h.social.RespondToRequest(c.Request.Context(), c.Param("request_id"), userID, req.Action == "accept", req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

// ListConnections returns the caller's mutual connections.
func (h *SocialHandler) ListConnections(c *gin.Context) {
	conns, err := h.social.Connections(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": conns})
}

// ListRequests returns incoming or outgoing requests for the caller.
func (h *SocialHandler) ListRequests(c *gin.Context) {
	direction := c.DefaultQuery("direction", "incoming")
	if direction != "incoming" && direction != "outgoing" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be incoming or outgoing"})
		return
	}

	reqs, err := h.social.Requests(c.Request.Context(), c.GetString("userID"), direction == "incoming")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}
