package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"amora-realtime/internal/repository/redis"
	"amora-realtime/internal/service/relay"
	"amora-realtime/pkg/response"
)

// Handler manages user block lists. The durable list lives in Redis; the
// relay pushes the realtime notification to both parties.
type Handler struct {
	blocks       *redis.BlockRepository
	relayService *relay.Service
}

// NewHandler creates a new user handler
func NewHandler(blocks *redis.BlockRepository, relayService *relay.Service) *Handler {
	return &Handler{
		blocks:       blocks,
		relayService: relayService,
	}
}

// BlockRequest represents block/unblock request
type BlockRequest struct {
	TargetID string `json:"targetId" binding:"required"`
}

// BlockUser blocks another user.
// POST /v1/users/block
func (h *Handler) BlockUser(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	if actorID == req.TargetID {
		response.ValidationError(c, "Cannot block yourself")
		return
	}

	if err := h.blocks.Block(c.Request.Context(), actorID, req.TargetID); err != nil {
		response.InternalError(c, "Failed to block user")
		return
	}

	h.relayService.RelayBlock(actorID, req.TargetID)

	response.Success(c, http.StatusOK, gin.H{"message": "User blocked"})
}

// UnblockUser unblocks another user.
// POST /v1/users/unblock
func (h *Handler) UnblockUser(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	if err := h.blocks.Unblock(c.Request.Context(), actorID, req.TargetID); err != nil {
		response.InternalError(c, "Failed to unblock user")
		return
	}

	h.relayService.RelayUnblock(actorID, req.TargetID)

	response.Success(c, http.StatusOK, gin.H{"message": "User unblocked"})
}

// ListBlocked lists everyone the authenticated user has blocked.
// GET /v1/users/blocked
func (h *Handler) ListBlocked(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	users, err := h.blocks.BlockedUsers(c.Request.Context(), actorID)
	if err != nil {
		response.InternalError(c, "Failed to list blocked users")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

func (h *Handler) actor(c *gin.Context) (string, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return "", false
	}
	userID, ok := userIDVal.(string)
	if !ok {
		response.InternalError(c, "Invalid user ID")
		return "", false
	}
	return userID, true
}
