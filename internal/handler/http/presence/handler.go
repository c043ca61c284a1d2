package presence

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"amora-realtime/internal/directory"
	"amora-realtime/pkg/response"
)

// Handler serves presence lookups off the in-process directory.
type Handler struct {
	store directory.SessionStore
}

// NewHandler creates a new presence handler
func NewHandler(store directory.SessionStore) *Handler {
	return &Handler{store: store}
}

// GetPresence returns a user's online state and last-seen timestamp.
// GET /v1/presence/:userId
func (h *Handler) GetPresence(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		response.ValidationError(c, "userId required")
		return
	}

	p := h.store.Presence(userID)

	body := gin.H{
		"userId": userID,
		"online": p.Online,
	}
	if !p.LastSeen.IsZero() {
		body["lastSeen"] = p.LastSeen
	}

	response.Success(c, http.StatusOK, body)
}

// ListOnline returns the ids of all currently connected users.
// GET /v1/presence
func (h *Handler) ListOnline(c *gin.Context) {
	users := h.store.OnlineUsers()

	response.Success(c, http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}
