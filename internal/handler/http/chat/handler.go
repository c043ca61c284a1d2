package chat

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"amora-realtime/internal/domain"
	"amora-realtime/internal/repository/cassandra"
	"amora-realtime/pkg/constants"
	"amora-realtime/pkg/response"
)

// Handler serves message history and persistence. Realtime delivery goes
// through the WebSocket relay; this is the durable side.
type Handler struct {
	messages *cassandra.MessageRepository
}

// NewHandler creates a new chat handler
func NewHandler(messages *cassandra.MessageRepository) *Handler {
	return &Handler{messages: messages}
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
	Message    string `json:"message" binding:"required"`
	Type       string `json:"type"`
}

// GetMessagesQuery represents query parameters for listing messages
type GetMessagesQuery struct {
	PeerID    string `form:"peerId" binding:"required"`
	Limit     int    `form:"limit"`
	PageState string `form:"pageState"` // Base64 encoded
}

// SendMessage persists a new message.
// POST /v1/messages
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if len(req.Message) > constants.MaxMessageLength {
		response.ValidationError(c, "Message too long")
		return
	}

	senderIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return
	}
	senderID, ok := senderIDVal.(string)
	if !ok {
		response.InternalError(c, "Invalid user ID")
		return
	}

	message := &domain.ChatMessage{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Message:    req.Message,
		Type:       req.Type,
	}

	if err := h.messages.Save(c.Request.Context(), message); err != nil {
		response.InternalError(c, "Failed to save message")
		return
	}

	response.Success(c, http.StatusCreated, message)
}

// GetMessages retrieves the conversation with a peer.
// GET /v1/messages?peerId=<id>&limit=20&pageState=base64
func (h *Handler) GetMessages(c *gin.Context) {
	var query GetMessagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return
	}
	userID, ok := userIDVal.(string)
	if !ok {
		response.InternalError(c, "Invalid user ID")
		return
	}

	if query.Limit <= 0 {
		query.Limit = constants.DefaultPageSize
	}
	if query.Limit > constants.MaxPageSize {
		query.Limit = constants.MaxPageSize
	}

	var pageState []byte
	if query.PageState != "" {
		var err error
		pageState, err = base64.StdEncoding.DecodeString(query.PageState)
		if err != nil {
			response.ValidationError(c, "Invalid page state")
			return
		}
	}

	messages, nextPageState, err := h.messages.GetConversation(
		c.Request.Context(), userID, query.PeerID, query.Limit, pageState)
	if err != nil {
		response.InternalError(c, "Failed to get messages")
		return
	}

	var nextPageStateEncoded string
	if len(nextPageState) > 0 {
		nextPageStateEncoded = base64.StdEncoding.EncodeToString(nextPageState)
	}

	response.Success(c, http.StatusOK, gin.H{
		"messages":      messages,
		"nextPageState": nextPageStateEncoded,
	})
}

// MarkRead stamps a message as read.
// POST /v1/messages/read
func (h *Handler) MarkRead(c *gin.Context) {
	var req struct {
		PeerID    string `json:"peerId" binding:"required"`
		MessageID string `json:"messageId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return
	}
	userID := userIDVal.(string)

	if err := h.messages.MarkRead(c.Request.Context(), userID, req.PeerID, req.MessageID, time.Now().UTC()); err != nil {
		response.InternalError(c, "Failed to mark message read")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Marked read"})
}
