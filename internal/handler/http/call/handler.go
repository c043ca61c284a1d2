package call

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"amora-realtime/internal/repository/cockroach"
	"amora-realtime/pkg/pagination"
	"amora-realtime/pkg/response"
)

// Handler serves call history off the call log table.
type Handler struct {
	calls *cockroach.CallLogRepository
}

// NewHandler creates a new call handler
func NewHandler(calls *cockroach.CallLogRepository) *Handler {
	return &Handler{calls: calls}
}

// GetCallLogs returns the authenticated user's call history, newest first.
// GET /v1/calls?page=1&limit=20
func (h *Handler) GetCallLogs(c *gin.Context) {
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

	params, err := pagination.ParseParams(c.Query("page"), c.Query("limit"))
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	entries, err := h.calls.GetUserCallLogs(c.Request.Context(), userID, params.Limit, params.Offset)
	if err != nil {
		response.InternalError(c, "Failed to get call logs")
		return
	}

	total, err := h.calls.CountUserCallLogs(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "Failed to get call logs")
		return
	}

	response.Success(c, http.StatusOK, pagination.BuildResponse(params, total, entries))
}
