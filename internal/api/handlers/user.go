package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"chathub/internal/adapters/storage"
	"chathub/internal/api/middleware"
	"chathub/internal/models"
	"chathub/internal/ws"
	"chathub/pkg/response"
)

// UserDirectory lists chat-partner candidates. The conversation service is
// the production implementation.
type UserDirectory interface {
	NonContacts(ctx context.Context, userID string) ([]models.User, error)
}

type UserHandler struct {
	presence  *ws.PresenceTracker
	storage   *storage.Client
	directory UserDirectory
}

func NewUserHandler(presence *ws.PresenceTracker, storage *storage.Client, directory UserDirectory) *UserHandler {
	return &UserHandler{presence: presence, storage: storage, directory: directory}
}

// GET /user/online-status/:id is the polled fallback for clients not actively
// viewing a conversation; answered from the presence tracker.
func (h *UserHandler) OnlineStatus(c *gin.Context) {
	userID := c.Param("id")
	online, lastSeen := h.presence.Status(userID)

	status := models.OnlineStatus{UserID: userID, IsOnline: online}
	if !online && !lastSeen.IsZero() {
		status.LastSeenAt = &lastSeen
	}
	response.OK(c, status)
}

// GET /user/non-friends lists users the caller shares no conversation with,
// for picking members of a new chat.
func (h *UserHandler) NonFriends(c *gin.Context) {
	users, err := h.directory.NonContacts(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Fail(c, response.CodeInternal, "could not list users")
		return
	}

	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	response.OK(c, out)
}

// GET /user/presigned-url?filename=... returns an attachment upload URL. The
// message itself only ever carries the resulting object URL.
func (h *UserHandler) PresignedURL(c *gin.Context) {
	filename := c.Query("filename")
	if filename == "" {
		response.Fail(c, response.CodeValidation, "filename is required")
		return
	}

	uploadURL, objectURL, err := h.storage.PresignedUpload(c.Request.Context(), filename)
	if err != nil {
		response.Fail(c, response.CodeInternal, "could not presign upload")
		return
	}
	response.OK(c, gin.H{"uploadUrl": uploadURL, "objectUrl": objectURL})
}
