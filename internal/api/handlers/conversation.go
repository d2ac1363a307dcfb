package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"chathub/internal/api/middleware"
	"chathub/internal/conversation"
	"chathub/internal/models"
	"chathub/pkg/response"
)

type ConversationHandler struct {
	service *conversation.Service
}

func NewConversationHandler(service *conversation.Service) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GET /conversation returns the caller's conversations with latest-message
// summaries.
func (h *ConversationHandler) List(c *gin.Context) {
	convs, err := h.service.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Fail(c, response.CodeInternal, "could not list conversations")
		return
	}

	out := make([]models.ConversationResponse, 0, len(convs))
	for i := range convs {
		out = append(out, convs[i].ToResponse())
	}
	response.OK(c, out)
}

// POST /conversation
func (h *ConversationHandler) Create(c *gin.Context) {
	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, response.CodeValidation, "memberIds is required")
		return
	}

	conv, err := h.service.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.Fail(c, response.CodeInternal, "could not create conversation")
		return
	}
	response.Created(c, conv.ToResponse())
}

// GET /message/:conversationId returns history as seen by the caller;
// messages the caller soft-deleted are absent.
func (h *ConversationHandler) Messages(c *gin.Context) {
	msgs, err := h.service.History(c.Request.Context(), c.Param("conversationId"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.Fail(c, response.CodeNotFound, "conversation not found")
			return
		}
		response.Fail(c, response.CodeInternal, "could not load messages")
		return
	}

	out := make([]models.MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, msgs[i].ToResponse())
	}
	response.OK(c, out)
}
