package handler

import (
	"net/http"

	"hrchat/internal/services"
	"hrchat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	service *services.ChatService
}

func NewChatHandler(service *services.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) ListThreads(c *gin.Context) {
	self, ok := currentMember(c)
	if !ok {
		return
	}
	threads, err := h.service.ListThreads(c.Request.Context(), self.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(threads))
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	self, ok := currentMember(c)
	if !ok {
		return
	}
	msgs, err := h.service.ListMessages(c.Request.Context(), self.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"messages": msgs}))
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", httpdto.CodeInvalidRequest))
		return
	}
	self, ok := currentMember(c)
	if !ok {
		return
	}

	m, err := h.service.SendMessage(c.Request.Context(), self, c.Param("id"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(m))
}

func (h *ChatHandler) StartDirect(c *gin.Context) {
	var req httpdto.StartDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", httpdto.CodeInvalidRequest))
		return
	}
	self, ok := currentMember(c)
	if !ok {
		return
	}

	t, err := h.service.StartDirect(c.Request.Context(), self, req.TargetUserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"thread": t}))
}

func (h *ChatHandler) CreateGroup(c *gin.Context) {
	var req httpdto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", httpdto.CodeInvalidRequest))
		return
	}
	self, ok := currentMember(c)
	if !ok {
		return
	}

	t, err := h.service.CreateGroup(c.Request.Context(), self, req.Spec())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(gin.H{"thread": t}))
}
