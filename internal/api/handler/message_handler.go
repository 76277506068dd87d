package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/service"
	"researchhub/backend/pkg/response"
)

// MessageHandler 站内消息 HTTP 处理器
type MessageHandler struct {
	messageSvc service.MessageService
}

// NewMessageHandler 创建 MessageHandler
func NewMessageHandler(messageSvc service.MessageService) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc}
}

// Send POST /api/v1/messages
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	msg, err := h.messageSvc.Send(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleMessageError(c, err)
		return
	}
	response.Created(c, msg)
}

// Inbox GET /api/v1/messages/inbox
func (h *MessageHandler) Inbox(c *gin.Context) {
	h.list(c, h.messageSvc.Inbox)
}

// Sent GET /api/v1/messages/sent
func (h *MessageHandler) Sent(c *gin.Context) {
	h.list(c, h.messageSvc.Sent)
}

// MarkRead PUT /api/v1/messages/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	msg, err := h.messageSvc.MarkRead(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleMessageError(c, err)
		return
	}
	response.OK(c, msg)
}

// Update 发送人修改消息
// PUT /api/v1/messages/:id
func (h *MessageHandler) Update(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	msg, err := h.messageSvc.Update(c.Request.Context(), c.Param("id"), &req, userID)
	if err != nil {
		h.handleMessageError(c, err)
		return
	}
	response.OK(c, msg)
}

// Delete DELETE /api/v1/messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.messageSvc.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.handleMessageError(c, err)
		return
	}
	response.OK(c, nil)
}

// SearchPartners 搜索可联系的用户
// GET /api/v1/messages/partners?keyword=xxx
func (h *MessageHandler) SearchPartners(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.PartnerSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, err := h.messageSvc.SearchPartners(c.Request.Context(), &req, userID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// ── 内部辅助方法 ──

type messageLister func(ctx context.Context, req *dto.MessageListRequest, callerID string) ([]dto.MessageResponse, int64, error)

func (h *MessageHandler) list(c *gin.Context, fetch messageLister) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := fetch(c.Request.Context(), &req, userID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

func (h *MessageHandler) handleMessageError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrMessageNotFound):
		response.NotFound(c, 18001, "消息不存在")
	case errors.Is(err, service.ErrMessageToSelf):
		response.BadRequest(c, 18002, "不能给自己发送消息")
	case errors.Is(err, service.ErrReceiverNotFound):
		response.NotFound(c, 18003, "接收人不存在")
	default:
		response.InternalError(c)
	}
}
