package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/service"
	"researchhub/backend/pkg/response"
)

// AnnouncementHandler 公告 HTTP 处理器
type AnnouncementHandler struct {
	announcementSvc service.AnnouncementService
}

// NewAnnouncementHandler 创建 AnnouncementHandler
func NewAnnouncementHandler(announcementSvc service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{announcementSvc: announcementSvc}
}

// ListAnnouncements GET /api/v1/announcements
func (h *AnnouncementHandler) ListAnnouncements(c *gin.Context) {
	var req dto.AnnouncementListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.announcementSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// CreateAnnouncement POST /api/v1/announcements
func (h *AnnouncementHandler) CreateAnnouncement(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	a, err := h.announcementSvc.Create(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleAnnouncementError(c, err)
		return
	}
	response.Created(c, a)
}

// UpdateAnnouncement PUT /api/v1/announcements/:id
func (h *AnnouncementHandler) UpdateAnnouncement(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	a, err := h.announcementSvc.Update(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		h.handleAnnouncementError(c, err)
		return
	}
	response.OK(c, a)
}

// DeleteAnnouncement DELETE /api/v1/announcements/:id
func (h *AnnouncementHandler) DeleteAnnouncement(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.announcementSvc.Delete(c.Request.Context(), c.Param("id"), caller); err != nil {
		h.handleAnnouncementError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *AnnouncementHandler) handleAnnouncementError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAnnouncementNotFound):
		response.NotFound(c, 17001, "公告不存在")
	case errors.Is(err, service.ErrAssistantNeedsDepartment):
		response.BadRequest(c, 17002, "教学秘书未归属学院，无法发布公告")
	default:
		handleYearError(c, err)
	}
}
