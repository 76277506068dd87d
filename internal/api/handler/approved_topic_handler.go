package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/service"
	"researchhub/backend/pkg/response"
)

// ApprovedTopicHandler 立项课题与课题材料 HTTP 处理器
type ApprovedTopicHandler struct {
	approvedSvc service.ApprovedTopicService
}

// NewApprovedTopicHandler 创建 ApprovedTopicHandler
func NewApprovedTopicHandler(approvedSvc service.ApprovedTopicService) *ApprovedTopicHandler {
	return &ApprovedTopicHandler{approvedSvc: approvedSvc}
}

// ListApprovedTopics GET /api/v1/approved-topics
func (h *ApprovedTopicHandler) ListApprovedTopics(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ApprovedTopicListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.approvedSvc.List(c.Request.Context(), &req, caller)
	if err != nil {
		handleApprovedTopicError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// UpdateApprovedTopic 教学秘书维护立项信息
// PUT /api/v1/approved-topics/:id
func (h *ApprovedTopicHandler) UpdateApprovedTopic(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateApprovedTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	at, err := h.approvedSvc.Update(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		handleApprovedTopicError(c, err)
		return
	}
	response.OK(c, at)
}

// ListDocuments GET /api/v1/approved-topics/:id/documents
func (h *ApprovedTopicHandler) ListDocuments(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	docs, err := h.approvedSvc.ListDocuments(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		handleApprovedTopicError(c, err)
		return
	}
	response.OK(c, gin.H{"list": docs})
}

// ListTopicDocuments GET /api/v1/topics/:id/documents
func (h *ApprovedTopicHandler) ListTopicDocuments(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	docs, err := h.approvedSvc.ListTopicDocuments(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		handleApprovedTopicError(c, err)
		return
	}
	response.OK(c, gin.H{"list": docs})
}

// UploadDocument 上传课题材料，同类型重复上传替换旧文件
// POST /api/v1/topics/:id/documents (multipart: file, type, summary)
func (h *ApprovedTopicHandler) UploadDocument(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	docType := c.PostForm("type")
	if docType == "" {
		response.BadRequest(c, 10001, "材料类型不能为空")
		return
	}

	upload, closeFn, ok := readUpload(c, "file")
	if !ok {
		return
	}
	defer closeFn()

	doc, err := h.approvedSvc.UploadDocument(c.Request.Context(), c.Param("id"), docType, c.PostForm("summary"), upload, caller)
	if err != nil {
		handleApprovedTopicError(c, err)
		return
	}
	response.Created(c, doc)
}

// UpdateSummary PUT /api/v1/documents/:id/summary
func (h *ApprovedTopicHandler) UpdateSummary(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateDocumentSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	doc, err := h.approvedSvc.UpdateSummary(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		handleApprovedTopicError(c, err)
		return
	}
	response.OK(c, doc)
}

// DeleteDocument DELETE /api/v1/documents/:id
func (h *ApprovedTopicHandler) DeleteDocument(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.approvedSvc.DeleteDocument(c.Request.Context(), c.Param("id"), caller); err != nil {
		handleApprovedTopicError(c, err)
		return
	}
	response.OK(c, nil)
}

// handleApprovedTopicError 立项与材料错误码 16xxx，其余交给选题模块
func handleApprovedTopicError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrApprovedTopicNotFound):
		response.NotFound(c, 16001, "立项课题不存在")
	case errors.Is(err, service.ErrTopicNotApproved):
		response.BadRequest(c, 16002, "课题尚未立项")
	case errors.Is(err, service.ErrCodeImmutable):
		response.BadRequest(c, 16003, "立项编号不可修改")
	case errors.Is(err, service.ErrInvalidApprovedStatus):
		response.BadRequest(c, 16004, "无效的立项状态")
	case errors.Is(err, service.ErrApprovedTransition):
		response.BadRequest(c, 16005, "不允许的立项状态流转")
	case errors.Is(err, service.ErrDocumentNotFound):
		response.NotFound(c, 16006, "材料不存在")
	case errors.Is(err, service.ErrInvalidDocumentType):
		response.BadRequest(c, 16007, "无效的材料类型")
	case errors.Is(err, service.ErrInvalidFileType):
		response.BadRequest(c, 16008, "不支持的文件格式")
	case errors.Is(err, service.ErrSummaryNotSupported):
		response.BadRequest(c, 16009, "仅科研论文可填写摘要")
	default:
		handleTopicError(c, err)
	}
}
