package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/service"
	"researchhub/backend/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportApprovedTopics 导出立项课题
// GET /api/v1/export/approved-topics?academic_year_id=xxx
func (h *ExportHandler) ExportApprovedTopics(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ExportApprovedTopicsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "academic_year_id 不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportApprovedTopics(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	attachment(c, filename, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ExportUsers 按当前筛选条件导出用户
// GET /api/v1/users/export?format=csv|xlsx
func (h *ExportHandler) ExportUsers(c *gin.Context) {
	var req dto.UserExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	buf, filename, contentType, err := h.exportSvc.ExportUsers(c.Request.Context(), &req)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	attachment(c, filename, contentType, buf.Bytes())
}

// attachment 设置下载响应头并写入文件
func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, contentType, data)
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoData):
		response.NotFound(c, 19001, "没有可导出的数据")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.Error(c, http.StatusInternalServerError, 19002, "生成导出文件失败")
	default:
		handleYearError(c, err)
	}
}
