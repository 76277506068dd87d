package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/service"
	"researchhub/backend/pkg/response"
)

// DashboardHandler 统计看板 HTTP 处理器
type DashboardHandler struct {
	dashboardSvc service.DashboardService
}

// NewDashboardHandler 创建 DashboardHandler
func NewDashboardHandler(dashboardSvc service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardSvc: dashboardSvc}
}

// Admin GET /api/v1/dashboard/admin
func (h *DashboardHandler) Admin(c *gin.Context) {
	resp, err := h.dashboardSvc.Admin(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, resp)
}

// Assistant 本学院看板，默认当前学年
// GET /api/v1/dashboard/assistant
func (h *DashboardHandler) Assistant(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.AssistantDashboardRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	resp, err := h.dashboardSvc.Assistant(c.Request.Context(), &req, caller)
	if err != nil {
		if errors.Is(err, service.ErrUserNoDepartment) {
			response.BadRequest(c, 15003, "当前用户未归属学院")
			return
		}
		handleYearError(c, err)
		return
	}
	response.OK(c, resp)
}
