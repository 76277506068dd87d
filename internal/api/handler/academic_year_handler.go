package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/service"
	"researchhub/backend/pkg/response"
)

// AcademicYearHandler 学年与批次 HTTP 处理器
type AcademicYearHandler struct {
	yearSvc    service.AcademicYearService
	sessionSvc service.YearSessionService
}

// NewAcademicYearHandler 创建 AcademicYearHandler
func NewAcademicYearHandler(yearSvc service.AcademicYearService, sessionSvc service.YearSessionService) *AcademicYearHandler {
	return &AcademicYearHandler{yearSvc: yearSvc, sessionSvc: sessionSvc}
}

// ────────────────────── 学年 ──────────────────────

// ListYears GET /api/v1/academic-years
func (h *AcademicYearHandler) ListYears(c *gin.Context) {
	list, err := h.yearSvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// GetYear GET /api/v1/academic-years/:id
func (h *AcademicYearHandler) GetYear(c *gin.Context) {
	year, err := h.yearSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleYearError(c, err)
		return
	}
	response.OK(c, year)
}

// CreateYear POST /api/v1/academic-years
func (h *AcademicYearHandler) CreateYear(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateAcademicYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	year, err := h.yearSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleYearError(c, err)
		return
	}
	response.Created(c, year)
}

// UpdateYear PUT /api/v1/academic-years/:id
func (h *AcademicYearHandler) UpdateYear(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateAcademicYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	year, err := h.yearSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleYearError(c, err)
		return
	}
	response.OK(c, year)
}

// ────────────────────── 批次 ──────────────────────

// ListSessions GET /api/v1/year-sessions
func (h *AcademicYearHandler) ListSessions(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.YearSessionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, err := h.sessionSvc.List(c.Request.Context(), &req, caller)
	if err != nil {
		handleYearError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// CreateSession POST /api/v1/year-sessions
func (h *AcademicYearHandler) CreateSession(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateYearSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	session, err := h.sessionSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleYearError(c, err)
		return
	}
	response.Created(c, session)
}

// UpdateSession 推进批次状态
// PUT /api/v1/year-sessions/:id
func (h *AcademicYearHandler) UpdateSession(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateYearSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	session, err := h.sessionSvc.Update(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		handleYearError(c, err)
		return
	}
	response.OK(c, session)
}

// DeleteSession DELETE /api/v1/year-sessions/:id
func (h *AcademicYearHandler) DeleteSession(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.sessionSvc.Delete(c.Request.Context(), c.Param("id"), caller); err != nil {
		handleYearError(c, err)
		return
	}
	response.OK(c, nil)
}

// handleYearError 学年与批次错误码 14xxx，其他模块查询学年/批次时复用
func handleYearError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrAcademicYearNotFound):
		response.NotFound(c, 14001, "学年不存在")
	case errors.Is(err, service.ErrAcademicYearExists):
		response.Conflict(c, 14002, "该学年已存在")
	case errors.Is(err, service.ErrAcademicYearEnded):
		response.BadRequest(c, 14003, "学年已结束")
	case errors.Is(err, service.ErrYearHasOpenSessions):
		response.BadRequest(c, 14004, "学年下仍有未完成的批次")
	case errors.Is(err, service.ErrNoActiveAcademicYear):
		response.NotFound(c, 14005, "当前没有启用的学年")
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 14011, "该学院在此学年尚未开放申报批次")
	case errors.Is(err, service.ErrSessionExists):
		response.Conflict(c, 14012, "该学院在此学年已存在批次")
	case errors.Is(err, service.ErrInvalidStatus):
		response.BadRequest(c, 14013, "无效的状态值")
	case errors.Is(err, service.ErrInvalidSessionTransition):
		response.BadRequest(c, 14014, "不允许的批次状态流转")
	case errors.Is(err, service.ErrSessionHasPendingTopics):
		response.BadRequest(c, 14015, "仍有待审核或待补充的申报，无法进入执行阶段")
	case errors.Is(err, service.ErrSessionHasRunningTopics):
		response.BadRequest(c, 14016, "仍有执行中或未完成的课题，无法结束批次")
	case errors.Is(err, service.ErrSessionInUse):
		response.BadRequest(c, 14017, "批次下已有申报，无法删除")
	case errors.Is(err, service.ErrDepartmentNotFound):
		response.NotFound(c, 13001, "学院不存在")
	default:
		response.InternalError(c)
	}
}
