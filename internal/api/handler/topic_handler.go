package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/lifecycle"
	"researchhub/backend/internal/service"
	"researchhub/backend/pkg/response"
)

// TopicHandler 选题申报 HTTP 处理器
type TopicHandler struct {
	topicSvc service.TopicService
}

// NewTopicHandler 创建 TopicHandler
func NewTopicHandler(topicSvc service.TopicService) *TopicHandler {
	return &TopicHandler{topicSvc: topicSvc}
}

// ListTopics 申报列表，非管理员限定本学院
// GET /api/v1/topics
func (h *TopicHandler) ListTopics(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.TopicListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.topicSvc.List(c.Request.Context(), &req, caller)
	if err != nil {
		handleTopicError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ListMine GET /api/v1/topics/mine
func (h *TopicHandler) ListMine(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	list, err := h.topicSvc.ListMine(c.Request.Context(), caller)
	if err != nil {
		handleTopicError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// GetTopic GET /api/v1/topics/:id
func (h *TopicHandler) GetTopic(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	topic, err := h.topicSvc.GetByID(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		handleTopicError(c, err)
		return
	}
	response.OK(c, topic)
}

// CreateTopic 提交申报
// POST /api/v1/topics
func (h *TopicHandler) CreateTopic(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	topic, err := h.topicSvc.Create(c.Request.Context(), &req, caller)
	if err != nil {
		handleTopicError(c, err)
		return
	}
	response.Created(c, topic)
}

// UpdateTopic 负责人编辑申报或立项内容
// PUT /api/v1/topics/:id
func (h *TopicHandler) UpdateTopic(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	topic, err := h.topicSvc.Update(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		handleTopicError(c, err)
		return
	}
	response.OK(c, topic)
}

// UpdateStatus 教学秘书审核
// PUT /api/v1/topics/:id/status
func (h *TopicHandler) UpdateStatus(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateTopicStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	topic, err := h.topicSvc.UpdateStatus(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		handleTopicError(c, err)
		return
	}
	response.OK(c, topic)
}

// AssignAdvisor PUT /api/v1/topics/:id/advisor
func (h *TopicHandler) AssignAdvisor(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.AssignAdvisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	topic, err := h.topicSvc.AssignAdvisor(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		handleTopicError(c, err)
		return
	}
	response.OK(c, topic)
}

// AssignLeader PUT /api/v1/topics/:id/leader
func (h *TopicHandler) AssignLeader(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.AssignLeaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	topic, err := h.topicSvc.AssignLeader(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		handleTopicError(c, err)
		return
	}
	response.OK(c, topic)
}

// Register 学生申请加入课题
// POST /api/v1/topics/:id/register
func (h *TopicHandler) Register(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	topic, err := h.topicSvc.Register(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		handleTopicError(c, err)
		return
	}
	response.OK(c, topic)
}

// ApproveMembers POST /api/v1/topics/:id/members/approve
func (h *TopicHandler) ApproveMembers(c *gin.Context) {
	h.decideMembers(c, h.topicSvc.ApproveMembers)
}

// RejectMembers POST /api/v1/topics/:id/members/reject
func (h *TopicHandler) RejectMembers(c *gin.Context) {
	h.decideMembers(c, h.topicSvc.RejectMembers)
}

// Permissions 当前用户对课题的可用操作
// GET /api/v1/topics/:id/permissions
func (h *TopicHandler) Permissions(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	perms, err := h.topicSvc.Permissions(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		handleTopicError(c, err)
		return
	}
	response.OK(c, perms)
}

// ── 内部辅助方法 ──

type memberDecision func(ctx context.Context, id string, req *dto.MemberDecisionRequest, caller service.Caller) (*dto.TopicResponse, error)

func (h *TopicHandler) decideMembers(c *gin.Context, decide memberDecision) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.MemberDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	topic, err := decide(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		handleTopicError(c, err)
		return
	}
	response.OK(c, topic)
}

// handleTopicError 统一处理选题模块业务错误
func handleTopicError(c *gin.Context, err error) {
	var verr *lifecycle.ValidationError
	if errors.As(err, &verr) {
		response.ErrorWithData(c, http.StatusBadRequest, 15002, "申报内容校验失败", gin.H{"fields": verr.Fields})
		return
	}
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrTopicNotFound):
		response.NotFound(c, 15001, "申报不存在")
	case errors.Is(err, lifecycle.ErrProposalInvalid):
		response.BadRequest(c, 15002, "申报内容校验失败")
	case errors.Is(err, service.ErrUserNoDepartment):
		response.BadRequest(c, 15003, "当前用户未归属学院")
	case errors.Is(err, service.ErrRegistrationClosed):
		response.BadRequest(c, 15004, "当前批次不在申报登记阶段")
	case errors.Is(err, service.ErrAdvisorInvalid):
		response.BadRequest(c, 15005, "指导教师必须是教师账号")
	case errors.Is(err, service.ErrLeaderInvalid):
		response.BadRequest(c, 15006, "组长必须是学生成员")
	case errors.Is(err, service.ErrLeaderNotMember):
		response.BadRequest(c, 15007, "组长必须已是课题成员")
	case errors.Is(err, service.ErrPendingMembers):
		response.BadRequest(c, 15008, "仍有待审核的成员申请")
	case errors.Is(err, service.ErrLeaderRequired):
		response.BadRequest(c, 15009, "立项前必须确定组长")
	case errors.Is(err, service.ErrAdvisorRequired):
		response.BadRequest(c, 15010, "立项前必须确定指导教师")
	case errors.Is(err, service.ErrAlreadyMember):
		response.Conflict(c, 15011, "已是该课题成员或已提交申请")
	case errors.Is(err, service.ErrTopicNotOpen):
		response.BadRequest(c, 15012, "课题申报阶段已结束")
	case errors.Is(err, service.ErrNoPendingMembers):
		response.BadRequest(c, 15013, "没有可处理的成员申请")
	case errors.Is(err, lifecycle.ErrActionNotAllowed):
		response.Forbidden(c, 15014, "当前状态下不允许该操作")
	case errors.Is(err, lifecycle.ErrFeedbackRequired):
		response.BadRequest(c, 15015, "该状态需要填写审核意见")
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		response.BadRequest(c, 15016, "不允许的状态流转")
	case errors.Is(err, lifecycle.ErrUnknownStatus):
		response.BadRequest(c, 15017, "未知状态")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 12001, "用户不存在")
	default:
		handleYearError(c, err)
	}
}
