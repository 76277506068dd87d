package lifecycle

import (
	"errors"
	"fmt"

	"researchhub/backend/internal/model"
)

// ErrActionNotAllowed 当前状态或角色下不允许执行该操作
var ErrActionNotAllowed = errors.New("当前状态下不允许该操作")

// Action 受状态约束的课题操作
type Action string

const (
	ActionEditProposal         Action = "EDIT_PROPOSAL"
	ActionEditApprovedContent  Action = "EDIT_APPROVED_CONTENT"
	ActionUploadDocument       Action = "UPLOAD_DOCUMENT"
	ActionDeleteDocument       Action = "DELETE_DOCUMENT"
	ActionReview               Action = "REVIEW"
	ActionAssignMembers        Action = "ASSIGN_MEMBERS"
	ActionEditApprovedMetadata Action = "EDIT_APPROVED_METADATA"
)

// AllActions 全部操作，按权限接口输出顺序排列
var AllActions = []Action{
	ActionEditProposal,
	ActionEditApprovedContent,
	ActionUploadDocument,
	ActionDeleteDocument,
	ActionReview,
	ActionAssignMembers,
	ActionEditApprovedMetadata,
}

// Subject 判断操作权限所需的上下文
// ApprovedStatus 在课题未立项时为空
type Subject struct {
	Role           model.Role
	TopicStatus    model.TopicStatus
	ApprovedStatus model.ApprovedTopicStatus
	SessionStatus  model.SessionStatus
	IsOwner        bool
	IsLocked       bool
}

// IsLocked 批次已结束，或课题已完成/已取消时锁定
func IsLocked(session model.SessionStatus, approved model.ApprovedTopicStatus) bool {
	if session == model.SessionCompleted {
		return true
	}
	switch approved {
	case model.ApprovedCompleted, model.ApprovedCanceled:
		return true
	case model.ApprovedInProgress, model.ApprovedNotCompleted:
		return false
	}
	return false
}

// NewSubject 构造 Subject 并计算锁定标记
func NewSubject(role model.Role, topic model.TopicStatus, approved model.ApprovedTopicStatus, session model.SessionStatus, isOwner bool) Subject {
	return Subject{
		Role:           role,
		TopicStatus:    topic,
		ApprovedStatus: approved,
		SessionStatus:  session,
		IsOwner:        isOwner,
		IsLocked:       IsLocked(session, approved),
	}
}

// CanPerform 集中的操作守卫表
func CanPerform(action Action, s Subject) bool {
	switch action {
	case ActionEditProposal:
		return isProposer(s) &&
			(s.TopicStatus == model.TopicPending || s.TopicStatus == model.TopicNeedsUpdate)

	case ActionEditApprovedContent:
		return isProposer(s) &&
			s.TopicStatus == model.TopicApproved &&
			submissionOpen(s.ApprovedStatus) &&
			s.SessionStatus != model.SessionCompleted &&
			!s.IsLocked

	case ActionUploadDocument, ActionDeleteDocument:
		return s.Role == model.RoleStudent && s.IsOwner &&
			s.TopicStatus == model.TopicApproved &&
			submissionOpen(s.ApprovedStatus) &&
			s.SessionStatus == model.SessionInProgress &&
			!s.IsLocked

	case ActionReview, ActionAssignMembers:
		return s.Role == model.RoleAssistant &&
			(s.TopicStatus == model.TopicPending || s.TopicStatus == model.TopicNeedsUpdate)

	case ActionEditApprovedMetadata:
		return s.Role == model.RoleAssistant &&
			s.TopicStatus == model.TopicApproved &&
			s.ApprovedStatus.Valid() &&
			s.ApprovedStatus != model.ApprovedCanceled &&
			s.SessionStatus != model.SessionCompleted
	}
	return false
}

// Check 与 CanPerform 相同，但返回带操作名的错误
func Check(action Action, s Subject) error {
	if CanPerform(action, s) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrActionNotAllowed, action)
}

// Permissions 返回每个操作的可用性，供前端决定按钮状态
func Permissions(s Subject) map[Action]bool {
	out := make(map[Action]bool, len(AllActions))
	for _, a := range AllActions {
		out[a] = CanPerform(a, s)
	}
	return out
}

func isProposer(s Subject) bool {
	return s.IsOwner && (s.Role == model.RoleStudent || s.Role == model.RoleTeacher)
}

func submissionOpen(st model.ApprovedTopicStatus) bool {
	return st == model.ApprovedInProgress || st == model.ApprovedNotCompleted
}
