// Package lifecycle 集中维护课题生命周期的状态机、操作守卫与申报校验。
// 包内均为纯函数，不依赖存储层。
package lifecycle

import (
	"errors"
	"fmt"

	"researchhub/backend/internal/model"
)

var (
	ErrInvalidTransition = errors.New("不允许的状态流转")
	ErrFeedbackRequired  = errors.New("该状态需要填写审核意见")
	ErrUnknownStatus     = errors.New("未知状态")
)

// ── 申报状态机 ──

var proposalTransitions = map[model.TopicStatus][]model.TopicStatus{
	model.TopicPending:     {model.TopicNeedsUpdate, model.TopicRejected, model.TopicApproved},
	model.TopicNeedsUpdate: {model.TopicRejected, model.TopicApproved, model.TopicNeedsUpdate},
	model.TopicRejected:    nil,
	model.TopicApproved:    nil,
}

// CanReviewTransition 审核人可执行的申报状态流转
func CanReviewTransition(from, to model.TopicStatus) bool {
	return contains(proposalTransitions[from], to)
}

// ReviewTargets 返回 from 状态下审核人可选的目标状态
func ReviewTargets(from model.TopicStatus) []model.TopicStatus {
	return append([]model.TopicStatus(nil), proposalTransitions[from]...)
}

// ResubmitStatus 负责人保存修改后的状态：NEEDS_UPDATE 回到 PENDING，其余不变
func ResubmitStatus(current model.TopicStatus) model.TopicStatus {
	if current == model.TopicNeedsUpdate {
		return model.TopicPending
	}
	return current
}

// IsProposalTerminal 申报阶段是否已结束
func IsProposalTerminal(s model.TopicStatus) bool {
	switch s {
	case model.TopicRejected, model.TopicApproved:
		return true
	case model.TopicPending, model.TopicNeedsUpdate:
		return false
	}
	return false
}

// ── 立项执行状态机 ──

var approvedTransitions = map[model.ApprovedTopicStatus][]model.ApprovedTopicStatus{
	model.ApprovedInProgress:   {model.ApprovedCompleted, model.ApprovedNotCompleted, model.ApprovedCanceled},
	model.ApprovedCompleted:    nil,
	model.ApprovedNotCompleted: nil,
	model.ApprovedCanceled:     nil,
}

// CanApprovedTransition 立项课题执行状态是否可从 from 变为 to，相同状态视为无变化
func CanApprovedTransition(from, to model.ApprovedTopicStatus) bool {
	if from == to {
		return from.Valid()
	}
	return contains(approvedTransitions[from], to)
}

// ── 学年批次状态机 ──

var sessionTransitions = map[model.SessionStatus][]model.SessionStatus{
	model.SessionOnRegistration: {model.SessionUnderReview},
	model.SessionUnderReview:    {model.SessionOnRegistration, model.SessionInProgress},
	model.SessionInProgress:     {model.SessionCompleted},
	model.SessionCompleted:      nil,
}

// CanSessionTransition 批次状态是否可从 from 变为 to
func CanSessionTransition(from, to model.SessionStatus) bool {
	if from == to {
		return from.Valid()
	}
	return contains(sessionTransitions[from], to)
}

// ── 审核 ──

// ValidateReview 校验审核动作：流转合法，且 NEEDS_UPDATE/REJECTED 必须附带意见
func ValidateReview(from, to model.TopicStatus, feedback string) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if !CanReviewTransition(from, to) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	switch to {
	case model.TopicNeedsUpdate, model.TopicRejected:
		if isBlank(feedback) {
			return ErrFeedbackRequired
		}
	case model.TopicApproved, model.TopicPending:
	}
	return nil
}

// AppendReviewNote 将审核意见以带标签的新行追加到备注
func AppendReviewNote(note string, to model.TopicStatus, feedback string) string {
	if isBlank(feedback) {
		return note
	}
	var tag string
	switch to {
	case model.TopicNeedsUpdate:
		tag = "[需补充]"
	case model.TopicRejected:
		tag = "[驳回理由]"
	case model.TopicApproved:
		tag = "[审核意见]"
	default:
		tag = "[备注]"
	}
	line := tag + ": " + feedback
	if note == "" {
		return line
	}
	return note + "\n" + line
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
