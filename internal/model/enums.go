package model

import "strings"

// ── 角色 ──

// Role 系统角色
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleAssistant Role = "ASSISTANT"
	RoleTeacher   Role = "TEACHER"
	RoleStudent   Role = "STUDENT"
)

// Valid 判断角色是否合法
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAssistant, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// ParseRole 解析角色字符串（忽略大小写与首尾空白）
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// ── 选题申报状态 ──

// TopicStatus 选题申报审核状态
type TopicStatus string

const (
	TopicPending     TopicStatus = "PENDING"
	TopicNeedsUpdate TopicStatus = "NEEDS_UPDATE"
	TopicRejected    TopicStatus = "REJECTED"
	TopicApproved    TopicStatus = "APPROVED"
)

func (s TopicStatus) Valid() bool {
	switch s {
	case TopicPending, TopicNeedsUpdate, TopicRejected, TopicApproved:
		return true
	}
	return false
}

// ParseTopicStatus 解析申报状态
func ParseTopicStatus(s string) (TopicStatus, bool) {
	st := TopicStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// ── 立项课题执行状态 ──

// ApprovedTopicStatus 立项后课题的执行状态
type ApprovedTopicStatus string

const (
	ApprovedInProgress   ApprovedTopicStatus = "IN_PROGRESS"
	ApprovedCompleted    ApprovedTopicStatus = "COMPLETED"
	ApprovedNotCompleted ApprovedTopicStatus = "NOT_COMPLETED"
	ApprovedCanceled     ApprovedTopicStatus = "CANCELED"
)

func (s ApprovedTopicStatus) Valid() bool {
	switch s {
	case ApprovedInProgress, ApprovedCompleted, ApprovedNotCompleted, ApprovedCanceled:
		return true
	}
	return false
}

// ParseApprovedTopicStatus 解析执行状态，CANCELLED 统一为 CANCELED
func ParseApprovedTopicStatus(s string) (ApprovedTopicStatus, bool) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "CANCELLED" {
		v = string(ApprovedCanceled)
	}
	st := ApprovedTopicStatus(v)
	return st, st.Valid()
}

// ── 学年批次状态 ──

// SessionStatus 学院在某学年的申报批次状态
type SessionStatus string

const (
	SessionOnRegistration SessionStatus = "ON_REGISTRATION"
	SessionUnderReview    SessionStatus = "UNDER_REVIEW"
	SessionInProgress     SessionStatus = "IN_PROGRESS"
	SessionCompleted      SessionStatus = "COMPLETED"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionOnRegistration, SessionUnderReview, SessionInProgress, SessionCompleted:
		return true
	}
	return false
}

// ParseSessionStatus 解析批次状态
func ParseSessionStatus(s string) (SessionStatus, bool) {
	st := SessionStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// ── 学年状态 ──

// AcademicYearStatus 学年状态
type AcademicYearStatus string

const (
	AcademicYearStart AcademicYearStatus = "START"
	AcademicYearEnd   AcademicYearStatus = "END"
)

func (s AcademicYearStatus) Valid() bool {
	return s == AcademicYearStart || s == AcademicYearEnd
}

// ParseAcademicYearStatus 解析学年状态
func ParseAcademicYearStatus(s string) (AcademicYearStatus, bool) {
	st := AcademicYearStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// ── 成员 ──

// MemberRole 课题成员角色
type MemberRole string

const (
	MemberRoleLeader  MemberRole = "LEADER"
	MemberRoleMember  MemberRole = "MEMBER"
	MemberRoleAdvisor MemberRole = "ADVISOR"
)

func (r MemberRole) Valid() bool {
	switch r {
	case MemberRoleLeader, MemberRoleMember, MemberRoleAdvisor:
		return true
	}
	return false
}

// MemberStatus 成员申请状态
type MemberStatus string

const (
	MemberPending  MemberStatus = "PENDING"
	MemberApproved MemberStatus = "APPROVED"
	MemberRejected MemberStatus = "REJECTED"
)

func (s MemberStatus) Valid() bool {
	switch s {
	case MemberPending, MemberApproved, MemberRejected:
		return true
	}
	return false
}

// ── 文档类型 ──

// DocumentType 立项课题的材料类型，每种类型每个课题至多一份
type DocumentType string

const (
	DocMidtermReport     DocumentType = "MIDTERM_REPORT"
	DocScientificArticle DocumentType = "SCIENTIFIC_ARTICLE"
	DocPresentation      DocumentType = "PRESENTATION"
	DocSummaryReport     DocumentType = "SUMMARY_REPORT"
)

// AllDocumentTypes 全部文档类型（导出列顺序）
var AllDocumentTypes = []DocumentType{
	DocMidtermReport, DocScientificArticle, DocPresentation, DocSummaryReport,
}

func (d DocumentType) Valid() bool {
	switch d {
	case DocMidtermReport, DocScientificArticle, DocPresentation, DocSummaryReport:
		return true
	}
	return false
}

// ParseDocumentType 解析文档类型
func ParseDocumentType(s string) (DocumentType, bool) {
	d := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	return d, d.Valid()
}
