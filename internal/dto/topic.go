package dto

// ── 选题申报 DTO ──

// TopicListRequest 申报列表查询
type TopicListRequest struct {
	PaginationRequest
	DepartmentID   string `form:"department_id"    binding:"omitempty,uuid"`
	AcademicYearID string `form:"academic_year_id" binding:"omitempty,uuid"`
	Status         string `form:"status"           binding:"omitempty,oneof=PENDING NEEDS_UPDATE REJECTED APPROVED"`
	Keyword        string `form:"keyword"          binding:"omitempty,max=100"`
}

// CreateTopicRequest 提交申报
// 字段级业务规则（预算区间、词数）由 lifecycle.ProposalValidator 校验
type CreateTopicRequest struct {
	Title            string `json:"title"             binding:"required"`
	ShortDescription string `json:"short_description" binding:"required"`
	Objective        string `json:"objective"         binding:"required"`
	Content          string `json:"content"           binding:"required"`
	Budget           int64  `json:"budget"            binding:"required"`
	Note             string `json:"note"`
	AcademicYearID   string `json:"academic_year_id"  binding:"required,uuid"`
	AdvisorID        string `json:"advisor_id"        binding:"omitempty,uuid"` // 学生申报时可邀请指导教师
}

// UpdateTopicRequest 负责人编辑申报/立项内容
type UpdateTopicRequest struct {
	Title            *string `json:"title"`
	ShortDescription *string `json:"short_description"`
	Objective        *string `json:"objective"`
	Content          *string `json:"content"`
	Budget           *int64  `json:"budget"`
	Note             *string `json:"note"`
	FieldResearch    *string `json:"field_research" binding:"omitempty,max=100"` // 仅立项后生效
	TypeResearch     *string `json:"type_research"  binding:"omitempty,max=100"` // 仅立项后生效
	Version          int     `json:"version"` // 乐观锁版本号，0 表示不校验
}

// UpdateTopicStatusRequest 审核申报
type UpdateTopicStatusRequest struct {
	Status    string `json:"status"     binding:"required,oneof=NEEDS_UPDATE REJECTED APPROVED"`
	Feedback  string `json:"feedback"   binding:"omitempty,max=2000"`
	AdvisorID string `json:"advisor_id" binding:"omitempty,uuid"`
	LeaderID  string `json:"leader_id"  binding:"omitempty,uuid"`
}

// AssignAdvisorRequest 指派指导教师，空值表示取消指派
type AssignAdvisorRequest struct {
	AdvisorID string `json:"advisor_id" binding:"omitempty,uuid"`
}

// AssignLeaderRequest 指派组长，空值表示仅撤销现组长
type AssignLeaderRequest struct {
	LeaderID string `json:"leader_id" binding:"omitempty,uuid"`
}

// MemberDecisionRequest 批量审批成员申请
type MemberDecisionRequest struct {
	UserIDs []string `json:"user_ids" binding:"required,min=1,dive,uuid"`
}

// TopicMemberResponse 课题成员
type TopicMemberResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

// TopicResponse 申报详情
type TopicResponse struct {
	ID               string                `json:"id"`
	Code             *string               `json:"code"`
	Title            string                `json:"title"`
	ShortDescription string                `json:"short_description"`
	Objective        string                `json:"objective"`
	Content          string                `json:"content"`
	Budget           int64                 `json:"budget"`
	Note             string                `json:"note"`
	Status           string                `json:"status"`
	ResearchField    string                `json:"research_field,omitempty"`
	ResearchType     string                `json:"research_type,omitempty"`
	DepartmentID     string                `json:"department_id"`
	AcademicYearID   string                `json:"academic_year_id"`
	ProposedBy       string                `json:"proposed_by"`
	StudentLeaderID  *string               `json:"student_leader_id"`
	AdvisorID        *string               `json:"advisor_id"`
	AdvisorName      string                `json:"advisor_name,omitempty"`
	Members          []TopicMemberResponse `json:"members"`
	PendingMembers   []TopicMemberResponse `json:"pending_members"`
	ApprovedTopicID  *string               `json:"approved_topic_id,omitempty"`
	ApprovedStatus   string                `json:"approved_status,omitempty"`
	Version          int                   `json:"version"`
	SubmittedAt      string                `json:"submitted_at"`
	UpdatedAt        string                `json:"updated_at"`
}

// TopicPermissionsResponse 当前用户对课题的可用操作
type TopicPermissionsResponse struct {
	TopicID       string          `json:"topic_id"`
	Role          string          `json:"role"`
	IsOwner       bool            `json:"is_owner"`
	IsLocked      bool            `json:"is_locked"`
	SessionStatus string          `json:"session_status"`
	Permissions   map[string]bool `json:"permissions"`
	ReviewTargets []string        `json:"review_targets"` // 可审核时的可选目标状态
}
