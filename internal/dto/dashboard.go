package dto

// ── 统计看板 DTO ──

// AdminDashboardResponse 管理员看板
type AdminDashboardResponse struct {
	TotalUsers          int64            `json:"total_users"`
	UsersByRole         map[string]int64 `json:"users_by_role"`
	TotalDepartments    int64            `json:"total_departments"`
	TotalAcademicYears  int64            `json:"total_academic_years"`
	ActiveYear          *int             `json:"active_year"`
	TotalTopics         int64            `json:"total_topics"`
	TopicsByStatus      map[string]int64 `json:"topics_by_status"`
	TotalApprovedTopics int64            `json:"total_approved_topics"`
}

// AssistantDashboardRequest 教学秘书看板查询，未指定学年时使用当前学年
type AssistantDashboardRequest struct {
	AcademicYearID string `form:"academic_year_id" binding:"omitempty,uuid"`
}

// AssistantDashboardResponse 教学秘书看板（学院 × 学年）
type AssistantDashboardResponse struct {
	DepartmentID     string           `json:"department_id"`
	AcademicYearID   string           `json:"academic_year_id"`
	Year             int              `json:"year"`
	SessionStatus    string           `json:"session_status,omitempty"`
	TotalTopics      int64            `json:"total_topics"`
	TopicsByStatus   map[string]int64 `json:"topics_by_status"`
	TotalApproved    int64            `json:"total_approved"`
	ApprovedByStatus map[string]int64 `json:"approved_by_status"`
	DocumentsByType  map[string]int64 `json:"documents_by_type"`
}
