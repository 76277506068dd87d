package dto

// ── 立项课题 / 文档 DTO ──

// ApprovedTopicListRequest 立项课题列表查询
type ApprovedTopicListRequest struct {
	PaginationRequest
	DepartmentID   string `form:"department_id"    binding:"omitempty,uuid"`
	AcademicYearID string `form:"academic_year_id" binding:"omitempty,uuid"`
	Status         string `form:"status"           binding:"omitempty"`
	Keyword        string `form:"keyword"          binding:"omitempty,max=100"`
}

// UpdateApprovedTopicRequest 教学秘书维护立项信息
// code 只读，提交不同编号会被拒绝
type UpdateApprovedTopicRequest struct {
	Code          *string `json:"code"`
	Prize         *string `json:"prize"          binding:"omitempty,max=100"`
	FieldResearch *string `json:"field_research" binding:"omitempty,max=100"`
	TypeResearch  *string `json:"type_research"  binding:"omitempty,max=100"`
	Status        *string `json:"status"`
}

// ApprovedTopicResponse 立项课题
type ApprovedTopicResponse struct {
	ID             string             `json:"id"`
	TopicID        string             `json:"topic_id"`
	Code           string             `json:"code"`
	Title          string             `json:"title"`
	Prize          string             `json:"prize,omitempty"`
	FieldResearch  string             `json:"field_research,omitempty"`
	TypeResearch   string             `json:"type_research,omitempty"`
	Status         string             `json:"status"`
	DepartmentID   string             `json:"department_id"`
	AcademicYearID string             `json:"academic_year_id"`
	LeaderName     string             `json:"leader_name,omitempty"`
	AdvisorName    string             `json:"advisor_name,omitempty"`
	Documents      []DocumentResponse `json:"documents"`
	UpdatedAt      string             `json:"updated_at"`
}

// DocumentResponse 课题材料
type DocumentResponse struct {
	ID              string `json:"id"`
	ApprovedTopicID string `json:"approved_topic_id"`
	DocumentType    string `json:"document_type"`
	FileName        string `json:"file_name"`
	FileURL         string `json:"file_url"`
	Summary         string `json:"summary,omitempty"`
	UploadedAt      string `json:"uploaded_at"`
}

// UpdateDocumentSummaryRequest 修改论文摘要
type UpdateDocumentSummaryRequest struct {
	Summary string `json:"summary" binding:"required,max=5000"`
}

// ExportApprovedTopicsRequest 导出立项课题
type ExportApprovedTopicsRequest struct {
	DepartmentID   string `form:"department_id"    binding:"omitempty,uuid"`
	AcademicYearID string `form:"academic_year_id" binding:"required,uuid"`
}
