package dto

// ── 学院模块 DTO ──

// DepartmentListRequest 学院列表查询
type DepartmentListRequest struct {
	PaginationRequest
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
}

// CreateDepartmentRequest 创建学院
type CreateDepartmentRequest struct {
	Code string `json:"code" binding:"required,min=1,max=20"`
	Name string `json:"name" binding:"required,min=2,max=100"`
}

// UpdateDepartmentRequest 更新学院
type UpdateDepartmentRequest struct {
	Code *string `json:"code" binding:"omitempty,min=1,max=20"`
	Name *string `json:"name" binding:"omitempty,min=2,max=100"`
}

// DepartmentDetailResponse 学院详情
type DepartmentDetailResponse struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	MemberCount int64  `json:"member_count"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}
