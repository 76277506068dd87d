package dto

// ── 学年 / 批次 DTO ──

// CreateAcademicYearRequest 创建学年
type CreateAcademicYearRequest struct {
	Year     int  `json:"year"      binding:"required,min=2000,max=2100"`
	IsActive bool `json:"is_active"`
}

// UpdateAcademicYearRequest 更新学年
type UpdateAcademicYearRequest struct {
	Status   *string `json:"status"    binding:"omitempty,oneof=START END"`
	IsActive *bool   `json:"is_active"`
}

// AcademicYearResponse 学年响应
type AcademicYearResponse struct {
	ID        string `json:"id"`
	Year      int    `json:"year"`
	Status    string `json:"status"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// YearSessionListRequest 批次查询
type YearSessionListRequest struct {
	AcademicYearID string `form:"academic_year_id" binding:"omitempty,uuid"`
	DepartmentID   string `form:"department_id"    binding:"omitempty,uuid"`
	Status         string `form:"status"           binding:"omitempty,oneof=ON_REGISTRATION UNDER_REVIEW IN_PROGRESS COMPLETED"`
}

// CreateYearSessionRequest 创建批次
type CreateYearSessionRequest struct {
	AcademicYearID string `json:"academic_year_id" binding:"required,uuid"`
	DepartmentID   string `json:"department_id"    binding:"required,uuid"`
}

// UpdateYearSessionRequest 更新批次状态
type UpdateYearSessionRequest struct {
	Status string `json:"status" binding:"required,oneof=ON_REGISTRATION UNDER_REVIEW IN_PROGRESS COMPLETED"`
}

// YearSessionResponse 批次响应
type YearSessionResponse struct {
	ID             string `json:"id"`
	AcademicYearID string `json:"academic_year_id"`
	Year           int    `json:"year,omitempty"`
	DepartmentID   string `json:"department_id"`
	DepartmentName string `json:"department_name,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}
