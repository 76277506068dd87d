package dto

// ── 用户模块 DTO ──

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	DepartmentID string `form:"department_id" binding:"omitempty,uuid"`
	Role         string `form:"role"          binding:"omitempty,oneof=ADMIN ASSISTANT TEACHER STUDENT"`
	Keyword      string `form:"keyword"       binding:"omitempty,max=50"`
}

// UserExportRequest 导出当前页用户
type UserExportRequest struct {
	UserListRequest
	Format string `form:"format" binding:"omitempty,oneof=csv xlsx"`
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Username       string  `json:"username"        binding:"required,min=3,max=50"`
	FullName       string  `json:"full_name"       binding:"required,min=2,max=100"`
	Email          string  `json:"email"           binding:"omitempty,email"`
	PhoneNumber    string  `json:"phone_number"    binding:"omitempty,max=20"`
	Role           string  `json:"role"            binding:"required,oneof=ADMIN ASSISTANT TEACHER STUDENT"`
	DepartmentID   *string `json:"department_id"   binding:"omitempty,uuid"`
	ClassName      string  `json:"class_name"      binding:"omitempty,max=50"`
	Course         string  `json:"course"          binding:"omitempty,max=20"`
	AcademicDegree string  `json:"academic_degree" binding:"omitempty,max=50"`
}

// UpdateUserRequest 更新用户信息请求
type UpdateUserRequest struct {
	FullName       *string `json:"full_name"       binding:"omitempty,min=2,max=100"`
	Email          *string `json:"email"           binding:"omitempty,email"`
	PhoneNumber    *string `json:"phone_number"    binding:"omitempty,max=20"`
	DepartmentID   *string `json:"department_id"   binding:"omitempty,uuid"`
	ClassName      *string `json:"class_name"      binding:"omitempty,max=50"`
	Course         *string `json:"course"          binding:"omitempty,max=20"`
	AcademicDegree *string `json:"academic_degree" binding:"omitempty,max=50"`
}

// SupervisorListRequest 可选指导教师查询
type SupervisorListRequest struct {
	DepartmentID string `form:"department_id" binding:"omitempty,uuid"`
	Keyword      string `form:"keyword"       binding:"omitempty,max=50"`
}

// CreateUserResponse 创建用户响应
type CreateUserResponse struct {
	User     UserResponse `json:"user"`
	MailSent bool         `json:"mail_sent"`
}

// ImportUserResponse 批量导入用户响应
type ImportUserResponse struct {
	Total   int               `json:"total"`
	Success int               `json:"success"`
	Failed  int               `json:"failed"`
	Errors  []ImportUserError `json:"errors,omitempty"`
}

// ImportUserError 导入错误详情
type ImportUserError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
