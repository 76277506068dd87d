package dto

import "time"

// TimeLayout 响应中的时间格式
const TimeLayout = "2006-01-02T15:04:05Z07:00"

// FormatTime 格式化时间，零值返回空串
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// ── 认证模块响应 ──

// LoginResponse 登录成功响应
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"` // Access Token 有效期（秒）
	User        UserResponse `json:"user"`
}

// ── 用户模块响应 ──

// UserResponse 用户信息响应（脱敏）
type UserResponse struct {
	ID                 string           `json:"id"`
	Username           string           `json:"username"`
	FullName           string           `json:"full_name"`
	Email              string           `json:"email"`
	PhoneNumber        string           `json:"phone_number,omitempty"`
	AvatarURL          string           `json:"avatar_url,omitempty"`
	Role               string           `json:"role"`
	Department         *DepartmentBrief `json:"department,omitempty"`
	ClassName          string           `json:"class_name,omitempty"`
	Course             string           `json:"course,omitempty"`
	AcademicDegree     string           `json:"academic_degree,omitempty"`
	MustChangePassword bool             `json:"must_change_password"`
	CreatedAt          string           `json:"created_at"`
}

// DepartmentBrief 学院简要信息
type DepartmentBrief struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
