package dto

import "time"

// ── 公告 DTO ──

// AnnouncementListRequest 公告查询，scope=system 仅返回全校公告
type AnnouncementListRequest struct {
	PaginationRequest
	DepartmentID   string `form:"department_id"    binding:"omitempty,uuid"`
	AcademicYearID string `form:"academic_year_id" binding:"omitempty,uuid"`
	Scope          string `form:"scope"            binding:"omitempty,oneof=system"`
}

// CreateAnnouncementRequest 发布公告
type CreateAnnouncementRequest struct {
	Title          string     `json:"title"            binding:"required,max=255"`
	Content        string     `json:"content"          binding:"required"`
	PublishAt      *time.Time `json:"publish_at"`
	DepartmentID   *string    `json:"department_id"    binding:"omitempty,uuid"`
	AcademicYearID *string    `json:"academic_year_id" binding:"omitempty,uuid"`
}

// UpdateAnnouncementRequest 修改公告
type UpdateAnnouncementRequest struct {
	Title     *string    `json:"title"   binding:"omitempty,max=255"`
	Content   *string    `json:"content"`
	PublishAt *time.Time `json:"publish_at"`
}

// AnnouncementResponse 公告
type AnnouncementResponse struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	PublishAt      string  `json:"publish_at"`
	DepartmentID   *string `json:"department_id"`
	AcademicYearID *string `json:"academic_year_id"`
	CreatedAt      string  `json:"created_at"`
}
