package handler

import "researchhub/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth          *AuthHandler
	User          *UserHandler
	Department    *DepartmentHandler
	AcademicYear  *AcademicYearHandler
	Topic         *TopicHandler
	ApprovedTopic *ApprovedTopicHandler
	Announcement  *AnnouncementHandler
	Message       *MessageHandler
	Dashboard     *DashboardHandler
	Export        *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:          NewAuthHandler(svc.Auth),
		User:          NewUserHandler(svc.User),
		Department:    NewDepartmentHandler(svc.Department),
		AcademicYear:  NewAcademicYearHandler(svc.AcademicYear, svc.YearSession),
		Topic:         NewTopicHandler(svc.Topic),
		ApprovedTopic: NewApprovedTopicHandler(svc.ApprovedTopic),
		Announcement:  NewAnnouncementHandler(svc.Announcement),
		Message:       NewMessageHandler(svc.Message),
		Dashboard:     NewDashboardHandler(svc.Dashboard),
		Export:        NewExportHandler(svc.Export),
	}
}
