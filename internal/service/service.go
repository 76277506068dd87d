package service

import (
	"go.uber.org/zap"

	"researchhub/backend/config"
	"researchhub/backend/internal/model"
	"researchhub/backend/internal/repository"
	"researchhub/backend/pkg/jwt"
	"researchhub/backend/pkg/mail"
	"researchhub/backend/pkg/metrics"
	"researchhub/backend/pkg/redis"
	"researchhub/backend/pkg/storage"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth          AuthService
	User          UserService
	Department    DepartmentService
	AcademicYear  AcademicYearService
	YearSession   YearSessionService
	Topic         TopicService
	ApprovedTopic ApprovedTopicService
	Announcement  AnnouncementService
	Message       MessageService
	Dashboard     DashboardService
	Export        ExportService
}

// Deps 构建 Service 所需的基础设施，Redis/存储/指标均可为 nil
type Deps struct {
	Config  *config.Config
	Repo    *repository.Repository
	JWT     *jwt.Manager
	Redis   *redis.Client
	Storage storage.Provider
	Mailer  mail.Sender
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewService 创建 Service 聚合
func NewService(d Deps) *Service {
	cache := newQueryCache(&d.Config.Cache, d.Redis, d.Logger)
	validator := newProposalValidator(&d.Config.Topic)

	return &Service{
		Auth:          NewAuthService(d.Config, d.Repo, d.JWT, d.Redis, d.Storage, d.Logger),
		User:          NewUserService(d.Config, d.Repo, d.Mailer, d.Logger),
		Department:    NewDepartmentService(d.Repo, d.Logger),
		AcademicYear:  NewAcademicYearService(d.Repo, cache, d.Logger),
		YearSession:   NewYearSessionService(d.Repo, cache, d.Metrics, d.Logger),
		Topic:         NewTopicService(d.Config, d.Repo, validator, cache, d.Metrics, d.Logger),
		ApprovedTopic: NewApprovedTopicService(d.Repo, d.Storage, cache, d.Metrics, d.Logger),
		Announcement:  NewAnnouncementService(d.Repo, cache, d.Logger),
		Message:       NewMessageService(d.Repo, d.Logger),
		Dashboard:     NewDashboardService(d.Repo, cache, d.Logger),
		Export:        NewExportService(d.Repo, d.Logger),
	}
}

// Caller 当前请求的用户上下文，由 JWT 中间件解析后传入
type Caller struct {
	UserID       string
	Role         model.Role
	DepartmentID string
}

// IsAdmin 是否管理员
func (c Caller) IsAdmin() bool { return c.Role == model.RoleAdmin }

// IsAssistantOf 是否为指定学院的教学秘书
func (c Caller) IsAssistantOf(departmentID string) bool {
	return c.Role == model.RoleAssistant && c.DepartmentID != "" && c.DepartmentID == departmentID
}

// scopeDepartment 非管理员只能查看本学院数据
func (c Caller) scopeDepartment(requested string) string {
	if c.IsAdmin() || c.DepartmentID == "" {
		return requested
	}
	return c.DepartmentID
}
