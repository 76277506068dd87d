package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/model"
	"researchhub/backend/internal/repository"
)

// DashboardService 统计看板业务接口
type DashboardService interface {
	Admin(ctx context.Context) (*dto.AdminDashboardResponse, error)
	// Assistant 教学秘书所在学院在指定学年（默认当前学年）的统计
	Assistant(ctx context.Context, req *dto.AssistantDashboardRequest, caller Caller) (*dto.AssistantDashboardResponse, error)
}

type dashboardService struct {
	repo   *repository.Repository
	cache  *queryCache
	logger *zap.Logger
}

// NewDashboardService 创建 DashboardService 实例
func NewDashboardService(repo *repository.Repository, cache *queryCache, logger *zap.Logger) DashboardService {
	return &dashboardService{repo: repo, cache: cache, logger: logger}
}

// ────────────────────── Admin ──────────────────────

func (s *dashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	const cacheParams = "admin"
	var cached dto.AdminDashboardResponse
	if s.cache.get(ctx, nsDashboard, cacheParams, &cached) {
		return &cached, nil
	}

	byRole, err := s.repo.User.CountByRole(ctx)
	if err != nil {
		s.logger.Error("统计用户失败", zap.Error(err))
		return nil, err
	}
	departments, err := s.repo.Department.Count(ctx)
	if err != nil {
		s.logger.Error("统计学院失败", zap.Error(err))
		return nil, err
	}
	years, err := s.repo.AcademicYear.Count(ctx)
	if err != nil {
		s.logger.Error("统计学年失败", zap.Error(err))
		return nil, err
	}
	topics, err := s.repo.Topic.CountByStatus(ctx, repository.TopicFilter{})
	if err != nil {
		s.logger.Error("统计申报失败", zap.Error(err))
		return nil, err
	}
	approved, err := s.repo.ApprovedTopic.CountByStatus(ctx, repository.ApprovedTopicFilter{})
	if err != nil {
		s.logger.Error("统计立项失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.AdminDashboardResponse{
		UsersByRole:        make(map[string]int64, len(byRole)),
		TotalDepartments:   departments,
		TotalAcademicYears: years,
		TopicsByStatus:     make(map[string]int64, len(topics)),
	}
	for role, n := range byRole {
		resp.UsersByRole[string(role)] = n
		resp.TotalUsers += n
	}
	for status, n := range topics {
		resp.TopicsByStatus[string(status)] = n
		resp.TotalTopics += n
	}
	for _, n := range approved {
		resp.TotalApprovedTopics += n
	}

	active, err := s.repo.AcademicYear.GetActive(ctx)
	switch {
	case err == nil:
		y := active.Year
		resp.ActiveYear = &y
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Error("查询当前学年失败", zap.Error(err))
		return nil, err
	}

	s.cache.set(ctx, nsDashboard, cacheParams, resp)
	return resp, nil
}

// ────────────────────── Assistant ──────────────────────

func (s *dashboardService) Assistant(ctx context.Context, req *dto.AssistantDashboardRequest, caller Caller) (*dto.AssistantDashboardResponse, error) {
	if caller.DepartmentID == "" {
		return nil, ErrUserNoDepartment
	}
	year, err := s.resolveYear(ctx, req.AcademicYearID)
	if err != nil {
		return nil, err
	}

	params := struct {
		DepartmentID   string
		AcademicYearID string
	}{caller.DepartmentID, year.AcademicYearID}
	var cached dto.AssistantDashboardResponse
	if s.cache.get(ctx, nsDashboard, params, &cached) {
		return &cached, nil
	}

	topicFilter := repository.TopicFilter{DepartmentID: caller.DepartmentID, AcademicYearID: year.AcademicYearID}
	approvedFilter := repository.ApprovedTopicFilter{DepartmentID: caller.DepartmentID, AcademicYearID: year.AcademicYearID}

	topics, err := s.repo.Topic.CountByStatus(ctx, topicFilter)
	if err != nil {
		s.logger.Error("统计申报失败", zap.Error(err))
		return nil, err
	}
	approved, err := s.repo.ApprovedTopic.CountByStatus(ctx, approvedFilter)
	if err != nil {
		s.logger.Error("统计立项失败", zap.Error(err))
		return nil, err
	}
	docs, err := s.repo.Document.CountByType(ctx, approvedFilter)
	if err != nil {
		s.logger.Error("统计课题材料失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.AssistantDashboardResponse{
		DepartmentID:     caller.DepartmentID,
		AcademicYearID:   year.AcademicYearID,
		Year:             year.Year,
		TopicsByStatus:   make(map[string]int64, len(topics)),
		ApprovedByStatus: make(map[string]int64, len(approved)),
		DocumentsByType:  make(map[string]int64, len(model.AllDocumentTypes)),
	}
	for status, n := range topics {
		resp.TopicsByStatus[string(status)] = n
		resp.TotalTopics += n
	}
	for status, n := range approved {
		resp.ApprovedByStatus[string(status)] = n
		resp.TotalApproved += n
	}
	for _, dt := range model.AllDocumentTypes {
		resp.DocumentsByType[string(dt)] = docs[dt]
	}

	session, err := loadSession(ctx, s.repo, year.AcademicYearID, caller.DepartmentID)
	switch {
	case err == nil:
		resp.SessionStatus = string(session.Status)
	case !errors.Is(err, ErrSessionNotFound):
		s.logger.Error("查询批次失败", zap.Error(err))
		return nil, err
	}

	s.cache.set(ctx, nsDashboard, params, resp)
	return resp, nil
}

func (s *dashboardService) resolveYear(ctx context.Context, id string) (*model.AcademicYear, error) {
	if id != "" {
		year, err := s.repo.AcademicYear.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrAcademicYearNotFound
			}
			s.logger.Error("查询学年失败", zap.Error(err))
			return nil, err
		}
		return year, nil
	}
	year, err := s.repo.AcademicYear.GetActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveAcademicYear
		}
		s.logger.Error("查询当前学年失败", zap.Error(err))
		return nil, err
	}
	return year, nil
}
