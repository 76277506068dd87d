package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/lifecycle"
	"researchhub/backend/internal/model"
	"researchhub/backend/internal/repository"
	pkgerrors "researchhub/backend/pkg/errors"
	"researchhub/backend/pkg/metrics"
)

// ── 学年批次业务错误 ──

var (
	ErrSessionNotFound          = errors.New("该学院在此学年尚未开放申报批次")
	ErrSessionExists            = errors.New("该学院在此学年已存在批次")
	ErrInvalidStatus            = errors.New("无效的状态值")
	ErrInvalidSessionTransition = errors.New("不允许的批次状态流转")
	ErrSessionHasPendingTopics  = errors.New("仍有待审核或待补充的申报，无法进入执行阶段")
	ErrSessionHasRunningTopics  = errors.New("仍有执行中的课题，无法结束批次")
	ErrSessionInUse             = errors.New("批次下已有申报，无法删除")
)

// YearSessionService 学院学年批次业务接口
type YearSessionService interface {
	Create(ctx context.Context, req *dto.CreateYearSessionRequest, callerID string) (*dto.YearSessionResponse, error)
	List(ctx context.Context, req *dto.YearSessionListRequest, caller Caller) ([]dto.YearSessionResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateYearSessionRequest, caller Caller) (*dto.YearSessionResponse, error)
	Delete(ctx context.Context, id string, caller Caller) error
}

type yearSessionService struct {
	repo    *repository.Repository
	cache   *queryCache
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewYearSessionService 创建 YearSessionService 实例
func NewYearSessionService(repo *repository.Repository, cache *queryCache, m *metrics.Metrics, logger *zap.Logger) YearSessionService {
	return &yearSessionService{repo: repo, cache: cache, metrics: m, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *yearSessionService) Create(ctx context.Context, req *dto.CreateYearSessionRequest, callerID string) (*dto.YearSessionResponse, error) {
	year, err := s.repo.AcademicYear.GetByID(ctx, req.AcademicYearID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAcademicYearNotFound
		}
		s.logger.Error("查询学年失败", zap.Error(err))
		return nil, err
	}
	if year.Status == model.AcademicYearEnd {
		return nil, ErrAcademicYearEnded
	}

	if _, err := s.repo.Department.GetByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepartmentNotFound
		}
		s.logger.Error("查询学院失败", zap.Error(err))
		return nil, err
	}

	if _, err := s.repo.YearSession.Get(ctx, req.AcademicYearID, req.DepartmentID); err == nil {
		return nil, ErrSessionExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询批次失败", zap.Error(err))
		return nil, err
	}

	session := &model.YearSession{
		AcademicYearID: req.AcademicYearID,
		DepartmentID:   req.DepartmentID,
		Status:         model.SessionOnRegistration,
	}
	session.CreatedBy = &callerID
	session.UpdatedBy = &callerID

	if err := s.repo.YearSession.Create(ctx, session); err != nil {
		s.logger.Error("创建批次失败", zap.Error(err))
		return nil, err
	}

	created, err := s.repo.YearSession.GetByID(ctx, session.SessionID)
	if err != nil {
		created = session
	}
	resp := toYearSessionResponse(created)
	return &resp, nil
}

// ────────────────────── List ──────────────────────

func (s *yearSessionService) List(ctx context.Context, req *dto.YearSessionListRequest, caller Caller) ([]dto.YearSessionResponse, error) {
	status, _ := model.ParseSessionStatus(req.Status)
	filter := repository.SessionFilter{
		AcademicYearID: req.AcademicYearID,
		DepartmentID:   caller.scopeDepartment(req.DepartmentID),
		Status:         status,
	}

	sessions, err := s.repo.YearSession.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询批次列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.YearSessionResponse, 0, len(sessions))
	for i := range sessions {
		result = append(result, toYearSessionResponse(&sessions[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *yearSessionService) Update(ctx context.Context, id string, req *dto.UpdateYearSessionRequest, caller Caller) (*dto.YearSessionResponse, error) {
	session, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !caller.IsAssistantOf(session.DepartmentID) {
		return nil, pkgerrors.ErrNoPermission
	}

	to, ok := model.ParseSessionStatus(req.Status)
	if !ok {
		return nil, ErrInvalidStatus
	}

	year := session.AcademicYear
	if year == nil {
		if year, err = s.repo.AcademicYear.GetByID(ctx, session.AcademicYearID); err != nil {
			s.logger.Error("查询学年失败", zap.Error(err))
			return nil, err
		}
	}
	if year.Status == model.AcademicYearEnd {
		return nil, ErrAcademicYearEnded
	}

	from := session.Status
	if !lifecycle.CanSessionTransition(from, to) {
		return nil, ErrInvalidSessionTransition
	}
	if err := s.checkTransitionPreconditions(ctx, session, to); err != nil {
		return nil, err
	}

	session.Status = to
	session.UpdatedBy = &caller.UserID
	if err := s.repo.YearSession.Update(ctx, session); err != nil {
		s.logger.Error("更新批次失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	if from != to {
		s.metrics.ObserveTransition("session", string(from), string(to))
		s.logger.Info("批次状态变更",
			zap.String("session_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("operator", caller.UserID))
	}
	s.cache.invalidate(ctx, nsTopics, nsApprovedTopics, nsDashboard)

	resp := toYearSessionResponse(session)
	return &resp, nil
}

// checkTransitionPreconditions 进入执行阶段要求审核全部结束，结束批次要求没有执行中的课题
func (s *yearSessionService) checkTransitionPreconditions(ctx context.Context, session *model.YearSession, to model.SessionStatus) error {
	switch to {
	case model.SessionInProgress:
		counts, err := s.repo.Topic.CountByStatus(ctx, repository.TopicFilter{
			DepartmentID:   session.DepartmentID,
			AcademicYearID: session.AcademicYearID,
		})
		if err != nil {
			s.logger.Error("统计申报状态失败", zap.Error(err))
			return err
		}
		if counts[model.TopicPending]+counts[model.TopicNeedsUpdate] > 0 {
			return ErrSessionHasPendingTopics
		}
	case model.SessionCompleted:
		counts, err := s.repo.ApprovedTopic.CountByStatus(ctx, repository.ApprovedTopicFilter{
			DepartmentID:   session.DepartmentID,
			AcademicYearID: session.AcademicYearID,
		})
		if err != nil {
			s.logger.Error("统计立项状态失败", zap.Error(err))
			return err
		}
		if counts[model.ApprovedInProgress] > 0 {
			return ErrSessionHasRunningTopics
		}
	case model.SessionOnRegistration, model.SessionUnderReview:
	}
	return nil
}

// ────────────────────── Delete ──────────────────────

func (s *yearSessionService) Delete(ctx context.Context, id string, caller Caller) error {
	session, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !caller.IsAdmin() {
		return pkgerrors.ErrNoPermission
	}

	counts, err := s.repo.Topic.CountByStatus(ctx, repository.TopicFilter{
		DepartmentID:   session.DepartmentID,
		AcademicYearID: session.AcademicYearID,
	})
	if err != nil {
		s.logger.Error("统计申报状态失败", zap.Error(err))
		return err
	}
	for _, n := range counts {
		if n > 0 {
			return ErrSessionInUse
		}
	}

	if err := s.repo.YearSession.Delete(ctx, id); err != nil {
		s.logger.Error("删除批次失败", zap.String("id", id), zap.Error(err))
		return err
	}
	s.cache.invalidate(ctx, nsDashboard)
	return nil
}

// ── 内部辅助方法 ──

func (s *yearSessionService) get(ctx context.Context, id string) (*model.YearSession, error) {
	session, err := s.repo.YearSession.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("查询批次失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return session, nil
}

// loadSession 查询课题所属 (学年, 学院) 的批次
func loadSession(ctx context.Context, repo *repository.Repository, academicYearID, departmentID string) (*model.YearSession, error) {
	session, err := repo.YearSession.Get(ctx, academicYearID, departmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func toYearSessionResponse(sess *model.YearSession) dto.YearSessionResponse {
	resp := dto.YearSessionResponse{
		ID:             sess.SessionID,
		AcademicYearID: sess.AcademicYearID,
		DepartmentID:   sess.DepartmentID,
		Status:         string(sess.Status),
		CreatedAt:      dto.FormatTime(sess.CreatedAt),
		UpdatedAt:      dto.FormatTime(sess.UpdatedAt),
	}
	if sess.AcademicYear != nil {
		resp.Year = sess.AcademicYear.Year
	}
	if sess.Department != nil {
		resp.DepartmentName = sess.Department.Name
	}
	return resp
}
