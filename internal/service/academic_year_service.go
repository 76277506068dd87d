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

// ── 学年模块业务错误 ──

var (
	ErrAcademicYearNotFound = errors.New("学年不存在")
	ErrAcademicYearExists   = errors.New("该学年已存在")
	ErrAcademicYearEnded    = errors.New("学年已结束")
	ErrYearHasOpenSessions  = errors.New("学年下仍有未完成的批次")
	ErrNoActiveAcademicYear = errors.New("当前没有启用的学年")
)

// AcademicYearService 学年业务接口
type AcademicYearService interface {
	Create(ctx context.Context, req *dto.CreateAcademicYearRequest, callerID string) (*dto.AcademicYearResponse, error)
	GetByID(ctx context.Context, id string) (*dto.AcademicYearResponse, error)
	List(ctx context.Context) ([]dto.AcademicYearResponse, error)
	// Update 修改学年状态或启用标记；结束学年要求所有批次已 COMPLETED
	Update(ctx context.Context, id string, req *dto.UpdateAcademicYearRequest, callerID string) (*dto.AcademicYearResponse, error)
}

type academicYearService struct {
	repo   *repository.Repository
	cache  *queryCache
	logger *zap.Logger
}

// NewAcademicYearService 创建 AcademicYearService 实例
func NewAcademicYearService(repo *repository.Repository, cache *queryCache, logger *zap.Logger) AcademicYearService {
	return &academicYearService{repo: repo, cache: cache, logger: logger}
}

func (s *academicYearService) Create(ctx context.Context, req *dto.CreateAcademicYearRequest, callerID string) (*dto.AcademicYearResponse, error) {
	_, err := s.repo.AcademicYear.GetByYear(ctx, req.Year)
	if err == nil {
		return nil, ErrAcademicYearExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询学年失败", zap.Int("year", req.Year), zap.Error(err))
		return nil, err
	}

	year := &model.AcademicYear{
		Year:     req.Year,
		Status:   model.AcademicYearStart,
		IsActive: req.IsActive,
	}
	year.CreatedBy = &callerID
	year.UpdatedBy = &callerID

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		// 同一时间只允许一个启用的学年
		if year.IsActive {
			if err := txRepo.AcademicYear.ClearActive(ctx); err != nil {
				return err
			}
		}
		return txRepo.AcademicYear.Create(ctx, year)
	})
	if err != nil {
		s.logger.Error("创建学年失败", zap.Int("year", req.Year), zap.Error(err))
		return nil, err
	}

	s.cache.invalidate(ctx, nsDashboard)
	resp := toAcademicYearResponse(year)
	return &resp, nil
}

func (s *academicYearService) GetByID(ctx context.Context, id string) (*dto.AcademicYearResponse, error) {
	year, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toAcademicYearResponse(year)
	return &resp, nil
}

func (s *academicYearService) List(ctx context.Context) ([]dto.AcademicYearResponse, error) {
	years, err := s.repo.AcademicYear.List(ctx)
	if err != nil {
		s.logger.Error("查询学年列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.AcademicYearResponse, 0, len(years))
	for i := range years {
		result = append(result, toAcademicYearResponse(&years[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *academicYearService) Update(ctx context.Context, id string, req *dto.UpdateAcademicYearRequest, callerID string) (*dto.AcademicYearResponse, error) {
	year, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		status, ok := model.ParseAcademicYearStatus(*req.Status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		if status != year.Status {
			// END 为终态
			if year.Status == model.AcademicYearEnd {
				return nil, ErrAcademicYearEnded
			}
			if err := s.ensureSessionsCompleted(ctx, year.AcademicYearID); err != nil {
				return nil, err
			}
			year.Status = status
		}
	}

	activate := req.IsActive != nil && *req.IsActive && !year.IsActive
	if req.IsActive != nil {
		year.IsActive = *req.IsActive
	}
	year.UpdatedBy = &callerID

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if activate {
			if err := txRepo.AcademicYear.ClearActive(ctx); err != nil {
				return err
			}
		}
		return txRepo.AcademicYear.Update(ctx, year)
	})
	if err != nil {
		s.logger.Error("更新学年失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.cache.invalidate(ctx, nsDashboard)
	resp := toAcademicYearResponse(year)
	return &resp, nil
}

// ── 内部辅助方法 ──

func (s *academicYearService) get(ctx context.Context, id string) (*model.AcademicYear, error) {
	year, err := s.repo.AcademicYear.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAcademicYearNotFound
		}
		s.logger.Error("查询学年失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return year, nil
}

func (s *academicYearService) ensureSessionsCompleted(ctx context.Context, yearID string) error {
	sessions, err := s.repo.YearSession.List(ctx, repository.SessionFilter{AcademicYearID: yearID})
	if err != nil {
		s.logger.Error("查询学年批次失败", zap.String("academic_year_id", yearID), zap.Error(err))
		return err
	}
	for _, sess := range sessions {
		if sess.Status != model.SessionCompleted {
			return ErrYearHasOpenSessions
		}
	}
	return nil
}

func toAcademicYearResponse(y *model.AcademicYear) dto.AcademicYearResponse {
	return dto.AcademicYearResponse{
		ID:        y.AcademicYearID,
		Year:      y.Year,
		Status:    string(y.Status),
		IsActive:  y.IsActive,
		CreatedAt: dto.FormatTime(y.CreatedAt),
	}
}
