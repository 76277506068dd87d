package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/model"
	"researchhub/backend/internal/repository"
	pkgerrors "researchhub/backend/pkg/errors"
)

// ErrAnnouncementNotFound 公告不存在
var ErrAnnouncementNotFound = errors.New("公告不存在")

// AnnouncementService 公告业务接口
type AnnouncementService interface {
	List(ctx context.Context, req *dto.AnnouncementListRequest) ([]dto.AnnouncementResponse, int64, error)
	Create(ctx context.Context, req *dto.CreateAnnouncementRequest, caller Caller) (*dto.AnnouncementResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateAnnouncementRequest, caller Caller) (*dto.AnnouncementResponse, error)
	Delete(ctx context.Context, id string, caller Caller) error
}

type announcementService struct {
	repo   *repository.Repository
	cache  *queryCache
	logger *zap.Logger
}

// NewAnnouncementService 创建 AnnouncementService 实例
func NewAnnouncementService(repo *repository.Repository, cache *queryCache, logger *zap.Logger) AnnouncementService {
	return &announcementService{repo: repo, cache: cache, logger: logger}
}

func (s *announcementService) List(ctx context.Context, req *dto.AnnouncementListRequest) ([]dto.AnnouncementResponse, int64, error) {
	filter := repository.AnnouncementFilter{
		DepartmentID:   req.DepartmentID,
		AcademicYearID: req.AcademicYearID,
		SystemOnly:     req.Scope == "system",
	}
	params := struct {
		Filter repository.AnnouncementFilter
		Offset int
		Limit  int
	}{filter, req.GetOffset(), req.GetPageSize()}

	var page cachedPage[dto.AnnouncementResponse]
	if s.cache.get(ctx, nsAnnouncements, params, &page) {
		return page.List, page.Total, nil
	}

	list, total, err := s.repo.Announcement.List(ctx, filter, params.Offset, params.Limit)
	if err != nil {
		s.logger.Error("查询公告列表失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.AnnouncementResponse, 0, len(list))
	for i := range list {
		result = append(result, toAnnouncementResponse(&list[i]))
	}

	s.cache.set(ctx, nsAnnouncements, params, cachedPage[dto.AnnouncementResponse]{List: result, Total: total})
	return result, total, nil
}

func (s *announcementService) Create(ctx context.Context, req *dto.CreateAnnouncementRequest, caller Caller) (*dto.AnnouncementResponse, error) {
	a := &model.Announcement{
		Title:          strings.TrimSpace(req.Title),
		Content:        req.Content,
		PublishAt:      time.Now(),
		DepartmentID:   nonEmpty(req.DepartmentID),
		AcademicYearID: nonEmpty(req.AcademicYearID),
	}
	if req.PublishAt != nil {
		a.PublishAt = *req.PublishAt
	}

	// 教学秘书只能向本学院发布
	switch caller.Role {
	case model.RoleAdmin:
	case model.RoleAssistant:
		if caller.DepartmentID == "" {
			return nil, ErrAssistantNeedsDepartment
		}
		dept := caller.DepartmentID
		a.DepartmentID = &dept
	default:
		return nil, pkgerrors.ErrNoPermission
	}

	if a.AcademicYearID != nil {
		if _, err := s.repo.AcademicYear.GetByID(ctx, *a.AcademicYearID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrAcademicYearNotFound
			}
			s.logger.Error("查询学年失败", zap.Error(err))
			return nil, err
		}
	}
	a.CreatedBy = &caller.UserID
	a.UpdatedBy = &caller.UserID

	if err := s.repo.Announcement.Create(ctx, a); err != nil {
		s.logger.Error("发布公告失败", zap.Error(err))
		return nil, err
	}

	s.cache.invalidate(ctx, nsAnnouncements)
	resp := toAnnouncementResponse(a)
	return &resp, nil
}

func (s *announcementService) Update(ctx context.Context, id string, req *dto.UpdateAnnouncementRequest, caller Caller) (*dto.AnnouncementResponse, error) {
	a, err := s.editable(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		a.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		a.Content = *req.Content
	}
	if req.PublishAt != nil {
		a.PublishAt = *req.PublishAt
	}
	a.UpdatedBy = &caller.UserID

	if err := s.repo.Announcement.Update(ctx, a); err != nil {
		s.logger.Error("更新公告失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.cache.invalidate(ctx, nsAnnouncements)
	resp := toAnnouncementResponse(a)
	return &resp, nil
}

func (s *announcementService) Delete(ctx context.Context, id string, caller Caller) error {
	if _, err := s.editable(ctx, id, caller); err != nil {
		return err
	}
	if err := s.repo.Announcement.Delete(ctx, id, caller.UserID); err != nil {
		s.logger.Error("删除公告失败", zap.String("id", id), zap.Error(err))
		return err
	}
	s.cache.invalidate(ctx, nsAnnouncements)
	return nil
}

// editable 管理员可改任意公告，教学秘书仅限本学院公告
func (s *announcementService) editable(ctx context.Context, id string, caller Caller) (*model.Announcement, error) {
	a, err := s.repo.Announcement.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnnouncementNotFound
		}
		s.logger.Error("查询公告失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if caller.IsAdmin() {
		return a, nil
	}
	if a.DepartmentID == nil || !caller.IsAssistantOf(*a.DepartmentID) {
		return nil, pkgerrors.ErrNoPermission
	}
	return a, nil
}

func toAnnouncementResponse(a *model.Announcement) dto.AnnouncementResponse {
	return dto.AnnouncementResponse{
		ID:             a.AnnouncementID,
		Title:          a.Title,
		Content:        a.Content,
		PublishAt:      dto.FormatTime(a.PublishAt),
		DepartmentID:   a.DepartmentID,
		AcademicYearID: a.AcademicYearID,
		CreatedAt:      dto.FormatTime(a.CreatedAt),
	}
}
