package repository

import (
	"context"

	"gorm.io/gorm"

	"researchhub/backend/internal/model"
)

// AnnouncementFilter 公告过滤条件
// SystemOnly 为 true 时仅返回全校公告；否则指定学院/学年的同时包含全校公告
type AnnouncementFilter struct {
	DepartmentID   string
	AcademicYearID string
	SystemOnly     bool
}

// AnnouncementRepository 公告数据访问接口
type AnnouncementRepository interface {
	Create(ctx context.Context, a *model.Announcement) error
	GetByID(ctx context.Context, id string) (*model.Announcement, error)
	List(ctx context.Context, filter AnnouncementFilter, offset, limit int) ([]model.Announcement, int64, error)
	Update(ctx context.Context, a *model.Announcement) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type announcementRepo struct {
	db *gorm.DB
}

// NewAnnouncementRepo 创建 AnnouncementRepository 实例
func NewAnnouncementRepo(db *gorm.DB) AnnouncementRepository {
	return &announcementRepo{db: db}
}

func (r *announcementRepo) Create(ctx context.Context, a *model.Announcement) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *announcementRepo) GetByID(ctx context.Context, id string) (*model.Announcement, error) {
	var a model.Announcement
	err := r.db.WithContext(ctx).
		Where("announcement_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *announcementRepo) List(ctx context.Context, filter AnnouncementFilter, offset, limit int) ([]model.Announcement, int64, error) {
	var list []model.Announcement
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Announcement{})
	switch {
	case filter.SystemOnly:
		db = db.Where("department_id IS NULL AND academic_year_id IS NULL")
	default:
		if filter.DepartmentID != "" {
			db = db.Where("(department_id = ? OR department_id IS NULL)", filter.DepartmentID)
		}
		if filter.AcademicYearID != "" {
			db = db.Where("(academic_year_id = ? OR academic_year_id IS NULL)", filter.AcademicYearID)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("publish_at DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

func (r *announcementRepo) Update(ctx context.Context, a *model.Announcement) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *announcementRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Announcement{}).
		Where("announcement_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}
