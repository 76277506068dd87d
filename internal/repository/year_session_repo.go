package repository

import (
	"context"

	"gorm.io/gorm"

	"researchhub/backend/internal/model"
)

// SessionFilter 批次过滤条件
type SessionFilter struct {
	AcademicYearID string
	DepartmentID   string
	Status         model.SessionStatus
}

// YearSessionRepository 学年批次数据访问接口
type YearSessionRepository interface {
	Create(ctx context.Context, session *model.YearSession) error
	GetByID(ctx context.Context, id string) (*model.YearSession, error)
	Get(ctx context.Context, academicYearID, departmentID string) (*model.YearSession, error)
	List(ctx context.Context, filter SessionFilter) ([]model.YearSession, error)
	Update(ctx context.Context, session *model.YearSession) error
	Delete(ctx context.Context, id string) error
}

type yearSessionRepo struct {
	db *gorm.DB
}

// NewYearSessionRepo 创建 YearSessionRepository 实例
func NewYearSessionRepo(db *gorm.DB) YearSessionRepository {
	return &yearSessionRepo{db: db}
}

func (r *yearSessionRepo) Create(ctx context.Context, session *model.YearSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *yearSessionRepo) GetByID(ctx context.Context, id string) (*model.YearSession, error) {
	var s model.YearSession
	err := r.db.WithContext(ctx).
		Preload("AcademicYear").
		Preload("Department").
		Where("session_id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *yearSessionRepo) Get(ctx context.Context, academicYearID, departmentID string) (*model.YearSession, error) {
	var s model.YearSession
	err := r.db.WithContext(ctx).
		Where("academic_year_id = ? AND department_id = ?", academicYearID, departmentID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *yearSessionRepo) List(ctx context.Context, filter SessionFilter) ([]model.YearSession, error) {
	var sessions []model.YearSession
	db := r.db.WithContext(ctx).
		Preload("AcademicYear").
		Preload("Department")
	if filter.AcademicYearID != "" {
		db = db.Where("academic_year_id = ?", filter.AcademicYearID)
	}
	if filter.DepartmentID != "" {
		db = db.Where("department_id = ?", filter.DepartmentID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	err := db.Order("created_at DESC").Find(&sessions).Error
	return sessions, err
}

func (r *yearSessionRepo) Update(ctx context.Context, session *model.YearSession) error {
	return r.db.WithContext(ctx).Omit("AcademicYear", "Department").Save(session).Error
}

func (r *yearSessionRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", id).
		Delete(&model.YearSession{}).Error
}
