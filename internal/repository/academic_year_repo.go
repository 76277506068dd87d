package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"researchhub/backend/internal/model"
)

// AcademicYearRepository 学年数据访问接口
type AcademicYearRepository interface {
	Create(ctx context.Context, year *model.AcademicYear) error
	GetByID(ctx context.Context, id string) (*model.AcademicYear, error)
	GetByYear(ctx context.Context, year int) (*model.AcademicYear, error)
	GetActive(ctx context.Context) (*model.AcademicYear, error)
	// LockByID 行级锁定学年记录，用于串行化立项编号分配
	LockByID(ctx context.Context, id string) (*model.AcademicYear, error)
	List(ctx context.Context) ([]model.AcademicYear, error)
	Update(ctx context.Context, year *model.AcademicYear) error
	ClearActive(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

type academicYearRepo struct {
	db *gorm.DB
}

// NewAcademicYearRepo 创建 AcademicYearRepository 实例
func NewAcademicYearRepo(db *gorm.DB) AcademicYearRepository {
	return &academicYearRepo{db: db}
}

func (r *academicYearRepo) Create(ctx context.Context, year *model.AcademicYear) error {
	return r.db.WithContext(ctx).Create(year).Error
}

func (r *academicYearRepo) GetByID(ctx context.Context, id string) (*model.AcademicYear, error) {
	var y model.AcademicYear
	err := r.db.WithContext(ctx).
		Where("academic_year_id = ?", id).
		First(&y).Error
	if err != nil {
		return nil, err
	}
	return &y, nil
}

func (r *academicYearRepo) GetByYear(ctx context.Context, year int) (*model.AcademicYear, error) {
	var y model.AcademicYear
	err := r.db.WithContext(ctx).
		Where("year = ?", year).
		First(&y).Error
	if err != nil {
		return nil, err
	}
	return &y, nil
}

func (r *academicYearRepo) GetActive(ctx context.Context) (*model.AcademicYear, error) {
	var y model.AcademicYear
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		First(&y).Error
	if err != nil {
		return nil, err
	}
	return &y, nil
}

func (r *academicYearRepo) LockByID(ctx context.Context, id string) (*model.AcademicYear, error) {
	var y model.AcademicYear
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("academic_year_id = ?", id).
		First(&y).Error
	if err != nil {
		return nil, err
	}
	return &y, nil
}

func (r *academicYearRepo) List(ctx context.Context) ([]model.AcademicYear, error) {
	var years []model.AcademicYear
	err := r.db.WithContext(ctx).
		Order("year DESC").
		Find(&years).Error
	return years, err
}

func (r *academicYearRepo) Update(ctx context.Context, year *model.AcademicYear) error {
	return r.db.WithContext(ctx).Save(year).Error
}

func (r *academicYearRepo) ClearActive(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&model.AcademicYear{}).
		Where("is_active = ?", true).
		Update("is_active", false).Error
}

func (r *academicYearRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.AcademicYear{}).Count(&n).Error
	return n, err
}
