package repository

import (
	"context"

	"gorm.io/gorm"

	"researchhub/backend/internal/model"
)

// UserFilter 用户列表过滤条件
type UserFilter struct {
	DepartmentID string
	Role         model.Role
	Keyword      string
}

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, mustChange bool) error
	List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error)
	ListTeachers(ctx context.Context, departmentID, keyword string) ([]model.User, error)
	Search(ctx context.Context, keyword, excludeID string, limit int) ([]model.User, error)
	CountByRole(ctx context.Context) (map[model.Role]int64, error)
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Department").
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Find(&users).Error
	return users, err
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Department").
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Omit("Department").Save(user).Error
}

func (r *userRepo) UpdatePassword(ctx context.Context, id, passwordHash string, mustChange bool) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", id).
		Updates(map[string]interface{}{
			"password_hash":        passwordHash,
			"must_change_password": mustChange,
			"updated_at":           gorm.Expr("NOW()"),
		}).Error
}

func (r *userRepo) List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.db.WithContext(ctx).Model(&model.User{})
	if filter.DepartmentID != "" {
		db = db.Where("department_id = ?", filter.DepartmentID)
	}
	if filter.Role != "" {
		db = db.Where("role = ?", filter.Role)
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		db = db.Where("(username ILIKE ? OR full_name ILIKE ? OR email ILIKE ?)", like, like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Department").
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepo) ListTeachers(ctx context.Context, departmentID, keyword string) ([]model.User, error) {
	var users []model.User
	db := r.db.WithContext(ctx).Where("role = ?", model.RoleTeacher)
	if departmentID != "" {
		db = db.Where("department_id = ?", departmentID)
	}
	if keyword != "" {
		like := "%" + keyword + "%"
		db = db.Where("(username ILIKE ? OR full_name ILIKE ?)", like, like)
	}
	err := db.Order("full_name ASC").Find(&users).Error
	return users, err
}

func (r *userRepo) Search(ctx context.Context, keyword, excludeID string, limit int) ([]model.User, error) {
	var users []model.User
	like := "%" + keyword + "%"
	db := r.db.WithContext(ctx).
		Where("(username ILIKE ? OR full_name ILIKE ? OR email ILIKE ?)", like, like, like)
	if excludeID != "" {
		db = db.Where("user_id <> ?", excludeID)
	}
	err := db.Order("full_name ASC").Limit(limit).Find(&users).Error
	return users, err
}

func (r *userRepo) CountByRole(ctx context.Context) (map[model.Role]int64, error) {
	var rows []struct {
		Role  model.Role
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.Role]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Count
	}
	return out, nil
}
