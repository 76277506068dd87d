package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"researchhub/backend/internal/model"
	pkgerrors "researchhub/backend/pkg/errors"
)

// ApprovedTopicFilter 立项课题过滤条件（学院、学年取自关联的申报）
type ApprovedTopicFilter struct {
	DepartmentID   string
	AcademicYearID string
	Status         model.ApprovedTopicStatus
	Keyword        string
}

// ApprovedTopicRepository 立项课题数据访问接口
type ApprovedTopicRepository interface {
	Create(ctx context.Context, at *model.ApprovedTopic) error
	GetByID(ctx context.Context, id string) (*model.ApprovedTopic, error)
	GetByTopicID(ctx context.Context, topicID string) (*model.ApprovedTopic, error)
	// LockByID 行级锁定立项记录，用于串行化同一课题的材料写入
	LockByID(ctx context.Context, id string) (*model.ApprovedTopic, error)
	// Update 按版本号更新，版本不一致返回 ErrOptimisticLock
	Update(ctx context.Context, at *model.ApprovedTopic) error
	List(ctx context.Context, filter ApprovedTopicFilter, offset, limit int) ([]model.ApprovedTopic, int64, error)
	// CountByYear 统计学年内已分配编号数（含软删除），用于生成流水号
	CountByYear(ctx context.Context, academicYearID string) (int64, error)
	CountByStatus(ctx context.Context, filter ApprovedTopicFilter) (map[model.ApprovedTopicStatus]int64, error)
}

type approvedTopicRepo struct {
	db *gorm.DB
}

// NewApprovedTopicRepo 创建 ApprovedTopicRepository 实例
func NewApprovedTopicRepo(db *gorm.DB) ApprovedTopicRepository {
	return &approvedTopicRepo{db: db}
}

func (r *approvedTopicRepo) Create(ctx context.Context, at *model.ApprovedTopic) error {
	return r.db.WithContext(ctx).Omit("Topic", "Documents").Create(at).Error
}

func (r *approvedTopicRepo) preloadAll(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Topic").
		Preload("Topic.Members").
		Preload("Topic.Members.User").
		Preload("Documents")
}

func (r *approvedTopicRepo) GetByID(ctx context.Context, id string) (*model.ApprovedTopic, error) {
	var at model.ApprovedTopic
	err := r.preloadAll(r.db.WithContext(ctx)).
		Where("approved_topic_id = ?", id).
		First(&at).Error
	if err != nil {
		return nil, err
	}
	return &at, nil
}

func (r *approvedTopicRepo) GetByTopicID(ctx context.Context, topicID string) (*model.ApprovedTopic, error) {
	var at model.ApprovedTopic
	err := r.preloadAll(r.db.WithContext(ctx)).
		Where("topic_id = ?", topicID).
		First(&at).Error
	if err != nil {
		return nil, err
	}
	return &at, nil
}

func (r *approvedTopicRepo) LockByID(ctx context.Context, id string) (*model.ApprovedTopic, error) {
	var at model.ApprovedTopic
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("approved_topic_id = ?", id).
		First(&at).Error
	if err != nil {
		return nil, err
	}
	return &at, nil
}

func (r *approvedTopicRepo) Update(ctx context.Context, at *model.ApprovedTopic) error {
	res := r.db.WithContext(ctx).
		Model(&model.ApprovedTopic{}).
		Where("approved_topic_id = ? AND version = ?", at.ApprovedTopicID, at.Version).
		Updates(map[string]interface{}{
			"prize":          at.Prize,
			"field_research": at.FieldResearch,
			"type_research":  at.TypeResearch,
			"status":         at.Status,
			"updated_by":     at.UpdatedBy,
			"updated_at":     gorm.Expr("NOW()"),
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	at.Version++
	return nil
}

func (r *approvedTopicRepo) filtered(ctx context.Context, filter ApprovedTopicFilter) *gorm.DB {
	db := r.db.WithContext(ctx).
		Model(&model.ApprovedTopic{}).
		Joins("JOIN topics ON topics.topic_id = approved_topics.topic_id AND topics.deleted_at IS NULL")
	if filter.DepartmentID != "" {
		db = db.Where("topics.department_id = ?", filter.DepartmentID)
	}
	if filter.AcademicYearID != "" {
		db = db.Where("topics.academic_year_id = ?", filter.AcademicYearID)
	}
	if filter.Status != "" {
		db = db.Where("approved_topics.status = ?", filter.Status)
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		db = db.Where("(topics.title ILIKE ? OR approved_topics.code ILIKE ?)", like, like)
	}
	return db
}

func (r *approvedTopicRepo) List(ctx context.Context, filter ApprovedTopicFilter, offset, limit int) ([]model.ApprovedTopic, int64, error) {
	var list []model.ApprovedTopic
	var total int64

	db := r.filtered(ctx, filter)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.preloadAll(db).Order("approved_topics.code ASC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *approvedTopicRepo) CountByYear(ctx context.Context, academicYearID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.ApprovedTopic{}).
		Joins("JOIN topics ON topics.topic_id = approved_topics.topic_id").
		Where("topics.academic_year_id = ?", academicYearID).
		Count(&n).Error
	return n, err
}

func (r *approvedTopicRepo) CountByStatus(ctx context.Context, filter ApprovedTopicFilter) (map[model.ApprovedTopicStatus]int64, error) {
	var rows []struct {
		Status model.ApprovedTopicStatus
		Count  int64
	}
	filter.Status = ""
	err := r.filtered(ctx, filter).
		Select("approved_topics.status AS status, COUNT(*) AS count").
		Group("approved_topics.status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.ApprovedTopicStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
