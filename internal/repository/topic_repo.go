package repository

import (
	"context"

	"gorm.io/gorm"

	"researchhub/backend/internal/model"
	pkgerrors "researchhub/backend/pkg/errors"
)

// TopicFilter 申报过滤条件
type TopicFilter struct {
	DepartmentID   string
	AcademicYearID string
	Status         model.TopicStatus
	Keyword        string
}

// TopicRepository 选题申报数据访问接口
type TopicRepository interface {
	Create(ctx context.Context, topic *model.Topic) error
	GetByID(ctx context.Context, id string) (*model.Topic, error)
	// Update 按版本号更新，版本不一致返回 ErrOptimisticLock
	Update(ctx context.Context, topic *model.Topic) error
	List(ctx context.Context, filter TopicFilter, offset, limit int) ([]model.Topic, int64, error)
	ListByUser(ctx context.Context, userID string) ([]model.Topic, error)
	CountByStatus(ctx context.Context, filter TopicFilter) (map[model.TopicStatus]int64, error)
}

type topicRepo struct {
	db *gorm.DB
}

// NewTopicRepo 创建 TopicRepository 实例
func NewTopicRepo(db *gorm.DB) TopicRepository {
	return &topicRepo{db: db}
}

func (r *topicRepo) Create(ctx context.Context, topic *model.Topic) error {
	return r.db.WithContext(ctx).Omit("Members", "ApprovedTopic", "Proposer").Create(topic).Error
}

func (r *topicRepo) GetByID(ctx context.Context, id string) (*model.Topic, error) {
	var t model.Topic
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Members.User").
		Preload("ApprovedTopic").
		Where("topic_id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *topicRepo) Update(ctx context.Context, topic *model.Topic) error {
	res := r.db.WithContext(ctx).
		Model(&model.Topic{}).
		Where("topic_id = ? AND version = ?", topic.TopicID, topic.Version).
		Updates(map[string]interface{}{
			"title":             topic.Title,
			"short_description": topic.ShortDescription,
			"objective":         topic.Objective,
			"content":           topic.Content,
			"budget":            topic.Budget,
			"note":              topic.Note,
			"status":            topic.Status,
			"updated_by":        topic.UpdatedBy,
			"updated_at":        gorm.Expr("NOW()"),
			"version":           gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	topic.Version++
	return nil
}

func (r *topicRepo) applyFilter(db *gorm.DB, filter TopicFilter) *gorm.DB {
	if filter.DepartmentID != "" {
		db = db.Where("department_id = ?", filter.DepartmentID)
	}
	if filter.AcademicYearID != "" {
		db = db.Where("academic_year_id = ?", filter.AcademicYearID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Keyword != "" {
		db = db.Where("title ILIKE ?", "%"+filter.Keyword+"%")
	}
	return db
}

func (r *topicRepo) List(ctx context.Context, filter TopicFilter, offset, limit int) ([]model.Topic, int64, error) {
	var topics []model.Topic
	var total int64

	db := r.applyFilter(r.db.WithContext(ctx).Model(&model.Topic{}), filter)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.
		Preload("Members").
		Preload("Members.User").
		Preload("ApprovedTopic").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&topics).Error
	if err != nil {
		return nil, 0, err
	}
	return topics, total, nil
}

func (r *topicRepo) ListByUser(ctx context.Context, userID string) ([]model.Topic, error) {
	var topics []model.Topic
	sub := r.db.Model(&model.TopicMember{}).Select("topic_id").Where("user_id = ?", userID)
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Members.User").
		Preload("ApprovedTopic").
		Where("proposed_by = ? OR topic_id IN (?)", userID, sub).
		Order("created_at DESC").
		Find(&topics).Error
	return topics, err
}

func (r *topicRepo) CountByStatus(ctx context.Context, filter TopicFilter) (map[model.TopicStatus]int64, error) {
	var rows []struct {
		Status model.TopicStatus
		Count  int64
	}
	filter.Status = ""
	err := r.applyFilter(r.db.WithContext(ctx).Model(&model.Topic{}), filter).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.TopicStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
