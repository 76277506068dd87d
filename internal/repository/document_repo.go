package repository

import (
	"context"

	"gorm.io/gorm"

	"researchhub/backend/internal/model"
)

// DocumentRepository 课题材料数据访问接口
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.TopicDocument) error
	GetByID(ctx context.Context, id string) (*model.TopicDocument, error)
	GetByType(ctx context.Context, approvedTopicID string, docType model.DocumentType) (*model.TopicDocument, error)
	ListByApprovedTopic(ctx context.Context, approvedTopicID string) ([]model.TopicDocument, error)
	Update(ctx context.Context, doc *model.TopicDocument) error
	Delete(ctx context.Context, id string) error
	CountByType(ctx context.Context, filter ApprovedTopicFilter) (map[model.DocumentType]int64, error)
}

type documentRepo struct {
	db *gorm.DB
}

// NewDocumentRepo 创建 DocumentRepository 实例
func NewDocumentRepo(db *gorm.DB) DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *model.TopicDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*model.TopicDocument, error) {
	var d model.TopicDocument
	err := r.db.WithContext(ctx).
		Where("document_id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepo) GetByType(ctx context.Context, approvedTopicID string, docType model.DocumentType) (*model.TopicDocument, error) {
	var d model.TopicDocument
	err := r.db.WithContext(ctx).
		Where("approved_topic_id = ? AND document_type = ?", approvedTopicID, docType).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepo) ListByApprovedTopic(ctx context.Context, approvedTopicID string) ([]model.TopicDocument, error) {
	var docs []model.TopicDocument
	err := r.db.WithContext(ctx).
		Where("approved_topic_id = ?", approvedTopicID).
		Order("document_type ASC").
		Find(&docs).Error
	return docs, err
}

func (r *documentRepo) Update(ctx context.Context, doc *model.TopicDocument) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

func (r *documentRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("document_id = ?", id).
		Delete(&model.TopicDocument{}).Error
}

func (r *documentRepo) CountByType(ctx context.Context, filter ApprovedTopicFilter) (map[model.DocumentType]int64, error) {
	var rows []struct {
		DocumentType model.DocumentType
		Count        int64
	}
	db := r.db.WithContext(ctx).
		Model(&model.TopicDocument{}).
		Joins("JOIN approved_topics ON approved_topics.approved_topic_id = topic_documents.approved_topic_id AND approved_topics.deleted_at IS NULL").
		Joins("JOIN topics ON topics.topic_id = approved_topics.topic_id AND topics.deleted_at IS NULL")
	if filter.DepartmentID != "" {
		db = db.Where("topics.department_id = ?", filter.DepartmentID)
	}
	if filter.AcademicYearID != "" {
		db = db.Where("topics.academic_year_id = ?", filter.AcademicYearID)
	}
	err := db.
		Select("topic_documents.document_type AS document_type, COUNT(*) AS count").
		Group("topic_documents.document_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.DocumentType]int64, len(rows))
	for _, row := range rows {
		out[row.DocumentType] = row.Count
	}
	return out, nil
}
