package repository

import (
	"context"

	"gorm.io/gorm"

	"researchhub/backend/internal/model"
)

// MessageRepository 站内消息数据访问接口
type MessageRepository interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	ListInbox(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Message, int64, error)
	ListSent(ctx context.Context, userID string, offset, limit int) ([]model.Message, int64, error)
	Update(ctx context.Context, m *model.Message) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type messageRepo struct {
	db *gorm.DB
}

// NewMessageRepo 创建 MessageRepository 实例
func NewMessageRepo(db *gorm.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Create(ctx context.Context, m *model.Message) error {
	return r.db.WithContext(ctx).Omit("Sender", "Receiver").Create(m).Error
}

func (r *messageRepo) GetByID(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		Where("message_id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepo) ListInbox(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Message, int64, error) {
	var list []model.Message
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Message{}).Where("receiver_id = ?", userID)
	if unreadOnly {
		db = db.Where("is_read = ?", false)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Preload("Sender").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	return list, total, err
}

func (r *messageRepo) ListSent(ctx context.Context, userID string, offset, limit int) ([]model.Message, int64, error) {
	var list []model.Message
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Message{}).Where("sender_id = ?", userID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Preload("Receiver").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	return list, total, err
}

func (r *messageRepo) Update(ctx context.Context, m *model.Message) error {
	return r.db.WithContext(ctx).Omit("Sender", "Receiver").Save(m).Error
}

func (r *messageRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("message_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}
