package repository

import (
	"context"

	"gorm.io/gorm"

	"researchhub/backend/internal/model"
)

// TopicMemberRepository 课题成员数据访问接口
type TopicMemberRepository interface {
	Create(ctx context.Context, member *model.TopicMember) error
	Get(ctx context.Context, topicID, userID string) (*model.TopicMember, error)
	ListByTopic(ctx context.Context, topicID string) ([]model.TopicMember, error)
	Update(ctx context.Context, member *model.TopicMember) error
	Delete(ctx context.Context, memberID string) error
	// UpdatePendingStatus 仅更新处于 PENDING 的申请，返回受影响行数
	UpdatePendingStatus(ctx context.Context, topicID string, userIDs []string, status model.MemberStatus) (int64, error)
}

type topicMemberRepo struct {
	db *gorm.DB
}

// NewTopicMemberRepo 创建 TopicMemberRepository 实例
func NewTopicMemberRepo(db *gorm.DB) TopicMemberRepository {
	return &topicMemberRepo{db: db}
}

func (r *topicMemberRepo) Create(ctx context.Context, member *model.TopicMember) error {
	return r.db.WithContext(ctx).Omit("User").Create(member).Error
}

func (r *topicMemberRepo) Get(ctx context.Context, topicID, userID string) (*model.TopicMember, error) {
	var m model.TopicMember
	err := r.db.WithContext(ctx).
		Where("topic_id = ? AND user_id = ?", topicID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *topicMemberRepo) ListByTopic(ctx context.Context, topicID string) ([]model.TopicMember, error) {
	var members []model.TopicMember
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("topic_id = ?", topicID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

func (r *topicMemberRepo) Update(ctx context.Context, member *model.TopicMember) error {
	return r.db.WithContext(ctx).Omit("User").Save(member).Error
}

func (r *topicMemberRepo) Delete(ctx context.Context, memberID string) error {
	return r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Delete(&model.TopicMember{}).Error
}

func (r *topicMemberRepo) UpdatePendingStatus(ctx context.Context, topicID string, userIDs []string, status model.MemberStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TopicMember{}).
		Where("topic_id = ? AND user_id IN ? AND status = ?", topicID, userIDs, model.MemberPending).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": gorm.Expr("NOW()"),
		})
	return res.RowsAffected, res.Error
}
