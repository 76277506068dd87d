package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/model"
	"researchhub/backend/internal/repository"
	pkgerrors "researchhub/backend/pkg/errors"
)

// ── 站内消息业务错误 ──

var (
	ErrMessageNotFound  = errors.New("消息不存在")
	ErrMessageToSelf    = errors.New("不能给自己发送消息")
	ErrReceiverNotFound = errors.New("接收人不存在")
)

const defaultPartnerLimit = 10

// MessageService 站内消息业务接口
type MessageService interface {
	Send(ctx context.Context, req *dto.SendMessageRequest, callerID string) (*dto.MessageResponse, error)
	Inbox(ctx context.Context, req *dto.MessageListRequest, callerID string) ([]dto.MessageResponse, int64, error)
	Sent(ctx context.Context, req *dto.MessageListRequest, callerID string) ([]dto.MessageResponse, int64, error)
	// MarkRead 仅接收人可标记已读
	MarkRead(ctx context.Context, id, callerID string) (*dto.MessageResponse, error)
	// Update 仅发送人可修改内容
	Update(ctx context.Context, id string, req *dto.UpdateMessageRequest, callerID string) (*dto.MessageResponse, error)
	Delete(ctx context.Context, id, callerID string) error
	SearchPartners(ctx context.Context, req *dto.PartnerSearchRequest, callerID string) ([]dto.PartnerResponse, error)
}

type messageService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewMessageService 创建 MessageService 实例
func NewMessageService(repo *repository.Repository, logger *zap.Logger) MessageService {
	return &messageService{repo: repo, logger: logger}
}

func (s *messageService) Send(ctx context.Context, req *dto.SendMessageRequest, callerID string) (*dto.MessageResponse, error) {
	if req.ReceiverID == callerID {
		return nil, ErrMessageToSelf
	}
	if _, err := s.repo.User.GetByID(ctx, req.ReceiverID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReceiverNotFound
		}
		s.logger.Error("查询接收人失败", zap.Error(err))
		return nil, err
	}

	msg := &model.Message{
		SenderID:   callerID,
		ReceiverID: req.ReceiverID,
		Content:    strings.TrimSpace(req.Content),
	}
	msg.CreatedBy = &callerID
	msg.UpdatedBy = &callerID
	if err := s.repo.Message.Create(ctx, msg); err != nil {
		s.logger.Error("发送消息失败", zap.String("sender", callerID), zap.Error(err))
		return nil, err
	}

	return s.reload(ctx, msg)
}

func (s *messageService) Inbox(ctx context.Context, req *dto.MessageListRequest, callerID string) ([]dto.MessageResponse, int64, error) {
	list, total, err := s.repo.Message.ListInbox(ctx, callerID, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询收件箱失败", zap.String("user_id", callerID), zap.Error(err))
		return nil, 0, err
	}
	return toMessageResponses(list), total, nil
}

func (s *messageService) Sent(ctx context.Context, req *dto.MessageListRequest, callerID string) ([]dto.MessageResponse, int64, error) {
	list, total, err := s.repo.Message.ListSent(ctx, callerID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询发件箱失败", zap.String("user_id", callerID), zap.Error(err))
		return nil, 0, err
	}
	return toMessageResponses(list), total, nil
}

func (s *messageService) MarkRead(ctx context.Context, id, callerID string) (*dto.MessageResponse, error) {
	msg, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.ReceiverID != callerID {
		return nil, pkgerrors.ErrNoPermission
	}
	if msg.IsRead {
		resp := toMessageResponse(msg)
		return &resp, nil
	}

	msg.IsRead = true
	msg.UpdatedBy = &callerID
	if err := s.repo.Message.Update(ctx, msg); err != nil {
		s.logger.Error("标记已读失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	resp := toMessageResponse(msg)
	return &resp, nil
}

func (s *messageService) Update(ctx context.Context, id string, req *dto.UpdateMessageRequest, callerID string) (*dto.MessageResponse, error) {
	msg, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != callerID {
		return nil, pkgerrors.ErrNoPermission
	}

	msg.Content = strings.TrimSpace(req.Content)
	msg.UpdatedBy = &callerID
	if err := s.repo.Message.Update(ctx, msg); err != nil {
		s.logger.Error("修改消息失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	resp := toMessageResponse(msg)
	return &resp, nil
}

func (s *messageService) Delete(ctx context.Context, id, callerID string) error {
	msg, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if msg.SenderID != callerID && msg.ReceiverID != callerID {
		return pkgerrors.ErrNoPermission
	}
	if err := s.repo.Message.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除消息失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *messageService) SearchPartners(ctx context.Context, req *dto.PartnerSearchRequest, callerID string) ([]dto.PartnerResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPartnerLimit
	}
	users, err := s.repo.User.Search(ctx, strings.TrimSpace(req.Keyword), callerID, limit)
	if err != nil {
		s.logger.Error("搜索联系人失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.PartnerResponse, 0, len(users))
	for i := range users {
		u := &users[i]
		result = append(result, dto.PartnerResponse{
			ID:        u.UserID,
			Username:  u.Username,
			FullName:  u.FullName,
			Role:      string(u.Role),
			AvatarURL: u.AvatarURL,
		})
	}
	return result, nil
}

// ── 内部辅助方法 ──

func (s *messageService) get(ctx context.Context, id string) (*model.Message, error) {
	msg, err := s.repo.Message.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		s.logger.Error("查询消息失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return msg, nil
}

func (s *messageService) reload(ctx context.Context, msg *model.Message) (*dto.MessageResponse, error) {
	loaded, err := s.repo.Message.GetByID(ctx, msg.MessageID)
	if err != nil {
		loaded = msg
	}
	resp := toMessageResponse(loaded)
	return &resp, nil
}

func toMessageResponses(list []model.Message) []dto.MessageResponse {
	result := make([]dto.MessageResponse, 0, len(list))
	for i := range list {
		result = append(result, toMessageResponse(&list[i]))
	}
	return result
}

func toMessageResponse(m *model.Message) dto.MessageResponse {
	resp := dto.MessageResponse{
		ID:         m.MessageID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.IsRead,
		CreatedAt:  dto.FormatTime(m.CreatedAt),
		UpdatedAt:  dto.FormatTime(m.UpdatedAt),
	}
	if m.Sender != nil {
		resp.SenderName = m.Sender.FullName
	}
	if m.Receiver != nil {
		resp.ReceiverName = m.Receiver.FullName
	}
	return resp
}
