package dto

// ── 站内消息 DTO ──

// SendMessageRequest 发送消息
type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required,uuid"`
	Content    string `json:"content"     binding:"required,max=2000"`
}

// UpdateMessageRequest 修改已发送消息
type UpdateMessageRequest struct {
	Content string `json:"content" binding:"required,max=2000"`
}

// MessageListRequest 收件箱 / 发件箱查询
type MessageListRequest struct {
	PaginationRequest
	UnreadOnly bool `form:"unread_only"`
}

// MessageResponse 消息
type MessageResponse struct {
	ID           string `json:"id"`
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_name,omitempty"`
	ReceiverID   string `json:"receiver_id"`
	ReceiverName string `json:"receiver_name,omitempty"`
	Content      string `json:"content"`
	IsRead       bool   `json:"is_read"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// PartnerSearchRequest 联系人搜索
type PartnerSearchRequest struct {
	Keyword string `form:"keyword" binding:"required,min=1,max=50"`
	Limit   int    `form:"limit"   binding:"omitempty,min=1,max=50"`
}

// PartnerResponse 可联系的用户
type PartnerResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
