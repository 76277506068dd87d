package model

import "time"

// Announcement 公告表 — 对应 announcements
// department_id 与 academic_year_id 均为空时为全校公告
type Announcement struct {
	AnnouncementID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"announcement_id"`
	Title          string    `gorm:"type:varchar(255);not null"                     json:"title"`
	Content        string    `gorm:"type:text;not null"                             json:"content"`
	PublishAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"publish_at"`
	DepartmentID   *string   `gorm:"type:uuid;index"                                json:"department_id,omitempty"`
	AcademicYearID *string   `gorm:"type:uuid;index"                                json:"academic_year_id,omitempty"`
	SoftDeleteModel
}

// TableName 指定表名
func (Announcement) TableName() string { return "announcements" }

// Message 站内消息表 — 对应 messages
type Message struct {
	MessageID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"message_id"`
	SenderID   string `gorm:"type:uuid;not null;index"                       json:"sender_id"`
	ReceiverID string `gorm:"type:uuid;not null;index"                       json:"receiver_id"`
	Content    string `gorm:"type:text;not null"                             json:"content"`
	IsRead     bool   `gorm:"not null;default:false"                         json:"is_read"`
	SoftDeleteModel

	// 关联
	Sender   *User `gorm:"foreignKey:SenderID;references:UserID"   json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID;references:UserID" json:"receiver,omitempty"`
}

// TableName 指定表名
func (Message) TableName() string { return "messages" }
