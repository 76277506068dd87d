package model

import "time"

// ApprovedTopic 立项课题表 — 对应 approved_topics（与 topics 1:1）
type ApprovedTopic struct {
	ApprovedTopicID string              `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"  json:"approved_topic_id"`
	TopicID         string              `gorm:"type:uuid;not null;uniqueIndex"                  json:"topic_id"`
	Code            string              `gorm:"type:varchar(20);not null;uniqueIndex"           json:"code"`
	Prize           string              `gorm:"type:varchar(100)"                               json:"prize,omitempty"`
	FieldResearch   string              `gorm:"type:varchar(100)"                               json:"field_research,omitempty"`
	TypeResearch    string              `gorm:"type:varchar(100)"                               json:"type_research,omitempty"`
	Status          ApprovedTopicStatus `gorm:"type:varchar(20);not null;default:'IN_PROGRESS'" json:"status"`
	VersionedModel

	// 关联
	Topic     *Topic          `gorm:"foreignKey:TopicID;references:TopicID"                 json:"topic,omitempty"`
	Documents []TopicDocument `gorm:"foreignKey:ApprovedTopicID;references:ApprovedTopicID" json:"documents,omitempty"`
}

// TableName 指定表名
func (ApprovedTopic) TableName() string { return "approved_topics" }

// TopicDocument 立项课题材料 — 对应 topic_documents，(approved_topic_id, document_type) 唯一
type TopicDocument struct {
	DocumentID      string       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"document_id"`
	ApprovedTopicID string       `gorm:"type:uuid;not null;uniqueIndex:uk_topic_doc"    json:"approved_topic_id"`
	DocumentType    DocumentType `gorm:"type:varchar(30);not null;uniqueIndex:uk_topic_doc" json:"document_type"`
	FileKey         string       `gorm:"type:varchar(500);not null"                     json:"-"`
	FileURL         string       `gorm:"type:varchar(1000);not null"                    json:"file_url"`
	FileName        string       `gorm:"type:varchar(255);not null"                     json:"file_name"`
	Summary         string       `gorm:"type:text"                                      json:"summary,omitempty"`
	UploadedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"uploaded_at"`
	BaseModel
}

// TableName 指定表名
func (TopicDocument) TableName() string { return "topic_documents" }
