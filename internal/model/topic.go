package model

import "time"

// Topic 选题申报表 — 对应 topics
type Topic struct {
	TopicID          string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"topic_id"`
	Title            string      `gorm:"type:varchar(255);not null"                     json:"title"`
	ShortDescription string      `gorm:"type:text;not null"                             json:"short_description"`
	Objective        string      `gorm:"type:text;not null"                             json:"objective"`
	Content          string      `gorm:"type:text;not null"                             json:"content"`
	Budget           int64       `gorm:"not null"                                       json:"budget"`
	Note             string      `gorm:"type:text"                                      json:"note"`
	Status           TopicStatus `gorm:"type:varchar(20);not null;default:'PENDING'"    json:"status"`
	DepartmentID     string      `gorm:"type:uuid;not null;index"                       json:"department_id"`
	AcademicYearID   string      `gorm:"type:uuid;not null;index"                       json:"academic_year_id"`
	ProposedBy       string      `gorm:"type:uuid;not null"                             json:"proposed_by"`
	VersionedModel

	// 关联
	Members       []TopicMember  `gorm:"foreignKey:TopicID;references:TopicID" json:"members,omitempty"`
	ApprovedTopic *ApprovedTopic `gorm:"foreignKey:TopicID;references:TopicID" json:"approved_topic,omitempty"`
	Proposer      *User          `gorm:"foreignKey:ProposedBy;references:UserID" json:"proposer,omitempty"`
}

// TableName 指定表名
func (Topic) TableName() string { return "topics" }

// SubmittedAt 申报提交时间
func (t *Topic) SubmittedAt() time.Time { return t.CreatedAt }

// Leader 返回已批准的组长成员
func (t *Topic) Leader() *TopicMember { return t.findMember(MemberRoleLeader, MemberApproved) }

// Advisor 返回已批准的指导教师
func (t *Topic) Advisor() *TopicMember { return t.findMember(MemberRoleAdvisor, MemberApproved) }

// PendingMembers 返回待审核的成员申请
func (t *Topic) PendingMembers() []TopicMember {
	var out []TopicMember
	for _, m := range t.Members {
		if m.Status == MemberPending {
			out = append(out, m)
		}
	}
	return out
}

// Member 按用户查找成员记录
func (t *Topic) Member(userID string) *TopicMember {
	for i := range t.Members {
		if t.Members[i].UserID == userID {
			return &t.Members[i]
		}
	}
	return nil
}

func (t *Topic) findMember(role MemberRole, status MemberStatus) *TopicMember {
	for i := range t.Members {
		if t.Members[i].Role == role && t.Members[i].Status == status {
			return &t.Members[i]
		}
	}
	return nil
}

// TopicMember 课题成员表 — 对应 topic_members，(topic_id, user_id) 唯一
type TopicMember struct {
	MemberID string       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"member_id"`
	TopicID  string       `gorm:"type:uuid;not null;uniqueIndex:uk_topic_member" json:"topic_id"`
	UserID   string       `gorm:"type:uuid;not null;uniqueIndex:uk_topic_member" json:"user_id"`
	Role     MemberRole   `gorm:"type:varchar(20);not null"                      json:"role"`
	Status   MemberStatus `gorm:"type:varchar(20);not null;default:'PENDING'"    json:"status"`
	BaseModel

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (TopicMember) TableName() string { return "topic_members" }
