package model

// User 用户表 — 对应 users
type User struct {
	UserID             string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Username           string  `gorm:"type:varchar(50);not null;uniqueIndex"          json:"username"`
	FullName           string  `gorm:"type:varchar(100);not null"                     json:"full_name"`
	Email              string  `gorm:"type:varchar(255);not null"                     json:"email"`
	PhoneNumber        string  `gorm:"type:varchar(20)"                               json:"phone_number,omitempty"`
	AvatarURL          string  `gorm:"type:varchar(500)"                              json:"avatar_url,omitempty"`
	PasswordHash       string  `gorm:"type:varchar(255);not null"                     json:"-"`
	Role               Role    `gorm:"type:varchar(20);not null"                      json:"role"`
	DepartmentID       *string `gorm:"type:uuid"                                      json:"department_id,omitempty"`
	ClassName          string  `gorm:"type:varchar(50)"                               json:"class_name,omitempty"`
	Course             string  `gorm:"type:varchar(20)"                               json:"course,omitempty"`
	AcademicDegree     string  `gorm:"type:varchar(50)"                               json:"academic_degree,omitempty"`
	MustChangePassword bool    `gorm:"not null;default:false"                         json:"must_change_password"`
	SoftDeleteModel

	// 关联
	Department *Department `gorm:"foreignKey:DepartmentID;references:DepartmentID" json:"department,omitempty"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// DeptID 返回部门 ID，未分配时为空串
func (u *User) DeptID() string {
	if u.DepartmentID == nil {
		return ""
	}
	return *u.DepartmentID
}
