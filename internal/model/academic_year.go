package model

// AcademicYear 学年表 — 对应 academic_years
type AcademicYear struct {
	AcademicYearID string             `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"academic_year_id"`
	Year           int                `gorm:"not null;uniqueIndex"                           json:"year"`
	Status         AcademicYearStatus `gorm:"type:varchar(10);not null;default:'START'"      json:"status"`
	IsActive       bool               `gorm:"not null;default:false"                         json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (AcademicYear) TableName() string { return "academic_years" }

// YearSession 学院学年申报批次 — 对应 year_sessions，(academic_year_id, department_id) 唯一
type YearSession struct {
	SessionID      string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"                json:"session_id"`
	AcademicYearID string        `gorm:"type:uuid;not null;uniqueIndex:uk_session_year_dept"           json:"academic_year_id"`
	DepartmentID   string        `gorm:"type:uuid;not null;uniqueIndex:uk_session_year_dept"           json:"department_id"`
	Status         SessionStatus `gorm:"type:varchar(20);not null;default:'ON_REGISTRATION'"           json:"status"`
	BaseModel

	// 关联
	AcademicYear *AcademicYear `gorm:"foreignKey:AcademicYearID;references:AcademicYearID" json:"academic_year,omitempty"`
	Department   *Department   `gorm:"foreignKey:DepartmentID;references:DepartmentID"     json:"department,omitempty"`
}

// TableName 指定表名
func (YearSession) TableName() string { return "year_sessions" }
