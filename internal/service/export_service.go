package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/model"
	"researchhub/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoData       = errors.New("没有可导出的数据")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入 Response
type ExportService interface {
	// ExportApprovedTopics 导出 (学院, 学年) 的立项课题为 Excel
	ExportApprovedTopics(ctx context.Context, req *dto.ExportApprovedTopicsRequest, caller Caller) (*bytes.Buffer, string, error)
	// ExportUsers 按列表条件导出当前页用户，format 为 csv 或 xlsx
	ExportUsers(ctx context.Context, req *dto.UserExportRequest) (buf *bytes.Buffer, filename, contentType string, err error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

var approvedTopicHeader = []string{
	"序号", "编号", "课题名称", "组长", "指导教师", "研究领域", "研究类型", "经费", "奖项", "状态",
}

// ═══════════════════════════════════════════════════════════
// ExportApprovedTopics 导出立项课题
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 第 1 行：标题（学院 + 学年），合并单元格
//   - 第 2 行：表头
//   - 第 3 行起：按编号排序的课题

func (s *exportService) ExportApprovedTopics(ctx context.Context, req *dto.ExportApprovedTopicsRequest, caller Caller) (*bytes.Buffer, string, error) {
	year, err := s.repo.AcademicYear.GetByID(ctx, req.AcademicYearID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrAcademicYearNotFound
		}
		s.logger.Error("查询学年失败", zap.Error(err))
		return nil, "", err
	}

	deptID := caller.scopeDepartment(req.DepartmentID)
	deptName := "全校"
	if deptID != "" {
		dept, err := s.repo.Department.GetByID(ctx, deptID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, "", ErrDepartmentNotFound
			}
			s.logger.Error("查询学院失败", zap.Error(err))
			return nil, "", err
		}
		deptName = dept.Name
	}

	// limit 0 返回全部
	list, _, err := s.repo.ApprovedTopic.List(ctx, repository.ApprovedTopicFilter{
		DepartmentID:   deptID,
		AcademicYearID: year.AcademicYearID,
	}, 0, 0)
	if err != nil {
		s.logger.Error("查询立项课题失败", zap.Error(err))
		return nil, "", err
	}
	if len(list) == 0 {
		return nil, "", ErrExportNoData
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "立项课题"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 6)
	f.SetColWidth(sheetName, "B", "B", 16)
	f.SetColWidth(sheetName, "C", "C", 48)
	f.SetColWidth(sheetName, "D", colName(len(approvedTopicHeader)-1), 18)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s %d 学年立项课题", deptName, year.Year))
	f.MergeCell(sheetName, "A1", cell(colName(len(approvedTopicHeader)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range approvedTopicHeader {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(approvedTopicHeader)-1), 2), headerStyle)

	// 数据行
	row := 3
	for i := range list {
		at := &list[i]
		values := []interface{}{i + 1, at.Code, "", "", "", at.FieldResearch, at.TypeResearch, 0, at.Prize, string(at.Status)}
		if t := at.Topic; t != nil {
			values[2] = t.Title
			values[3] = memberName(t.Leader())
			values[4] = memberName(t.Advisor())
			values[7] = t.Budget
		}
		for col, v := range values {
			f.SetCellValue(sheetName, cell(colName(col), row), v)
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("立项课题_%s_%d.xlsx", deptName, year.Year)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportUsers 导出用户列表
// ═══════════════════════════════════════════════════════════

var userExportHeader = []string{
	"username", "full_name", "email", "role", "department", "class_name", "course", "academic_degree",
}

func (s *exportService) ExportUsers(ctx context.Context, req *dto.UserExportRequest) (*bytes.Buffer, string, string, error) {
	users, _, err := s.repo.User.List(ctx, userFilter(&req.UserListRequest), req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, "", "", err
	}
	if len(users) == 0 {
		return nil, "", "", ErrExportNoData
	}

	rows := make([][]string, 0, len(users))
	for i := range users {
		rows = append(rows, userExportRow(&users[i]))
	}

	stamp := time.Now().Format("20060102")
	if req.Format == "xlsx" {
		buf, err := s.writeUsersXLSX(rows)
		if err != nil {
			return nil, "", "", err
		}
		return buf, fmt.Sprintf("users_%s.xlsx", stamp), contentTypeXLSX, nil
	}

	buf := new(bytes.Buffer)
	// UTF-8 BOM
	buf.WriteString("\xEF\xBB\xBF")
	w := csv.NewWriter(buf)
	if err := w.Write(userExportHeader); err != nil {
		return nil, "", "", ErrExportGenerateFail
	}
	if err := w.WriteAll(rows); err != nil {
		s.logger.Error("写入 CSV 失败", zap.Error(err))
		return nil, "", "", ErrExportGenerateFail
	}
	return buf, fmt.Sprintf("users_%s.csv", stamp), contentTypeCSV, nil
}

func (s *exportService) writeUsersXLSX(rows [][]string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "users"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	for i, h := range userExportHeader {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	for r, values := range rows {
		for c, v := range values {
			f.SetCellValue(sheetName, cell(colName(c), r+2), v)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	return buf, nil
}

// ── 辅助函数 ──

func userExportRow(u *model.User) []string {
	dept := ""
	if u.Department != nil {
		dept = u.Department.Code
	}
	return []string{
		u.Username, u.FullName, u.Email, string(u.Role), dept, u.ClassName, u.Course, u.AcademicDegree,
	}
}

func memberName(m *model.TopicMember) string {
	if m == nil || m.User == nil {
		return ""
	}
	return m.User.FullName
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
