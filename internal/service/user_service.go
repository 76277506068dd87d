package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"researchhub/backend/config"
	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/model"
	"researchhub/backend/internal/repository"
	"researchhub/backend/pkg/mail"
)

// ── 用户模块业务错误 ──

var (
	ErrUsernameExists           = errors.New("用户名已存在")
	ErrDepartmentNotFound       = errors.New("学院不存在")
	ErrUserImmutable            = errors.New("管理员与教学秘书账号不可修改")
	ErrAssistantNeedsDepartment = errors.New("教学秘书必须归属学院")
	ErrInvalidRole              = errors.New("无效的角色")
)

// UserService 用户业务接口
type UserService interface {
	Create(ctx context.Context, req *dto.CreateUserRequest, callerID string) (*dto.CreateUserResponse, error)
	GetByID(ctx context.Context, id string) (*dto.UserResponse, error)
	List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateUserRequest, callerID string) (*dto.UserResponse, error)
	// ResetPassword 重置为配置中的默认密码，并要求下次登录修改
	ResetPassword(ctx context.Context, id string, callerID string) error
	ParseImportFile(reader io.Reader) ([]ImportUserRow, error)
	ImportUsers(ctx context.Context, rows []ImportUserRow, callerID string) (*dto.ImportUserResponse, error)
	// ListSupervisors 可选的指导教师（指定学院的教师）
	ListSupervisors(ctx context.Context, req *dto.SupervisorListRequest, caller Caller) ([]dto.UserResponse, error)
}

// ImportUserRow Excel 导入解析后的单行数据
type ImportUserRow struct {
	Row            int
	Username       string
	FullName       string
	Email          string
	Role           string
	DepartmentCode string
	ClassName      string
	Course         string
	AcademicDegree string
}

type userService struct {
	cfg    *config.Config
	repo   *repository.Repository
	mailer mail.Sender
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(cfg *config.Config, repo *repository.Repository, mailer mail.Sender, logger *zap.Logger) UserService {
	return &userService{cfg: cfg, repo: repo, mailer: mailer, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *userService) Create(ctx context.Context, req *dto.CreateUserRequest, callerID string) (*dto.CreateUserResponse, error) {
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return nil, ErrInvalidRole
	}
	if role == model.RoleAssistant && (req.DepartmentID == nil || *req.DepartmentID == "") {
		return nil, ErrAssistantNeedsDepartment
	}
	if req.DepartmentID != nil && *req.DepartmentID != "" {
		if err := s.ensureDepartment(ctx, *req.DepartmentID); err != nil {
			return nil, err
		}
	}

	username := strings.TrimSpace(req.Username)
	if err := s.ensureUsernameFree(ctx, username); err != nil {
		return nil, err
	}

	// ADMIN / ASSISTANT 使用固定初始密码，其余角色随机生成并邮件通知
	password, random, err := s.initialPassword(role)
	if err != nil {
		s.logger.Error("生成初始密码失败", zap.Error(err))
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Username:           username,
		FullName:           strings.TrimSpace(req.FullName),
		Email:              s.emailOrDefault(req.Email, username),
		PhoneNumber:        req.PhoneNumber,
		PasswordHash:       string(hash),
		Role:               role,
		DepartmentID:       nonEmpty(req.DepartmentID),
		ClassName:          req.ClassName,
		Course:             req.Course,
		AcademicDegree:     req.AcademicDegree,
		MustChangePassword: true,
	}
	user.CreatedBy = &callerID
	user.UpdatedBy = &callerID

	if err := s.repo.User.Create(ctx, user); err != nil {
		s.logger.Error("创建用户失败", zap.String("username", username), zap.Error(err))
		return nil, err
	}

	mailSent := false
	if random {
		mailSent = s.sendAccountMail(ctx, user, password)
	}

	created, err := s.repo.User.GetByID(ctx, user.UserID)
	if err != nil {
		created = user
	}
	return &dto.CreateUserResponse{User: toUserResponse(created), MailSent: mailSent}, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *userService) GetByID(ctx context.Context, id string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// ────────────────────── List ──────────────────────

func (s *userService) List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	users, total, err := s.repo.User.List(ctx, userFilter(req), req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, toUserResponse(&users[i]))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *userService) Update(ctx context.Context, id string, req *dto.UpdateUserRequest, callerID string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if isProtectedRole(user.Role) {
		return nil, ErrUserImmutable
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = *req.PhoneNumber
	}
	if req.DepartmentID != nil {
		if *req.DepartmentID != "" {
			if err := s.ensureDepartment(ctx, *req.DepartmentID); err != nil {
				return nil, err
			}
		}
		user.DepartmentID = nonEmpty(req.DepartmentID)
		user.Department = nil
	}
	if req.ClassName != nil {
		user.ClassName = *req.ClassName
	}
	if req.Course != nil {
		user.Course = *req.Course
	}
	if req.AcademicDegree != nil {
		user.AcademicDegree = *req.AcademicDegree
	}
	user.UpdatedBy = &callerID

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("更新用户失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	updated, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		updated = user
	}
	resp := toUserResponse(updated)
	return &resp, nil
}

// ────────────────────── ResetPassword ──────────────────────

func (s *userService) ResetPassword(ctx context.Context, id string, callerID string) error {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if isProtectedRole(user.Role) {
		return ErrUserImmutable
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.Auth.DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}
	if err := s.repo.User.UpdatePassword(ctx, id, string(hash), true); err != nil {
		s.logger.Error("重置密码失败", zap.String("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("已重置用户密码", zap.String("id", id), zap.String("operator", callerID))
	return nil
}

// ────────────────────── ParseImportFile ──────────────────────

const maxImportRows = 1000

var (
	ErrImportNoData      = errors.New("Excel文件无数据行（第一行为表头）")
	ErrImportTooManyRows = fmt.Errorf("数据行数超过上限 %d 行", maxImportRows)
	ErrImportBadHeader   = errors.New("Excel表头缺少必要列（用户名/姓名/角色/学院代码）")
	ErrImportInvalidFile = errors.New("无法解析Excel文件")
)

// ParseImportFile 解析导入 Excel 文件，返回解析后的行数据
func (s *userService) ParseImportFile(reader io.Reader) ([]ImportUserRow, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportInvalidFile, err)
	}
	defer f.Close()

	excelRows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportInvalidFile, err)
	}
	if len(excelRows) < 2 {
		return nil, ErrImportNoData
	}

	// 解析表头（支持灵活列序）
	colIndex := parseHeaderIndex(excelRows[0])
	for _, required := range []string{"username", "full_name", "role", "department"} {
		if colIndex[required] < 0 {
			return nil, ErrImportBadHeader
		}
	}

	var rows []ImportUserRow
	for i := 1; i < len(excelRows); i++ {
		row := excelRows[i]
		get := func(col string) string {
			if idx := colIndex[col]; idx >= 0 && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		item := ImportUserRow{
			Row:            i + 1,
			Username:       get("username"),
			FullName:       get("full_name"),
			Email:          get("email"),
			Role:           strings.ToUpper(get("role")),
			DepartmentCode: get("department"),
			ClassName:      get("class_name"),
			Course:         get("course"),
			AcademicDegree: get("academic_degree"),
		}

		// 跳过全空行
		if item.Username == "" && item.FullName == "" && item.Role == "" && item.DepartmentCode == "" {
			continue
		}
		rows = append(rows, item)
	}

	if len(rows) == 0 {
		return nil, ErrImportNoData
	}
	if len(rows) > maxImportRows {
		return nil, ErrImportTooManyRows
	}
	return rows, nil
}

// parseHeaderIndex 解析 Excel 表头，返回列名 -> 列索引映射
func parseHeaderIndex(header []string) map[string]int {
	idx := map[string]int{
		"username":        -1,
		"full_name":       -1,
		"email":           -1,
		"role":            -1,
		"department":      -1,
		"class_name":      -1,
		"course":          -1,
		"academic_degree": -1,
	}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "用户名", "username":
			idx["username"] = i
		case "姓名", "full_name":
			idx["full_name"] = i
		case "邮箱", "email":
			idx["email"] = i
		case "角色", "role":
			idx["role"] = i
		case "学院代码", "department", "department_code":
			idx["department"] = i
		case "班级", "class_name":
			idx["class_name"] = i
		case "年级", "course":
			idx["course"] = i
		case "学位", "academic_degree":
			idx["academic_degree"] = i
		}
	}
	return idx
}

// ────────────────────── ImportUsers ──────────────────────

func (s *userService) ImportUsers(ctx context.Context, rows []ImportUserRow, callerID string) (*dto.ImportUserResponse, error) {
	resp := &dto.ImportUserResponse{Total: len(rows)}

	// 预加载所有学院，便于按代码查找
	depts, err := s.repo.Department.ListAll(ctx)
	if err != nil {
		s.logger.Error("加载学院列表失败", zap.Error(err))
		return nil, err
	}
	deptMap := make(map[string]*model.Department, len(depts))
	for i := range depts {
		deptMap[strings.ToUpper(depts[i].Code)] = &depts[i]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.Auth.DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	// 第一阶段：数据预校验（不接触数据库写操作）
	fail := func(row int, reason string) {
		resp.Failed++
		resp.Errors = append(resp.Errors, dto.ImportUserError{Row: row, Reason: reason})
	}
	seen := make(map[string]bool, len(rows))
	var valid []*model.User

	for _, row := range rows {
		if row.Username == "" || row.FullName == "" || row.Role == "" || row.DepartmentCode == "" {
			fail(row.Row, "必填字段为空")
			continue
		}
		role, ok := model.ParseRole(row.Role)
		if !ok || isProtectedRole(role) {
			fail(row.Row, fmt.Sprintf("仅支持导入 TEACHER / STUDENT: %s", row.Role))
			continue
		}
		dept, ok := deptMap[strings.ToUpper(row.DepartmentCode)]
		if !ok {
			fail(row.Row, fmt.Sprintf("学院不存在: %s", row.DepartmentCode))
			continue
		}
		if seen[row.Username] {
			fail(row.Row, fmt.Sprintf("文件内用户名重复: %s", row.Username))
			continue
		}
		if _, err := s.repo.User.GetByUsername(ctx, row.Username); err == nil {
			fail(row.Row, fmt.Sprintf("用户名已存在: %s", row.Username))
			continue
		}
		seen[row.Username] = true

		deptID := dept.DepartmentID
		user := &model.User{
			Username:           row.Username,
			FullName:           row.FullName,
			Email:              s.emailOrDefault(row.Email, row.Username),
			PasswordHash:       string(hash),
			Role:               role,
			DepartmentID:       &deptID,
			ClassName:          row.ClassName,
			Course:             row.Course,
			AcademicDegree:     row.AcademicDegree,
			MustChangePassword: true,
		}
		user.CreatedBy = &callerID
		user.UpdatedBy = &callerID
		valid = append(valid, user)
	}

	if len(valid) == 0 {
		return resp, nil
	}

	// 第二阶段：在事务中批量创建所有通过校验的用户
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		for _, u := range valid {
			if err := txRepo.User.Create(ctx, u); err != nil {
				return fmt.Errorf("写入用户 %s 失败，已回滚全部导入: %w", u.Username, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("导入用户失败", zap.Error(err))
		return nil, err
	}
	resp.Success = len(valid)
	return resp, nil
}

// ────────────────────── Supervisors ──────────────────────

func (s *userService) ListSupervisors(ctx context.Context, req *dto.SupervisorListRequest, caller Caller) ([]dto.UserResponse, error) {
	deptID := req.DepartmentID
	if deptID == "" {
		deptID = caller.DepartmentID
	}
	teachers, err := s.repo.User.ListTeachers(ctx, deptID, req.Keyword)
	if err != nil {
		s.logger.Error("查询指导教师失败", zap.String("department_id", deptID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.UserResponse, 0, len(teachers))
	for i := range teachers {
		result = append(result, toUserResponse(&teachers[i]))
	}
	return result, nil
}

// ── 内部辅助方法 ──

func (s *userService) ensureDepartment(ctx context.Context, id string) error {
	if _, err := s.repo.Department.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDepartmentNotFound
		}
		s.logger.Error("查询学院失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *userService) ensureUsernameFree(ctx context.Context, username string) error {
	_, err := s.repo.User.GetByUsername(ctx, username)
	if err == nil {
		return ErrUsernameExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户名失败", zap.Error(err))
		return err
	}
	return nil
}

func (s *userService) initialPassword(role model.Role) (password string, random bool, err error) {
	switch role {
	case model.RoleAdmin:
		return s.cfg.Auth.AdminPassword, false, nil
	case model.RoleAssistant:
		return s.cfg.Auth.AssistantPassword, false, nil
	case model.RoleTeacher, model.RoleStudent:
	}
	password, err = generateTempPassword(10)
	return password, true, err
}

func (s *userService) emailOrDefault(email, username string) string {
	email = strings.TrimSpace(email)
	if email != "" || s.cfg.Auth.MailDomain == "" {
		return email
	}
	return username + "@" + s.cfg.Auth.MailDomain
}

// sendAccountMail 发送开户通知，失败只记录日志
func (s *userService) sendAccountMail(ctx context.Context, user *model.User, password string) bool {
	if s.mailer == nil || user.Email == "" {
		return false
	}
	body, err := mail.RenderAccountCreated(mail.AccountCreatedData{
		FullName: user.FullName,
		Username: user.Username,
		Password: password,
	})
	if err != nil {
		s.logger.Warn("渲染开户邮件失败", zap.Error(err))
		return false
	}
	to := mail.Recipient{Email: user.Email, Name: user.FullName}
	if err := s.mailer.Send(ctx, to, "ResearchHub 账号开通通知", body); err != nil {
		s.logger.Warn("发送开户邮件失败", zap.String("username", user.Username), zap.Error(err))
		return false
	}
	return true
}

func userFilter(req *dto.UserListRequest) repository.UserFilter {
	role, _ := model.ParseRole(req.Role)
	return repository.UserFilter{
		DepartmentID: req.DepartmentID,
		Role:         role,
		Keyword:      strings.TrimSpace(req.Keyword),
	}
}

func isProtectedRole(r model.Role) bool {
	return r == model.RoleAdmin || r == model.RoleAssistant
}

func nonEmpty(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	v := *p
	return &v
}

// toUserResponse 将 model.User 转换为 dto.UserResponse
func toUserResponse(user *model.User) dto.UserResponse {
	var dept *dto.DepartmentBrief
	if user.Department != nil {
		dept = &dto.DepartmentBrief{
			ID:   user.Department.DepartmentID,
			Code: user.Department.Code,
			Name: user.Department.Name,
		}
	}
	return dto.UserResponse{
		ID:                 user.UserID,
		Username:           user.Username,
		FullName:           user.FullName,
		Email:              user.Email,
		PhoneNumber:        user.PhoneNumber,
		AvatarURL:          user.AvatarURL,
		Role:               string(user.Role),
		Department:         dept,
		ClassName:          user.ClassName,
		Course:             user.Course,
		AcademicDegree:     user.AcademicDegree,
		MustChangePassword: user.MustChangePassword,
		CreatedAt:          dto.FormatTime(user.CreatedAt),
	}
}

// generateTempPassword 生成指定长度的临时密码（保证包含字母和数字）
func generateTempPassword(length int) (string, error) {
	const letters = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	const digits = "23456789"
	const all = letters + digits

	if length < 4 {
		length = 8
	}
	result := make([]byte, length)

	pick := func(set string) (byte, error) {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
		if err != nil {
			return 0, err
		}
		return set[n.Int64()], nil
	}

	var err error
	// 保证至少1个字母+1个数字
	if result[0], err = pick(letters); err != nil {
		return "", err
	}
	if result[1], err = pick(digits); err != nil {
		return "", err
	}
	for i := 2; i < length; i++ {
		if result[i], err = pick(all); err != nil {
			return "", err
		}
	}

	// Fisher-Yates 打乱
	for i := length - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		j := n.Int64()
		result[i], result[j] = result[j], result[i]
	}
	return string(result), nil
}
