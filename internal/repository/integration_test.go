//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"researchhub/backend/internal/model"
	"researchhub/backend/internal/repository"
	"researchhub/backend/pkg/database"
	pkgerrors "researchhub/backend/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=researchhub password=researchhub_password dbname=researchhub_test sslmode=disable TimeZone=Asia/Ho_Chi_Minh"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	// 使用与生产一致的迁移脚本建表
	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

type fixture struct {
	dept    *model.Department
	student *model.User
	year    *model.AcademicYear
	topic   *model.Topic
}

func uniq(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano()%1_000_000_000)
}

// setupTestData 创建基础测试数据并返回清理函数
func setupTestData(t *testing.T) (*fixture, func()) {
	t.Helper()
	ctx := context.Background()
	f := &fixture{}

	f.dept = &model.Department{Code: uniq("D"), Name: "Khoa kiểm thử"}
	if err := testDB.WithContext(ctx).Create(f.dept).Error; err != nil {
		t.Fatalf("创建学院失败: %v", err)
	}

	f.student = &model.User{
		Username:     uniq("sv"),
		FullName:     "Sinh viên kiểm thử",
		Email:        uniq("sv") + "@test.edu.vn",
		PasswordHash: "$2a$10$placeholder",
		Role:         model.RoleStudent,
		DepartmentID: &f.dept.DepartmentID,
	}
	if err := testDB.WithContext(ctx).Create(f.student).Error; err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}

	f.year = &model.AcademicYear{Year: 3000 + int(time.Now().UnixNano()%5000), Status: model.AcademicYearStart}
	if err := testDB.WithContext(ctx).Create(f.year).Error; err != nil {
		t.Fatalf("创建学年失败: %v", err)
	}

	f.topic = &model.Topic{
		Title:            "Đề tài kiểm thử",
		ShortDescription: "Mô tả",
		Objective:        "Mục tiêu",
		Content:          "Nội dung",
		Budget:           8_000_000,
		Status:           model.TopicPending,
		DepartmentID:     f.dept.DepartmentID,
		AcademicYearID:   f.year.AcademicYearID,
		ProposedBy:       f.student.UserID,
	}
	if err := testDB.WithContext(ctx).Create(f.topic).Error; err != nil {
		t.Fatalf("创建申报失败: %v", err)
	}

	cleanup := func() {
		testDB.Unscoped().Where("topic_id = ?", f.topic.TopicID).Delete(&model.ApprovedTopic{})
		testDB.Unscoped().Where("topic_id = ?", f.topic.TopicID).Delete(&model.TopicMember{})
		testDB.Unscoped().Where("topic_id = ?", f.topic.TopicID).Delete(&model.Topic{})
		testDB.Unscoped().Where("academic_year_id = ?", f.year.AcademicYearID).Delete(&model.YearSession{})
		testDB.Unscoped().Where("academic_year_id = ?", f.year.AcademicYearID).Delete(&model.AcademicYear{})
		testDB.Unscoped().Where("user_id = ?", f.student.UserID).Delete(&model.User{})
		testDB.Unscoped().Where("department_id = ?", f.dept.DepartmentID).Delete(&model.Department{})
	}
	return f, cleanup
}

// ═══════════════════════════════════════════════════════════
// Test: Transaction
// ═══════════════════════════════════════════════════════════

func TestTransaction_Rollback(t *testing.T) {
	f, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	boom := errors.New("boom")

	var sessionID string
	err := repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		s := &model.YearSession{AcademicYearID: f.year.AcademicYearID, DepartmentID: f.dept.DepartmentID, Status: model.SessionOnRegistration}
		if err := txRepo.YearSession.Create(ctx, s); err != nil {
			return err
		}
		sessionID = s.SessionID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("期望返回 fn 的错误，实际: %v", err)
	}

	if _, err := repo.YearSession.GetByID(ctx, sessionID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("回滚后批次不应存在，实际: %v", err)
	}
}

func TestTransaction_Commit(t *testing.T) {
	f, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	err := repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		return txRepo.YearSession.Create(ctx, &model.YearSession{
			AcademicYearID: f.year.AcademicYearID,
			DepartmentID:   f.dept.DepartmentID,
			Status:         model.SessionOnRegistration,
		})
	})
	if err != nil {
		t.Fatalf("事务提交应成功: %v", err)
	}

	got, err := repo.YearSession.Get(ctx, f.year.AcademicYearID, f.dept.DepartmentID)
	if err != nil {
		t.Fatalf("提交后应能查到批次: %v", err)
	}
	if got.Status != model.SessionOnRegistration {
		t.Errorf("期望状态 ON_REGISTRATION，实际=%s", got.Status)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Optimistic Lock
// ═══════════════════════════════════════════════════════════

func TestOptimisticLock_Topic_ConflictDetected(t *testing.T) {
	f, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	a, err := repo.Topic.GetByID(ctx, f.topic.TopicID)
	if err != nil {
		t.Fatalf("读取申报失败: %v", err)
	}
	b, _ := repo.Topic.GetByID(ctx, f.topic.TopicID)

	a.Title = "Bản A"
	if err := repo.Topic.Update(ctx, a); err != nil {
		t.Fatalf("第一次更新应成功: %v", err)
	}
	if a.Version != 2 {
		t.Errorf("期望 Version=2，实际=%d", a.Version)
	}

	b.Title = "Bản B"
	if err := repo.Topic.Update(ctx, b); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际: %v", err)
	}
}

func TestOptimisticLock_ApprovedTopic_ConflictDetected(t *testing.T) {
	f, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	at := &model.ApprovedTopic{TopicID: f.topic.TopicID, Code: uniq("T-"), Status: model.ApprovedInProgress}
	if err := repo.ApprovedTopic.Create(ctx, at); err != nil {
		t.Fatalf("创建立项课题失败: %v", err)
	}

	stale, _ := repo.ApprovedTopic.GetByID(ctx, at.ApprovedTopicID)
	fresh, _ := repo.ApprovedTopic.GetByID(ctx, at.ApprovedTopicID)

	fresh.Prize = "Giải nhất"
	if err := repo.ApprovedTopic.Update(ctx, fresh); err != nil {
		t.Fatalf("更新应成功: %v", err)
	}
	stale.Status = model.ApprovedCompleted
	if err := repo.ApprovedTopic.Update(ctx, stale); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际: %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Constraints & Queries
// ═══════════════════════════════════════════════════════════

func TestYearSession_UniquePerYearAndDepartment(t *testing.T) {
	f, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	newSession := func() *model.YearSession {
		return &model.YearSession{AcademicYearID: f.year.AcademicYearID, DepartmentID: f.dept.DepartmentID, Status: model.SessionOnRegistration}
	}

	if err := repo.YearSession.Create(ctx, newSession()); err != nil {
		t.Fatalf("第一个批次应创建成功: %v", err)
	}
	if err := repo.YearSession.Create(ctx, newSession()); err == nil {
		t.Error("同一学院同一学年不应存在两个批次")
	}
}

func TestApprovedTopic_CountByYearIncludesDeleted(t *testing.T) {
	f, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	at := &model.ApprovedTopic{TopicID: f.topic.TopicID, Code: uniq("T-"), Status: model.ApprovedInProgress}
	if err := repo.ApprovedTopic.Create(ctx, at); err != nil {
		t.Fatalf("创建立项课题失败: %v", err)
	}
	testDB.Where("approved_topic_id = ?", at.ApprovedTopicID).Delete(&model.ApprovedTopic{})

	n, err := repo.ApprovedTopic.CountByYear(ctx, f.year.AcademicYearID)
	if err != nil {
		t.Fatalf("CountByYear 失败: %v", err)
	}
	if n != 1 {
		t.Errorf("已分配编号应计入软删除记录，期望 1，实际=%d", n)
	}
}

// 并发首次上传同类型材料：锁定立项记录后只产生一条记录，且不报唯一键冲突
func TestDocument_ConcurrentFirstUploadSerialized(t *testing.T) {
	f, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	at := &model.ApprovedTopic{TopicID: f.topic.TopicID, Code: uniq("T-"), Status: model.ApprovedInProgress}
	if err := repo.ApprovedTopic.Create(ctx, at); err != nil {
		t.Fatalf("创建立项课题失败: %v", err)
	}
	defer testDB.Unscoped().Where("approved_topic_id = ?", at.ApprovedTopicID).Delete(&model.TopicDocument{})

	upsert := func(name string) error {
		return repo.Transaction(ctx, func(tx *repository.Repository) error {
			if _, err := tx.ApprovedTopic.LockByID(ctx, at.ApprovedTopicID); err != nil {
				return err
			}
			doc, err := tx.Document.GetByType(ctx, at.ApprovedTopicID, model.DocMidtermReport)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tx.Document.Create(ctx, &model.TopicDocument{
					ApprovedTopicID: at.ApprovedTopicID,
					DocumentType:    model.DocMidtermReport,
					FileKey:         name,
					FileURL:         "/uploads/" + name,
					FileName:        name,
					UploadedAt:      time.Now(),
				})
			}
			if err != nil {
				return err
			}
			doc.FileName = name
			return tx.Document.Update(ctx, doc)
		})
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = upsert(fmt.Sprintf("v%d.pdf", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("第 %d 个上传不应失败: %v", i, err)
		}
	}
	docs, err := repo.Document.ListByApprovedTopic(ctx, at.ApprovedTopicID)
	if err != nil {
		t.Fatalf("查询材料失败: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("同类型材料应只有一条记录，实际=%d", len(docs))
	}
}

func TestUser_GetByIDsAndSearch(t *testing.T) {
	f, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	users, err := repo.User.GetByIDs(ctx, []string{f.student.UserID})
	if err != nil {
		t.Fatalf("GetByIDs 失败: %v", err)
	}
	if len(users) != 1 || users[0].Username != f.student.Username {
		t.Errorf("GetByIDs 结果不符合预期: %+v", users)
	}

	found, err := repo.User.Search(ctx, f.student.Username, f.student.UserID, 10)
	if err != nil {
		t.Fatalf("Search 失败: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("搜索结果应排除自身，实际=%d", len(found))
	}
}

func TestDepartment_SoftDelete(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	dept := &model.Department{Code: uniq("X"), Name: "Khoa tạm"}
	if err := repo.Department.Create(ctx, dept); err != nil {
		t.Fatalf("创建学院失败: %v", err)
	}
	defer testDB.Unscoped().Where("department_id = ?", dept.DepartmentID).Delete(&model.Department{})

	if err := repo.Department.Delete(ctx, dept.DepartmentID, seedAdminID()); err != nil {
		t.Fatalf("删除学院失败: %v", err)
	}
	if _, err := repo.Department.GetByID(ctx, dept.DepartmentID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("软删除后应查询不到，实际: %v", err)
	}

	var raw model.Department
	if err := testDB.Unscoped().Where("department_id = ?", dept.DepartmentID).First(&raw).Error; err != nil {
		t.Fatalf("Unscoped 应能查到记录: %v", err)
	}
	if raw.DeletedBy == nil {
		t.Error("应记录 deleted_by")
	}
}

func TestAcademicYear_ClearActive(t *testing.T) {
	f, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	f.year.IsActive = true
	if err := repo.AcademicYear.Update(ctx, f.year); err != nil {
		t.Fatalf("启用学年失败: %v", err)
	}
	active, err := repo.AcademicYear.GetActive(ctx)
	if err != nil || active.AcademicYearID != f.year.AcademicYearID {
		t.Fatalf("GetActive 应返回刚启用的学年: %v", err)
	}

	if err := repo.AcademicYear.ClearActive(ctx); err != nil {
		t.Fatalf("ClearActive 失败: %v", err)
	}
	if _, err := repo.AcademicYear.GetActive(ctx); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("清除后不应有启用学年，实际: %v", err)
	}
}

// seedAdminID 迁移脚本预置的管理员 ID，用作审计字段
func seedAdminID() string {
	var admin model.User
	testDB.Where("role = ?", model.RoleAdmin).First(&admin)
	return admin.UserID
}
