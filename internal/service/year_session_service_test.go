package service

import (
	"context"
	"errors"
	"testing"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/lifecycle"
	"researchhub/backend/internal/model"
	pkgerrors "researchhub/backend/pkg/errors"
)

func setupYearServices() (AcademicYearService, YearSessionService, *topicFixture) {
	f := newTopicFixture()
	return NewAcademicYearService(f.repo, nil, testLogger()),
		NewYearSessionService(f.repo, nil, nil, testLogger()),
		f
}

// ── 学年 ──

func TestAcademicYear_CreateActiveClearsOthers(t *testing.T) {
	years, _, f := setupYearServices()

	resp, err := years.Create(context.Background(), &dto.CreateAcademicYearRequest{Year: 2026, IsActive: true}, "admin-id")
	if err != nil {
		t.Fatalf("创建学年应成功: %v", err)
	}
	if !resp.IsActive || resp.Status != string(model.AcademicYearStart) {
		t.Errorf("新学年状态不符合预期: %+v", resp)
	}
	if f.db.years[f.year.AcademicYearID].IsActive {
		t.Error("同一时间只允许一个启用的学年")
	}

	if _, err := years.Create(context.Background(), &dto.CreateAcademicYearRequest{Year: 2026}, "admin-id"); !errors.Is(err, ErrAcademicYearExists) {
		t.Errorf("期望 ErrAcademicYearExists，实际: %v", err)
	}
}

func TestAcademicYear_EndRequiresCompletedSessions(t *testing.T) {
	years, _, f := setupYearServices()
	ctx := context.Background()
	end := "END"

	_, err := years.Update(ctx, f.year.AcademicYearID, &dto.UpdateAcademicYearRequest{Status: &end}, "admin-id")
	if !errors.Is(err, ErrYearHasOpenSessions) {
		t.Errorf("期望 ErrYearHasOpenSessions，实际: %v", err)
	}

	f.setSession(model.SessionCompleted)
	resp, err := years.Update(ctx, f.year.AcademicYearID, &dto.UpdateAcademicYearRequest{Status: &end}, "admin-id")
	if err != nil {
		t.Fatalf("结束学年应成功: %v", err)
	}
	if resp.Status != string(model.AcademicYearEnd) {
		t.Errorf("期望状态 END，实际=%s", resp.Status)
	}

	start := "START"
	if _, err := years.Update(ctx, f.year.AcademicYearID, &dto.UpdateAcademicYearRequest{Status: &start}, "admin-id"); !errors.Is(err, ErrAcademicYearEnded) {
		t.Errorf("END 为终态，期望 ErrAcademicYearEnded，实际: %v", err)
	}
}

// ── 批次 ──

func TestYearSession_Create(t *testing.T) {
	_, sessions, f := setupYearServices()
	ctx := context.Background()
	other := f.db.addDept("TOAN", "Toán")

	resp, err := sessions.Create(ctx, &dto.CreateYearSessionRequest{
		AcademicYearID: f.year.AcademicYearID,
		DepartmentID:   other.DepartmentID,
	}, "admin-id")
	if err != nil {
		t.Fatalf("创建批次应成功: %v", err)
	}
	if resp.Status != string(model.SessionOnRegistration) || resp.Year != 2025 || resp.DepartmentName != "Toán" {
		t.Errorf("批次信息不符合预期: %+v", resp)
	}

	_, err = sessions.Create(ctx, &dto.CreateYearSessionRequest{
		AcademicYearID: f.year.AcademicYearID,
		DepartmentID:   other.DepartmentID,
	}, "admin-id")
	if !errors.Is(err, ErrSessionExists) {
		t.Errorf("期望 ErrSessionExists，实际: %v", err)
	}
}

func TestYearSession_Transitions(t *testing.T) {
	_, sessions, f := setupYearServices()
	ctx := context.Background()
	caller := callerOf(f.assistant)
	update := func(status string) error {
		_, err := sessions.Update(ctx, f.session.SessionID, &dto.UpdateYearSessionRequest{Status: status}, caller)
		return err
	}

	if err := update("IN_PROGRESS"); !errors.Is(err, ErrInvalidSessionTransition) {
		t.Errorf("跳过审核阶段期望 ErrInvalidSessionTransition，实际: %v", err)
	}
	if err := update("UNDER_REVIEW"); err != nil {
		t.Fatalf("进入审核阶段应成功: %v", err)
	}
	if err := update("ON_REGISTRATION"); err != nil {
		t.Fatalf("审核阶段可退回登记阶段: %v", err)
	}
	if err := update("UNDER_REVIEW"); err != nil {
		t.Fatalf("进入审核阶段应成功: %v", err)
	}

	// 仍有待审核申报时不能进入执行阶段
	f.db.topics["t-pending"] = &model.Topic{
		TopicID:        "t-pending",
		Status:         model.TopicPending,
		DepartmentID:   f.dept.DepartmentID,
		AcademicYearID: f.year.AcademicYearID,
	}
	if err := update("IN_PROGRESS"); !errors.Is(err, ErrSessionHasPendingTopics) {
		t.Errorf("期望 ErrSessionHasPendingTopics，实际: %v", err)
	}
	f.db.topics["t-pending"].Status = model.TopicRejected
	if err := update("IN_PROGRESS"); err != nil {
		t.Fatalf("进入执行阶段应成功: %v", err)
	}

	// 仍有执行中的课题时不能结束
	_, at := f.seedApproved(model.ApprovedInProgress)
	if err := update("COMPLETED"); !errors.Is(err, ErrSessionHasRunningTopics) {
		t.Errorf("期望 ErrSessionHasRunningTopics，实际: %v", err)
	}
	f.db.approved[at.ApprovedTopicID].Status = model.ApprovedCompleted
	if err := update("COMPLETED"); err != nil {
		t.Fatalf("结束批次应成功: %v", err)
	}
	if err := update("UNDER_REVIEW"); !errors.Is(err, ErrInvalidSessionTransition) {
		t.Errorf("COMPLETED 为终态，实际: %v", err)
	}
}

// 未完成是课题的最终结论，不阻止批次与学年结束
func TestYearSession_CompleteWithNotCompletedTopic(t *testing.T) {
	years, sessions, f := setupYearServices()
	ctx := context.Background()
	f.setSession(model.SessionInProgress)
	approvedSvc := NewApprovedTopicService(f.repo, newMockStorage(), nil, nil, testLogger())
	topic, at := f.seedApproved(model.ApprovedInProgress)

	if _, err := approvedSvc.Update(ctx, at.ApprovedTopicID, &dto.UpdateApprovedTopicRequest{Status: ptr("NOT_COMPLETED")}, callerOf(f.assistant)); err != nil {
		t.Fatalf("标记未完成应成功: %v", err)
	}

	resp, err := sessions.Update(ctx, f.session.SessionID, &dto.UpdateYearSessionRequest{Status: "COMPLETED"}, callerOf(f.assistant))
	if err != nil {
		t.Fatalf("含未完成课题的批次应可结束: %v", err)
	}
	if resp.Status != string(model.SessionCompleted) {
		t.Errorf("期望状态 COMPLETED，实际=%s", resp.Status)
	}

	end := "END"
	if _, err := years.Update(ctx, f.year.AcademicYearID, &dto.UpdateAcademicYearRequest{Status: &end}, "admin-id"); err != nil {
		t.Fatalf("批次全部结束后学年应可结束: %v", err)
	}

	// 批次结束后未完成课题不可再上传材料
	_, err = approvedSvc.UploadDocument(ctx, topic.TopicID, "SUMMARY_REPORT", "", pdfUpload("tongket.pdf", "x"), callerOf(f.student))
	if !errors.Is(err, lifecycle.ErrActionNotAllowed) {
		t.Errorf("期望 ErrActionNotAllowed，实际=%v", err)
	}
}

func TestYearSession_UpdatePermission(t *testing.T) {
	_, sessions, f := setupYearServices()
	other := f.db.addDept("TOAN", "Toán")
	outsider := f.db.addUser("tk900", model.RoleAssistant, other.DepartmentID)

	_, err := sessions.Update(context.Background(), f.session.SessionID, &dto.UpdateYearSessionRequest{Status: "UNDER_REVIEW"}, callerOf(outsider))
	if !errors.Is(err, pkgerrors.ErrNoPermission) {
		t.Errorf("期望 ErrNoPermission，实际: %v", err)
	}
	_, err = sessions.Update(context.Background(), f.session.SessionID, &dto.UpdateYearSessionRequest{Status: "BOGUS"}, callerOf(f.assistant))
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("期望 ErrInvalidStatus，实际: %v", err)
	}
}

func TestYearSession_ListScopedForAssistant(t *testing.T) {
	_, sessions, f := setupYearServices()
	other := f.db.addDept("TOAN", "Toán")
	f.db.addSession(f.year.AcademicYearID, other.DepartmentID, model.SessionOnRegistration)

	list, err := sessions.List(context.Background(), &dto.YearSessionListRequest{}, callerOf(f.assistant))
	if err != nil {
		t.Fatalf("查询批次应成功: %v", err)
	}
	if len(list) != 1 || list[0].DepartmentID != f.dept.DepartmentID {
		t.Errorf("教学秘书只能看到本学院批次，实际=%+v", list)
	}

	all, _ := sessions.List(context.Background(), &dto.YearSessionListRequest{}, Caller{UserID: "admin", Role: model.RoleAdmin})
	if len(all) != 2 {
		t.Errorf("管理员应看到全部批次，实际=%d", len(all))
	}
}

func TestYearSession_DeleteInUse(t *testing.T) {
	_, sessions, f := setupYearServices()
	admin := Caller{UserID: "admin", Role: model.RoleAdmin}
	f.seedApproved(model.ApprovedInProgress)

	if err := sessions.Delete(context.Background(), f.session.SessionID, admin); !errors.Is(err, ErrSessionInUse) {
		t.Errorf("期望 ErrSessionInUse，实际: %v", err)
	}
	if err := sessions.Delete(context.Background(), f.session.SessionID, callerOf(f.assistant)); !errors.Is(err, pkgerrors.ErrNoPermission) {
		t.Errorf("期望 ErrNoPermission，实际: %v", err)
	}
}
