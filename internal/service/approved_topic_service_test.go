package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/lifecycle"
	"researchhub/backend/internal/model"
	pkgerrors "researchhub/backend/pkg/errors"
)

// seedApproved 直接写入一个已立项课题：学生为组长，教师为指导教师
func (f *topicFixture) seedApproved(status model.ApprovedTopicStatus) (*model.Topic, *model.ApprovedTopic) {
	topic := &model.Topic{
		TopicID:          f.db.nextID("topic"),
		Title:            "Phân tích dữ liệu môi trường",
		ShortDescription: "Mô tả",
		Objective:        "Mục tiêu",
		Content:          "Nội dung",
		Budget:           8_000_000,
		Status:           model.TopicApproved,
		DepartmentID:     f.dept.DepartmentID,
		AcademicYearID:   f.year.AcademicYearID,
		ProposedBy:       f.student.UserID,
	}
	topic.Version = 1
	f.db.topics[topic.TopicID] = topic

	for _, m := range []*model.TopicMember{
		{TopicID: topic.TopicID, UserID: f.student.UserID, Role: model.MemberRoleLeader, Status: model.MemberApproved},
		{TopicID: topic.TopicID, UserID: f.teacher.UserID, Role: model.MemberRoleAdvisor, Status: model.MemberApproved},
	} {
		m.MemberID = f.db.nextID("member")
		f.db.members[m.MemberID] = m
	}

	at := &model.ApprovedTopic{
		ApprovedTopicID: f.db.nextID("approved"),
		TopicID:         topic.TopicID,
		Code:            lifecycle.FormatTopicCode("NCKH", f.year.Year, len(f.db.approved)+1),
		Status:          status,
	}
	at.Version = 1
	f.db.approved[at.ApprovedTopicID] = at
	return topic, at
}

func setupApprovedTopicService() (ApprovedTopicService, *topicFixture, *mockStorage) {
	f := newTopicFixture()
	f.setSession(model.SessionInProgress)
	store := newMockStorage()
	return NewApprovedTopicService(f.repo, store, nil, nil, testLogger()), f, store
}

func pdfUpload(name, body string) FileUpload {
	return FileUpload{
		FileName:    name,
		Size:        int64(len(body)),
		ContentType: "application/pdf",
		Reader:      strings.NewReader(body),
	}
}

// ── 材料上传 ──

func TestUploadDocument_Success(t *testing.T) {
	svc, f, store := setupApprovedTopicService()
	topic, at := f.seedApproved(model.ApprovedInProgress)

	resp, err := svc.UploadDocument(context.Background(), topic.TopicID, "MIDTERM_REPORT", "", pdfUpload("baocao.pdf", "v1"), callerOf(f.student))
	if err != nil {
		t.Fatalf("上传材料应成功: %v", err)
	}
	if resp.ApprovedTopicID != at.ApprovedTopicID || resp.DocumentType != string(model.DocMidtermReport) {
		t.Errorf("材料归属不符合预期: %+v", resp)
	}
	if len(store.objects) != 1 {
		t.Errorf("期望存储 1 个对象，实际=%d", len(store.objects))
	}
}

func TestUploadDocument_ReplacesPrevious(t *testing.T) {
	svc, f, store := setupApprovedTopicService()
	ctx := context.Background()
	topic, at := f.seedApproved(model.ApprovedInProgress)

	first, err := svc.UploadDocument(ctx, topic.TopicID, "MIDTERM_REPORT", "", pdfUpload("v1.pdf", "v1"), callerOf(f.student))
	if err != nil {
		t.Fatalf("首次上传应成功: %v", err)
	}
	second, err := svc.UploadDocument(ctx, topic.TopicID, "MIDTERM_REPORT", "", pdfUpload("v2.pdf", "v2"), callerOf(f.student))
	if err != nil {
		t.Fatalf("再次上传应成功: %v", err)
	}

	if first.ID != second.ID {
		t.Error("同类型材料应替换原记录")
	}
	docs := f.db.documentsOf(at.ApprovedTopicID)
	if len(docs) != 1 || docs[0].FileName != "v2.pdf" {
		t.Errorf("期望仅保留 v2.pdf，实际=%+v", docs)
	}
	if len(store.deleted) != 1 || len(store.objects) != 1 {
		t.Errorf("旧文件应被删除，deleted=%v objects=%d", store.deleted, len(store.objects))
	}
	if _, ok := store.objects[docs[0].FileKey]; !ok {
		t.Error("存储中应保留新文件")
	}
	if len(f.db.approvedLocks) != 2 || f.db.approvedLocks[0] != at.ApprovedTopicID {
		t.Errorf("每次写入材料前应锁定立项记录，实际=%v", f.db.approvedLocks)
	}
}

func TestUploadDocument_LockedWhenSessionCompleted(t *testing.T) {
	svc, f, store := setupApprovedTopicService()
	ctx := context.Background()
	topic, _ := f.seedApproved(model.ApprovedNotCompleted)
	f.setSession(model.SessionCompleted)

	_, err := svc.UploadDocument(ctx, topic.TopicID, "SUMMARY_REPORT", "", pdfUpload("tongket.pdf", "x"), callerOf(f.student))
	if !errors.Is(err, lifecycle.ErrActionNotAllowed) {
		t.Errorf("批次结束后上传期望 ErrActionNotAllowed，实际=%v", err)
	}
	if len(store.objects) != 0 {
		t.Error("被拒绝的上传不应写入存储")
	}

	// 负责人同样不能再编辑立项内容
	cfg := testConfig()
	topicSvc := NewTopicService(cfg, f.repo, newProposalValidator(&cfg.Topic), nil, nil, testLogger())
	_, err = topicSvc.Update(ctx, topic.TopicID, &dto.UpdateTopicRequest{Title: ptr("Tiêu đề mới")}, callerOf(f.student))
	if !errors.Is(err, lifecycle.ErrActionNotAllowed) {
		t.Errorf("批次结束后编辑期望 ErrActionNotAllowed，实际=%v", err)
	}
}

func TestUploadDocument_Rules(t *testing.T) {
	svc, f, _ := setupApprovedTopicService()
	ctx := context.Background()
	topic, _ := f.seedApproved(model.ApprovedInProgress)

	tests := []struct {
		name    string
		docType string
		summary string
		file    string
		caller  Caller
		wantErr error
	}{
		{"未知类型", "POSTER", "", "a.pdf", callerOf(f.student), ErrInvalidDocumentType},
		{"扩展名不符", "PRESENTATION", "", "a.docx", callerOf(f.student), ErrInvalidFileType},
		{"非论文不可填摘要", "MIDTERM_REPORT", "tóm tắt", "a.pdf", callerOf(f.student), ErrSummaryNotSupported},
		{"非组长学生", "MIDTERM_REPORT", "", "a.pdf", callerOf(f.student2), lifecycle.ErrActionNotAllowed},
		{"指导教师不可上传", "MIDTERM_REPORT", "", "a.pdf", callerOf(f.teacher), lifecycle.ErrActionNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadDocument(ctx, topic.TopicID, tt.docType, tt.summary, pdfUpload(tt.file, "x"), tt.caller)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v，实际=%v", tt.wantErr, err)
			}
		})
	}
}

func TestUploadDocument_TopicNotApproved(t *testing.T) {
	svc, f, _ := setupApprovedTopicService()
	topic, _ := f.seedApproved(model.ApprovedInProgress)
	f.db.topics[topic.TopicID].Status = model.TopicPending

	_, err := svc.UploadDocument(context.Background(), topic.TopicID, "MIDTERM_REPORT", "", pdfUpload("a.pdf", "x"), callerOf(f.student))
	if !errors.Is(err, ErrTopicNotApproved) {
		t.Errorf("期望 ErrTopicNotApproved，实际=%v", err)
	}
}

func TestUploadDocument_StorageFailure(t *testing.T) {
	svc, f, store := setupApprovedTopicService()
	topic, at := f.seedApproved(model.ApprovedInProgress)
	store.failWrite = true

	_, err := svc.UploadDocument(context.Background(), topic.TopicID, "MIDTERM_REPORT", "", pdfUpload("a.pdf", "x"), callerOf(f.student))
	if err == nil {
		t.Fatal("存储失败时上传应失败")
	}
	if len(f.db.documentsOf(at.ApprovedTopicID)) != 0 {
		t.Error("存储失败时不应写入材料记录")
	}
}

func TestUpdateSummary_ArticleOnly(t *testing.T) {
	svc, f, _ := setupApprovedTopicService()
	ctx := context.Background()
	topic, _ := f.seedApproved(model.ApprovedInProgress)

	article, err := svc.UploadDocument(ctx, topic.TopicID, "SCIENTIFIC_ARTICLE", "bản nháp", pdfUpload("baibao.pdf", "x"), callerOf(f.student))
	if err != nil {
		t.Fatalf("上传论文应成功: %v", err)
	}
	resp, err := svc.UpdateSummary(ctx, article.ID, &dto.UpdateDocumentSummaryRequest{Summary: "  tóm tắt mới "}, callerOf(f.student))
	if err != nil {
		t.Fatalf("修改摘要应成功: %v", err)
	}
	if resp.Summary != "tóm tắt mới" {
		t.Errorf("期望摘要被裁剪保存，实际=%q", resp.Summary)
	}

	report, _ := svc.UploadDocument(ctx, topic.TopicID, "MIDTERM_REPORT", "", pdfUpload("baocao.pdf", "x"), callerOf(f.student))
	_, err = svc.UpdateSummary(ctx, report.ID, &dto.UpdateDocumentSummaryRequest{Summary: "x"}, callerOf(f.student))
	if !errors.Is(err, ErrSummaryNotSupported) {
		t.Errorf("期望 ErrSummaryNotSupported，实际=%v", err)
	}
}

func TestUpdateSummary_RefreshesCachedList(t *testing.T) {
	f := newTopicFixture()
	f.setSession(model.SessionInProgress)
	svc := NewApprovedTopicService(f.repo, newMockStorage(), newTestQueryCache(), nil, testLogger())
	ctx := context.Background()
	topic, _ := f.seedApproved(model.ApprovedInProgress)

	article, err := svc.UploadDocument(ctx, topic.TopicID, "SCIENTIFIC_ARTICLE", "bản cũ", pdfUpload("baibao.pdf", "x"), callerOf(f.student))
	if err != nil {
		t.Fatalf("上传论文应成功: %v", err)
	}
	summaryOf := func() string {
		list, _, err := svc.List(ctx, &dto.ApprovedTopicListRequest{}, callerOf(f.assistant))
		if err != nil || len(list) != 1 || len(list[0].Documents) != 1 {
			t.Fatalf("查询立项列表不符合预期: %v", err)
		}
		return list[0].Documents[0].Summary
	}

	if got := summaryOf(); got != "bản cũ" {
		t.Fatalf("期望摘要=bản cũ，实际=%q", got)
	}
	if _, err := svc.UpdateSummary(ctx, article.ID, &dto.UpdateDocumentSummaryRequest{Summary: "bản mới"}, callerOf(f.student)); err != nil {
		t.Fatalf("修改摘要应成功: %v", err)
	}
	if got := summaryOf(); got != "bản mới" {
		t.Errorf("修改摘要后列表缓存应失效，实际=%q", got)
	}
}

func TestDeleteDocument(t *testing.T) {
	svc, f, store := setupApprovedTopicService()
	ctx := context.Background()
	topic, at := f.seedApproved(model.ApprovedInProgress)

	doc, _ := svc.UploadDocument(ctx, topic.TopicID, "PRESENTATION", "", pdfUpload("slide.pptx", "x"), callerOf(f.student))
	if err := svc.DeleteDocument(ctx, doc.ID, callerOf(f.student2)); !errors.Is(err, lifecycle.ErrActionNotAllowed) {
		t.Errorf("非组长删除期望 ErrActionNotAllowed，实际=%v", err)
	}
	if err := svc.DeleteDocument(ctx, doc.ID, callerOf(f.student)); err != nil {
		t.Fatalf("删除材料应成功: %v", err)
	}
	if len(f.db.documentsOf(at.ApprovedTopicID)) != 0 || len(store.objects) != 0 {
		t.Error("删除后记录与文件都应移除")
	}
	if err := svc.DeleteDocument(ctx, doc.ID, callerOf(f.student)); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("期望 ErrDocumentNotFound，实际=%v", err)
	}
}

// ── 立项信息维护 ──

func TestApprovedTopicUpdate_CodeImmutable(t *testing.T) {
	svc, f, _ := setupApprovedTopicService()
	_, at := f.seedApproved(model.ApprovedInProgress)

	_, err := svc.Update(context.Background(), at.ApprovedTopicID, &dto.UpdateApprovedTopicRequest{
		Code: ptr("NCKH-25-999"),
	}, callerOf(f.assistant))
	if !errors.Is(err, ErrCodeImmutable) {
		t.Errorf("期望 ErrCodeImmutable，实际=%v", err)
	}

	// 原编号原样提交视为未修改
	resp, err := svc.Update(context.Background(), at.ApprovedTopicID, &dto.UpdateApprovedTopicRequest{
		Code:  ptr(at.Code),
		Prize: ptr("Giải nhì"),
	}, callerOf(f.assistant))
	if err != nil {
		t.Fatalf("更新立项信息应成功: %v", err)
	}
	if resp.Code != at.Code || resp.Prize != "Giải nhì" {
		t.Errorf("更新结果不符合预期: %+v", resp)
	}
}

func TestApprovedTopicUpdate_StatusTransitions(t *testing.T) {
	svc, f, _ := setupApprovedTopicService()
	ctx := context.Background()
	_, at := f.seedApproved(model.ApprovedInProgress)

	resp, err := svc.Update(ctx, at.ApprovedTopicID, &dto.UpdateApprovedTopicRequest{Status: ptr("CANCELLED")}, callerOf(f.assistant))
	if err != nil {
		t.Fatalf("取消立项应成功: %v", err)
	}
	if resp.Status != string(model.ApprovedCanceled) {
		t.Errorf("CANCELLED 应规范为 CANCELED，实际=%s", resp.Status)
	}

	_, err = svc.Update(ctx, at.ApprovedTopicID, &dto.UpdateApprovedTopicRequest{Prize: ptr("x")}, callerOf(f.assistant))
	if !errors.Is(err, lifecycle.ErrActionNotAllowed) {
		t.Errorf("已取消的课题不可维护，实际=%v", err)
	}

	_, other := f.seedApproved(model.ApprovedCompleted)
	_, err = svc.Update(ctx, other.ApprovedTopicID, &dto.UpdateApprovedTopicRequest{Status: ptr("IN_PROGRESS")}, callerOf(f.assistant))
	if !errors.Is(err, ErrApprovedTransition) {
		t.Errorf("期望 ErrApprovedTransition，实际=%v", err)
	}
	_, err = svc.Update(ctx, other.ApprovedTopicID, &dto.UpdateApprovedTopicRequest{Status: ptr("DONE")}, callerOf(f.assistant))
	if !errors.Is(err, ErrInvalidApprovedStatus) {
		t.Errorf("期望 ErrInvalidApprovedStatus，实际=%v", err)
	}
}

func TestApprovedTopicUpdate_OnlySameDepartmentAssistant(t *testing.T) {
	svc, f, _ := setupApprovedTopicService()
	_, at := f.seedApproved(model.ApprovedInProgress)

	_, err := svc.Update(context.Background(), at.ApprovedTopicID, &dto.UpdateApprovedTopicRequest{Prize: ptr("x")}, callerOf(f.student))
	if !errors.Is(err, pkgerrors.ErrNoPermission) {
		t.Errorf("期望 ErrNoPermission，实际=%v", err)
	}
}

func TestApprovedTopicList(t *testing.T) {
	svc, f, _ := setupApprovedTopicService()
	f.seedApproved(model.ApprovedInProgress)
	f.seedApproved(model.ApprovedCompleted)

	list, total, err := svc.List(context.Background(), &dto.ApprovedTopicListRequest{Status: "COMPLETED"}, callerOf(f.assistant))
	if err != nil {
		t.Fatalf("查询立项列表应成功: %v", err)
	}
	if total != 1 || list[0].Status != string(model.ApprovedCompleted) {
		t.Errorf("期望 1 条 COMPLETED，实际 total=%d", total)
	}
	if list[0].LeaderName == "" || list[0].AdvisorName == "" {
		t.Errorf("应带出组长与指导教师姓名: %+v", list[0])
	}
}
