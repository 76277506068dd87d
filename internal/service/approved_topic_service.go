package service

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/lifecycle"
	"researchhub/backend/internal/model"
	"researchhub/backend/internal/repository"
	pkgerrors "researchhub/backend/pkg/errors"
	"researchhub/backend/pkg/metrics"
	"researchhub/backend/pkg/storage"
)

// ── 立项课题 / 材料业务错误 ──

var (
	ErrApprovedTopicNotFound = errors.New("立项课题不存在")
	ErrTopicNotApproved      = errors.New("课题尚未立项")
	ErrCodeImmutable         = errors.New("立项编号不可修改")
	ErrInvalidApprovedStatus = errors.New("无效的立项状态")
	ErrApprovedTransition    = errors.New("不允许的立项状态流转")
	ErrDocumentNotFound      = errors.New("材料不存在")
	ErrInvalidDocumentType   = errors.New("无效的材料类型")
	ErrInvalidFileType       = errors.New("不支持的文件格式")
	ErrSummaryNotSupported   = errors.New("仅科研论文可填写摘要")
)

// documentExts 各类材料允许的扩展名
var documentExts = map[model.DocumentType]map[string]bool{
	model.DocMidtermReport:     {".pdf": true, ".doc": true, ".docx": true},
	model.DocScientificArticle: {".pdf": true, ".doc": true, ".docx": true},
	model.DocPresentation:      {".pdf": true, ".ppt": true, ".pptx": true},
	model.DocSummaryReport:     {".pdf": true, ".doc": true, ".docx": true},
}

// ApprovedTopicService 立项课题与材料业务接口
type ApprovedTopicService interface {
	List(ctx context.Context, req *dto.ApprovedTopicListRequest, caller Caller) ([]dto.ApprovedTopicResponse, int64, error)
	// Update 教学秘书维护奖项、领域、类型与执行状态，编号只读
	Update(ctx context.Context, id string, req *dto.UpdateApprovedTopicRequest, caller Caller) (*dto.ApprovedTopicResponse, error)
	ListDocuments(ctx context.Context, approvedTopicID string, caller Caller) ([]dto.DocumentResponse, error)
	ListTopicDocuments(ctx context.Context, topicID string, caller Caller) ([]dto.DocumentResponse, error)
	// UploadDocument 同类型材料只保留一份，重复上传替换旧文件
	UploadDocument(ctx context.Context, topicID, docType, summary string, file FileUpload, caller Caller) (*dto.DocumentResponse, error)
	UpdateSummary(ctx context.Context, documentID string, req *dto.UpdateDocumentSummaryRequest, caller Caller) (*dto.DocumentResponse, error)
	DeleteDocument(ctx context.Context, documentID string, caller Caller) error
}

type approvedTopicService struct {
	repo    *repository.Repository
	storage storage.Provider
	cache   *queryCache
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewApprovedTopicService 创建 ApprovedTopicService 实例
func NewApprovedTopicService(repo *repository.Repository, store storage.Provider, cache *queryCache, m *metrics.Metrics, logger *zap.Logger) ApprovedTopicService {
	return &approvedTopicService{repo: repo, storage: store, cache: cache, metrics: m, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *approvedTopicService) List(ctx context.Context, req *dto.ApprovedTopicListRequest, caller Caller) ([]dto.ApprovedTopicResponse, int64, error) {
	status, _ := model.ParseApprovedTopicStatus(req.Status)
	filter := repository.ApprovedTopicFilter{
		DepartmentID:   caller.scopeDepartment(req.DepartmentID),
		AcademicYearID: req.AcademicYearID,
		Status:         status,
		Keyword:        strings.TrimSpace(req.Keyword),
	}
	params := struct {
		Filter repository.ApprovedTopicFilter
		Offset int
		Limit  int
	}{filter, req.GetOffset(), req.GetPageSize()}

	var page cachedPage[dto.ApprovedTopicResponse]
	if s.cache.get(ctx, nsApprovedTopics, params, &page) {
		return page.List, page.Total, nil
	}

	list, total, err := s.repo.ApprovedTopic.List(ctx, filter, params.Offset, params.Limit)
	if err != nil {
		s.logger.Error("查询立项课题列表失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.ApprovedTopicResponse, 0, len(list))
	for i := range list {
		result = append(result, toApprovedTopicResponse(&list[i]))
	}

	s.cache.set(ctx, nsApprovedTopics, params, cachedPage[dto.ApprovedTopicResponse]{List: result, Total: total})
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *approvedTopicService) Update(ctx context.Context, id string, req *dto.UpdateApprovedTopicRequest, caller Caller) (*dto.ApprovedTopicResponse, error) {
	at, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	topic := at.Topic
	if !caller.IsAssistantOf(topic.DepartmentID) {
		return nil, pkgerrors.ErrNoPermission
	}
	if req.Code != nil && strings.TrimSpace(*req.Code) != at.Code {
		return nil, ErrCodeImmutable
	}

	sub, err := buildSubject(ctx, s.repo, topic, caller)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Check(lifecycle.ActionEditApprovedMetadata, sub); err != nil {
		return nil, err
	}

	from := at.Status
	if req.Status != nil {
		to, ok := model.ParseApprovedTopicStatus(*req.Status)
		if !ok {
			return nil, ErrInvalidApprovedStatus
		}
		if !lifecycle.CanApprovedTransition(from, to) {
			return nil, ErrApprovedTransition
		}
		at.Status = to
	}
	if req.Prize != nil {
		at.Prize = strings.TrimSpace(*req.Prize)
	}
	if req.FieldResearch != nil {
		at.FieldResearch = strings.TrimSpace(*req.FieldResearch)
	}
	if req.TypeResearch != nil {
		at.TypeResearch = strings.TrimSpace(*req.TypeResearch)
	}
	at.UpdatedBy = &caller.UserID

	if err := s.repo.ApprovedTopic.Update(ctx, at); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新立项课题失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	if from != at.Status {
		s.metrics.ObserveTransition("approved", string(from), string(at.Status))
		s.logger.Info("立项状态变更",
			zap.String("code", at.Code),
			zap.String("from", string(from)),
			zap.String("to", string(at.Status)),
			zap.String("operator", caller.UserID))
	}
	s.cache.invalidate(ctx, nsApprovedTopics, nsTopics, nsDashboard)

	resp := toApprovedTopicResponse(at)
	return &resp, nil
}

// ────────────────────── Documents ──────────────────────

func (s *approvedTopicService) ListDocuments(ctx context.Context, approvedTopicID string, caller Caller) ([]dto.DocumentResponse, error) {
	at, err := s.get(ctx, approvedTopicID)
	if err != nil {
		return nil, err
	}
	if !canViewTopic(at.Topic, caller) {
		return nil, pkgerrors.ErrNoPermission
	}
	return s.listDocuments(ctx, at.ApprovedTopicID)
}

func (s *approvedTopicService) ListTopicDocuments(ctx context.Context, topicID string, caller Caller) ([]dto.DocumentResponse, error) {
	topic, err := s.approvedTopicOf(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if !canViewTopic(topic, caller) {
		return nil, pkgerrors.ErrNoPermission
	}
	return s.listDocuments(ctx, topic.ApprovedTopic.ApprovedTopicID)
}

func (s *approvedTopicService) listDocuments(ctx context.Context, approvedTopicID string) ([]dto.DocumentResponse, error) {
	docs, err := s.repo.Document.ListByApprovedTopic(ctx, approvedTopicID)
	if err != nil {
		s.logger.Error("查询课题材料失败", zap.String("approved_topic_id", approvedTopicID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.DocumentResponse, 0, len(docs))
	for i := range docs {
		result = append(result, toDocumentResponse(&docs[i]))
	}
	return result, nil
}

func (s *approvedTopicService) UploadDocument(ctx context.Context, topicID, docType, summary string, file FileUpload, caller Caller) (*dto.DocumentResponse, error) {
	dt, ok := model.ParseDocumentType(docType)
	if !ok {
		return nil, ErrInvalidDocumentType
	}
	if !documentExts[dt][strings.ToLower(path.Ext(file.FileName))] {
		return nil, ErrInvalidFileType
	}
	summary = strings.TrimSpace(summary)
	if summary != "" && dt != model.DocScientificArticle {
		return nil, ErrSummaryNotSupported
	}

	topic, err := s.approvedTopicOf(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDocumentAction(ctx, lifecycle.ActionUploadDocument, topic, caller); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, pkgerrors.ErrStorageUnavailable
	}
	at := topic.ApprovedTopic

	// 1. 先写对象存储
	key := storage.ObjectKey("documents/"+at.ApprovedTopicID, file.FileName)
	url, err := s.storage.Upload(ctx, key, file.Reader, file.Size, file.ContentType)
	s.metrics.ObserveUpload(string(dt), err == nil)
	if err != nil {
		s.logger.Error("上传课题材料失败", zap.String("code", at.Code), zap.String("type", string(dt)), zap.Error(err))
		return nil, err
	}

	// 2. 再写数据库，同类型已存在时替换；锁定立项记录以串行化同一课题的并发上传
	var oldKey string
	var doc *model.TopicDocument
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.ApprovedTopic.LockByID(ctx, at.ApprovedTopicID); err != nil {
			return err
		}
		existing, err := tx.Document.GetByType(ctx, at.ApprovedTopicID, dt)
		switch {
		case err == nil:
			oldKey = existing.FileKey
			existing.FileKey = key
			existing.FileURL = url
			existing.FileName = file.FileName
			existing.UploadedAt = time.Now()
			if summary != "" {
				existing.Summary = summary
			}
			existing.UpdatedBy = &caller.UserID
			doc = existing
			return tx.Document.Update(ctx, doc)
		case errors.Is(err, gorm.ErrRecordNotFound):
			doc = &model.TopicDocument{
				ApprovedTopicID: at.ApprovedTopicID,
				DocumentType:    dt,
				FileKey:         key,
				FileURL:         url,
				FileName:        file.FileName,
				Summary:         summary,
				UploadedAt:      time.Now(),
			}
			doc.CreatedBy = &caller.UserID
			doc.UpdatedBy = &caller.UserID
			return tx.Document.Create(ctx, doc)
		default:
			return err
		}
	})
	if err != nil {
		s.logger.Error("保存课题材料失败", zap.String("code", at.Code), zap.String("type", string(dt)), zap.Error(err))
		s.removeObject(ctx, key)
		return nil, err
	}

	if oldKey != "" && oldKey != key {
		s.removeObject(ctx, oldKey)
	}
	s.cache.invalidate(ctx, nsApprovedTopics, nsDashboard)

	resp := toDocumentResponse(doc)
	return &resp, nil
}

func (s *approvedTopicService) UpdateSummary(ctx context.Context, documentID string, req *dto.UpdateDocumentSummaryRequest, caller Caller) (*dto.DocumentResponse, error) {
	doc, topic, err := s.documentWithTopic(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.DocumentType != model.DocScientificArticle {
		return nil, ErrSummaryNotSupported
	}
	if err := s.checkDocumentAction(ctx, lifecycle.ActionUploadDocument, topic, caller); err != nil {
		return nil, err
	}

	doc.Summary = strings.TrimSpace(req.Summary)
	doc.UpdatedBy = &caller.UserID
	if err := s.repo.Document.Update(ctx, doc); err != nil {
		s.logger.Error("更新论文摘要失败", zap.String("id", documentID), zap.Error(err))
		return nil, err
	}
	s.cache.invalidate(ctx, nsApprovedTopics)

	resp := toDocumentResponse(doc)
	return &resp, nil
}

func (s *approvedTopicService) DeleteDocument(ctx context.Context, documentID string, caller Caller) error {
	doc, topic, err := s.documentWithTopic(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.checkDocumentAction(ctx, lifecycle.ActionDeleteDocument, topic, caller); err != nil {
		return err
	}

	if err := s.repo.Document.Delete(ctx, doc.DocumentID); err != nil {
		s.logger.Error("删除课题材料失败", zap.String("id", documentID), zap.Error(err))
		return err
	}
	s.removeObject(ctx, doc.FileKey)
	s.cache.invalidate(ctx, nsApprovedTopics, nsDashboard)
	return nil
}

// ── 内部辅助方法 ──

func (s *approvedTopicService) get(ctx context.Context, id string) (*model.ApprovedTopic, error) {
	at, err := s.repo.ApprovedTopic.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApprovedTopicNotFound
		}
		s.logger.Error("查询立项课题失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if at.Topic == nil {
		return nil, ErrApprovedTopicNotFound
	}
	at.Topic.ApprovedTopic = at
	return at, nil
}

// approvedTopicOf 加载已立项的课题，ApprovedTopic 必定非空
func (s *approvedTopicService) approvedTopicOf(ctx context.Context, topicID string) (*model.Topic, error) {
	topic, err := s.repo.Topic.GetByID(ctx, topicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		s.logger.Error("查询申报失败", zap.String("id", topicID), zap.Error(err))
		return nil, err
	}
	if topic.Status != model.TopicApproved || topic.ApprovedTopic == nil {
		return nil, ErrTopicNotApproved
	}
	return topic, nil
}

func (s *approvedTopicService) documentWithTopic(ctx context.Context, documentID string) (*model.TopicDocument, *model.Topic, error) {
	doc, err := s.repo.Document.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrDocumentNotFound
		}
		s.logger.Error("查询课题材料失败", zap.String("id", documentID), zap.Error(err))
		return nil, nil, err
	}
	at, err := s.get(ctx, doc.ApprovedTopicID)
	if err != nil {
		return nil, nil, err
	}
	return doc, at.Topic, nil
}

func (s *approvedTopicService) checkDocumentAction(ctx context.Context, action lifecycle.Action, topic *model.Topic, caller Caller) error {
	sub, err := buildSubject(ctx, s.repo, topic, caller)
	if err != nil {
		return err
	}
	return lifecycle.Check(action, sub)
}

func (s *approvedTopicService) removeObject(ctx context.Context, key string) {
	if s.storage == nil || key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn("删除存储对象失败", zap.String("key", key), zap.Error(err))
	}
}

func toDocumentResponse(d *model.TopicDocument) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:              d.DocumentID,
		ApprovedTopicID: d.ApprovedTopicID,
		DocumentType:    string(d.DocumentType),
		FileName:        d.FileName,
		FileURL:         d.FileURL,
		Summary:         d.Summary,
		UploadedAt:      dto.FormatTime(d.UploadedAt),
	}
}

func toApprovedTopicResponse(at *model.ApprovedTopic) dto.ApprovedTopicResponse {
	resp := dto.ApprovedTopicResponse{
		ID:            at.ApprovedTopicID,
		TopicID:       at.TopicID,
		Code:          at.Code,
		Prize:         at.Prize,
		FieldResearch: at.FieldResearch,
		TypeResearch:  at.TypeResearch,
		Status:        string(at.Status),
		Documents:     make([]dto.DocumentResponse, 0, len(at.Documents)),
		UpdatedAt:     dto.FormatTime(at.UpdatedAt),
	}
	if t := at.Topic; t != nil {
		resp.Title = t.Title
		resp.DepartmentID = t.DepartmentID
		resp.AcademicYearID = t.AcademicYearID
		if leader := t.Leader(); leader != nil && leader.User != nil {
			resp.LeaderName = leader.User.FullName
		}
		if advisor := t.Advisor(); advisor != nil && advisor.User != nil {
			resp.AdvisorName = advisor.User.FullName
		}
	}
	for i := range at.Documents {
		resp.Documents = append(resp.Documents, toDocumentResponse(&at.Documents[i]))
	}
	return resp
}
