package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"researchhub/backend/config"
	"researchhub/backend/internal/dto"
	"researchhub/backend/internal/lifecycle"
	"researchhub/backend/internal/model"
	"researchhub/backend/internal/repository"
	pkgerrors "researchhub/backend/pkg/errors"
	"researchhub/backend/pkg/metrics"
)

// ── 选题申报业务错误 ──

var (
	ErrTopicNotFound      = errors.New("申报不存在")
	ErrUserNoDepartment   = errors.New("当前用户未归属学院")
	ErrRegistrationClosed = errors.New("当前批次不在申报登记阶段")
	ErrAdvisorInvalid     = errors.New("指导教师必须是教师账号")
	ErrLeaderInvalid      = errors.New("组长必须是学生成员")
	ErrLeaderNotMember    = errors.New("组长必须已是课题成员")
	ErrPendingMembers     = errors.New("仍有待审核的成员申请")
	ErrLeaderRequired     = errors.New("立项前必须确定组长")
	ErrAdvisorRequired    = errors.New("立项前必须确定指导教师")
	ErrAlreadyMember      = errors.New("已是该课题成员或已提交申请")
	ErrTopicNotOpen       = errors.New("课题申报阶段已结束")
	ErrNoPendingMembers   = errors.New("没有可处理的成员申请")
)

// TopicService 选题申报业务接口
type TopicService interface {
	Create(ctx context.Context, req *dto.CreateTopicRequest, caller Caller) (*dto.TopicResponse, error)
	GetByID(ctx context.Context, id string, caller Caller) (*dto.TopicResponse, error)
	List(ctx context.Context, req *dto.TopicListRequest, caller Caller) ([]dto.TopicResponse, int64, error)
	// ListMine 当前用户提交或参与的课题
	ListMine(ctx context.Context, caller Caller) ([]dto.TopicResponse, error)
	// Update 负责人编辑申报或立项内容，NEEDS_UPDATE 保存后回到 PENDING
	Update(ctx context.Context, id string, req *dto.UpdateTopicRequest, caller Caller) (*dto.TopicResponse, error)
	// UpdateStatus 教学秘书审核，APPROVED 时同一事务内分配编号并创建立项课题
	UpdateStatus(ctx context.Context, id string, req *dto.UpdateTopicStatusRequest, caller Caller) (*dto.TopicResponse, error)
	AssignAdvisor(ctx context.Context, id string, req *dto.AssignAdvisorRequest, caller Caller) (*dto.TopicResponse, error)
	AssignLeader(ctx context.Context, id string, req *dto.AssignLeaderRequest, caller Caller) (*dto.TopicResponse, error)
	Register(ctx context.Context, id string, caller Caller) (*dto.TopicResponse, error)
	ApproveMembers(ctx context.Context, id string, req *dto.MemberDecisionRequest, caller Caller) (*dto.TopicResponse, error)
	RejectMembers(ctx context.Context, id string, req *dto.MemberDecisionRequest, caller Caller) (*dto.TopicResponse, error)
	Permissions(ctx context.Context, id string, caller Caller) (*dto.TopicPermissionsResponse, error)
}

type topicService struct {
	cfg       *config.Config
	repo      *repository.Repository
	validator *lifecycle.ProposalValidator
	cache     *queryCache
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewTopicService 创建 TopicService 实例
func NewTopicService(
	cfg *config.Config,
	repo *repository.Repository,
	validator *lifecycle.ProposalValidator,
	cache *queryCache,
	m *metrics.Metrics,
	logger *zap.Logger,
) TopicService {
	return &topicService{
		cfg:       cfg,
		repo:      repo,
		validator: validator,
		cache:     cache,
		metrics:   m,
		logger:    logger,
	}
}

func newProposalValidator(cfg *config.TopicConfig) *lifecycle.ProposalValidator {
	return lifecycle.NewProposalValidator(cfg.BudgetMin, cfg.BudgetMax, cfg.MaxWords)
}

// ────────────────────── Create ──────────────────────

func (s *topicService) Create(ctx context.Context, req *dto.CreateTopicRequest, caller Caller) (*dto.TopicResponse, error) {
	if caller.Role != model.RoleStudent && caller.Role != model.RoleTeacher {
		return nil, pkgerrors.ErrNoPermission
	}
	if caller.DepartmentID == "" {
		return nil, ErrUserNoDepartment
	}

	// 1. 字段校验，失败不触达存储层
	if err := s.validator.Validate(lifecycle.ProposalInput{
		Title:            req.Title,
		ShortDescription: req.ShortDescription,
		Objective:        req.Objective,
		Content:          req.Content,
		Budget:           req.Budget,
	}); err != nil {
		return nil, err
	}

	// 2. 学年与批次
	year, err := s.repo.AcademicYear.GetByID(ctx, req.AcademicYearID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAcademicYearNotFound
		}
		s.logger.Error("查询学年失败", zap.Error(err))
		return nil, err
	}
	if year.Status == model.AcademicYearEnd {
		return nil, ErrAcademicYearEnded
	}
	session, err := loadSession(ctx, s.repo, year.AcademicYearID, caller.DepartmentID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionOnRegistration {
		return nil, ErrRegistrationClosed
	}

	// 3. 学生申报可同时邀请指导教师
	var advisorID string
	if caller.Role == model.RoleStudent && req.AdvisorID != "" {
		if _, err := s.findTeacher(ctx, s.repo, req.AdvisorID); err != nil {
			return nil, err
		}
		advisorID = req.AdvisorID
	}

	topic := &model.Topic{
		Title:            strings.TrimSpace(req.Title),
		ShortDescription: req.ShortDescription,
		Objective:        req.Objective,
		Content:          req.Content,
		Budget:           req.Budget,
		Note:             req.Note,
		Status:           model.TopicPending,
		DepartmentID:     caller.DepartmentID,
		AcademicYearID:   year.AcademicYearID,
		ProposedBy:       caller.UserID,
	}
	topic.CreatedBy = &caller.UserID
	topic.UpdatedBy = &caller.UserID

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Topic.Create(ctx, topic); err != nil {
			return err
		}
		proposerRole := model.MemberRoleLeader
		if caller.Role == model.RoleTeacher {
			proposerRole = model.MemberRoleAdvisor
		}
		if err := tx.TopicMember.Create(ctx, &model.TopicMember{
			TopicID: topic.TopicID,
			UserID:  caller.UserID,
			Role:    proposerRole,
			Status:  model.MemberApproved,
		}); err != nil {
			return err
		}
		if advisorID == "" {
			return nil
		}
		return tx.TopicMember.Create(ctx, &model.TopicMember{
			TopicID: topic.TopicID,
			UserID:  advisorID,
			Role:    model.MemberRoleAdvisor,
			Status:  model.MemberPending,
		})
	})
	if err != nil {
		s.logger.Error("创建申报失败", zap.String("proposer", caller.UserID), zap.Error(err))
		return nil, err
	}

	s.cache.invalidate(ctx, nsTopics, nsDashboard)
	return s.reload(ctx, topic.TopicID)
}

// ────────────────────── Query ──────────────────────

func (s *topicService) GetByID(ctx context.Context, id string, caller Caller) (*dto.TopicResponse, error) {
	topic, err := s.loadTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canViewTopic(topic, caller) {
		return nil, pkgerrors.ErrNoPermission
	}
	resp := toTopicResponse(topic)
	return &resp, nil
}

func (s *topicService) List(ctx context.Context, req *dto.TopicListRequest, caller Caller) ([]dto.TopicResponse, int64, error) {
	status, _ := model.ParseTopicStatus(req.Status)
	filter := repository.TopicFilter{
		DepartmentID:   caller.scopeDepartment(req.DepartmentID),
		AcademicYearID: req.AcademicYearID,
		Status:         status,
		Keyword:        strings.TrimSpace(req.Keyword),
	}
	params := struct {
		Filter repository.TopicFilter
		Offset int
		Limit  int
	}{filter, req.GetOffset(), req.GetPageSize()}

	var page cachedPage[dto.TopicResponse]
	if s.cache.get(ctx, nsTopics, params, &page) {
		return page.List, page.Total, nil
	}

	topics, total, err := s.repo.Topic.List(ctx, filter, params.Offset, params.Limit)
	if err != nil {
		s.logger.Error("查询申报列表失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.TopicResponse, 0, len(topics))
	for i := range topics {
		result = append(result, toTopicResponse(&topics[i]))
	}

	s.cache.set(ctx, nsTopics, params, cachedPage[dto.TopicResponse]{List: result, Total: total})
	return result, total, nil
}

func (s *topicService) ListMine(ctx context.Context, caller Caller) ([]dto.TopicResponse, error) {
	topics, err := s.repo.Topic.ListByUser(ctx, caller.UserID)
	if err != nil {
		s.logger.Error("查询我的课题失败", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.TopicResponse, 0, len(topics))
	for i := range topics {
		result = append(result, toTopicResponse(&topics[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *topicService) Update(ctx context.Context, id string, req *dto.UpdateTopicRequest, caller Caller) (*dto.TopicResponse, error) {
	topic, err := s.loadTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isTopicOwner(topic, caller.UserID) {
		return nil, pkgerrors.ErrNoPermission
	}

	sub, err := s.subject(ctx, topic, caller)
	if err != nil {
		return nil, err
	}
	action := lifecycle.ActionEditProposal
	if topic.Status == model.TopicApproved {
		action = lifecycle.ActionEditApprovedContent
	}
	if err := lifecycle.Check(action, sub); err != nil {
		return nil, err
	}
	if req.Version != 0 && req.Version != topic.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	if req.Title != nil {
		topic.Title = strings.TrimSpace(*req.Title)
	}
	if req.ShortDescription != nil {
		topic.ShortDescription = *req.ShortDescription
	}
	if req.Objective != nil {
		topic.Objective = *req.Objective
	}
	if req.Content != nil {
		topic.Content = *req.Content
	}
	if req.Budget != nil {
		topic.Budget = *req.Budget
	}
	if req.Note != nil {
		topic.Note = *req.Note
	}
	if err := s.validator.Validate(lifecycle.ProposalInput{
		Title:            topic.Title,
		ShortDescription: topic.ShortDescription,
		Objective:        topic.Objective,
		Content:          topic.Content,
		Budget:           topic.Budget,
	}); err != nil {
		return nil, err
	}

	approved := topic.ApprovedTopic
	touchApproved := approved != nil && (req.FieldResearch != nil || req.TypeResearch != nil)
	if touchApproved {
		if req.FieldResearch != nil {
			approved.FieldResearch = *req.FieldResearch
		}
		if req.TypeResearch != nil {
			approved.TypeResearch = *req.TypeResearch
		}
		approved.UpdatedBy = &caller.UserID
	}

	from := topic.Status
	topic.Status = lifecycle.ResubmitStatus(from)
	topic.UpdatedBy = &caller.UserID

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Topic.Update(ctx, topic); err != nil {
			return err
		}
		if touchApproved {
			return tx.ApprovedTopic.Update(ctx, approved)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新申报失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	if from != topic.Status {
		s.metrics.ObserveTransition("proposal", string(from), string(topic.Status))
	}
	s.cache.invalidate(ctx, nsTopics, nsApprovedTopics, nsDashboard)
	return s.reload(ctx, id)
}

// ────────────────────── Review ──────────────────────

func (s *topicService) UpdateStatus(ctx context.Context, id string, req *dto.UpdateTopicStatusRequest, caller Caller) (*dto.TopicResponse, error) {
	to, ok := model.ParseTopicStatus(req.Status)
	if !ok {
		return nil, ErrInvalidStatus
	}
	topic, err := s.loadTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAssistantOf(topic.DepartmentID) {
		return nil, pkgerrors.ErrNoPermission
	}

	sub, err := s.subject(ctx, topic, caller)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Check(lifecycle.ActionReview, sub); err != nil {
		return nil, err
	}
	feedback := strings.TrimSpace(req.Feedback)
	if err := lifecycle.ValidateReview(topic.Status, to, feedback); err != nil {
		return nil, err
	}

	from := topic.Status
	var code string
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if to == model.TopicApproved {
			at, err := s.approve(ctx, tx, topic, req, caller)
			if err != nil {
				return err
			}
			code = at.Code
		}
		topic.Note = lifecycle.AppendReviewNote(topic.Note, to, feedback)
		topic.Status = to
		topic.UpdatedBy = &caller.UserID
		return tx.Topic.Update(ctx, topic)
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("审核申报失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.ObserveTransition("proposal", string(from), string(to))
	s.logger.Info("申报审核完成",
		zap.String("topic_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("code", code),
		zap.String("reviewer", caller.UserID))
	s.cache.invalidate(ctx, nsTopics, nsApprovedTopics, nsDashboard)
	return s.reload(ctx, id)
}

// approve 确认成员完整后锁定学年、分配流水号并创建立项课题
func (s *topicService) approve(ctx context.Context, tx *repository.Repository, topic *model.Topic, req *dto.UpdateTopicStatusRequest, caller Caller) (*model.ApprovedTopic, error) {
	if req.AdvisorID != "" {
		if err := s.assignAdvisor(ctx, tx, topic.TopicID, req.AdvisorID); err != nil {
			return nil, err
		}
	}
	if req.LeaderID != "" {
		if err := s.assignLeader(ctx, tx, topic.TopicID, req.LeaderID); err != nil {
			return nil, err
		}
	}

	members, err := tx.TopicMember.ListByTopic(ctx, topic.TopicID)
	if err != nil {
		return nil, err
	}
	roster := &model.Topic{Members: members}
	if len(roster.PendingMembers()) > 0 {
		return nil, ErrPendingMembers
	}
	if roster.Leader() == nil {
		return nil, ErrLeaderRequired
	}
	if roster.Advisor() == nil {
		return nil, ErrAdvisorRequired
	}

	year, err := tx.AcademicYear.LockByID(ctx, topic.AcademicYearID)
	if err != nil {
		return nil, err
	}
	allocated, err := tx.ApprovedTopic.CountByYear(ctx, year.AcademicYearID)
	if err != nil {
		return nil, err
	}

	at := &model.ApprovedTopic{
		TopicID: topic.TopicID,
		Code:    lifecycle.FormatTopicCode(s.cfg.Topic.CodePrefix, year.Year, int(allocated)+1),
		Status:  model.ApprovedInProgress,
	}
	at.CreatedBy = &caller.UserID
	at.UpdatedBy = &caller.UserID
	if err := tx.ApprovedTopic.Create(ctx, at); err != nil {
		return nil, err
	}
	return at, nil
}

// ────────────────────── Membership ──────────────────────

func (s *topicService) AssignAdvisor(ctx context.Context, id string, req *dto.AssignAdvisorRequest, caller Caller) (*dto.TopicResponse, error) {
	return s.assignMembers(ctx, id, caller, func(tx *repository.Repository) error {
		return s.assignAdvisor(ctx, tx, id, req.AdvisorID)
	})
}

func (s *topicService) AssignLeader(ctx context.Context, id string, req *dto.AssignLeaderRequest, caller Caller) (*dto.TopicResponse, error) {
	return s.assignMembers(ctx, id, caller, func(tx *repository.Repository) error {
		return s.assignLeader(ctx, tx, id, req.LeaderID)
	})
}

func (s *topicService) assignMembers(ctx context.Context, id string, caller Caller, fn func(tx *repository.Repository) error) (*dto.TopicResponse, error) {
	topic, err := s.loadTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAssistantOf(topic.DepartmentID) {
		return nil, pkgerrors.ErrNoPermission
	}
	sub, err := s.subject(ctx, topic, caller)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Check(lifecycle.ActionAssignMembers, sub); err != nil {
		return nil, err
	}

	if err := s.repo.Transaction(ctx, fn); err != nil {
		if !isBusinessError(err) {
			s.logger.Error("调整课题成员失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	s.cache.invalidate(ctx, nsTopics)
	return s.reload(ctx, id)
}

// assignAdvisor 替换指导教师，advisorID 为空时仅移除
func (s *topicService) assignAdvisor(ctx context.Context, tx *repository.Repository, topicID, advisorID string) error {
	if advisorID != "" {
		if _, err := s.findTeacher(ctx, tx, advisorID); err != nil {
			return err
		}
	}
	members, err := tx.TopicMember.ListByTopic(ctx, topicID)
	if err != nil {
		return err
	}

	var existing *model.TopicMember
	for i := range members {
		m := &members[i]
		if m.UserID == advisorID {
			existing = m
			continue
		}
		if m.Role == model.MemberRoleAdvisor {
			if err := tx.TopicMember.Delete(ctx, m.MemberID); err != nil {
				return err
			}
		}
	}
	if advisorID == "" {
		return nil
	}
	if existing != nil {
		if existing.Role != model.MemberRoleAdvisor {
			return ErrAdvisorInvalid
		}
		existing.Status = model.MemberApproved
		existing.User = nil
		return tx.TopicMember.Update(ctx, existing)
	}
	return tx.TopicMember.Create(ctx, &model.TopicMember{
		TopicID: topicID,
		UserID:  advisorID,
		Role:    model.MemberRoleAdvisor,
		Status:  model.MemberApproved,
	})
}

// assignLeader 现组长降为普通成员，目标成员升为组长；leaderID 为空时仅降级
func (s *topicService) assignLeader(ctx context.Context, tx *repository.Repository, topicID, leaderID string) error {
	members, err := tx.TopicMember.ListByTopic(ctx, topicID)
	if err != nil {
		return err
	}

	var target *model.TopicMember
	if leaderID != "" {
		for i := range members {
			if members[i].UserID == leaderID {
				target = &members[i]
				break
			}
		}
		if target == nil || target.Status == model.MemberRejected {
			return ErrLeaderNotMember
		}
		if target.Role == model.MemberRoleAdvisor {
			return ErrLeaderInvalid
		}
	}

	for i := range members {
		m := &members[i]
		if m.Role == model.MemberRoleLeader && m.UserID != leaderID {
			m.Role = model.MemberRoleMember
			m.User = nil
			if err := tx.TopicMember.Update(ctx, m); err != nil {
				return err
			}
		}
	}
	if target == nil {
		return nil
	}
	target.Role = model.MemberRoleLeader
	target.Status = model.MemberApproved
	target.User = nil
	return tx.TopicMember.Update(ctx, target)
}

func (s *topicService) Register(ctx context.Context, id string, caller Caller) (*dto.TopicResponse, error) {
	if caller.Role != model.RoleStudent {
		return nil, pkgerrors.ErrNoPermission
	}
	topic, err := s.loadTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	if topic.DepartmentID != caller.DepartmentID {
		return nil, pkgerrors.ErrNoPermission
	}
	if lifecycle.IsProposalTerminal(topic.Status) {
		return nil, ErrTopicNotOpen
	}
	session, err := loadSession(ctx, s.repo, topic.AcademicYearID, topic.DepartmentID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionOnRegistration {
		return nil, ErrRegistrationClosed
	}
	if topic.Member(caller.UserID) != nil {
		return nil, ErrAlreadyMember
	}

	member := &model.TopicMember{
		TopicID: topic.TopicID,
		UserID:  caller.UserID,
		Role:    model.MemberRoleMember,
		Status:  model.MemberPending,
	}
	member.CreatedBy = &caller.UserID
	if err := s.repo.TopicMember.Create(ctx, member); err != nil {
		s.logger.Error("加入课题失败", zap.String("topic_id", id), zap.Error(err))
		return nil, err
	}

	s.cache.invalidate(ctx, nsTopics)
	return s.reload(ctx, id)
}

func (s *topicService) ApproveMembers(ctx context.Context, id string, req *dto.MemberDecisionRequest, caller Caller) (*dto.TopicResponse, error) {
	return s.decideMembers(ctx, id, req, caller, model.MemberApproved)
}

func (s *topicService) RejectMembers(ctx context.Context, id string, req *dto.MemberDecisionRequest, caller Caller) (*dto.TopicResponse, error) {
	return s.decideMembers(ctx, id, req, caller, model.MemberRejected)
}

// decideMembers 教学秘书或组长处理待审核的成员申请
func (s *topicService) decideMembers(ctx context.Context, id string, req *dto.MemberDecisionRequest, caller Caller, status model.MemberStatus) (*dto.TopicResponse, error) {
	topic, err := s.loadTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	leader := topic.Leader()
	isLeader := leader != nil && leader.UserID == caller.UserID
	if !isLeader && !caller.IsAssistantOf(topic.DepartmentID) {
		return nil, pkgerrors.ErrNoPermission
	}
	if lifecycle.IsProposalTerminal(topic.Status) {
		return nil, ErrTopicNotOpen
	}

	n, err := s.repo.TopicMember.UpdatePendingStatus(ctx, topic.TopicID, req.UserIDs, status)
	if err != nil {
		s.logger.Error("处理成员申请失败", zap.String("topic_id", id), zap.Error(err))
		return nil, err
	}
	if n == 0 {
		return nil, ErrNoPendingMembers
	}

	s.cache.invalidate(ctx, nsTopics)
	return s.reload(ctx, id)
}

// ────────────────────── Permissions ──────────────────────

func (s *topicService) Permissions(ctx context.Context, id string, caller Caller) (*dto.TopicPermissionsResponse, error) {
	topic, err := s.loadTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canViewTopic(topic, caller) {
		return nil, pkgerrors.ErrNoPermission
	}
	sub, err := s.subject(ctx, topic, caller)
	if err != nil {
		return nil, err
	}

	perms := make(map[string]bool, len(lifecycle.AllActions))
	sameDeptAssistant := caller.IsAssistantOf(topic.DepartmentID)
	for action, ok := range lifecycle.Permissions(sub) {
		switch action {
		case lifecycle.ActionReview, lifecycle.ActionAssignMembers, lifecycle.ActionEditApprovedMetadata:
			ok = ok && sameDeptAssistant
		case lifecycle.ActionEditProposal, lifecycle.ActionEditApprovedContent,
			lifecycle.ActionUploadDocument, lifecycle.ActionDeleteDocument:
		}
		perms[string(action)] = ok
	}

	targets := make([]string, 0)
	if perms[string(lifecycle.ActionReview)] {
		for _, st := range lifecycle.ReviewTargets(topic.Status) {
			targets = append(targets, string(st))
		}
	}

	return &dto.TopicPermissionsResponse{
		TopicID:       topic.TopicID,
		Role:          string(caller.Role),
		IsOwner:       sub.IsOwner,
		IsLocked:      sub.IsLocked,
		SessionStatus: string(sub.SessionStatus),
		Permissions:   perms,
		ReviewTargets: targets,
	}, nil
}

// ── 内部辅助方法 ──

func (s *topicService) loadTopic(ctx context.Context, id string) (*model.Topic, error) {
	topic, err := s.repo.Topic.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		s.logger.Error("查询申报失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return topic, nil
}

func (s *topicService) reload(ctx context.Context, id string) (*dto.TopicResponse, error) {
	topic, err := s.loadTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toTopicResponse(topic)
	return &resp, nil
}

// subject 组装守卫表所需的上下文；批次缺失时批次状态为空
func (s *topicService) subject(ctx context.Context, topic *model.Topic, caller Caller) (lifecycle.Subject, error) {
	return buildSubject(ctx, s.repo, topic, caller)
}

func (s *topicService) findTeacher(ctx context.Context, repo *repository.Repository, id string) (*model.User, error) {
	user, err := repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Role != model.RoleTeacher {
		return nil, ErrAdvisorInvalid
	}
	return user, nil
}

func buildSubject(ctx context.Context, repo *repository.Repository, topic *model.Topic, caller Caller) (lifecycle.Subject, error) {
	var sessionStatus model.SessionStatus
	session, err := loadSession(ctx, repo, topic.AcademicYearID, topic.DepartmentID)
	switch {
	case err == nil:
		sessionStatus = session.Status
	case !errors.Is(err, ErrSessionNotFound):
		return lifecycle.Subject{}, err
	}

	var approvedStatus model.ApprovedTopicStatus
	if topic.ApprovedTopic != nil {
		approvedStatus = topic.ApprovedTopic.Status
	}
	return lifecycle.NewSubject(caller.Role, topic.Status, approvedStatus, sessionStatus, isTopicOwner(topic, caller.UserID)), nil
}

// isTopicOwner 负责人：已批准的组长或申报人
func isTopicOwner(topic *model.Topic, userID string) bool {
	if userID == "" {
		return false
	}
	if topic.ProposedBy == userID {
		return true
	}
	leader := topic.Leader()
	return leader != nil && leader.UserID == userID
}

func canViewTopic(topic *model.Topic, caller Caller) bool {
	if caller.IsAdmin() || (caller.DepartmentID != "" && caller.DepartmentID == topic.DepartmentID) {
		return true
	}
	return topic.ProposedBy == caller.UserID || topic.Member(caller.UserID) != nil
}

// isBusinessError 业务校验类错误不记录 Error 日志
func isBusinessError(err error) bool {
	for _, target := range []error{
		ErrPendingMembers, ErrLeaderRequired, ErrAdvisorRequired, ErrAdvisorInvalid,
		ErrLeaderInvalid, ErrLeaderNotMember, ErrUserNotFound, pkgerrors.ErrOptimisticLock,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func toTopicMemberResponse(m *model.TopicMember) dto.TopicMemberResponse {
	resp := dto.TopicMemberResponse{
		UserID: m.UserID,
		Role:   string(m.Role),
		Status: string(m.Status),
	}
	if m.User != nil {
		resp.Username = m.User.Username
		resp.FullName = m.User.FullName
	}
	return resp
}

// toTopicResponse 将 model.Topic 转换为 dto.TopicResponse
func toTopicResponse(t *model.Topic) dto.TopicResponse {
	resp := dto.TopicResponse{
		ID:               t.TopicID,
		Title:            t.Title,
		ShortDescription: t.ShortDescription,
		Objective:        t.Objective,
		Content:          t.Content,
		Budget:           t.Budget,
		Note:             t.Note,
		Status:           string(t.Status),
		DepartmentID:     t.DepartmentID,
		AcademicYearID:   t.AcademicYearID,
		ProposedBy:       t.ProposedBy,
		Members:          []dto.TopicMemberResponse{},
		PendingMembers:   []dto.TopicMemberResponse{},
		Version:          t.Version,
		SubmittedAt:      dto.FormatTime(t.SubmittedAt()),
		UpdatedAt:        dto.FormatTime(t.UpdatedAt),
	}

	for i := range t.Members {
		m := &t.Members[i]
		switch m.Status {
		case model.MemberApproved:
			resp.Members = append(resp.Members, toTopicMemberResponse(m))
		case model.MemberPending:
			resp.PendingMembers = append(resp.PendingMembers, toTopicMemberResponse(m))
		case model.MemberRejected:
		}
	}

	if leader := t.Leader(); leader != nil {
		id := leader.UserID
		resp.StudentLeaderID = &id
	}
	if advisor := t.Advisor(); advisor != nil {
		id := advisor.UserID
		resp.AdvisorID = &id
		if advisor.User != nil {
			resp.AdvisorName = advisor.User.FullName
		}
	}
	if at := t.ApprovedTopic; at != nil {
		code, atID := at.Code, at.ApprovedTopicID
		resp.Code = &code
		resp.ApprovedTopicID = &atID
		resp.ApprovedStatus = string(at.Status)
		resp.ResearchField = at.FieldResearch
		resp.ResearchType = at.TypeResearch
	}
	return resp
}
