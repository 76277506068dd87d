package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"researchhub/backend/config"
	"researchhub/backend/internal/model"
	"researchhub/backend/internal/repository"
	"researchhub/backend/pkg/mail"
	pkgerrors "researchhub/backend/pkg/errors"
	"researchhub/backend/pkg/redis"
)

// ── 内存数据集 ──
//
// 所有 mock repository 共享同一份 memDB，读取时返回副本并按需拼装关联，
// 行为上接近 GORM 的 Preload。

type memDB struct {
	seq           int
	users         map[string]*model.User
	depts         map[string]*model.Department
	years         map[string]*model.AcademicYear
	sessions      map[string]*model.YearSession
	topics        map[string]*model.Topic
	members       map[string]*model.TopicMember
	approved      map[string]*model.ApprovedTopic
	approvedLocks []string
	docs          map[string]*model.TopicDocument
	announcements map[string]*model.Announcement
	messages      map[string]*model.Message
}

func newMemDB() *memDB {
	return &memDB{
		users:         make(map[string]*model.User),
		depts:         make(map[string]*model.Department),
		years:         make(map[string]*model.AcademicYear),
		sessions:      make(map[string]*model.YearSession),
		topics:        make(map[string]*model.Topic),
		members:       make(map[string]*model.TopicMember),
		approved:      make(map[string]*model.ApprovedTopic),
		docs:          make(map[string]*model.TopicDocument),
		announcements: make(map[string]*model.Announcement),
		messages:      make(map[string]*model.Message),
	}
}

func (db *memDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%03d", prefix, db.seq)
}

// newMockRepository 构建完全由内存 mock 组成的 Repository 聚合，Transaction 直接执行回调
func newMockRepository() (*repository.Repository, *memDB) {
	db := newMemDB()
	return &repository.Repository{
		User:          &mockUserRepo{db: db},
		Department:    &mockDeptRepo{db: db},
		AcademicYear:  &mockAcademicYearRepo{db: db},
		YearSession:   &mockYearSessionRepo{db: db},
		Topic:         &mockTopicRepo{db: db},
		TopicMember:   &mockTopicMemberRepo{db: db},
		ApprovedTopic: &mockApprovedTopicRepo{db: db},
		Document:      &mockDocumentRepo{db: db},
		Announcement:  &mockAnnouncementRepo{db: db},
		Message:       &mockMessageRepo{db: db},
	}, db
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:         "test-secret-key-for-unit-tests",
			AccessTokenTTL:    15 * time.Minute,
			DefaultPassword:   "Researchhub@123",
			AdminPassword:     "Admin123@HR!",
			AssistantPassword: "Assistant123@HR!",
			MailDomain:        "husc.edu.vn",
		},
		Topic: config.TopicConfig{
			BudgetMin:  7_000_000,
			BudgetMax:  10_000_000,
			MaxWords:   100,
			CodePrefix: "NCKH",
		},
	}
}

func testLogger() *zap.Logger { return zap.NewNop() }

func paginate[T any](list []T, offset, limit int) []T {
	if offset >= len(list) {
		return []T{}
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return list[offset:end]
}

// ── 数据构造 ──

func (db *memDB) addDept(code, name string) *model.Department {
	d := &model.Department{DepartmentID: db.nextID("dept"), Code: code, Name: name}
	db.depts[d.DepartmentID] = d
	return d
}

func (db *memDB) addUser(username string, role model.Role, deptID string) *model.User {
	u := &model.User{
		UserID:   db.nextID("user"),
		Username: username,
		FullName: "Họ tên " + username,
		Email:    username + "@husc.edu.vn",
		Role:     role,
	}
	if deptID != "" {
		id := deptID
		u.DepartmentID = &id
	}
	db.users[u.UserID] = u
	return u
}

func (db *memDB) addYear(year int, active bool) *model.AcademicYear {
	y := &model.AcademicYear{AcademicYearID: db.nextID("year"), Year: year, Status: model.AcademicYearStart, IsActive: active}
	db.years[y.AcademicYearID] = y
	return y
}

func (db *memDB) addSession(yearID, deptID string, status model.SessionStatus) *model.YearSession {
	s := &model.YearSession{SessionID: db.nextID("sess"), AcademicYearID: yearID, DepartmentID: deptID, Status: status}
	db.sessions[s.SessionID] = s
	return s
}

func (db *memDB) sessionOf(yearID, deptID string) *model.YearSession {
	for _, s := range db.sessions {
		if s.AcademicYearID == yearID && s.DepartmentID == deptID {
			return s
		}
	}
	return nil
}

// ── 关联拼装 ──

func (db *memDB) userCopy(id string) *model.User {
	u, ok := db.users[id]
	if !ok {
		return nil
	}
	c := *u
	if u.DepartmentID != nil {
		if d, ok := db.depts[*u.DepartmentID]; ok {
			dc := *d
			c.Department = &dc
		}
	}
	return &c
}

func (db *memDB) topicMembers(topicID string) []model.TopicMember {
	var list []model.TopicMember
	for _, m := range db.members {
		if m.TopicID == topicID {
			c := *m
			c.User = db.userCopy(m.UserID)
			list = append(list, c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].MemberID < list[j].MemberID })
	return list
}

func (db *memDB) approvedOf(topicID string) *model.ApprovedTopic {
	for _, at := range db.approved {
		if at.TopicID == topicID {
			return at
		}
	}
	return nil
}

func (db *memDB) documentsOf(approvedID string) []model.TopicDocument {
	var list []model.TopicDocument
	for _, d := range db.docs {
		if d.ApprovedTopicID == approvedID {
			list = append(list, *d)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DocumentType < list[j].DocumentType })
	return list
}

func (db *memDB) topicCopy(id string) *model.Topic {
	t, ok := db.topics[id]
	if !ok {
		return nil
	}
	c := *t
	c.Members = db.topicMembers(id)
	c.ApprovedTopic = nil
	if at := db.approvedOf(id); at != nil {
		ac := *at
		ac.Topic = nil
		ac.Documents = nil
		c.ApprovedTopic = &ac
	}
	return &c
}

func (db *memDB) approvedCopy(at *model.ApprovedTopic) *model.ApprovedTopic {
	c := *at
	c.Topic = db.topicCopy(at.TopicID)
	if c.Topic != nil {
		c.Topic.ApprovedTopic = nil
	}
	c.Documents = db.documentsOf(at.ApprovedTopicID)
	return &c
}

// ── Mock UserRepository ──

type mockUserRepo struct{ db *memDB }

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.db.users {
		if u.Username == user.Username {
			return fmt.Errorf("duplicate key value violates unique constraint: %s", user.Username)
		}
	}
	if user.UserID == "" {
		user.UserID = m.db.nextID("user")
	}
	c := *user
	c.Department = nil
	m.db.users[user.UserID] = &c
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u := m.db.userCopy(id); u != nil {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByIDs(_ context.Context, ids []string) ([]model.User, error) {
	var list []model.User
	for _, id := range ids {
		if u := m.db.userCopy(id); u != nil {
			list = append(list, *u)
		}
	}
	return list, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for id, u := range m.db.users {
		if u.Username == username {
			return m.db.userCopy(id), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	if _, ok := m.db.users[user.UserID]; !ok {
		return gorm.ErrRecordNotFound
	}
	c := *user
	c.Department = nil
	m.db.users[user.UserID] = &c
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, mustChange bool) error {
	u, ok := m.db.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.PasswordHash = passwordHash
	u.MustChangePassword = mustChange
	return nil
}

func (m *mockUserRepo) sorted(match func(u *model.User) bool) []model.User {
	var list []model.User
	for id, u := range m.db.users {
		if match(u) {
			list = append(list, *m.db.userCopy(id))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Username < list[j].Username })
	return list
}

func (m *mockUserRepo) List(_ context.Context, filter repository.UserFilter, offset, limit int) ([]model.User, int64, error) {
	list := m.sorted(func(u *model.User) bool {
		if filter.DepartmentID != "" && u.DeptID() != filter.DepartmentID {
			return false
		}
		if filter.Role != "" && u.Role != filter.Role {
			return false
		}
		if filter.Keyword != "" && !strings.Contains(u.Username, filter.Keyword) && !strings.Contains(u.FullName, filter.Keyword) {
			return false
		}
		return true
	})
	return paginate(list, offset, limit), int64(len(list)), nil
}

func (m *mockUserRepo) ListTeachers(_ context.Context, departmentID, keyword string) ([]model.User, error) {
	return m.sorted(func(u *model.User) bool {
		return u.Role == model.RoleTeacher &&
			(departmentID == "" || u.DeptID() == departmentID) &&
			(keyword == "" || strings.Contains(u.FullName, keyword))
	}), nil
}

func (m *mockUserRepo) Search(_ context.Context, keyword, excludeID string, limit int) ([]model.User, error) {
	list := m.sorted(func(u *model.User) bool {
		return u.UserID != excludeID &&
			(strings.Contains(u.Username, keyword) || strings.Contains(u.FullName, keyword))
	})
	return paginate(list, 0, limit), nil
}

func (m *mockUserRepo) CountByRole(_ context.Context) (map[model.Role]int64, error) {
	out := make(map[model.Role]int64)
	for _, u := range m.db.users {
		out[u.Role]++
	}
	return out, nil
}

// ── Mock DepartmentRepository ──

type mockDeptRepo struct{ db *memDB }

func (m *mockDeptRepo) Create(_ context.Context, dept *model.Department) error {
	if dept.DepartmentID == "" {
		dept.DepartmentID = m.db.nextID("dept")
	}
	dept.CreatedAt = time.Now()
	c := *dept
	m.db.depts[dept.DepartmentID] = &c
	return nil
}

func (m *mockDeptRepo) GetByID(_ context.Context, id string) (*model.Department, error) {
	if d, ok := m.db.depts[id]; ok {
		c := *d
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) GetByCode(_ context.Context, code string) (*model.Department, error) {
	for _, d := range m.db.depts {
		if d.Code == code {
			c := *d
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) List(ctx context.Context, keyword string, offset, limit int) ([]model.Department, int64, error) {
	all, _ := m.ListAll(ctx)
	var list []model.Department
	for _, d := range all {
		if keyword == "" || strings.Contains(d.Name, keyword) || strings.Contains(d.Code, keyword) {
			list = append(list, d)
		}
	}
	return paginate(list, offset, limit), int64(len(list)), nil
}

func (m *mockDeptRepo) ListAll(_ context.Context) ([]model.Department, error) {
	var list []model.Department
	for _, d := range m.db.depts {
		list = append(list, *d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list, nil
}

func (m *mockDeptRepo) Update(_ context.Context, dept *model.Department) error {
	c := *dept
	m.db.depts[dept.DepartmentID] = &c
	return nil
}

func (m *mockDeptRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.db.depts, id)
	return nil
}

func (m *mockDeptRepo) CountMembers(_ context.Context, departmentID string) (int64, error) {
	var n int64
	for _, u := range m.db.users {
		if u.DeptID() == departmentID {
			n++
		}
	}
	return n, nil
}

func (m *mockDeptRepo) Count(_ context.Context) (int64, error) {
	return int64(len(m.db.depts)), nil
}

// ── Mock AcademicYearRepository ──

type mockAcademicYearRepo struct{ db *memDB }

func (m *mockAcademicYearRepo) Create(_ context.Context, year *model.AcademicYear) error {
	if year.AcademicYearID == "" {
		year.AcademicYearID = m.db.nextID("year")
	}
	c := *year
	m.db.years[year.AcademicYearID] = &c
	return nil
}

func (m *mockAcademicYearRepo) GetByID(_ context.Context, id string) (*model.AcademicYear, error) {
	if y, ok := m.db.years[id]; ok {
		c := *y
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAcademicYearRepo) GetByYear(_ context.Context, year int) (*model.AcademicYear, error) {
	for _, y := range m.db.years {
		if y.Year == year {
			c := *y
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAcademicYearRepo) GetActive(_ context.Context) (*model.AcademicYear, error) {
	for _, y := range m.db.years {
		if y.IsActive {
			c := *y
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAcademicYearRepo) LockByID(ctx context.Context, id string) (*model.AcademicYear, error) {
	return m.GetByID(ctx, id)
}

func (m *mockAcademicYearRepo) List(_ context.Context) ([]model.AcademicYear, error) {
	var list []model.AcademicYear
	for _, y := range m.db.years {
		list = append(list, *y)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Year > list[j].Year })
	return list, nil
}

func (m *mockAcademicYearRepo) Update(_ context.Context, year *model.AcademicYear) error {
	c := *year
	m.db.years[year.AcademicYearID] = &c
	return nil
}

func (m *mockAcademicYearRepo) ClearActive(_ context.Context) error {
	for _, y := range m.db.years {
		y.IsActive = false
	}
	return nil
}

func (m *mockAcademicYearRepo) Count(_ context.Context) (int64, error) {
	return int64(len(m.db.years)), nil
}

// ── Mock YearSessionRepository ──

type mockYearSessionRepo struct{ db *memDB }

func (m *mockYearSessionRepo) withRelations(s *model.YearSession) *model.YearSession {
	c := *s
	if y, ok := m.db.years[s.AcademicYearID]; ok {
		yc := *y
		c.AcademicYear = &yc
	}
	if d, ok := m.db.depts[s.DepartmentID]; ok {
		dc := *d
		c.Department = &dc
	}
	return &c
}

func (m *mockYearSessionRepo) Create(_ context.Context, session *model.YearSession) error {
	if session.SessionID == "" {
		session.SessionID = m.db.nextID("sess")
	}
	c := *session
	m.db.sessions[session.SessionID] = &c
	return nil
}

func (m *mockYearSessionRepo) GetByID(_ context.Context, id string) (*model.YearSession, error) {
	if s, ok := m.db.sessions[id]; ok {
		return m.withRelations(s), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockYearSessionRepo) Get(_ context.Context, academicYearID, departmentID string) (*model.YearSession, error) {
	if s := m.db.sessionOf(academicYearID, departmentID); s != nil {
		return m.withRelations(s), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockYearSessionRepo) List(_ context.Context, filter repository.SessionFilter) ([]model.YearSession, error) {
	var list []model.YearSession
	for _, s := range m.db.sessions {
		if filter.AcademicYearID != "" && s.AcademicYearID != filter.AcademicYearID {
			continue
		}
		if filter.DepartmentID != "" && s.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		list = append(list, *m.withRelations(s))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SessionID < list[j].SessionID })
	return list, nil
}

func (m *mockYearSessionRepo) Update(_ context.Context, session *model.YearSession) error {
	c := *session
	c.AcademicYear = nil
	c.Department = nil
	m.db.sessions[session.SessionID] = &c
	return nil
}

func (m *mockYearSessionRepo) Delete(_ context.Context, id string) error {
	delete(m.db.sessions, id)
	return nil
}

// ── Mock TopicRepository ──

type mockTopicRepo struct{ db *memDB }

func (m *mockTopicRepo) Create(_ context.Context, topic *model.Topic) error {
	if topic.TopicID == "" {
		topic.TopicID = m.db.nextID("topic")
	}
	topic.Version = 1
	topic.CreatedAt = time.Now()
	topic.UpdatedAt = topic.CreatedAt
	c := *topic
	c.Members = nil
	c.ApprovedTopic = nil
	c.Proposer = nil
	m.db.topics[topic.TopicID] = &c
	return nil
}

func (m *mockTopicRepo) GetByID(_ context.Context, id string) (*model.Topic, error) {
	if t := m.db.topicCopy(id); t != nil {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTopicRepo) Update(_ context.Context, topic *model.Topic) error {
	stored, ok := m.db.topics[topic.TopicID]
	if !ok || stored.Version != topic.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Title = topic.Title
	stored.ShortDescription = topic.ShortDescription
	stored.Objective = topic.Objective
	stored.Content = topic.Content
	stored.Budget = topic.Budget
	stored.Note = topic.Note
	stored.Status = topic.Status
	stored.UpdatedBy = topic.UpdatedBy
	stored.UpdatedAt = time.Now()
	stored.Version++
	topic.Version++
	return nil
}

func (m *mockTopicRepo) match(t *model.Topic, filter repository.TopicFilter) bool {
	if filter.DepartmentID != "" && t.DepartmentID != filter.DepartmentID {
		return false
	}
	if filter.AcademicYearID != "" && t.AcademicYearID != filter.AcademicYearID {
		return false
	}
	if filter.Status != "" && t.Status != filter.Status {
		return false
	}
	return filter.Keyword == "" || strings.Contains(t.Title, filter.Keyword)
}

func (m *mockTopicRepo) List(_ context.Context, filter repository.TopicFilter, offset, limit int) ([]model.Topic, int64, error) {
	var list []model.Topic
	for id, t := range m.db.topics {
		if m.match(t, filter) {
			list = append(list, *m.db.topicCopy(id))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].TopicID < list[j].TopicID })
	return paginate(list, offset, limit), int64(len(list)), nil
}

func (m *mockTopicRepo) ListByUser(_ context.Context, userID string) ([]model.Topic, error) {
	var list []model.Topic
	for id := range m.db.topics {
		t := m.db.topicCopy(id)
		if t.ProposedBy == userID || t.Member(userID) != nil {
			list = append(list, *t)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].TopicID < list[j].TopicID })
	return list, nil
}

func (m *mockTopicRepo) CountByStatus(_ context.Context, filter repository.TopicFilter) (map[model.TopicStatus]int64, error) {
	out := make(map[model.TopicStatus]int64)
	for _, t := range m.db.topics {
		if m.match(t, filter) {
			out[t.Status]++
		}
	}
	return out, nil
}

// ── Mock TopicMemberRepository ──

type mockTopicMemberRepo struct{ db *memDB }

func (m *mockTopicMemberRepo) Create(_ context.Context, member *model.TopicMember) error {
	for _, existing := range m.db.members {
		if existing.TopicID == member.TopicID && existing.UserID == member.UserID {
			return fmt.Errorf("duplicate key value violates unique constraint uk_topic_member")
		}
	}
	if member.MemberID == "" {
		member.MemberID = m.db.nextID("member")
	}
	c := *member
	c.User = nil
	m.db.members[member.MemberID] = &c
	return nil
}

func (m *mockTopicMemberRepo) Get(_ context.Context, topicID, userID string) (*model.TopicMember, error) {
	for _, mem := range m.db.members {
		if mem.TopicID == topicID && mem.UserID == userID {
			c := *mem
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTopicMemberRepo) ListByTopic(_ context.Context, topicID string) ([]model.TopicMember, error) {
	return m.db.topicMembers(topicID), nil
}

func (m *mockTopicMemberRepo) Update(_ context.Context, member *model.TopicMember) error {
	c := *member
	c.User = nil
	m.db.members[member.MemberID] = &c
	return nil
}

func (m *mockTopicMemberRepo) Delete(_ context.Context, memberID string) error {
	delete(m.db.members, memberID)
	return nil
}

func (m *mockTopicMemberRepo) UpdatePendingStatus(_ context.Context, topicID string, userIDs []string, status model.MemberStatus) (int64, error) {
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	var n int64
	for _, mem := range m.db.members {
		if mem.TopicID == topicID && wanted[mem.UserID] && mem.Status == model.MemberPending {
			mem.Status = status
			n++
		}
	}
	return n, nil
}

// ── Mock ApprovedTopicRepository ──

type mockApprovedTopicRepo struct{ db *memDB }

func (m *mockApprovedTopicRepo) Create(_ context.Context, at *model.ApprovedTopic) error {
	for _, existing := range m.db.approved {
		if existing.Code == at.Code || existing.TopicID == at.TopicID {
			return fmt.Errorf("duplicate key value violates unique constraint")
		}
	}
	if at.ApprovedTopicID == "" {
		at.ApprovedTopicID = m.db.nextID("approved")
	}
	at.Version = 1
	c := *at
	c.Topic = nil
	c.Documents = nil
	m.db.approved[at.ApprovedTopicID] = &c
	return nil
}

func (m *mockApprovedTopicRepo) GetByID(_ context.Context, id string) (*model.ApprovedTopic, error) {
	if at, ok := m.db.approved[id]; ok {
		return m.db.approvedCopy(at), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockApprovedTopicRepo) GetByTopicID(_ context.Context, topicID string) (*model.ApprovedTopic, error) {
	if at := m.db.approvedOf(topicID); at != nil {
		return m.db.approvedCopy(at), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockApprovedTopicRepo) LockByID(ctx context.Context, id string) (*model.ApprovedTopic, error) {
	m.db.approvedLocks = append(m.db.approvedLocks, id)
	return m.GetByID(ctx, id)
}

func (m *mockApprovedTopicRepo) Update(_ context.Context, at *model.ApprovedTopic) error {
	stored, ok := m.db.approved[at.ApprovedTopicID]
	if !ok || stored.Version != at.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Prize = at.Prize
	stored.FieldResearch = at.FieldResearch
	stored.TypeResearch = at.TypeResearch
	stored.Status = at.Status
	stored.UpdatedBy = at.UpdatedBy
	stored.Version++
	at.Version++
	return nil
}

func (m *mockApprovedTopicRepo) match(at *model.ApprovedTopic, filter repository.ApprovedTopicFilter) bool {
	t, ok := m.db.topics[at.TopicID]
	if !ok {
		return false
	}
	if filter.DepartmentID != "" && t.DepartmentID != filter.DepartmentID {
		return false
	}
	if filter.AcademicYearID != "" && t.AcademicYearID != filter.AcademicYearID {
		return false
	}
	if filter.Status != "" && at.Status != filter.Status {
		return false
	}
	return filter.Keyword == "" || strings.Contains(t.Title, filter.Keyword) || strings.Contains(at.Code, filter.Keyword)
}

func (m *mockApprovedTopicRepo) List(_ context.Context, filter repository.ApprovedTopicFilter, offset, limit int) ([]model.ApprovedTopic, int64, error) {
	var list []model.ApprovedTopic
	for _, at := range m.db.approved {
		if m.match(at, filter) {
			list = append(list, *m.db.approvedCopy(at))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return paginate(list, offset, limit), int64(len(list)), nil
}

func (m *mockApprovedTopicRepo) CountByYear(_ context.Context, academicYearID string) (int64, error) {
	var n int64
	for _, at := range m.db.approved {
		if t, ok := m.db.topics[at.TopicID]; ok && t.AcademicYearID == academicYearID {
			n++
		}
	}
	return n, nil
}

func (m *mockApprovedTopicRepo) CountByStatus(_ context.Context, filter repository.ApprovedTopicFilter) (map[model.ApprovedTopicStatus]int64, error) {
	out := make(map[model.ApprovedTopicStatus]int64)
	for _, at := range m.db.approved {
		if m.match(at, filter) {
			out[at.Status]++
		}
	}
	return out, nil
}

// ── Mock DocumentRepository ──

type mockDocumentRepo struct{ db *memDB }

func (m *mockDocumentRepo) Create(_ context.Context, doc *model.TopicDocument) error {
	for _, d := range m.db.docs {
		if d.ApprovedTopicID == doc.ApprovedTopicID && d.DocumentType == doc.DocumentType {
			return fmt.Errorf("duplicate key value violates unique constraint uk_topic_doc")
		}
	}
	if doc.DocumentID == "" {
		doc.DocumentID = m.db.nextID("doc")
	}
	c := *doc
	m.db.docs[doc.DocumentID] = &c
	return nil
}

func (m *mockDocumentRepo) GetByID(_ context.Context, id string) (*model.TopicDocument, error) {
	if d, ok := m.db.docs[id]; ok {
		c := *d
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDocumentRepo) GetByType(_ context.Context, approvedTopicID string, docType model.DocumentType) (*model.TopicDocument, error) {
	for _, d := range m.db.docs {
		if d.ApprovedTopicID == approvedTopicID && d.DocumentType == docType {
			c := *d
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDocumentRepo) ListByApprovedTopic(_ context.Context, approvedTopicID string) ([]model.TopicDocument, error) {
	return m.db.documentsOf(approvedTopicID), nil
}

func (m *mockDocumentRepo) Update(_ context.Context, doc *model.TopicDocument) error {
	c := *doc
	m.db.docs[doc.DocumentID] = &c
	return nil
}

func (m *mockDocumentRepo) Delete(_ context.Context, id string) error {
	delete(m.db.docs, id)
	return nil
}

func (m *mockDocumentRepo) CountByType(_ context.Context, filter repository.ApprovedTopicFilter) (map[model.DocumentType]int64, error) {
	atRepo := &mockApprovedTopicRepo{db: m.db}
	out := make(map[model.DocumentType]int64)
	for _, d := range m.db.docs {
		if at, ok := m.db.approved[d.ApprovedTopicID]; ok && atRepo.match(at, filter) {
			out[d.DocumentType]++
		}
	}
	return out, nil
}

// ── Mock AnnouncementRepository ──

type mockAnnouncementRepo struct{ db *memDB }

func (m *mockAnnouncementRepo) Create(_ context.Context, a *model.Announcement) error {
	if a.AnnouncementID == "" {
		a.AnnouncementID = m.db.nextID("ann")
	}
	c := *a
	m.db.announcements[a.AnnouncementID] = &c
	return nil
}

func (m *mockAnnouncementRepo) GetByID(_ context.Context, id string) (*model.Announcement, error) {
	if a, ok := m.db.announcements[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAnnouncementRepo) List(_ context.Context, filter repository.AnnouncementFilter, offset, limit int) ([]model.Announcement, int64, error) {
	scoped := func(p *string, want string) bool {
		return want == "" || p == nil || *p == want
	}
	var list []model.Announcement
	for _, a := range m.db.announcements {
		if filter.SystemOnly {
			if a.DepartmentID != nil || a.AcademicYearID != nil {
				continue
			}
		} else if !scoped(a.DepartmentID, filter.DepartmentID) || !scoped(a.AcademicYearID, filter.AcademicYearID) {
			continue
		}
		list = append(list, *a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PublishAt.After(list[j].PublishAt) })
	return paginate(list, offset, limit), int64(len(list)), nil
}

func (m *mockAnnouncementRepo) Update(_ context.Context, a *model.Announcement) error {
	c := *a
	m.db.announcements[a.AnnouncementID] = &c
	return nil
}

func (m *mockAnnouncementRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.db.announcements, id)
	return nil
}

// ── Mock MessageRepository ──

type mockMessageRepo struct{ db *memDB }

func (m *mockMessageRepo) withUsers(msg *model.Message) model.Message {
	c := *msg
	c.Sender = m.db.userCopy(msg.SenderID)
	c.Receiver = m.db.userCopy(msg.ReceiverID)
	return c
}

func (m *mockMessageRepo) Create(_ context.Context, msg *model.Message) error {
	if msg.MessageID == "" {
		msg.MessageID = m.db.nextID("msg")
	}
	msg.CreatedAt = time.Now()
	c := *msg
	c.Sender, c.Receiver = nil, nil
	m.db.messages[msg.MessageID] = &c
	return nil
}

func (m *mockMessageRepo) GetByID(_ context.Context, id string) (*model.Message, error) {
	if msg, ok := m.db.messages[id]; ok {
		c := m.withUsers(msg)
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMessageRepo) list(match func(*model.Message) bool, offset, limit int) ([]model.Message, int64, error) {
	var list []model.Message
	for _, msg := range m.db.messages {
		if match(msg) {
			list = append(list, m.withUsers(msg))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].MessageID > list[j].MessageID })
	return paginate(list, offset, limit), int64(len(list)), nil
}

func (m *mockMessageRepo) ListInbox(_ context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Message, int64, error) {
	return m.list(func(msg *model.Message) bool {
		return msg.ReceiverID == userID && (!unreadOnly || !msg.IsRead)
	}, offset, limit)
}

func (m *mockMessageRepo) ListSent(_ context.Context, userID string, offset, limit int) ([]model.Message, int64, error) {
	return m.list(func(msg *model.Message) bool { return msg.SenderID == userID }, offset, limit)
}

func (m *mockMessageRepo) Update(_ context.Context, msg *model.Message) error {
	c := *msg
	c.Sender, c.Receiver = nil, nil
	m.db.messages[msg.MessageID] = &c
	return nil
}

func (m *mockMessageRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.db.messages, id)
	return nil
}

// ── Mock storage.Provider ──

type mockStorage struct {
	objects   map[string]string
	deleted   []string
	failWrite bool
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: make(map[string]string)}
}

func (m *mockStorage) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) (string, error) {
	if m.failWrite {
		return "", fmt.Errorf("storage unavailable")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.objects[key] = string(data)
	return m.URL(key), nil
}

func (m *mockStorage) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockStorage) URL(key string) string {
	return "http://files.test/" + key
}

// ── Mock mail.Sender ──

type mockMailer struct {
	sent []string // 收件邮箱
	err  error
}

func (m *mockMailer) Send(_ context.Context, to mail.Recipient, _ string, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to.Email)
	return nil
}

// ── Mock 查询缓存 ──

// memCache 与 redis 缓存相同的命名空间版本语义
type memCache struct {
	versions map[string]int
	entries  map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{versions: make(map[string]int), entries: make(map[string][]byte)}
}

func (m *memCache) key(namespace, key string) string {
	return fmt.Sprintf("%s:v%d:%s", namespace, m.versions[namespace], key)
}

func (m *memCache) GetJSON(_ context.Context, namespace, key string, dest any) error {
	data, ok := m.entries[m.key(namespace, key)]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memCache) SetJSON(_ context.Context, namespace, key string, value any, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[m.key(namespace, key)] = data
	return nil
}

func (m *memCache) Invalidate(_ context.Context, namespaces ...string) {
	for _, ns := range namespaces {
		m.versions[ns]++
	}
}

func newTestQueryCache() *queryCache {
	return &queryCache{rdb: newMemCache(), ttl: time.Minute, logger: testLogger()}
}
