package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/model"
	"github.com/unclebandit/practicehub-backend/internal/repository"
)

// memState is the whole fake database; values are copied in and out so a
// snapshot is a shallow copy of every map and slice.
type memState struct {
	seq          int64
	users        map[int64]model.User
	practices    map[int64]model.Practice
	assignments  map[int64]int64 // user id -> practice id
	campaigns    map[int64]model.Campaign
	associations []model.CampaignPracticeAssociation
	schedules    map[int64]model.CampaignSchedule
	history      []model.CampaignHistory
	messages     map[int64]model.UserMessage
	requests     map[model.RequestKind]map[int64]model.ApprovalRequest
}

func (s memState) clone() memState {
	out := s
	out.users = copyMap(s.users)
	out.practices = copyMap(s.practices)
	out.assignments = copyMap(s.assignments)
	out.campaigns = copyMap(s.campaigns)
	out.associations = append([]model.CampaignPracticeAssociation(nil), s.associations...)
	out.schedules = copyMap(s.schedules)
	out.history = append([]model.CampaignHistory(nil), s.history...)
	out.messages = copyMap(s.messages)
	out.requests = map[model.RequestKind]map[int64]model.ApprovalRequest{}
	for k, v := range s.requests {
		out.requests[k] = copyMap(v)
	}
	return out
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// memDB implements every repository interface plus TxRunner. Transactions
// are serialized and roll back by restoring a snapshot.
type memDB struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state memState

	bulkErr error
	txs     int
	// onClaim runs after a campaign moves DRAFT -> IN_PROGRESS.
	onClaim func()
}

func newMemDB() *memDB {
	return &memDB{state: memState{
		users:       map[int64]model.User{},
		practices:   map[int64]model.Practice{},
		assignments: map[int64]int64{},
		campaigns:   map[int64]model.Campaign{},
		schedules:   map[int64]model.CampaignSchedule{},
		messages:    map[int64]model.UserMessage{},
		requests: map[model.RequestKind]map[int64]model.ApprovalRequest{
			model.RequestRegistration: {},
			model.RequestRoleChange:   {},
		},
	}}
}

func (m *memDB) repos() repository.Repositories {
	return repository.Repositories{
		Campaigns: &fakeCampaigns{m},
		Schedules: &fakeSchedules{m},
		History:   &fakeHistory{m},
		Messages:  &fakeMessages{m},
		Users:     &fakeUsers{m},
		Practices: &fakePractices{m},
		Requests:  &fakeRequests{m},
	}
}

func (m *memDB) InTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.txs++
	m.mu.Unlock()

	if err := fn(m.repos()); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memDB) nextID() int64 {
	m.state.seq++
	return m.state.seq
}

func uniqueViolation() error {
	return &pq.Error{Code: "23505"}
}

// ---- seeding and inspection helpers ----

func (m *memDB) addPractice(name string, active bool) model.Practice {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := model.Practice{ID: m.nextID(), Name: name, IsActive: active, CreatedAt: time.Now().UTC()}
	m.state.practices[p.ID] = p
	return p
}

func (m *memDB) addUser(username string, role model.Role, practiceID int64, active, approved bool) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := model.User{
		ID:         m.nextID(),
		Username:   username,
		Email:      username + "@example.com",
		Role:       role,
		IsActive:   active,
		IsApproved: approved,
		CreatedAt:  time.Now().UTC(),
	}
	m.state.users[u.ID] = u
	if practiceID != 0 {
		m.state.assignments[u.ID] = practiceID
	}
	return u
}

func (m *memDB) campaign(id int64) model.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.campaigns[id]
}

func (m *memDB) schedule(id int64) model.CampaignSchedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.schedules[id]
}

func (m *memDB) messagesFor(campaignID int64) []model.UserMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.UserMessage{}
	for _, msg := range m.state.messages {
		if msg.CampaignID == campaignID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (m *memDB) historyFor(campaignID int64, action string) []model.CampaignHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CampaignHistory{}
	for _, h := range m.state.history {
		if h.CampaignID == campaignID && (action == "" || h.Action == action) {
			out = append(out, h)
		}
	}
	return out
}

func (m *memDB) campaignCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.campaigns)
}

// ---- campaigns ----

type fakeCampaigns struct{ m *memDB }

func (f *fakeCampaigns) Create(ctx context.Context, c *model.Campaign) error {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.state.campaigns {
		if existing.Name == c.Name {
			return uniqueViolation()
		}
	}
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	c.ID = m.nextID()
	row := *c
	row.PracticeAssociations, row.Schedules = nil, nil
	m.state.campaigns[c.ID] = row

	for i := range c.PracticeAssociations {
		a := &c.PracticeAssociations[i]
		a.ID, a.CampaignID, a.CreatedAt = m.nextID(), c.ID, c.CreatedAt
		m.state.associations = append(m.state.associations, *a)
	}
	for i := range c.Schedules {
		s := &c.Schedules[i]
		s.ID, s.CampaignID, s.CreatedAt = m.nextID(), c.ID, c.CreatedAt
		if s.Status == "" {
			s.Status = model.SchedulePending
		}
		m.state.schedules[s.ID] = *s
	}
	return nil
}

func (f *fakeCampaigns) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	c.PracticeAssociations = []model.CampaignPracticeAssociation{}
	for _, a := range m.state.associations {
		if a.CampaignID == id {
			a.PracticeName = m.state.practices[a.PracticeID].Name
			c.PracticeAssociations = append(c.PracticeAssociations, a)
		}
	}
	c.Schedules = []model.CampaignSchedule{}
	for _, s := range m.state.schedules {
		if s.CampaignID == id {
			c.Schedules = append(c.Schedules, s)
		}
	}
	return &c, nil
}

func (f *fakeCampaigns) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, c := range f.m.state.campaigns {
		if c.Name == name && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCampaigns) Update(ctx context.Context, c *model.Campaign) error {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.state.campaigns[c.ID]
	if !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	now := time.Now().UTC()
	row.Name, row.Content, row.Description = c.Name, c.Content, c.Description
	row.DeliveryType, row.TargetRoles, row.UpdatedAt = c.DeliveryType, c.TargetRoles, &now
	m.state.campaigns[c.ID] = row
	return nil
}

func (f *fakeCampaigns) ReplacePracticeAssociations(ctx context.Context, campaignID int64, practiceIDs []int64) error {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.state.associations[:0:0]
	for _, a := range m.state.associations {
		if a.CampaignID != campaignID {
			kept = append(kept, a)
		}
	}
	for _, id := range practiceIDs {
		kept = append(kept, model.CampaignPracticeAssociation{ID: m.nextID(), CampaignID: campaignID, PracticeID: id})
	}
	m.state.associations = kept
	return nil
}

func (f *fakeCampaigns) Delete(ctx context.Context, id int64) error {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.campaigns[id]; !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	delete(m.state.campaigns, id)

	assocs := m.state.associations[:0:0]
	for _, a := range m.state.associations {
		if a.CampaignID != id {
			assocs = append(assocs, a)
		}
	}
	m.state.associations = assocs

	history := m.state.history[:0:0]
	for _, h := range m.state.history {
		if h.CampaignID != id {
			history = append(history, h)
		}
	}
	m.state.history = history

	for sid, s := range m.state.schedules {
		if s.CampaignID == id {
			delete(m.state.schedules, sid)
		}
	}
	for mid, msg := range m.state.messages {
		if msg.CampaignID == id {
			delete(m.state.messages, mid)
		}
	}
	return nil
}

func (f *fakeCampaigns) List(ctx context.Context, filter repository.CampaignFilter, offset, limit int) ([]*model.Campaign, int, error) {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := []model.Campaign{}
	for _, c := range m.state.campaigns {
		switch filter.Visibility {
		case repository.VisibleNone:
			continue
		case repository.VisibleDefaultAndOwn:
			if c.CampaignType != model.CampaignTypeDefault && c.CreatedBy != filter.OwnerID {
				continue
			}
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	out := []*model.Campaign{}
	for i := offset; i < len(matched) && i < offset+limit; i++ {
		c := matched[i]
		out = append(out, &c)
	}
	return out, len(matched), nil
}

func (f *fakeCampaigns) TransitionStatus(ctx context.Context, id int64, from, to model.CampaignStatus) (bool, error) {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	m.state.campaigns[id] = c
	if m.onClaim != nil && from == model.CampaignDraft && to == model.CampaignInProgress {
		defer m.onClaim()
	}
	return true, nil
}

func (f *fakeCampaigns) Stats(ctx context.Context, campaignID int64) (model.DeliveryStats, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var stats model.DeliveryStats
	for _, msg := range f.m.state.messages {
		if msg.CampaignID != campaignID {
			continue
		}
		stats.Recipients++
		if msg.IsRead {
			stats.Read++
		}
		if msg.IsDeleted {
			stats.Deleted++
		}
	}
	return stats, nil
}

// ---- schedules ----

type fakeSchedules struct{ m *memDB }

func (f *fakeSchedules) GetByID(ctx context.Context, id int64) (*model.CampaignSchedule, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	s, ok := f.m.state.schedules[id]
	if !ok {
		return nil, appErrors.NewScheduleNotFound(id)
	}
	return &s, nil
}

func (f *fakeSchedules) FindDue(ctx context.Context, now time.Time) ([]int64, error) {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()
	due := []model.CampaignSchedule{}
	for _, s := range m.state.schedules {
		if s.Status != model.SchedulePending || s.ScheduledDate.After(now) {
			continue
		}
		if m.state.campaigns[s.CampaignID].Status != model.CampaignDraft {
			continue
		}
		due = append(due, s)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	ids := []int64{}
	for _, s := range due {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (f *fakeSchedules) MarkProcessed(ctx context.Context, id int64, executedAt time.Time) error {
	return f.finish(id, model.ScheduleProcessed, nil, executedAt)
}

func (f *fakeSchedules) MarkFailed(ctx context.Context, id int64, message string, at time.Time) error {
	return f.finish(id, model.ScheduleFailed, &message, at)
}

func (f *fakeSchedules) finish(id int64, status model.ScheduleStatus, message *string, at time.Time) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	s, ok := f.m.state.schedules[id]
	if !ok || s.Status != model.SchedulePending {
		return appErrors.NewScheduleNotFound(id)
	}
	s.Status, s.ErrorMessage, s.ExecutionTime = status, message, &at
	f.m.state.schedules[id] = s
	return nil
}

// ---- history ----

type fakeHistory struct{ m *memDB }

func (f *fakeHistory) Record(ctx context.Context, h *model.CampaignHistory) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	h.ID = f.m.nextID()
	f.m.state.history = append(f.m.state.history, *h)
	return nil
}

func (f *fakeHistory) ListForCampaign(ctx context.Context, campaignID int64) ([]model.CampaignHistory, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	out := []model.CampaignHistory{}
	for _, h := range f.m.state.history {
		if h.CampaignID == campaignID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ---- inbox ----

type fakeMessages struct{ m *memDB }

func (f *fakeMessages) BulkCreate(ctx context.Context, msgs []model.UserMessage) error {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bulkErr != nil {
		return m.bulkErr
	}
	for _, msg := range msgs {
		for _, existing := range m.state.messages {
			if existing.UserID == msg.UserID && existing.CampaignID == msg.CampaignID {
				return uniqueViolation()
			}
		}
		msg.ID = m.nextID()
		m.state.messages[msg.ID] = msg
	}
	return nil
}

func (f *fakeMessages) ListForUser(ctx context.Context, userID int64) ([]model.UserMessage, error) {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.UserMessage{}
	for _, msg := range m.state.messages {
		if msg.UserID == userID && !msg.IsDeleted {
			msg.CampaignName = m.state.campaigns[msg.CampaignID].Name
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (f *fakeMessages) MarkRead(ctx context.Context, id, userID int64, at time.Time) error {
	return f.update(id, userID, func(msg *model.UserMessage) {
		msg.IsRead = true
		if msg.ReadAt == nil {
			msg.ReadAt = &at
		}
	})
}

func (f *fakeMessages) SoftDelete(ctx context.Context, id, userID int64, at time.Time) error {
	return f.update(id, userID, func(msg *model.UserMessage) {
		msg.IsDeleted = true
		msg.DeletedAt = &at
	})
}

func (f *fakeMessages) update(id, userID int64, apply func(*model.UserMessage)) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	msg, ok := f.m.state.messages[id]
	if !ok || msg.UserID != userID || msg.IsDeleted {
		return appErrors.NewMessageNotFound(id)
	}
	apply(&msg)
	f.m.state.messages[id] = msg
	return nil
}

// ---- users ----

type fakeUsers struct{ m *memDB }

func (f *fakeUsers) Create(ctx context.Context, u *model.User) error {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.state.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return uniqueViolation()
		}
	}
	u.ID = m.nextID()
	m.state.users[u.ID] = *u
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	u, ok := f.m.state.users[id]
	if !ok {
		return nil, appErrors.NewUserNotFound(id)
	}
	return &u, nil
}

func (f *fakeUsers) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, u := range f.m.state.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, appErrors.Newf(appErrors.CodeNotFound, "user %q not found", username)
}

func (f *fakeUsers) GetByIDs(ctx context.Context, ids []int64) ([]model.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	out := []model.User{}
	for _, id := range ids {
		if u, ok := f.m.state.users[id]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, u := range f.m.state.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return f.update(id, func(u *model.User) { u.PasswordHash = hash })
}

func (f *fakeUsers) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return f.update(id, func(u *model.User) { u.LastLogin = &at })
}

func (f *fakeUsers) ApproveRole(ctx context.Context, id int64, role model.Role) error {
	return f.update(id, func(u *model.User) {
		u.Role = role
		u.IsApproved = true
	})
}

func (f *fakeUsers) update(id int64, apply func(*model.User)) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	u, ok := f.m.state.users[id]
	if !ok {
		return appErrors.NewUserNotFound(id)
	}
	apply(&u)
	f.m.state.users[id] = u
	return nil
}

// ---- practices ----

type fakePractices struct{ m *memDB }

func (f *fakePractices) Create(ctx context.Context, p *model.Practice) error {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.state.practices {
		if existing.Name == p.Name {
			return uniqueViolation()
		}
	}
	p.ID = m.nextID()
	m.state.practices[p.ID] = *p
	return nil
}

func (f *fakePractices) GetByID(ctx context.Context, id int64) (*model.Practice, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	p, ok := f.m.state.practices[id]
	if !ok {
		return nil, appErrors.NewPracticeNotFound(id)
	}
	return &p, nil
}

func (f *fakePractices) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, p := range f.m.state.practices {
		if p.Name == name && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePractices) List(ctx context.Context, includeInactive bool) ([]model.Practice, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	out := []model.Practice{}
	for _, p := range f.m.state.practices {
		if p.IsActive || includeInactive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakePractices) Update(ctx context.Context, p *model.Practice) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.state.practices[p.ID]; !ok {
		return appErrors.NewPracticeNotFound(p.ID)
	}
	f.m.state.practices[p.ID] = *p
	return nil
}

func (f *fakePractices) UserIDsInPractices(ctx context.Context, practiceIDs []int64) ([]int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	wanted := map[int64]bool{}
	for _, id := range practiceIDs {
		wanted[id] = true
	}
	ids := []int64{}
	for userID, practiceID := range f.m.state.assignments {
		if wanted[practiceID] {
			ids = append(ids, userID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakePractices) PracticeOfUser(ctx context.Context, userID int64) (int64, bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	id, ok := f.m.state.assignments[userID]
	return id, ok, nil
}

func (f *fakePractices) AssignUser(ctx context.Context, practiceID, userID int64) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.state.assignments[userID] = practiceID
	return nil
}

func (f *fakePractices) ListUsers(ctx context.Context, practiceID int64) ([]model.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	out := []model.User{}
	for userID, pid := range f.m.state.assignments {
		if pid == practiceID {
			out = append(out, f.m.state.users[userID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakePractices) RemoveUser(ctx context.Context, practiceID, userID int64) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if pid, ok := f.m.state.assignments[userID]; !ok || pid != practiceID {
		return appErrors.Newf(appErrors.CodeNotFound, "user %d is not assigned to practice %d", userID, practiceID)
	}
	delete(f.m.state.assignments, userID)
	return nil
}

// ---- approval requests ----

type fakeRequests struct{ m *memDB }

func (f *fakeRequests) Create(ctx context.Context, req *model.ApprovalRequest) error {
	m := f.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.Kind == model.RequestRoleChange {
		for _, existing := range m.state.requests[req.Kind] {
			if existing.UserID == req.UserID && existing.Status == model.RequestPending {
				return uniqueViolation()
			}
		}
	}
	if req.Status == "" {
		req.Status = model.RequestPending
	}
	req.ID = m.nextID()
	m.state.requests[req.Kind][req.ID] = *req
	return nil
}

func (f *fakeRequests) GetByID(ctx context.Context, kind model.RequestKind, id int64) (*model.ApprovalRequest, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	req, ok := f.m.state.requests[kind][id]
	if !ok {
		return nil, appErrors.NewRequestNotFound(id)
	}
	return &req, nil
}

func (f *fakeRequests) HasPending(ctx context.Context, kind model.RequestKind, userID int64) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, req := range f.m.state.requests[kind] {
		if req.UserID == userID && req.Status == model.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRequests) List(ctx context.Context, filter repository.RequestFilter) ([]model.ApprovalRequest, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	out := []model.ApprovalRequest{}
	for _, byID := range f.m.state.requests {
		for _, req := range byID {
			if filter.Status != "" && req.Status != filter.Status {
				continue
			}
			if filter.UserID != 0 && req.UserID != filter.UserID {
				continue
			}
			if filter.PracticeID != 0 && req.PracticeID != filter.PracticeID {
				continue
			}
			if filter.RequestedRole != model.RoleUnassigned && req.RequestedRole != filter.RequestedRole {
				continue
			}
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeRequests) Review(ctx context.Context, kind model.RequestKind, id int64, status model.RequestStatus, reviewerID int64, reason *string) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	req, ok := f.m.state.requests[kind][id]
	if !ok || req.Status != model.RequestPending {
		return false, nil
	}
	req.Status, req.ReviewedBy, req.RejectionReason = status, &reviewerID, reason
	f.m.state.requests[kind][id] = req
	return true, nil
}

var (
	_ repository.TxRunner                      = (*memDB)(nil)
	_ repository.CampaignRepositoryInterface    = (*fakeCampaigns)(nil)
	_ repository.ScheduleRepositoryInterface    = (*fakeSchedules)(nil)
	_ repository.HistoryRepositoryInterface     = (*fakeHistory)(nil)
	_ repository.UserMessageRepositoryInterface = (*fakeMessages)(nil)
	_ repository.UserRepositoryInterface        = (*fakeUsers)(nil)
	_ repository.PracticeRepositoryInterface    = (*fakePractices)(nil)
	_ repository.RequestRepositoryInterface     = (*fakeRequests)(nil)
)
