package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	utils "nko-map-backend/shared/utils/auth"
	"nko-map-backend/shared/utils/query"
)

// MemoryStore is an in-process implementation of every repository port.
// It backs the unit tests and local runs without postgres.
type MemoryStore struct {
	mu sync.RWMutex

	now   func() time.Time
	seq   int64
	users map[uuid.UUID]models.User
	npos  map[uuid.UUID]models.NPO
	order map[uuid.UUID]int64
	audit []models.AuditLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:   func() time.Time { return time.Now().UTC() },
		users: make(map[uuid.UUID]models.User),
		npos:  make(map[uuid.UUID]models.NPO),
		order: make(map[uuid.UUID]int64),
	}
}

// WithClock sets the timestamp source for created/updated fields.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Users returns the store's UserRepository view.
func (s *MemoryStore) Users() UserRepository {
	return &memoryUsers{s}
}

// NPOs returns the store's NPORepository view.
func (s *MemoryStore) NPOs() NPORepository {
	return &memoryNPOs{s}
}

// Audit returns the store's AuditRepository view.
func (s *MemoryStore) Audit() AuditRepository {
	return &memoryAudit{s}
}

type (
	memoryUsers struct{ *MemoryStore }
	memoryNPOs  struct{ *MemoryStore }
	memoryAudit struct{ *MemoryStore }
)

func (s *MemoryStore) nextSeq(id uuid.UUID) {
	s.seq++
	s.order[id] = s.seq
}

// Users

func (s *memoryUsers) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return apperr.ErrEmailTaken
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	s.nextSeq(user.ID)
	return nil
}

func (s *memoryUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound(userNotFound)
	}
	return &user, nil
}

func (s *memoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, apperr.NotFound(userNotFound)
}

func (s *memoryUsers) FindByResetToken(_ context.Context, digest string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.ResetPasswordToken != nil && *user.ResetPasswordToken == digest {
			return &user, nil
		}
	}
	return nil, apperr.NotFound(userNotFound)
}

func (s *memoryUsers) UpdateProfile(_ context.Context, id uuid.UUID, changes ProfileChanges) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound(userNotFound)
	}
	if changes.FirstName != nil {
		user.FirstName = *changes.FirstName
	}
	if changes.LastName != nil {
		user.LastName = *changes.LastName
	}
	if changes.Phone != nil {
		user.Phone = *changes.Phone
	}
	if changes.Avatar != nil {
		user.Avatar = *changes.Avatar
	}
	user.UpdatedAt = s.now()
	s.users[id] = user
	return &user, nil
}

func (s *memoryUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash utils.HashedPassword) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return apperr.NotFound(userNotFound)
	}
	user.Password = hash
	user.ResetPasswordToken = nil
	user.ResetPasswordExpires = nil
	user.UpdatedAt = s.now()
	s.users[id] = user
	return nil
}

func (s *memoryUsers) SetResetToken(_ context.Context, id uuid.UUID, digest string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return apperr.NotFound(userNotFound)
	}
	expires = expires.UTC()
	user.ResetPasswordToken = &digest
	user.ResetPasswordExpires = &expires
	s.users[id] = user
	return nil
}

func (s *memoryUsers) List(_ context.Context, page query.Page) ([]models.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		all = append(all, user)
	}
	sort.Slice(all, func(i, j int) bool {
		return s.order[all[i].ID] > s.order[all[j].ID]
	})
	return paginate(all, page), int64(len(all)), nil
}

func (s *memoryUsers) ListByRoles(_ context.Context, roles []models.Role) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.User
	for _, user := range s.users {
		for _, role := range roles {
			if user.Role == role {
				out = append(out, user)
				break
			}
		}
	}
	return out, nil
}

func (s *memoryUsers) CountByRole(_ context.Context) (map[models.Role]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.Role]int64)
	for _, user := range s.users {
		counts[user.Role]++
	}
	return counts, nil
}

func (s *memoryUsers) Creators(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CreatorSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]models.CreatorSummary, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			out[id] = models.CreatorSummary{ID: user.ID, FirstName: user.FirstName, LastName: user.LastName}
		}
	}
	return out, nil
}

// SetRole changes a user's role. There is no HTTP surface for promotion.
func (s *MemoryStore) SetRole(id uuid.UUID, role models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[id]; ok {
		user.Role = role
		s.users[id] = user
	}
}

// NPOs

func (s *memoryNPOs) CreateForUser(_ context.Context, npo *models.NPO, onePerUser bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.users[npo.CreatedBy]
	if !ok {
		return apperr.NotFound(userNotFound)
	}
	if onePerUser && owner.NPOID != nil {
		return apperr.ErrDuplicateSubmission
	}

	if npo.ID == uuid.Nil {
		npo.ID = uuid.New()
	}
	if npo.Status == "" {
		npo.Status = models.StatusPending
	}
	now := s.now()
	npo.CreatedAt = now
	npo.UpdatedAt = now
	stored := *npo
	stored.Creator = nil
	s.npos[npo.ID] = stored
	s.nextSeq(npo.ID)

	if owner.NPOID == nil {
		id := npo.ID
		owner.NPOID = &id
		s.users[owner.ID] = owner
	}
	return nil
}

func (s *memoryNPOs) FindByID(_ context.Context, id uuid.UUID) (*models.NPO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	npo, ok := s.npos[id]
	if !ok {
		return nil, apperr.NotFound(npoNotFound)
	}
	return &npo, nil
}

func (s *memoryNPOs) Transition(_ context.Context, id uuid.UUID, from models.NPOStatus, change Moderation) (*models.NPO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	npo, ok := s.npos[id]
	if !ok {
		return nil, apperr.NotFound(npoNotFound)
	}
	if npo.Status != from {
		return nil, alreadyModerated(npo.Status)
	}

	moderatedBy := change.ModeratedBy
	moderatedAt := change.ModeratedAt.UTC()
	npo.Status = change.Status
	npo.RejectionReason = change.RejectionReason
	npo.ModeratedBy = &moderatedBy
	npo.ModeratedAt = &moderatedAt
	npo.UpdatedAt = s.now()
	s.npos[id] = npo
	return &npo, nil
}

func (s *memoryNPOs) List(_ context.Context, filter NPOFilter) ([]models.NPO, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.NPO
	for _, npo := range s.npos {
		if matchesFilter(npo, filter) {
			matched = append(matched, npo)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if filter.OldestFirst {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if filter.OldestFirst {
			return s.order[a.ID] < s.order[b.ID]
		}
		return s.order[a.ID] > s.order[b.ID]
	})

	return paginate(matched, filter.Page), int64(len(matched)), nil
}

func (s *memoryNPOs) CountByStatus(_ context.Context, createdBy *uuid.UUID) (map[models.NPOStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.NPOStatus]int64)
	for _, npo := range s.npos {
		if createdBy != nil && npo.CreatedBy != *createdBy {
			continue
		}
		counts[npo.Status]++
	}
	return counts, nil
}

// Audit

func (s *memoryAudit) Save(_ context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = s.now()
	s.audit = append(s.audit, *entry)
	return nil
}

// AuditEntries returns a copy of the recorded audit log.
func (s *MemoryStore) AuditEntries() []models.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.AuditLog(nil), s.audit...)
}

func matchesFilter(npo models.NPO, filter NPOFilter) bool {
	if len(filter.Statuses) > 0 && !contains(filter.Statuses, npo.Status) {
		return false
	}
	if filter.City != "" && npo.City != filter.City {
		return false
	}
	if len(filter.Categories) > 0 && !contains(filter.Categories, npo.Category) {
		return false
	}
	if filter.CreatedBy != nil && npo.CreatedBy != *filter.CreatedBy {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		if !strings.Contains(strings.ToLower(npo.Name), search) &&
			!strings.Contains(strings.ToLower(npo.Description), search) {
			return false
		}
	}
	return true
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page query.Page) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

var (
	_ UserRepository  = (*memoryUsers)(nil)
	_ NPORepository   = (*memoryNPOs)(nil)
	_ AuditRepository = (*memoryAudit)(nil)
)
