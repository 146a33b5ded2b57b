package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/repository"
	utils "nko-map-backend/shared/utils/auth"
)

type fixture struct {
	store     *repository.MemoryStore
	accounts  *Accounts
	lifecycle *Lifecycle
	directory *Directory
	stats     *Stats
	policy    *Policy
	cache     *fakeCache
	notifier  *recordingNotifier
	mailer    *recordingMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	policy := NewPolicy(false)
	cache := newFakeCache()
	notifier := &recordingNotifier{}
	mailer := &recordingMailer{}
	tokens := utils.NewTokenService("test-secret", 24*time.Hour)

	return &fixture{
		store:     store,
		accounts:  NewAccounts(store.Users(), tokens, mailer, time.Hour, zap.NewNop()),
		lifecycle: NewLifecycle(store.NPOs(), store.Users(), policy, true, zap.NewNop(), WithListingCache(cache), WithNotifier(notifier)),
		directory: NewDirectory(store.NPOs(), store.Users(), policy, cache, zap.NewNop()),
		stats:     NewStats(store.NPOs(), store.Users()),
		policy:    policy,
		cache:     cache,
		notifier:  notifier,
		mailer:    mailer,
	}
}

func (f *fixture) register(t *testing.T, email string) *models.User {
	t.Helper()
	res, err := f.accounts.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  "password1",
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(t, err)
	return res.User
}

func (f *fixture) admin(t *testing.T) *models.User {
	t.Helper()
	user := f.register(t, "admin@nko-map.ru")
	f.store.SetRole(user.ID, models.RoleAdmin)
	user.Role = models.RoleAdmin
	return user
}

func validInput(name string) SubmitInput {
	lat, lng := 54.9333, 43.3167
	return SubmitInput{
		Name:        name,
		Category:    "Экология",
		Description: "Описание " + name,
		Address:     "ул. Ленина, 1",
		City:        "Саров",
		Lat:         &lat,
		Lng:         &lng,
	}
}

type fakeCache struct {
	mu          sync.Mutex
	generation  int64
	entries     map[string]Listing
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]Listing)}
}

func fakeKey(generation int64, key string) string {
	return fmt.Sprintf("%d:%s", generation, key)
}

func (c *fakeCache) ListingGeneration(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *fakeCache) GetListing(_ context.Context, generation int64, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[fakeKey(generation, key)]
	if ok {
		*dest.(*Listing) = entry
	}
	return ok, nil
}

func (c *fakeCache) SetListing(_ context.Context, generation int64, key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fakeKey(generation, key)] = *value.(*Listing)
	return nil
}

func (c *fakeCache) InvalidateListings(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries = make(map[string]Listing)
	c.invalidated++
	return nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	submitted []models.NPO
	moderated []models.NPO
}

func (n *recordingNotifier) NPOSubmitted(_ context.Context, npo models.NPO, _ models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, npo)
}

func (n *recordingNotifier) NPOModerated(_ context.Context, npo models.NPO, _ models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.moderated = append(n.moderated, npo)
}

type recordingMailer struct {
	to    string
	token string
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, to, _, token string, _ int) error {
	m.to = to
	m.token = token
	return nil
}
