package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/utils/query"
)

func newUser(t *testing.T, store *MemoryStore, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, FirstName: "Test", LastName: "User", Password: "hash"}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func TestMemoryUsersRejectDuplicateEmail(t *testing.T) {
	store := NewMemoryStore()
	newUser(t, store, "alice@x.com")

	err := store.Users().Create(context.Background(), &models.User{Email: "alice@x.com"})
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.ErrorIs(t, err, apperr.ErrEmailTaken)
}

func TestMemoryCreateForUserOnePerUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	owner := newUser(t, store, "owner@x.com")

	first := &models.NPO{Name: "A", CreatedBy: owner.ID}
	require.NoError(t, store.NPOs().CreateForUser(ctx, first, true))
	require.Equal(t, models.StatusPending, first.Status)

	err := store.NPOs().CreateForUser(ctx, &models.NPO{Name: "B", CreatedBy: owner.ID}, true)
	require.ErrorIs(t, err, apperr.ErrDuplicateSubmission)

	reloaded, err := store.Users().FindByID(ctx, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.NPOID)
	require.Equal(t, first.ID, *reloaded.NPOID)

	require.NoError(t, store.NPOs().CreateForUser(ctx, &models.NPO{Name: "C", CreatedBy: owner.ID}, false))
	reloaded, err = store.Users().FindByID(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, *reloaded.NPOID)
}

func TestMemoryTransitionIsConditional(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	owner := newUser(t, store, "owner@x.com")
	npo := &models.NPO{Name: "A", CreatedBy: owner.ID}
	require.NoError(t, store.NPOs().CreateForUser(ctx, npo, true))

	moderator := uuid.New()
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	rejected, err := store.NPOs().Transition(ctx, npo.ID, models.StatusPending, Moderation{
		Status:          models.StatusRejected,
		ModeratedBy:     moderator,
		ModeratedAt:     at,
		RejectionReason: "incomplete",
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.Status)
	require.Equal(t, "incomplete", rejected.RejectionReason)
	require.Equal(t, moderator, *rejected.ModeratedBy)
	require.Equal(t, at, *rejected.ModeratedAt)

	_, err = store.NPOs().Transition(ctx, npo.ID, models.StatusPending, Moderation{Status: models.StatusApproved, ModeratedBy: moderator, ModeratedAt: at})
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = store.NPOs().Transition(ctx, uuid.New(), models.StatusPending, Moderation{Status: models.StatusApproved})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryListFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store := NewMemoryStore().WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})
	owner := newUser(t, store, "owner@x.com")

	seed := []models.NPO{
		{Name: "Зелёный Саров", Category: "Экология", City: "Саров", Description: "Уборка парков"},
		{Name: "Лапа", Category: "Помощь животным", City: "Саров", Description: "Приют"},
		{Name: "Спорт для всех", Category: "Спорт", City: "Обнинск", Description: "Секции"},
	}
	for i := range seed {
		seed[i].CreatedBy = owner.ID
		require.NoError(t, store.NPOs().CreateForUser(ctx, &seed[i], false))
	}

	all, total, err := store.NPOs().List(ctx, NPOFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Equal(t, "Спорт для всех", all[0].Name)

	oldest, _, err := store.NPOs().List(ctx, NPOFilter{OldestFirst: true})
	require.NoError(t, err)
	require.Equal(t, "Зелёный Саров", oldest[0].Name)

	bySarov, total, err := store.NPOs().List(ctx, NPOFilter{City: "Саров", Categories: []string{"Экология", "Спорт"}})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Зелёный Саров", bySarov[0].Name)

	bySearch, _, err := store.NPOs().List(ctx, NPOFilter{Search: "ПРИЮТ"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	require.Equal(t, "Лапа", bySearch[0].Name)

	paged, total, err := store.NPOs().List(ctx, NPOFilter{Page: query.Page{Page: 2, Limit: 2}})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, paged, 1)

	counts, err := store.NPOs().CountByStatus(ctx, &owner.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, counts[models.StatusPending])
}

func TestMemoryResetToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	user := newUser(t, store, "alice@x.com")

	expires := time.Now().Add(time.Hour)
	require.NoError(t, store.Users().SetResetToken(ctx, user.ID, "digest", expires))

	found, err := store.Users().FindByResetToken(ctx, "digest")
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)

	require.NoError(t, store.Users().UpdatePassword(ctx, user.ID, "newhash"))
	_, err = store.Users().FindByResetToken(ctx, "digest")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryCreatorsAndRoles(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice := newUser(t, store, "alice@x.com")
	admin := newUser(t, store, "admin@x.com")
	store.SetRole(admin.ID, models.RoleAdmin)

	creators, err := store.Users().Creators(ctx, []uuid.UUID{alice.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, creators, 1)
	require.Equal(t, "Test", creators[alice.ID].FirstName)

	counts, err := store.Users().CountByRole(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, counts[models.RoleAdmin])
	require.EqualValues(t, 1, counts[models.RoleUser])

	admins, err := store.Users().ListByRoles(ctx, []models.Role{models.RoleAdmin, models.RoleModerator})
	require.NoError(t, err)
	require.Len(t, admins, 1)
	require.Equal(t, admin.ID, admins[0].ID)
}
