package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
)

func TestAliceScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com")
	admin := f.admin(t)

	npo, err := f.lifecycle.Submit(ctx, validInput("A"), alice)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, npo.Status)
	require.Equal(t, alice.ID, npo.CreatedBy)

	rejected, err := f.lifecycle.Reject(ctx, npo.ID, "incomplete", admin)
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.Status)
	require.Equal(t, "incomplete", rejected.RejectionReason)
	require.NotNil(t, rejected.ModeratedAt)
	require.Equal(t, admin.ID, *rejected.ModeratedBy)

	_, err = f.lifecycle.Approve(ctx, npo.ID, admin)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	require.Len(t, f.notifier.submitted, 1)
	require.Len(t, f.notifier.moderated, 1)
}

func TestSubmitForcesPendingAndOwner(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice@x.com")

	npo, err := f.lifecycle.Submit(context.Background(), validInput("A"), alice)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, npo.Status)
	require.Equal(t, alice.ID, npo.CreatedBy)
	require.Empty(t, npo.RejectionReason)
	require.Nil(t, npo.ModeratedBy)
	require.Nil(t, npo.ModeratedAt)
}

func TestSubmitOnePerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com")

	_, err := f.lifecycle.Submit(ctx, validInput("A"), alice)
	require.NoError(t, err)

	_, err = f.lifecycle.Submit(ctx, validInput("B"), alice)
	require.ErrorIs(t, err, apperr.ErrDuplicateSubmission)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSubmitWithoutOnePerUserPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lifecycle := NewLifecycle(f.store.NPOs(), f.store.Users(), f.policy, false, zap.NewNop())
	alice := f.register(t, "alice@x.com")

	_, err := lifecycle.Submit(ctx, validInput("A"), alice)
	require.NoError(t, err)
	_, err = lifecycle.Submit(ctx, validInput("B"), alice)
	require.NoError(t, err)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice@x.com")

	in := validInput("A")
	in.Category = "Ecology"
	in.City = "Москва"
	in.Lat = nil
	bad := 200.0
	in.Lng = &bad
	in.Website = "javascript:alert(1)"

	_, err := f.lifecycle.Submit(context.Background(), in, alice)
	require.ErrorIs(t, err, apperr.ErrValidation)

	fields := apperr.FieldsOf(err)
	for _, name := range []string{"category", "city", "lat", "lng", "website"} {
		require.Contains(t, fields, name)
	}

	_, err = f.lifecycle.Submit(context.Background(), validInput(""), nil)
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestModerationRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com")
	npo, err := f.lifecycle.Submit(ctx, validInput("A"), alice)
	require.NoError(t, err)

	_, err = f.lifecycle.Approve(ctx, npo.ID, alice)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.lifecycle.Reject(ctx, npo.ID, "spam", alice)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	moderator := f.register(t, "mod@x.com")
	f.store.SetRole(moderator.ID, models.RoleModerator)
	moderator.Role = models.RoleModerator
	_, err = f.lifecycle.Approve(ctx, npo.ID, moderator)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	stored, err := f.store.NPOs().FindByID(ctx, npo.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, stored.Status)
}

func TestModeratorsWhenEnabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lifecycle := NewLifecycle(f.store.NPOs(), f.store.Users(), NewPolicy(true), true, zap.NewNop())
	alice := f.register(t, "alice@x.com")
	moderator := f.register(t, "mod@x.com")
	moderator.Role = models.RoleModerator

	npo, err := lifecycle.Submit(ctx, validInput("A"), alice)
	require.NoError(t, err)

	approved, err := lifecycle.Approve(ctx, npo.ID, moderator)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, approved.Status)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com")
	admin := f.admin(t)
	npo, err := f.lifecycle.Submit(ctx, validInput("A"), alice)
	require.NoError(t, err)

	_, err = f.lifecycle.Reject(ctx, npo.ID, "   ", admin)
	require.ErrorIs(t, err, apperr.ErrValidation)

	stored, err := f.store.NPOs().FindByID(ctx, npo.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, stored.Status)
}

func TestModerationUnknownNPO(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)

	_, err := f.lifecycle.Approve(context.Background(), uuid.New(), admin)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.lifecycle.Reject(context.Background(), uuid.New(), "reason", admin)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApproveSetsModerationFieldsAndInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	moderatedAt := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	lifecycle := NewLifecycle(f.store.NPOs(), f.store.Users(), f.policy, true, zap.NewNop(),
		WithListingCache(f.cache),
		WithClock(func() time.Time { return moderatedAt }),
	)
	alice := f.register(t, "alice@x.com")
	admin := f.admin(t)

	npo, err := lifecycle.Submit(ctx, validInput("A"), alice)
	require.NoError(t, err)

	approved, err := lifecycle.Approve(ctx, npo.ID, admin)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, approved.Status)
	require.Empty(t, approved.RejectionReason)
	require.Equal(t, moderatedAt, *approved.ModeratedAt)
	require.Equal(t, 1, f.cache.invalidated)

	_, err = lifecycle.Reject(ctx, npo.ID, "late", admin)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestConcurrentModerationTransitionsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com")
	admin := f.admin(t)

	npo, err := f.lifecycle.Submit(ctx, validInput("A"), alice)
	require.NoError(t, err)

	const workers = 20
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		errs      = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.lifecycle.Approve(ctx, npo.ID, admin)
			} else {
				_, err = f.lifecycle.Reject(ctx, npo.ID, "duplicate", admin)
			}
			if err != nil {
				errs <- err
				return
			}
			succeeded.Add(1)
		}(i)
	}
	wg.Wait()
	close(errs)

	require.Equal(t, int32(1), succeeded.Load())
	for err := range errs {
		require.ErrorIs(t, err, apperr.ErrInvalidTransition)
	}
	require.Len(t, f.notifier.moderated, 1)

	stored, err := f.store.NPOs().FindByID(ctx, npo.ID)
	require.NoError(t, err)
	require.NotEqual(t, models.StatusPending, stored.Status)
	require.Equal(t, f.notifier.moderated[0].Status, stored.Status)
}

func TestConcurrentSubmitKeepsOnePerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@x.com")

	const workers = 20
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		errs      = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.lifecycle.Submit(ctx, validInput(fmt.Sprintf("НКО %d", i)), alice); err != nil {
				errs <- err
				return
			}
			succeeded.Add(1)
		}(i)
	}
	wg.Wait()
	close(errs)

	require.Equal(t, int32(1), succeeded.Load())
	for err := range errs {
		require.ErrorIs(t, err, apperr.ErrDuplicateSubmission)
	}

	owned, err := f.directory.OwnedBy(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)

	reloaded, err := f.store.Users().FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.NPOID)
	require.Equal(t, owned[0].ID, *reloaded.NPOID)
}
