package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	utils "nko-map-backend/shared/utils/auth"
)

func TestRegisterIssuesToken(t *testing.T) {
	f := newFixture(t)

	res, err := f.accounts.Register(context.Background(), RegisterInput{
		Email:     "  Alice@X.com ",
		Password:  "password1",
		FirstName: "Alice",
		LastName:  "Smith",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, "alice@x.com", res.User.Email)
	require.Equal(t, models.RoleUser, res.User.Role)

	userID, err := utils.NewTokenService("test-secret", time.Hour).Verify(res.Token)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, userID)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "password")
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@x.com")

	_, err := f.accounts.Register(context.Background(), RegisterInput{
		Email:     "ALICE@x.com",
		Password:  "password2",
		FirstName: "Other",
		LastName:  "Alice",
	})
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.accounts.Register(ctx, RegisterInput{Email: "a@x.com", Password: "password1"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.accounts.Register(ctx, RegisterInput{Email: "not-an-email", Password: "123", FirstName: "A", LastName: "B"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	fields := apperr.FieldsOf(err)
	require.Contains(t, fields, "email")
	require.Contains(t, fields, "password")

	_, err = f.accounts.Register(ctx, RegisterInput{Email: "long@x.com", Password: strings.Repeat("a", 80), FirstName: "A", LastName: "B"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Contains(t, apperr.FieldsOf(err), "password")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "alice@x.com")

	res, err := f.accounts.Login(ctx, "ALICE@x.com", "password1")
	require.NoError(t, err)
	require.Equal(t, user.ID, res.User.ID)

	_, err = f.accounts.Login(ctx, "alice@x.com", "wrong")
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = f.accounts.Login(ctx, "nobody@x.com", "password1")
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = f.accounts.Login(ctx, "", "")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "alice@x.com")

	first, phone := "Алиса", "+7 900 123-45-67"
	updated, err := f.accounts.UpdateProfile(ctx, user.ID, ProfileInput{FirstName: &first, Phone: &phone})
	require.NoError(t, err)
	require.Equal(t, "Алиса", updated.FirstName)
	require.Equal(t, "User", updated.LastName)
	require.Equal(t, phone, updated.Phone)

	empty := " "
	_, err = f.accounts.UpdateProfile(ctx, user.ID, ProfileInput{LastName: &empty})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.accounts.UpdateProfile(ctx, uuid.New(), ProfileInput{FirstName: &first})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "alice@x.com")

	require.ErrorIs(t, f.accounts.ChangePassword(ctx, user.ID, "wrong", "newpassword"), apperr.ErrValidation)
	require.ErrorIs(t, f.accounts.ChangePassword(ctx, user.ID, "password1", "123"), apperr.ErrValidation)
	err := f.accounts.ChangePassword(ctx, user.ID, "password1", strings.Repeat("a", 80))
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Contains(t, apperr.FieldsOf(err), "password")
	require.NoError(t, f.accounts.ChangePassword(ctx, user.ID, "password1", "newpassword"))

	_, err = f.accounts.Login(ctx, "alice@x.com", "newpassword")
	require.NoError(t, err)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@x.com")

	require.NoError(t, f.accounts.RequestPasswordReset(ctx, "nobody@x.com"))
	require.Empty(t, f.mailer.token)

	require.NoError(t, f.accounts.RequestPasswordReset(ctx, "alice@x.com"))
	require.Equal(t, "alice@x.com", f.mailer.to)
	require.NotEmpty(t, f.mailer.token)

	require.ErrorIs(t, f.accounts.ResetPassword(ctx, "bogus", "newpassword"), apperr.ErrValidation)
	require.ErrorIs(t, f.accounts.ResetPassword(ctx, f.mailer.token, strings.Repeat("a", 80)), apperr.ErrValidation)
	require.NoError(t, f.accounts.ResetPassword(ctx, f.mailer.token, "newpassword"))

	// tokens are single use
	require.ErrorIs(t, f.accounts.ResetPassword(ctx, f.mailer.token, "another1"), apperr.ErrValidation)

	_, err := f.accounts.Login(ctx, "alice@x.com", "newpassword")
	require.NoError(t, err)
}

func TestPasswordResetExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@x.com")

	require.NoError(t, f.accounts.RequestPasswordReset(ctx, "alice@x.com"))
	f.accounts.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	require.ErrorIs(t, f.accounts.ResetPassword(ctx, f.mailer.token, "newpassword"), apperr.ErrValidation)
}
