package database

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/repository"
	utils "nko-map-backend/shared/utils/auth"
)

// ErrAdminEmailConflict means the configured admin email belongs to a
// regular account while no admin exists yet.
var ErrAdminEmailConflict = errors.New("admin email is registered to a non-admin user")

// SeedAdmin creates the initial administrator unless an admin already exists.
// It reports whether a user was created.
func SeedAdmin(ctx context.Context, users repository.UserRepository, email, password string, log *zap.Logger) (bool, error) {
	admins, err := users.ListByRoles(ctx, []models.Role{models.RoleAdmin})
	if err != nil {
		return false, fmt.Errorf("list admins: %w", err)
	}
	if len(admins) > 0 {
		log.Info("admin already exists, skipping seed", zap.String("email", admins[0].Email))
		return false, nil
	}

	if password == "" {
		return false, errors.New("SUPER_ADMIN_PASSWORD is required to create the first admin")
	}

	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return false, fmt.Errorf("admin email: %w", err)
	}

	hash, err := utils.NewHashedPassword(password)
	if err != nil {
		return false, fmt.Errorf("admin password: %w", err)
	}

	admin := &models.User{
		Email:      email,
		Password:   hash,
		FirstName:  "Администратор",
		LastName:   "Системы",
		Role:       models.RoleAdmin,
		IsVerified: true,
	}
	if err := users.Create(ctx, admin); err != nil {
		if errors.Is(err, apperr.ErrEmailTaken) {
			return false, fmt.Errorf("%w: %s", ErrAdminEmailConflict, email)
		}
		return false, fmt.Errorf("create admin: %w", err)
	}

	log.Info("admin created", zap.String("email", email))
	return true, nil
}

// SeedAdminOnStart is the server boot variant of SeedAdmin. A missing password
// or an email conflict is logged and skipped so the API still comes up.
func SeedAdminOnStart(ctx context.Context, users repository.UserRepository, email, password string, log *zap.Logger) error {
	if password == "" {
		log.Warn("SUPER_ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}
	_, err := SeedAdmin(ctx, users, email, password, log)
	if errors.Is(err, ErrAdminEmailConflict) {
		log.Error("admin seed skipped, promote the account manually or change SUPER_ADMIN_EMAIL",
			zap.String("email", utils.NormalizeEmail(email)),
		)
		return nil
	}
	return err
}
