// Package repository holds the persistence ports for users, NPOs and audit
// records together with their postgres and in-memory implementations.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nko-map-backend/shared/database/models"
	utils "nko-map-backend/shared/utils/auth"
	"nko-map-backend/shared/utils/query"
)

type UserRepository interface {
	// Create inserts a user; a duplicate email yields apperr.ErrEmailTaken.
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetToken(ctx context.Context, digest string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, changes ProfileChanges) (*models.User, error)
	// UpdatePassword stores hash and clears any pending reset token.
	UpdatePassword(ctx context.Context, id uuid.UUID, hash utils.HashedPassword) error
	SetResetToken(ctx context.Context, id uuid.UUID, digest string, expires time.Time) error
	List(ctx context.Context, page query.Page) ([]models.User, int64, error)
	ListByRoles(ctx context.Context, roles []models.Role) ([]models.User, error)
	CountByRole(ctx context.Context) (map[models.Role]int64, error)
	Creators(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CreatorSummary, error)
}

type NPORepository interface {
	// CreateForUser inserts npo owned by npo.CreatedBy. With onePerUser set,
	// a creator who already owns an NPO yields apperr.ErrDuplicateSubmission;
	// the check and insert are atomic.
	CreateForUser(ctx context.Context, npo *models.NPO, onePerUser bool) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.NPO, error)
	// Transition moves an NPO from status from to change.Status only if it
	// is still in from. Otherwise it returns apperr.ErrNotFound or
	// apperr.ErrInvalidTransition.
	Transition(ctx context.Context, id uuid.UUID, from models.NPOStatus, change Moderation) (*models.NPO, error)
	List(ctx context.Context, filter NPOFilter) ([]models.NPO, int64, error)
	CountByStatus(ctx context.Context, createdBy *uuid.UUID) (map[models.NPOStatus]int64, error)
}

type AuditRepository interface {
	Save(ctx context.Context, entry *models.AuditLog) error
}

type ProfileChanges struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Avatar    *string
}

type Moderation struct {
	Status          models.NPOStatus
	ModeratedBy     uuid.UUID
	ModeratedAt     time.Time
	RejectionReason string
}

// NPOFilter selects NPOs. Empty fields do not constrain the result.
type NPOFilter struct {
	Statuses    []models.NPOStatus
	City        string
	Categories  []string
	Search      string
	CreatedBy   *uuid.UUID
	OldestFirst bool
	Page        query.Page
}
