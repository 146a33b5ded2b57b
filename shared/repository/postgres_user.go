package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	utils "nko-map-backend/shared/utils/auth"
	"nko-map-backend/shared/utils/query"
)

const userNotFound = "Пользователь не найден"

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrEmailTaken
		}
		return translate(err, userNotFound)
	}
	return nil
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err, userNotFound)
	}
	return &user, nil
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err, userNotFound)
	}
	return &user, nil
}

func (r *PostgresUserRepository) FindByResetToken(ctx context.Context, digest string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("reset_password_token = ?", digest).
		First(&user).
		Error
	if err != nil {
		return nil, translate(err, userNotFound)
	}
	return &user, nil
}

func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, changes ProfileChanges) (*models.User, error) {
	updates := map[string]interface{}{}
	if changes.FirstName != nil {
		updates["first_name"] = *changes.FirstName
	}
	if changes.LastName != nil {
		updates["last_name"] = *changes.LastName
	}
	if changes.Phone != nil {
		updates["phone"] = *changes.Phone
	}
	if changes.Avatar != nil {
		updates["avatar"] = *changes.Avatar
	}

	if len(updates) > 0 {
		result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return nil, translate(result.Error, userNotFound)
		}
		if result.RowsAffected == 0 {
			return nil, apperr.NotFound(userNotFound)
		}
	}
	return r.FindByID(ctx, id)
}

func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash utils.HashedPassword) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password":               hash,
			"reset_password_token":   nil,
			"reset_password_expires": nil,
		})
	if result.Error != nil {
		return translate(result.Error, userNotFound)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound(userNotFound)
	}
	return nil
}

func (r *PostgresUserRepository) SetResetToken(ctx context.Context, id uuid.UUID, digest string, expires time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reset_password_token":   digest,
			"reset_password_expires": expires.UTC(),
		})
	if result.Error != nil {
		return translate(result.Error, userNotFound)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound(userNotFound)
	}
	return nil
}

func (r *PostgresUserRepository) List(ctx context.Context, page query.Page) ([]models.User, int64, error) {
	page = page.Normalize()
	base := r.db.WithContext(ctx).Model(&models.User{}).Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, translate(err, userNotFound)
	}

	var users []models.User
	if err := query.ApplyPagination(base.Order("created_at DESC"), page).Find(&users).Error; err != nil {
		return nil, 0, translate(err, userNotFound)
	}
	return users, total, nil
}

func (r *PostgresUserRepository) ListByRoles(ctx context.Context, roles []models.Role) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("role IN ?", roles).Find(&users).Error; err != nil {
		return nil, translate(err, userNotFound)
	}
	return users, nil
}

func (r *PostgresUserRepository) CountByRole(ctx context.Context) (map[models.Role]int64, error) {
	var rows []struct {
		Role  models.Role
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).
		Error
	if err != nil {
		return nil, translate(err, userNotFound)
	}

	counts := make(map[models.Role]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}

func (r *PostgresUserRepository) Creators(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CreatorSummary, error) {
	out := make(map[uuid.UUID]models.CreatorSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []models.CreatorSummary
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id, first_name, last_name").
		Where("id IN ?", ids).
		Scan(&rows).
		Error
	if err != nil {
		return nil, translate(err, userNotFound)
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
