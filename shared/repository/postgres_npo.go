package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/utils/query"
)

const npoNotFound = "Организация не найдена"

type PostgresNPORepository struct {
	db *gorm.DB
}

func NewPostgresNPORepository(db *gorm.DB) *PostgresNPORepository {
	return &PostgresNPORepository{db: db}
}

func (r *PostgresNPORepository) CreateForUser(ctx context.Context, npo *models.NPO, onePerUser bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", npo.CreatedBy).
			First(&owner).
			Error
		if err != nil {
			return translate(err, userNotFound)
		}

		if onePerUser && owner.NPOID != nil {
			return apperr.ErrDuplicateSubmission
		}

		if err := tx.Create(npo).Error; err != nil {
			return translate(err, npoNotFound)
		}

		if owner.NPOID == nil {
			err := tx.Model(&models.User{}).
				Where("id = ?", owner.ID).
				Update("npo_id", npo.ID).
				Error
			if err != nil {
				return translate(err, userNotFound)
			}
		}
		return nil
	})
}

func (r *PostgresNPORepository) FindByID(ctx context.Context, id uuid.UUID) (*models.NPO, error) {
	var npo models.NPO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&npo).Error; err != nil {
		return nil, translate(err, npoNotFound)
	}
	return &npo, nil
}

func (r *PostgresNPORepository) Transition(ctx context.Context, id uuid.UUID, from models.NPOStatus, change Moderation) (*models.NPO, error) {
	var updated models.NPO
	result := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":           change.Status,
			"rejection_reason": change.RejectionReason,
			"moderated_by":     change.ModeratedBy,
			"moderated_at":     change.ModeratedAt.UTC(),
		})
	if result.Error != nil {
		return nil, translate(result.Error, npoNotFound)
	}

	if result.RowsAffected == 0 {
		current, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, alreadyModerated(current.Status)
	}
	return &updated, nil
}

func (r *PostgresNPORepository) List(ctx context.Context, filter NPOFilter) ([]models.NPO, int64, error) {
	page := filter.Page.Normalize()
	base := r.applyFilter(r.db.WithContext(ctx).Model(&models.NPO{}), filter).Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, translate(err, npoNotFound)
	}

	order := "created_at DESC"
	if filter.OldestFirst {
		order = "created_at ASC"
	}

	var npos []models.NPO
	if err := query.ApplyPagination(base.Order(order), page).Find(&npos).Error; err != nil {
		return nil, 0, translate(err, npoNotFound)
	}
	return npos, total, nil
}

func (r *PostgresNPORepository) applyFilter(db *gorm.DB, filter NPOFilter) *gorm.DB {
	if len(filter.Statuses) > 0 {
		db = db.Where("status IN ?", filter.Statuses)
	}
	if filter.City != "" {
		db = db.Where("city = ?", filter.City)
	}
	if len(filter.Categories) > 0 {
		db = db.Where("category IN ?", filter.Categories)
	}
	if filter.CreatedBy != nil {
		db = db.Where("created_by = ?", *filter.CreatedBy)
	}
	return query.ApplySearch(db, filter.Search, []string{"name", "description"})
}

func (r *PostgresNPORepository) CountByStatus(ctx context.Context, createdBy *uuid.UUID) (map[models.NPOStatus]int64, error) {
	var rows []struct {
		Status models.NPOStatus
		Count  int64
	}

	db := r.db.WithContext(ctx).Model(&models.NPO{})
	if createdBy != nil {
		db = db.Where("created_by = ?", *createdBy)
	}
	err := db.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, translate(err, npoNotFound)
	}

	counts := make(map[models.NPOStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

var _ NPORepository = (*PostgresNPORepository)(nil)
