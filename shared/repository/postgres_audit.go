package repository

import (
	"context"

	"gorm.io/gorm"

	"nko-map-backend/shared/database/models"
)

type PostgresAuditRepository struct {
	db *gorm.DB
}

func NewPostgresAuditRepository(db *gorm.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

func (r *PostgresAuditRepository) Save(ctx context.Context, entry *models.AuditLog) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error, "")
}

var _ AuditRepository = (*PostgresAuditRepository)(nil)
