package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func alreadyModerated(status models.NPOStatus) error {
	return apperr.InvalidTransition("Организация уже прошла модерацию, текущий статус: " + string(status))
}

// translate maps gorm and driver errors onto apperr kinds.
func translate(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(notFound)
	case isUniqueViolation(err):
		return apperr.Wrap(apperr.ErrConflict, "Запись уже существует", err)
	default:
		return apperr.Internal("Ошибка базы данных", err)
	}
}
