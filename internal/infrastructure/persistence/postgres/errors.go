package postgres

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/turtacn/taskflow/pkg/errors"
)

const pgUniqueViolation = "23505"

// mapDBErr converts driver errors into AppErrors. notFound is returned for missing rows,
// conflict for unique violations.
func mapDBErr(err error, notFound, conflict *errors.AppError) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, gorm.ErrRecordNotFound) && notFound != nil {
		return notFound
	}
	if conflict != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return conflict.WithCause(err)
		}
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return conflict.WithCause(err)
		}
	}
	return errors.ErrInternal("").WithCause(err)
}
