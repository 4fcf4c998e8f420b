package repositories

import (
	"errors"

	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SQLSTATE codes that mean "retry the whole transaction".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// translateError maps driver errors onto the feed error taxonomy. Errors
// that are already feed errors pass through unchanged.
func translateError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var fe *feed.Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return feed.ErrNotFound(notFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return feed.ErrConflict("concurrent update, retry the request", err)
		}
	}
	return err
}

// countRow is the scan target of GROUP BY count queries.
type countRow struct {
	ID    uint
	Count int
}

func countMap(rows []countRow) map[uint]int {
	out := make(map[uint]int, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Count
	}
	return out
}
