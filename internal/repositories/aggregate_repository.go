package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// effectiveVisibility mirrors feed.EffectiveVisibility in SQL. It needs the
// LEFT JOIN on shelves made by ListAggregates.
const effectiveVisibility = `CASE WHEN feed_aggregates.shelf_id IS NOT NULL ` +
	`THEN CASE WHEN shelves.owner_id = feed_aggregates.actor_id THEN COALESCE(shelves.visibility, 'private') ELSE 'private' END ` +
	`ELSE COALESCE(feed_aggregates.checkin_visibility, 'public') END`

// PostgresAggregateRepository stores aggregates and raw activity events.
type PostgresAggregateRepository struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewPostgresAggregateRepository creates a new PostgresAggregateRepository.
// lockTimeout bounds how long a record transaction waits for a busy scope.
func NewPostgresAggregateRepository(db *gorm.DB, lockTimeout time.Duration) *PostgresAggregateRepository {
	return &PostgresAggregateRepository{db: db, lockTimeout: lockTimeout}
}

// WithinTx runs fn in one database transaction. Lock waits longer than the
// configured timeout abort the transaction with a retryable conflict.
func (r *PostgresAggregateRepository) WithinTx(ctx context.Context, fn func(tx feed.Tx) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&pgTx{db: tx})
	})
	return translateError(err, "aggregate not found")
}

// GetAggregate retrieves an aggregate by ID
func (r *PostgresAggregateRepository) GetAggregate(ctx context.Context, id uint) (*models.Aggregate, error) {
	var agg models.Aggregate
	if err := r.db.WithContext(ctx).First(&agg, id).Error; err != nil {
		return nil, translateError(err, "feed entry not found")
	}
	return &agg, nil
}

// ListAggregates composes the visibility-filtered feed query
func (r *PostgresAggregateRepository) ListAggregates(ctx context.Context, q feed.FeedQuery) ([]models.Aggregate, error) {
	db := r.db.WithContext(ctx).
		Model(&models.Aggregate{}).
		Select("feed_aggregates.*").
		Joins("LEFT JOIN shelves ON shelves.id = feed_aggregates.shelf_id")

	if q.OwnerIDs != nil {
		db = db.Where("feed_aggregates.actor_id IN ?", q.OwnerIDs)
	}
	if q.ExcludeOwnerID != 0 {
		db = db.Where("feed_aggregates.actor_id <> ?", q.ExcludeOwnerID)
	}
	if q.ActionKind != "" {
		db = db.Where("feed_aggregates.action_kind = ?", q.ActionKind)
	}
	if !q.AllTiers {
		if len(q.FriendIDs) > 0 {
			db = db.Where("("+effectiveVisibility+" = ? OR feed_aggregates.actor_id = ? OR ("+effectiveVisibility+" = ? AND feed_aggregates.actor_id IN ?))",
				models.VisibilityPublic, q.ViewerID, models.VisibilityFriends, q.FriendIDs)
		} else {
			db = db.Where("("+effectiveVisibility+" = ? OR feed_aggregates.actor_id = ?)", models.VisibilityPublic, q.ViewerID)
		}
	}

	var aggs []models.Aggregate
	err := db.Order("feed_aggregates.last_activity_at DESC, feed_aggregates.id DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&aggs).Error
	if err != nil {
		return nil, err
	}
	return aggs, nil
}

// EventsForAggregate returns the events folded into an aggregate, oldest first
func (r *PostgresAggregateRepository) EventsForAggregate(ctx context.Context, aggregateID uint, limit int) ([]models.ActivityEvent, error) {
	var events []models.ActivityEvent
	err := r.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

type pgTx struct {
	db *gorm.DB
}

// LockOpenAggregate serializes writers of one scope with a transaction-level
// advisory lock, then row-locks the open aggregate if there is one. The
// advisory lock also covers the case where no row exists yet.
func (t *pgTx) LockOpenAggregate(ctx context.Context, key feed.AggregateKey, now time.Time) (*models.Aggregate, error) {
	if err := t.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key.String()).Error; err != nil {
		return nil, err
	}

	q := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("actor_id = ? AND action_kind = ? AND window_end >= ?", key.ActorID, key.ActionKind, now)
	if key.ShelfID == nil {
		q = q.Where("shelf_id IS NULL")
	} else {
		q = q.Where("shelf_id = ?", *key.ShelfID)
	}

	var aggs []models.Aggregate
	if err := q.Order("window_start DESC").Limit(1).Find(&aggs).Error; err != nil {
		return nil, err
	}
	if len(aggs) == 0 {
		return nil, nil
	}
	return &aggs[0], nil
}

func (t *pgTx) CreateAggregate(ctx context.Context, agg *models.Aggregate) error {
	return t.db.WithContext(ctx).Create(agg).Error
}

func (t *pgTx) SaveAggregate(ctx context.Context, agg *models.Aggregate) error {
	return t.db.WithContext(ctx).Save(agg).Error
}

func (t *pgTx) AppendEvent(ctx context.Context, ev *models.ActivityEvent) error {
	return t.db.WithContext(ctx).Create(ev).Error
}
