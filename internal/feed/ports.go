package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/shelflog/backend/internal/models"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// AggregateKey identifies the (actor, shelf, kind) scope that owns at most one
// open aggregate at a time.
type AggregateKey struct {
	ActorID    uint
	ShelfID    *uint
	ActionKind models.ActionKind
}

func (k AggregateKey) String() string {
	shelf := "-"
	if k.ShelfID != nil {
		shelf = fmt.Sprint(*k.ShelfID)
	}
	return fmt.Sprintf("%d:%s:%s", k.ActorID, shelf, k.ActionKind)
}

// Tx is the write side of one atomic record operation.
type Tx interface {
	// LockOpenAggregate returns the aggregate for key whose window is still
	// open at now, or nil. Exclusive access to key is held until the
	// transaction ends, whether or not a row was found.
	LockOpenAggregate(ctx context.Context, key AggregateKey, now time.Time) (*models.Aggregate, error)
	CreateAggregate(ctx context.Context, agg *models.Aggregate) error
	SaveAggregate(ctx context.Context, agg *models.Aggregate) error
	AppendEvent(ctx context.Context, ev *models.ActivityEvent) error
}

// FeedQuery is a visibility-filtered listing of aggregates. Visibility is the
// shelf's live visibility, or the check-in's own for shelf-less check-ins.
type FeedQuery struct {
	ViewerID uint
	// OwnerIDs restricts results to these actors when non-nil.
	OwnerIDs []uint
	// ExcludeOwnerID drops one actor's aggregates when non-zero.
	ExcludeOwnerID uint
	// FriendIDs are the owners whose friends-tier activity the viewer may see.
	FriendIDs []uint
	// AllTiers skips the gate; set only when the viewer owns every row.
	AllTiers   bool
	ActionKind models.ActionKind
	Limit      int
	Offset     int
}

// Admits applies the visibility gate to one row.
func (q FeedQuery) Admits(ownerID uint, vis models.Visibility) bool {
	if q.AllTiers {
		return true
	}
	return CanView(q.ViewerID, ownerID, vis, containsID(q.FriendIDs, ownerID))
}

type AggregateStore interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	GetAggregate(ctx context.Context, id uint) (*models.Aggregate, error)
	// ListAggregates returns rows matching q ordered by last_activity_at desc.
	ListAggregates(ctx context.Context, q FeedQuery) ([]models.Aggregate, error)
	// EventsForAggregate returns up to limit events in insertion order.
	EventsForAggregate(ctx context.Context, aggregateID uint, limit int) ([]models.ActivityEvent, error)
}

type ShelfRegistry interface {
	// GetAccess returns the owner and current visibility of a shelf, or
	// ErrNotFound for unknown shelves.
	GetAccess(ctx context.Context, shelfID uint) (ownerID uint, vis models.Visibility, err error)
	GetMetadata(ctx context.Context, ids []uint) (map[uint]models.ShelfMetadata, error)
	ItemCounts(ctx context.Context, ids []uint) (map[uint]int, error)
}

type FriendGraph interface {
	AcceptedFriendIDs(ctx context.Context, userID uint) ([]uint, error)
	AreFriends(ctx context.Context, a, b uint) (bool, error)
}

type UserDirectory interface {
	CompactUsers(ctx context.Context, ids []uint) (map[uint]models.UserCompact, error)
}

// ItemCatalog resolves item references to present-day display data.
type ItemCatalog interface {
	Collectables(ctx context.Context, ids []string) (map[string]models.Collectable, error)
	ManualItems(ctx context.Context, ids []uint) (map[uint]models.ManualItem, error)
}

// SocialStore holds like and comment facts on aggregates.
type SocialStore interface {
	LikeCounts(ctx context.Context, ids []uint) (map[uint]int, error)
	CommentCounts(ctx context.Context, ids []uint) (map[uint]int, error)
	LikedBy(ctx context.Context, ids []uint, userID uint) (map[uint]bool, error)
	TopComments(ctx context.Context, ids []uint, policy TopCommentPolicy) (map[uint]models.FeedComment, error)

	AddLike(ctx context.Context, like *models.FeedLike) error
	RemoveLike(ctx context.Context, aggregateID, userID uint) error
	AddComment(ctx context.Context, comment *models.FeedComment) error
	ListComments(ctx context.Context, aggregateID uint, limit, offset int) ([]models.FeedComment, error)
}

// Outcome describes what a record call did.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeExtended   Outcome = "extended"
	OutcomeCheckIn    Outcome = "checkin"
	OutcomeSuppressed Outcome = "suppressed"
)

// AggregateNotice is published after a record call commits.
type AggregateNotice struct {
	AggregateID uint              `json:"aggregate_id"`
	ActorID     uint              `json:"actor_id"`
	ShelfID     *uint             `json:"shelf_id,omitempty"`
	ActionKind  models.ActionKind `json:"action_kind"`
	ItemCount   int               `json:"item_count"`
	Outcome     Outcome           `json:"outcome"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

type Publisher interface {
	PublishAggregate(ctx context.Context, n AggregateNotice) error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishAggregate(ctx context.Context, n AggregateNotice) error { return nil }

// Metrics receives engine counters. See internal/metrics for the prometheus
// implementation.
type Metrics interface {
	RecordOutcome(outcome string)
	RecordConflict()
	RecordFeedRequest(scope string)
	RecordDegraded()
	ObserveExpand(d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordOutcome(string)        {}
func (noopMetrics) RecordConflict()             {}
func (noopMetrics) RecordFeedRequest(string)    {}
func (noopMetrics) RecordDegraded()             {}
func (noopMetrics) ObserveExpand(time.Duration) {}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
