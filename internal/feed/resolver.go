package feed

import (
	"context"

	"github.com/anonto42/shelflog/backend/internal/models"
)

// Scope is the caller-selected feed view.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeFriends Scope = "friends"
	ScopeMine    Scope = "mine"
)

// ParseScope maps the query-string value to a scope. Empty means global.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeGlobal:
		return ScopeGlobal, nil
	case ScopeFriends:
		return ScopeFriends, nil
	case ScopeMine:
		return ScopeMine, nil
	}
	return "", ErrValidation("unknown feed scope")
}

type ResolveOptions struct {
	Limit      int
	Offset     int
	ActionKind models.ActionKind
	// OwnerOverride lists another user's activity, as on a profile page.
	OwnerOverride *uint
}

// Resolver composes visibility-filtered, paginated aggregate listings.
type Resolver struct {
	store   AggregateStore
	friends FriendGraph
	metrics Metrics
	cfg     Config
}

func NewResolver(store AggregateStore, friends FriendGraph, metrics Metrics, cfg Config) *Resolver {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Resolver{store: store, friends: friends, metrics: metrics, cfg: cfg.withDefaults()}
}

// Resolve returns the aggregates viewerID may see in scope, newest activity
// first, along with the clamped page actually applied.
func (r *Resolver) Resolve(ctx context.Context, viewerID uint, scope Scope, opts ResolveOptions) ([]models.Aggregate, Page, error) {
	page := r.cfg.ClampPage(opts.Limit, opts.Offset)
	if viewerID == 0 {
		return nil, page, ErrValidation("viewer is required")
	}
	if opts.ActionKind != "" && !opts.ActionKind.Known() {
		return nil, page, ErrValidation("unknown action kind filter")
	}

	q := FeedQuery{
		ViewerID:   viewerID,
		ActionKind: opts.ActionKind,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}

	label := string(scope)
	switch {
	case opts.OwnerOverride != nil && *opts.OwnerOverride != viewerID:
		owner := *opts.OwnerOverride
		label = "user"
		q.OwnerIDs = []uint{owner}
		friends, err := r.friends.AreFriends(ctx, viewerID, owner)
		if err != nil {
			return nil, page, wrapInternal("friend lookup failed", err)
		}
		if friends {
			q.FriendIDs = []uint{owner}
		}
	case opts.OwnerOverride != nil || scope == ScopeMine:
		label = string(ScopeMine)
		q.OwnerIDs = []uint{viewerID}
		q.AllTiers = true
	case scope == ScopeFriends:
		friends, err := r.friends.AcceptedFriendIDs(ctx, viewerID)
		if err != nil {
			return nil, page, wrapInternal("friend lookup failed", err)
		}
		friends = withoutID(friends, viewerID)
		if len(friends) == 0 {
			r.metrics.RecordFeedRequest(label)
			return []models.Aggregate{}, page, nil
		}
		q.OwnerIDs = friends
		q.FriendIDs = friends
	case scope == ScopeGlobal || scope == "":
		label = string(ScopeGlobal)
		friends, err := r.friends.AcceptedFriendIDs(ctx, viewerID)
		if err != nil {
			return nil, page, wrapInternal("friend lookup failed", err)
		}
		q.ExcludeOwnerID = viewerID
		q.FriendIDs = withoutID(friends, viewerID)
	default:
		return nil, page, ErrValidation("unknown feed scope")
	}
	r.metrics.RecordFeedRequest(label)

	aggs, err := r.store.ListAggregates(ctx, q)
	if err != nil {
		return nil, page, wrapInternal("feed query failed", err)
	}
	if aggs == nil {
		aggs = []models.Aggregate{}
	}
	return aggs, page, nil
}

func withoutID(ids []uint, drop uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
