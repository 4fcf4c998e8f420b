package feed

import (
	"context"

	"github.com/anonto42/shelflog/backend/internal/models"
)

// CanView is the visibility gate: public is open to everyone, friends-tier
// to the owner and accepted friends, private to the owner only.
func CanView(viewerID, ownerID uint, vis models.Visibility, areFriends bool) bool {
	switch vis {
	case models.VisibilityPublic:
		return true
	case models.VisibilityFriends:
		return viewerID == ownerID || areFriends
	default:
		return viewerID == ownerID
	}
}

// EffectiveVisibility returns the tier governing an aggregate. Shelf-bound
// aggregates follow the shelf's current visibility, treating a missing shelf
// or one owned by someone other than the actor as private. Shelf-less check-ins use their own visibility; other shelf-less
// activity is public.
func EffectiveVisibility(agg *models.Aggregate, shelf *models.ShelfMetadata) models.Visibility {
	if agg.ShelfID != nil {
		if shelf == nil || shelf.OwnerID != agg.ActorID || !shelf.Visibility.Valid() {
			return models.VisibilityPrivate
		}
		return shelf.Visibility
	}
	if agg.CheckInVisibility != nil {
		if v := *agg.CheckInVisibility; v.Valid() {
			return v
		}
		return models.VisibilityPrivate
	}
	return models.VisibilityPublic
}

// gate evaluates CanView, consulting the friend graph only when the tier
// depends on it.
type gate struct {
	friends FriendGraph
}

func (g gate) allows(ctx context.Context, viewerID, ownerID uint, vis models.Visibility) (bool, error) {
	if viewerID == ownerID || vis != models.VisibilityFriends {
		return CanView(viewerID, ownerID, vis, false), nil
	}
	ok, err := g.friends.AreFriends(ctx, viewerID, ownerID)
	if err != nil {
		return false, wrapInternal("friend lookup failed", err)
	}
	return CanView(viewerID, ownerID, vis, ok), nil
}
