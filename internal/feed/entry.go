package feed

import (
	"time"

	"github.com/anonto42/shelflog/backend/internal/models"
)

// FeedEntry is a rendered aggregate.
type FeedEntry struct {
	ID             uint               `json:"id"`
	ActionKind     models.ActionKind  `json:"action_kind"`
	Owner          models.UserCompact `json:"owner"`
	Shelf          *ShelfSummary      `json:"shelf,omitempty"`
	Items          []EntryItem        `json:"items"`
	EventItemCount int                `json:"event_item_count"`
	CheckIn        *CheckInDetail     `json:"checkin,omitempty"`
	WindowStart    time.Time          `json:"window_start"`
	WindowEnd      time.Time          `json:"window_end"`
	LastActivityAt time.Time          `json:"last_activity_at"`
	Social         SocialSummary      `json:"social"`
}

type ShelfSummary struct {
	ID          uint              `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Visibility  models.Visibility `json:"visibility"`
	ItemCount   int               `json:"item_count"`
}

// EntryItem is one rendered item. Which fields are set depends on the
// aggregate's action kind.
type EntryItem struct {
	CollectableID string   `json:"collectable_id,omitempty"`
	ManualItemID  uint     `json:"manual_item_id,omitempty"`
	ListID        uint     `json:"list_id,omitempty"`
	Title         string   `json:"title,omitempty"`
	Creator       string   `json:"creator,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
	Description   string   `json:"description,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	ItemCount     int      `json:"item_count,omitempty"`
}

type CheckInDetail struct {
	Status     models.CheckInStatus `json:"status"`
	Visibility models.Visibility    `json:"visibility"`
	Note       string               `json:"note,omitempty"`
}

// itemFromPayload renders one payload according to its kind.
func itemFromPayload(p models.Payload) (EntryItem, bool) {
	switch t := p.(type) {
	case *models.ItemPayload:
		item := EntryItem{
			CollectableID: t.CollectableID,
			ManualItemID:  t.ManualItemID,
			Title:         t.Title,
			Creator:       t.Creator,
			CoverURL:      t.CoverURL,
		}
		if t.Kind() == models.ActionItemRated {
			item.Rating = t.Rating
		}
		return item, true
	case *models.ListPayload:
		return EntryItem{
			ListID:      t.ListID,
			Title:       t.Name,
			Description: t.Description,
			ItemCount:   models.DeclaredCount(t),
		}, true
	case *models.GenericPayload:
		title, _ := t.Fields["title"].(string)
		if title == "" {
			title, _ = t.Fields["name"].(string)
		}
		if title == "" {
			return EntryItem{}, false
		}
		creator, _ := t.Fields["creator"].(string)
		cover, _ := t.Fields["cover_url"].(string)
		return EntryItem{Title: title, Creator: creator, CoverURL: cover}, true
	}
	return EntryItem{}, false
}
