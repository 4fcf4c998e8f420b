package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ActionKind tags what an actor did.
type ActionKind string

const (
	ActionItemAdded   ActionKind = "item-added"
	ActionItemRated   ActionKind = "item-rated"
	ActionListCreated ActionKind = "list-created"
	ActionCheckIn     ActionKind = "checkin"
)

// Known reports whether the kind is accepted by record-event.
func (k ActionKind) Known() bool {
	switch k {
	case ActionItemAdded, ActionItemRated, ActionListCreated, ActionCheckIn:
		return true
	}
	return false
}

// Visibility is the three-tier classification of a shelf (or a check-in).
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityFriends Visibility = "friends"
	VisibilityPublic  Visibility = "public"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityFriends || v == VisibilityPublic
}

// CheckInStatus is the progress state carried by a check-in.
type CheckInStatus string

const (
	CheckInStarted    CheckInStatus = "started"
	CheckInInProgress CheckInStatus = "in_progress"
	CheckInFinished   CheckInStatus = "finished"
	CheckInPaused     CheckInStatus = "paused"
	CheckInAbandoned  CheckInStatus = "abandoned"
)

func (s CheckInStatus) Valid() bool {
	switch s {
	case CheckInStarted, CheckInInProgress, CheckInFinished, CheckInPaused, CheckInAbandoned:
		return true
	}
	return false
}

// ActivityEvent is an immutable raw user action. AggregateID is nil when the
// event was suppressed (recorded for audit only).
type ActivityEvent struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	ActorID     uint           `json:"actor_id" gorm:"index;not null"`
	ShelfID     *uint          `json:"shelf_id,omitempty" gorm:"index"`
	ActionKind  ActionKind     `json:"action_kind" gorm:"size:32;not null"`
	Payload     datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	AggregateID *uint          `json:"aggregate_id,omitempty" gorm:"index"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Aggregate is a time-windowed rollup of same-kind events from one actor on
// one shelf. Check-ins carry their own status, visibility and note.
type Aggregate struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	ActorID         uint           `json:"actor_id" gorm:"not null;index:idx_aggregate_scope,priority:1"`
	ShelfID         *uint          `json:"shelf_id,omitempty" gorm:"index:idx_aggregate_scope,priority:2"`
	ActionKind      ActionKind     `json:"action_kind" gorm:"size:32;not null;index:idx_aggregate_scope,priority:3"`
	WindowStart     time.Time      `json:"window_start"`
	WindowEnd       time.Time      `json:"window_end" gorm:"index:idx_aggregate_scope,priority:4"`
	ItemCount       int            `json:"item_count" gorm:"not null;default:0"`
	PreviewPayloads datatypes.JSON `json:"preview_payloads" gorm:"type:jsonb"`
	LastActivityAt  time.Time      `json:"last_activity_at" gorm:"index"`

	CheckInStatus     *CheckInStatus `json:"checkin_status,omitempty" gorm:"column:checkin_status;size:20"`
	CheckInVisibility *Visibility    `json:"checkin_visibility,omitempty" gorm:"column:checkin_visibility;size:20"`
	CheckInNote       *string        `json:"checkin_note,omitempty" gorm:"column:checkin_note;size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Aggregate) TableName() string { return "feed_aggregates" }

// Previews decodes the retained preview payloads in insertion order.
func (a *Aggregate) Previews() ([]json.RawMessage, error) {
	if len(a.PreviewPayloads) == 0 {
		return nil, nil
	}
	var out []json.RawMessage
	if err := json.Unmarshal(a.PreviewPayloads, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetPreviews replaces the stored preview list.
func (a *Aggregate) SetPreviews(previews []json.RawMessage) error {
	if previews == nil {
		previews = []json.RawMessage{}
	}
	b, err := json.Marshal(previews)
	if err != nil {
		return err
	}
	a.PreviewPayloads = datatypes.JSON(b)
	return nil
}

// IsCheckIn reports whether the aggregate is a one-shot check-in.
func (a *Aggregate) IsCheckIn() bool { return a.ActionKind == ActionCheckIn }

// OpenAt reports whether the aggregate's window still accepts events at t.
func (a *Aggregate) OpenAt(t time.Time) bool {
	return !a.IsCheckIn() && !a.WindowEnd.Before(t)
}
