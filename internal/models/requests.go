package models

import "encoding/json"

// RecordEventRequest is the body of POST /events
type RecordEventRequest struct {
	ShelfID    *uint           `json:"shelf_id,omitempty"`
	ActionKind string          `json:"action_kind" validate:"required,oneof=item-added item-rated list-created"`
	Payload    json.RawMessage `json:"payload"`
}

// CheckInRequest is the body of POST /checkins
type CheckInRequest struct {
	Status     string          `json:"status" validate:"required"`
	Visibility string          `json:"visibility" validate:"required"`
	Note       string          `json:"note,omitempty" validate:"max=500"`
	Payload    json.RawMessage `json:"payload"`
}
