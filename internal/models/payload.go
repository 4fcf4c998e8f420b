package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedPayload is returned by DecodePayload for payloads that do not
// match the schema of their action kind.
var ErrMalformedPayload = errors.New("malformed payload")

// Payload is the per-kind description of what happened in an event. The
// concrete type is selected by the event's ActionKind.
type Payload interface {
	Kind() ActionKind
	// Increment is the amount the event adds to its aggregate's item count.
	Increment() int
}

// ItemPayload describes an event about a single catalog or manual item.
// Used by item-added, item-rated and checkin.
type ItemPayload struct {
	kind          ActionKind
	CollectableID string   `json:"collectable_id,omitempty"`
	ManualItemID  uint     `json:"manual_item_id,omitempty"`
	Title         string   `json:"title,omitempty"`
	Creator       string   `json:"creator,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	ItemCount     *float64 `json:"item_count,omitempty"`
}

func (p *ItemPayload) Kind() ActionKind { return p.kind }
func (p *ItemPayload) Increment() int   { return incrementFrom(p.ItemCount) }

// HasReference reports whether the payload names a resolvable item.
func (p *ItemPayload) HasReference() bool {
	return p.CollectableID != "" || p.ManualItemID != 0
}

// ListPayload describes a list-created event.
type ListPayload struct {
	ListID      uint     `json:"list_id,omitempty"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	ItemCount   *float64 `json:"item_count,omitempty"`
}

func (p *ListPayload) Kind() ActionKind { return ActionListCreated }
func (p *ListPayload) Increment() int   { return incrementFrom(p.ItemCount) }

// GenericPayload keeps payloads of kinds without a dedicated schema.
type GenericPayload struct {
	kind   ActionKind
	Fields map[string]any
}

func (p *GenericPayload) Kind() ActionKind { return p.kind }

func (p *GenericPayload) Increment() int {
	if v, ok := p.Fields["item_count"].(float64); ok {
		return incrementFrom(&v)
	}
	return 1
}

// DeclaredCount returns an explicit sub-count carried by the payload, or 0.
func DeclaredCount(p Payload) int {
	var v *float64
	switch t := p.(type) {
	case *ItemPayload:
		v = t.ItemCount
	case *ListPayload:
		v = t.ItemCount
	case *GenericPayload:
		if f, ok := t.Fields["item_count"].(float64); ok {
			v = &f
		}
	}
	if v == nil || *v < 1 || math.IsNaN(*v) {
		return 0
	}
	if *v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Trunc(*v))
}

// AddCounts adds item counts, saturating at math.MaxInt32.
func AddCounts(a, b int) int {
	if b > math.MaxInt32-a {
		return math.MaxInt32
	}
	return a + b
}

// DecodePayload parses raw into the payload type for kind. An empty raw
// value decodes to an empty payload of that kind.
func DecodePayload(kind ActionKind, raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	if raw[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedPayload)
	}

	switch kind {
	case ActionItemAdded, ActionItemRated, ActionCheckIn:
		p := &ItemPayload{kind: kind}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if p.ItemCount != nil && *p.ItemCount < 0 {
			return nil, fmt.Errorf("%w: item_count must not be negative", ErrMalformedPayload)
		}
		if p.Rating != nil && (*p.Rating < 0 || *p.Rating > 10) {
			return nil, fmt.Errorf("%w: rating out of range", ErrMalformedPayload)
		}
		return p, nil
	case ActionListCreated:
		p := &ListPayload{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if p.ItemCount != nil && *p.ItemCount < 0 {
			return nil, fmt.Errorf("%w: item_count must not be negative", ErrMalformedPayload)
		}
		return p, nil
	default:
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return &GenericPayload{kind: kind, Fields: fields}, nil
	}
}

func incrementFrom(v *float64) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 1
	}
	n := math.Trunc(*v)
	if n < 1 {
		return 1
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}
