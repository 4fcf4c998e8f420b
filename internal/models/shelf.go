package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Shelf is a user-owned container of collectables. Its visibility is read
// live by the feed on every query.
type Shelf struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	OwnerID     uint       `json:"owner_id" gorm:"index;not null"`
	Name        string     `json:"name" gorm:"size:120;not null"`
	Description string     `json:"description"`
	Visibility  Visibility `json:"visibility" gorm:"size:20;not null;default:'private'"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ShelfItem places a catalog collectable or a manual item on a shelf.
type ShelfItem struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ShelfID       uint      `json:"shelf_id" gorm:"index;not null"`
	CollectableID string    `json:"collectable_id,omitempty" gorm:"size:24"`
	ManualItemID  *uint     `json:"manual_item_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ManualItem is a user-entered item that is not in the shared catalog.
type ManualItem struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	OwnerID   uint      `json:"owner_id" gorm:"index"`
	Title     string    `json:"title"`
	Creator   string    `json:"creator"`
	CoverURL  string    `json:"cover_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Collectable is a shared catalog entry stored in MongoDB.
type Collectable struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title    string             `json:"title" bson:"title"`
	Creators []string           `json:"creators,omitempty" bson:"creators,omitempty"`
	CoverURL string             `json:"cover_url,omitempty" bson:"cover_url,omitempty"`
	Kind     string             `json:"kind,omitempty" bson:"kind,omitempty"`
}

// ShelfMetadata is the live view of a shelf used when rendering entries.
type ShelfMetadata struct {
	ID          uint       `json:"id"`
	OwnerID     uint       `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Visibility  Visibility `json:"visibility"`
}

func (Shelf) TableName() string { return "shelves" }
