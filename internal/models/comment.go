package models

import "time"

// FeedComment is an append-only comment fact on a feed aggregate
type FeedComment struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	AggregateID uint      `json:"aggregate_id" gorm:"index;not null"` // feed aggregate the comment belongs to
	UserID      uint      `json:"user_id" gorm:"index;not null"`      // author
	Content     string    `json:"content" gorm:"size:500;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

// CreateCommentRequest defines the request body for commenting on a feed entry
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=500"`
}
