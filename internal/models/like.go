package models

import "time"

// FeedLike is a unique (aggregate, user) like fact
type FeedLike struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	AggregateID uint      `json:"aggregate_id" gorm:"index;uniqueIndex:idx_feed_like_user"`
	UserID      uint      `json:"user_id" gorm:"index;uniqueIndex:idx_feed_like_user"`
	CreatedAt   time.Time `json:"created_at"`
}
