package models

import "gorm.io/gorm"

// Friend edge states. Only accepted edges take part in feed visibility.
const (
	FriendPending  = "pending"
	FriendAccepted = "accepted"
	FriendBlocked  = "blocked"
)

// FriendRequest represents a friend edge between two users
type FriendRequest struct {
	gorm.Model
	SenderID   uint   `json:"sender_id" gorm:"index"`                             // User ID of the sender
	ReceiverID uint   `json:"receiver_id" gorm:"index"`                           // User ID of the receiver
	Status     string `json:"status" gorm:"type:varchar(20);default:'pending';index"` // pending, accepted, blocked
}

// CreateFriendRequest defines the request body for sending a friend request
type CreateFriendRequest struct {
	ReceiverID uint `json:"receiver_id" validate:"required"`
}

// UpdateFriendRequest defines the request body for accepting/blocking a friend request
type UpdateFriendRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted blocked"`
}
