package repositories

import (
	"context"

	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/models"
	"gorm.io/gorm"
)

// FriendshipRepository defines the interface for friendship data operations
type FriendshipRepository interface {
	feed.FriendGraph
	SendFriendRequest(ctx context.Context, req *models.FriendRequest) error
	GetFriendRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error)
	GetFriendship(ctx context.Context, a, b uint) (*models.FriendRequest, error)
	GetUserPendingFriendRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	GetUserFriends(ctx context.Context, userID uint) ([]models.UserCompact, error)
	UpdateFriendRequestStatus(ctx context.Context, id uint, status string) error
	DeleteFriendRequest(ctx context.Context, id uint) error
}

// PostgresFriendshipRepository implements FriendshipRepository for PostgreSQL
type PostgresFriendshipRepository struct {
	db *gorm.DB
}

// NewPostgresFriendshipRepository creates a new PostgresFriendshipRepository
func NewPostgresFriendshipRepository(db *gorm.DB) *PostgresFriendshipRepository {
	return &PostgresFriendshipRepository{db: db}
}

// SendFriendRequest creates a new pending friend request
func (r *PostgresFriendshipRepository) SendFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	existing, err := r.GetFriendship(ctx, req.SenderID, req.ReceiverID)
	switch {
	case err == nil:
		switch existing.Status {
		case models.FriendPending:
			return feed.ErrValidation("a pending friend request already exists between these users")
		case models.FriendAccepted:
			return feed.ErrValidation("users are already friends")
		case models.FriendBlocked:
			return feed.ErrValidation("friend requests between these users are blocked")
		}
	case !feed.IsNotFound(err):
		return err
	}

	req.Status = models.FriendPending
	return r.db.WithContext(ctx).Create(req).Error
}

// GetFriendRequestByID retrieves a friend request by ID
func (r *PostgresFriendshipRepository) GetFriendRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, translateError(err, "friend request not found")
	}
	return &req, nil
}

// GetFriendship retrieves the edge between two users in either direction
func (r *PostgresFriendshipRepository) GetFriendship(ctx context.Context, a, b uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		First(&req).Error
	if err != nil {
		return nil, translateError(err, "friendship not found")
	}
	return &req, nil
}

// GetUserPendingFriendRequests retrieves all pending friend requests for a user
func (r *PostgresFriendshipRepository) GetUserPendingFriendRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", userID, models.FriendPending).
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// GetUserFriends retrieves the owner cards of all accepted friends
func (r *PostgresFriendshipRepository) GetUserFriends(ctx context.Context, userID uint) ([]models.UserCompact, error) {
	ids, err := r.AcceptedFriendIDs(ctx, userID)
	if err != nil || len(ids) == 0 {
		return []models.UserCompact{}, err
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]models.UserCompact, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToCompact())
	}
	return out, nil
}

// AcceptedFriendIDs returns the users with an accepted edge to userID
func (r *PostgresFriendshipRepository) AcceptedFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Raw(
		`SELECT receiver_id FROM friend_requests WHERE sender_id = ? AND status = ? AND deleted_at IS NULL
		 UNION
		 SELECT sender_id FROM friend_requests WHERE receiver_id = ? AND status = ? AND deleted_at IS NULL`,
		userID, models.FriendAccepted, userID, models.FriendAccepted,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// AreFriends reports whether an accepted edge exists between a and b
func (r *PostgresFriendshipRepository) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	if a == b {
		return false, nil
	}
	req, err := r.GetFriendship(ctx, a, b)
	if err != nil {
		if feed.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return req.Status == models.FriendAccepted, nil
}

// UpdateFriendRequestStatus updates the status of a friend request
func (r *PostgresFriendshipRepository) UpdateFriendRequestStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.FriendRequest{}).Where("id = ?", id).Update("status", status).Error
}

// DeleteFriendRequest deletes a friend request
func (r *PostgresFriendshipRepository) DeleteFriendRequest(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.FriendRequest{}, id).Error
}
