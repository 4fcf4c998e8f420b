package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/models"
	"github.com/anonto42/shelflog/backend/internal/repositories"
)

// FriendSetInvalidator drops cached friend sets after an edge changes.
type FriendSetInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...uint) error
}

type userLookup interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// FriendshipHandler handles HTTP requests related to friendships
type FriendshipHandler struct {
	friendshipRepository repositories.FriendshipRepository
	userRepository       userLookup
	invalidator          FriendSetInvalidator
	log                  zerolog.Logger
}

// NewFriendshipHandler creates a new FriendshipHandler. invalidator may be
// nil when friend sets are not cached.
func NewFriendshipHandler(friendshipRepo repositories.FriendshipRepository, userRepo userLookup, invalidator FriendSetInvalidator, log zerolog.Logger) *FriendshipHandler {
	return &FriendshipHandler{
		friendshipRepository: friendshipRepo,
		userRepository:       userRepo,
		invalidator:          invalidator,
		log:                  log,
	}
}

// RegisterFriendshipRoutes registers friendship-related routes
func (h *FriendshipHandler) RegisterFriendshipRoutes(g *echo.Group) {
	g.POST("/friends/request", h.SendFriendRequest)
	g.GET("/friends/requests/pending", h.GetPendingFriendRequests)
	g.PUT("/friends/request/:id/status", h.UpdateFriendRequestStatus)
	g.GET("/friends", h.GetFriends)
	g.DELETE("/friends/:id", h.DeleteFriend) // Unfriend
}

// SendFriendRequest handles sending a friend request
func (h *FriendshipHandler) SendFriendRequest(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CreateFriendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return failure(c, h.log, err)
	}
	if userID == req.ReceiverID {
		return failure(c, h.log, feed.ErrValidation("cannot send a friend request to yourself"))
	}

	ctx := c.Request().Context()
	if _, err := h.userRepository.GetUserByID(ctx, req.ReceiverID); err != nil {
		return failure(c, h.log, err)
	}

	friendRequest := &models.FriendRequest{
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
	}
	if err := h.friendshipRepository.SendFriendRequest(ctx, friendRequest); err != nil {
		return failure(c, h.log, err)
	}

	return success(c, http.StatusCreated, echo.Map{"request": friendRequest})
}

// GetPendingFriendRequests retrieves pending friend requests for the authenticated user
func (h *FriendshipHandler) GetPendingFriendRequests(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	requests, err := h.friendshipRepository.GetUserPendingFriendRequests(c.Request().Context(), userID)
	if err != nil {
		return failure(c, h.log, err)
	}
	return success(c, http.StatusOK, echo.Map{"requests": requests})
}

// UpdateFriendRequestStatus accepts or blocks a friend request addressed to the current user
func (h *FriendshipHandler) UpdateFriendRequestStatus(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	requestID, err := idParam(c, "id")
	if err != nil {
		return failure(c, h.log, err)
	}

	var req models.UpdateFriendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return failure(c, h.log, err)
	}

	ctx := c.Request().Context()
	friendRequest, err := h.friendshipRepository.GetFriendRequestByID(ctx, requestID)
	if err != nil {
		return failure(c, h.log, err)
	}

	// Only the receiver may answer a request
	if friendRequest.ReceiverID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to modify this friend request")
	}

	if err := h.friendshipRepository.UpdateFriendRequestStatus(ctx, requestID, req.Status); err != nil {
		return failure(c, h.log, err)
	}
	h.invalidate(ctx, friendRequest.SenderID, friendRequest.ReceiverID)

	friendRequest.Status = req.Status
	return success(c, http.StatusOK, echo.Map{"request": friendRequest})
}

// GetFriends retrieves the list of friends for the authenticated user
func (h *FriendshipHandler) GetFriends(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	friends, err := h.friendshipRepository.GetUserFriends(c.Request().Context(), userID)
	if err != nil {
		return failure(c, h.log, err)
	}
	return success(c, http.StatusOK, echo.Map{"friends": friends})
}

// DeleteFriend handles unfriending (deleting an accepted friend request)
func (h *FriendshipHandler) DeleteFriend(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	friendUserID, err := idParam(c, "id")
	if err != nil {
		return failure(c, h.log, err)
	}

	ctx := c.Request().Context()
	friendRequest, err := h.friendshipRepository.GetFriendship(ctx, userID, friendUserID)
	if err != nil {
		return failure(c, h.log, err)
	}
	if friendRequest.Status != models.FriendAccepted {
		return failure(c, h.log, feed.ErrValidation("users are not friends"))
	}

	if err := h.friendshipRepository.DeleteFriendRequest(ctx, friendRequest.ID); err != nil {
		return failure(c, h.log, err)
	}
	h.invalidate(ctx, userID, friendUserID)

	return c.NoContent(http.StatusNoContent)
}

func (h *FriendshipHandler) invalidate(ctx context.Context, ids ...uint) {
	if h.invalidator == nil {
		return
	}
	if err := h.invalidator.Invalidate(ctx, ids...); err != nil {
		h.log.Warn().Err(err).Msg("friend cache invalidation failed")
	}
}
