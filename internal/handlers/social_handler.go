package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/shelflog/backend/internal/models"
)

// SocialHandler handles likes and comments on feed entries
type SocialHandler struct {
	service FeedService
	log     zerolog.Logger
}

// NewSocialHandler creates a new SocialHandler
func NewSocialHandler(service FeedService, log zerolog.Logger) *SocialHandler {
	return &SocialHandler{service: service, log: log}
}

// RegisterSocialRoutes registers like and comment routes
func (h *SocialHandler) RegisterSocialRoutes(g *echo.Group) {
	g.POST("/feed/:id/likes", h.Like)
	g.DELETE("/feed/:id/likes", h.Unlike)
	g.GET("/feed/:id/comments", h.ListComments)
	g.POST("/feed/:id/comments", h.AddComment)
}

// Like records the current user's like on an entry
func (h *SocialHandler) Like(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return failure(c, h.log, err)
	}
	if err := h.service.Like(c.Request().Context(), id, userID); err != nil {
		return failure(c, h.log, err)
	}
	return success(c, http.StatusOK, echo.Map{"liked": true})
}

// Unlike removes the current user's like from an entry
func (h *SocialHandler) Unlike(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return failure(c, h.log, err)
	}
	if err := h.service.Unlike(c.Request().Context(), id, userID); err != nil {
		return failure(c, h.log, err)
	}
	return success(c, http.StatusOK, echo.Map{"liked": false})
}

// ListComments returns an entry's comments, oldest first
func (h *SocialHandler) ListComments(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return failure(c, h.log, err)
	}

	comments, page, err := h.service.Comments(c.Request().Context(), id, userID, queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		return failure(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"comments": comments},
		"meta": echo.Map{
			"limit":       page.Limit,
			"offset":      page.Offset,
			"count":       len(comments),
			"hasNextPage": len(comments) == page.Limit,
		},
	})
}

// AddComment comments on an entry as the current user
func (h *SocialHandler) AddComment(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return failure(c, h.log, err)
	}

	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return failure(c, h.log, err)
	}

	comment, err := h.service.Comment(c.Request().Context(), id, userID, req.Content)
	if err != nil {
		return failure(c, h.log, err)
	}
	return success(c, http.StatusCreated, echo.Map{"comment": comment})
}
