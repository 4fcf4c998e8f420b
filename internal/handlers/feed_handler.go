package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/models"
)

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	service FeedService
	log     zerolog.Logger
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(service FeedService, log zerolog.Logger) *FeedHandler {
	return &FeedHandler{service: service, log: log}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.GET("/feed/:id", h.GetEntry)
}

// GetFeed returns one page of rendered entries for the current user
func (h *FeedHandler) GetFeed(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	scope, err := feed.ParseScope(c.QueryParam("scope"))
	if err != nil {
		return failure(c, h.log, err)
	}
	opts := feed.ResolveOptions{
		Limit:      queryInt(c, "limit"),
		Offset:     queryInt(c, "offset"),
		ActionKind: models.ActionKind(c.QueryParam("action_kind")),
	}
	if raw := c.QueryParam("owner_id"); raw != "" {
		owner, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || owner == 0 {
			return failure(c, h.log, feed.ErrValidation("invalid owner_id"))
		}
		o := uint(owner)
		opts.OwnerOverride = &o
	}

	page, err := h.service.Feed(c.Request().Context(), userID, scope, opts)
	if err != nil {
		return failure(c, h.log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"entries": page.Entries,
		},
		"meta": echo.Map{
			"limit":       page.Page.Limit,
			"offset":      page.Page.Offset,
			"count":       len(page.Entries),
			"hasNextPage": len(page.Entries) == page.Page.Limit,
		},
	})
}

// GetEntry returns one entry with its full item list
func (h *FeedHandler) GetEntry(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return failure(c, h.log, err)
	}

	entry, err := h.service.Entry(c.Request().Context(), id, userID)
	if err != nil {
		return failure(c, h.log, err)
	}
	return success(c, http.StatusOK, echo.Map{"entry": entry})
}
