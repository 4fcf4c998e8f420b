package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/models"
)

// EventHandler handles activity recording
type EventHandler struct {
	service FeedService
	log     zerolog.Logger
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(service FeedService, log zerolog.Logger) *EventHandler {
	return &EventHandler{service: service, log: log}
}

// RegisterEventRoutes registers activity recording routes
func (h *EventHandler) RegisterEventRoutes(g *echo.Group) {
	g.POST("/events", h.RecordEvent)
	g.POST("/checkins", h.CheckIn)
}

// RecordEvent folds one activity event into the actor's feed
func (h *EventHandler) RecordEvent(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.RecordEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return failure(c, h.log, err)
	}

	res, err := h.service.Record(c.Request().Context(), userID, req.ShelfID, models.ActionKind(req.ActionKind), req.Payload)
	if err != nil {
		return failure(c, h.log, err)
	}
	return recorded(c, res)
}

// CheckIn records a status update on a single item
func (h *EventHandler) CheckIn(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CheckInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return failure(c, h.log, err)
	}

	res, err := h.service.CheckIn(c.Request().Context(), feed.CheckInInput{
		ActorID:    userID,
		Status:     models.CheckInStatus(req.Status),
		Visibility: models.Visibility(req.Visibility),
		Note:       req.Note,
		Payload:    req.Payload,
	})
	if err != nil {
		return failure(c, h.log, err)
	}
	return recorded(c, res)
}

func recorded(c echo.Context, res *feed.RecordResult) error {
	if res.Suppressed {
		return success(c, http.StatusAccepted, echo.Map{"suppressed": true})
	}
	return success(c, http.StatusCreated, echo.Map{
		"aggregate_id": res.Aggregate.ID,
		"outcome":      res.Outcome,
		"item_count":   res.Aggregate.ItemCount,
	})
}
