package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/middleware"
)

func success(c echo.Context, status int, data any) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

// failure writes the error envelope for err. Internal errors are logged
// with the request path and never leak their cause.
func failure(c echo.Context, log zerolog.Logger, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var fe *feed.Error
	if !errors.As(err, &fe) {
		fe = &feed.Error{Code: feed.CodeInternal, Message: "internal error", Err: err}
	}

	body := echo.Map{"code": fe.Code, "message": fe.Message}
	status := http.StatusInternalServerError
	switch fe.Code {
	case feed.CodeValidation:
		status = http.StatusBadRequest
	case feed.CodeNotFound:
		status = http.StatusNotFound
	case feed.CodeConflict:
		status = http.StatusConflict
		body["retryable"] = true
		c.Response().Header().Set("Retry-After", "1")
	default:
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		body["message"] = "internal error"
	}
	return c.JSON(status, echo.Map{"success": false, "error": body})
}

func currentUser(c echo.Context) (uint, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}
	return id, nil
}

func idParam(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, feed.ErrValidation("invalid " + name)
	}
	return uint(id), nil
}

// bindAndValidate binds the body and runs the echo validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return feed.ErrValidation("invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return feed.ErrValidation(err.Error())
	}
	return nil
}

func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}
