package config

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSetupMiddleware_LimitsRequestBody(t *testing.T) {
	e := echo.New()
	SetupMiddleware(e, zerolog.Nop())
	e.POST("/events", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})

	tests := []struct {
		name string
		size int
		want int
	}{
		{"small body", 512, http.StatusCreated},
		{"oversized body", 65*1024 + 1, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(strings.Repeat("x", tt.size)))
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
