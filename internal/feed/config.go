package feed

import "time"

// TopCommentPolicy selects the single comment shown on a feed entry.
type TopCommentPolicy string

const (
	TopCommentLatest   TopCommentPolicy = "latest"
	TopCommentEarliest TopCommentPolicy = "earliest"
)

// Config holds the aggregation and paging knobs of the engine.
type Config struct {
	Window          time.Duration
	PreviewCap      int
	DefaultPageSize int
	MaxPageSize     int
	MaxOffset       int
	DetailItemLimit int
	TopComment      TopCommentPolicy
}

func DefaultConfig() Config {
	return Config{
		Window:          15 * time.Minute,
		PreviewCap:      5,
		DefaultPageSize: 20,
		MaxPageSize:     50,
		MaxOffset:       10000,
		DetailItemLimit: 50,
		TopComment:      TopCommentLatest,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.PreviewCap <= 0 {
		c.PreviewCap = d.PreviewCap
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = d.MaxPageSize
	}
	if c.DefaultPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		c.DefaultPageSize = min(d.DefaultPageSize, c.MaxPageSize)
	}
	if c.MaxOffset <= 0 {
		c.MaxOffset = d.MaxOffset
	}
	if c.DetailItemLimit <= 0 {
		c.DetailItemLimit = d.DetailItemLimit
	}
	if c.TopComment != TopCommentEarliest {
		c.TopComment = TopCommentLatest
	}
	return c
}

// Page is a clamped offset window.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ClampPage forces limit and offset into the configured bounds.
func (c Config) ClampPage(limit, offset int) Page {
	c = c.withDefaults()
	if limit <= 0 {
		limit = c.DefaultPageSize
	}
	if limit > c.MaxPageSize {
		limit = c.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	if offset > c.MaxOffset {
		offset = c.MaxOffset
	}
	return Page{Limit: limit, Offset: offset}
}
