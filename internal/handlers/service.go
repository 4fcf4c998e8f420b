package handlers

import (
	"context"

	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/models"
)

// FeedService is the engine surface used by the handlers. *feed.Service
// implements it.
type FeedService interface {
	Record(ctx context.Context, actorID uint, shelfID *uint, kind models.ActionKind, payload []byte) (*feed.RecordResult, error)
	CheckIn(ctx context.Context, in feed.CheckInInput) (*feed.RecordResult, error)
	Feed(ctx context.Context, viewerID uint, scope feed.Scope, opts feed.ResolveOptions) (*feed.FeedPage, error)
	Entry(ctx context.Context, aggregateID, viewerID uint) (*feed.FeedEntry, error)
	Like(ctx context.Context, aggregateID, viewerID uint) error
	Unlike(ctx context.Context, aggregateID, viewerID uint) error
	Comment(ctx context.Context, aggregateID, viewerID uint, content string) (*feed.CommentPreview, error)
	Comments(ctx context.Context, aggregateID, viewerID uint, limit, offset int) ([]feed.CommentPreview, feed.Page, error)
}

var _ FeedService = (*feed.Service)(nil)
