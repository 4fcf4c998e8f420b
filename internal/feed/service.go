package feed

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/anonto42/shelflog/backend/internal/models"
)

// Deps are the collaborators of the engine.
type Deps struct {
	Store     AggregateStore
	Shelves   ShelfRegistry
	Friends   FriendGraph
	Users     UserDirectory
	Catalog   ItemCatalog
	Social    SocialStore
	Publisher Publisher
	Metrics   Metrics
	Clock     Clock
	Logger    zerolog.Logger
}

// Service is the surface the HTTP layer talks to.
type Service struct {
	aggregator    *Aggregator
	resolver      *Resolver
	reconstructor *Reconstructor
	social        SocialStore
	users         UserDirectory
	clock         Clock
	cfg           Config
}

func NewService(d Deps, cfg Config) *Service {
	cfg = cfg.withDefaults()
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	if d.Clock == nil {
		d.Clock = systemClock{}
	}
	summarizer := NewSocialSummarizer(d.Social, cfg.TopComment)
	return &Service{
		aggregator:    NewAggregator(d.Store, d.Shelves, d.Publisher, d.Metrics, d.Clock, cfg, d.Logger),
		resolver:      NewResolver(d.Store, d.Friends, d.Metrics, cfg),
		reconstructor: NewReconstructor(d.Store, d.Shelves, d.Users, d.Catalog, d.Friends, summarizer, d.Metrics, cfg, d.Logger),
		social:        d.Social,
		users:         d.Users,
		clock:         d.Clock,
		cfg:           cfg,
	}
}

func (s *Service) Config() Config { return s.cfg }

func (s *Service) Record(ctx context.Context, actorID uint, shelfID *uint, kind models.ActionKind, payload []byte) (*RecordResult, error) {
	return s.aggregator.Record(ctx, actorID, shelfID, kind, payload)
}

func (s *Service) CheckIn(ctx context.Context, in CheckInInput) (*RecordResult, error) {
	return s.aggregator.CheckIn(ctx, in)
}

// FeedPage is one page of rendered entries.
type FeedPage struct {
	Entries []FeedEntry
	Page    Page
}

// Feed resolves the viewer's scope and renders the page. Empty pages skip
// enrichment entirely.
func (s *Service) Feed(ctx context.Context, viewerID uint, scope Scope, opts ResolveOptions) (*FeedPage, error) {
	aggs, page, err := s.resolver.Resolve(ctx, viewerID, scope, opts)
	if err != nil {
		return nil, err
	}
	if len(aggs) == 0 {
		return &FeedPage{Entries: []FeedEntry{}, Page: page}, nil
	}
	entries, err := s.reconstructor.ExpandBatch(ctx, aggs, viewerID)
	if err != nil {
		return nil, err
	}
	return &FeedPage{Entries: entries, Page: page}, nil
}

func (s *Service) Entry(ctx context.Context, aggregateID, viewerID uint) (*FeedEntry, error) {
	return s.reconstructor.Expand(ctx, aggregateID, viewerID)
}

// Like records the viewer's like. Liking twice is a no-op.
func (s *Service) Like(ctx context.Context, aggregateID, viewerID uint) error {
	if _, _, err := s.reconstructor.loadVisible(ctx, aggregateID, viewerID); err != nil {
		return err
	}
	like := &models.FeedLike{AggregateID: aggregateID, UserID: viewerID, CreatedAt: s.clock.Now().UTC()}
	return wrapInternal("like failed", s.social.AddLike(ctx, like))
}

func (s *Service) Unlike(ctx context.Context, aggregateID, viewerID uint) error {
	if _, _, err := s.reconstructor.loadVisible(ctx, aggregateID, viewerID); err != nil {
		return err
	}
	return wrapInternal("unlike failed", s.social.RemoveLike(ctx, aggregateID, viewerID))
}

func (s *Service) Comment(ctx context.Context, aggregateID, viewerID uint, content string) (*CommentPreview, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > maxNoteLength {
		return nil, ErrValidation("comment must be between 1 and 500 characters")
	}
	if _, _, err := s.reconstructor.loadVisible(ctx, aggregateID, viewerID); err != nil {
		return nil, err
	}
	c := &models.FeedComment{
		AggregateID: aggregateID,
		UserID:      viewerID,
		Content:     content,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.social.AddComment(ctx, c); err != nil {
		return nil, wrapInternal("comment failed", err)
	}
	out := s.previews(ctx, []models.FeedComment{*c})
	return &out[0], nil
}

// Comments lists an entry's comments oldest first.
func (s *Service) Comments(ctx context.Context, aggregateID, viewerID uint, limit, offset int) ([]CommentPreview, Page, error) {
	page := s.cfg.ClampPage(limit, offset)
	if _, _, err := s.reconstructor.loadVisible(ctx, aggregateID, viewerID); err != nil {
		return nil, page, err
	}
	comments, err := s.social.ListComments(ctx, aggregateID, page.Limit, page.Offset)
	if err != nil {
		return nil, page, wrapInternal("comment listing failed", err)
	}
	return s.previews(ctx, comments), page, nil
}

func (s *Service) previews(ctx context.Context, comments []models.FeedComment) []CommentPreview {
	var ids []uint
	for _, c := range comments {
		ids = appendUnique(ids, c.UserID)
	}
	users := map[uint]models.UserCompact{}
	if len(ids) > 0 {
		if found, err := s.users.CompactUsers(ctx, ids); err == nil {
			users = found
		}
	}
	out := make([]CommentPreview, 0, len(comments))
	for _, c := range comments {
		author, ok := users[c.UserID]
		if !ok {
			author = models.UserCompact{ID: c.UserID}
		}
		out = append(out, CommentPreview{ID: c.ID, Author: author, Content: c.Content, CreatedAt: c.CreatedAt})
	}
	return out
}
