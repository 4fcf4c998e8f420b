package feed

import (
	"context"
	"time"

	"github.com/anonto42/shelflog/backend/internal/models"
)

// SocialSummary is the like/comment state of one feed entry for one viewer.
type SocialSummary struct {
	LikeCount    int             `json:"like_count"`
	CommentCount int             `json:"comment_count"`
	HasLiked     bool            `json:"has_liked"`
	TopComment   *CommentPreview `json:"top_comment,omitempty"`
}

type CommentPreview struct {
	ID        uint               `json:"id"`
	Author    models.UserCompact `json:"author"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
}

// SocialSummarizer computes social summaries for a batch of aggregates with
// a fixed number of queries regardless of batch size.
type SocialSummarizer struct {
	store  SocialStore
	policy TopCommentPolicy
}

func NewSocialSummarizer(store SocialStore, policy TopCommentPolicy) *SocialSummarizer {
	if policy != TopCommentEarliest {
		policy = TopCommentLatest
	}
	return &SocialSummarizer{store: store, policy: policy}
}

// Summaries returns one summary per id. Top comment authors carry only
// their id; callers fill the rest from their own user lookup.
func (s *SocialSummarizer) Summaries(ctx context.Context, ids []uint, viewerID uint) (map[uint]SocialSummary, error) {
	out := make(map[uint]SocialSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	likes, err := s.store.LikeCounts(ctx, ids)
	if err != nil {
		return nil, wrapInternal("like counts failed", err)
	}
	comments, err := s.store.CommentCounts(ctx, ids)
	if err != nil {
		return nil, wrapInternal("comment counts failed", err)
	}
	liked := map[uint]bool{}
	if viewerID != 0 {
		if liked, err = s.store.LikedBy(ctx, ids, viewerID); err != nil {
			return nil, wrapInternal("like state failed", err)
		}
	}
	top, err := s.store.TopComments(ctx, ids, s.policy)
	if err != nil {
		return nil, wrapInternal("top comments failed", err)
	}

	for _, id := range ids {
		sum := SocialSummary{
			LikeCount:    likes[id],
			CommentCount: comments[id],
			HasLiked:     liked[id],
		}
		if c, ok := top[id]; ok {
			sum.TopComment = &CommentPreview{
				ID:        c.ID,
				Author:    models.UserCompact{ID: c.UserID},
				Content:   c.Content,
				CreatedAt: c.CreatedAt,
			}
		}
		out[id] = sum
	}
	return out, nil
}
