package repositories

import (
	"context"

	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresSocialRepository stores likes and comments on feed aggregates
type PostgresSocialRepository struct {
	db *gorm.DB
}

// NewPostgresSocialRepository creates a new PostgresSocialRepository
func NewPostgresSocialRepository(db *gorm.DB) *PostgresSocialRepository {
	return &PostgresSocialRepository{db: db}
}

// LikeCounts counts likes per aggregate in one grouped query
func (r *PostgresSocialRepository) LikeCounts(ctx context.Context, ids []uint) (map[uint]int, error) {
	return r.countBy(ctx, &models.FeedLike{}, ids)
}

// CommentCounts counts comments per aggregate in one grouped query
func (r *PostgresSocialRepository) CommentCounts(ctx context.Context, ids []uint) (map[uint]int, error) {
	return r.countBy(ctx, &models.FeedComment{}, ids)
}

func (r *PostgresSocialRepository) countBy(ctx context.Context, model any, ids []uint) (map[uint]int, error) {
	if len(ids) == 0 {
		return map[uint]int{}, nil
	}
	var rows []countRow
	err := r.db.WithContext(ctx).
		Model(model).
		Select("aggregate_id AS id, COUNT(*) AS count").
		Where("aggregate_id IN ?", ids).
		Group("aggregate_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return countMap(rows), nil
}

// LikedBy reports which of the aggregates the user has liked
func (r *PostgresSocialRepository) LikedBy(ctx context.Context, ids []uint, userID uint) (map[uint]bool, error) {
	out := map[uint]bool{}
	if len(ids) == 0 {
		return out, nil
	}
	var liked []uint
	err := r.db.WithContext(ctx).
		Model(&models.FeedLike{}).
		Where("aggregate_id IN ? AND user_id = ?", ids, userID).
		Pluck("aggregate_id", &liked).Error
	if err != nil {
		return nil, err
	}
	for _, id := range liked {
		out[id] = true
	}
	return out, nil
}

// TopComments picks one comment per aggregate with DISTINCT ON. Ties on
// created_at are broken by id in the same direction.
func (r *PostgresSocialRepository) TopComments(ctx context.Context, ids []uint, policy feed.TopCommentPolicy) (map[uint]models.FeedComment, error) {
	out := map[uint]models.FeedComment{}
	if len(ids) == 0 {
		return out, nil
	}
	dir := "DESC"
	if policy == feed.TopCommentEarliest {
		dir = "ASC"
	}
	var comments []models.FeedComment
	err := r.db.WithContext(ctx).
		Raw("SELECT DISTINCT ON (aggregate_id) * FROM feed_comments WHERE aggregate_id IN ? "+
			"ORDER BY aggregate_id, created_at "+dir+", id "+dir, ids).
		Scan(&comments).Error
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		out[c.AggregateID] = c
	}
	return out, nil
}

// AddLike inserts a like. A second like by the same user is ignored.
func (r *PostgresSocialRepository) AddLike(ctx context.Context, like *models.FeedLike) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "aggregate_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(like).Error
}

// RemoveLike deletes the user's like on an aggregate
func (r *PostgresSocialRepository) RemoveLike(ctx context.Context, aggregateID, userID uint) error {
	res := r.db.WithContext(ctx).
		Where("aggregate_id = ? AND user_id = ?", aggregateID, userID).
		Delete(&models.FeedLike{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return feed.ErrNotFound("like not found")
	}
	return nil
}

// AddComment appends a comment
func (r *PostgresSocialRepository) AddComment(ctx context.Context, comment *models.FeedComment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// ListComments returns an aggregate's comments, oldest first
func (r *PostgresSocialRepository) ListComments(ctx context.Context, aggregateID uint, limit, offset int) ([]models.FeedComment, error) {
	var comments []models.FeedComment
	err := r.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}
