package repositories

import (
	"context"

	"github.com/anonto42/shelflog/backend/internal/models"
	"gorm.io/gorm"
)

// PostgresShelfRepository reads shelves for the feed. Visibility is always
// read live, never cached.
type PostgresShelfRepository struct {
	db *gorm.DB
}

// NewPostgresShelfRepository creates a new PostgresShelfRepository
func NewPostgresShelfRepository(db *gorm.DB) *PostgresShelfRepository {
	return &PostgresShelfRepository{db: db}
}

// GetAccess returns the owner and current visibility of a shelf
func (r *PostgresShelfRepository) GetAccess(ctx context.Context, shelfID uint) (uint, models.Visibility, error) {
	var shelf models.Shelf
	err := r.db.WithContext(ctx).
		Select("id", "owner_id", "visibility").
		First(&shelf, shelfID).Error
	if err != nil {
		return 0, "", translateError(err, "shelf not found")
	}
	return shelf.OwnerID, shelf.Visibility, nil
}

// GetMetadata loads the shelves in ids. Unknown ids are absent from the map.
func (r *PostgresShelfRepository) GetMetadata(ctx context.Context, ids []uint) (map[uint]models.ShelfMetadata, error) {
	out := make(map[uint]models.ShelfMetadata, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var shelves []models.Shelf
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&shelves).Error; err != nil {
		return nil, err
	}
	for _, s := range shelves {
		out[s.ID] = models.ShelfMetadata{
			ID:          s.ID,
			OwnerID:     s.OwnerID,
			Name:        s.Name,
			Description: s.Description,
			Visibility:  s.Visibility,
		}
	}
	return out, nil
}

// ItemCounts counts the current items of each shelf
func (r *PostgresShelfRepository) ItemCounts(ctx context.Context, ids []uint) (map[uint]int, error) {
	if len(ids) == 0 {
		return map[uint]int{}, nil
	}
	var rows []countRow
	err := r.db.WithContext(ctx).
		Model(&models.ShelfItem{}).
		Select("shelf_id AS id, COUNT(*) AS count").
		Where("shelf_id IN ?", ids).
		Group("shelf_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return countMap(rows), nil
}
