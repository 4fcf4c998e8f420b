package repositories

import (
	"context"

	"github.com/anonto42/shelflog/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// CatalogRepository resolves item references. Shared collectables live in
// MongoDB and user-entered manual items in PostgreSQL.
type CatalogRepository struct {
	collectables *mongo.Collection
	pgDB         *gorm.DB
}

func NewCatalogRepository(mongoDB *mongo.Database, pgDB *gorm.DB) *CatalogRepository {
	return &CatalogRepository{
		collectables: mongoDB.Collection("collectables"),
		pgDB:         pgDB,
	}
}

// Collectables loads collectables by hex id. Malformed ids are skipped.
func (r *CatalogRepository) Collectables(ctx context.Context, ids []string) (map[string]models.Collectable, error) {
	out := make(map[string]models.Collectable, len(ids))
	objIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		objIDs = append(objIDs, objID)
	}
	if len(objIDs) == 0 {
		return out, nil
	}

	cursor, err := r.collectables.Find(ctx, bson.M{"_id": bson.M{"$in": objIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var found []models.Collectable
	if err = cursor.All(ctx, &found); err != nil {
		return nil, err
	}
	for _, c := range found {
		out[c.ID.Hex()] = c
	}
	return out, nil
}

// ManualItems loads manual items by id
func (r *CatalogRepository) ManualItems(ctx context.Context, ids []uint) (map[uint]models.ManualItem, error) {
	out := make(map[uint]models.ManualItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.ManualItem
	if err := r.pgDB.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, m := range items {
		out[m.ID] = m
	}
	return out, nil
}
