package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storeapi/internal/models"
)

// EnsureIndexes creates the indexes the stores rely on for uniqueness:
// one active cart per user, one line per product in a cart, and unique
// order numbers.
func EnsureIndexes(db *mongo.Database, logger zerolog.Logger) error {
	steps := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{cartsCollection, cartIndexes()},
		{cartItemsCollection, cartItemIndexes()},
		{ordersCollection, orderIndexes()},
		{orderItemsCollection, orderItemIndexes()},
		{orderNotesCollection, orderNoteIndexes()},
	}

	for _, step := range steps {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		names, err := db.Collection(step.collection).Indexes().CreateMany(ctx, step.models)
		cancel()
		if err != nil {
			logger.Error().Err(err).Str("collection", step.collection).Msg("index creation failed")
			return err
		}
		logger.Info().Str("collection", step.collection).Strs("indexes", names).Msg("indexes ensured")
	}
	return nil
}

func cartIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().
				SetName("userId_active_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": models.CartActive}),
		},
	}
}

func cartItemIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "cartId", Value: 1}, {Key: "productId", Value: 1}},
			Options: options.Index().
				SetName("cartId_productId_unique").
				SetUnique(true),
		},
	}
}

func orderIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderNumber", Value: 1}},
			Options: options.Index().SetName("orderNumber_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetName("userId_index"),
		},
		{
			Keys:    bson.D{{Key: "deleted", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("deleted_createdAt_index"),
		},
	}
}

func orderItemIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetName("orderId_index"),
		},
		{
			Keys:    bson.D{{Key: "productId", Value: 1}},
			Options: options.Index().SetName("productId_index"),
		},
	}
}

func orderNoteIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("orderId_createdAt_index"),
		},
	}
}
