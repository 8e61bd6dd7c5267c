package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storeapi/internal/models"
)

// mongoNotes has no update or delete: the note log is append-only.
type mongoNotes struct {
	coll *mongo.Collection
}

func (r *mongoNotes) Insert(ctx context.Context, note *models.OrderNote) error {
	if note.ID.IsZero() {
		note.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, note)
	return err
}

func (r *mongoNotes) ListByOrder(ctx context.Context, orderID primitive.ObjectID) ([]models.OrderNote, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"orderId": orderID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	notes := make([]models.OrderNote, 0)
	if err := cursor.All(ctx, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}
