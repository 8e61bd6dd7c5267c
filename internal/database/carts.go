package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storeapi/internal/models"
)

type mongoCarts struct {
	carts *mongo.Collection
	items *mongo.Collection
}

// GetOrCreateActive upserts against the partial unique index on active
// carts. Two racing upserts can both miss and try to insert; the loser gets
// a duplicate key error and reads the winner's cart.
func (r *mongoCarts) GetOrCreateActive(ctx context.Context, userID primitive.ObjectID) (models.Cart, error) {
	now := time.Now()
	filter := bson.M{"userId": userID, "status": models.CartActive}
	update := bson.M{"$setOnInsert": bson.M{
		"userId":     userID,
		"status":     models.CartActive,
		"totalPrice": 0.0,
		"createdAt":  now,
		"updatedAt":  now,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var cart models.Cart
	err := r.carts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&cart)
	if mongo.IsDuplicateKeyError(err) {
		err = r.carts.FindOne(ctx, filter).Decode(&cart)
	}
	if err != nil {
		return models.Cart{}, err
	}
	return cart, nil
}

func (r *mongoCarts) SetTotal(ctx context.Context, cartID primitive.ObjectID, total float64) error {
	_, err := r.carts.UpdateByID(ctx, cartID, bson.M{"$set": bson.M{
		"totalPrice": total,
		"updatedAt":  time.Now(),
	}})
	return err
}

func (r *mongoCarts) InsertItem(ctx context.Context, item *models.CartItem) error {
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	_, err := r.items.InsertOne(ctx, item)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateCartLine
	}
	return err
}

func (r *mongoCarts) FindItem(ctx context.Context, itemID primitive.ObjectID) (models.CartItem, error) {
	return r.findItem(ctx, bson.M{"_id": itemID})
}

func (r *mongoCarts) FindItemByProduct(ctx context.Context, cartID, productID primitive.ObjectID) (models.CartItem, error) {
	return r.findItem(ctx, bson.M{"cartId": cartID, "productId": productID})
}

func (r *mongoCarts) findItem(ctx context.Context, filter bson.M) (models.CartItem, error) {
	var item models.CartItem
	err := r.items.FindOne(ctx, filter).Decode(&item)
	if err == mongo.ErrNoDocuments {
		return models.CartItem{}, ErrNotFound
	}
	return item, err
}

func (r *mongoCarts) UpdateItem(ctx context.Context, itemID primitive.ObjectID, update CartItemUpdate) (models.CartItem, error) {
	set := bson.M{"updatedAt": time.Now()}
	if update.Quantity != nil {
		set["quantity"] = *update.Quantity
	}
	if update.Selected != nil {
		set["selected"] = *update.Selected
	}
	if update.Notes != nil {
		set["notes"] = *update.Notes
	}

	var item models.CartItem
	err := r.items.FindOneAndUpdate(ctx, bson.M{"_id": itemID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&item)
	if err == mongo.ErrNoDocuments {
		return models.CartItem{}, ErrNotFound
	}
	return item, err
}

func (r *mongoCarts) DeleteItems(ctx context.Context, cartID primitive.ObjectID, itemIDs []primitive.ObjectID) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	res, err := r.items.DeleteMany(ctx, bson.M{
		"cartId": cartID,
		"_id":    bson.M{"$in": itemIDs},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *mongoCarts) ListItems(ctx context.Context, cartID primitive.ObjectID) ([]models.CartItem, error) {
	cursor, err := r.items.Find(ctx, bson.M{"cartId": cartID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.CartItem, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}
