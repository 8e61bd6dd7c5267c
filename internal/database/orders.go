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

type mongoOrders struct {
	orders *mongo.Collection
	items  *mongo.Collection
}

func (r *mongoOrders) Insert(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	_, err := r.orders.InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateOrderNumber
	}
	return err
}

func (r *mongoOrders) InsertItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(items))
	for i := range items {
		if items[i].ID.IsZero() {
			items[i].ID = primitive.NewObjectID()
		}
		docs = append(docs, items[i])
	}
	_, err := r.items.InsertMany(ctx, docs)
	return err
}

func (r *mongoOrders) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	var order models.Order
	err := r.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return models.Order{}, ErrNotFound
	}
	return order, err
}

func (r *mongoOrders) ListItems(ctx context.Context, orderID primitive.ObjectID) ([]models.OrderItem, error) {
	cursor, err := r.items.Find(ctx, bson.M{"orderId": orderID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.OrderItem, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *mongoOrders) Update(ctx context.Context, id primitive.ObjectID, update OrderUpdate) (models.Order, error) {
	set := bson.M{}
	if update.OrderStatus != nil {
		set["orderStatus"] = *update.OrderStatus
	}
	if update.PaymentStatus != nil {
		set["paymentStatus"] = *update.PaymentStatus
	}
	if update.TransactionID != nil {
		set["transactionId"] = *update.TransactionID
	}
	if update.TrackingNumber != nil {
		set["trackingNumber"] = *update.TrackingNumber
	}
	if update.ShippingProvider != nil {
		set["shippingProvider"] = *update.ShippingProvider
	}
	if update.EstimatedDeliveryDate != nil {
		set["estimatedDeliveryDate"] = *update.EstimatedDeliveryDate
	}
	if update.DeliveredAt != nil {
		set["deliveredAt"] = *update.DeliveredAt
	}
	if update.CancelledAt != nil {
		set["cancelledAt"] = *update.CancelledAt
	}
	if update.Deleted != nil {
		set["deleted"] = *update.Deleted
	}
	if update.DeletedAt != nil {
		set["deletedAt"] = *update.DeletedAt
	}
	if update.Touch {
		set["updatedAt"] = time.Now()
	}

	doc := bson.M{}
	if len(set) > 0 {
		doc["$set"] = set
	}
	if update.ClearDeletedAt {
		doc["$unset"] = bson.M{"deletedAt": ""}
	}
	if len(doc) == 0 {
		return r.FindByID(ctx, id)
	}

	var order models.Order
	err := r.orders.FindOneAndUpdate(ctx, bson.M{"_id": id}, doc,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return models.Order{}, ErrNotFound
	}
	return order, err
}

func (r *mongoOrders) ListActive(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := orderQuery(filter)
	query["deleted"] = false
	return r.list(ctx, query, filter)
}

func (r *mongoOrders) ListIncludingDeleted(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	return r.list(ctx, orderQuery(filter), filter)
}

func orderQuery(filter OrderFilter) bson.M {
	query := bson.M{}
	if filter.UserID != nil {
		query["userId"] = *filter.UserID
	}
	if filter.OrderStatus != nil {
		query["orderStatus"] = *filter.OrderStatus
	}
	if filter.PaymentStatus != nil {
		query["paymentStatus"] = *filter.PaymentStatus
	}
	return query
}

func (r *mongoOrders) list(ctx context.Context, query bson.M, filter OrderFilter) ([]models.Order, int64, error) {
	total, err := r.orders.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetSkip(filter.Offset()).SetLimit(filter.Limit)
	}

	cursor, err := r.orders.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
