package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storeapi/internal/models"
)

type mongoStats struct {
	orders *mongo.Collection
	items  *mongo.Collection
}

func periodMatch(since time.Time) bson.M {
	return bson.M{
		"deleted":   false,
		"createdAt": bson.M{"$gte": since},
	}
}

func (r *mongoStats) Revenue(ctx context.Context, since time.Time, statuses []models.OrderStatus) (float64, error) {
	match := periodMatch(since)
	match["orderStatus"] = bson.M{"$in": statuses}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$totalAmount"}}}},
	}

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := r.aggregate(ctx, r.orders, pipeline, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (r *mongoStats) CountOrders(ctx context.Context, since time.Time) (int64, error) {
	return r.orders.CountDocuments(ctx, periodMatch(since))
}

func (r *mongoStats) CountByStatus(ctx context.Context, since time.Time) (map[models.OrderStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: periodMatch(since)}},
		{{Key: "$group", Value: bson.M{"_id": "$orderStatus", "count": bson.M{"$sum": 1}}}},
	}

	var rows []struct {
		Status models.OrderStatus `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := r.aggregate(ctx, r.orders, pipeline, &rows); err != nil {
		return nil, err
	}

	counts := make(map[models.OrderStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *mongoStats) DailyCounts(ctx context.Context, since time.Time) ([]DailyCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: periodMatch(since)}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format": "%Y-%m-%d",
				"date":   "$createdAt",
			}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	days := make([]DailyCount, 0)
	if err := r.aggregate(ctx, r.orders, pipeline, &days); err != nil {
		return nil, err
	}
	return days, nil
}

// itemsWithOrders joins order items to their non-deleted parent orders
// inside the period.
func itemsWithOrders(since time.Time, orderMatch bson.M) mongo.Pipeline {
	match := bson.M{
		"order.deleted":   false,
		"order.createdAt": bson.M{"$gte": since},
	}
	for k, v := range orderMatch {
		match["order."+k] = v
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"createdAt": bson.M{"$gte": since}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         ordersCollection,
			"localField":   "orderId",
			"foreignField": "_id",
			"as":           "order",
		}}},
		{{Key: "$unwind", Value: "$order"}},
		{{Key: "$match", Value: match}},
	}
}

var bucketFormats = map[RevenueBucket]string{
	BucketDay:   "%Y-%m-%d",
	BucketWeek:  "%G-W%V",
	BucketMonth: "%Y-%m",
}

func (r *mongoStats) RevenueSeries(ctx context.Context, since time.Time, bucket RevenueBucket, statuses []models.OrderStatus) ([]RevenuePoint, error) {
	format, ok := bucketFormats[bucket]
	if !ok {
		format = bucketFormats[BucketDay]
	}
	match := periodMatch(since)
	match["orderStatus"] = bson.M{"$in": statuses}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format": format,
				"date":   "$createdAt",
			}},
			"revenue":    bson.M{"$sum": "$totalAmount"},
			"orderCount": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	points := make([]RevenuePoint, 0)
	if err := r.aggregate(ctx, r.orders, pipeline, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func (r *mongoStats) PaymentMethods(ctx context.Context, since time.Time) ([]PaymentMethodStats, error) {
	match := periodMatch(since)
	match["orderStatus"] = bson.M{"$ne": models.OrderCancelled}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$paymentMethod",
			"orderCount":  bson.M{"$sum": 1},
			"totalAmount": bson.M{"$sum": "$totalAmount"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "orderCount", Value: -1}, {Key: "_id", Value: 1}}}},
	}

	methods := make([]PaymentMethodStats, 0)
	if err := r.aggregate(ctx, r.orders, pipeline, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

func (r *mongoStats) TopProducts(ctx context.Context, since time.Time, statuses []models.OrderStatus, limit int64) ([]ProductSales, error) {
	pipeline := itemsWithOrders(since, bson.M{"orderStatus": bson.M{"$in": statuses}})
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.M{
			"_id":         "$productId",
			"productName": bson.M{"$first": "$productName"},
			"quantity":    bson.M{"$sum": "$quantity"},
			"revenue":     bson.M{"$sum": bson.M{"$multiply": bson.A{"$price", "$quantity"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "quantity", Value: -1}, {Key: "_id", Value: 1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	)

	top := make([]ProductSales, 0)
	if err := r.aggregate(ctx, r.items, pipeline, &top); err != nil {
		return nil, err
	}
	return top, nil
}

func (r *mongoStats) ProductsSold(ctx context.Context, since time.Time, statuses []models.OrderStatus) (int64, error) {
	pipeline := itemsWithOrders(since, bson.M{"orderStatus": bson.M{"$in": statuses}})
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.M{"_id": nil, "quantity": bson.M{"$sum": "$quantity"}}}},
	)

	var rows []struct {
		Quantity int64 `bson:"quantity"`
	}
	if err := r.aggregate(ctx, r.items, pipeline, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Quantity, nil
}

func (r *mongoStats) Recent(ctx context.Context, limit int64) ([]models.Order, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)
	cursor, err := r.orders.Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *mongoStats) aggregate(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, out interface{}) error {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}
