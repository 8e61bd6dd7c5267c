package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"storeapi/internal/models"
)

func newMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func updateResult(matched int32) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: matched},
		bson.E{Key: "nModified", Value: matched},
	)
}

func duplicateKey() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error",
	})
}

func emptyCursor(mt *mtest.T) bson.D {
	return mtest.CreateCursorResponse(0, mt.DB.Name()+"."+mt.Coll.Name(), mtest.FirstBatch)
}

func TestMongoProductsStock(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("decrement with enough stock", func(mt *mtest.T) {
		repo := &mongoProducts{coll: mt.Coll}
		mt.AddMockResponses(updateResult(1))

		require.NoError(mt, repo.DecrementStock(ctx, primitive.NewObjectID(), 3))

		cmd := mt.GetStartedEvent().Command
		gte, err := cmd.LookupErr("updates", "0", "q", "quantity", "$gte")
		require.NoError(mt, err)
		assert.EqualValues(mt, 3, gte.AsInt64())
		inc, err := cmd.LookupErr("updates", "0", "u", "$inc", "quantity")
		require.NoError(mt, err)
		assert.EqualValues(mt, -3, inc.AsInt64())
	})

	mt.Run("decrement without a match is insufficient stock", func(mt *mtest.T) {
		repo := &mongoProducts{coll: mt.Coll}
		mt.AddMockResponses(updateResult(0))

		err := repo.DecrementStock(ctx, primitive.NewObjectID(), 3)
		assert.ErrorIs(mt, err, ErrInsufficientStock)
	})

	mt.Run("increment on a missing product", func(mt *mtest.T) {
		repo := &mongoProducts{coll: mt.Coll}
		mt.AddMockResponses(updateResult(0))

		ok, err := repo.IncrementStock(ctx, primitive.NewObjectID(), 2)
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("find by id miss", func(mt *mtest.T) {
		repo := &mongoProducts{coll: mt.Coll}
		mt.AddMockResponses(emptyCursor(mt))

		_, err := repo.FindByID(ctx, primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("find by id decodes", func(mt *mtest.T) {
		repo := &mongoProducts{coll: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+"."+mt.Coll.Name(), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Bird nest"},
			{Key: "price", Value: 45000.0},
			{Key: "quantity", Value: int32(7)},
			{Key: "status", Value: string(models.ProductActive)},
		}))

		product, err := repo.FindByID(ctx, id)
		require.NoError(mt, err)
		assert.Equal(mt, id, product.ID)
		assert.Equal(mt, 7, product.Quantity)
		assert.Equal(mt, 45000.0, product.Price)
		assert.Nil(mt, product.DiscountPrice)
	})
}

func TestMongoDuplicateKeys(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("cart line", func(mt *mtest.T) {
		repo := &mongoCarts{carts: mt.Coll, items: mt.Coll}
		mt.AddMockResponses(duplicateKey())

		item := &models.CartItem{CartID: primitive.NewObjectID(), ProductID: primitive.NewObjectID(), Quantity: 1}
		err := repo.InsertItem(ctx, item)
		assert.ErrorIs(mt, err, ErrDuplicateCartLine)
		assert.False(mt, item.ID.IsZero())
	})

	mt.Run("order number", func(mt *mtest.T) {
		repo := &mongoOrders{orders: mt.Coll, items: mt.Coll}
		mt.AddMockResponses(duplicateKey())

		err := repo.Insert(ctx, &models.Order{OrderNumber: "ORD-20260314-0001"})
		assert.ErrorIs(mt, err, ErrDuplicateOrderNumber)
	})

	mt.Run("order inserted", func(mt *mtest.T) {
		repo := &mongoOrders{orders: mt.Coll, items: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		order := &models.Order{OrderNumber: "ORD-20260314-0002"}
		require.NoError(mt, repo.Insert(ctx, order))
		assert.False(mt, order.ID.IsZero())
	})
}

func TestMongoOrdersUpdate(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("restore clears deletedAt", func(mt *mtest.T) {
		repo := &mongoOrders{orders: mt.Coll, items: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "orderNumber", Value: "ORD-20260314-0003"},
			{Key: "orderStatus", Value: string(models.OrderPending)},
			{Key: "deleted", Value: false},
		}}))

		deleted := false
		order, err := repo.Update(ctx, id, OrderUpdate{Deleted: &deleted, ClearDeletedAt: true})
		require.NoError(mt, err)
		assert.Equal(mt, id, order.ID)
		assert.False(mt, order.Deleted)
		assert.Nil(mt, order.DeletedAt)

		cmd := mt.GetStartedEvent().Command
		_, err = cmd.LookupErr("update", "$unset", "deletedAt")
		assert.NoError(mt, err)
		flag, err := cmd.LookupErr("update", "$set", "deleted")
		require.NoError(mt, err)
		assert.False(mt, flag.Boolean())
	})

	mt.Run("missing order", func(mt *mtest.T) {
		repo := &mongoOrders{orders: mt.Coll, items: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		status := models.OrderShipped
		_, err := repo.Update(ctx, primitive.NewObjectID(), OrderUpdate{OrderStatus: &status, Touch: true})
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoStatsAggregations(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mt.Run("revenue total", func(mt *mtest.T) {
		repo := &mongoStats{orders: mt.Coll, items: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+"."+mt.Coll.Name(), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: nil}, {Key: "total", Value: 380000.0}},
		))

		total, err := repo.Revenue(ctx, since, []models.OrderStatus{models.OrderShipped, models.OrderDelivered})
		require.NoError(mt, err)
		assert.Equal(mt, 380000.0, total)
	})

	mt.Run("revenue total with no orders", func(mt *mtest.T) {
		repo := &mongoStats{orders: mt.Coll, items: mt.Coll}
		mt.AddMockResponses(emptyCursor(mt))

		total, err := repo.Revenue(ctx, since, []models.OrderStatus{models.OrderDelivered})
		require.NoError(mt, err)
		assert.Zero(mt, total)
	})

	mt.Run("revenue series by week", func(mt *mtest.T) {
		repo := &mongoStats{orders: mt.Coll, items: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+"."+mt.Coll.Name(), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "2026-W10"}, {Key: "revenue", Value: 200000.0}, {Key: "orderCount", Value: int32(1)}},
			bson.D{{Key: "_id", Value: "2026-W11"}, {Key: "revenue", Value: 180000.0}, {Key: "orderCount", Value: int32(2)}},
		))

		points, err := repo.RevenueSeries(ctx, since, BucketWeek, []models.OrderStatus{models.OrderProcessing})
		require.NoError(mt, err)
		assert.Equal(mt, []RevenuePoint{
			{Period: "2026-W10", Revenue: 200000, OrderCount: 1},
			{Period: "2026-W11", Revenue: 180000, OrderCount: 2},
		}, points)

		format, err := mt.GetStartedEvent().Command.LookupErr("pipeline", "1", "$group", "_id", "$dateToString", "format")
		require.NoError(mt, err)
		assert.Equal(mt, "%G-W%V", format.StringValue())
	})

	mt.Run("payment methods skip cancelled", func(mt *mtest.T) {
		repo := &mongoStats{orders: mt.Coll, items: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+"."+mt.Coll.Name(), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "COD"}, {Key: "orderCount", Value: int32(3)}, {Key: "totalAmount", Value: 400000.0}},
		))

		methods, err := repo.PaymentMethods(ctx, since)
		require.NoError(mt, err)
		require.Len(mt, methods, 1)
		assert.Equal(mt, models.PaymentCOD, methods[0].Method)
		assert.EqualValues(mt, 3, methods[0].OrderCount)

		excluded, err := mt.GetStartedEvent().Command.LookupErr("pipeline", "0", "$match", "orderStatus", "$ne")
		require.NoError(mt, err)
		assert.Equal(mt, string(models.OrderCancelled), excluded.StringValue())
	})
}

func TestRevenueBuckets(t *testing.T) {
	day := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		raw   string
		want  RevenueBucket
		label string
	}{
		{raw: "", want: BucketDay, label: "2026-03-14"},
		{raw: "day", want: BucketDay, label: "2026-03-14"},
		{raw: "week", want: BucketWeek, label: "2026-W11"},
		{raw: "month", want: BucketMonth, label: "2026-03"},
		{raw: "quarter", want: BucketDay, label: "2026-03-14"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			bucket := ParseRevenueBucket(tt.raw)
			assert.Equal(t, tt.want, bucket)
			assert.Equal(t, tt.label, bucket.Label(day))
		})
	}

	// 2027-01-01 is a Friday in ISO week 53 of 2026.
	assert.Equal(t, "2026-W53", BucketWeek.Label(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
	// Labels are taken in UTC.
	ict := time.FixedZone("ICT", 7*3600)
	assert.Equal(t, "2026-03-14", BucketDay.Label(time.Date(2026, 3, 15, 2, 0, 0, 0, ict)))
}
