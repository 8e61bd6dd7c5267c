package memory

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/database"
	"storeapi/internal/models"
)

type orders struct {
	s *Store
}

func (r *orders) Insert(ctx context.Context, order *models.Order) error {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.orders {
		if existing.OrderNumber == order.OrderNumber {
			return database.ErrDuplicateOrderNumber
		}
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	stored := *order
	stored.Items = nil
	stored.Notes = nil
	r.s.orders[order.ID] = stored
	r.s.record(ctx, restore(r.s.orders, order.ID, models.Order{}, false))
	return nil
}

func (r *orders) InsertItems(ctx context.Context, items []models.OrderItem) error {
	defer r.s.lock(ctx)()

	for i := range items {
		if items[i].ID.IsZero() {
			items[i].ID = primitive.NewObjectID()
		}
		r.s.orderItems[items[i].ID] = items[i]
		r.s.record(ctx, restore(r.s.orderItems, items[i].ID, models.OrderItem{}, false))
	}
	return nil
}

func (r *orders) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	defer r.s.lock(ctx)()

	order, ok := r.s.orders[id]
	if !ok {
		return models.Order{}, database.ErrNotFound
	}
	return order, nil
}

func (r *orders) ListItems(ctx context.Context, orderID primitive.ObjectID) ([]models.OrderItem, error) {
	defer r.s.lock(ctx)()

	items := make([]models.OrderItem, 0)
	for _, item := range r.s.orderItems {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ID.Hex() < items[j].ID.Hex()
	})
	return items, nil
}

func (r *orders) Update(ctx context.Context, id primitive.ObjectID, update database.OrderUpdate) (models.Order, error) {
	defer r.s.lock(ctx)()

	order, ok := r.s.orders[id]
	if !ok {
		return models.Order{}, database.ErrNotFound
	}
	prev := order

	if update.OrderStatus != nil {
		order.OrderStatus = *update.OrderStatus
	}
	if update.PaymentStatus != nil {
		order.PaymentStatus = *update.PaymentStatus
	}
	if update.TransactionID != nil {
		order.TransactionID = *update.TransactionID
	}
	if update.TrackingNumber != nil {
		order.TrackingNumber = *update.TrackingNumber
	}
	if update.ShippingProvider != nil {
		order.ShippingProvider = *update.ShippingProvider
	}
	if update.EstimatedDeliveryDate != nil {
		eta := *update.EstimatedDeliveryDate
		order.EstimatedDeliveryDate = &eta
	}
	if update.DeliveredAt != nil {
		at := *update.DeliveredAt
		order.DeliveredAt = &at
	}
	if update.CancelledAt != nil {
		at := *update.CancelledAt
		order.CancelledAt = &at
	}
	if update.Deleted != nil {
		order.Deleted = *update.Deleted
	}
	if update.DeletedAt != nil {
		at := *update.DeletedAt
		order.DeletedAt = &at
	}
	if update.ClearDeletedAt {
		order.DeletedAt = nil
	}
	if update.Touch {
		order.UpdatedAt = r.s.now()
	}

	r.s.orders[id] = order
	r.s.record(ctx, restore(r.s.orders, id, prev, true))
	return order, nil
}

func (r *orders) ListActive(ctx context.Context, filter database.OrderFilter) ([]models.Order, int64, error) {
	return r.list(ctx, filter, false)
}

func (r *orders) ListIncludingDeleted(ctx context.Context, filter database.OrderFilter) ([]models.Order, int64, error) {
	return r.list(ctx, filter, true)
}

func (r *orders) list(ctx context.Context, filter database.OrderFilter, includeDeleted bool) ([]models.Order, int64, error) {
	defer r.s.lock(ctx)()

	matched := make([]models.Order, 0)
	for _, order := range r.s.orders {
		if order.Deleted && !includeDeleted {
			continue
		}
		if filter.UserID != nil && !order.OwnedBy(*filter.UserID) {
			continue
		}
		if filter.OrderStatus != nil && order.OrderStatus != *filter.OrderStatus {
			continue
		}
		if filter.PaymentStatus != nil && order.PaymentStatus != *filter.PaymentStatus {
			continue
		}
		matched = append(matched, order)
	}
	newestFirst(matched)
	return paginate(matched, filter.Offset(), filter.Limit), int64(len(matched)), nil
}
