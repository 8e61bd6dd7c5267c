package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/apperrors"
	"storeapi/internal/database"
	"storeapi/internal/models"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

type ListOrdersInput struct {
	OrderStatus    string
	PaymentStatus  string
	IncludeDeleted bool
	Page           int64
	Limit          int64
}

type OrderPage struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int64          `json:"page"`
	Limit  int64          `json:"limit"`
}

// GetOrder returns an order with its items and notes. Internal notes are
// only shown to admins, and soft-deleted orders do not exist for anyone else.
func (s *OrderService) GetOrder(ctx context.Context, orderID primitive.ObjectID, caller Caller) (models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, internalError(s.logger, err, "load order failed")
	}
	if order.Deleted && !caller.Admin {
		return models.Order{}, apperrors.NotFound("order %s not found", orderID.Hex())
	}
	if !caller.canAccess(order) {
		return models.Order{}, apperrors.Forbidden("you cannot view order %s", order.OrderNumber)
	}

	items, err := s.store.Orders().ListItems(ctx, order.ID)
	if err != nil {
		return models.Order{}, internalError(s.logger, err, "list order items failed")
	}
	notes, err := s.store.Notes().ListByOrder(ctx, order.ID)
	if err != nil {
		return models.Order{}, internalError(s.logger, err, "list order notes failed")
	}

	order.Items = items
	order.Notes = make([]models.OrderNote, 0, len(notes))
	for _, note := range notes {
		if note.NoteType == models.NoteInternal && !caller.Admin {
			continue
		}
		order.Notes = append(order.Notes, note)
	}
	return order, nil
}

// ListOrders pages through orders newest first. Customers only see their
// own orders; only admins may include soft-deleted ones.
func (s *OrderService) ListOrders(ctx context.Context, caller Caller, in ListOrdersInput) (OrderPage, error) {
	filter := database.OrderFilter{Page: in.Page, Limit: in.Limit}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultOrderPageSize
	}
	if filter.Limit > maxOrderPageSize {
		filter.Limit = maxOrderPageSize
	}

	if in.OrderStatus != "" {
		status, err := models.ParseOrderStatus(in.OrderStatus)
		if err != nil {
			return OrderPage{}, apperrors.Validation("%v", err)
		}
		filter.OrderStatus = &status
	}
	if in.PaymentStatus != "" {
		status, err := models.ParsePaymentStatus(in.PaymentStatus)
		if err != nil {
			return OrderPage{}, apperrors.Validation("%v", err)
		}
		filter.PaymentStatus = &status
	}

	if !caller.Admin {
		if caller.UserID == nil {
			return OrderPage{}, apperrors.Forbidden("sign in to list orders")
		}
		if in.IncludeDeleted {
			return OrderPage{}, apperrors.Forbidden("only admins can list deleted orders")
		}
		filter.UserID = caller.UserID
	}

	list := s.store.Orders().ListActive
	if in.IncludeDeleted {
		list = s.store.Orders().ListIncludingDeleted
	}
	orders, total, err := list(ctx, filter)
	if err != nil {
		return OrderPage{}, internalError(s.logger, err, "list orders failed")
	}
	return OrderPage{Orders: orders, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}
