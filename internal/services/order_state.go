package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/apperrors"
	"storeapi/internal/database"
	"storeapi/internal/models"
	"storeapi/internal/notify"
)

type StatusUpdate struct {
	Status                string
	Note                  string
	TrackingNumber        string
	ShippingProvider      string
	EstimatedDeliveryDate *time.Time
}

type PaymentUpdate struct {
	Status        string
	TransactionID string
	Note          string
}

// PaymentOutcome is what a payment provider callback reports for an order.
type PaymentOutcome struct {
	OrderID       primitive.ObjectID
	Success       bool
	TransactionID string
	Method        models.PaymentMethod
	Message       string
}

// CancelOrder cancels a pending or processing order and puts its stock back.
// Owners may cancel their own orders; admins may cancel any.
func (s *OrderService) CancelOrder(ctx context.Context, orderID primitive.ObjectID, caller Caller, reason string) (models.Order, error) {
	var cancelled models.Order
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.findOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Deleted && !caller.Admin {
			return apperrors.NotFound("order %s not found", orderID.Hex())
		}
		if !caller.canAccess(order) {
			return apperrors.Forbidden("you cannot cancel order %s", order.OrderNumber)
		}
		cancelled, err = s.cancelInTx(ctx, order, caller.UserID, reason)
		return err
	})
	if err != nil {
		return models.Order{}, internalError(s.logger, err, "cancel order failed")
	}

	s.logger.Info().Str("orderNumber", cancelled.OrderNumber).Bool("admin", caller.Admin).Msg("order cancelled")
	s.publish(ctx, notify.EventOrderCancelled, cancelled)
	return cancelled, nil
}

func (s *OrderService) cancelInTx(ctx context.Context, order models.Order, author *primitive.ObjectID, reason string) (models.Order, error) {
	if !order.OrderStatus.Cancellable() {
		return models.Order{}, apperrors.InvalidStatus("order %s cannot be cancelled while %s", order.OrderNumber, order.OrderStatus).
			With("orderStatus", order.OrderStatus)
	}

	items, err := s.store.Orders().ListItems(ctx, order.ID)
	if err != nil {
		return models.Order{}, err
	}
	for _, item := range items {
		found, err := s.store.Products().IncrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return models.Order{}, err
		}
		if !found {
			s.logger.Warn().
				Str("orderNumber", order.OrderNumber).
				Str("productId", item.ProductID.Hex()).
				Msg("product gone, stock not restored")
		}
	}

	status := models.OrderCancelled
	now := s.now()
	updated, err := s.store.Orders().Update(ctx, order.ID, database.OrderUpdate{
		OrderStatus: &status,
		CancelledAt: &now,
		Touch:       true,
	})
	if err != nil {
		return models.Order{}, err
	}

	if reason = strings.TrimSpace(reason); reason != "" {
		if err := s.appendNote(ctx, order.ID, author, reason, models.NoteStatusChange); err != nil {
			return models.Order{}, err
		}
	}
	updated.Items = items
	return updated, nil
}

// AdminUpdateOrderStatus moves an order along its lifecycle. Moving to
// cancelled takes the cancellation path so stock is restored.
func (s *OrderService) AdminUpdateOrderStatus(ctx context.Context, orderID primitive.ObjectID, in StatusUpdate, adminID *primitive.ObjectID) (models.Order, error) {
	target, err := models.ParseOrderStatus(in.Status)
	if err != nil {
		return models.Order{}, apperrors.Validation("%v", err)
	}

	var updated models.Order
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.findOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.OrderStatus.Terminal() {
			return apperrors.InvalidStatus("order %s is already %s", order.OrderNumber, order.OrderStatus).
				With("orderStatus", order.OrderStatus)
		}
		if target == models.OrderCancelled {
			updated, err = s.cancelInTx(ctx, order, adminID, in.Note)
			return err
		}
		if !order.OrderStatus.CanTransitionTo(target) {
			return apperrors.InvalidStatus("order %s cannot move from %s to %s", order.OrderNumber, order.OrderStatus, target).
				With("from", order.OrderStatus).
				With("to", target)
		}

		now := s.now()
		update := database.OrderUpdate{OrderStatus: &target, Touch: true}
		switch target {
		case models.OrderShipped:
			eta := now.AddDate(0, 0, s.opts.DeliveryDays)
			if in.EstimatedDeliveryDate != nil {
				eta = *in.EstimatedDeliveryDate
			}
			update.EstimatedDeliveryDate = &eta
			if tracking := strings.TrimSpace(in.TrackingNumber); tracking != "" {
				update.TrackingNumber = &tracking
			}
			if provider := strings.TrimSpace(in.ShippingProvider); provider != "" {
				update.ShippingProvider = &provider
			}
		case models.OrderDelivered:
			update.DeliveredAt = &now
		}

		updated, err = s.store.Orders().Update(ctx, order.ID, update)
		if err != nil {
			return err
		}
		if note := strings.TrimSpace(in.Note); note != "" {
			return s.appendNote(ctx, order.ID, adminID, note, models.NoteStatusChange)
		}
		return nil
	})
	if err != nil {
		return models.Order{}, internalError(s.logger, err, "update order status failed")
	}

	s.logger.Info().
		Str("orderNumber", updated.OrderNumber).
		Str("orderStatus", string(updated.OrderStatus)).
		Msg("order status updated")
	if target == models.OrderCancelled {
		s.publish(ctx, notify.EventOrderCancelled, updated)
	} else {
		s.publish(ctx, notify.EventOrderStatusChanged, updated)
	}
	return updated, nil
}

// AdminUpdatePaymentStatus records a payment transition. A payment marked
// paid on a pending order also moves the order to processing.
func (s *OrderService) AdminUpdatePaymentStatus(ctx context.Context, orderID primitive.ObjectID, in PaymentUpdate, adminID *primitive.ObjectID) (models.Order, error) {
	target, err := models.ParsePaymentStatus(in.Status)
	if err != nil {
		return models.Order{}, apperrors.Validation("%v", err)
	}

	var updated models.Order
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.findOrder(ctx, orderID)
		if err != nil {
			return err
		}
		updated, err = s.applyPayment(ctx, order, target, in.TransactionID, in.Note, adminID)
		return err
	})
	if err != nil {
		return models.Order{}, internalError(s.logger, err, "update payment status failed")
	}

	s.logger.Info().
		Str("orderNumber", updated.OrderNumber).
		Str("paymentStatus", string(updated.PaymentStatus)).
		Msg("payment status updated")
	s.publish(ctx, notify.EventPaymentUpdated, updated)
	return updated, nil
}

// VerifyPayment applies a provider's verdict and always leaves a
// payment_update note behind.
func (s *OrderService) VerifyPayment(ctx context.Context, outcome PaymentOutcome) (models.Order, error) {
	target := models.PaymentFailed
	if outcome.Success {
		target = models.PaymentPaid
	}

	var updated models.Order
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.findOrder(ctx, outcome.OrderID)
		if err != nil {
			return err
		}
		if outcome.Method != "" && outcome.Method != order.PaymentMethod {
			return apperrors.Validation("order %s is paid by %s, not %s", order.OrderNumber, order.PaymentMethod, outcome.Method)
		}

		note := fmt.Sprintf("payment %s via %s", target, order.PaymentMethod)
		if outcome.TransactionID != "" {
			note += fmt.Sprintf(" (transaction %s)", outcome.TransactionID)
		}
		if msg := strings.TrimSpace(outcome.Message); msg != "" {
			note += ": " + msg
		}
		updated, err = s.applyPayment(ctx, order, target, outcome.TransactionID, note, nil)
		return err
	})
	if err != nil {
		return models.Order{}, internalError(s.logger, err, "verify payment failed")
	}

	s.logger.Info().
		Str("orderNumber", updated.OrderNumber).
		Bool("success", outcome.Success).
		Msg("payment verified")
	s.publish(ctx, notify.EventPaymentUpdated, updated)
	return updated, nil
}

func (s *OrderService) applyPayment(ctx context.Context, order models.Order, target models.PaymentStatus, transactionID, note string, author *primitive.ObjectID) (models.Order, error) {
	if !order.PaymentStatus.CanTransitionTo(target) {
		return models.Order{}, apperrors.InvalidStatus("payment of order %s cannot move from %s to %s", order.OrderNumber, order.PaymentStatus, target).
			With("from", order.PaymentStatus).
			With("to", target)
	}
	if target == models.PaymentPaid && order.OrderStatus == models.OrderCancelled {
		return models.Order{}, apperrors.InvalidStatus("order %s is cancelled and cannot be paid", order.OrderNumber)
	}

	update := database.OrderUpdate{PaymentStatus: &target, Touch: true}
	if target == models.PaymentPaid && order.OrderStatus == models.OrderPending {
		processing := models.OrderProcessing
		update.OrderStatus = &processing
	}
	if transactionID = strings.TrimSpace(transactionID); transactionID != "" {
		update.TransactionID = &transactionID
	}

	updated, err := s.store.Orders().Update(ctx, order.ID, update)
	if err != nil {
		return models.Order{}, err
	}
	if note = strings.TrimSpace(note); note != "" {
		if err := s.appendNote(ctx, order.ID, author, note, models.NotePaymentUpdate); err != nil {
			return models.Order{}, err
		}
	}
	return updated, nil
}

// SoftDelete hides an order from default listings. Shipped and delivered
// orders stay visible.
func (s *OrderService) SoftDelete(ctx context.Context, orderID primitive.ObjectID) (models.Order, error) {
	var updated models.Order
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.findOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Deleted {
			return apperrors.InvalidStatus("order %s is already deleted", order.OrderNumber)
		}
		if order.OrderStatus.Locked() {
			return apperrors.InvalidStatus("order %s is %s and cannot be deleted", order.OrderNumber, order.OrderStatus)
		}

		deleted := true
		now := s.now()
		updated, err = s.store.Orders().Update(ctx, order.ID, database.OrderUpdate{Deleted: &deleted, DeletedAt: &now})
		return err
	})
	if err != nil {
		return models.Order{}, internalError(s.logger, err, "delete order failed")
	}
	s.logger.Info().Str("orderNumber", updated.OrderNumber).Msg("order soft-deleted")
	return updated, nil
}

func (s *OrderService) Restore(ctx context.Context, orderID primitive.ObjectID) (models.Order, error) {
	var updated models.Order
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.findOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Deleted {
			return apperrors.InvalidStatus("order %s is not deleted", order.OrderNumber)
		}

		deleted := false
		updated, err = s.store.Orders().Update(ctx, order.ID, database.OrderUpdate{Deleted: &deleted, ClearDeletedAt: true})
		return err
	})
	if err != nil {
		return models.Order{}, internalError(s.logger, err, "restore order failed")
	}
	s.logger.Info().Str("orderNumber", updated.OrderNumber).Msg("order restored")
	return updated, nil
}
