package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/apperrors"
	"storeapi/internal/database"
	"storeapi/internal/models"
	"storeapi/internal/notify"
)

const (
	defaultDeliveryDays    = 3
	maxOrderNumberAttempts = 3
	notifyTimeout          = 2 * time.Second
)

type OrderOptions struct {
	// DeliveryDays sets the estimated delivery date when an order ships
	// without one.
	DeliveryDays    int
	DefaultCurrency models.Currency
}

// OrderService owns order creation and every later transition.
type OrderService struct {
	store    database.Store
	notifier notify.Notifier
	logger   zerolog.Logger
	opts     OrderOptions

	now            func() time.Time
	newOrderNumber func(time.Time) (string, error)
}

func NewOrderService(store database.Store, notifier notify.Notifier, logger zerolog.Logger, opts OrderOptions) *OrderService {
	if opts.DeliveryDays <= 0 {
		opts.DeliveryDays = defaultDeliveryDays
	}
	if !opts.DefaultCurrency.Valid() {
		opts.DefaultCurrency = models.CurrencyVND
	}
	return &OrderService{
		store:          store,
		notifier:       notifier,
		logger:         logger,
		opts:           opts,
		now:            nowUTC,
		newOrderNumber: generateOrderNumber,
	}
}

func (s *OrderService) findOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	order, err := s.store.Orders().FindByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return models.Order{}, apperrors.NotFound("order %s not found", id.Hex())
	}
	return order, err
}

func (s *OrderService) appendNote(ctx context.Context, orderID primitive.ObjectID, author *primitive.ObjectID, text string, noteType models.NoteType) error {
	note := models.OrderNote{
		OrderID:   orderID,
		AuthorID:  author,
		Note:      text,
		NoteType:  noteType,
		CreatedAt: s.now(),
	}
	return s.store.Notes().Insert(ctx, &note)
}

// publish runs after commit. A failed delivery is logged and never reaches
// the caller.
func (s *OrderService) publish(ctx context.Context, eventType notify.EventType, order models.Order) {
	if s.notifier == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(pubCtx, notify.NewEvent(eventType, order)); err != nil {
		s.logger.Warn().
			Err(err).
			Str("event", string(eventType)).
			Str("orderNumber", order.OrderNumber).
			Msg("order event not delivered")
	}
}
