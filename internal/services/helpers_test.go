package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/apperrors"
	"storeapi/internal/database/memory"
	"storeapi/internal/models"
	"storeapi/internal/notify"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) types() []notify.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.EventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store    *memory.Store
	notifier *recordingNotifier
	carts    *CartService
	orders   *OrderService
	catalog  *CatalogService
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	notifier := &recordingNotifier{}
	logger := zerolog.Nop()

	f := &fixture{
		store:    store,
		notifier: notifier,
		carts:    NewCartService(store, logger),
		orders:   NewOrderService(store, notifier, logger, OrderOptions{DeliveryDays: 3, DefaultCurrency: models.CurrencyVND}),
		catalog:  NewCatalogService(store, logger),
		now:      time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	f.orders.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) product(t *testing.T, name string, price float64, quantity int) models.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), NewProduct{Name: name, Price: price, Quantity: quantity})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id primitive.ObjectID) int {
	t.Helper()
	p, err := f.store.Products().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) placeOrder(t *testing.T, userID *primitive.ObjectID, lines ...OrderLine) models.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), CreateOrderInput{
		Customer: testCustomer(),
		Lines:    lines,
	}, userID)
	require.NoError(t, err)
	return order
}

func testCustomer() models.CustomerInfo {
	return models.CustomerInfo{
		Name:    "Minh Tran",
		Email:   "minh@example.com",
		Phone:   "0901234567",
		Address: "12 Nguyen Hue, District 1",
	}
}

func requireKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr), "expected *apperrors.Error, got %T: %v", err, err)
	require.Equal(t, kind, appErr.Kind, appErr.Message)
}

func ptr[T any](v T) *T {
	return &v
}
