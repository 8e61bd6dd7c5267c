package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/apperrors"
	"storeapi/internal/database"
	"storeapi/internal/models"
	"storeapi/internal/notify"
)

type OrderStateSuite struct {
	suite.Suite
	f       *fixture
	ctx     context.Context
	owner   primitive.ObjectID
	admin   primitive.ObjectID
	product models.Product
	order   models.Order
}

func TestOrderStateSuite(t *testing.T) {
	suite.Run(t, new(OrderStateSuite))
}

func (s *OrderStateSuite) SetupTest() {
	s.f = newFixture(s.T())
	s.ctx = context.Background()
	s.owner = primitive.NewObjectID()
	s.admin = primitive.NewObjectID()
	s.product = s.f.product(s.T(), "Backpack", 400000, 10)
	s.order = s.f.placeOrder(s.T(), &s.owner, OrderLine{ProductID: s.product.ID, Quantity: 4})
	s.Require().Equal(6, s.f.stock(s.T(), s.product.ID))
}

func (s *OrderStateSuite) advance(status models.OrderStatus) models.Order {
	order, err := s.f.orders.AdminUpdateOrderStatus(s.ctx, s.order.ID, StatusUpdate{Status: string(status)}, &s.admin)
	s.Require().NoError(err)
	return order
}

func (s *OrderStateSuite) TestOwnerCancelRestoresStock() {
	cancelled, err := s.f.orders.CancelOrder(s.ctx, s.order.ID, UserCaller(s.owner), "changed my mind")
	s.Require().NoError(err)

	s.Equal(models.OrderCancelled, cancelled.OrderStatus)
	s.NotNil(cancelled.CancelledAt)
	s.Equal(10, s.f.stock(s.T(), s.product.ID))

	notes, err := s.f.orders.ListNotes(s.ctx, s.order.ID)
	s.Require().NoError(err)
	s.Require().Len(notes, 1)
	s.Equal(models.NoteStatusChange, notes[0].NoteType)
	s.Contains(s.f.notifier.types(), notify.EventOrderCancelled)
}

func (s *OrderStateSuite) TestCancelTwiceIsRejected() {
	_, err := s.f.orders.CancelOrder(s.ctx, s.order.ID, UserCaller(s.owner), "")
	s.Require().NoError(err)

	_, err = s.f.orders.CancelOrder(s.ctx, s.order.ID, UserCaller(s.owner), "")
	requireKind(s.T(), err, apperrors.KindInvalidStatus)
	s.Equal(10, s.f.stock(s.T(), s.product.ID), "stock must be restored exactly once")
}

func (s *OrderStateSuite) TestCancelShippedOrderIsRejected() {
	s.advance(models.OrderProcessing)
	s.advance(models.OrderShipped)

	_, err := s.f.orders.CancelOrder(s.ctx, s.order.ID, AdminCaller(s.admin), "")
	requireKind(s.T(), err, apperrors.KindInvalidStatus)

	order, err := s.f.store.Orders().FindByID(s.ctx, s.order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderShipped, order.OrderStatus)
	s.Equal(6, s.f.stock(s.T(), s.product.ID))
}

func (s *OrderStateSuite) TestCancelByStrangerIsForbidden() {
	_, err := s.f.orders.CancelOrder(s.ctx, s.order.ID, UserCaller(primitive.NewObjectID()), "")
	requireKind(s.T(), err, apperrors.KindForbidden)

	_, err = s.f.orders.CancelOrder(s.ctx, s.order.ID, GuestCaller(), "")
	requireKind(s.T(), err, apperrors.KindForbidden)

	_, err = s.f.orders.CancelOrder(s.ctx, primitive.NewObjectID(), AdminCaller(s.admin), "")
	requireKind(s.T(), err, apperrors.KindNotFound)
}

func (s *OrderStateSuite) TestCancelSkipsDeletedProducts() {
	other := s.f.product(s.T(), "Ghost", 1000, 5)
	order := s.f.placeOrder(s.T(), &s.owner, OrderLine{ProductID: other.ID, Quantity: 1})

	s.Require().NoError(s.f.catalog.DeleteProduct(s.ctx, other.ID))

	cancelled, err := s.f.orders.CancelOrder(s.ctx, order.ID, AdminCaller(s.admin), "")
	s.Require().NoError(err)
	s.Equal(models.OrderCancelled, cancelled.OrderStatus)
}

func (s *OrderStateSuite) TestAdminCancelViaStatusRestoresStock() {
	s.advance(models.OrderProcessing)

	order, err := s.f.orders.AdminUpdateOrderStatus(s.ctx, s.order.ID, StatusUpdate{
		Status: "cancelled",
		Note:   "out of delivery area",
	}, &s.admin)
	s.Require().NoError(err)
	s.Equal(models.OrderCancelled, order.OrderStatus)
	s.Equal(10, s.f.stock(s.T(), s.product.ID))
}

func (s *OrderStateSuite) TestShippingSetsDefaultDeliveryEstimate() {
	s.advance(models.OrderProcessing)

	order, err := s.f.orders.AdminUpdateOrderStatus(s.ctx, s.order.ID, StatusUpdate{
		Status:           "shipped",
		TrackingNumber:   "GHN123",
		ShippingProvider: "GHN",
		Note:             "handed to courier",
	}, &s.admin)
	s.Require().NoError(err)

	s.Equal(models.OrderShipped, order.OrderStatus)
	s.Require().NotNil(order.EstimatedDeliveryDate)
	s.True(order.EstimatedDeliveryDate.Equal(s.f.now.AddDate(0, 0, 3)))
	s.Equal("GHN123", order.TrackingNumber)
	s.Equal("GHN", order.ShippingProvider)

	notes, err := s.f.orders.ListNotes(s.ctx, s.order.ID)
	s.Require().NoError(err)
	s.Require().Len(notes, 1)
	s.Equal("handed to courier", notes[0].Note)
	s.Equal(&s.admin, notes[0].AuthorID)

	delivered := s.advance(models.OrderDelivered)
	s.NotNil(delivered.DeliveredAt)
}

func (s *OrderStateSuite) TestShippingKeepsExplicitEstimate() {
	s.advance(models.OrderProcessing)
	eta := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	order, err := s.f.orders.AdminUpdateOrderStatus(s.ctx, s.order.ID, StatusUpdate{
		Status:                "shipped",
		EstimatedDeliveryDate: &eta,
	}, &s.admin)
	s.Require().NoError(err)
	s.True(order.EstimatedDeliveryDate.Equal(eta))
}

func (s *OrderStateSuite) TestIllegalTransitions() {
	cases := []struct {
		status string
		kind   apperrors.Kind
	}{
		{"shipped", apperrors.KindInvalidStatus},
		{"delivered", apperrors.KindInvalidStatus},
		{"pending", apperrors.KindInvalidStatus},
		{"teleported", apperrors.KindValidation},
	}
	for _, tc := range cases {
		_, err := s.f.orders.AdminUpdateOrderStatus(s.ctx, s.order.ID, StatusUpdate{Status: tc.status}, &s.admin)
		requireKind(s.T(), err, tc.kind)
	}

	order, err := s.f.store.Orders().FindByID(s.ctx, s.order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderPending, order.OrderStatus)
}

func (s *OrderStateSuite) TestFinalStatusesAcceptNoChange() {
	s.advance(models.OrderCancelled)

	for _, status := range []string{"pending", "processing", "cancelled"} {
		_, err := s.f.orders.AdminUpdateOrderStatus(s.ctx, s.order.ID, StatusUpdate{Status: status}, &s.admin)
		requireKind(s.T(), err, apperrors.KindInvalidStatus)
		s.Contains(err.Error(), "already cancelled")
	}
	s.Equal(10, s.f.stock(s.T(), s.product.ID), "stock must be restored exactly once")
}

func (s *OrderStateSuite) TestPaidPaymentAdvancesPendingOrder() {
	order, err := s.f.orders.AdminUpdatePaymentStatus(s.ctx, s.order.ID, PaymentUpdate{
		Status:        "paid",
		TransactionID: "TX-991",
	}, &s.admin)
	s.Require().NoError(err)

	s.Equal(models.PaymentPaid, order.PaymentStatus)
	s.Equal(models.OrderProcessing, order.OrderStatus)
	s.Equal("TX-991", order.TransactionID)
	s.Contains(s.f.notifier.types(), notify.EventPaymentUpdated)

	_, err = s.f.orders.AdminUpdatePaymentStatus(s.ctx, s.order.ID, PaymentUpdate{Status: "failed"}, &s.admin)
	requireKind(s.T(), err, apperrors.KindInvalidStatus)

	refunded, err := s.f.orders.AdminUpdatePaymentStatus(s.ctx, s.order.ID, PaymentUpdate{Status: "refunded"}, &s.admin)
	s.Require().NoError(err)
	s.Equal(models.PaymentRefunded, refunded.PaymentStatus)
	s.Equal(models.OrderProcessing, refunded.OrderStatus)
}

func (s *OrderStateSuite) TestCancelledOrderCannotBePaid() {
	_, err := s.f.orders.CancelOrder(s.ctx, s.order.ID, UserCaller(s.owner), "")
	s.Require().NoError(err)

	_, err = s.f.orders.AdminUpdatePaymentStatus(s.ctx, s.order.ID, PaymentUpdate{Status: "paid"}, &s.admin)
	requireKind(s.T(), err, apperrors.KindInvalidStatus)
}

func (s *OrderStateSuite) TestVerifyPayment() {
	order, err := s.f.orders.VerifyPayment(s.ctx, PaymentOutcome{
		OrderID:       s.order.ID,
		Success:       true,
		TransactionID: "VNP-1",
	})
	s.Require().NoError(err)
	s.Equal(models.PaymentPaid, order.PaymentStatus)
	s.Equal(models.OrderProcessing, order.OrderStatus)

	notes, err := s.f.orders.ListNotes(s.ctx, s.order.ID)
	s.Require().NoError(err)
	s.Require().Len(notes, 1)
	s.Equal(models.NotePaymentUpdate, notes[0].NoteType)
	s.Contains(notes[0].Note, "VNP-1")
	s.Nil(notes[0].AuthorID)

	_, err = s.f.orders.VerifyPayment(s.ctx, PaymentOutcome{OrderID: s.order.ID, Success: true})
	requireKind(s.T(), err, apperrors.KindInvalidStatus)
}

func (s *OrderStateSuite) TestVerifyFailedPayment() {
	order, err := s.f.orders.VerifyPayment(s.ctx, PaymentOutcome{OrderID: s.order.ID, Success: false, Message: "card declined"})
	s.Require().NoError(err)
	s.Equal(models.PaymentFailed, order.PaymentStatus)
	s.Equal(models.OrderPending, order.OrderStatus)

	_, err = s.f.orders.VerifyPayment(s.ctx, PaymentOutcome{OrderID: s.order.ID, Success: true, Method: models.PaymentMomo})
	requireKind(s.T(), err, apperrors.KindValidation)
}

func (s *OrderStateSuite) TestSoftDeleteAndRestore() {
	before, err := s.f.store.Orders().FindByID(s.ctx, s.order.ID)
	s.Require().NoError(err)

	deleted, err := s.f.orders.SoftDelete(s.ctx, s.order.ID)
	s.Require().NoError(err)
	s.True(deleted.Deleted)
	s.NotNil(deleted.DeletedAt)
	s.Equal(before.UpdatedAt, deleted.UpdatedAt)

	page, err := s.f.orders.ListOrders(s.ctx, AdminCaller(s.admin), ListOrdersInput{})
	s.Require().NoError(err)
	s.Zero(page.Total)

	page, err = s.f.orders.ListOrders(s.ctx, AdminCaller(s.admin), ListOrdersInput{IncludeDeleted: true})
	s.Require().NoError(err)
	s.EqualValues(1, page.Total)

	_, err = s.f.orders.SoftDelete(s.ctx, s.order.ID)
	requireKind(s.T(), err, apperrors.KindInvalidStatus)

	restored, err := s.f.orders.Restore(s.ctx, s.order.ID)
	s.Require().NoError(err)
	s.False(restored.Deleted)
	s.Nil(restored.DeletedAt)

	_, err = s.f.orders.Restore(s.ctx, s.order.ID)
	requireKind(s.T(), err, apperrors.KindInvalidStatus)
}

func (s *OrderStateSuite) TestLockedOrdersCannotBeDeleted() {
	s.advance(models.OrderProcessing)
	s.advance(models.OrderShipped)

	_, err := s.f.orders.SoftDelete(s.ctx, s.order.ID)
	requireKind(s.T(), err, apperrors.KindInvalidStatus)
}

func (s *OrderStateSuite) TestGetOrderVisibility() {
	_, err := s.f.orders.AddNote(s.ctx, s.order.ID, "fraud check passed", "internal", &s.admin)
	s.Require().NoError(err)
	_, err = s.f.orders.AddNote(s.ctx, s.order.ID, "call before delivery", "customer_request", &s.admin)
	s.Require().NoError(err)

	own, err := s.f.orders.GetOrder(s.ctx, s.order.ID, UserCaller(s.owner))
	s.Require().NoError(err)
	s.Len(own.Items, 1)
	s.Require().Len(own.Notes, 1)
	s.Equal(models.NoteCustomerRequest, own.Notes[0].NoteType)

	asAdmin, err := s.f.orders.GetOrder(s.ctx, s.order.ID, AdminCaller(s.admin))
	s.Require().NoError(err)
	s.Len(asAdmin.Notes, 2)

	_, err = s.f.orders.GetOrder(s.ctx, s.order.ID, UserCaller(primitive.NewObjectID()))
	requireKind(s.T(), err, apperrors.KindForbidden)
}

func (s *OrderStateSuite) TestDeletedOrderIsHiddenFromNonAdmins() {
	_, err := s.f.orders.SoftDelete(s.ctx, s.order.ID)
	s.Require().NoError(err)

	_, err = s.f.orders.GetOrder(s.ctx, s.order.ID, UserCaller(primitive.NewObjectID()))
	requireKind(s.T(), err, apperrors.KindNotFound)
	_, err = s.f.orders.GetOrder(s.ctx, s.order.ID, UserCaller(s.owner))
	requireKind(s.T(), err, apperrors.KindNotFound)

	_, err = s.f.orders.CancelOrder(s.ctx, s.order.ID, UserCaller(s.owner), "")
	requireKind(s.T(), err, apperrors.KindNotFound)
	s.Equal(6, s.f.stock(s.T(), s.product.ID))

	order, err := s.f.orders.GetOrder(s.ctx, s.order.ID, AdminCaller(s.admin))
	s.Require().NoError(err)
	s.True(order.Deleted)
}

func (s *OrderStateSuite) TestListOrdersScopesToOwner() {
	stranger := primitive.NewObjectID()
	s.f.placeOrder(s.T(), &stranger, OrderLine{ProductID: s.product.ID, Quantity: 1})

	mine, err := s.f.orders.ListOrders(s.ctx, UserCaller(s.owner), ListOrdersInput{})
	s.Require().NoError(err)
	s.EqualValues(1, mine.Total)
	s.Equal(s.order.ID, mine.Orders[0].ID)

	all, err := s.f.orders.ListOrders(s.ctx, AdminCaller(s.admin), ListOrdersInput{OrderStatus: "pending"})
	s.Require().NoError(err)
	s.EqualValues(2, all.Total)

	_, err = s.f.orders.ListOrders(s.ctx, UserCaller(s.owner), ListOrdersInput{IncludeDeleted: true})
	requireKind(s.T(), err, apperrors.KindForbidden)

	_, err = s.f.orders.ListOrders(s.ctx, AdminCaller(s.admin), ListOrdersInput{PaymentStatus: "lost"})
	requireKind(s.T(), err, apperrors.KindValidation)
}

func (s *OrderStateSuite) TestAddNoteValidation() {
	_, err := s.f.orders.AddNote(s.ctx, s.order.ID, "hello", "gossip", &s.admin)
	requireKind(s.T(), err, apperrors.KindValidation)

	_, err = s.f.orders.AddNote(s.ctx, s.order.ID, "   ", "", &s.admin)
	requireKind(s.T(), err, apperrors.KindValidation)

	_, err = s.f.orders.AddNote(s.ctx, primitive.NewObjectID(), "hello", "", &s.admin)
	requireKind(s.T(), err, apperrors.KindNotFound)

	note, err := s.f.orders.AddNote(s.ctx, s.order.ID, "hello", "", &s.admin)
	s.Require().NoError(err)
	s.Equal(models.NoteGeneral, note.NoteType)
}

func TestOrderStatusEventsFollowTransitions(t *testing.T) {
	f := newFixture(t)
	admin := primitive.NewObjectID()
	p := f.product(t, "Scarf", 120000, 3)
	order := f.placeOrder(t, nil, OrderLine{ProductID: p.ID, Quantity: 1})

	_, err := f.orders.AdminUpdateOrderStatus(context.Background(), order.ID, StatusUpdate{Status: "processing"}, &admin)
	require.NoError(t, err)

	assert.Equal(t, []notify.EventType{notify.EventOrderCreated, notify.EventOrderStatusChanged}, f.notifier.types())

	stored, err := f.store.Orders().FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, stored.OrderStatus)
	_, total, err := f.store.Orders().ListActive(context.Background(), database.OrderFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}
