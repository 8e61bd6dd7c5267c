package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderPending.CanTransitionTo(OrderProcessing))
	assert.True(t, OrderPending.CanTransitionTo(OrderCancelled))
	assert.True(t, OrderProcessing.CanTransitionTo(OrderShipped))
	assert.True(t, OrderShipped.CanTransitionTo(OrderDelivered))

	assert.False(t, OrderPending.CanTransitionTo(OrderShipped))
	assert.False(t, OrderShipped.CanTransitionTo(OrderCancelled))
	assert.False(t, OrderDelivered.CanTransitionTo(OrderCancelled))
	assert.False(t, OrderCancelled.CanTransitionTo(OrderPending))
	assert.False(t, OrderPending.CanTransitionTo(OrderPending))

	assert.True(t, OrderDelivered.Terminal())
	assert.True(t, OrderCancelled.Terminal())
	assert.False(t, OrderShipped.Cancellable())
	assert.True(t, OrderProcessing.Cancellable())
}

func TestPaymentStatusTransitions(t *testing.T) {
	assert.True(t, PaymentPending.CanTransitionTo(PaymentPaid))
	assert.True(t, PaymentPending.CanTransitionTo(PaymentFailed))
	assert.True(t, PaymentPaid.CanTransitionTo(PaymentRefunded))

	assert.False(t, PaymentPending.CanTransitionTo(PaymentRefunded))
	assert.False(t, PaymentFailed.CanTransitionTo(PaymentPaid))
	assert.False(t, PaymentRefunded.CanTransitionTo(PaymentPaid))
}

func TestParseEnums(t *testing.T) {
	_, err := ParseOrderStatus("returned")
	require.Error(t, err)

	s, err := ParsePaymentStatus("paid")
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, s)

	nt, err := ParseNoteType("")
	require.NoError(t, err)
	assert.Equal(t, NoteGeneral, nt)

	_, err = ParseNoteType("shouting")
	require.Error(t, err)
}

func TestEffectivePrice(t *testing.T) {
	discount := 75.0
	p := Product{Price: 100, DiscountPrice: &discount}
	assert.Equal(t, 75.0, p.EffectivePrice())

	p.DiscountPrice = nil
	assert.Equal(t, 100.0, p.EffectivePrice())

	tooHigh := 120.0
	p.DiscountPrice = &tooHigh
	assert.Equal(t, 100.0, p.EffectivePrice())
}
