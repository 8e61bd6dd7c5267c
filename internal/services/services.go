// Package services holds the checkout and order lifecycle: the cart store,
// the order factory, the order state machine with its note log, and the
// dashboard rollups. Every component receives its store explicitly.
package services

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/apperrors"
	"storeapi/internal/models"
)

// Caller is the authenticated identity behind a request. A nil UserID is a
// guest.
type Caller struct {
	UserID *primitive.ObjectID
	Admin  bool
}

func GuestCaller() Caller {
	return Caller{}
}

func UserCaller(id primitive.ObjectID) Caller {
	return Caller{UserID: &id}
}

func AdminCaller(id primitive.ObjectID) Caller {
	return Caller{UserID: &id, Admin: true}
}

func (c Caller) canAccess(order models.Order) bool {
	return c.Admin || (c.UserID != nil && order.OwnedBy(*c.UserID))
}

// internalError passes caller-facing errors through and hides everything
// else behind a generic internal error after logging the cause.
func internalError(logger zerolog.Logger, err error, msg string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	logger.Error().Err(err).Msg(msg)
	return apperrors.Internal(err, "internal error")
}

func amount(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func toFloat(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func lineTotal(unitPrice float64, qty int) decimal.Decimal {
	return amount(unitPrice).Mul(decimal.NewFromInt(int64(qty)))
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
