package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/apperrors"
	"storeapi/internal/database"
	"storeapi/internal/models"
	"storeapi/internal/notify"
)

var validate = validator.New()

// OrderLine is one requested line of a direct checkout.
type OrderLine struct {
	ProductID primitive.ObjectID
	Quantity  int
	Options   map[string]interface{}
}

type CreateOrderInput struct {
	Customer models.CustomerInfo
	// FromCart checks out the selected lines of the caller's active cart
	// and ignores Lines.
	FromCart      bool
	Lines         []OrderLine
	PaymentMethod models.PaymentMethod
	Currency      models.Currency
	ShippingFee   float64
	Tax           float64
	Discount      float64
	CouponCode    string
	Note          string
}

// resolvedLine is a requested line paired with the product snapshot it will
// be priced from. Cart and direct checkout both normalize to this shape.
type resolvedLine struct {
	product  models.Product
	quantity int
	options  map[string]interface{}
}

type orderTotals struct {
	subtotal    decimal.Decimal
	shippingFee decimal.Decimal
	tax         decimal.Decimal
	discount    decimal.Decimal
	total       decimal.Decimal
}

// CreateOrder places an order atomically: the order, its item snapshots,
// the stock decrements and the removal of consumed cart lines all commit
// together or not at all.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput, userID *primitive.ObjectID) (models.Order, error) {
	if err := s.validateCheckout(&in, userID); err != nil {
		return models.Order{}, err
	}

	var (
		order models.Order
		err   error
	)
	for attempt := 1; ; attempt++ {
		order, err = s.createOrderTx(ctx, in, userID)
		if !errors.Is(err, database.ErrDuplicateOrderNumber) || attempt == maxOrderNumberAttempts {
			break
		}
		s.logger.Warn().Int("attempt", attempt).Msg("order number collision, retrying")
	}
	if err != nil {
		return models.Order{}, internalError(s.logger, err, "create order failed")
	}

	s.logger.Info().
		Str("orderNumber", order.OrderNumber).
		Int("items", len(order.Items)).
		Float64("totalAmount", order.TotalAmount).
		Bool("guest", order.UserID == nil).
		Msg("order created")
	s.publish(ctx, notify.EventOrderCreated, order)
	return order, nil
}

func (s *OrderService) validateCheckout(in *CreateOrderInput, userID *primitive.ObjectID) error {
	in.Customer.Name = strings.TrimSpace(in.Customer.Name)
	in.Customer.Email = strings.TrimSpace(in.Customer.Email)
	in.Customer.Phone = strings.TrimSpace(in.Customer.Phone)
	in.Customer.Address = strings.TrimSpace(in.Customer.Address)

	switch {
	case in.Customer.Name == "":
		return apperrors.Validation("customer name is required")
	case in.Customer.Phone == "":
		return apperrors.Validation("customer phone is required")
	case in.Customer.Address == "":
		return apperrors.Validation("customer address is required")
	case in.Customer.Email == "" && userID == nil:
		return apperrors.Validation("customer email is required for guest checkout")
	}
	if in.Customer.Email != "" {
		if err := validate.Var(in.Customer.Email, "email"); err != nil {
			return apperrors.Validation("customer email %q is invalid", in.Customer.Email)
		}
	}

	if in.PaymentMethod == "" {
		in.PaymentMethod = models.PaymentCOD
	}
	if !in.PaymentMethod.Valid() {
		return apperrors.Validation("unsupported payment method %q", in.PaymentMethod)
	}
	if in.Currency == "" {
		in.Currency = s.opts.DefaultCurrency
	}
	if !in.Currency.Valid() {
		return apperrors.Validation("unsupported currency %q", in.Currency)
	}
	if in.ShippingFee < 0 || in.Tax < 0 || in.Discount < 0 {
		return apperrors.Validation("shipping fee, tax and discount cannot be negative")
	}

	if in.FromCart {
		if userID == nil {
			return apperrors.Validation("cart checkout requires a signed-in user")
		}
		return nil
	}
	if len(in.Lines) == 0 {
		return apperrors.Validation("order must contain at least one item")
	}
	for i, line := range in.Lines {
		if line.ProductID.IsZero() {
			return apperrors.Validation("item %d has no product id", i)
		}
		if line.Quantity < 1 {
			return apperrors.Validation("item %d quantity must be at least 1", i).With("productId", line.ProductID.Hex())
		}
	}
	return nil
}

func (s *OrderService) createOrderTx(ctx context.Context, in CreateOrderInput, userID *primitive.ObjectID) (models.Order, error) {
	var order models.Order
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		lines := in.Lines
		var (
			cartID        primitive.ObjectID
			consumedItems []primitive.ObjectID
		)
		if in.FromCart {
			cart, err := s.store.Carts().GetOrCreateActive(ctx, *userID)
			if err != nil {
				return err
			}
			items, err := s.store.Carts().ListItems(ctx, cart.ID)
			if err != nil {
				return err
			}
			lines = nil
			for _, item := range items {
				if !item.Selected {
					continue
				}
				lines = append(lines, OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
				consumedItems = append(consumedItems, item.ID)
			}
			if len(lines) == 0 {
				return apperrors.Validation("cart has no selected items")
			}
			cartID = cart.ID
		}

		resolved, err := s.resolveLines(ctx, lines)
		if err != nil {
			return err
		}
		totals, err := priceOrder(resolved, in)
		if err != nil {
			return err
		}

		now := s.now()
		number, err := s.newOrderNumber(now)
		if err != nil {
			return err
		}
		order = models.Order{
			OrderNumber:   number,
			UserID:        userID,
			Customer:      in.Customer,
			Subtotal:      toFloat(totals.subtotal),
			ShippingFee:   toFloat(totals.shippingFee),
			Tax:           toFloat(totals.tax),
			Discount:      toFloat(totals.discount),
			TotalAmount:   toFloat(totals.total),
			Currency:      in.Currency,
			CouponCode:    strings.TrimSpace(in.CouponCode),
			PaymentMethod: in.PaymentMethod,
			PaymentStatus: models.PaymentPending,
			OrderStatus:   models.OrderPending,
			Note:          strings.TrimSpace(in.Note),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.store.Orders().Insert(ctx, &order); err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(resolved))
		for _, line := range resolved {
			items = append(items, snapshotItem(order.ID, line, now))
		}
		if err := s.store.Orders().InsertItems(ctx, items); err != nil {
			return err
		}

		for _, line := range resolved {
			err := s.store.Products().DecrementStock(ctx, line.product.ID, line.quantity)
			if errors.Is(err, database.ErrInsufficientStock) {
				return s.stockAfterRace(ctx, line)
			}
			if err != nil {
				return err
			}
		}

		if in.FromCart {
			if _, err := s.store.Carts().DeleteItems(ctx, cartID, consumedItems); err != nil {
				return err
			}
			if _, err := recomputeCartTotal(ctx, s.store, cartID); err != nil {
				return err
			}
		}

		order.Items = items
		return nil
	})
	return order, err
}

// resolveLines loads the canonical product for every line and checks it can
// be sold in the requested quantity.
func (s *OrderService) resolveLines(ctx context.Context, lines []OrderLine) ([]resolvedLine, error) {
	ids := make([]primitive.ObjectID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.store.Products().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// left tracks stock still available after earlier lines for the same
	// product have been counted.
	left := make(map[primitive.ObjectID]int, len(products))
	for id, product := range products {
		left[id] = product.Quantity
	}

	resolved := make([]resolvedLine, 0, len(lines))
	for i, line := range lines {
		if line.Quantity < 1 {
			return nil, apperrors.Validation("item %d quantity must be at least 1", i).With("productId", line.ProductID.Hex())
		}
		product, ok := products[line.ProductID]
		if !ok {
			return nil, apperrors.NotFound("product %s not found", line.ProductID.Hex())
		}
		if !product.IsActive() {
			return nil, apperrors.Validation("product %q is not available", product.Name).With("productId", product.ID.Hex())
		}
		if left[product.ID] < line.Quantity {
			return nil, stockExceeded(withStock(product, left[product.ID]), line.Quantity)
		}
		left[product.ID] -= line.Quantity
		resolved = append(resolved, resolvedLine{product: product, quantity: line.Quantity, options: line.Options})
	}
	return resolved, nil
}

// stockAfterRace reports a decrement that lost to a concurrent writer with
// the stock as it stands now, inside the same transaction.
func (s *OrderService) stockAfterRace(ctx context.Context, line resolvedLine) error {
	current, err := s.store.Products().FindByID(ctx, line.product.ID)
	if errors.Is(err, database.ErrNotFound) {
		return apperrors.NotFound("product %s not found", line.product.ID.Hex())
	}
	if err != nil {
		return err
	}
	return stockExceeded(current, line.quantity)
}

func withStock(product models.Product, quantity int) models.Product {
	product.Quantity = quantity
	return product
}

// priceOrder sums the lines at their effective price. Each component is
// rounded before the total is derived so the stored figures always satisfy
// total = subtotal + shippingFee + tax - discount.
func priceOrder(lines []resolvedLine, in CreateOrderInput) (orderTotals, error) {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(lineTotal(line.product.EffectivePrice(), line.quantity))
	}

	t := orderTotals{
		subtotal:    subtotal.Round(2),
		shippingFee: amount(in.ShippingFee).Round(2),
		tax:         amount(in.Tax).Round(2),
		discount:    amount(in.Discount).Round(2),
	}
	t.total = t.subtotal.Add(t.shippingFee).Add(t.tax).Sub(t.discount)
	if t.total.IsNegative() {
		return orderTotals{}, apperrors.Validation("discount exceeds the order amount").
			With("subtotal", toFloat(t.subtotal)).
			With("discount", toFloat(t.discount))
	}
	return t, nil
}

func snapshotItem(orderID primitive.ObjectID, line resolvedLine, now time.Time) models.OrderItem {
	unit := line.product.EffectivePrice()
	perUnitDiscount := amount(line.product.Price).Sub(amount(unit))
	return models.OrderItem{
		OrderID:       orderID,
		ProductID:     line.product.ID,
		ProductName:   line.product.Name,
		ProductImage:  line.product.ImagePath,
		Quantity:      line.quantity,
		Price:         unit,
		OriginalPrice: line.product.Price,
		Discount:      toFloat(perUnitDiscount.Mul(decimal.NewFromInt(int64(line.quantity)))),
		Options:       line.options,
		CreatedAt:     now,
	}
}
