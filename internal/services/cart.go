package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/apperrors"
	"storeapi/internal/database"
	"storeapi/internal/models"
)

type CartService struct {
	store  database.Store
	logger zerolog.Logger
}

func NewCartService(store database.Store, logger zerolog.Logger) *CartService {
	return &CartService{store: store, logger: logger}
}

// UpdateItemResult reports whether an update removed the line instead of
// changing its quantity.
type UpdateItemResult struct {
	Item    *models.CartItem `json:"item,omitempty"`
	Removed bool             `json:"removed"`
}

type CartSummary struct {
	CartID        primitive.ObjectID `json:"cartId"`
	Lines         int                `json:"lines"`
	TotalItems    int                `json:"totalItems"`
	TotalPrice    float64            `json:"totalPrice"`
	SelectedItems int                `json:"selectedItems"`
	SelectedPrice float64            `json:"selectedPrice"`
}

func (s *CartService) GetOrCreateActiveCart(ctx context.Context, userID primitive.ObjectID) (models.Cart, error) {
	cart, err := s.store.Carts().GetOrCreateActive(ctx, userID)
	if err != nil {
		return models.Cart{}, internalError(s.logger, err, "load active cart failed")
	}
	return cart, nil
}

// GetCart returns the active cart with its lines and their live products.
func (s *CartService) GetCart(ctx context.Context, userID primitive.ObjectID) (models.Cart, error) {
	cart, err := s.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		return models.Cart{}, err
	}

	items, err := s.store.Carts().ListItems(ctx, cart.ID)
	if err != nil {
		return models.Cart{}, internalError(s.logger, err, "list cart items failed")
	}
	products, err := s.store.Products().FindByIDs(ctx, productIDs(items))
	if err != nil {
		return models.Cart{}, internalError(s.logger, err, "load cart products failed")
	}

	for i := range items {
		if product, ok := products[items[i].ProductID]; ok {
			p := product
			items[i].Product = &p
		}
	}
	cart.Items = items
	cart.TotalPrice = toFloat(sumLines(items, products, false))
	return cart, nil
}

func (s *CartService) AddItem(ctx context.Context, userID, productID primitive.ObjectID, quantity int, notes string) (models.CartItem, error) {
	if quantity < 1 {
		return models.CartItem{}, apperrors.Validation("quantity must be at least 1")
	}

	product, err := s.store.Products().FindByID(ctx, productID)
	if errors.Is(err, database.ErrNotFound) {
		return models.CartItem{}, apperrors.NotFound("product %s not found", productID.Hex())
	}
	if err != nil {
		return models.CartItem{}, internalError(s.logger, err, "load product failed")
	}
	if !product.IsActive() {
		return models.CartItem{}, apperrors.Validation("product %q is not available", product.Name).With("productId", productID.Hex())
	}

	cart, err := s.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		return models.CartItem{}, err
	}

	item, err := s.addOrMerge(ctx, cart.ID, product, quantity, notes)
	if errors.Is(err, database.ErrDuplicateCartLine) {
		// A concurrent add created the line first; merge into it.
		item, err = s.addOrMerge(ctx, cart.ID, product, quantity, notes)
	}
	if err != nil {
		return models.CartItem{}, internalError(s.logger, err, "add cart item failed")
	}

	if _, err := recomputeCartTotal(ctx, s.store, cart.ID); err != nil {
		return models.CartItem{}, internalError(s.logger, err, "recompute cart total failed")
	}

	item.Product = &product
	s.logger.Info().
		Str("userId", userID.Hex()).
		Str("productId", productID.Hex()).
		Int("quantity", item.Quantity).
		Msg("cart item saved")
	return item, nil
}

func (s *CartService) addOrMerge(ctx context.Context, cartID primitive.ObjectID, product models.Product, quantity int, notes string) (models.CartItem, error) {
	existing, err := s.store.Carts().FindItemByProduct(ctx, cartID, product.ID)
	switch {
	case err == nil:
		if quantity > product.Quantity-existing.Quantity {
			return models.CartItem{}, stockExceeded(product, quantity).With("inCart", existing.Quantity)
		}
		merged := existing.Quantity + quantity
		update := database.CartItemUpdate{Quantity: &merged}
		if notes != "" {
			update.Notes = &notes
		}
		return s.store.Carts().UpdateItem(ctx, existing.ID, update)
	case errors.Is(err, database.ErrNotFound):
		if quantity > product.Quantity {
			return models.CartItem{}, stockExceeded(product, quantity)
		}
		item := models.CartItem{
			CartID:    cartID,
			ProductID: product.ID,
			Quantity:  quantity,
			Notes:     notes,
			Selected:  true,
		}
		item.CreatedAt = nowUTC()
		item.UpdatedAt = item.CreatedAt
		if err := s.store.Carts().InsertItem(ctx, &item); err != nil {
			return models.CartItem{}, err
		}
		return item, nil
	default:
		return models.CartItem{}, err
	}
}

// UpdateItem sets a line's quantity. A quantity of zero or less removes the
// line and reports Removed instead of failing.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID primitive.ObjectID, quantity int) (UpdateItemResult, error) {
	cart, item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return UpdateItemResult{}, err
	}

	if quantity <= 0 {
		if _, err := s.store.Carts().DeleteItems(ctx, cart.ID, []primitive.ObjectID{item.ID}); err != nil {
			return UpdateItemResult{}, internalError(s.logger, err, "remove cart item failed")
		}
		if _, err := recomputeCartTotal(ctx, s.store, cart.ID); err != nil {
			return UpdateItemResult{}, internalError(s.logger, err, "recompute cart total failed")
		}
		return UpdateItemResult{Removed: true}, nil
	}

	product, err := s.store.Products().FindByID(ctx, item.ProductID)
	if errors.Is(err, database.ErrNotFound) {
		return UpdateItemResult{}, apperrors.NotFound("product %s not found", item.ProductID.Hex())
	}
	if err != nil {
		return UpdateItemResult{}, internalError(s.logger, err, "load product failed")
	}
	if quantity > product.Quantity {
		return UpdateItemResult{}, stockExceeded(product, quantity)
	}

	updated, err := s.store.Carts().UpdateItem(ctx, item.ID, database.CartItemUpdate{Quantity: &quantity})
	if err != nil {
		return UpdateItemResult{}, internalError(s.logger, err, "update cart item failed")
	}
	if _, err := recomputeCartTotal(ctx, s.store, cart.ID); err != nil {
		return UpdateItemResult{}, internalError(s.logger, err, "recompute cart total failed")
	}
	updated.Product = &product
	return UpdateItemResult{Item: &updated}, nil
}

// CartLineChange is one entry of a batch update. Nil fields are left alone.
type CartLineChange struct {
	ItemID   primitive.ObjectID
	Quantity *int
	Selected *bool
}

type CartLineResult struct {
	ItemID  primitive.ObjectID `json:"id"`
	Updated bool               `json:"updated"`
	Removed bool               `json:"removed,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// BatchUpdate applies each change on its own. A line that is missing, not
// in the caller's cart or short on stock is reported in its result and does
// not stop the others. The cart total is recomputed once at the end.
func (s *CartService) BatchUpdate(ctx context.Context, userID primitive.ObjectID, changes []CartLineChange) ([]CartLineResult, error) {
	if len(changes) == 0 {
		return nil, apperrors.Validation("at least one cart item change is required")
	}
	cart, err := s.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]CartLineResult, 0, len(changes))
	changed := false
	for _, change := range changes {
		result, err := s.applyLineChange(ctx, cart.ID, change)
		if err != nil {
			if !apperrors.Is(err, apperrors.KindNotFound) &&
				!apperrors.Is(err, apperrors.KindForbidden) &&
				!apperrors.Is(err, apperrors.KindValidation) {
				return nil, internalError(s.logger, err, "batch update cart failed")
			}
			result = CartLineResult{ItemID: change.ItemID, Error: err.Error()}
		}
		changed = changed || result.Updated || result.Removed
		results = append(results, result)
	}

	if changed {
		if _, err := recomputeCartTotal(ctx, s.store, cart.ID); err != nil {
			return nil, internalError(s.logger, err, "recompute cart total failed")
		}
	}
	return results, nil
}

func (s *CartService) applyLineChange(ctx context.Context, cartID primitive.ObjectID, change CartLineChange) (CartLineResult, error) {
	item, err := s.store.Carts().FindItem(ctx, change.ItemID)
	if errors.Is(err, database.ErrNotFound) {
		return CartLineResult{}, apperrors.NotFound("cart item %s not found", change.ItemID.Hex())
	}
	if err != nil {
		return CartLineResult{}, err
	}
	if item.CartID != cartID {
		return CartLineResult{}, apperrors.Forbidden("cart item %s does not belong to your cart", change.ItemID.Hex())
	}

	if change.Quantity != nil && *change.Quantity <= 0 {
		if _, err := s.store.Carts().DeleteItems(ctx, cartID, []primitive.ObjectID{item.ID}); err != nil {
			return CartLineResult{}, err
		}
		return CartLineResult{ItemID: item.ID, Removed: true}, nil
	}

	update := database.CartItemUpdate{Quantity: change.Quantity, Selected: change.Selected}
	if change.Quantity != nil {
		product, err := s.store.Products().FindByID(ctx, item.ProductID)
		if errors.Is(err, database.ErrNotFound) {
			return CartLineResult{}, apperrors.NotFound("product %s not found", item.ProductID.Hex())
		}
		if err != nil {
			return CartLineResult{}, err
		}
		if *change.Quantity > product.Quantity {
			return CartLineResult{}, stockExceeded(product, *change.Quantity)
		}
	}
	if update.Quantity == nil && update.Selected == nil {
		return CartLineResult{ItemID: item.ID}, nil
	}

	if _, err := s.store.Carts().UpdateItem(ctx, item.ID, update); err != nil {
		return CartLineResult{}, err
	}
	return CartLineResult{ItemID: item.ID, Updated: true}, nil
}

func (s *CartService) SetSelected(ctx context.Context, userID, itemID primitive.ObjectID, selected bool) (models.CartItem, error) {
	if _, _, err := s.ownedItem(ctx, userID, itemID); err != nil {
		return models.CartItem{}, err
	}
	item, err := s.store.Carts().UpdateItem(ctx, itemID, database.CartItemUpdate{Selected: &selected})
	if err != nil {
		return models.CartItem{}, internalError(s.logger, err, "update cart item failed")
	}
	return item, nil
}

func (s *CartService) SetNotes(ctx context.Context, userID, itemID primitive.ObjectID, notes string) (models.CartItem, error) {
	if _, _, err := s.ownedItem(ctx, userID, itemID); err != nil {
		return models.CartItem{}, err
	}
	item, err := s.store.Carts().UpdateItem(ctx, itemID, database.CartItemUpdate{Notes: &notes})
	if err != nil {
		return models.CartItem{}, internalError(s.logger, err, "update cart item failed")
	}
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID primitive.ObjectID) error {
	_, err := s.RemoveMany(ctx, userID, []primitive.ObjectID{itemID})
	return err
}

// RemoveMany deletes the given lines only if every one of them belongs to
// the caller's active cart. Otherwise nothing is deleted.
func (s *CartService) RemoveMany(ctx context.Context, userID primitive.ObjectID, itemIDs []primitive.ObjectID) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, apperrors.Validation("at least one cart item id is required")
	}

	unique := make([]primitive.ObjectID, 0, len(itemIDs))
	seen := make(map[primitive.ObjectID]bool, len(itemIDs))
	for _, id := range itemIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	var deleted int64
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		cart, err := s.store.Carts().GetOrCreateActive(ctx, userID)
		if err != nil {
			return err
		}
		for _, id := range unique {
			item, err := s.store.Carts().FindItem(ctx, id)
			if errors.Is(err, database.ErrNotFound) {
				return apperrors.NotFound("cart item %s not found", id.Hex())
			}
			if err != nil {
				return err
			}
			if item.CartID != cart.ID {
				return apperrors.Forbidden("cart item %s does not belong to your cart", id.Hex())
			}
		}

		deleted, err = s.store.Carts().DeleteItems(ctx, cart.ID, unique)
		if err != nil {
			return err
		}
		_, err = recomputeCartTotal(ctx, s.store, cart.ID)
		return err
	})
	if err != nil {
		return 0, internalError(s.logger, err, "remove cart items failed")
	}
	return deleted, nil
}

// Summary prices the cart at current product prices.
func (s *CartService) Summary(ctx context.Context, userID primitive.ObjectID) (CartSummary, error) {
	cart, err := s.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		return CartSummary{}, err
	}
	items, err := s.store.Carts().ListItems(ctx, cart.ID)
	if err != nil {
		return CartSummary{}, internalError(s.logger, err, "list cart items failed")
	}
	products, err := s.store.Products().FindByIDs(ctx, productIDs(items))
	if err != nil {
		return CartSummary{}, internalError(s.logger, err, "load cart products failed")
	}

	summary := CartSummary{CartID: cart.ID, Lines: len(items)}
	for _, item := range items {
		if _, ok := products[item.ProductID]; !ok {
			continue
		}
		summary.TotalItems += item.Quantity
		if item.Selected {
			summary.SelectedItems += item.Quantity
		}
	}
	summary.TotalPrice = toFloat(sumLines(items, products, false))
	summary.SelectedPrice = toFloat(sumLines(items, products, true))
	return summary, nil
}

func (s *CartService) ownedItem(ctx context.Context, userID, itemID primitive.ObjectID) (models.Cart, models.CartItem, error) {
	item, err := s.store.Carts().FindItem(ctx, itemID)
	if errors.Is(err, database.ErrNotFound) {
		return models.Cart{}, models.CartItem{}, apperrors.NotFound("cart item %s not found", itemID.Hex())
	}
	if err != nil {
		return models.Cart{}, models.CartItem{}, internalError(s.logger, err, "load cart item failed")
	}

	cart, err := s.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		return models.Cart{}, models.CartItem{}, err
	}
	if item.CartID != cart.ID {
		return models.Cart{}, models.CartItem{}, apperrors.Forbidden("cart item %s does not belong to your cart", itemID.Hex())
	}
	return cart, item, nil
}

// recomputeCartTotal stores the cart's derived total. It runs after every
// cart mutation, including checkout's consumption of cart lines.
func recomputeCartTotal(ctx context.Context, store database.Store, cartID primitive.ObjectID) (float64, error) {
	items, err := store.Carts().ListItems(ctx, cartID)
	if err != nil {
		return 0, err
	}
	products, err := store.Products().FindByIDs(ctx, productIDs(items))
	if err != nil {
		return 0, err
	}
	total := toFloat(sumLines(items, products, false))
	return total, store.Carts().SetTotal(ctx, cartID, total)
}

func sumLines(items []models.CartItem, products map[primitive.ObjectID]models.Product, selectedOnly bool) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if selectedOnly && !item.Selected {
			continue
		}
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		total = total.Add(lineTotal(product.EffectivePrice(), item.Quantity))
	}
	return total
}

func productIDs(items []models.CartItem) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func stockExceeded(product models.Product, requested int) *apperrors.Error {
	return apperrors.Validation("insufficient stock for product %q", product.Name).
		With("productId", product.ID.Hex()).
		With("available", product.Quantity).
		With("requested", requested)
}
