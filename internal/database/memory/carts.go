package memory

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/database"
	"storeapi/internal/models"
)

type carts struct {
	s *Store
}

func (r *carts) GetOrCreateActive(ctx context.Context, userID primitive.ObjectID) (models.Cart, error) {
	defer r.s.lock(ctx)()

	for _, cart := range r.s.carts {
		if cart.UserID == userID && cart.Status == models.CartActive {
			return cart, nil
		}
	}

	now := r.s.now()
	cart := models.Cart{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Status:    models.CartActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.carts[cart.ID] = cart
	r.s.record(ctx, restore(r.s.carts, cart.ID, models.Cart{}, false))
	return cart, nil
}

func (r *carts) SetTotal(ctx context.Context, cartID primitive.ObjectID, total float64) error {
	defer r.s.lock(ctx)()

	cart, ok := r.s.carts[cartID]
	if !ok {
		return nil
	}
	prev := cart
	cart.TotalPrice = total
	cart.UpdatedAt = r.s.now()
	r.s.carts[cartID] = cart
	r.s.record(ctx, restore(r.s.carts, cartID, prev, true))
	return nil
}

func (r *carts) InsertItem(ctx context.Context, item *models.CartItem) error {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.cartItems {
		if existing.CartID == item.CartID && existing.ProductID == item.ProductID {
			return database.ErrDuplicateCartLine
		}
	}
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	r.s.cartItems[item.ID] = *item
	r.s.record(ctx, restore(r.s.cartItems, item.ID, models.CartItem{}, false))
	return nil
}

func (r *carts) FindItem(ctx context.Context, itemID primitive.ObjectID) (models.CartItem, error) {
	defer r.s.lock(ctx)()

	item, ok := r.s.cartItems[itemID]
	if !ok {
		return models.CartItem{}, database.ErrNotFound
	}
	return item, nil
}

func (r *carts) FindItemByProduct(ctx context.Context, cartID, productID primitive.ObjectID) (models.CartItem, error) {
	defer r.s.lock(ctx)()

	for _, item := range r.s.cartItems {
		if item.CartID == cartID && item.ProductID == productID {
			return item, nil
		}
	}
	return models.CartItem{}, database.ErrNotFound
}

func (r *carts) UpdateItem(ctx context.Context, itemID primitive.ObjectID, update database.CartItemUpdate) (models.CartItem, error) {
	defer r.s.lock(ctx)()

	item, ok := r.s.cartItems[itemID]
	if !ok {
		return models.CartItem{}, database.ErrNotFound
	}
	prev := item
	if update.Quantity != nil {
		item.Quantity = *update.Quantity
	}
	if update.Selected != nil {
		item.Selected = *update.Selected
	}
	if update.Notes != nil {
		item.Notes = *update.Notes
	}
	item.UpdatedAt = r.s.now()
	r.s.cartItems[itemID] = item
	r.s.record(ctx, restore(r.s.cartItems, itemID, prev, true))
	return item, nil
}

func (r *carts) DeleteItems(ctx context.Context, cartID primitive.ObjectID, itemIDs []primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()

	var deleted int64
	for _, id := range itemIDs {
		item, ok := r.s.cartItems[id]
		if !ok || item.CartID != cartID {
			continue
		}
		delete(r.s.cartItems, id)
		r.s.record(ctx, restore(r.s.cartItems, id, item, true))
		deleted++
	}
	return deleted, nil
}

func (r *carts) ListItems(ctx context.Context, cartID primitive.ObjectID) ([]models.CartItem, error) {
	defer r.s.lock(ctx)()

	items := make([]models.CartItem, 0)
	for _, item := range r.s.cartItems {
		if item.CartID == cartID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.Hex() < items[j].ID.Hex()
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}
