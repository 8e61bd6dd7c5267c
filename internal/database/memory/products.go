package memory

import (
	"context"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/database"
	"storeapi/internal/models"
)

type products struct {
	s *Store
}

func (r *products) Insert(ctx context.Context, product *models.Product) error {
	defer r.s.lock(ctx)()

	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	prev, existed := r.s.products[product.ID]
	r.s.products[product.ID] = *product
	r.s.record(ctx, restore(r.s.products, product.ID, prev, existed))
	return nil
}

func (r *products) FindByID(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	defer r.s.lock(ctx)()

	product, ok := r.s.products[id]
	if !ok {
		return models.Product{}, database.ErrNotFound
	}
	return product, nil
}

func (r *products) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	defer r.s.lock(ctx)()

	byID := make(map[primitive.ObjectID]models.Product, len(ids))
	for _, id := range ids {
		if product, ok := r.s.products[id]; ok {
			byID[id] = product
		}
	}
	return byID, nil
}

func (r *products) List(ctx context.Context, filter database.ProductFilter) ([]models.Product, int64, error) {
	defer r.s.lock(ctx)()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]models.Product, 0, len(r.s.products))
	for _, product := range r.s.products {
		if filter.ActiveOnly && !product.IsActive() {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(product.Name), search) {
			continue
		}
		matched = append(matched, product)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Offset(), filter.Limit), int64(len(matched)), nil
}

func (r *products) Update(ctx context.Context, id primitive.ObjectID, update database.ProductUpdate) (models.Product, error) {
	defer r.s.lock(ctx)()

	product, ok := r.s.products[id]
	if !ok {
		return models.Product{}, database.ErrNotFound
	}
	prev := product

	if update.Name != nil {
		product.Name = *update.Name
	}
	if update.Price != nil {
		product.Price = *update.Price
	}
	if update.DiscountPrice != nil {
		discount := *update.DiscountPrice
		product.DiscountPrice = &discount
	}
	if update.ClearDiscount {
		product.DiscountPrice = nil
	}
	if update.Quantity != nil {
		product.Quantity = *update.Quantity
	}
	if update.Status != nil {
		product.Status = *update.Status
	}
	if update.ImagePath != nil {
		product.ImagePath = *update.ImagePath
	}
	product.UpdatedAt = r.s.now()

	r.s.products[id] = product
	r.s.record(ctx, restore(r.s.products, id, prev, true))
	return product, nil
}

func (r *products) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()

	prev, ok := r.s.products[id]
	if !ok {
		return database.ErrNotFound
	}
	delete(r.s.products, id)
	r.s.record(ctx, restore(r.s.products, id, prev, true))
	return nil
}

func (r *products) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	defer r.s.lock(ctx)()

	product, ok := r.s.products[id]
	if !ok || product.Quantity < qty {
		return database.ErrInsufficientStock
	}
	prev := product
	product.Quantity -= qty
	product.UpdatedAt = r.s.now()
	r.s.products[id] = product
	r.s.record(ctx, restore(r.s.products, id, prev, true))
	return nil
}

func (r *products) IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	defer r.s.lock(ctx)()

	product, ok := r.s.products[id]
	if !ok {
		return false, nil
	}
	prev := product
	product.Quantity += qty
	product.UpdatedAt = r.s.now()
	r.s.products[id] = product
	r.s.record(ctx, restore(r.s.products, id, prev, true))
	return true, nil
}
