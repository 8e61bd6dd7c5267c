package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/apperrors"
	"storeapi/internal/database"
	"storeapi/internal/models"
)

// CatalogService is the admin surface that seeds products and their stock.
type CatalogService struct {
	store  database.Store
	logger zerolog.Logger
}

func NewCatalogService(store database.Store, logger zerolog.Logger) *CatalogService {
	return &CatalogService{store: store, logger: logger}
}

type NewProduct struct {
	Name          string
	Price         float64
	DiscountPrice *float64
	Quantity      int
	Status        models.ProductStatus
	ImagePath     string
}

type ProductChanges struct {
	Name          *string
	Price         *float64
	DiscountPrice *float64
	// RemoveDiscount drops the discount price; it wins over DiscountPrice.
	RemoveDiscount bool
	Quantity       *int
	Status         *models.ProductStatus
	ImagePath      *string
}

type ProductPage struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
	Page     int64            `json:"page"`
	Limit    int64            `json:"limit"`
}

func validateDiscount(price float64, discount *float64) error {
	if discount == nil {
		return nil
	}
	if *discount <= 0 {
		return apperrors.Validation("discountPrice must be greater than 0")
	}
	if *discount >= price {
		return apperrors.Validation("discountPrice must be less than price")
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in NewProduct) (models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return models.Product{}, apperrors.Validation("name is required")
	}
	if in.Price <= 0 {
		return models.Product{}, apperrors.Validation("price must be greater than 0")
	}
	if in.Quantity < 0 {
		return models.Product{}, apperrors.Validation("quantity cannot be negative")
	}
	if in.Status == "" {
		in.Status = models.ProductActive
	}
	if !in.Status.Valid() {
		return models.Product{}, apperrors.Validation("unknown product status %q", in.Status)
	}
	if err := validateDiscount(in.Price, in.DiscountPrice); err != nil {
		return models.Product{}, err
	}

	now := nowUTC()
	product := models.Product{
		Name:          in.Name,
		Price:         in.Price,
		DiscountPrice: in.DiscountPrice,
		Quantity:      in.Quantity,
		Status:        in.Status,
		ImagePath:     strings.TrimSpace(in.ImagePath),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Products().Insert(ctx, &product); err != nil {
		return models.Product{}, internalError(s.logger, err, "insert product failed")
	}
	s.logger.Info().Str("productId", product.ID.Hex()).Str("name", product.Name).Msg("product created")
	return product, nil
}

// UpdateProduct applies partial changes. The discount rule is checked
// against the merged result so a price cut cannot leave a stale discount
// above the new price.
func (s *CatalogService) UpdateProduct(ctx context.Context, id primitive.ObjectID, in ProductChanges) (models.Product, error) {
	existing, err := s.store.Products().FindByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return models.Product{}, apperrors.NotFound("product %s not found", id.Hex())
	}
	if err != nil {
		return models.Product{}, internalError(s.logger, err, "load product failed")
	}

	update := database.ProductUpdate{
		Price:         in.Price,
		DiscountPrice: in.DiscountPrice,
		ClearDiscount: in.RemoveDiscount,
		Quantity:      in.Quantity,
		Status:        in.Status,
		ImagePath:     in.ImagePath,
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return models.Product{}, apperrors.Validation("name cannot be empty")
		}
		update.Name = &name
	}
	if in.Price != nil && *in.Price <= 0 {
		return models.Product{}, apperrors.Validation("price must be greater than 0")
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		return models.Product{}, apperrors.Validation("quantity cannot be negative")
	}
	if in.Status != nil && !in.Status.Valid() {
		return models.Product{}, apperrors.Validation("unknown product status %q", *in.Status)
	}

	price := existing.Price
	if in.Price != nil {
		price = *in.Price
	}
	discount := existing.DiscountPrice
	if in.DiscountPrice != nil {
		discount = in.DiscountPrice
	}
	if in.RemoveDiscount {
		update.DiscountPrice = nil
		discount = nil
	}
	if err := validateDiscount(price, discount); err != nil {
		return models.Product{}, err
	}

	product, err := s.store.Products().Update(ctx, id, update)
	if err != nil {
		return models.Product{}, internalError(s.logger, err, "update product failed")
	}
	return product, nil
}

// DeleteProduct removes a product from the catalog. Orders keep their item
// snapshots; cancelling them later simply skips the missing stock.
func (s *CatalogService) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	err := s.store.Products().Delete(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return apperrors.NotFound("product %s not found", id.Hex())
	}
	if err != nil {
		return internalError(s.logger, err, "delete product failed")
	}
	s.logger.Info().Str("productId", id.Hex()).Msg("product deleted")
	return nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	product, err := s.store.Products().FindByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return models.Product{}, apperrors.NotFound("product %s not found", id.Hex())
	}
	if err != nil {
		return models.Product{}, internalError(s.logger, err, "load product failed")
	}
	return product, nil
}

// ListProducts pages through the catalog. Storefront callers pass
// ActiveOnly so inactive products stay hidden.
func (s *CatalogService) ListProducts(ctx context.Context, filter database.ProductFilter) (ProductPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > maxOrderPageSize {
		filter.Limit = defaultOrderPageSize
	}

	products, total, err := s.store.Products().List(ctx, filter)
	if err != nil {
		return ProductPage{}, internalError(s.logger, err, "list products failed")
	}
	return ProductPage{Products: products, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}
