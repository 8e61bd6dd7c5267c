package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/models"
)

var (
	ErrNotFound             = errors.New("document not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	ErrDuplicateCartLine    = errors.New("cart already has a line for this product")
)

// Store is the persistence boundary. Every repository call made with the
// context handed to a WithTx callback joins that transaction.
type Store interface {
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	Notes() NoteRepository
	Stats() StatsRepository

	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type ProductFilter struct {
	ActiveOnly bool
	// Search matches product names case-insensitively.
	Search string
	Page   int64
	Limit  int64
}

type ProductUpdate struct {
	Name          *string
	Price         *float64
	DiscountPrice *float64
	ClearDiscount bool
	Quantity      *int
	Status        *models.ProductStatus
	ImagePath     *string
}

type ProductRepository interface {
	Insert(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, update ProductUpdate) (models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// DecrementStock removes qty units only if at least qty are on hand,
	// otherwise it returns ErrInsufficientStock and changes nothing.
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error
	// IncrementStock returns false when the product no longer exists.
	IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error)
}

type CartItemUpdate struct {
	Quantity *int
	Selected *bool
	Notes    *string
}

type CartRepository interface {
	GetOrCreateActive(ctx context.Context, userID primitive.ObjectID) (models.Cart, error)
	SetTotal(ctx context.Context, cartID primitive.ObjectID, total float64) error
	InsertItem(ctx context.Context, item *models.CartItem) error
	FindItem(ctx context.Context, itemID primitive.ObjectID) (models.CartItem, error)
	FindItemByProduct(ctx context.Context, cartID, productID primitive.ObjectID) (models.CartItem, error)
	UpdateItem(ctx context.Context, itemID primitive.ObjectID, update CartItemUpdate) (models.CartItem, error)
	DeleteItems(ctx context.Context, cartID primitive.ObjectID, itemIDs []primitive.ObjectID) (int64, error)
	ListItems(ctx context.Context, cartID primitive.ObjectID) ([]models.CartItem, error)
}

type OrderFilter struct {
	UserID        *primitive.ObjectID
	OrderStatus   *models.OrderStatus
	PaymentStatus *models.PaymentStatus
	Page          int64
	Limit         int64
}

type OrderUpdate struct {
	OrderStatus           *models.OrderStatus
	PaymentStatus         *models.PaymentStatus
	TransactionID         *string
	TrackingNumber        *string
	ShippingProvider      *string
	EstimatedDeliveryDate *time.Time
	DeliveredAt           *time.Time
	CancelledAt           *time.Time
	Deleted               *bool
	DeletedAt             *time.Time
	ClearDeletedAt        bool
	// Touch bumps updatedAt. Soft delete and restore leave it alone.
	Touch bool
}

type OrderRepository interface {
	// Insert returns ErrDuplicateOrderNumber when the order number is taken.
	Insert(ctx context.Context, order *models.Order) error
	InsertItems(ctx context.Context, items []models.OrderItem) error
	// FindByID resolves soft-deleted orders too.
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	ListItems(ctx context.Context, orderID primitive.ObjectID) ([]models.OrderItem, error)
	Update(ctx context.Context, id primitive.ObjectID, update OrderUpdate) (models.Order, error)
	ListActive(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	ListIncludingDeleted(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
}

type NoteRepository interface {
	Insert(ctx context.Context, note *models.OrderNote) error
	ListByOrder(ctx context.Context, orderID primitive.ObjectID) ([]models.OrderNote, error)
}

type DailyCount struct {
	Date  string `bson:"_id" json:"date"`
	Count int64  `bson:"count" json:"count"`
}

type ProductSales struct {
	ProductID   primitive.ObjectID `bson:"_id" json:"productId"`
	ProductName string             `bson:"productName" json:"productName"`
	Quantity    int64              `bson:"quantity" json:"quantity"`
	Revenue     float64            `bson:"revenue" json:"revenue"`
}

type RevenuePoint struct {
	Period     string  `bson:"_id" json:"period"`
	Revenue    float64 `bson:"revenue" json:"revenue"`
	OrderCount int64   `bson:"orderCount" json:"orderCount"`
}

type PaymentMethodStats struct {
	Method      models.PaymentMethod `bson:"_id" json:"paymentMethod"`
	OrderCount  int64                `bson:"orderCount" json:"orderCount"`
	TotalAmount float64              `bson:"totalAmount" json:"totalAmount"`
}

// RevenueBucket is the width of one point in a revenue series.
type RevenueBucket string

const (
	BucketDay   RevenueBucket = "day"
	BucketWeek  RevenueBucket = "week"
	BucketMonth RevenueBucket = "month"
)

// ParseRevenueBucket falls back to days for anything unrecognized.
func ParseRevenueBucket(raw string) RevenueBucket {
	switch b := RevenueBucket(raw); b {
	case BucketWeek, BucketMonth:
		return b
	}
	return BucketDay
}

// Label names the bucket t falls into: 2026-03-14, 2026-W11 or 2026-03.
// Weeks are ISO weeks.
func (b RevenueBucket) Label(t time.Time) string {
	t = t.UTC()
	switch b {
	case BucketWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case BucketMonth:
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// StatsRepository serves read-only rollups over non-deleted orders created
// at or after since.
type StatsRepository interface {
	Revenue(ctx context.Context, since time.Time, statuses []models.OrderStatus) (float64, error)
	CountOrders(ctx context.Context, since time.Time) (int64, error)
	CountByStatus(ctx context.Context, since time.Time) (map[models.OrderStatus]int64, error)
	DailyCounts(ctx context.Context, since time.Time) ([]DailyCount, error)
	// RevenueSeries sums totals per bucket, oldest first.
	RevenueSeries(ctx context.Context, since time.Time, bucket RevenueBucket, statuses []models.OrderStatus) ([]RevenuePoint, error)
	// PaymentMethods counts orders and totals per payment method, skipping
	// cancelled orders.
	PaymentMethods(ctx context.Context, since time.Time) ([]PaymentMethodStats, error)
	// TopProducts ranks products by quantity sold in orders with one of the
	// given statuses.
	TopProducts(ctx context.Context, since time.Time, statuses []models.OrderStatus, limit int64) ([]ProductSales, error)
	ProductsSold(ctx context.Context, since time.Time, statuses []models.OrderStatus) (int64, error)
	Recent(ctx context.Context, limit int64) ([]models.Order, error)
}

// Offset converts a 1-based page into a skip count.
func (f OrderFilter) Offset() int64 {
	return offset(f.Page, f.Limit)
}

func (f ProductFilter) Offset() int64 {
	return offset(f.Page, f.Limit)
}

func offset(page, limit int64) int64 {
	if page < 1 || limit < 1 {
		return 0
	}
	return (page - 1) * limit
}
