package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "COD"
	PaymentCard         PaymentMethod = "CARD"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMomo         PaymentMethod = "MOMO"
	PaymentVNPay        PaymentMethod = "VNPAY"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentCard, PaymentBankTransfer, PaymentMomo, PaymentVNPay:
		return true
	}
	return false
}

type Currency string

const (
	CurrencyVND Currency = "VND"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

func (c Currency) Valid() bool {
	return c == CurrencyVND || c == CurrencyUSD || c == CurrencyEUR
}

// CustomerInfo is copied onto the order at checkout and never follows later
// edits to the user's profile.
type CustomerInfo struct {
	Name    string `bson:"name" json:"name"`
	Email   string `bson:"email,omitempty" json:"email,omitempty"`
	Phone   string `bson:"phone" json:"phone"`
	Address string `bson:"address" json:"address"`
}

// Order is the persisted order document. Items and Notes live in their own
// collections and are attached on read.
type Order struct {
	ID                    primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrderNumber           string              `bson:"orderNumber" json:"orderNumber"`
	UserID                *primitive.ObjectID `bson:"userId" json:"userId"`
	Customer              CustomerInfo        `bson:"customer" json:"customer"`
	Subtotal              float64             `bson:"subtotal" json:"subtotal"`
	ShippingFee           float64             `bson:"shippingFee" json:"shippingFee"`
	Tax                   float64             `bson:"tax" json:"tax"`
	Discount              float64             `bson:"discount" json:"discount"`
	TotalAmount           float64             `bson:"totalAmount" json:"totalAmount"`
	Currency              Currency            `bson:"currency" json:"currency"`
	CouponCode            string              `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
	PaymentMethod         PaymentMethod       `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus         PaymentStatus       `bson:"paymentStatus" json:"paymentStatus"`
	OrderStatus           OrderStatus         `bson:"orderStatus" json:"orderStatus"`
	TransactionID         string              `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
	TrackingNumber        string              `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
	ShippingProvider      string              `bson:"shippingProvider,omitempty" json:"shippingProvider,omitempty"`
	EstimatedDeliveryDate *time.Time          `bson:"estimatedDeliveryDate,omitempty" json:"estimatedDeliveryDate,omitempty"`
	DeliveredAt           *time.Time          `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CancelledAt           *time.Time          `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	Note                  string              `bson:"note,omitempty" json:"note,omitempty"`
	Deleted               bool                `bson:"deleted" json:"deleted"`
	DeletedAt             *time.Time          `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt             time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time           `bson:"updatedAt" json:"updatedAt"`

	Items []OrderItem `bson:"-" json:"items,omitempty"`
	Notes []OrderNote `bson:"-" json:"notes,omitempty"`
}

// OwnedBy reports whether userID is the order's owner. Guest orders have no owner.
func (o Order) OwnedBy(userID primitive.ObjectID) bool {
	return o.UserID != nil && *o.UserID == userID
}

// OrderItem is a snapshot of a product line at purchase time.
type OrderItem struct {
	ID            primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	OrderID       primitive.ObjectID     `bson:"orderId" json:"orderId"`
	ProductID     primitive.ObjectID     `bson:"productId" json:"productId"`
	ProductName   string                 `bson:"productName" json:"productName"`
	ProductImage  string                 `bson:"productImage,omitempty" json:"productImage,omitempty"`
	Quantity      int                    `bson:"quantity" json:"quantity"`
	Price         float64                `bson:"price" json:"price"`
	OriginalPrice float64                `bson:"originalPrice" json:"originalPrice"`
	Discount      float64                `bson:"discount" json:"discount"`
	Options       map[string]interface{} `bson:"options,omitempty" json:"options,omitempty"`
	CreatedAt     time.Time              `bson:"createdAt" json:"createdAt"`
}
