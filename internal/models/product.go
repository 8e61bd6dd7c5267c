package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

func (s ProductStatus) Valid() bool {
	return s == ProductActive || s == ProductInactive
}

// Product is owned by the catalog. Checkout reads its price fields and
// moves Quantity, which is the stock ledger.
type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Price         float64            `bson:"price" json:"price"`
	DiscountPrice *float64           `bson:"discountPrice,omitempty" json:"discountPrice,omitempty"`
	Quantity      int                `bson:"quantity" json:"quantity"`
	Status        ProductStatus      `bson:"status" json:"status"`
	ImagePath     string             `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// EffectivePrice is the unit price a buyer pays right now.
func (p Product) EffectivePrice() float64 {
	if p.DiscountPrice != nil && *p.DiscountPrice > 0 && *p.DiscountPrice < p.Price {
		return *p.DiscountPrice
	}
	return p.Price
}

func (p Product) IsActive() bool {
	return p.Status == ProductActive
}
