package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartCompleted CartStatus = "completed"
	CartAbandoned CartStatus = "abandoned"
)

// Cart is a user's basket. A user has at most one active cart.
type Cart struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	Status     CartStatus         `bson:"status" json:"status"`
	TotalPrice float64            `bson:"totalPrice" json:"totalPrice"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
	Items      []CartItem         `bson:"-" json:"items"`
}

type CartItem struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CartID    primitive.ObjectID `bson:"cartId" json:"cartId"`
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Selected  bool               `bson:"selected" json:"selected"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
	Product   *Product           `bson:"-" json:"product,omitempty"`
}
