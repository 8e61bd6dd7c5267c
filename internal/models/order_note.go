package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NoteType string

const (
	NoteGeneral         NoteType = "general"
	NoteStatusChange    NoteType = "status_change"
	NotePaymentUpdate   NoteType = "payment_update"
	NoteCustomerRequest NoteType = "customer_request"
	NoteInternal        NoteType = "internal"
)

func ParseNoteType(raw string) (NoteType, error) {
	if raw == "" {
		return NoteGeneral, nil
	}
	t := NoteType(raw)
	switch t {
	case NoteGeneral, NoteStatusChange, NotePaymentUpdate, NoteCustomerRequest, NoteInternal:
		return t, nil
	}
	return "", fmt.Errorf("unknown note type %q", raw)
}

// OrderNote is append-only.
type OrderNote struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrderID   primitive.ObjectID  `bson:"orderId" json:"orderId"`
	AuthorID  *primitive.ObjectID `bson:"authorId,omitempty" json:"authorId,omitempty"`
	Note      string              `bson:"note" json:"note"`
	NoteType  NoteType            `bson:"noteType" json:"noteType"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}
