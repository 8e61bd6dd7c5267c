package memory

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/models"
)

type notes struct {
	s *Store
}

func (r *notes) Insert(ctx context.Context, note *models.OrderNote) error {
	defer r.s.lock(ctx)()

	if note.ID.IsZero() {
		note.ID = primitive.NewObjectID()
	}
	r.s.notes[note.ID] = *note
	r.s.record(ctx, restore(r.s.notes, note.ID, models.OrderNote{}, false))
	return nil
}

func (r *notes) ListByOrder(ctx context.Context, orderID primitive.ObjectID) ([]models.OrderNote, error) {
	defer r.s.lock(ctx)()

	list := make([]models.OrderNote, 0)
	for _, note := range r.s.notes {
		if note.OrderID == orderID {
			list = append(list, note)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID.Hex() < list[j].ID.Hex()
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}
