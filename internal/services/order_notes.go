package services

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/apperrors"
	"storeapi/internal/models"
)

// AddNote appends a note to an order's log. Notes are never edited.
func (s *OrderService) AddNote(ctx context.Context, orderID primitive.ObjectID, text, noteType string, author *primitive.ObjectID) (models.OrderNote, error) {
	kind, err := models.ParseNoteType(noteType)
	if err != nil {
		return models.OrderNote{}, apperrors.Validation("%v", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.OrderNote{}, apperrors.Validation("note text is required")
	}

	if _, err := s.findOrder(ctx, orderID); err != nil {
		return models.OrderNote{}, internalError(s.logger, err, "load order failed")
	}

	note := models.OrderNote{
		OrderID:   orderID,
		AuthorID:  author,
		Note:      text,
		NoteType:  kind,
		CreatedAt: s.now(),
	}
	if err := s.store.Notes().Insert(ctx, &note); err != nil {
		return models.OrderNote{}, internalError(s.logger, err, "insert order note failed")
	}
	return note, nil
}

func (s *OrderService) ListNotes(ctx context.Context, orderID primitive.ObjectID) ([]models.OrderNote, error) {
	if _, err := s.findOrder(ctx, orderID); err != nil {
		return nil, internalError(s.logger, err, "load order failed")
	}
	notes, err := s.store.Notes().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, internalError(s.logger, err, "list order notes failed")
	}
	return notes, nil
}
