// Package memory is an in-process database.Store. Transactions are
// serialized and roll back through an undo log, which gives the same
// all-or-nothing behavior the Mongo store gets from server transactions.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/database"
	"storeapi/internal/models"
)

type txKey struct{}

type txLog struct {
	undo []func()
}

type Store struct {
	// txMu serializes transactions and standalone writes; mu guards the maps.
	txMu sync.Mutex
	mu   sync.Mutex

	products   map[primitive.ObjectID]models.Product
	carts      map[primitive.ObjectID]models.Cart
	cartItems  map[primitive.ObjectID]models.CartItem
	orders     map[primitive.ObjectID]models.Order
	orderItems map[primitive.ObjectID]models.OrderItem
	notes      map[primitive.ObjectID]models.OrderNote

	now func() time.Time
}

var _ database.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		products:   make(map[primitive.ObjectID]models.Product),
		carts:      make(map[primitive.ObjectID]models.Cart),
		cartItems:  make(map[primitive.ObjectID]models.CartItem),
		orders:     make(map[primitive.ObjectID]models.Order),
		orderItems: make(map[primitive.ObjectID]models.OrderItem),
		notes:      make(map[primitive.ObjectID]models.OrderNote),
		now:        time.Now,
	}
}

func (s *Store) Products() database.ProductRepository { return &products{s: s} }
func (s *Store) Carts() database.CartRepository       { return &carts{s: s} }
func (s *Store) Orders() database.OrderRepository     { return &orders{s: s} }
func (s *Store) Notes() database.NoteRepository       { return &notes{s: s} }
func (s *Store) Stats() database.StatsRepository      { return &stats{s: s} }

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

// WithTx joins an enclosing transaction when ctx already carries one.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txLog); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	log := &txLog{}
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		s.mu.Lock()
		for i := len(log.undo) - 1; i >= 0; i-- {
			log.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// lock takes the locks a repository call needs and returns the release func.
func (s *Store) lock(ctx context.Context) func() {
	if _, ok := ctx.Value(txKey{}).(*txLog); ok {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// record registers an undo step. Must be called with mu held.
func (s *Store) record(ctx context.Context, undo func()) {
	if log, ok := ctx.Value(txKey{}).(*txLog); ok {
		log.undo = append(log.undo, undo)
	}
}

func restore[K comparable, V any](m map[K]V, key K, prev V, existed bool) func() {
	return func() {
		if existed {
			m[key] = prev
			return
		}
		delete(m, key)
	}
}

func paginate[T any](rows []T, offset, limit int64) []T {
	if limit <= 0 {
		return rows
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= int64(len(rows)) {
		return []T{}
	}
	end := offset + limit
	if end > int64(len(rows)) {
		end = int64(len(rows))
	}
	return rows[offset:end]
}

func newestFirst(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID.Hex() > orders[j].ID.Hex()
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
