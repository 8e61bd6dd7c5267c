package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	productsCollection   = "products"
	cartsCollection      = "carts"
	cartItemsCollection  = "cart_items"
	ordersCollection     = "orders"
	orderItemsCollection = "order_items"
	orderNotesCollection = "order_notes"
)

func Connect(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// MongoStore requires a replica set or sharded cluster: checkout and
// cancellation run as multi-document transactions.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{client: client, db: db}
}

func (s *MongoStore) Products() ProductRepository {
	return &mongoProducts{coll: s.db.Collection(productsCollection)}
}

func (s *MongoStore) Carts() CartRepository {
	return &mongoCarts{
		carts: s.db.Collection(cartsCollection),
		items: s.db.Collection(cartItemsCollection),
	}
}

func (s *MongoStore) Orders() OrderRepository {
	return &mongoOrders{
		orders: s.db.Collection(ordersCollection),
		items:  s.db.Collection(orderItemsCollection),
	}
}

func (s *MongoStore) Notes() NoteRepository {
	return &mongoNotes{coll: s.db.Collection(orderNotesCollection)}
}

func (s *MongoStore) Stats() StatsRepository {
	return &mongoStats{
		orders: s.db.Collection(ordersCollection),
		items:  s.db.Collection(orderItemsCollection),
	}
}

// WithTx runs fn in a snapshot transaction. The driver re-runs fn when the
// server reports a transient error such as a write conflict with a
// concurrent checkout; every attempt starts from a fresh snapshot, so stock
// checks are repeated against committed values. Errors returned by fn abort
// the transaction and are returned unchanged.
func (s *MongoStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	}, opts)
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return s.client.Ping(checkCtx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
