// internal/app/store/mongostore/mongostore.go
//
// Package mongostore is the MongoDB docstore.Store. Document ids are the
// string form of _id (hex for ObjectIDs). Every store call passes through a
// rate limiter and a circuit breaker so a struggling server sheds load
// instead of being hammered by retries.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MaxBatchOps is the per-Commit cap. The driver splits large bulk writes
// itself, so this only bounds memory.
const MaxBatchOps = 100000

// Config configures a connection.
type Config struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	// RPS caps store calls per second. Zero disables limiting.
	RPS float64
	// ConnectTimeout bounds connect plus ping.
	ConnectTimeout time.Duration
}

// Store implements docstore.Store over one database.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	log     *zap.Logger

	// oids remembers which scanned ids were stored as ObjectIDs so writes
	// address the same _id type.
	oids sync.Map
}

// Connect dials MongoDB, pings the primary, and returns a Store that owns the
// client. Close disconnects it.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetServerSelectionTimeout(cfg.ConnectTimeout)

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := New(client.Database(cfg.Database), cfg.RPS, logger)
	s.client = client
	logger.Info("connected to MongoDB", zap.String("database", cfg.Database))
	return s, nil
}

// New wraps an existing database handle. The caller keeps ownership of the
// client.
func New(db *mongo.Database, rps float64, logger *zap.Logger) *Store {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &Store{
		db:      db,
		cb:      newBreaker("mongostore", logger),
		limiter: rate.NewLimiter(limit, burst),
		log:     logger,
	}
}

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// call waits for the limiter, then runs fn under the breaker.
func (s *Store) call(ctx context.Context, op, coll string, fn func() error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return classify(op, coll, err)
}

// classify marks retryable failures as docstore.TransientError.
func classify(op, coll string, err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return &docstore.TransientError{Op: op, Collection: coll, Err: err}
	}
	return fmt.Errorf("%s %s: %w", op, coll, err)
}

func isTransient(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel("RetryableWriteError") || se.HasErrorLabel("TransientTransactionError")
	}
	return false
}

func (s *Store) key(coll, id string) string { return coll + "/" + id }

// idValue returns the _id value to address id with, preferring the type the
// document was read with.
func (s *Store) idValue(coll, id string) any {
	if v, ok := s.oids.Load(s.key(coll, id)); ok {
		return v
	}
	return id
}

// idFilter matches id stored either as a string or as the ObjectID it spells.
func (s *Store) idFilter(coll, id string) bson.M {
	if v, ok := s.oids.Load(s.key(coll, id)); ok {
		return bson.M{"_id": v}
	}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

// toDocument splits _id off a raw document.
func (s *Store) toDocument(coll string, raw bson.M) docstore.Document {
	var id string
	switch v := raw["_id"].(type) {
	case primitive.ObjectID:
		id = v.Hex()
		s.oids.Store(s.key(coll, id), v)
	case string:
		id = v
	default:
		id = fmt.Sprint(v)
	}
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		fields[k] = fromBSON(v)
	}
	return docstore.Document{ID: id, Fields: fields}
}

type iterator struct {
	s    *Store
	coll string
	cur  *mongo.Cursor
}

func (it *iterator) Next(ctx context.Context) (docstore.Document, error) {
	if it.cur.Next(ctx) {
		var raw bson.M
		if err := it.cur.Decode(&raw); err != nil {
			return docstore.Document{}, fmt.Errorf("decode %s: %w", it.coll, err)
		}
		return it.s.toDocument(it.coll, raw), nil
	}
	if err := it.cur.Err(); err != nil {
		return docstore.Document{}, classify("scan", it.coll, err)
	}
	return docstore.Document{}, docstore.ErrDone
}

func (it *iterator) Close() {
	_ = it.cur.Close(context.Background())
}

// Documents opens a cursor over the whole collection.
func (s *Store) Documents(ctx context.Context, collection string) (docstore.Iterator, error) {
	var cur *mongo.Cursor
	err := s.call(ctx, "scan", collection, func() error {
		var err error
		cur, err = s.db.Collection(collection).Find(ctx, bson.M{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &iterator{s: s, coll: collection, cur: cur}, nil
}

// Get loads one document by id.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var raw bson.M
	found := true
	err := s.call(ctx, "get", collection, func() error {
		err := s.db.Collection(collection).FindOne(ctx, s.idFilter(collection, id)).Decode(&raw)
		if errors.Is(err, mongo.ErrNoDocuments) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return docstore.Document{}, err
	}
	if !found {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return s.toDocument(collection, raw), nil
}

// models converts writes for one collection into bulk write models.
func (s *Store) models(coll string, writes []docstore.Write) ([]mongo.WriteModel, error) {
	out := make([]mongo.WriteModel, 0, len(writes))
	for _, w := range writes {
		switch w.Op {
		case docstore.OpDelete:
			out = append(out, mongo.NewDeleteOneModel().SetFilter(s.idFilter(coll, w.ID)))
		case docstore.OpUpdate:
			out = append(out, mongo.NewUpdateOneModel().
				SetFilter(s.idFilter(coll, w.ID)).
				SetUpdate(updateDoc(w)))
		case docstore.OpUpsert:
			out = append(out, mongo.NewUpdateOneModel().
				SetFilter(bson.M{"_id": s.idValue(coll, w.ID)}).
				SetUpdate(updateDoc(w)).
				SetUpsert(true))
		case docstore.OpCreate:
			return nil, docstore.ErrCreateInBatch
		default:
			return nil, fmt.Errorf("unknown op %v for %s", w.Op, w.Key())
		}
	}
	return out, nil
}

// updateDoc builds the $set/$unset document for a write.
func updateDoc(w docstore.Write) bson.M {
	update := bson.M{}
	if set := w.SetFields(); len(set) > 0 {
		update["$set"] = bson.M(set)
	}
	if unset := w.UnsetFields(); len(unset) > 0 {
		u := bson.M{}
		for _, f := range unset {
			u[f] = ""
		}
		update["$unset"] = u
	}
	return update
}

// Commit sends one unordered bulk write per collection. MongoDB has no
// cross-collection batch, so a failure can leave earlier collections
// written; the error names how many writes failed.
func (s *Store) Commit(ctx context.Context, writes []docstore.Write) error {
	if len(writes) > MaxBatchOps {
		return fmt.Errorf("commit: %d writes exceeds cap %d", len(writes), MaxBatchOps)
	}
	var order []string
	byColl := make(map[string][]docstore.Write)
	for _, w := range writes {
		if _, ok := byColl[w.Collection]; !ok {
			order = append(order, w.Collection)
		}
		byColl[w.Collection] = append(byColl[w.Collection], w)
	}

	for _, coll := range order {
		models, err := s.models(coll, byColl[coll])
		if err != nil {
			return err
		}
		if len(models) == 0 {
			continue
		}
		err = s.call(ctx, "commit", coll, func() error {
			_, err := s.db.Collection(coll).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
			return err
		})
		if err != nil {
			var bulkErr mongo.BulkWriteException
			if errors.As(err, &bulkErr) && len(bulkErr.WriteErrors) > 0 {
				return fmt.Errorf("commit %s: %d of %d writes failed, first: %s: %w",
					coll, len(bulkErr.WriteErrors), len(models), bulkErr.WriteErrors[0].Message, err)
			}
			return err
		}
	}
	return nil
}

// CreateIfAbsent inserts a document, reporting a duplicate _id as
// docstore.ErrAlreadyExists.
func (s *Store) CreateIfAbsent(ctx context.Context, collection, id string, fields map[string]any) error {
	doc := bson.M{"_id": s.idValue(collection, id)}
	for k, v := range fields {
		if docstore.IsDelete(v) {
			continue
		}
		doc[k] = v
	}
	dup := false
	err := s.call(ctx, "create", collection, func() error {
		_, err := s.db.Collection(collection).InsertOne(ctx, doc)
		if wafflemongo.IsDup(err) {
			dup = true
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	if dup {
		return docstore.ErrAlreadyExists
	}
	return nil
}

// MaxBatchOps reports the per-Commit cap.
func (s *Store) MaxBatchOps() int { return MaxBatchOps }

// Close disconnects the client when this Store opened it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		s.log.Error("failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	s.log.Info("disconnected from MongoDB")
	return nil
}

var _ docstore.Store = (*Store)(nil)
