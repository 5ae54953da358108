// internal/app/store/fsstore/fsstore.go
//
// Package fsstore is the Cloud Firestore docstore.Store. A Commit is one
// atomic WriteBatch, so the batch writer's chunk size must stay under
// Firestore's 500-write limit.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MaxBatchOps is Firestore's limit on writes per batch.
const MaxBatchOps = 500

// EmulatorEnv is read by the Firestore client; when set, no credentials are
// needed.
const EmulatorEnv = "FIRESTORE_EMULATOR_HOST"

// Config configures a client.
type Config struct {
	ProjectID       string
	CredentialsFile string
	// RPS caps store calls per second. Zero disables limiting.
	RPS float64
}

// Store implements docstore.Store over one Firestore project.
type Store struct {
	client  *firestore.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// UsingEmulator reports whether the emulator host is configured.
func UsingEmulator() bool {
	return os.Getenv(EmulatorEnv) != ""
}

// Connect creates a Firestore client. Credentials come from CredentialsFile
// when set, otherwise from the emulator or application default credentials.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" && !UsingEmulator() {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect firestore: %w", err)
	}
	logger.Info("connected to Firestore",
		zap.String("project", cfg.ProjectID),
		zap.Bool("emulator", UsingEmulator()))
	return New(client, cfg.RPS, logger), nil
}

// New wraps a client. Close closes it.
func New(client *firestore.Client, rps float64, logger *zap.Logger) *Store {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		if int(rps) > burst {
			burst = int(rps)
		}
	}
	return &Store{client: client, limiter: rate.NewLimiter(limit, burst), log: logger}
}

// classify marks retryable gRPC failures as docstore.TransientError.
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
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}

type docIterator struct {
	coll string
	it   *firestore.DocumentIterator
}

func (d *docIterator) Next(ctx context.Context) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	snap, err := d.it.Next()
	if errors.Is(err, iterator.Done) {
		return docstore.Document{}, docstore.ErrDone
	}
	if err != nil {
		return docstore.Document{}, classify("scan", d.coll, err)
	}
	return toDocument(snap.Ref.ID, snap.Data()), nil
}

func (d *docIterator) Close() { d.it.Stop() }

// Documents streams every document in collection.
func (s *Store) Documents(ctx context.Context, collection string) (docstore.Iterator, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return &docIterator{coll: collection, it: s.client.Collection(collection).Documents(ctx)}, nil
}

// Get loads one document.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return docstore.Document{}, err
	}
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, classify("get", collection, err)
	}
	return toDocument(snap.Ref.ID, snap.Data()), nil
}

// Commit applies writes as one atomic batch.
func (s *Store) Commit(ctx context.Context, writes []docstore.Write) error {
	if len(writes) == 0 {
		return nil
	}
	if len(writes) > MaxBatchOps {
		return fmt.Errorf("commit: %d writes exceeds Firestore batch limit %d", len(writes), MaxBatchOps)
	}
	b := s.client.Batch()
	for _, w := range writes {
		ref := s.client.Collection(w.Collection).Doc(w.ID)
		switch w.Op {
		case docstore.OpUpdate:
			b.Update(ref, toUpdates(w))
		case docstore.OpUpsert:
			b.Set(ref, toData(w.Fields), firestore.MergeAll)
		case docstore.OpDelete:
			b.Delete(ref)
		case docstore.OpCreate:
			return docstore.ErrCreateInBatch
		default:
			return fmt.Errorf("unknown op %v for %s", w.Op, w.Key())
		}
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := b.Commit(ctx); err != nil {
		return classify("commit", writes[0].Collection, err)
	}
	return nil
}

// CreateIfAbsent creates a document, reporting an existing one as
// docstore.ErrAlreadyExists.
func (s *Store) CreateIfAbsent(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	data := make(map[string]any, len(fields))
	for k, v := range fields {
		if !docstore.IsDelete(v) {
			data[k] = v
		}
	}
	_, err := s.client.Collection(collection).Doc(id).Create(ctx, data)
	if status.Code(err) == codes.AlreadyExists {
		return docstore.ErrAlreadyExists
	}
	return classify("create", collection, err)
}

// MaxBatchOps reports Firestore's batch limit.
func (s *Store) MaxBatchOps() int { return MaxBatchOps }

// Close closes the client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Close(); err != nil {
		s.log.Error("failed to close Firestore client", zap.Error(err))
		return err
	}
	s.log.Info("closed Firestore client")
	return nil
}

// toUpdates turns a write into field-path updates. Field names are used as
// single path segments so names containing dots are not split.
func toUpdates(w docstore.Write) []firestore.Update {
	keys := make([]string, 0, len(w.Fields))
	for k := range w.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		out = append(out, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: toValue(w.Fields[k])})
	}
	return out
}

// toData converts fields for a merge Set.
func toData(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = toValue(v)
	}
	return out
}

func toValue(v any) any {
	if docstore.IsDelete(v) {
		return firestore.Delete
	}
	return v
}

func toDocument(id string, data map[string]any) docstore.Document {
	fields := make(map[string]any, len(data))
	for k, v := range data {
		fields[k] = fromFirestore(v)
	}
	return docstore.Document{ID: id, Fields: fields}
}

// fromFirestore maps Firestore values onto the docstore value set. References
// become the referenced document id.
func fromFirestore(v any) any {
	switch t := v.(type) {
	case *firestore.DocumentRef:
		if t == nil {
			return nil
		}
		return t.ID
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromFirestore(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromFirestore(e)
		}
		return out
	}
	return docstore.NormalizeValue(v)
}

var _ docstore.Store = (*Store)(nil)
