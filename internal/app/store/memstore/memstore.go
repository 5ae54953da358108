// Package memstore is an in-memory docstore.Store. Commit is atomic: either
// every write in the batch applies or none does.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
)

// Store holds collections in maps guarded by a mutex.
type Store struct {
	mu       sync.Mutex
	data     map[string]map[string]map[string]any
	maxOps   int
	commits  int
	creates  int
	failNext []error

	// BeforeCommit, when set, runs before each Commit and may veto it.
	BeforeCommit func(writes []docstore.Write) error
}

// New returns an empty store whose batch cap is 500.
func New() *Store {
	return &Store{data: make(map[string]map[string]map[string]any), maxOps: 500}
}

// SetMaxBatchOps overrides the batch cap.
func (s *Store) SetMaxBatchOps(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxOps = n
}

// FailCommits queues errors returned by the next Commit calls, in order.
func (s *Store) FailCommits(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = append(s.failNext, errs...)
}

// Put stores a document directly, bypassing batch accounting.
func (s *Store) Put(collection, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coll(collection)[id] = docstore.NormalizeFields(fields)
}

// Snapshot returns a copy of one stored document.
func (s *Store) Snapshot(collection, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.data[collection][id]
	if !ok {
		return nil, false
	}
	return docstore.CloneFields(f), true
}

// Count returns the number of documents in collection.
func (s *Store) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[collection])
}

// Commits returns how many batches were committed successfully.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Creates returns how many documents CreateIfAbsent created.
func (s *Store) Creates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

func (s *Store) coll(name string) map[string]map[string]any {
	c, ok := s.data[name]
	if !ok {
		c = make(map[string]map[string]any)
		s.data[name] = c
	}
	return c
}

type iterator struct {
	docs []docstore.Document
	pos  int
}

func (it *iterator) Next(ctx context.Context) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	if it.pos >= len(it.docs) {
		return docstore.Document{}, docstore.ErrDone
	}
	d := it.docs[it.pos]
	it.pos++
	return d, nil
}

func (it *iterator) Close() {}

// Documents iterates a point-in-time copy of collection.
func (s *Store) Documents(ctx context.Context, collection string) (docstore.Iterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.data[collection]
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	docs := make([]docstore.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, docstore.Document{ID: id, Fields: docstore.CloneFields(c[id])})
	}
	return &iterator{docs: docs}, nil
}

// Get loads one document.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.data[collection][id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docstore.Document{ID: id, Fields: docstore.CloneFields(f)}, nil
}

// Commit applies writes atomically.
func (s *Store) Commit(ctx context.Context, writes []docstore.Write) error {
	if s.BeforeCommit != nil {
		if err := s.BeforeCommit(writes); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failNext) > 0 {
		err := s.failNext[0]
		s.failNext = s.failNext[1:]
		if err != nil {
			return err
		}
	}
	if len(writes) > s.maxOps {
		return fmt.Errorf("memstore: batch of %d exceeds cap %d", len(writes), s.maxOps)
	}
	for _, w := range writes {
		switch w.Op {
		case docstore.OpCreate:
			return docstore.ErrCreateInBatch
		case docstore.OpUpdate:
			if _, ok := s.data[w.Collection][w.ID]; !ok {
				return fmt.Errorf("memstore: update %s: %w", w.Key(), docstore.ErrNotFound)
			}
		case docstore.OpUpsert, docstore.OpDelete:
		default:
			return fmt.Errorf("memstore: unknown op %d", w.Op)
		}
	}
	for _, w := range writes {
		c := s.coll(w.Collection)
		switch w.Op {
		case docstore.OpDelete:
			delete(c, w.ID)
		case docstore.OpUpdate, docstore.OpUpsert:
			doc, ok := c[w.ID]
			if !ok {
				doc = make(map[string]any)
				c[w.ID] = doc
			}
			for k, v := range w.Fields {
				if docstore.IsDelete(v) {
					delete(doc, k)
					continue
				}
				doc[k] = docstore.NormalizeValue(v)
			}
		}
	}
	s.commits++
	return nil
}

// CreateIfAbsent creates a document unless one exists under id.
func (s *Store) CreateIfAbsent(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(collection)
	if _, ok := c[id]; ok {
		return docstore.ErrAlreadyExists
	}
	c[id] = docstore.NormalizeFields(fields)
	s.creates++
	return nil
}

// MaxBatchOps returns the batch cap.
func (s *Store) MaxBatchOps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxOps
}

// Close is a no-op.
func (s *Store) Close(ctx context.Context) error { return nil }
