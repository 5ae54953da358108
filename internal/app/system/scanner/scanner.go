// Package scanner walks every document of a named collection.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/timeouts"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scanner opens cursors over a store. It never writes.
type Scanner struct {
	store docstore.Store
	log   *zap.Logger
}

// New creates a Scanner.
func New(store docstore.Store, logger *zap.Logger) *Scanner {
	return &Scanner{store: store, log: logger}
}

// Cursor yields documents lazily, in the manner of mongo.Cursor:
//
//	cur := sc.Scan(ctx, "donations")
//	defer cur.Close()
//	for cur.Next(ctx) {
//	    doc := cur.Doc()
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor struct {
	store      docstore.Store
	collection string
	it         docstore.Iterator
	doc        docstore.Document
	err        error
	done       bool
}

// Scan returns a cursor positioned before the first document. Each call
// starts a new pass; nothing is read until Next.
func (s *Scanner) Scan(ctx context.Context, collection string) *Cursor {
	return &Cursor{store: s.store, collection: collection}
}

// Next advances the cursor. It returns false at the end of the collection or
// on error; check Err to tell them apart.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.done {
		return false
	}
	if c.it == nil {
		it, err := c.store.Documents(ctx, c.collection)
		if err != nil {
			c.fail(fmt.Errorf("scan %s: %w", c.collection, err))
			return false
		}
		c.it = it
	}
	doc, err := c.it.Next(ctx)
	if errors.Is(err, docstore.ErrDone) {
		c.Close()
		return false
	}
	if err != nil {
		c.fail(fmt.Errorf("scan %s: %w", c.collection, err))
		return false
	}
	c.doc = doc
	return true
}

func (c *Cursor) fail(err error) {
	c.err = err
	c.Close()
}

// Doc returns the current document.
func (c *Cursor) Doc() docstore.Document { return c.doc }

// Err returns the error that stopped the cursor, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases the underlying iterator. Safe to call more than once.
func (c *Cursor) Close() {
	c.done = true
	if c.it != nil {
		c.it.Close()
		c.it = nil
	}
}

// All reads a whole collection under the Long timeout.
func (s *Scanner) All(ctx context.Context, collection string) ([]docstore.Document, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), s.log, "scan "+collection)
	defer cancel()

	cur := s.Scan(ctx, collection)
	defer cur.Close()

	var docs []docstore.Document
	for cur.Next(ctx) {
		docs = append(docs, cur.Doc())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	s.log.Debug("scanned collection",
		zap.String("collection", collection),
		zap.Int("count", len(docs)))
	return docs, nil
}

// AllOf reads several collections concurrently, at most limit at a time
// (no limit when limit < 1). Collections are independent and read-only, so
// their order does not matter.
func (s *Scanner) AllOf(ctx context.Context, collections []string, limit int) (map[string][]docstore.Document, error) {
	out := make(map[string][]docstore.Document, len(collections))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, name := range collections {
		g.Go(func() error {
			docs, err := s.All(gctx, name)
			if err != nil {
				return fmt.Errorf("scan %s: %w", name, err)
			}
			mu.Lock()
			out[name] = docs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
