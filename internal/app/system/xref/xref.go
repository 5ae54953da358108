// Package xref loads related collections into memory so foreign keys can be
// resolved without point reads.
//
// The snapshot is read once per run and never refreshed from the store. A run
// assumes the reference collections are quiescent while it executes; writes
// made by the live app during a run are not observed. The only changes the
// snapshot sees are the run's own planned writes, applied through Apply, so
// collections evaluated later in the run see corrections made earlier.
package xref

import (
	"context"
	"sort"
	"sync"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/scanner"
	"go.uber.org/zap"
)

// Resolver maps collection -> id -> fields.
type Resolver struct {
	mu      sync.RWMutex
	data    map[string]map[string]map[string]any
	indexes map[string]map[string][]string // "collection\x00field" -> value -> ids
}

// Load reads every named collection, up to limit at a time, and builds a
// resolver over them.
func Load(ctx context.Context, sc *scanner.Scanner, collections []string, limit int, logger *zap.Logger) (*Resolver, error) {
	docs, err := sc.AllOf(ctx, collections, limit)
	if err != nil {
		return nil, err
	}
	logger.Info("reference snapshot loaded", zap.Int("collections", len(collections)))
	return FromDocuments(docs), nil
}

// FromDocuments builds a resolver from documents already in memory.
func FromDocuments(byCollection map[string][]docstore.Document) *Resolver {
	r := &Resolver{
		data:    make(map[string]map[string]map[string]any, len(byCollection)),
		indexes: make(map[string]map[string][]string),
	}
	for name, docs := range byCollection {
		m := make(map[string]map[string]any, len(docs))
		for _, d := range docs {
			m[d.ID] = docstore.NormalizeFields(d.Fields)
		}
		r.data[name] = m
	}
	return r
}

// Resolve returns the fields stored under collection/id. The returned map is
// shared and must not be modified.
func (r *Resolver) Resolve(collection, id string) (map[string]any, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.data[collection][id]
	return f, ok
}

// Len returns the number of documents in collection.
func (r *Resolver) Len(collection string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data[collection])
}

// IDs returns the ids of collection in sorted order.
func (r *Resolver) IDs(collection string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.data[collection]))
	for id := range r.data[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Where returns the documents of collection whose string field equals value,
// ordered by id. The index per (collection, field) is built on first use and
// dropped by Apply.
func (r *Resolver) Where(collection, field, value string) []docstore.Document {
	key := collection + "\x00" + field

	r.mu.RLock()
	idx, ok := r.indexes[key]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		idx, ok = r.indexes[key]
		if !ok {
			idx = make(map[string][]string)
			for id, f := range r.data[collection] {
				if v := docstore.FieldString(f, field); v != "" {
					idx[v] = append(idx[v], id)
				}
			}
			for _, ids := range idx {
				sort.Strings(ids)
			}
			r.indexes[key] = idx
		}
		r.mu.Unlock()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := idx[value]
	out := make([]docstore.Document, 0, len(ids))
	for _, id := range ids {
		if f, ok := r.data[collection][id]; ok {
			out = append(out, docstore.Document{ID: id, Fields: f})
		}
	}
	return out
}

// Apply overlays planned writes onto the snapshot. Stored maps are replaced,
// never mutated, so maps handed out by Resolve stay stable.
func (r *Resolver) Apply(writes []docstore.Write) {
	if len(writes) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range writes {
		coll, ok := r.data[w.Collection]
		if !ok {
			coll = make(map[string]map[string]any)
			r.data[w.Collection] = coll
		}
		switch w.Op {
		case docstore.OpDelete:
			delete(coll, w.ID)
		case docstore.OpCreate:
			if _, exists := coll[w.ID]; !exists {
				coll[w.ID] = docstore.NormalizeFields(w.Fields)
			}
		case docstore.OpUpdate, docstore.OpUpsert:
			prev, exists := coll[w.ID]
			if !exists && w.Op == docstore.OpUpdate {
				continue
			}
			next := docstore.CloneFields(prev)
			for k, v := range w.Fields {
				if docstore.IsDelete(v) {
					delete(next, k)
				} else {
					next[k] = docstore.NormalizeValue(v)
				}
			}
			coll[w.ID] = next
		}
	}
	r.indexes = make(map[string]map[string][]string)
}
