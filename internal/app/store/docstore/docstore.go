// Package docstore defines the contract every record store adapter satisfies.
//
// The reconciliation engine never talks to MongoDB or Firestore directly. It
// sees collections of Documents addressed by opaque string ids and sends back
// Writes. Adapters normalize stored values to a small set of Go types so rules
// can compare values without knowing which backend produced them:
//
//	string, bool, int64, float64, time.Time, []any, map[string]any, nil
package docstore

import (
	"context"
	"errors"
	"fmt"
)

// Document is one stored record.
type Document struct {
	ID     string
	Fields map[string]any
}

// Get returns a field value and whether the field is present.
func (d Document) Get(field string) (any, bool) {
	v, ok := d.Fields[field]
	return v, ok
}

// Clone returns a copy whose Fields map can be modified independently.
// Nested maps and slices are shared.
func (d Document) Clone() Document {
	return Document{ID: d.ID, Fields: CloneFields(d.Fields)}
}

// CloneFields makes a shallow copy of a field map.
func CloneFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Iterator walks the documents of one collection. Next returns ErrDone when
// the collection is exhausted.
type Iterator interface {
	Next(ctx context.Context) (Document, error)
	Close()
}

// Store is the record store adapter.
type Store interface {
	// Documents starts a fresh pass over every document in collection.
	// Ordering is unspecified. An empty or missing collection yields ErrDone
	// on the first Next.
	Documents(ctx context.Context, collection string) (Iterator, error)

	// Get loads one document. Returns ErrNotFound when absent.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Commit applies update, upsert, and delete writes as one store batch.
	// OpCreate writes are rejected; use CreateIfAbsent.
	Commit(ctx context.Context, writes []Write) error

	// CreateIfAbsent creates a document and returns ErrAlreadyExists when a
	// document is already stored under id.
	CreateIfAbsent(ctx context.Context, collection, id string, fields map[string]any) error

	// MaxBatchOps is the hard cap on writes per Commit.
	MaxBatchOps() int

	Close(ctx context.Context) error
}

var (
	// ErrDone is returned by Iterator.Next after the last document.
	ErrDone = errors.New("docstore: no more documents")
	// ErrNotFound is returned by Get for a missing document.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrAlreadyExists is returned by CreateIfAbsent when the id is taken.
	ErrAlreadyExists = errors.New("docstore: document already exists")
	// ErrCreateInBatch is returned by Commit when a batch holds an OpCreate.
	ErrCreateInBatch = errors.New("docstore: create writes must use CreateIfAbsent")
)

// TransientError wraps a failure that may succeed when retried
// (network, timeout, quota, rate limit, open circuit breaker).
type TransientError struct {
	Op         string
	Collection string
	Err        error
}

func (e *TransientError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transient store error during %s on %s: %v", e.Op, e.Collection, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
