// internal/app/system/batch/batch.go

// Package batch commits a reconcile plan to the store in bounded chunks.
//
// Chunks are committed one after another. A chunk is atomic in stores that
// support it, but there is no atomicity across chunks: when a chunk fails,
// the chunks before it stay committed and the error names the documents of
// the failed chunk. Every rule is idempotent, so re-running is the recovery.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// DefaultMaxOps stays well under Firestore's 500-write batch cap.
const DefaultMaxOps = 400

// Options configures a Writer.
type Options struct {
	DryRun  bool
	MaxOps  int
	Retries int
	Backoff time.Duration // first retry delay; doubles per attempt
}

// Result describes what Commit did.
type Result struct {
	DryRun    bool
	Planned   []docstore.Write
	Chunks    int // chunks committed
	Committed int // update, upsert, and delete writes committed
	Created   int // documents created
	Existing  int // creates that found the document already there
}

// ChunkError reports a chunk that could not be committed.
type ChunkError struct {
	Index int
	Keys  []string
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("commit chunk %d (%d writes: %s): %v", e.Index, len(e.Keys), strings.Join(e.Keys, ", "), e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Writer commits plans to one store.
type Writer struct {
	store docstore.Store
	opts  Options
	log   *zap.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// New validates opts against the store's batch cap.
func New(store docstore.Store, opts Options, logger *zap.Logger) (*Writer, error) {
	if opts.MaxOps == 0 {
		opts.MaxOps = DefaultMaxOps
	}
	if limit := store.MaxBatchOps(); opts.MaxOps < 1 || opts.MaxOps >= limit {
		return nil, fmt.Errorf("batch size %d must be between 1 and %d", opts.MaxOps, limit-1)
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Writer{store: store, opts: opts, log: logger, sleep: sleepCtx}, nil
}

// DryRun reports whether the writer only logs.
func (w *Writer) DryRun() bool { return w.opts.DryRun }

// Commit writes the plan. In dry-run mode it only logs what would be written.
//
// Cancelling ctx stops the writer before the next chunk; the chunk in flight
// always finishes.
func (w *Writer) Commit(ctx context.Context, writes []docstore.Write) (Result, error) {
	res := Result{DryRun: w.opts.DryRun, Planned: writes}

	if w.opts.DryRun {
		for _, wr := range writes {
			w.log.Debug("would write",
				zap.String("collection", wr.Collection),
				zap.String("id", wr.ID),
				zap.Stringer("op", wr.Op),
				zap.Strings("families", wr.Families),
			)
		}
		w.log.Info("dry run: nothing written", zap.Int("writes", len(writes)))
		return res, nil
	}

	var batched, creates []docstore.Write
	for _, wr := range writes {
		if wr.Op == docstore.OpCreate {
			creates = append(creates, wr)
		} else {
			batched = append(batched, wr)
		}
	}

	index := 0
	for _, chunk := range Chunks(batched, w.opts.MaxOps) {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("stopped before chunk %d: %w", index, err)
		}
		if err := w.retry(ctx, index, func(cctx context.Context) error {
			return w.store.Commit(cctx, chunk)
		}); err != nil {
			return res, &ChunkError{Index: index, Keys: keys(chunk), Err: err}
		}
		w.log.Info("chunk committed", zap.Int("chunk", index), zap.Int("writes", len(chunk)))
		res.Chunks++
		res.Committed += len(chunk)
		index++
	}

	for _, chunk := range Chunks(creates, w.opts.MaxOps) {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("stopped before chunk %d: %w", index, err)
		}
		for _, wr := range chunk {
			err := w.retry(ctx, index, func(cctx context.Context) error {
				return w.store.CreateIfAbsent(cctx, wr.Collection, wr.ID, wr.Fields)
			})
			switch {
			case err == nil:
				res.Created++
			case errors.Is(err, docstore.ErrAlreadyExists):
				res.Existing++
			default:
				return res, &ChunkError{Index: index, Keys: keys(chunk), Err: err}
			}
		}
		w.log.Info("creates committed", zap.Int("chunk", index), zap.Int("writes", len(chunk)))
		res.Chunks++
		index++
	}

	return res, nil
}

// retry runs op under a context that ignores cancellation, so a started
// commit is never abandoned halfway. Transient errors are retried with
// exponential backoff; cancellation only cuts the backoff short.
func (w *Writer) retry(ctx context.Context, chunk int, op func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		cctx, cancel := timeouts.WithTimeout(context.WithoutCancel(ctx), timeouts.Batch(), w.log, "commit chunk")
		err := op(cctx)
		cancel()
		if err == nil || errors.Is(err, docstore.ErrAlreadyExists) {
			return err
		}
		if !docstore.IsTransient(err) || attempt >= w.opts.Retries {
			return err
		}

		d := backoff(w.opts.Backoff, attempt)
		w.log.Warn("transient commit failure, retrying",
			zap.Int("chunk", chunk),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", d),
			zap.Error(err),
		)
		if serr := w.sleep(ctx, d); serr != nil {
			return err
		}
	}
}

func backoff(base time.Duration, attempt int) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt))
	if ceiling := float64(30 * time.Second); d > ceiling {
		d = ceiling
	}
	return time.Duration(d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Chunks splits ws into slices of at most n writes.
func Chunks(ws []docstore.Write, n int) [][]docstore.Write {
	var out [][]docstore.Write
	for len(ws) > 0 {
		k := min(n, len(ws))
		out = append(out, ws[:k:k])
		ws = ws[k:]
	}
	return out
}

func keys(ws []docstore.Write) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Key()
	}
	return out
}
