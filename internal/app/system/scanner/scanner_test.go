package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScan_EmptyCollection(t *testing.T) {
	sc := New(memstore.New(), zap.NewNop())

	docs, err := sc.All(context.Background(), "donations")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestScan_Restartable(t *testing.T) {
	st := memstore.New()
	st.Put("teams", "t1", map[string]any{"orgId": "o1"})
	st.Put("teams", "t2", map[string]any{"orgId": "o2"})
	sc := New(st, zap.NewNop())
	ctx := context.Background()

	for pass := 0; pass < 2; pass++ {
		cur := sc.Scan(ctx, "teams")
		var ids []string
		for cur.Next(ctx) {
			ids = append(ids, cur.Doc().ID)
		}
		require.NoError(t, cur.Err())
		assert.ElementsMatch(t, []string{"t1", "t2"}, ids, "pass %d", pass)
	}
}

func TestScan_DoesNotMutate(t *testing.T) {
	st := memstore.New()
	st.Put("users", "u1", map[string]any{"email": " A@B.COM "})
	sc := New(st, zap.NewNop())

	docs, err := sc.All(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	docs[0].Fields["email"] = "changed"

	stored, ok := st.Snapshot("users", "u1")
	require.True(t, ok)
	assert.Equal(t, " A@B.COM ", stored["email"])
}

type failingStore struct {
	docstore.Store
	err error
}

func (f failingStore) Documents(ctx context.Context, collection string) (docstore.Iterator, error) {
	return nil, f.err
}

func TestScan_PropagatesStoreError(t *testing.T) {
	boom := &docstore.TransientError{Op: "find", Err: errors.New("connection reset")}
	sc := New(failingStore{err: boom}, zap.NewNop())

	_, err := sc.All(context.Background(), "donations")
	require.Error(t, err)
	assert.True(t, docstore.IsTransient(err))
}

func TestAllOf(t *testing.T) {
	st := memstore.New()
	st.Put("teams", "t1", map[string]any{"orgId": "o1"})
	st.Put("users", "u1", map[string]any{"teamId": "t1"})
	st.Put("users", "u2", map[string]any{"teamId": "t1"})
	sc := New(st, zap.NewNop())

	got, err := sc.AllOf(context.Background(), []string{"teams", "users", "coaches"}, 2)
	require.NoError(t, err)
	assert.Len(t, got["teams"], 1)
	assert.Len(t, got["users"], 2)
	assert.Contains(t, got, "coaches")
	assert.Empty(t, got["coaches"])
}
