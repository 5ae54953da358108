package fsstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToUpdates(t *testing.T) {
	w := docstore.Write{
		Collection: "donations",
		ID:         "d1",
		Op:         docstore.OpUpdate,
		Fields: map[string]any{
			"status":      "paid",
			"receipt.url": docstore.Delete,
			"amount":      int64(2500),
		},
	}
	got := toUpdates(w)
	require.Len(t, got, 3)

	assert.Equal(t, firestore.FieldPath{"amount"}, got[0].FieldPath)
	assert.Equal(t, int64(2500), got[0].Value)
	assert.Equal(t, firestore.FieldPath{"receipt.url"}, got[1].FieldPath)
	assert.Equal(t, firestore.Delete, got[1].Value)
	assert.Equal(t, firestore.FieldPath{"status"}, got[2].FieldPath)
	for _, u := range got {
		assert.Empty(t, u.Path)
	}
}

func TestToData(t *testing.T) {
	got := toData(map[string]any{"uid": "u1", "photo": docstore.Delete})
	assert.Equal(t, "u1", got["uid"])
	assert.Equal(t, firestore.Delete, got["photo"])
}

func TestFromFirestore(t *testing.T) {
	when := time.Date(2024, 4, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))
	doc := toDocument("a1", map[string]any{
		"createdAt": when,
		"count":     int64(3),
		"tags":      []any{"x", map[string]any{"n": int64(1)}},
		"ref":       (*firestore.DocumentRef)(nil),
		"nothing":   nil,
	})

	assert.Equal(t, "a1", doc.ID)
	assert.Equal(t, when.UTC(), doc.Fields["createdAt"])
	assert.Equal(t, int64(3), doc.Fields["count"])
	assert.Equal(t, []any{"x", map[string]any{"n": int64(1)}}, doc.Fields["tags"])
	assert.Nil(t, doc.Fields["ref"])
	assert.Contains(t, doc.Fields, "nothing")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code      codes.Code
		transient bool
	}{
		{codes.Unavailable, true},
		{codes.DeadlineExceeded, true},
		{codes.ResourceExhausted, true},
		{codes.Aborted, true},
		{codes.InvalidArgument, false},
		{codes.PermissionDenied, false},
		{codes.NotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			cause := status.Error(tt.code, "boom")
			err := classify("commit", "donations", cause)
			assert.Equal(t, tt.transient, docstore.IsTransient(err))
			assert.True(t, errors.Is(err, cause))
		})
	}

	wrapped := classify("scan", "users", fmt.Errorf("page: %w", context.DeadlineExceeded))
	assert.True(t, docstore.IsTransient(wrapped))
	assert.NoError(t, classify("scan", "users", nil))
}

func TestUsingEmulator(t *testing.T) {
	t.Setenv(EmulatorEnv, "")
	assert.False(t, UsingEmulator())
	t.Setenv(EmulatorEnv, "localhost:8080")
	assert.True(t, UsingEmulator())
}
