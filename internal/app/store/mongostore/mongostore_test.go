package mongostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func TestFromBSON(t *testing.T) {
	when := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	oid := primitive.NewObjectID()
	dec, err := primitive.ParseDecimal128("12.50")
	require.NoError(t, err)

	got := fromBSON(bson.M{
		"createdAt": primitive.NewDateTimeFromTime(when),
		"ref":       oid,
		"amount":    int32(1200),
		"price":     dec,
		"tags":      primitive.A{"a", int32(2)},
		"nested":    bson.D{{Key: "k", Value: int64(3)}},
		"gone":      primitive.Null{},
	})

	assert.Equal(t, map[string]any{
		"createdAt": when,
		"ref":       oid.Hex(),
		"amount":    int64(1200),
		"price":     12.5,
		"tags":      []any{"a", int64(2)},
		"nested":    map[string]any{"k": int64(3)},
		"gone":      nil,
	}, got)
}

func TestToDocumentRemembersObjectIDs(t *testing.T) {
	s := New(nil, 0, zap.NewNop())
	oid := primitive.NewObjectID()

	doc := s.toDocument("users", bson.M{"_id": oid, "role": "coach"})
	assert.Equal(t, oid.Hex(), doc.ID)
	assert.Equal(t, map[string]any{"role": "coach"}, doc.Fields)

	assert.Equal(t, bson.M{"_id": oid}, s.idFilter("users", oid.Hex()))
	assert.Equal(t, oid, s.idValue("users", oid.Hex()))

	str := s.toDocument("teams", bson.M{"_id": "t1"})
	assert.Equal(t, "t1", str.ID)
	assert.Equal(t, bson.M{"_id": "t1"}, s.idFilter("teams", "t1"))
}

func TestIDFilterUnseenHex(t *testing.T) {
	s := New(nil, 0, zap.NewNop())
	oid := primitive.NewObjectID()

	f := s.idFilter("users", oid.Hex())
	assert.Equal(t, bson.M{"_id": bson.M{"$in": bson.A{oid, oid.Hex()}}}, f)
	assert.Equal(t, oid.Hex(), s.idValue("users", oid.Hex()))
}

func TestUpdateDoc(t *testing.T) {
	w := docstore.Write{
		Collection: "athletes",
		ID:         "a1",
		Op:         docstore.OpUpdate,
		Fields:     map[string]any{"orgId": "org1", "avatar": docstore.Delete},
	}
	assert.Equal(t, bson.M{
		"$set":   bson.M{"orgId": "org1"},
		"$unset": bson.M{"avatar": ""},
	}, updateDoc(w))

	onlySet := updateDoc(docstore.Write{Fields: map[string]any{"a": int64(1)}})
	assert.NotContains(t, onlySet, "$unset")
}

func TestModels(t *testing.T) {
	s := New(nil, 0, zap.NewNop())

	models, err := s.models("coaches", []docstore.Write{
		{Collection: "coaches", ID: "u1", Op: docstore.OpUpsert, Fields: map[string]any{"uid": "u1"}},
		{Collection: "coaches", ID: "u2", Op: docstore.OpDelete},
		{Collection: "coaches", ID: "u3", Op: docstore.OpUpdate, Fields: map[string]any{"name": "C"}},
	})
	require.NoError(t, err)
	require.Len(t, models, 3)

	up, ok := models[0].(*mongo.UpdateOneModel)
	require.True(t, ok)
	require.NotNil(t, up.Upsert)
	assert.True(t, *up.Upsert)
	assert.Equal(t, bson.M{"_id": "u1"}, up.Filter)

	_, ok = models[1].(*mongo.DeleteOneModel)
	assert.True(t, ok)

	upd, ok := models[2].(*mongo.UpdateOneModel)
	require.True(t, ok)
	assert.Nil(t, upd.Upsert)

	_, err = s.models("publicDonors", []docstore.Write{
		{Collection: "publicDonors", ID: "d1", Op: docstore.OpCreate},
	})
	assert.ErrorIs(t, err, docstore.ErrCreateInBatch)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"open breaker", gobreaker.ErrOpenState, true},
		{"half-open limit", gobreaker.ErrTooManyRequests, true},
		{"retryable label", mongo.CommandError{Code: 91, Labels: []string{"RetryableWriteError"}}, true},
		{"network label", mongo.CommandError{Labels: []string{"NetworkError"}}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("bad update"), false},
		{"duplicate key", mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("commit", "donations", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.transient, docstore.IsTransient(err))
			assert.Equal(t, tt.err, errors.Unwrap(err))
		})
	}
	assert.NoError(t, classify("commit", "donations", nil))
}

func TestCommitRejectsOversizedBatch(t *testing.T) {
	s := New(nil, 0, zap.NewNop())
	err := s.Commit(context.Background(), make([]docstore.Write, MaxBatchOps+1))
	assert.Error(t, err)
	assert.Equal(t, MaxBatchOps, s.MaxBatchOps())
}

func TestCloseWithoutClient(t *testing.T) {
	s := New(nil, 0, zap.NewNop())
	assert.NoError(t, s.Close(context.Background()))
}
