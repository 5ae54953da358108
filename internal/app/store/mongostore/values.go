package mongostore

import (
	"strconv"
	"time"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fromBSON maps decoded BSON values onto the docstore value set.
func fromBSON(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case primitive.ObjectID:
		return t.Hex()
	case primitive.Decimal128:
		if f, err := parseDecimal(t); err == nil {
			return f
		}
		return t.String()
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromBSON(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromBSON(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case primitive.Null, primitive.Undefined:
		return nil
	}
	return docstore.NormalizeValue(v)
}

func parseDecimal(d primitive.Decimal128) (float64, error) {
	return strconv.ParseFloat(d.String(), 64)
}
