package rules

import (
	"slices"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
)

// MergeWrites folds writes to the same document into one, in order.
//
// A delete absorbs everything else. Otherwise fields merge with later values
// winning, Before keeps the value the document had before the first write
// touched each field, and the op is the strongest of create, upsert, update.
// Fields that end up equal to their Before value are dropped, and so are
// writes left with nothing to do. The result is sorted by SortWrites.
func MergeWrites(ws []docstore.Write) []docstore.Write {
	index := make(map[string]int)
	var out []docstore.Write
	for _, w := range ws {
		i, ok := index[w.Key()]
		if !ok {
			index[w.Key()] = len(out)
			out = append(out, cloneWrite(w))
			continue
		}
		out[i] = merge(out[i], w)
	}

	kept := out[:0]
	for _, w := range out {
		if w = prune(w); w.Op != 0 {
			kept = append(kept, w)
		}
	}
	docstore.SortWrites(kept)
	return kept
}

func merge(a, b docstore.Write) docstore.Write {
	out := docstore.Write{Collection: a.Collection, ID: a.ID}

	out.Before = docstore.CloneFields(a.Before)
	for k, v := range b.Before {
		if _, touched := a.Fields[k]; !touched {
			if _, have := out.Before[k]; !have {
				out.Before[k] = v
			}
		}
	}
	out.Families = union(a.Families, b.Families)

	if a.Op == docstore.OpDelete || b.Op == docstore.OpDelete {
		out.Op = docstore.OpDelete
		return out
	}

	out.Op = strongest(a.Op, b.Op)
	out.Fields = docstore.CloneFields(a.Fields)
	for k, v := range b.Fields {
		out.Fields[k] = v
	}
	return out
}

func strongest(a, b docstore.Op) docstore.Op {
	rank := func(op docstore.Op) int {
		switch op {
		case docstore.OpCreate:
			return 3
		case docstore.OpUpsert:
			return 2
		}
		return 1
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// prune drops no-op fields. A write with nothing left gets Op 0.
func prune(w docstore.Write) docstore.Write {
	if w.Op == docstore.OpDelete {
		return w
	}
	for k, v := range w.Fields {
		prev, had := w.Before[k]
		switch {
		case docstore.IsDelete(v) && !had:
			delete(w.Fields, k)
		case had && !docstore.IsDelete(v) && docstore.Equal(prev, v):
			delete(w.Fields, k)
		}
	}
	for k := range w.Before {
		if _, ok := w.Fields[k]; !ok {
			delete(w.Before, k)
		}
	}
	if len(w.Fields) == 0 {
		w.Op = 0
	}
	return w
}

func cloneWrite(w docstore.Write) docstore.Write {
	w.Fields = docstore.CloneFields(w.Fields)
	w.Before = docstore.CloneFields(w.Before)
	w.Families = append([]string(nil), w.Families...)
	return w
}

func union(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
