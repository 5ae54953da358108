package rules

import (
	"sort"

	"github.com/dalemusser/fundhub/internal/app/system/normalize"
	"github.com/dalemusser/fundhub/internal/app/system/policy"
)

// blobScrub removes browser-local blob: URLs that were saved by mistake. They
// only ever resolved inside the uploading tab.
type blobScrub struct{}

func (blobScrub) Family() policy.Family { return policy.FamilyBlobScrub }

func (blobScrub) Evaluate(rec Record, _ Lookup, out *Outcome) {
	view := out.View()
	for _, field := range sortedKeys(view) {
		if s, ok := view[field].(string); ok {
			if normalize.IsEphemeralBlob(s) {
				out.Unset(field)
				out.Flag(CodeEphemeralBlobRef, field)
			}
			continue
		}
		if cleaned, changed := scrubBlobs(view[field]); changed {
			out.Set(field, cleaned)
			out.Flag(CodeEphemeralBlobRef, field)
		}
	}
}

// scrubBlobs returns v with blob URLs removed at any depth: list elements are
// dropped and map entries deleted. Inputs are never modified.
func scrubBlobs(v any) (any, bool) {
	switch t := v.(type) {
	case []any:
		kept := make([]any, 0, len(t))
		changed := false
		for _, el := range t {
			if s, ok := el.(string); ok && normalize.IsEphemeralBlob(s) {
				changed = true
				continue
			}
			c, ch := scrubBlobs(el)
			changed = changed || ch
			kept = append(kept, c)
		}
		return kept, changed
	case map[string]any:
		clean := make(map[string]any, len(t))
		changed := false
		for k, el := range t {
			if s, ok := el.(string); ok && normalize.IsEphemeralBlob(s) {
				changed = true
				continue
			}
			c, ch := scrubBlobs(el)
			changed = changed || ch
			clean[k] = c
		}
		return clean, changed
	}
	return v, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
