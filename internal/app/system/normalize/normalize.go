// Package normalize cleans string field values the same way everywhere they
// are read or repaired.
package normalize

import (
	"html"
	"regexp"
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/microcosm-cc/bluemonday"
)

// Email trims and lower-cases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name. Case is preserved.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role trims and case/diacritic-folds a role name.
func Role(s string) string {
	return text.Fold(strings.TrimSpace(s))
}

// Status trims and lower-cases a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// emailRe accepts local@domain.tld with no spaces and a single @.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s has the local@domain shape.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

var strict = bluemonday.StrictPolicy()

// StripMarkup removes HTML tags from s and decodes entities, repeating until
// the value stops changing so a second pass is always a no-op. Every pass that
// changes the value shortens it, so len(s) passes always reach the fixpoint.
func StripMarkup(s string) string {
	cur := strings.TrimSpace(s)
	for i := 0; i <= len(s); i++ {
		next := strings.TrimSpace(html.UnescapeString(strict.Sanitize(cur)))
		if next == cur {
			return cur
		}
		cur = next
	}
	return cur
}

// BlobPrefix marks a browser-session object URL.
const BlobPrefix = "blob:"

// IsEphemeralBlob reports whether s is an object URL that only resolves inside
// the browser session that created it.
func IsEphemeralBlob(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(strings.ToLower(s)), BlobPrefix)
}
