// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/fundhub/internal/app/store/docstore"
)

// StoreDeps holds the record store a run works against.
type StoreDeps struct {
	Store docstore.Store
}
