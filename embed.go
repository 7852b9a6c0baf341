package mediasave

import (
	_ "embed"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// DefaultCatalog returns a copy of the category catalog compiled into the
// binary. It is used when no catalog_path is configured.
func DefaultCatalog() []byte {
	out := make([]byte, len(embeddedCatalog))
	copy(out, embeddedCatalog)
	return out
}
