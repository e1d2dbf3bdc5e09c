package catalog

import (
	_ "embed"
	"sync"
)

//go:embed catalog.yaml
var defaultYAML []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog shipped with the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = Must(Parse(defaultYAML))
	})
	return defaultCatalog
}
