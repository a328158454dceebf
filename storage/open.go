package storage

import (
	"fmt"
	"path/filepath"
)

// Backend names a ChainStore implementation.
type Backend string

const (
	BackendJSON   Backend = "json"
	BackendBolt   Backend = "bolt"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Backends lists every supported backend.
var Backends = []Backend{BackendJSON, BackendBolt, BackendSQLite, BackendMemory}

// Open returns the store for backend rooted at dataDir.
func Open(backend Backend, dataDir string) (ChainStore, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONStore(dataDir)
	case BackendBolt:
		return NewBoltStore(filepath.Join(dataDir, ChainKey+".db"))
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dataDir, ChainKey+".sqlite"))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
