package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"voting-ledger/models"
)

// JSONStore keeps the chain in a single JSON file under basePath.
type JSONStore struct {
	path string
	mu   sync.RWMutex
}

// NewJSONStore creates the storage directory if needed and returns a store
// backed by basePath/blockchain.json.
func NewJSONStore(basePath string) (*JSONStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &JSONStore{
		path: filepath.Join(basePath, ChainKey+".json"),
	}, nil
}

// Path returns the file backing the store.
func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) Load() ([]*models.Block, error) {
	data, err := s.LoadRaw()
	if err != nil {
		return nil, err
	}
	return decodeChain(data)
}

func (s *JSONStore) LoadRaw() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read chain file: %w", err)
	}
	return data, nil
}

func (s *JSONStore) Save(blocks []*models.Block) error {
	data, err := encodeChain(blocks)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write to temporary file first
	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write chain file: %w", err)
	}

	// Atomic rename to ensure consistency
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath) // Clean up temp file if rename fails
		return fmt.Errorf("failed to save chain file: %w", err)
	}

	return nil
}

func (s *JSONStore) Close() error {
	return nil
}
