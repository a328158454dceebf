package storage

import (
	"sync"

	"voting-ledger/models"
)

// MemoryStore holds the encoded chain in memory. Blocks are serialized on
// Save so callers never share structs with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() ([]*models.Block, error) {
	data, _ := s.LoadRaw()
	return decodeChain(data)
}

func (s *MemoryStore) LoadRaw() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, nil
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemoryStore) Save(blocks []*models.Block) error {
	data, err := encodeChain(blocks)
	if err != nil {
		return err
	}
	s.SetRaw(data)
	return nil
}

// SetRaw overwrites the slot with arbitrary bytes.
func (s *MemoryStore) SetRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
}

func (s *MemoryStore) Close() error {
	return nil
}
