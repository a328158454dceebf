package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"voting-ledger/models"
)

const boltBucketName = "ledger"

// BoltStore keeps the chain under ChainKey in a bbolt database.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load() ([]*models.Block, error) {
	data, err := s.LoadRaw()
	if err != nil {
		return nil, err
	}
	return decodeChain(data)
}

func (s *BoltStore) LoadRaw() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(boltBucketName)).Get([]byte(ChainKey))
		if v != nil {
			// bbolt values are only valid inside the transaction
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading chain: %w", err)
	}
	return data, nil
}

func (s *BoltStore) Save(blocks []*models.Block) error {
	data, err := encodeChain(blocks)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucketName)).Put([]byte(ChainKey), data)
	})
	if err != nil {
		return fmt.Errorf("writing chain: %w", err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
