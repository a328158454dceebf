// Package storage persists the ledger chain as a single slot and archives
// chains that leave the slot (rejected at load or cleared by a session reset).
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"voting-ledger/log"
	"voting-ledger/models"
)

// ChainKey is the fixed key the whole chain is stored under.
const ChainKey = "blockchain"

// ErrCorrupt is returned by Load when the slot holds data that is not a chain.
var ErrCorrupt = errors.New("stored chain is corrupt")

// ChainStore is a durable slot holding the full chain.
type ChainStore interface {
	// Load returns the stored chain, or nil when the slot is empty.
	Load() ([]*models.Block, error)
	// Save replaces the stored chain with blocks.
	Save(blocks []*models.Block) error
	// LoadRaw returns the undecoded slot contents, or nil when empty.
	LoadRaw() ([]byte, error)
	Close() error
}

func encodeChain(blocks []*models.Block) ([]byte, error) {
	data, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chain: %w", err)
	}
	return data, nil
}

func decodeChain(data []byte) ([]*models.Block, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var blocks []*models.Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for i, b := range blocks {
		if b == nil {
			return nil, fmt.Errorf("%w: null block at position %d", ErrCorrupt, i)
		}
	}
	return blocks, nil
}

// snapshotTimeLayout is embedded in archive file names so they sort by age.
const snapshotTimeLayout = "20060102150405.000"

// Archive keeps timestamped JSON snapshots of chains removed from the slot.
type Archive struct {
	dataDir string
	keep    int
	mutex   sync.Mutex
}

// Add a struct to help with file sorting
type chainFile struct {
	path      string
	timestamp time.Time
}

// NewArchive creates an archive under dataDir keeping the newest keep
// snapshots per reason (keep <= 0 keeps everything).
func NewArchive(dataDir string, keep int) (*Archive, error) {
	absPath, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &Archive{
		dataDir: absPath,
		keep:    keep,
	}, nil
}

// SaveChain writes blocks as a snapshot labelled with reason.
func (a *Archive) SaveChain(reason string, blocks []*models.Block) (string, error) {
	data, err := json.MarshalIndent(blocks, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode chain: %w", err)
	}
	return a.SaveRaw(reason, data)
}

// SaveRaw writes undecoded slot contents as a snapshot labelled with reason.
func (a *Archive) SaveRaw(reason string, data []byte) (string, error) {
	if reason == "" || strings.ContainsAny(reason, "_/\\") {
		return "", fmt.Errorf("invalid snapshot reason %q", reason)
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	timestamp := time.Now().Format(snapshotTimeLayout)
	filename := filepath.Join(a.dataDir, fmt.Sprintf("chain_%s_%s.json", reason, timestamp))

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	if a.keep > 0 {
		if err := a.cleanupOldFiles(reason); err != nil {
			log.Warn("failed to clean up old snapshots", "reason", reason, "error", err)
		}
	}

	log.Info("archived chain snapshot", "reason", reason, "path", filename, "bytes", len(data))
	return filename, nil
}

// List returns snapshot paths for reason, oldest first.
func (a *Archive) List(reason string) ([]string, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	files, err := a.sortedFiles(reason)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// LoadChain decodes a snapshot written by SaveChain.
func (a *Archive) LoadChain(path string) ([]*models.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return decodeChain(data)
}

func (a *Archive) sortedFiles(reason string) ([]chainFile, error) {
	files, err := filepath.Glob(filepath.Join(a.dataDir, fmt.Sprintf("chain_%s_*.json", reason)))
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var chainFiles []chainFile
	for _, file := range files {
		// Extract timestamp from filename
		base := filepath.Base(file)
		parts := strings.Split(base, "_")
		if len(parts) != 3 {
			continue
		}
		timestampStr := strings.TrimSuffix(parts[2], ".json")
		timestamp, err := time.ParseInLocation(snapshotTimeLayout, timestampStr, time.Local)
		if err != nil {
			log.Warn("invalid timestamp in snapshot name", "file", base, "error", err)
			continue
		}
		chainFiles = append(chainFiles, chainFile{path: file, timestamp: timestamp})
	}

	sort.Slice(chainFiles, func(i, j int) bool {
		return chainFiles[i].timestamp.Before(chainFiles[j].timestamp)
	})
	return chainFiles, nil
}

func (a *Archive) cleanupOldFiles(reason string) error {
	chainFiles, err := a.sortedFiles(reason)
	if err != nil {
		return err
	}

	if len(chainFiles) <= a.keep {
		return nil
	}

	// Remove older files, keeping the most recent 'keep' files
	for i := 0; i < len(chainFiles)-a.keep; i++ {
		if err := os.Remove(chainFiles[i].path); err != nil {
			log.Warn("failed to remove old snapshot", "path", chainFiles[i].path, "error", err)
		} else {
			log.Debug("removed old snapshot", "path", chainFiles[i].path)
		}
	}

	return nil
}
