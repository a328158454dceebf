package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultDifficulty is the number of leading zero hex digits a sealed hash needs.
	DefaultDifficulty = 4
	// DefaultMaxMiningAttempts bounds Mine. At difficulty 4 the expected number of
	// attempts is 16^4, so the ceiling is only reached by a broken hash or a far
	// larger difficulty.
	DefaultMaxMiningAttempts uint64 = 50_000_000
)

// Block is one sealed unit of the ledger holding exactly one vote.
type Block struct {
	Index        uint64 `json:"index"`
	Timestamp    int64  `json:"timestamp"`
	Vote         Vote   `json:"vote"`
	PreviousHash string `json:"previousHash"`
	Hash         string `json:"hash"`
	Nonce        uint64 `json:"nonce"`
}

// MiningExhaustedError is returned by Mine when no nonce below the attempt
// ceiling satisfies the difficulty target.
type MiningExhaustedError struct {
	Difficulty int
	Attempts   uint64
}

func (e *MiningExhaustedError) Error() string {
	return fmt.Sprintf("mining exhausted: no hash with %d leading zeros after %d attempts", e.Difficulty, e.Attempts)
}

// CalculateHash returns the hex SHA-256 of index, previous hash, timestamp,
// serialized vote and nonce, concatenated in that order.
func (b *Block) CalculateHash() string {
	return hashWithNonce(b.hashPrefix(), b.Nonce)
}

// Mine searches nonces from zero until the block hash has difficulty leading
// zero hex digits, then stores the winning nonce and hash on the block.
// It blocks the calling goroutine for the whole search.
func (b *Block) Mine(difficulty int, maxAttempts uint64) error {
	if difficulty < 0 || difficulty > sha256.Size*2 {
		return fmt.Errorf("invalid difficulty %d", difficulty)
	}
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxMiningAttempts
	}

	// Everything but the nonce is fixed for the duration of the search.
	prefix := b.hashPrefix()
	for nonce := uint64(0); nonce < maxAttempts; nonce++ {
		hash := hashWithNonce(prefix, nonce)
		if HasDifficultyPrefix(hash, difficulty) {
			b.Nonce = nonce
			b.Hash = hash
			return nil
		}
	}
	return &MiningExhaustedError{Difficulty: difficulty, Attempts: maxAttempts}
}

// Validate reports whether the stored hash matches the block contents and
// meets the difficulty target.
func (b *Block) Validate(difficulty int) bool {
	return b.Hash == b.CalculateHash() && HasDifficultyPrefix(b.Hash, difficulty)
}

// IsGenesis reports whether the block carries the genesis sentinel vote.
func (b *Block) IsGenesis() bool {
	return b.Vote.CandidateID == GenesisID && b.Vote.VoterID == GenesisID
}

// HasDifficultyPrefix reports whether hash starts with difficulty '0' characters.
func HasDifficultyPrefix(hash string, difficulty int) bool {
	if difficulty < 0 || len(hash) < difficulty {
		return false
	}
	return strings.Count(hash[:difficulty], "0") == difficulty
}

func (b *Block) hashPrefix() []byte {
	var buf bytes.Buffer
	buf.WriteString(strconv.FormatUint(b.Index, 10))
	buf.WriteString(b.PreviousHash)
	buf.WriteString(strconv.FormatInt(b.Timestamp, 10))
	buf.Write(b.Vote.canonicalJSON())
	return buf.Bytes()
}

func hashWithNonce(prefix []byte, nonce uint64) string {
	h := sha256.New()
	h.Write(prefix)
	h.Write(strconv.AppendUint(nil, nonce, 10))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON serializes the vote with its declared field order and without
// HTML escaping so hashes stay stable across encoders.
func (v Vote) canonicalJSON() []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		// Vote only holds strings and integers.
		panic(fmt.Sprintf("encoding vote: %v", err))
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
