// Package blockchain owns the ordered, hash-linked sequence of vote blocks.
package blockchain

import (
	"errors"
	"fmt"
	"time"

	"voting-ledger/log"
	"voting-ledger/models"
	"voting-ledger/storage"
)

// Snapshot reasons used when a chain leaves the storage slot.
const (
	ReasonDiscarded = "discarded"
	ReasonSession   = "session"
)

// Verifier checks the signature embedded in a vote.
type Verifier interface {
	Verify(vote models.Vote) bool
}

// Archiver receives chains removed from the slot.
type Archiver interface {
	SaveChain(reason string, blocks []*models.Block) (string, error)
	SaveRaw(reason string, data []byte) (string, error)
}

// ChainIntegrityError describes the first integrity failure found in a chain.
// Index is -1 when the stored data could not be decoded at all.
type ChainIntegrityError struct {
	Index  int
	Reason string
	// Archived is the snapshot path of the rejected chain, if one was written.
	Archived string
}

func (e *ChainIntegrityError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("chain integrity: %s", e.Reason)
	}
	return fmt.Sprintf("chain integrity: block %d: %s", e.Index, e.Reason)
}

// Ledger is the single-writer, append-only vote chain.
type Ledger struct {
	chain       []*models.Block
	store       storage.ChainStore
	verifier    Verifier
	archive     Archiver
	difficulty  int
	maxAttempts uint64
	now         func() time.Time
	recovery    *ChainIntegrityError
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithDifficulty sets the number of leading zero hex digits required.
func WithDifficulty(difficulty int) Option {
	return func(l *Ledger) {
		l.difficulty = difficulty
	}
}

// WithMaxMiningAttempts bounds the nonce search for each block.
func WithMaxMiningAttempts(n uint64) Option {
	return func(l *Ledger) {
		l.maxAttempts = n
	}
}

// WithArchive keeps snapshots of discarded and reset chains.
func WithArchive(a Archiver) Option {
	return func(l *Ledger) {
		l.archive = a
	}
}

// WithClock sets the time source for block timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a ledger over store. Call Initialize before use.
func New(store storage.ChainStore, verifier Verifier, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		verifier:    verifier,
		difficulty:  models.DefaultDifficulty,
		maxAttempts: models.DefaultMaxMiningAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Initialize loads the persisted chain. A chain that cannot be decoded or
// fails validation is archived and discarded, and the ledger starts over
// from a fresh genesis block; the failure stays available from Recovery.
// Only storage I/O failures are returned.
func (l *Ledger) Initialize() error {
	l.recovery = nil

	blocks, err := l.store.Load()
	switch {
	case errors.Is(err, storage.ErrCorrupt):
		l.recovery = &ChainIntegrityError{Index: -1, Reason: err.Error()}
		l.archiveRaw()
		blocks = nil
	case err != nil:
		return fmt.Errorf("loading chain: %w", err)
	}

	if len(blocks) > 0 {
		if err := l.validate(blocks); err != nil {
			var integrity *ChainIntegrityError
			if !errors.As(err, &integrity) {
				return err
			}
			l.recovery = integrity
			l.archiveChain(ReasonDiscarded, blocks)
			blocks = nil
		}
	}

	if l.recovery != nil {
		log.Error("persisted chain failed integrity check, discarding history",
			"index", l.recovery.Index,
			"reason", l.recovery.Reason,
			"archived", l.recovery.Archived)
	}

	l.chain = blocks
	if len(l.chain) == 0 {
		return l.createGenesisBlock()
	}

	log.Info("loaded chain", "blocks", len(l.chain), "last_hash", l.chain[len(l.chain)-1].Hash)
	return nil
}

func (l *Ledger) createGenesisBlock() error {
	genesis := models.NewGenesisBlock(l.now().UnixMilli())
	if err := genesis.Mine(l.difficulty, l.maxAttempts); err != nil {
		return fmt.Errorf("sealing genesis block: %w", err)
	}

	chain := []*models.Block{genesis}
	if err := l.store.Save(chain); err != nil {
		return fmt.Errorf("saving genesis block: %w", err)
	}
	l.chain = chain

	log.Info("created genesis block", "hash", genesis.Hash)
	return nil
}

// Append seals a block holding vote onto the tail and persists the whole
// chain. The block becomes part of the chain only if persisting succeeds.
func (l *Ledger) Append(vote models.Vote) (*models.Block, error) {
	if len(l.chain) == 0 {
		return nil, errors.New("ledger is not initialized")
	}

	previous := l.chain[len(l.chain)-1]
	block := &models.Block{
		Index:        previous.Index + 1,
		Timestamp:    l.now().UnixMilli(),
		Vote:         vote,
		PreviousHash: previous.Hash,
	}

	start := time.Now()
	if err := block.Mine(l.difficulty, l.maxAttempts); err != nil {
		return nil, fmt.Errorf("sealing block %d: %w", block.Index, err)
	}
	log.Debug("mined block", "index", block.Index, "nonce", block.Nonce, "duration", time.Since(start))

	candidate := make([]*models.Block, len(l.chain), len(l.chain)+1)
	copy(candidate, l.chain)
	candidate = append(candidate, block)

	if err := l.store.Save(candidate); err != nil {
		return nil, fmt.Errorf("failed to save chain: %w", err)
	}
	l.chain = candidate

	copied := *block
	return &copied, nil
}

// Chain returns a copy of every block in order.
func (l *Ledger) Chain() []models.Block {
	blocks := make([]models.Block, len(l.chain))
	for i, b := range l.chain {
		blocks[i] = *b
	}
	return blocks
}

// Latest returns a copy of the tail block.
func (l *Ledger) Latest() models.Block {
	return *l.chain[len(l.chain)-1]
}

// Len returns the number of blocks including genesis.
func (l *Ledger) Len() int {
	return len(l.chain)
}

// Difficulty returns the sealing target.
func (l *Ledger) Difficulty() int {
	return l.difficulty
}

// Recovery returns the integrity failure discarded by the last Initialize, or nil.
func (l *Ledger) Recovery() *ChainIntegrityError {
	return l.recovery
}

// Validate checks the genesis sentinel and, for every later block, its index,
// hash, difficulty target, link to the previous block and vote signature.
// It returns the first failure as a *ChainIntegrityError.
func (l *Ledger) Validate() error {
	return l.validate(l.chain)
}

// IsValid reports whether Validate finds no failure.
func (l *Ledger) IsValid() bool {
	return l.Validate() == nil
}

func (l *Ledger) validate(blocks []*models.Block) error {
	if len(blocks) == 0 {
		return &ChainIntegrityError{Index: 0, Reason: "missing genesis block"}
	}

	genesis := blocks[0]
	if genesis.Index != 0 || genesis.PreviousHash != models.GenesisPreviousHash || !genesis.IsGenesis() {
		return &ChainIntegrityError{Index: 0, Reason: "genesis block does not carry the sentinel vote"}
	}

	for i := 1; i < len(blocks); i++ {
		current := blocks[i]
		previous := blocks[i-1]

		if current.Index != uint64(i) {
			return &ChainIntegrityError{Index: i, Reason: fmt.Sprintf("index %d out of sequence", current.Index)}
		}
		if current.Hash != current.CalculateHash() {
			return &ChainIntegrityError{Index: i, Reason: "hash mismatch"}
		}
		if !models.HasDifficultyPrefix(current.Hash, l.difficulty) {
			return &ChainIntegrityError{Index: i, Reason: "hash does not meet difficulty target"}
		}
		if current.PreviousHash != previous.Hash {
			return &ChainIntegrityError{Index: i, Reason: "previous hash link broken"}
		}
		if !l.verifier.Verify(current.Vote) {
			return &ChainIntegrityError{Index: i, Reason: "vote signature invalid"}
		}
	}
	return nil
}

// TruncateToGenesis drops every block after genesis and persists the result.
// The outgoing chain is archived first when an archive is configured.
func (l *Ledger) TruncateToGenesis() error {
	if len(l.chain) == 0 {
		return errors.New("ledger is not initialized")
	}
	if len(l.chain) > 1 {
		l.archiveChain(ReasonSession, l.chain)
	}

	chain := l.chain[:1:1]
	if err := l.store.Save(chain); err != nil {
		return fmt.Errorf("failed to save chain: %w", err)
	}
	l.chain = chain

	log.Info("chain truncated to genesis")
	return nil
}

func (l *Ledger) archiveChain(reason string, blocks []*models.Block) {
	if l.archive == nil {
		return
	}
	path, err := l.archive.SaveChain(reason, blocks)
	if err != nil {
		log.Warn("failed to archive chain", "reason", reason, "error", err)
		return
	}
	if reason == ReasonDiscarded && l.recovery != nil {
		l.recovery.Archived = path
	}
}

func (l *Ledger) archiveRaw() {
	if l.archive == nil {
		return
	}
	raw, err := l.store.LoadRaw()
	if err != nil || raw == nil {
		return
	}
	path, err := l.archive.SaveRaw(ReasonDiscarded, raw)
	if err != nil {
		log.Warn("failed to archive corrupt chain", "error", err)
		return
	}
	l.recovery.Archived = path
}
