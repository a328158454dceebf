package service

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"voting-ledger/blockchain"
	"voting-ledger/log"
	"voting-ledger/models"
	"voting-ledger/registry"
	"voting-ledger/storage"
)

// Authenticator signs ballots and checks signatures.
type Authenticator interface {
	Sign(candidateID, voterID string) models.VoteSignature
	Verify(vote models.Vote) bool
	VerifyFreshness(timestamp int64) bool
}

// VotingService is the session controller. It is the only writer of the
// ledger; every mutation runs under its lock.
type VotingService struct {
	mu              sync.RWMutex
	ledger          *blockchain.Ledger
	auth            Authenticator
	registry        *registry.VoteRegistry
	votingSession   *VotingSession
	countingService *VoteCountingService
	metrics         *MetricsCollector
	now             func() time.Time
}

type serviceOptions struct {
	policy        registry.DuplicatePolicy
	ledgerOptions []blockchain.Option
	now           func() time.Time
	restore       *SessionState
}

// Option configures a VotingService.
type Option func(*serviceOptions)

// WithDuplicatePolicy selects what counts as a second vote.
func WithDuplicatePolicy(p registry.DuplicatePolicy) Option {
	return func(o *serviceOptions) {
		o.policy = p
	}
}

// WithLedgerOptions passes options through to the underlying ledger.
func WithLedgerOptions(opts ...blockchain.Option) Option {
	return func(o *serviceOptions) {
		o.ledgerOptions = append(o.ledgerOptions, opts...)
	}
}

// WithClock sets the time source for session and metric timestamps. The
// ledger receives the same clock.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		o.now = now
	}
}

// WithSessionState resumes a session saved by SessionState instead of
// opening a new one.
func WithSessionState(state SessionState) Option {
	return func(o *serviceOptions) {
		o.restore = &state
	}
}

// NewVotingService initializes the ledger over store and opens a fresh session,
// or resumes the one given with WithSessionState.
// Voters already present in the persisted chain are registered again so a
// restarted process keeps refusing their duplicates.
func NewVotingService(store storage.ChainStore, auth Authenticator, opts ...Option) (*VotingService, error) {
	if store == nil || auth == nil {
		return nil, errors.New("voting service requires a chain store and an authenticator")
	}

	o := serviceOptions{policy: registry.PolicyPerVoter, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	ledgerOpts := append([]blockchain.Option{blockchain.WithClock(o.now)}, o.ledgerOptions...)
	ledger := blockchain.New(store, auth, ledgerOpts...)
	if err := ledger.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	var session *VotingSession
	if o.restore != nil {
		session = RestoreVotingSession(*o.restore, o.now())
	} else {
		session = NewVotingSession(o.now())
	}
	metrics := NewMetricsCollector(o.now)
	if session.IsActive() {
		metrics.StartVotingPhase()
	}

	vs := &VotingService{
		ledger:          ledger,
		auth:            auth,
		registry:        registry.New(session.ID(), o.policy),
		votingSession:   session,
		countingService: NewVoteCountingService(ledger, session, metrics),
		metrics:         metrics,
		now:             o.now,
	}
	vs.loadExistingVoters()

	log.SetSessionID(session.ID())
	log.Info("voting session loaded", "active", session.IsActive(), "blocks", ledger.Len(), "policy", o.policy)
	return vs, nil
}

func (vs *VotingService) loadExistingVoters() {
	for _, block := range vs.ledger.Chain() {
		if block.Index == 0 {
			continue
		}
		if err := vs.registry.Record(block.Vote.VoterID, block.Vote.CandidateID); err != nil {
			log.Warn("chain holds a duplicate vote", "index", block.Index, "error", err)
		}
	}
}

// AddBlock casts a ballot: it signs the vote, seals it into a new block and
// records the voter. The voter is recorded only after the block is persisted.
func (vs *VotingService) AddBlock(candidateID, voterID string) (*models.Block, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	start := time.Now()
	block, err := vs.addBlock(candidateID, voterID)
	vs.metrics.RecordVote(time.Since(start), err == nil)
	if err != nil {
		log.Debug("ballot rejected", "candidate", candidateID, "error", err)
		return nil, err
	}

	log.Info("vote recorded", "index", block.Index, "candidate", candidateID, "hash", block.Hash)
	return block, nil
}

func (vs *VotingService) addBlock(candidateID, voterID string) (*models.Block, error) {
	if !vs.votingSession.IsActive() {
		return nil, ErrVotingClosed
	}
	// Invalid UTF-8 would be rewritten on persistence and break the block hash.
	if candidateID == "" || voterID == "" || !utf8.ValidString(candidateID) || !utf8.ValidString(voterID) {
		return nil, ErrInvalidBallot
	}
	if vs.registry.HasVotedFor(voterID, candidateID) {
		return nil, &registry.DuplicateVoteError{VoterID: voterID, Tier: vs.duplicateTier(candidateID)}
	}

	signature := vs.auth.Sign(candidateID, voterID)
	if !vs.auth.VerifyFreshness(signature.Timestamp) {
		return nil, &StaleVoteError{VoterID: voterID, Timestamp: signature.Timestamp, CheckedAt: vs.now()}
	}

	vote := models.Vote{
		CandidateID: candidateID,
		VoterID:     voterID,
		Signature:   signature,
	}
	if !vs.auth.Verify(vote) {
		log.Warn("freshly signed vote failed verification", "candidate", candidateID)
		return nil, &SignatureVerificationError{VoterID: voterID, CandidateID: candidateID}
	}

	block, err := vs.ledger.Append(vote)
	if err != nil {
		return nil, fmt.Errorf("failed to append vote: %w", err)
	}

	if err := vs.registry.Record(voterID, candidateID); err != nil {
		// HasVotedFor ran under the same lock, so this cannot happen.
		return nil, err
	}
	return block, nil
}

func (vs *VotingService) duplicateTier(candidateID string) models.Tier {
	if vs.registry.Policy() == registry.PolicyPerTier {
		return models.TierOf(candidateID)
	}
	return ""
}

// SetVotingEnded closes the session when ended is true. When ended is false
// the ledger is truncated to genesis and a new session starts, whether or not
// the current one was closed.
func (vs *VotingService) SetVotingEnded(ended bool) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if ended {
		if !vs.votingSession.IsActive() {
			return nil
		}
		vs.votingSession.End(vs.now())
		vs.metrics.EndVotingPhase()
		log.Info("voting session closed", "votes", vs.ledger.Len()-1)
		return nil
	}

	if err := vs.ledger.TruncateToGenesis(); err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}
	previous := vs.votingSession.ID()
	id := vs.votingSession.Restart(vs.now())
	vs.registry.Reset(id)
	vs.metrics.Reset()
	vs.metrics.StartVotingPhase()

	log.SetSessionID(id)
	log.Info("voting session reset", "previous_session", previous)
	return nil
}

// IsVotingComplete reports whether the session is closed.
func (vs *VotingService) IsVotingComplete() bool {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return !vs.votingSession.IsActive()
}

// GetChain returns a copy of every block, genesis first.
func (vs *VotingService) GetChain() []models.Block {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.ledger.Chain()
}

// IsValid re-verifies the whole chain.
func (vs *VotingService) IsValid() bool {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.ledger.IsValid()
}

// Validate is IsValid with the first failure as a *blockchain.ChainIntegrityError.
func (vs *VotingService) Validate() error {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.ledger.Validate()
}

func (vs *VotingService) GetVotingResults() map[string]int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.countingService.GetResults()
}

func (vs *VotingService) GetAnonymizedVotes() []models.AnonymizedVote {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.countingService.GetAnonymizedVotes()
}

// Tally returns per-candidate and per-tier counts once voting is complete.
func (vs *VotingService) Tally() *VotingResults {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.countingService.Tally()
}

func (vs *VotingService) HasVoted(voterID string) bool {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.registry.HasVoted(voterID)
}

func (vs *VotingService) SessionID() string {
	return vs.votingSession.ID()
}

// SessionState returns the session so a later process can resume it.
func (vs *VotingService) SessionState() SessionState {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.votingSession.State()
}

// Recovery returns the integrity failure that made startup discard the
// persisted chain, or nil.
func (vs *VotingService) Recovery() *blockchain.ChainIntegrityError {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.ledger.Recovery()
}

// Status summarizes the session for operators.
type Status struct {
	SessionID  string                   `json:"session_id"`
	Active     bool                     `json:"active"`
	OpenedAt   time.Time                `json:"opened_at"`
	ClosedAt   *time.Time               `json:"closed_at,omitempty"`
	Blocks     int                      `json:"blocks"`
	Voters     int                      `json:"voters"`
	Policy     registry.DuplicatePolicy `json:"policy"`
	Difficulty int                      `json:"difficulty"`
	LastHash   string                   `json:"last_hash"`
	Valid      bool                     `json:"valid"`
	Recovered  string                   `json:"recovered,omitempty"`
	Metrics    MetricsResponse          `json:"metrics"`
}

func (vs *VotingService) Status() Status {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	opened, closed := vs.votingSession.Times()
	status := Status{
		SessionID:  vs.votingSession.ID(),
		Active:     vs.votingSession.IsActive(),
		OpenedAt:   opened,
		Blocks:     vs.ledger.Len(),
		Voters:     vs.registry.Len(),
		Policy:     vs.registry.Policy(),
		Difficulty: vs.ledger.Difficulty(),
		LastHash:   vs.ledger.Latest().Hash,
		Valid:      vs.ledger.IsValid(),
		Metrics:    vs.metrics.GetMetrics(),
	}
	if !closed.IsZero() {
		status.ClosedAt = &closed
	}
	if r := vs.ledger.Recovery(); r != nil {
		status.Recovered = r.Error()
	}
	return status
}
