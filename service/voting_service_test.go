package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-ledger/blockchain"
	"voting-ledger/encryption"
	"voting-ledger/models"
	"voting-ledger/registry"
	"voting-ledger/storage"
)

const testDifficulty = 2

func newTestAuthenticator(t *testing.T) *encryption.VoteAuthenticator {
	t.Helper()
	a, err := encryption.NewVoteAuthenticator([]byte("service-test-secret"))
	require.NoError(t, err)
	return a
}

func newTestService(t *testing.T, store storage.ChainStore, opts ...Option) *VotingService {
	t.Helper()
	opts = append([]Option{WithLedgerOptions(blockchain.WithDifficulty(testDifficulty))}, opts...)
	vs, err := NewVotingService(store, newTestAuthenticator(t), opts...)
	require.NoError(t, err)
	return vs
}

// fakeAuthenticator wraps a real authenticator and can be told to fail checks.
type fakeAuthenticator struct {
	*encryption.VoteAuthenticator
	stale    bool
	badSig   bool
	verified int
}

func (f *fakeAuthenticator) VerifyFreshness(ts int64) bool {
	if f.stale {
		return false
	}
	return f.VoteAuthenticator.VerifyFreshness(ts)
}

func (f *fakeAuthenticator) Verify(vote models.Vote) bool {
	f.verified++
	if f.badSig {
		return false
	}
	return f.VoteAuthenticator.Verify(vote)
}

func TestEndToEndSession(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore())

	// 1. fresh session
	assert.Len(t, vs.GetChain(), 1)
	assert.False(t, vs.IsVotingComplete())

	// 2. two ballots
	_, err := vs.AddBlock("C001", "V1")
	require.NoError(t, err)
	_, err = vs.AddBlock("C002", "V2")
	require.NoError(t, err)
	assert.Len(t, vs.GetChain(), 3)
	assert.True(t, vs.IsValid())
	assert.True(t, vs.HasVoted("V1"))
	assert.True(t, vs.HasVoted("V2"))

	// 3. duplicate
	_, err = vs.AddBlock("C001", "V1")
	var dup *registry.DuplicateVoteError
	require.ErrorAs(t, err, &dup)
	assert.Len(t, vs.GetChain(), 3)

	// 4. close and count
	require.NoError(t, vs.SetVotingEnded(true))
	assert.Equal(t, map[string]int{"C001": 1, "C002": 1}, vs.GetVotingResults())

	// 5. reopen
	require.NoError(t, vs.SetVotingEnded(false))
	assert.Len(t, vs.GetChain(), 1)
	assert.False(t, vs.HasVoted("V1"))
	assert.Empty(t, vs.GetVotingResults())
}

func TestHasVoted_FlipsOnSuccessfulAdd(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore())

	assert.False(t, vs.HasVoted("V9"))
	_, err := vs.AddBlock("C001", "V9")
	require.NoError(t, err)
	assert.True(t, vs.HasVoted("V9"))
}

func TestResults_WithheldWhileOpen(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore())
	_, err := vs.AddBlock("C001", "V1")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{}, vs.GetVotingResults())
	assert.Empty(t, vs.GetAnonymizedVotes())
	assert.False(t, vs.Tally().Complete)
}

func TestResults_ExactCountsAfterClose(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore())
	ballots := []struct{ candidate, voter string }{
		{"C001", "V1"}, {"C001", "V2"}, {"C002", "V3"}, {"C001", "V4"},
	}
	for _, b := range ballots {
		_, err := vs.AddBlock(b.candidate, b.voter)
		require.NoError(t, err)
	}
	require.NoError(t, vs.SetVotingEnded(true))

	assert.Equal(t, map[string]int{"C001": 3, "C002": 1}, vs.GetVotingResults())

	anonymized := vs.GetAnonymizedVotes()
	require.Len(t, anonymized, 4)
	chain := vs.GetChain()
	for i, v := range anonymized {
		assert.Equal(t, chain[i+1].Vote.CandidateID, v.CandidateID)
		assert.Equal(t, chain[i+1].Timestamp, v.Timestamp)
	}
}

func TestTally_ByTier(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore(), WithDuplicatePolicy(registry.PolicyPerTier))
	for _, candidate := range []string{"L001", "P001", "F001"} {
		_, err := vs.AddBlock(candidate, "V1")
		require.NoError(t, err)
	}
	_, err := vs.AddBlock("L002", "V2")
	require.NoError(t, err)
	require.NoError(t, vs.SetVotingEnded(true))

	tally := vs.Tally()
	assert.True(t, tally.Complete)
	assert.Equal(t, 4, tally.TotalVotes)
	assert.Equal(t, map[string]int{"L001": 1, "L002": 1}, tally.ByTier[models.TierLocal])
	assert.Equal(t, map[string]int{"P001": 1}, tally.ByTier[models.TierProvincial])
	assert.Equal(t, map[string]int{"F001": 1}, tally.ByTier[models.TierFederal])
}

func TestAddBlock_PerTierDuplicate(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore(), WithDuplicatePolicy(registry.PolicyPerTier))
	_, err := vs.AddBlock("L001", "V1")
	require.NoError(t, err)

	_, err = vs.AddBlock("L002", "V1")
	var dup *registry.DuplicateVoteError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, models.TierLocal, dup.Tier)

	_, err = vs.AddBlock("P001", "V1")
	assert.NoError(t, err)
}

func TestReset_WipesChainAndRegistry(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore())
	voters := []string{"V1", "V2", "V3"}
	for _, v := range voters {
		_, err := vs.AddBlock("C001", v)
		require.NoError(t, err)
	}
	genesis := vs.GetChain()[0]
	before := vs.SessionID()

	require.NoError(t, vs.SetVotingEnded(true))
	require.NoError(t, vs.SetVotingEnded(false))

	chain := vs.GetChain()
	require.Len(t, chain, 1)
	assert.Equal(t, genesis, chain[0])
	for _, v := range voters {
		assert.False(t, vs.HasVoted(v))
	}
	assert.NotEqual(t, before, vs.SessionID())
	assert.False(t, vs.IsVotingComplete())

	_, err := vs.AddBlock("C002", "V1")
	assert.NoError(t, err)
}

func TestSetVotingEnded_FalseWhileOpenResets(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore())
	_, err := vs.AddBlock("C001", "V1")
	require.NoError(t, err)

	require.NoError(t, vs.SetVotingEnded(false))
	assert.Len(t, vs.GetChain(), 1)
	assert.False(t, vs.HasVoted("V1"))
}

func TestSetVotingEnded_TrueTwiceIsNoop(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore())
	require.NoError(t, vs.SetVotingEnded(true))
	first := vs.Status().ClosedAt
	require.NoError(t, vs.SetVotingEnded(true))

	assert.True(t, vs.IsVotingComplete())
	assert.Equal(t, first, vs.Status().ClosedAt)
}

func TestAddBlock_ClosedSession(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore())
	require.NoError(t, vs.SetVotingEnded(true))

	_, err := vs.AddBlock("C001", "V1")
	assert.ErrorIs(t, err, ErrVotingClosed)
	assert.Len(t, vs.GetChain(), 1)
	assert.Equal(t, 1, vs.Status().Metrics.Voting.Rejected)
}

func TestAddBlock_InvalidBallot(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore())

	_, err := vs.AddBlock("", "V1")
	assert.ErrorIs(t, err, ErrInvalidBallot)
	_, err = vs.AddBlock("C001", "")
	assert.ErrorIs(t, err, ErrInvalidBallot)
	assert.Len(t, vs.GetChain(), 1)
}

func TestAddBlock_InvalidUTF8KeepsChainAcrossRestart(t *testing.T) {
	store := storage.NewMemoryStore()
	vs := newTestService(t, store)
	_, err := vs.AddBlock("C001", "V1")
	require.NoError(t, err)

	_, err = vs.AddBlock("C\xff02", "V2")
	assert.ErrorIs(t, err, ErrInvalidBallot)
	_, err = vs.AddBlock("C002", "V\xfe3")
	assert.ErrorIs(t, err, ErrInvalidBallot)
	assert.Len(t, vs.GetChain(), 2)

	restarted := newTestService(t, store)
	assert.Nil(t, restarted.Recovery())
	assert.Len(t, restarted.GetChain(), 2)
	assert.True(t, restarted.HasVoted("V1"))
	assert.True(t, restarted.IsValid())
}

func TestAddBlock_StaleSignature(t *testing.T) {
	auth := &fakeAuthenticator{VoteAuthenticator: newTestAuthenticator(t), stale: true}
	vs, err := NewVotingService(storage.NewMemoryStore(), auth,
		WithLedgerOptions(blockchain.WithDifficulty(testDifficulty)))
	require.NoError(t, err)

	_, err = vs.AddBlock("C001", "V1")
	var stale *StaleVoteError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, "V1", stale.VoterID)
	assert.Len(t, vs.GetChain(), 1)
	assert.False(t, vs.HasVoted("V1"))
	assert.Zero(t, auth.verified)
}

func TestAddBlock_SignatureRejected(t *testing.T) {
	auth := &fakeAuthenticator{VoteAuthenticator: newTestAuthenticator(t)}
	vs, err := NewVotingService(storage.NewMemoryStore(), auth,
		WithLedgerOptions(blockchain.WithDifficulty(testDifficulty)))
	require.NoError(t, err)
	auth.badSig = true

	_, err = vs.AddBlock("C001", "V1")
	var sigErr *SignatureVerificationError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, "C001", sigErr.CandidateID)
	assert.Len(t, vs.GetChain(), 1)
	assert.False(t, vs.HasVoted("V1"))
}

type failingStore struct {
	*storage.MemoryStore
	fail bool
}

func (s *failingStore) Save(blocks []*models.Block) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(blocks)
}

func TestAddBlock_PersistFailureDoesNotRecordVoter(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore()}
	vs := newTestService(t, store)
	store.fail = true

	_, err := vs.AddBlock("C001", "V1")
	require.Error(t, err)
	assert.False(t, vs.HasVoted("V1"))
	assert.Len(t, vs.GetChain(), 1)

	store.fail = false
	_, err = vs.AddBlock("C001", "V1")
	assert.NoError(t, err)
}

func TestReset_PersistFailureKeepsSession(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore()}
	vs := newTestService(t, store)
	_, err := vs.AddBlock("C001", "V1")
	require.NoError(t, err)
	require.NoError(t, vs.SetVotingEnded(true))
	id := vs.SessionID()

	store.fail = true
	require.Error(t, vs.SetVotingEnded(false))
	assert.Equal(t, id, vs.SessionID())
	assert.True(t, vs.IsVotingComplete())
	assert.True(t, vs.HasVoted("V1"))
}

func TestRestart_RebuildsRegistryFromChain(t *testing.T) {
	store := storage.NewMemoryStore()
	auth := newTestAuthenticator(t)
	ledgerOpts := WithLedgerOptions(blockchain.WithDifficulty(testDifficulty))

	vs1, err := NewVotingService(store, auth, ledgerOpts)
	require.NoError(t, err)
	_, err = vs1.AddBlock("C001", "V1")
	require.NoError(t, err)

	vs2, err := NewVotingService(store, auth, ledgerOpts)
	require.NoError(t, err)
	assert.Len(t, vs2.GetChain(), 2)
	assert.True(t, vs2.HasVoted("V1"))

	_, err = vs2.AddBlock("C002", "V1")
	var dup *registry.DuplicateVoteError
	assert.ErrorAs(t, err, &dup)
}

func TestStartup_RecoversFromTamperedChain(t *testing.T) {
	store := storage.NewMemoryStore()
	auth := newTestAuthenticator(t)
	ledgerOpts := WithLedgerOptions(blockchain.WithDifficulty(testDifficulty))

	vs1, err := NewVotingService(store, auth, ledgerOpts)
	require.NoError(t, err)
	_, err = vs1.AddBlock("C001", "V1")
	require.NoError(t, err)

	blocks, err := store.Load()
	require.NoError(t, err)
	blocks[1].Vote.CandidateID = "C002"
	require.NoError(t, store.Save(blocks))

	vs2, err := NewVotingService(store, auth, ledgerOpts)
	require.NoError(t, err)
	require.NotNil(t, vs2.Recovery())
	assert.Len(t, vs2.GetChain(), 1)
	assert.False(t, vs2.HasVoted("V1"))
	assert.NotEmpty(t, vs2.Status().Recovered)
}

func TestVoterStatus(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	vs := newTestService(t, storage.NewMemoryStore(),
		WithDuplicatePolicy(registry.PolicyPerTier),
		WithClock(func() time.Time { return at }))

	_, err := vs.AddBlock("P001", "V1")
	require.NoError(t, err)
	_, err = vs.AddBlock("L001", "V1")
	require.NoError(t, err)

	status := vs.VoterStatus("V1")
	assert.True(t, status.HasVoted)
	assert.Equal(t, []models.Tier{models.TierLocal, models.TierProvincial}, status.Tiers)
	assert.Equal(t, at.UnixMilli(), status.LastActivity)

	assert.Equal(t, VoterStatus{VoterID: "V2"}, vs.VoterStatus("V2"))
}

func TestStatus(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore())
	_, err := vs.AddBlock("C001", "V1")
	require.NoError(t, err)

	status := vs.Status()
	assert.Equal(t, vs.SessionID(), status.SessionID)
	assert.True(t, status.Active)
	assert.Nil(t, status.ClosedAt)
	assert.Equal(t, 2, status.Blocks)
	assert.Equal(t, 1, status.Voters)
	assert.Equal(t, registry.PolicyPerVoter, status.Policy)
	assert.Equal(t, testDifficulty, status.Difficulty)
	assert.Equal(t, vs.GetChain()[1].Hash, status.LastHash)
	assert.True(t, status.Valid)
	assert.Empty(t, status.Recovered)
}

func TestMetrics_CountsAcceptedAndRejected(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore())
	_, err := vs.AddBlock("C001", "V1")
	require.NoError(t, err)
	_, err = vs.AddBlock("C001", "V1")
	require.Error(t, err)

	m := vs.Status().Metrics
	assert.Equal(t, 1, m.Voting.Count)
	assert.Equal(t, 1, m.Voting.Rejected)
	assert.False(t, m.VotingPhase.StartTime.IsZero())
	assert.True(t, m.VotingPhase.EndTime.IsZero())

	require.NoError(t, vs.SetVotingEnded(true))
	vs.GetVotingResults()
	m = vs.Status().Metrics
	assert.Equal(t, 1, m.Counting.Count)
	assert.False(t, m.VotingPhase.EndTime.IsZero())
}

func TestNewVotingService_RequiresCollaborators(t *testing.T) {
	_, err := NewVotingService(nil, newTestAuthenticator(t))
	assert.Error(t, err)
	_, err = NewVotingService(storage.NewMemoryStore(), nil)
	assert.Error(t, err)
}

func TestSessionState_ResumesClosedSession(t *testing.T) {
	store := storage.NewMemoryStore()
	auth := newTestAuthenticator(t)
	ledgerOpts := WithLedgerOptions(blockchain.WithDifficulty(testDifficulty))

	vs1, err := NewVotingService(store, auth, ledgerOpts)
	require.NoError(t, err)
	_, err = vs1.AddBlock("C001", "V1")
	require.NoError(t, err)
	require.NoError(t, vs1.SetVotingEnded(true))
	state := vs1.SessionState()
	assert.False(t, state.Active)
	assert.False(t, state.ClosedAt.IsZero())

	vs2, err := NewVotingService(store, auth, ledgerOpts, WithSessionState(state))
	require.NoError(t, err)
	assert.Equal(t, state.ID, vs2.SessionID())
	assert.True(t, vs2.IsVotingComplete())
	assert.Equal(t, map[string]int{"C001": 1}, vs2.GetVotingResults())

	_, err = vs2.AddBlock("C002", "V2")
	assert.ErrorIs(t, err, ErrVotingClosed)
}

func TestSessionState_EmptyStateOpensFreshSession(t *testing.T) {
	vs := newTestService(t, storage.NewMemoryStore(), WithSessionState(SessionState{}))
	assert.NotEmpty(t, vs.SessionID())
	assert.False(t, vs.IsVotingComplete())
}
