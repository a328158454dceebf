package anonymizer

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-ledger/models"
)

func sampleVotes() []models.AnonymizedVote {
	votes := make([]models.AnonymizedVote, 0, 20)
	for i := 0; i < 20; i++ {
		candidate := "C001"
		if i%3 == 0 {
			candidate = "C002"
		}
		votes = append(votes, models.AnonymizedVote{Timestamp: 1700000000000 + int64(i)*1000, CandidateID: candidate})
	}
	return votes
}

func counts(votes []models.AnonymizedVote) map[string]int {
	c := make(map[string]int)
	for _, v := range votes {
		c[v.CandidateID]++
	}
	return c
}

func TestShuffleVotes_PreservesMultiset(t *testing.T) {
	votes := sampleVotes()
	original := append([]models.AnonymizedVote(nil), votes...)

	shuffled, err := New().ShuffleVotes(votes)
	require.NoError(t, err)

	assert.Equal(t, original, votes, "input must not be modified")
	assert.ElementsMatch(t, votes, shuffled)
}

func TestShuffleVotes_Empty(t *testing.T) {
	shuffled, err := New().ShuffleVotes(nil)
	require.NoError(t, err)
	assert.Empty(t, shuffled)
}

func TestShuffleVotes_RandomSourceFailure(t *testing.T) {
	_, err := NewWithReader(bytes.NewReader(nil)).ShuffleVotes(sampleVotes())
	assert.Error(t, err)
}

func TestMixVotes_KeepsCountsAndRange(t *testing.T) {
	votes := sampleVotes()
	mixed, err := New().MixVotes(votes)
	require.NoError(t, err)

	require.Len(t, mixed, len(votes))
	assert.Equal(t, counts(votes), counts(mixed))
	assert.True(t, sort.SliceIsSorted(mixed, func(i, j int) bool { return mixed[i].Timestamp < mixed[j].Timestamp }))

	lo, hi := votes[0].Timestamp, votes[len(votes)-1].Timestamp
	for _, v := range mixed {
		assert.GreaterOrEqual(t, v.Timestamp, lo)
		assert.LessOrEqual(t, v.Timestamp, hi)
	}
}

func TestMixVotes_SingleVoteUnchanged(t *testing.T) {
	votes := sampleVotes()[:1]
	mixed, err := New().MixVotes(votes)
	require.NoError(t, err)
	assert.Equal(t, votes, mixed)
}
