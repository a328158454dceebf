// Package anonymizer breaks the link between a published vote and its
// position in the chain.
package anonymizer

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"sort"

	"voting-ledger/models"
)

type Anonymizer struct {
	random io.Reader
}

func New() *Anonymizer {
	return &Anonymizer{random: rand.Reader}
}

// NewWithReader uses r as the randomness source. Tests only.
func NewWithReader(r io.Reader) *Anonymizer {
	return &Anonymizer{random: r}
}

// ShuffleVotes returns a copy of votes in uniformly random order.
func (a *Anonymizer) ShuffleVotes(votes []models.AnonymizedVote) ([]models.AnonymizedVote, error) {
	shuffled := make([]models.AnonymizedVote, len(votes))
	copy(shuffled, votes)

	// Fisher-Yates shuffle
	for i := len(shuffled) - 1; i > 0; i-- {
		j, err := a.intn(int64(i + 1))
		if err != nil {
			return nil, err
		}
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled, nil
}

// MixVotes shuffles votes, then redraws every timestamp uniformly from the
// batch's original time range and sorts by the new timestamps. Counts per
// candidate and the overall time range are preserved.
func (a *Anonymizer) MixVotes(votes []models.AnonymizedVote) ([]models.AnonymizedVote, error) {
	mixed, err := a.ShuffleVotes(votes)
	if err != nil || len(mixed) < 2 {
		return mixed, err
	}

	minTime, maxTime := mixed[0].Timestamp, mixed[0].Timestamp
	for _, vote := range mixed {
		if vote.Timestamp < minTime {
			minTime = vote.Timestamp
		}
		if vote.Timestamp > maxTime {
			maxTime = vote.Timestamp
		}
	}

	timeRange := maxTime - minTime
	if timeRange > 0 {
		for i := range mixed {
			offset, err := a.intn(timeRange + 1)
			if err != nil {
				return nil, err
			}
			mixed[i].Timestamp = minTime + offset
		}
	}

	sort.SliceStable(mixed, func(i, j int) bool {
		return mixed[i].Timestamp < mixed[j].Timestamp
	})
	return mixed, nil
}

func (a *Anonymizer) intn(n int64) (int64, error) {
	v, err := rand.Int(a.random, big.NewInt(n))
	if err != nil {
		return 0, fmt.Errorf("failed to draw random index: %w", err)
	}
	return v.Int64(), nil
}
