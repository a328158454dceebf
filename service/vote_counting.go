package service

import (
	"time"

	"voting-ledger/models"
)

// chainSource is the read side of the ledger.
type chainSource interface {
	Chain() []models.Block
}

// VoteCountingService derives tallies from the chain. Nothing is revealed
// while the session is still open.
type VoteCountingService struct {
	ledger  chainSource
	session *VotingSession
	metrics *MetricsCollector
}

// VotingResults represents the final vote count
type VotingResults struct {
	Complete   bool                           `json:"complete"`
	TotalVotes int                            `json:"total_votes"`
	Results    map[string]int                 `json:"results"`
	ByTier     map[models.Tier]map[string]int `json:"by_tier"`
}

func NewVoteCountingService(ledger chainSource, session *VotingSession, metrics *MetricsCollector) *VoteCountingService {
	return &VoteCountingService{
		ledger:  ledger,
		session: session,
		metrics: metrics,
	}
}

// GetResults counts non-genesis blocks per candidate id. It returns an empty
// map while voting is still open.
func (vcs *VoteCountingService) GetResults() map[string]int {
	return vcs.Tally().Results
}

// GetAnonymizedVotes lists every cast vote in chain order with the voter id
// removed. It returns an empty slice while voting is still open.
func (vcs *VoteCountingService) GetAnonymizedVotes() []models.AnonymizedVote {
	votes := make([]models.AnonymizedVote, 0)
	if vcs.session.IsActive() {
		return votes
	}
	for _, block := range vcs.ledger.Chain() {
		if block.Index == 0 {
			continue
		}
		votes = append(votes, models.AnonymizedVote{
			Timestamp:   block.Timestamp,
			CandidateID: block.Vote.CandidateID,
		})
	}
	return votes
}

// Tally counts votes per candidate and per election tier.
func (vcs *VoteCountingService) Tally() *VotingResults {
	results := &VotingResults{
		Results: make(map[string]int),
		ByTier:  make(map[models.Tier]map[string]int),
	}
	if vcs.session.IsActive() {
		return results
	}

	start := time.Now()
	results.Complete = true
	for _, block := range vcs.ledger.Chain() {
		if block.Index == 0 {
			continue
		}
		candidate := block.Vote.CandidateID
		results.Results[candidate]++
		results.TotalVotes++

		tier := models.TierOf(candidate)
		if results.ByTier[tier] == nil {
			results.ByTier[tier] = make(map[string]int)
		}
		results.ByTier[tier][candidate]++
	}

	if vcs.metrics != nil {
		vcs.metrics.RecordCounting(time.Since(start))
	}
	return results
}
