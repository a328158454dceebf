package service

import (
	"sort"

	"voting-ledger/models"
)

// VoterStatus describes one voter's participation in the current session.
type VoterStatus struct {
	VoterID  string        `json:"voter_id"`
	HasVoted bool          `json:"has_voted"`
	Tiers    []models.Tier `json:"tiers,omitempty"`
	// LastActivity is the timestamp in ms of the voter's most recent block.
	LastActivity int64 `json:"last_activity,omitempty"`
}

// VoterStatus reports whether voterID voted in this session and in which
// election tiers.
func (vs *VotingService) VoterStatus(voterID string) VoterStatus {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	status := VoterStatus{
		VoterID:  voterID,
		HasVoted: vs.registry.HasVoted(voterID),
	}
	if !status.HasVoted {
		return status
	}

	seen := make(map[models.Tier]bool)
	for _, block := range vs.ledger.Chain() {
		if block.Index == 0 || block.Vote.VoterID != voterID {
			continue
		}
		seen[models.TierOf(block.Vote.CandidateID)] = true
		if block.Timestamp > status.LastActivity {
			status.LastActivity = block.Timestamp
		}
	}
	for tier := range seen {
		status.Tiers = append(status.Tiers, tier)
	}
	sort.Slice(status.Tiers, func(i, j int) bool { return status.Tiers[i] < status.Tiers[j] })
	return status
}
