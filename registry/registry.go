// Package registry tracks which voters have cast a vote in the current session.
package registry

import (
	"fmt"
	"sort"

	"voting-ledger/models"
)

// DuplicatePolicy decides what counts as a second vote by the same voter.
type DuplicatePolicy string

const (
	// PolicyPerVoter allows one vote per voter per session.
	PolicyPerVoter DuplicatePolicy = "voter"
	// PolicyPerTier allows one vote per voter per election tier per session.
	PolicyPerTier DuplicatePolicy = "tier"
)

// ParsePolicy validates a policy name; the empty string selects PolicyPerVoter.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", PolicyPerVoter:
		return PolicyPerVoter, nil
	case PolicyPerTier:
		return PolicyPerTier, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q (want %q or %q)", s, PolicyPerVoter, PolicyPerTier)
	}
}

// DuplicateVoteError reports a voter who already voted in the session.
type DuplicateVoteError struct {
	VoterID string
	// Tier is set only under PolicyPerTier.
	Tier models.Tier
}

func (e *DuplicateVoteError) Error() string {
	if e.Tier != "" {
		return fmt.Sprintf("voter %s has already cast a %s vote", e.VoterID, e.Tier)
	}
	return fmt.Sprintf("voter %s has already cast their vote", e.VoterID)
}

type entryKey struct {
	voterID string
	tier    models.Tier
}

// VoteRegistry records voters under the current session id. Entries stamped
// with an older session id are treated as absent.
type VoteRegistry struct {
	sessionID string
	policy    DuplicatePolicy
	entries   map[entryKey]string
}

// New creates an empty registry for sessionID.
func New(sessionID string, policy DuplicatePolicy) *VoteRegistry {
	if policy == "" {
		policy = PolicyPerVoter
	}
	return &VoteRegistry{
		sessionID: sessionID,
		policy:    policy,
		entries:   make(map[entryKey]string),
	}
}

// HasVoted reports whether voterID has any vote recorded in the current session.
func (r *VoteRegistry) HasVoted(voterID string) bool {
	for key, session := range r.entries {
		if key.voterID == voterID && session == r.sessionID {
			return true
		}
	}
	return false
}

// HasVotedFor reports whether a vote by voterID for candidateID would be a
// duplicate under the registry policy.
func (r *VoteRegistry) HasVotedFor(voterID, candidateID string) bool {
	return r.entries[r.key(voterID, candidateID)] == r.sessionID
}

// Record stamps voterID as having voted for candidateID in the current session.
func (r *VoteRegistry) Record(voterID, candidateID string) error {
	key := r.key(voterID, candidateID)
	if r.entries[key] == r.sessionID {
		return &DuplicateVoteError{VoterID: voterID, Tier: key.tier}
	}
	r.entries[key] = r.sessionID
	return nil
}

// Reset clears all entries and adopts sessionID.
func (r *VoteRegistry) Reset(sessionID string) {
	r.sessionID = sessionID
	r.entries = make(map[entryKey]string)
}

// SessionID returns the current session id.
func (r *VoteRegistry) SessionID() string {
	return r.sessionID
}

// Policy returns the duplicate policy.
func (r *VoteRegistry) Policy() DuplicatePolicy {
	return r.policy
}

// Tiers returns the tiers voterID voted in this session, sorted. Under
// PolicyPerVoter the result is empty even for voters who voted.
func (r *VoteRegistry) Tiers(voterID string) []models.Tier {
	var tiers []models.Tier
	for key, session := range r.entries {
		if key.voterID == voterID && session == r.sessionID && key.tier != "" {
			tiers = append(tiers, key.tier)
		}
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })
	return tiers
}

// Voters returns every voter recorded in the current session, sorted.
func (r *VoteRegistry) Voters() []string {
	seen := make(map[string]bool)
	for key, session := range r.entries {
		if session == r.sessionID {
			seen[key.voterID] = true
		}
	}
	voters := make([]string, 0, len(seen))
	for v := range seen {
		voters = append(voters, v)
	}
	sort.Strings(voters)
	return voters
}

// Len returns the number of distinct voters in the current session.
func (r *VoteRegistry) Len() int {
	return len(r.Voters())
}

func (r *VoteRegistry) key(voterID, candidateID string) entryKey {
	if r.policy == PolicyPerTier {
		return entryKey{voterID: voterID, tier: models.TierOf(candidateID)}
	}
	return entryKey{voterID: voterID}
}
