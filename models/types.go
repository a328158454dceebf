package models

import "strings"

// GenesisID is the candidate and voter id of the genesis sentinel vote.
const GenesisID = "genesis"

// GenesisPreviousHash is the previous hash recorded on the genesis block.
const GenesisPreviousHash = "0"

// NewGenesisBlock returns the unsealed sentinel first block of a chain.
func NewGenesisBlock(timestamp int64) *Block {
	return &Block{
		Index:     0,
		Timestamp: timestamp,
		Vote: Vote{
			CandidateID: GenesisID,
			VoterID:     GenesisID,
			Signature: VoteSignature{
				Signature: GenesisID,
				Timestamp: timestamp,
				PublicKey: GenesisID,
			},
		},
		PreviousHash: GenesisPreviousHash,
	}
}

// Tier is the election level a candidate stands in.
type Tier string

const (
	TierLocal      Tier = "local"
	TierProvincial Tier = "provincial"
	TierFederal    Tier = "federal"
)

// TierOf derives the tier from the first letter of a candidate id:
// L for local, P for provincial, anything else is federal.
func TierOf(candidateID string) Tier {
	switch {
	case strings.HasPrefix(strings.ToLower(candidateID), "l"):
		return TierLocal
	case strings.HasPrefix(strings.ToLower(candidateID), "p"):
		return TierProvincial
	default:
		return TierFederal
	}
}
