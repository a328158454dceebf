package models

// VoteSignature authenticates a vote. PublicKey is a fingerprint of the
// signing secret, useful for display only.
type VoteSignature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	PublicKey string `json:"publicKey"`
}

// Vote is a single ballot. It is meaningful only when Signature verifies
// against CandidateID, VoterID and Signature.Timestamp.
type Vote struct {
	CandidateID string        `json:"candidateId"`
	VoterID     string        `json:"voterId"`
	Signature   VoteSignature `json:"signature"`
}

// AnonymizedVote is a vote with the voter identity removed, for display and export.
type AnonymizedVote struct {
	Timestamp   int64  `json:"timestamp"`
	CandidateID string `json:"candidateId"`
}
