package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrVotingClosed is returned by AddBlock once the session has been closed.
	ErrVotingClosed = errors.New("voting has ended")

	// ErrInvalidBallot is returned when a ballot is missing its candidate or voter id.
	ErrInvalidBallot = errors.New("ballot requires a candidate id and a voter id")

	ErrQueueFull   = errors.New("ballot queue is full")
	ErrQueueClosed = errors.New("ballot queue is stopped")
)

// StaleVoteError reports a signature whose timestamp fell outside the
// freshness window at the moment it was checked.
type StaleVoteError struct {
	VoterID   string
	Timestamp int64
	CheckedAt time.Time
}

func (e *StaleVoteError) Error() string {
	age := e.CheckedAt.Sub(time.UnixMilli(e.Timestamp)).Round(time.Millisecond)
	return fmt.Sprintf("vote signature for voter %s is stale (age %s)", e.VoterID, age)
}

// SignatureVerificationError reports a freshly produced signature that did not verify.
type SignatureVerificationError struct {
	VoterID     string
	CandidateID string
}

func (e *SignatureVerificationError) Error() string {
	return fmt.Sprintf("vote signature for voter %s and candidate %s failed verification", e.VoterID, e.CandidateID)
}
