package encryption

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"

	"voting-ledger/models"
)

// DefaultFreshnessWindow is how old a vote signature may be before it is
// rejected as a replay.
const DefaultFreshnessWindow = 5 * time.Minute

// fingerprintLength is the number of hex characters kept from the secret digest.
const fingerprintLength = 16

// ErrEmptySecret is returned when an authenticator is built without a key.
var ErrEmptySecret = errors.New("signing secret is empty")

// VoteAuthenticator signs and verifies votes with a shared HMAC secret.
type VoteAuthenticator struct {
	secret    []byte
	publicKey string
	window    time.Duration
	now       func() time.Time
}

// AuthOption configures a VoteAuthenticator.
type AuthOption func(*VoteAuthenticator)

// WithFreshnessWindow overrides DefaultFreshnessWindow.
func WithFreshnessWindow(d time.Duration) AuthOption {
	return func(a *VoteAuthenticator) {
		a.window = d
	}
}

// WithClock sets the time source used for signing and freshness checks.
func WithClock(now func() time.Time) AuthOption {
	return func(a *VoteAuthenticator) {
		a.now = now
	}
}

// NewVoteAuthenticator creates an authenticator for the given secret. The
// secret is copied; callers may wipe their slice afterwards.
func NewVoteAuthenticator(secret []byte, opts ...AuthOption) (*VoteAuthenticator, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	a := &VoteAuthenticator{
		secret:    append([]byte(nil), secret...),
		publicKey: Fingerprint(secret),
		window:    DefaultFreshnessWindow,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.window <= 0 {
		return nil, fmt.Errorf("freshness window must be positive, got %s", a.window)
	}
	return a, nil
}

// Sign authenticates candidateID and voterID at the current time.
func (a *VoteAuthenticator) Sign(candidateID, voterID string) models.VoteSignature {
	timestamp := a.now().UnixMilli()
	return models.VoteSignature{
		Signature: a.tag(candidateID, voterID, timestamp),
		Timestamp: timestamp,
		PublicKey: a.publicKey,
	}
}

// Verify recomputes the tag for vote and compares it in constant time.
func (a *VoteAuthenticator) Verify(vote models.Vote) bool {
	expected := a.tag(vote.CandidateID, vote.VoterID, vote.Signature.Timestamp)
	return hmac.Equal([]byte(expected), []byte(vote.Signature.Signature))
}

// VerifyFreshness reports whether a signature made at timestamp (ms) is
// still inside the freshness window.
func (a *VoteAuthenticator) VerifyFreshness(timestamp int64) bool {
	return timestamp > a.now().UnixMilli()-a.window.Milliseconds()
}

// PublicKey returns the fingerprint of the signing secret.
func (a *VoteAuthenticator) PublicKey() string {
	return a.publicKey
}

// Window returns the freshness window.
func (a *VoteAuthenticator) Window() time.Duration {
	return a.window
}

func (a *VoteAuthenticator) tag(candidateID, voterID string, timestamp int64) string {
	mac := hmac.New(sha256.New, a.secret)
	fmt.Fprintf(mac, "%s-%s-%d", candidateID, voterID, timestamp)
	return hex.EncodeToString(mac.Sum(nil))
}

// Fingerprint returns a short Keccak-256 fingerprint of a secret.
func Fingerprint(secret []byte) string {
	return hex.EncodeToString(Keccak256(secret))[:fingerprintLength]
}

// Keccak256 computes Keccak-256 hash
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}
