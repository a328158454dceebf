package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// VotingSession is one open/closed cycle of the ledger.
type VotingSession struct {
	id       string
	openedAt time.Time
	closedAt time.Time
	isActive bool
	mu       sync.RWMutex
}

// NewVotingSession opens a session with a fresh id.
func NewVotingSession(now time.Time) *VotingSession {
	return &VotingSession{
		id:       uuid.NewString(),
		openedAt: now,
		isActive: true,
	}
}

func (vs *VotingSession) IsActive() bool {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.isActive
}

// End closes the session. Ending a closed session keeps the original close time.
func (vs *VotingSession) End(now time.Time) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if !vs.isActive {
		return
	}
	vs.isActive = false
	vs.closedAt = now
}

// Restart reopens the session under a new id and returns it.
func (vs *VotingSession) Restart(now time.Time) string {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.id = uuid.NewString()
	vs.openedAt = now
	vs.closedAt = time.Time{}
	vs.isActive = true
	return vs.id
}

func (vs *VotingSession) ID() string {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.id
}

// SessionState is a point-in-time copy of a session, used to carry the
// session across process restarts.
type SessionState struct {
	ID       string    `yaml:"id" json:"id"`
	Active   bool      `yaml:"active" json:"active"`
	OpenedAt time.Time `yaml:"opened_at" json:"opened_at"`
	ClosedAt time.Time `yaml:"closed_at,omitempty" json:"closed_at,omitempty"`
}

// RestoreVotingSession rebuilds a session from state. A state without an id
// opens a fresh session instead.
func RestoreVotingSession(state SessionState, now time.Time) *VotingSession {
	if state.ID == "" {
		return NewVotingSession(now)
	}
	vs := &VotingSession{
		id:       state.ID,
		openedAt: state.OpenedAt,
		isActive: state.Active,
	}
	if !state.Active {
		vs.closedAt = state.ClosedAt
	}
	return vs
}

// State returns a copy of the session.
func (vs *VotingSession) State() SessionState {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return SessionState{
		ID:       vs.id,
		Active:   vs.isActive,
		OpenedAt: vs.openedAt,
		ClosedAt: vs.closedAt,
	}
}

// Times returns when the session opened and, if closed, when it closed.
func (vs *VotingSession) Times() (opened, closed time.Time) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.openedAt, vs.closedAt
}
