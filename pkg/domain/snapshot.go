package domain

import (
	"time"

	"github.com/aretw0/waypoint/pkg/params"
)

// Snapshot is the persisted location of a router session: the committed state,
// its params, and the states visited so far.
type Snapshot struct {
	SessionID    string         `json:"session_id"`
	State        string         `json:"state"`
	Params       map[string]any `json:"params,omitempty"`
	TransitionID int64          `json:"transition_id"`
	History      []string       `json:"history,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewSnapshot creates a snapshot at state.
func NewSnapshot(sessionID, state string, vals params.Values) *Snapshot {
	return &Snapshot{
		SessionID: sessionID,
		State:     state,
		Params:    vals.Clone(),
		History:   []string{state},
		UpdatedAt: time.Now(),
	}
}

// Advance records a committed transition into the snapshot.
func (s *Snapshot) Advance(transitionID int64, state string, vals params.Values) {
	s.TransitionID = transitionID
	s.State = state
	s.Params = vals.Clone()
	s.History = append(s.History, state)
	s.UpdatedAt = time.Now()
}
