package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
)

// EncodeParams converts the values of state's params to their string forms,
// the representation snapshots store. Values without a param are dropped.
func EncodeParams(state *domain.StateNode, vals params.Values) (map[string]any, error) {
	out := make(map[string]any)
	for _, p := range state.Parameters(true) {
		v, ok := vals[p.ID]
		if !ok || v == nil {
			continue
		}
		enc, err := p.Type.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", p.ID, err)
		}
		out[p.ID] = enc
	}
	return out, nil
}

// DecodeParams is the inverse of EncodeParams.
func DecodeParams(state *domain.StateNode, raw map[string]any) (params.Values, error) {
	out := params.Values{}
	for _, p := range state.Parameters(true) {
		v, ok := raw[p.ID]
		if !ok || v == nil {
			continue
		}
		dec, err := p.Type.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", p.ID, err)
		}
		out[p.ID] = dec
	}
	return out, nil
}

// Attach persists every successful transition of r into the snapshot of
// sessionID. The returned function detaches the router.
func (m *Manager) Attach(sessionID string, r *waypoint.Router) func() {
	return r.OnSuccess(waypoint.HookCriteria{}, func(ctx context.Context, t *waypoint.Transition, _ *waypoint.StateNode) (any, error) {
		to := t.To()
		encoded, err := EncodeParams(to, t.Params())
		if err != nil {
			return nil, err
		}
		err = m.Update(ctx, sessionID, func(snap *domain.Snapshot) error {
			snap.Advance(t.ID(), to.Name, encoded)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to persist session %q: %w", sessionID, err)
		}
		m.logger.Debug("session saved", "session_id", sessionID, "state", to.Name, "transition_id", t.ID())
		return nil, nil
	}, waypoint.WithHookName("session:"+sessionID))
}

// Restore moves r to the location saved for sessionID. A session without
// snapshot, or saved at the root, returns a nil transition.
func (m *Manager) Restore(ctx context.Context, sessionID string, r *waypoint.Router) (*waypoint.Transition, error) {
	snap, err := m.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if snap.State == "" {
		return nil, nil
	}

	state := r.Registry().Get(snap.State)
	if state == nil {
		return nil, fmt.Errorf("session %q: %w: %s", sessionID, domain.ErrStateNotFound, snap.State)
	}
	vals, err := DecodeParams(state, snap.Params)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, err)
	}
	m.logger.Debug("restoring session", "session_id", sessionID, "state", snap.State)
	return r.TransitionTo(ctx, state, vals, waypoint.Source("restore"))
}
