package hub

import "sync"

// ParticipantState is the per-(call, user) mutable record. Mutated only by
// the participant it describes.
type ParticipantState struct {
	AudioMuted   bool `json:"audioMuted"`
	VideoEnabled bool `json:"videoEnabled"`
}

// StateKind selects which field a state change targets.
type StateKind string

const (
	StateAudio StateKind = "audio"
	StateVideo StateKind = "video"
)

type callState struct {
	mu           sync.Mutex
	participants map[int64]*ParticipantState
	breakouts    map[int64]string // userID -> breakout room id
}

// Tracker is the authoritative record of who is in which call with what
// audio/video state and which breakout assignment. Each call carries its own
// lock so state changes in unrelated calls never contend.
type Tracker struct {
	mu    sync.RWMutex
	calls map[string]*callState
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{calls: make(map[string]*callState)}
}

func (t *Tracker) getOrCreate(callID string) *callState {
	t.mu.RLock()
	cs := t.calls[callID]
	t.mu.RUnlock()
	if cs != nil {
		return cs
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if cs = t.calls[callID]; cs == nil {
		cs = &callState{
			participants: make(map[int64]*ParticipantState),
			breakouts:    make(map[int64]string),
		}
		t.calls[callID] = cs
	}
	return cs
}

// JoinCall records the participant with default state: unmuted, video on.
func (t *Tracker) JoinCall(callID string, userID int64) ParticipantState {
	cs := t.getOrCreate(callID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	state, ok := cs.participants[userID]
	if !ok {
		state = &ParticipantState{AudioMuted: false, VideoEnabled: true}
		cs.participants[userID] = state
	}
	return *state
}

// LeaveCall discards the participant's state and breakout assignment. The
// call entry is reclaimed once nobody remains.
func (t *Tracker) LeaveCall(callID string, userID int64) {
	t.mu.RLock()
	cs := t.calls[callID]
	t.mu.RUnlock()
	if cs == nil {
		return
	}

	cs.mu.Lock()
	delete(cs.participants, userID)
	delete(cs.breakouts, userID)
	empty := len(cs.participants) == 0 && len(cs.breakouts) == 0
	cs.mu.Unlock()

	if empty {
		t.mu.Lock()
		if t.calls[callID] == cs {
			delete(t.calls, callID)
		}
		t.mu.Unlock()
	}
}

// UpdateState mutates one field of the participant's record and invokes
// onUpdated with the resulting state while still holding the call lock, so
// the broadcast that follows can never publish superseded state.
func (t *Tracker) UpdateState(callID string, userID int64, kind StateKind, value bool, onUpdated func(ParticipantState)) {
	cs := t.getOrCreate(callID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	state, ok := cs.participants[userID]
	if !ok {
		state = &ParticipantState{AudioMuted: false, VideoEnabled: true}
		cs.participants[userID] = state
	}
	switch kind {
	case StateAudio:
		state.AudioMuted = value
	case StateVideo:
		state.VideoEnabled = value
	}
	if onUpdated != nil {
		onUpdated(*state)
	}
}

// State returns the participant's current record.
func (t *Tracker) State(callID string, userID int64) (ParticipantState, bool) {
	t.mu.RLock()
	cs := t.calls[callID]
	t.mu.RUnlock()
	if cs == nil {
		return ParticipantState{}, false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	state, ok := cs.participants[userID]
	if !ok {
		return ParticipantState{}, false
	}
	return *state, true
}

// Participants returns a copy of every participant's state in the call.
func (t *Tracker) Participants(callID string) map[int64]ParticipantState {
	t.mu.RLock()
	cs := t.calls[callID]
	t.mu.RUnlock()
	if cs == nil {
		return map[int64]ParticipantState{}
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make(map[int64]ParticipantState, len(cs.participants))
	for id, state := range cs.participants {
		out[id] = *state
	}
	return out
}

// AssignBreakout moves the user to the given breakout room, replacing any
// previous assignment under the same call. Returns the room the user was in
// before, if any.
func (t *Tracker) AssignBreakout(callID string, userID int64, breakoutRoomID string) (previous string) {
	cs := t.getOrCreate(callID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	previous = cs.breakouts[userID]
	cs.breakouts[userID] = breakoutRoomID
	return previous
}

// ClearBreakout removes the user's breakout assignment. Returns the room the
// user was assigned to, if any.
func (t *Tracker) ClearBreakout(callID string, userID int64) string {
	t.mu.RLock()
	cs := t.calls[callID]
	t.mu.RUnlock()
	if cs == nil {
		return ""
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	prev := cs.breakouts[userID]
	delete(cs.breakouts, userID)
	return prev
}

// BreakoutOf reports the user's current breakout assignment under the call.
func (t *Tracker) BreakoutOf(callID string, userID int64) string {
	t.mu.RLock()
	cs := t.calls[callID]
	t.mu.RUnlock()
	if cs == nil {
		return ""
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.breakouts[userID]
}
