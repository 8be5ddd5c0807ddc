package door

import "time"

// Status is the reported door status label.
type Status string

const (
	// StatusUnknown is reported until the first transition is observed.
	StatusUnknown Status = "unknown"
	// StatusOpen is reported while the door is open.
	StatusOpen Status = "open"
	// StatusClosed is reported while the door is closed.
	StatusClosed Status = "closed"
)

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// State is the door status owned by the state machine.
type State struct {
	// StartedAt is when the process started observing the door.
	StartedAt time.Time
	// LastOpenedAt is the time of the last "open" transition, nil if none.
	LastOpenedAt *time.Time
	// LastClosedAt is the time of the last "closed" transition, nil if none.
	LastClosedAt *time.Time
	// UpdateCounter counts every accepted transition, repeated ones included.
	UpdateCounter uint64
	// IsOpen reports whether the last transition opened the door.
	IsOpen bool
}

// Status derives the label from the transition counter and the open flag.
func (s *State) Status() Status {
	switch {
	case s.UpdateCounter == 0:
		return StatusUnknown
	case s.IsOpen:
		return StatusOpen
	default:
		return StatusClosed
	}
}

// Clone returns a copy of the state that shares no pointers with s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	return &State{
		StartedAt:     s.StartedAt,
		LastOpenedAt:  cloneTime(s.LastOpenedAt),
		LastClosedAt:  cloneTime(s.LastClosedAt),
		UpdateCounter: s.UpdateCounter,
		IsOpen:        s.IsOpen,
	}
}

// HistoryEntry is one recorded transition. Entries are never modified after
// they are appended.
type HistoryEntry struct {
	// Timestamp is when the transition was accepted.
	Timestamp time.Time
	// Status is the label that resulted from the transition.
	Status Status
	// IsOpen is the requested door state.
	IsOpen bool
}

// TransitionResult describes an accepted transition to the caller.
type TransitionResult struct {
	// Timestamp is when the transition was accepted.
	Timestamp time.Time
	// Status is the label after the transition.
	Status Status
	// WasOpen is the open flag before the transition.
	WasOpen bool
	// IsOpen is the open flag after the transition.
	IsOpen bool
}

// cloneTime copies an optional timestamp.
func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	cloned := *t

	return &cloned
}
