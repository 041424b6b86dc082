// Package input turns per-frame pointer and keyboard state into discrete events.
package input

// Event types
type EventType int

const (
	EventNone EventType = iota
	EventPointerDown
	EventPointerMove
	EventPointerUp
	EventModifierDown
	EventModifierUp
)

func (t EventType) String() string {
	switch t {
	case EventPointerDown:
		return "pointer-down"
	case EventPointerMove:
		return "pointer-move"
	case EventPointerUp:
		return "pointer-up"
	case EventModifierDown:
		return "modifier-down"
	case EventModifierUp:
		return "modifier-up"
	}
	return "none"
}

// State is the pointer and modifier state sampled once per frame.
type State struct {
	X, Y     float32 // Pointer position relative to the viewport
	Primary  bool    // Primary button held
	Modifier bool    // Placement modifier held
}

// Event represents a processed input event. Primary and Modifier report the
// state at the time of the event.
type Event struct {
	Type     EventType
	X, Y     float32
	Primary  bool
	Modifier bool
}

// Tracker diffs successive states.
type Tracker struct {
	prev    State
	started bool
	events  []Event
}

// New creates a new tracker.
func New() *Tracker {
	return &Tracker{events: make([]Event, 0, 4)}
}

// Update records s and returns the events since the previous state. Modifier
// changes come before pointer button changes. The slice is reused by the next
// call.
func (t *Tracker) Update(s State) []Event {
	t.events = t.events[:0]
	if !t.started {
		t.started = true
		t.prev = State{X: s.X, Y: s.Y}
	}

	emit := func(typ EventType) {
		t.events = append(t.events, Event{Type: typ, X: s.X, Y: s.Y, Primary: s.Primary, Modifier: s.Modifier})
	}

	switch {
	case s.Modifier && !t.prev.Modifier:
		emit(EventModifierDown)
	case !s.Modifier && t.prev.Modifier:
		emit(EventModifierUp)
	}
	if s.X != t.prev.X || s.Y != t.prev.Y {
		emit(EventPointerMove)
	}
	switch {
	case s.Primary && !t.prev.Primary:
		emit(EventPointerDown)
	case !s.Primary && t.prev.Primary:
		emit(EventPointerUp)
	}

	t.prev = s
	return t.events
}

// State returns the last recorded state.
func (t *Tracker) State() State {
	return t.prev
}
