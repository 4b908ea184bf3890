package panel

// Phase is where a panel sits between its two resting states.
type Phase int

const (
	Collapsed Phase = iota
	Expanding
	Expanded
	Collapsing
)

func (p Phase) String() string {
	switch p {
	case Collapsed:
		return "collapsed"
	case Expanding:
		return "expanding"
	case Expanded:
		return "expanded"
	case Collapsing:
		return "collapsing"
	}
	return "unknown"
}

// Settled reports whether no transition is in flight.
func (p Phase) Settled() bool {
	return p == Collapsed || p == Expanded
}

// State is the expansion flag of a single panel. The zero value is collapsed.
type State struct {
	expanded bool
	phase    Phase
}

func (s *State) Expanded() bool { return s.expanded }

func (s *State) Phase() Phase { return s.phase }

// Toggle flips the flag and starts a transition toward the new value.
// A toggle during a transition reverses it straight away.
func (s *State) Toggle() bool {
	s.expanded = !s.expanded
	if s.expanded {
		s.phase = Expanding
	} else {
		s.phase = Collapsing
	}
	return s.expanded
}

// Settle completes the in-flight transition if it was heading toward
// expanded. Completions for a superseded target are ignored.
func (s *State) Settle(expanded bool) bool {
	if expanded != s.expanded {
		return false
	}
	switch s.phase {
	case Expanding:
		s.phase = Expanded
	case Collapsing:
		s.phase = Collapsed
	default:
		return false
	}
	return true
}
