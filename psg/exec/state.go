package exec

// State is the worker's execution state. Values are ordered so that a
// later state means more progress toward termination; ordering is an
// implementation detail and all range checks go through the predicates
// below.
type State int

const (
	Initialized State = iota
	Running
	Pausing
	Paused
	Interrupting
	Interrupted
	RunOn
	Reseting
	Exiting
	Shutdown
	Crashed
)

var stateNames = map[State]string{
	Initialized:  "initialized",
	Running:      "running",
	Pausing:      "pausing",
	Paused:       "paused",
	Interrupting: "interrupting",
	Interrupted:  "interrupted",
	RunOn:        "run-on",
	Reseting:     "reseting",
	Exiting:      "exiting",
	Shutdown:     "shutdown",
	Crashed:      "crashed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// terminal reports whether the run loop is done for good.
func (s State) terminal() bool {
	return s >= Exiting
}

// deferred reports whether the worker must service the state in its
// dispatch loop before resuming.
func (s State) deferred() bool {
	return s > Running && s < Exiting
}

// active reports whether the worker has started and not yet begun
// shutting down.
func (s State) active() bool {
	return s >= Running && s < Exiting
}
