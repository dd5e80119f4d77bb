package transaction

// Status is the closed set of transaction lifecycle states.
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusAuthorized Status = "authorized"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReversed   Status = "reversed"
	StatusDisputed   Status = "disputed"
)

// transitions is the allowed-transition table. Failed and Reversed are
// terminal.
var transitions = map[Status]map[Status]bool{
	StatusInitiated:  {StatusAuthorized: true, StatusFailed: true},
	StatusAuthorized: {StatusCompleted: true, StatusFailed: true},
	StatusCompleted:  {StatusReversed: true, StatusDisputed: true},
	StatusDisputed:   {StatusCompleted: true, StatusReversed: true},
	StatusFailed:     {},
	StatusReversed:   {},
}

// CanTransitionTo reports whether the transition s -> target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	return transitions[s][target]
}

// IsTerminal reports whether no transition leaves this status.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// String returns the status name.
func (s Status) String() string {
	return string(s)
}
