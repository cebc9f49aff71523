package generation

// State is where a session's generation stands.
type State string

const (
	StateIdle           State = "idle"
	StateDispatching    State = "dispatching"
	StateStreaming      State = "streaming"
	StateSettledSuccess State = "settled_success"
	StateSettledError   State = "settled_error"
)

// Active reports whether the state holds the single-flight gate.
func (s State) Active() bool {
	return s == StateDispatching || s == StateStreaming
}

// Settled reports whether the last generation has finished.
func (s State) Settled() bool {
	return s == StateSettledSuccess || s == StateSettledError
}

// StateChange is delivered to OnStateChange listeners.
type StateChange struct {
	SessionID string `json:"session_id"`
	From      State  `json:"from"`
	To        State  `json:"to"`
	Searching bool   `json:"searching,omitempty"`
}
