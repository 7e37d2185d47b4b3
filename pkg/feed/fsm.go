package feed

// State is the delivery hook's transport position.
type State string

// Hook states. Polling is terminal for the session: once the streaming
// attempt budget is spent the hook never tries to upgrade back.
const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StatePolling      State = "polling"
)

// Input is an observed transport condition.
type Input string

// Transition inputs.
const (
	InputOpened Input = "opened" // stream accepted and readable
	InputError  Input = "error"  // stream failed to open or broke
	InputRetry  Input = "retry"  // backoff elapsed, try streaming again
)

// Transition is the pure state function for the hook. attempts counts
// consecutive failed streaming attempts; maxAttempts bounds them before
// the permanent downgrade to polling. The returned attempts value
// replaces the caller's.
func Transition(s State, in Input, attempts, maxAttempts int) (State, int) {
	switch s {
	case StateConnecting:
		switch in {
		case InputOpened:
			return StateConnected, 0
		case InputError:
			attempts++
			if attempts >= maxAttempts {
				return StatePolling, attempts
			}
			return StateReconnecting, attempts
		}
	case StateConnected:
		if in == InputError {
			attempts++
			if attempts >= maxAttempts {
				return StatePolling, attempts
			}
			return StateReconnecting, attempts
		}
	case StateReconnecting:
		if in == InputRetry {
			return StateConnecting, attempts
		}
	case StatePolling:
		// Terminal; nothing upgrades back.
	}
	return s, attempts
}
