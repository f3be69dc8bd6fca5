package device

// ValidTransition reports whether moving from one lifecycle state to
// another is legal per the state machine in spec.md §4.F: only Connect
// may leave DISCONNECTED, only StartStreaming enters STREAMING, only
// StopStreaming leaves it, any operation may fail into ERROR, and only
// Disconnect leaves ERROR.
func ValidTransition(from, to State) bool {
	if to == StateError {
		return true
	}
	switch from {
	case StateDisconnected:
		return to == StateConnecting
	case StateConnecting:
		return to == StateConnected || to == StateDisconnected
	case StateConnected:
		return to == StateStreaming || to == StateDisconnected
	case StateStreaming:
		return to == StateConnected
	case StateError:
		return to == StateDisconnected
	default:
		return false
	}
}
