// Package fsm holds the output-device binding lifecycle.
package fsm

import "fmt"

type State string

type Event string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed"
)

const (
	EventDial        Event = "dial"
	EventEstablished Event = "established"
	EventFail        Event = "fail"
	EventClose       Event = "close"
)

// Transition returns the next device state. Closed is terminal.
func Transition(current State, event Event) (State, error) {
	if current == StateClosed {
		if event == EventClose {
			return StateClosed, nil
		}
		return current, invalidTransition(current, event)
	}
	if event == EventClose {
		return StateClosed, nil
	}

	switch current {
	case StateDisconnected:
		switch event {
		case EventDial:
			return StateConnecting, nil
		case EventFail:
			return StateDisconnected, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnecting:
		switch event {
		case EventEstablished:
			return StateConnected, nil
		case EventFail:
			return StateDisconnected, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnected:
		switch event {
		case EventFail:
			return StateDisconnected, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
