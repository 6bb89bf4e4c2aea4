// Package fsm defines the recording session state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateListening State = "listening"
	StateStopping  State = "stopping"
	StateError     State = "error"
)

const (
	EventStart    Event = "start"
	EventAcquired Event = "acquired"
	EventResult   Event = "result"
	EventStop     Event = "stop"
	EventTimeout  Event = "timeout"
	EventCleaned  Event = "cleaned"
	EventFail     Event = "fail"
	EventReset    Event = "reset"
)

// Transition returns the state reached by applying event to current.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateError, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateAcquiring, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateAcquiring:
		switch event {
		case EventAcquired:
			return StateListening, nil
		case EventStop:
			return StateStopping, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventResult:
			return StateListening, nil
		case EventStop, EventTimeout:
			return StateStopping, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopping:
		switch event {
		case EventCleaned:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Active reports whether a session owns, or is about to own, the microphone.
func (s State) Active() bool {
	return s == StateAcquiring || s == StateListening
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
