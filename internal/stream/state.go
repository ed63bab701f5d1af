package stream

import "fmt"

type State int

const (
	StateConnecting State = iota
	StateStreaming
	StateReconnecting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateStreaming:
		return "Streaming"
	case StateReconnecting:
		return "Reconnecting"
	case StateTerminated:
		return "Terminated"
	default:
		return "InvalidState"
	}
}

func (s State) validateTransitionTo(newState State) error {
	switch s {
	case StateConnecting:
		switch newState {
		case StateStreaming, StateReconnecting, StateTerminated:
			return nil
		}
	case StateStreaming:
		switch newState {
		case StateReconnecting, StateTerminated:
			return nil
		}
	case StateReconnecting:
		switch newState {
		case StateConnecting, StateTerminated:
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %v to %v", s, newState)
}
