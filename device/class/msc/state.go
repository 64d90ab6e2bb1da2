package msc

import "fmt"

// botState is the Bulk-Only Transport state machine driving the worker
// task's main loop. It has exactly three members and one legal cycle:
// Idle waits for a command block, ReadCommandBlock executes it and returns
// to Idle, and Ejected is terminal.
type botState uint8

const (
	stateIdle botState = iota
	stateReadCommandBlock
	stateEjected
)

func (s botState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateReadCommandBlock:
		return "read-command-block"
	case stateEjected:
		return "ejected"
	default:
		return fmt.Sprintf("botState(%d)", uint8(s))
	}
}

// transition moves to next, rejecting any sequence that never occurs in a
// correctly driven worker loop. It exists to catch a future edit that wires
// a new transition incorrectly, not because callers are expected to race it.
func (s botState) transition(next botState) botState {
	switch s {
	case stateEjected:
		panic("msc: state transition attempted out of terminal Ejected state")
	case stateIdle:
		if next != stateReadCommandBlock {
			panic(fmt.Sprintf("msc: illegal transition idle -> %s", next))
		}
	case stateReadCommandBlock:
		if next != stateIdle && next != stateEjected {
			panic(fmt.Sprintf("msc: illegal transition read-command-block -> %s", next))
		}
	}
	return next
}
