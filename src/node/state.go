package node

import (
	"sync/atomic"
)

// NodeState captures the state of a howdy node: Booting, Running or
// Shutdown.
type NodeState uint32

const (
	// Booting is the initial state, before the main loop starts.
	Booting NodeState = iota

	// Running is the single steady state; the node stays in it until the
	// process terminates.
	Running

	// Shutdown is entered on SIGINT or an explicit Shutdown call.
	Shutdown
)

func (s NodeState) String() string {
	switch s {
	case Booting:
		return "Booting"
	case Running:
		return "Running"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state uint32
}

func (b *state) getState() NodeState {
	return NodeState(atomic.LoadUint32(&b.state))
}

func (b *state) setState(s NodeState) {
	atomic.StoreUint32(&b.state, uint32(s))
}
