package radar

import "sync/atomic"

// State is the sweep state.
type State int32

// Sweep states. StateNone means no pending request.
const (
	StateNone State = iota
	StateSuspended
	StateRunning
	StateResetting
	StateSpecial
)

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "SUSPENDED"
	case StateRunning:
		return "RUNNING"
	case StateResetting:
		return "RESETTING"
	case StateSpecial:
		return "SPECIAL"
	}
	return "NONE"
}

// Mailbox holds the latest requested State. A new request overwrites
// the pending one.
type Mailbox struct {
	pending atomic.Int32
	wakeCh  chan struct{}
}

// NewMailbox creates a Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{wakeCh: make(chan struct{}, 1)}
}

// Post requests a State and wakes up the consumer.
func (m *Mailbox) Post(s State) {
	m.pending.Store(int32(s))
	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
}

// Take reads and clears the pending request.
func (m *Mailbox) Take() (State, bool) {
	s := State(m.pending.Swap(int32(StateNone)))
	return s, s != StateNone
}

// Wake is signaled after each Post.
func (m *Mailbox) Wake() <-chan struct{} {
	return m.wakeCh
}
