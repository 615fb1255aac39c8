package radar

import (
	"context"
	"sync"
	"time"

	"github.com/robotalks/radar.go/pkg/protocol"
)

// Event bits.
const (
	// ActuatorBits are set when steering gears 0..4 reached their targets.
	ActuatorBits uint32 = 0x1F
	// MeasureReadyBit is set when a measurement completes.
	MeasureReadyBit uint32 = 0x20
)

// EventGroup is a set of bits tasks wait on. Each time the steering
// gears are positioned a new round starts, and a measurement records the
// round it was taken in, so a waiter can tell its own measurement from
// one started earlier.
type EventGroup struct {
	bits    uint32
	changed chan struct{}
	lock    sync.Mutex

	round    uint64
	special  uint64
	measured uint64
}

// Set sets bits and wakes up waiters.
func (g *EventGroup) Set(bits uint32) {
	g.lock.Lock()
	g.set(bits)
	g.lock.Unlock()
}

func (g *EventGroup) set(bits uint32) {
	g.bits |= bits
	if g.changed != nil {
		close(g.changed)
		g.changed = nil
	}
}

// Clear clears bits.
func (g *EventGroup) Clear(bits uint32) {
	g.lock.Lock()
	g.bits &^= bits
	g.lock.Unlock()
}

// Bits returns the current bits.
func (g *EventGroup) Bits() uint32 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.bits
}

// Actuate starts a new round and sets ActuatorBits. A special round is
// the one a SPECIAL request waits for.
func (g *EventGroup) Actuate(special bool) uint64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.round++
	if special {
		g.special = g.round
	}
	g.set(ActuatorBits)
	return g.round
}

// SpecialRound returns the latest special round.
func (g *EventGroup) SpecialRound() uint64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.special
}

// TakeActuated waits for ActuatorBits, clears them and returns the
// round they belong to.
func (g *EventGroup) TakeActuated(ctx context.Context) (uint64, error) {
	var round uint64
	err := g.wait(ctx, 0, func() bool {
		if g.bits&ActuatorBits != ActuatorBits {
			return false
		}
		g.bits &^= ActuatorBits
		round = g.round
		return true
	})
	return round, err
}

// Measured records the measurement of a round and sets MeasureReadyBit.
func (g *EventGroup) Measured(round uint64) {
	g.lock.Lock()
	if round > g.measured {
		g.measured = round
	}
	g.set(MeasureReadyBit)
	g.lock.Unlock()
}

// WaitSpecial waits until a special round started after the round after
// has been measured, and clears MeasureReadyBit.
func (g *EventGroup) WaitSpecial(ctx context.Context, after uint64, timeout time.Duration) error {
	return g.wait(ctx, timeout, func() bool {
		if g.special <= after || g.measured < g.special {
			return false
		}
		g.bits &^= MeasureReadyBit
		return true
	})
}

// WaitAll blocks until all bits are set and returns the bits seen.
// When clear is true the bits are cleared on return. A non-positive
// timeout waits forever, otherwise ErrTimeout is returned on elapse.
func (g *EventGroup) WaitAll(ctx context.Context, bits uint32, clear bool, timeout time.Duration) (uint32, error) {
	var cur uint32
	err := g.wait(ctx, timeout, func() bool {
		cur = g.bits
		if cur&bits != bits {
			return false
		}
		if clear {
			g.bits &^= bits
		}
		return true
	})
	return cur, err
}

// wait evaluates done under the lock each time the group changes.
func (g *EventGroup) wait(ctx context.Context, timeout time.Duration, done func() bool) error {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	for {
		g.lock.Lock()
		if done() {
			g.lock.Unlock()
			return nil
		}
		if g.changed == nil {
			g.changed = make(chan struct{})
		}
		changed := g.changed
		g.lock.Unlock()

		select {
		case <-changed:
		case <-timeoutCh:
			return protocol.ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
