package radar

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/actuator"
)

// Sweep defaults.
const (
	DefaultSweepStep     = 5
	DefaultSweepInterval = 20 * time.Millisecond
	DefaultSettleDelay   = 500 * time.Millisecond
)

// Sweep moves the primary steering gear back and forth while running
// and serves the other State requests.
type Sweep struct {
	Actuators *actuator.Driver
	Events    *EventGroup
	// Primary is the index of the swept steering gear.
	Primary  int
	Step     int
	Interval time.Duration
	Settle   time.Duration
	// MeasureWhileSweeping raises ActuatorBits after each step.
	MeasureWhileSweeping bool

	mailbox   *Mailbox
	state     atomic.Int32
	ascending bool

	targetsLock sync.Mutex
	targets     []AppointTarget
}

// NewSweep creates a Sweep in SUSPENDED state.
func NewSweep(actuators *actuator.Driver, events *EventGroup) *Sweep {
	s := &Sweep{
		Actuators: actuators,
		Events:    events,
		Step:      DefaultSweepStep,
		Interval:  DefaultSweepInterval,
		Settle:    DefaultSettleDelay,
		mailbox:   NewMailbox(),
		ascending: true,
	}
	s.state.Store(int32(StateSuspended))
	return s
}

// Notify requests a transition, overwriting a pending request.
func (s *Sweep) Notify(state State) {
	glog.V(2).Infof("sweep requested %s", state)
	s.mailbox.Post(state)
}

// Point requests SPECIAL with the steering gears moved to targets first.
// Targets must be valid for the actuators.
func (s *Sweep) Point(targets []AppointTarget) {
	s.targetsLock.Lock()
	s.targets = append([]AppointTarget(nil), targets...)
	s.targetsLock.Unlock()
	s.Notify(StateSpecial)
}

func (s *Sweep) takeTargets() []AppointTarget {
	s.targetsLock.Lock()
	defer s.targetsLock.Unlock()
	targets := s.targets
	s.targets = nil
	return targets
}

// State returns the state the sweep is in.
func (s *Sweep) State() State {
	return State(s.state.Load())
}

// Run implements Runnable.
func (s *Sweep) Run(ctx context.Context) error {
	state := StateSuspended
	for {
		if next, ok := s.mailbox.Take(); ok {
			if next != state {
				glog.V(2).Infof("sweep %s -> %s", state, next)
			}
			state = next
		}
		s.state.Store(int32(state))

		switch state {
		case StateRunning:
			s.tick()
			if err := sleep(ctx, s.Interval); err != nil {
				return err
			}
		case StateResetting:
			s.ascending = true
			if err := s.Actuators.ResetAngle(); err != nil {
				glog.Errorf("sweep reset failed: %v", err)
			}
			state = StateSuspended
			s.state.Store(int32(state))
		case StateSpecial:
			for _, t := range s.takeTargets() {
				if err := s.Actuators.SetTarget(t.Index, t.Angle); err != nil {
					glog.Errorf("steering %d target %d: %v", t.Index+1, t.Angle, err)
				}
			}
			if err := s.Actuators.Reassert(); err != nil {
				glog.Errorf("sweep re-assert failed: %v", err)
			}
			if err := sleep(ctx, s.Settle); err != nil {
				return err
			}
			s.Events.Actuate(true)
			state = StateSuspended
			s.state.Store(int32(state))
		default:
			select {
			case <-s.mailbox.Wake():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (s *Sweep) tick() {
	scope, err := s.Actuators.Scope(s.Primary)
	if err != nil {
		glog.Errorf("sweep: %v", err)
		return
	}
	angle, ascending := nextAngle(s.Actuators.Angle(s.Primary), s.Step, scope, s.ascending)
	s.ascending = ascending
	if err := s.Actuators.ChangeAngle(s.Primary, angle); err != nil {
		glog.Errorf("sweep step failed: %v", err)
		return
	}
	if s.MeasureWhileSweeping {
		s.Events.Actuate(false)
	}
}

// nextAngle advances angle by step. Direction reverses at both ends
// of [0, scope] and the angle is clamped to the range.
func nextAngle(angle, step, scope int, ascending bool) (int, bool) {
	if ascending {
		angle += step
	} else {
		angle -= step
	}
	if angle >= scope {
		return scope, false
	}
	if angle <= 0 {
		return 0, true
	}
	return angle, ascending
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
