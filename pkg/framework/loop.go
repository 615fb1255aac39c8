package framework

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Loop runs the background tasks of a device and ticks controllers
// at a fixed interval.
type Loop struct {
	Interval time.Duration

	controllers []Controller
	runners     []Runnable
	lock        sync.Mutex

	iteration uint64
	wakeUpCh  chan struct{}
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	ctx       context.Context
	time      time.Time
	iteration uint64
}

func (t *loopIteration) Context() context.Context { return t.ctx }
func (t *loopIteration) Time() time.Time          { return t.time }
func (t *loopIteration) Iteration() uint64        { return t.iteration }

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: time.Second, wakeUpCh: make(chan struct{}, 1)}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers. A controller which is also
// a Runnable is started with the loop.
func (l *Loop) AddController(ctls ...Controller) *Loop {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.controllers = append(l.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.lock.Lock()
	l.runners = append(l.runners, runnables...)
	l.lock.Unlock()
	return l
}

// Run implements Runnable. When any runner fails, the rest are
// canceled and the error is returned.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.lock.Lock()
	runners := append([]Runnable(nil), l.runners...)
	l.lock.Unlock()

	var doneCh chan error
	if len(runners) > 0 {
		runner := NewRunnerWith(ctx)
		runner.Go(runners...)
		doneCh = make(chan error, 1)
		go func() {
			doneCh <- runner.Wait()
		}()
	}

	interval := l.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if doneCh != nil {
				if err := <-doneCh; err != nil {
					return err
				}
			}
			return ctx.Err()
		case err := <-doneCh:
			return err
		case <-ticker.C:
			l.runIteration(ctx)
		case <-l.wakeUpCh:
			l.runIteration(ctx)
		}
	}
}

// RunOrFail runs the loop from main and exits the process on failure.
func (l *Loop) RunOrFail(ctx context.Context) {
	if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		glog.Exitln(err)
	}
}

// TriggerNext requests an iteration without waiting for the ticker,
// collapsing with one already pending.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

func (l *Loop) runIteration(ctx context.Context) {
	l.iteration++
	iter := &loopIteration{ctx: ctx, time: time.Now(), iteration: l.iteration}
	l.lock.Lock()
	ctls := l.controllers
	l.lock.Unlock()
	for _, ctl := range ctls {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("controller error: %v", err)
		}
	}
}
