package radar

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/radar.go/pkg/actuator"
	"github.com/robotalks/radar.go/pkg/modbus"
	"github.com/robotalks/radar.go/pkg/protocol"
)

type lockedBuffer struct {
	buf  bytes.Buffer
	lock sync.Mutex
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

// take returns and drains everything written so far.
func (b *lockedBuffer) take() []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	p := append([]byte(nil), b.buf.Bytes()...)
	b.buf.Reset()
	return p
}

type fakeSensor struct {
	lock     sync.Mutex
	distance uint16
	err      error
	calls    int
	// read replaces distance, it is sampled when a measurement starts
	// and returned after delay.
	read  func() uint16
	delay time.Duration
}

func (s *fakeSensor) MeasureDistance(ctx context.Context) (uint16, error) {
	s.lock.Lock()
	s.calls++
	distance, err, delay := s.distance, s.err, s.delay
	if s.read != nil {
		distance = s.read()
	}
	s.lock.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return distance, err
}

func (s *fakeSensor) callCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.calls
}

func (s *fakeSensor) set(distance uint16, err error) {
	s.lock.Lock()
	s.distance, s.err = distance, err
	s.lock.Unlock()
}

type fixedBaud int

func (b fixedBaud) BaudRate() int { return int(b) }

type radarTestEnv struct {
	t          *testing.T
	out        *lockedBuffer
	server     *modbus.Server
	status     *Status
	sweep      *Sweep
	sensor     *fakeSensor
	measurer   *Measurer
	dispatcher *Dispatcher
	text       *TextCommands
}

func newRadarTestEnv(t *testing.T, steerings int) *radarTestEnv {
	configs := make([]actuator.SteeringConfig, steerings)
	for i := range configs {
		configs[i] = actuator.SteeringConfig{Channel: i, Scope: 180, MinHighUs: 500, MaxHighUs: 2500}
	}
	driver, err := actuator.NewDriver(actuator.Timer{Frequency: 50, Resolution: 13}, 90, nil, configs...)
	require.NoError(t, err)

	env := &radarTestEnv{t: t, out: &lockedBuffer{}, sensor: &fakeSensor{distance: 321}}
	addr := modbus.NewAddressStore("")
	env.server = modbus.NewServer(addr, env.out)
	env.status = NewStatus(addr, driver)
	env.sweep = NewSweep(driver, env.status.Events)
	env.sweep.Interval = time.Millisecond
	env.sweep.Settle = 5 * time.Millisecond
	env.measurer = &Measurer{Sensor: env.sensor, Status: env.status}
	env.dispatcher = NewDispatcher(env.server, env.status, env.sweep, fixedBaud(115200))
	env.dispatcher.MeasureWait = 500 * time.Millisecond
	env.text = &TextCommands{Status: env.status, Sweep: env.sweep}
	return env
}

// start runs the sweep and the measurer until the test ends.
func (e *radarTestEnv) start() {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); e.sweep.Run(ctx) }()
	go func() { defer wg.Done(); e.measurer.Run(ctx) }()
	e.t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

// exec feeds a host frame through the server and dispatches it.
func (e *radarTestEnv) exec(frame []byte) ([]byte, error) {
	e.server.HandleData(context.TODO(), e.out, frame)
	req, err := e.server.Wait(context.TODO(), time.Second)
	require.NoError(e.t, err)
	defer e.server.Done()
	err = e.dispatcher.Dispatch(context.TODO(), req)
	return e.out.take(), err
}

func errFrame(code protocol.StatusCode) []byte {
	return protocol.ErrorResponse(code)
}
