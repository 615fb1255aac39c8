package radar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/radar.go/pkg/protocol"
)

func TestDispatchRead(t *testing.T) {
	env := newRadarTestEnv(t, 1)
	require.True(t, env.status.SetScanRate(ScanRate5Hz))
	require.True(t, env.status.SetMeasureMode(MeasureLong))
	testCases := []struct {
		name string
		fn   byte
		n    int
		val  uint16
	}{
		{"scan rate", protocol.FuncScanRate, 1, uint16(ScanRate5Hz)},
		{"baud rate", protocol.FuncBaudRate, 1, 6},
		{"device address", protocol.FuncIDSet, 2, 0x0001},
		{"work mode", protocol.FuncWorkMode, 1, uint16(WorkModeNormal)},
		{"measure mode", protocol.FuncMeasureMode, 1, uint16(MeasureLong)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := env.exec(protocol.ReadRequest(0x0001, tc.fn, byte(tc.n)))
			require.NoError(t, err)
			require.Equal(t, protocol.ReadResponse(0x0001, protocol.StatusNormal, tc.fn, tc.n, tc.val), out)
		})
	}
}

func TestDispatchReadRejected(t *testing.T) {
	env := newRadarTestEnv(t, 1)
	out, err := env.exec(protocol.ReadRequest(0x0001, protocol.FuncSys, 1))
	require.Error(t, err)
	require.Equal(t, errFrame(protocol.StatusErrOpr), out)

	out, err = env.exec(protocol.ReadRequest(0x0001, 0x04, 1))
	require.Equal(t, protocol.ErrFuncCode, err)
	require.Equal(t, errFrame(protocol.StatusErrFuncCode), out)

	out, err = env.exec(protocol.ReadRequest(0x0001, protocol.FuncCaliMode, 1))
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestBaudCode(t *testing.T) {
	require.Equal(t, byte(0), BaudCode(2400))
	require.Equal(t, byte(9), BaudCode(921600))
	require.Equal(t, BaudUnknown, BaudCode(14400))
}

func TestDispatchSys(t *testing.T) {
	env := newRadarTestEnv(t, 1)
	testCases := []struct {
		param byte
		state State
	}{
		{SysRun, StateRunning},
		{SysReset, StateResetting},
		{SysSuspend, StateSuspended},
	}
	for _, tc := range testCases {
		out, err := env.exec(protocol.WriteRequest(0x0001, protocol.FuncSys, tc.param))
		require.NoError(t, err)
		require.Equal(t, protocol.WriteResponse(0x0001, protocol.FuncSys), out)
		state, ok := env.sweep.mailbox.Take()
		require.True(t, ok)
		require.Equal(t, tc.state, state)
	}

	require.True(t, env.status.SetScanRate(ScanRate100Hz))
	out, err := env.exec(protocol.WriteRequest(0x0001, protocol.FuncSys, SysParamReset))
	require.NoError(t, err)
	require.Equal(t, protocol.WriteResponse(0x0001, protocol.FuncSys), out)
	require.Equal(t, ScanRate0_1Hz, env.status.ScanRate())

	for _, payload := range [][]byte{{0x04}, {}, {SysRun, SysRun}} {
		out, err = env.exec(protocol.WriteRequest(0x0001, protocol.FuncSys, payload...))
		require.Equal(t, protocol.ErrData, err)
		require.Equal(t, errFrame(protocol.StatusErrData), out)
	}
	_, ok := env.sweep.mailbox.Take()
	require.False(t, ok)
}

func TestDispatchWriteRegisters(t *testing.T) {
	env := newRadarTestEnv(t, 1)
	out, err := env.exec(protocol.WriteRequest(0x0001, protocol.FuncScanRate, ScanRate20Hz))
	require.NoError(t, err)
	require.Equal(t, protocol.WriteResponse(0x0001, protocol.FuncScanRate), out)
	require.Equal(t, ScanRate20Hz, env.status.ScanRate())

	out, err = env.exec(protocol.WriteRequest(0x0001, protocol.FuncMeasureMode, 0x07))
	require.Equal(t, protocol.ErrData, err)
	require.Equal(t, errFrame(protocol.StatusErrData), out)

	out, err = env.exec(protocol.WriteRequest(0x0001, protocol.FuncIDSet, 0x12, 0x34))
	require.NoError(t, err)
	require.Equal(t, protocol.WriteResponse(0x1234, protocol.FuncIDSet), out)
	require.Equal(t, uint16(0x1234), env.status.Address.Get())

	out, err = env.exec(protocol.WriteRequest(0x1234, protocol.FuncIDSet, 0xFF, 0xFF))
	require.Equal(t, protocol.ErrData, err)
	require.Equal(t, errFrame(protocol.StatusErrData), out)

	out, err = env.exec(protocol.WriteRequest(0x1234, protocol.FuncBaudRate, 0x06))
	require.Equal(t, protocol.ErrFuncCode, err)
	require.Equal(t, errFrame(protocol.StatusErrFuncCode), out)
}

func TestDecodeAppointData(t *testing.T) {
	targets, err := DecodeAppointData([]byte{0x00, 0x5A, 0x03, 0x01})
	require.NoError(t, err)
	require.Equal(t, []AppointTarget{{Index: 0, Angle: 90}, {Index: 1, Angle: 257}}, targets)
	require.Equal(t, []byte{0x00, 0x5A, 0x03, 0x01}, EncodeAppointData(targets...))
	_, err = DecodeAppointData([]byte{0x00, 0x5A, 0x00})
	require.Equal(t, protocol.ErrData, err)
	_, err = DecodeAppointData(make([]byte, 12))
	require.Equal(t, protocol.ErrData, err)
}

func TestDispatchAppointInvalid(t *testing.T) {
	env := newRadarTestEnv(t, 2)
	testCases := []struct {
		name    string
		payload []byte
	}{
		{"odd length", []byte{0x00, 0x1E, 0x02}},
		{"too long", make([]byte, 12)},
		{"no steering", []byte{0x00, 0x1E, 0x04, 0x1E}},
		{"angle beyond scope", []byte{0x00, 0x1E, 0x02, 0xB5}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := env.exec(protocol.WriteRequest(0x0001, protocol.FuncAppointData, tc.payload...))
			require.Equal(t, protocol.ErrData, err)
			require.Equal(t, errFrame(protocol.StatusErrData), out)
			require.Equal(t, 90, env.status.Actuators.Angle(0))
			require.Equal(t, 90, env.status.Actuators.Angle(1))
			_, ok := env.sweep.mailbox.Take()
			require.False(t, ok)
		})
	}
}

func TestDispatchAppoint(t *testing.T) {
	env := newRadarTestEnv(t, 2)
	env.start()
	// steering 0 to 30, steering 1 to 180
	out, err := env.exec(protocol.WriteRequest(0x0001, protocol.FuncAppointData, 0x00, 0x1E, 0x02, 0xB4))
	require.NoError(t, err)
	require.Equal(t, protocol.ReadResponse(0x0001, protocol.StatusNormal, protocol.FuncAppointData, 2, 321), out)
	require.Equal(t, 30, env.status.Actuators.Angle(0))
	require.Equal(t, 180, env.status.Actuators.Angle(1))
}

func TestDispatchAppointNoMeasurement(t *testing.T) {
	env := newRadarTestEnv(t, 1)
	env.dispatcher.MeasureWait = 20 * time.Millisecond
	out, err := env.exec(protocol.WriteRequest(0x0001, protocol.FuncAppointData, 0x00, 0x1E))
	require.Error(t, err)
	require.Equal(t, errFrame(protocol.StatusErrDevice), out)
}

func TestDispatchAppointWhileSweeping(t *testing.T) {
	env := newRadarTestEnv(t, 1)
	env.sweep.MeasureWhileSweeping = true
	env.sensor.delay = 3 * time.Millisecond
	env.sensor.read = func() uint16 {
		return uint16(env.status.Actuators.Angle(0) * 10)
	}
	env.start()
	env.sweep.Notify(StateRunning)
	require.Eventually(t, func() bool { return env.sensor.callCount() > 3 }, time.Second, time.Millisecond)

	// angles off the sweep grid, a sweep measurement can not match them
	for _, angle := range []int{33, 47, 121} {
		out, err := env.exec(protocol.WriteRequest(0x0001, protocol.FuncAppointData,
			EncodeAppointData(AppointTarget{Index: 0, Angle: angle})...))
		require.NoError(t, err, angle)
		require.Equal(t, protocol.ReadResponse(0x0001, protocol.StatusNormal, protocol.FuncAppointData, 2, uint16(angle*10)), out, angle)
		env.sweep.Notify(StateRunning)
	}
}

func TestDispatcherRunAcceptsNextFrame(t *testing.T) {
	env := newRadarTestEnv(t, 1)
	env.dispatcher.FrameWait = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan error, 1)
	go func() { doneCh <- env.dispatcher.Run(ctx) }()

	receive := func(want []byte) {
		var out []byte
		require.Eventually(t, func() bool {
			out = append(out, env.out.take()...)
			return len(out) >= len(want)
		}, time.Second, time.Millisecond)
		require.Equal(t, want, out)
	}

	// idle across a few frame waits first
	time.Sleep(20 * time.Millisecond)
	env.server.HandleData(ctx, env.out, protocol.ReadRequest(0x0001, protocol.FuncIDSet, 2))
	receive(protocol.ReadResponse(0x0001, protocol.StatusNormal, protocol.FuncIDSet, 2, 0x0001))

	require.Eventually(t, func() bool { return !env.server.Busy() }, time.Second, time.Millisecond)
	env.server.HandleData(ctx, env.out, protocol.WriteRequest(0x0001, protocol.FuncScanRate, ScanRate20Hz))
	receive(protocol.WriteResponse(0x0001, protocol.FuncScanRate))
	require.Equal(t, ScanRate20Hz, env.status.ScanRate())

	cancel()
	require.ErrorIs(t, <-doneCh, context.Canceled)
}
