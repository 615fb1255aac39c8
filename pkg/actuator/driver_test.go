package actuator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type dutyRecorder struct {
	duties map[int]uint32
	err    error
}

func (r *dutyRecorder) SetDuty(channel int, duty uint32) error {
	if r.err != nil {
		return r.err
	}
	r.duties[channel] = duty
	return nil
}

var testTimer = Timer{Frequency: 50, Resolution: 13}

func newTestDriver(t *testing.T, n int) (*Driver, *dutyRecorder) {
	rec := &dutyRecorder{duties: make(map[int]uint32)}
	configs := make([]SteeringConfig, n)
	for i := range configs {
		configs[i] = SteeringConfig{Channel: i, Scope: 180, MinHighUs: 500, MaxHighUs: 2500}
	}
	d, err := NewDriver(testTimer, 90, rec, configs...)
	require.NoError(t, err)
	return d, rec
}

func TestDutyMath(t *testing.T) {
	d, rec := newTestDriver(t, 1)
	// 8192 counts per 20ms period: 500us is 204.8, 2500us is 1024
	require.NoError(t, d.ChangeAngle(0, 0))
	require.Equal(t, uint32(204), rec.duties[0])
	require.NoError(t, d.ChangeAngle(0, 90))
	require.Equal(t, uint32(614), rec.duties[0])
	require.NoError(t, d.ChangeAngle(0, 180))
	require.Equal(t, uint32(1024), rec.duties[0])
	require.NoError(t, d.ChangeAngle(0, 250))
	require.Equal(t, 180, d.Angle(0))
	require.Equal(t, uint32(1024), rec.duties[0])
	require.Equal(t, uint32(1024), d.Duty(0))
}

func TestNewDriverValidation(t *testing.T) {
	good := SteeringConfig{Scope: 180, MinHighUs: 500, MaxHighUs: 2500}
	_, err := NewDriver(testTimer, 90, nil)
	require.Error(t, err)
	_, err = NewDriver(testTimer, 90, nil, good, good, good, good, good, good)
	require.Error(t, err)
	_, err = NewDriver(Timer{}, 90, nil, good)
	require.Error(t, err)
	_, err = NewDriver(testTimer, 90, nil, SteeringConfig{Scope: 180, MinHighUs: 500, MaxHighUs: 30000})
	require.Error(t, err)
	d, err := NewDriver(testTimer, 90, nil, good, good)
	require.NoError(t, err)
	require.Equal(t, 2, d.Count())
	require.Equal(t, 90, d.Angle(1))
}

func TestSetTarget(t *testing.T) {
	d, rec := newTestDriver(t, 2)
	require.NoError(t, d.SetTarget(1, 30))
	require.Equal(t, 30, d.Angle(1))
	require.Empty(t, rec.duties)
	require.Equal(t, ErrAngle, d.SetTarget(1, 181))
	require.Equal(t, ErrNoSteering, d.SetTarget(2, 10))
	require.Equal(t, 30, d.Angle(1))

	require.NoError(t, d.Reassert())
	require.Len(t, rec.duties, 2)
	require.Equal(t, d.Duty(1), rec.duties[1])
}

func TestResetAngle(t *testing.T) {
	d, rec := newTestDriver(t, 3)
	require.NoError(t, d.ChangeAngle(2, 10))
	require.NoError(t, d.ResetAngle())
	for i := 0; i < 3; i++ {
		require.Equal(t, 90, d.Angle(i))
		require.Equal(t, uint32(614), rec.duties[i])
	}
}

func TestCalibrate(t *testing.T) {
	d, rec := newTestDriver(t, 2)
	require.NoError(t, d.Calibrate(2, 2000, true))
	require.Equal(t, 180, d.Angle(1))
	require.Equal(t, uint32(819), rec.duties[1])
	require.NoError(t, d.Calibrate(2, 1000, false))
	require.Equal(t, 0, d.Angle(1))
	require.Equal(t, uint32(409), rec.duties[1])

	require.Equal(t, ErrNoSteering, d.Calibrate(3, 1000, false))
	require.Equal(t, ErrNoSteering, d.Calibrate(0, 1000, false))
	require.Equal(t, ErrHighTime, d.Calibrate(1, 0, true))
	require.Equal(t, ErrHighTime, d.Calibrate(1, 20001, true))
}

func TestPWMFailure(t *testing.T) {
	d, rec := newTestDriver(t, 1)
	rec.err = errors.New("channel fault")
	err := d.ChangeAngle(0, 10)
	require.ErrorIs(t, err, rec.err)
	require.Equal(t, 90, d.Angle(0))
}
