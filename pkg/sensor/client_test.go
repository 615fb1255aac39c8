package sensor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/radar.go/pkg/protocol"
)

// fakeSensor answers requests the way a sensor with id 0x0007 does.
type fakeSensor struct {
	client   *Client
	reqCh    chan []byte
	distance uint16
	failNext bool
}

func (s *fakeSensor) Write(p []byte) (int, error) {
	req := append([]byte(nil), p...)
	s.reqCh <- req
	go s.respond(req)
	return len(p), nil
}

func (s *fakeSensor) respond(req []byte) {
	f, err := protocol.Parse(protocol.HostDialect, req, nil)
	if err != nil {
		return
	}
	var resp []byte
	switch {
	case s.failNext:
		s.failNext = false
		resp = protocol.ErrorResponse(protocol.StatusErrDevice)
	case f.Op == protocol.OpRead && f.Func == FuncIDSet:
		resp = protocol.ReadResponse(0x0007, protocol.StatusNormal, f.Func, 2, 0x0007)
	case f.Op == protocol.OpRead && f.Func == FuncVersion:
		resp = protocol.ReadResponse(0x0007, protocol.StatusNormal, f.Func, 2, 0x0102)
	case f.Op == protocol.OpRead && f.Func == FuncMeasureData:
		resp = protocol.ReadResponse(0x0007, protocol.StatusNormal, f.Func, 2, s.distance)
	case f.Op == protocol.OpWrite:
		resp = protocol.WriteResponse(0x0007, f.Func)
	}
	s.client.HandleData(context.TODO(), io.Discard, resp)
}

func newFakeSensor() *fakeSensor {
	s := &fakeSensor{reqCh: make(chan []byte, 8), distance: 1234}
	s.client = NewClient(s)
	s.client.Timeout = 200 * time.Millisecond
	return s
}

func TestInit(t *testing.T) {
	s := newFakeSensor()
	require.NoError(t, s.client.Init(context.TODO()))
	require.Equal(t, uint16(0x0007), s.client.Address)
	require.Equal(t, protocol.ReadRequest(BroadcastAddress, FuncIDSet, 2), <-s.reqCh)
	require.Equal(t, protocol.WriteRequest(0x0007, FuncWorkMode, WorkModeModbus), <-s.reqCh)
}

func TestInitFailure(t *testing.T) {
	s := newFakeSensor()
	s.failNext = true
	err := s.client.Init(context.TODO())
	require.Equal(t, &protocol.OperationError{Code: byte(protocol.StatusErrDevice)}, err)
	require.Equal(t, BroadcastAddress, s.client.Address)
}

func TestMeasureDistance(t *testing.T) {
	s := newFakeSensor()
	s.client.Address = 0x0007
	d, err := s.client.MeasureDistance(context.TODO())
	require.NoError(t, err)
	require.Equal(t, uint16(1234), d)
	require.Equal(t, protocol.ReadRequest(0x0007, FuncMeasureData, 2), <-s.reqCh)

	s.failNext = true
	_, err = s.client.MeasureDistance(context.TODO())
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	s := newFakeSensor()
	s.client.Address = 0x0007
	ver, err := s.client.Version(context.TODO())
	require.NoError(t, err)
	require.Equal(t, uint16(0x0102), ver)
	require.Equal(t, protocol.ReadRequest(0x0007, FuncVersion, 2), <-s.reqCh)
}
