package protocol

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chanWriter struct {
	writeCh chan []byte
}

func (c *chanWriter) Write(p []byte) (int, error) {
	c.writeCh <- append([]byte{}, p...)
	return len(p), nil
}

type clientTestEnv struct {
	t      *testing.T
	w      *chanWriter
	client *Client
}

func newClientTestEnv(t *testing.T) *clientTestEnv {
	env := &clientTestEnv{t: t, w: &chanWriter{writeCh: make(chan []byte, 1)}}
	env.client = NewClient(env.w, SensorDialect)
	env.client.Timeout = 200 * time.Millisecond
	return env
}

// peer answers the next request with resp after checking it.
func (e *clientTestEnv) peer(expect []byte, resp []byte) {
	go func() {
		req := <-e.w.writeCh
		if expect != nil && string(req) != string(expect) {
			return
		}
		if resp != nil {
			e.client.HandleData(context.TODO(), io.Discard, resp)
		}
	}()
}

func TestClientRead(t *testing.T) {
	env := newClientTestEnv(t)
	env.peer(ReadRequest(0x0002, 0x05, 2), ReadResponse(0x0002, StatusNormal, 0x05, 2, 1234))
	val, err := env.client.Read(context.TODO(), 0x0002, 0x05, 2)
	require.NoError(t, err)
	require.Equal(t, uint16(1234), val)
}

func TestClientWrite(t *testing.T) {
	env := newClientTestEnv(t)
	env.peer(WriteRequest(0x0002, 0x0a, 0x01), WriteResponse(0x0002, 0x0a))
	require.NoError(t, env.client.Write(context.TODO(), 0x0002, 0x0a, 0x01))
}

func TestClientOutcomes(t *testing.T) {
	testCases := []struct {
		name string
		resp []byte
		err  error
	}{
		{"timeout", nil, ErrTimeout},
		{"operation error", ErrorResponse(StatusErrDevice), &OperationError{Code: byte(StatusErrDevice)}},
		{"checksum", flipBit(ReadResponse(0x0002, StatusNormal, 0x05, 2, 1), 9, 0), ErrChecksum},
		{"garbage", []byte{0, 1, 2, 3, 4, 5, 6, 7, 8}, ErrFrame},
		{"wrong opcode", WriteResponse(0x0002, 0x05), ErrFrame},
		{"abnormal status", ReadResponse(0x0002, StatusErrAddress, 0x05, 2, 0), &OperationError{Code: byte(StatusErrAddress)}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newClientTestEnv(t)
			env.peer(nil, tc.resp)
			_, err := env.client.Read(context.TODO(), 0x0002, 0x05, 2)
			require.Equal(t, tc.err, err)
		})
	}
}

func TestClientDropsStaleSignal(t *testing.T) {
	env := newClientTestEnv(t)
	env.client.HandleData(context.TODO(), io.Discard, ReadResponse(0x0002, StatusNormal, 0x05, 2, 1))
	env.peer(nil, ReadResponse(0x0002, StatusNormal, 0x05, 2, 2))
	val, err := env.client.Read(context.TODO(), 0x0002, 0x05, 2)
	require.NoError(t, err)
	require.Equal(t, uint16(2), val)
}

func TestClientCanceled(t *testing.T) {
	env := newClientTestEnv(t)
	env.client.Timeout = time.Minute
	env.peer(nil, nil)
	ctx, cancel := context.WithCancel(context.TODO())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := env.client.Read(ctx, 0x0002, 0x05, 2)
	require.Equal(t, context.Canceled, err)
}
