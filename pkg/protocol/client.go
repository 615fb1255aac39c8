package protocol

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultTimeout is the default time to wait for a response.
const DefaultTimeout = time.Second

// Client drives request/response exchanges over one line.
// Responses are delivered through HandleData by the line reader.
type Client struct {
	Dialect Dialect
	Timeout time.Duration

	w io.Writer
	// held for the duration of a request/response pair
	reqLock sync.Mutex

	respLock sync.Mutex
	resp     []byte
	signalCh chan struct{}
}

// NewClient creates a Client writing requests to w.
func NewClient(w io.Writer, d Dialect) *Client {
	return &Client{
		Dialect:  d,
		Timeout:  DefaultTimeout,
		w:        w,
		signalCh: make(chan struct{}, 1),
	}
}

// HandleData receives a chunk from the line and raises the completion signal.
func (c *Client) HandleData(ctx context.Context, w io.Writer, data []byte) {
	c.respLock.Lock()
	c.resp = append(c.resp[:0], data...)
	c.respLock.Unlock()
	select {
	case c.signalCh <- struct{}{}:
	default:
	}
}

// Exchange sends a request frame and parses the response.
func (c *Client) Exchange(ctx context.Context, req []byte) (*Frame, error) {
	c.reqLock.Lock()
	defer c.reqLock.Unlock()

	select {
	case <-c.signalCh:
	default:
	}
	if glog.V(4) {
		glog.Infof("SND % X", req)
	}
	if err := WriteFrame(c.w, req); err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.signalCh:
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.respLock.Lock()
	resp := append([]byte(nil), c.resp...)
	c.respLock.Unlock()
	if glog.V(4) {
		glog.Infof("RCV % X", resp)
	}
	return Parse(c.Dialect, resp, nil)
}

// Read issues a READ request and returns the decoded value.
func (c *Client) Read(ctx context.Context, addr uint16, fn byte, n byte) (uint16, error) {
	f, err := c.Exchange(ctx, ReadRequest(addr, fn, n))
	if err != nil {
		return 0, err
	}
	if f.Op != OpRead {
		return 0, ErrFrame
	}
	if f.Status != StatusNormal {
		return f.Value, &OperationError{Code: byte(f.Status)}
	}
	return f.Value, nil
}

// Write issues a WRITE request and waits for the acknowledgement.
func (c *Client) Write(ctx context.Context, addr uint16, fn byte, data ...byte) error {
	f, err := c.Exchange(ctx, WriteRequest(addr, fn, data...))
	if err != nil {
		return err
	}
	if f.Op != OpWrite {
		return ErrFrame
	}
	return nil
}
