// Package modbus implements the device side of the host protocol.
package modbus

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/protocol"
)

// Request is the last validated frame received from the host.
type Request struct {
	Op   protocol.Opcode
	Func byte
	Len  int
	// Data is the WRITE payload in reverse byte order.
	Data []byte
}

// Payload returns the WRITE payload in transmission order.
func (r *Request) Payload() []byte {
	p := make([]byte, len(r.Data))
	for i, b := range r.Data {
		p[len(p)-1-i] = b
	}
	return p
}

// Server receives host frames into a single slot and formats replies.
// A frame arriving while the slot is held is rejected with ERR_BUSY.
type Server struct {
	Address *AddressStore

	lock    sync.Mutex
	busy    bool
	req     Request
	payload []byte
	w       io.Writer
	readyCh chan struct{}
	// serializes replies
	writeLock sync.Mutex
}

// NewServer creates a Server. Replies go to the line the last frame
// came from, or w before any frame arrives.
func NewServer(addr *AddressStore, w io.Writer) *Server {
	return &Server{
		Address: addr,
		payload: make([]byte, 0, protocol.MaxFrameLen),
		w:       w,
		readyCh: make(chan struct{}, 1),
	}
}

// HandleData implements uart.DataHandler.
func (s *Server) HandleData(ctx context.Context, w io.Writer, data []byte) {
	f, err := protocol.Parse(protocol.HostDialect, data, nil)
	if err != nil {
		glog.Warningf("rejected host frame % X: %v", data, err)
		s.send(w, protocol.ErrorResponse(protocol.StatusOf(err)))
		return
	}
	s.lock.Lock()
	if s.busy {
		s.lock.Unlock()
		glog.Warningf("host frame dropped, previous frame in flight")
		s.send(w, protocol.ErrorResponse(protocol.StatusErrBusy))
		return
	}
	s.busy = true
	s.req = Request{Op: f.Op, Func: f.Func, Len: f.Len, Data: append(s.payload[:0], f.Data...)}
	s.w = w
	s.lock.Unlock()
	glog.V(2).Infof("host %s func 0x%02X len %d", f.Op, f.Func, f.Len)
	select {
	case s.readyCh <- struct{}{}:
	default:
	}
}

// Wait blocks until a frame is available and returns it. The frame is
// held until Done is called. ErrTimeout is returned on elapse.
func (s *Server) Wait(ctx context.Context, timeout time.Duration) (*Request, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.readyCh:
	case <-timer.C:
		return nil, protocol.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	req := s.req
	req.Data = append([]byte(nil), s.req.Data...)
	return &req, nil
}

// Done releases the frame slot.
func (s *Server) Done() {
	s.lock.Lock()
	s.busy = false
	s.lock.Unlock()
}

// Busy tells whether a frame is held.
func (s *Server) Busy() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.busy
}

// TransmitError sends the error frame carrying code.
func (s *Server) TransmitError(code protocol.StatusCode) error {
	return s.send(s.writer(), protocol.ErrorResponse(code))
}

// ReplyRead sends a READ-style reply with n (1 or 2) data bytes.
func (s *Server) ReplyRead(fn byte, n int, value uint16) error {
	return s.send(s.writer(), protocol.ReadResponse(s.Address.Get(), protocol.StatusNormal, fn, n, value))
}

// ReplyWrite sends a WRITE acknowledgement.
func (s *Server) ReplyWrite(fn byte) error {
	return s.send(s.writer(), protocol.WriteResponse(s.Address.Get(), fn))
}

func (s *Server) writer() io.Writer {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.w
}

func (s *Server) send(w io.Writer, frame []byte) error {
	if w == nil {
		return io.ErrClosedPipe
	}
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	if glog.V(4) {
		glog.Infof("host SND % X", frame)
	}
	err := protocol.WriteFrame(w, frame)
	if err != nil {
		glog.Errorf("host reply failed: %v", err)
	}
	return err
}
