package uart

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/radar.go/pkg/framework"
)

// DefaultBufferSize is the size of the receive buffer of a line.
const DefaultBufferSize = 1024

// DataHandler is called with each chunk received on a line.
// w writes back to the same line. data is only valid during the call.
type DataHandler interface {
	HandleData(ctx context.Context, w io.Writer, data []byte)
}

// HandleDataFunc is func type of DataHandler.
type HandleDataFunc func(context.Context, io.Writer, []byte)

// HandleData implements DataHandler.
func (f HandleDataFunc) HandleData(ctx context.Context, w io.Writer, data []byte) {
	f(ctx, w, data)
}

// NotActivated is the handler of a line nobody claimed.
var NotActivated = HandleDataFunc(func(ctx context.Context, w io.Writer, data []byte) {
	w.Write([]byte("Radar not activated"))
})

// BaudRater reports the live baud rate of a port.
type BaudRater interface {
	BaudRate() int
}

// Line reads chunks from a port and hands them to its DataHandler.
type Line struct {
	Num        int
	ReadWriter io.ReadWriter
	BufferSize int
	// IdleRead is set when Read returns 0 bytes after an idle gap.
	// Bytes are then accumulated until the gap, otherwise every Read
	// is delivered as one chunk.
	IdleRead bool

	handler   DataHandler
	lock      sync.RWMutex
	writeLock sync.Mutex
}

// NewLine creates a Line.
func NewLine(num int, rw io.ReadWriter) *Line {
	return &Line{Num: num, ReadWriter: rw, BufferSize: DefaultBufferSize}
}

// Handler gets the current DataHandler.
func (l *Line) Handler() DataHandler {
	l.lock.RLock()
	defer l.lock.RUnlock()
	if l.handler == nil {
		return NotActivated
	}
	return l.handler
}

// SetHandler replaces the DataHandler.
func (l *Line) SetHandler(h DataHandler) {
	l.lock.Lock()
	l.handler = h
	l.lock.Unlock()
}

// Write implements io.Writer. Concurrent writes never interleave.
func (l *Line) Write(p []byte) (int, error) {
	l.writeLock.Lock()
	defer l.writeLock.Unlock()
	return l.ReadWriter.Write(p)
}

// BaudRate implements BaudRater, 0 when unknown.
func (l *Line) BaudRate() int {
	if br, ok := l.ReadWriter.(BaudRater); ok {
		return br.BaudRate()
	}
	return 0
}

// Close closes the underlying port if possible.
func (l *Line) Close() error {
	if closer, ok := l.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Run implements Runnable.
func (l *Line) Run(ctx context.Context) error {
	err := fx.RunWithContextCancel(ctx, func() { l.Close() }, func() error {
		return l.readLoop(ctx)
	})
	if errors.Is(err, io.EOF) {
		glog.V(2).Infof("line %d closed", l.Num)
		return nil
	}
	return err
}

func (l *Line) readLoop(ctx context.Context) error {
	size := l.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	buf := make([]byte, size)
	var pending []byte
	for {
		n, err := l.ReadWriter.Read(buf)
		if n > 0 {
			if !l.IdleRead {
				l.deliver(ctx, buf[:n])
			} else if pending = append(pending, buf[:n]...); len(pending) >= size {
				l.deliver(ctx, pending)
				pending = pending[:0]
			}
		}
		if err != nil && !os.IsTimeout(err) {
			return err
		}
		if n == 0 && len(pending) > 0 {
			l.deliver(ctx, pending)
			pending = pending[:0]
		}
	}
}

func (l *Line) deliver(ctx context.Context, data []byte) {
	if glog.V(4) {
		glog.Infof("line %d RCV % X", l.Num, data)
	}
	l.Handler().HandleData(ctx, l, data)
}
