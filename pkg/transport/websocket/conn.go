// Package websocket carries a radar line over websocket, one binary
// message per chunk.
package websocket

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/radar.go/pkg/uart"
)

// Conn adapts websocket.Conn to a line port. Each Read returns
// at most one message.
type Conn struct {
	*websocket.Conn
	pending []byte
}

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *Conn {
	conn.PayloadType = websocket.BinaryFrame
	return &Conn{Conn: conn}
}

// Dial connects to a websocket line.
func Dial(url, origin string) (*Conn, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// Read implements io.Reader.
func (c *Conn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		var msg []byte
		if err := websocket.Message.Receive(c.Conn, &msg); err != nil {
			return 0, err
		}
		c.pending = msg
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write implements io.Writer, p is sent as one message.
func (c *Conn) Write(p []byte) (int, error) {
	if err := websocket.Message.Send(c.Conn, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Server serves a line on each websocket connection.
type Server struct {
	Addr string
	// Handler receives the chunks of every connection.
	Handler uart.DataHandler

	lineNum atomic.Int32
}

// httpHandler accepts connections, each served as a line.
func (s *Server) httpHandler(ctx context.Context) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		num := int(s.lineNum.Add(1))
		glog.Infof("websocket line %d from %s", num, conn.Request().RemoteAddr)
		line := uart.NewLine(num, New(conn))
		line.SetHandler(s.Handler)
		if err := line.Run(ctx); err != nil {
			glog.V(2).Infof("websocket line %d: %v", num, err)
		}
		glog.Infof("websocket line %d closed", num)
	})
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.httpHandler(ctx))
	server := &http.Server{Addr: s.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	glog.Infof("websocket line on %s", s.Addr)
	select {
	case <-ctx.Done():
		server.Close()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
