package sh

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/robotalks/radar.go/pkg/uart"
)

// SerialTerminal talks to the text command port over a serial line.
type SerialTerminal struct {
	Port io.ReadWriteCloser

	lock    sync.Mutex
	pending []byte
}

const serialIdle = 50 * time.Millisecond

// DialSerial opens a serial text command port.
func DialSerial(name string, baud int) (*SerialTerminal, error) {
	p, err := uart.OpenSerial(name, baud, serialIdle)
	if err != nil {
		return nil, err
	}
	return NewSerialTerminal(p), nil
}

// NewSerialTerminal wraps a port whose reads return 0 bytes when idle.
func NewSerialTerminal(port io.ReadWriteCloser) *SerialTerminal {
	return &SerialTerminal{Port: port}
}

// Exec implements Terminal. The reply is made of the complete lines
// received until the port goes idle.
func (t *SerialTerminal) Exec(ctx context.Context, line string) (string, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.pending = t.pending[:0]
	if _, err := io.WriteString(t.Port, line+"\n"); err != nil {
		return "", err
	}
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := t.Port.Read(buf)
		if err != nil {
			return "", err
		}
		t.pending = append(t.pending, buf[:n]...)
		if n > 0 {
			continue
		}
		if pos := bytes.LastIndexByte(t.pending, '\n'); pos >= 0 {
			lines := strings.Split(string(t.pending[:pos]), "\n")
			for i := range lines {
				lines[i] = strings.TrimRight(lines[i], "\r")
			}
			t.pending = append(t.pending[:0], t.pending[pos+1:]...)
			return strings.Join(lines, "\n"), nil
		}
	}
}

// Close implements Terminal.
func (t *SerialTerminal) Close() error {
	return t.Port.Close()
}
