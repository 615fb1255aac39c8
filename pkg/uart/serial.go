package uart

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Port is a serial port opened in 8N1 mode.
type Port struct {
	serial.Port
	Name string
	baud int
}

// OpenSerial opens a serial port. idle is the read timeout which marks
// the end of a received chunk.
func OpenSerial(name string, baud int, idle time.Duration) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if idle > 0 {
		if err = p.SetReadTimeout(idle); err != nil {
			p.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
		}
	}
	return &Port{Port: p, Name: name, baud: baud}, nil
}

// BaudRate implements BaudRater.
func (p *Port) BaudRate() int {
	return p.baud
}

// OpenSerialLine opens a serial port and wraps it as a Line.
func OpenSerialLine(num int, name string, baud int, idle time.Duration) (*Line, error) {
	p, err := OpenSerial(name, baud, idle)
	if err != nil {
		return nil, err
	}
	l := NewLine(num, p)
	l.IdleRead = idle > 0
	return l, nil
}
