// Package modbus mirrors radar samples into a Modbus TCP device.
package modbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/radar"
)

// RegisterWriter writes holding registers.
type RegisterWriter interface {
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// Config configures a Mirror.
type Config struct {
	Endpoint string
	SlaveID  uint8
	// Register is the first of the angle, distance and address registers.
	Register uint16
	Timeout  time.Duration
}

// Mirror writes [angle, distance, address] of each sample into
// consecutive holding registers.
type Mirror struct {
	Register uint16

	lock    sync.Mutex
	client  RegisterWriter
	handler *modbus.TCPClientHandler
}

// Dial connects a Mirror to a Modbus TCP endpoint.
func Dial(cfg Config) (*Mirror, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("mirror: endpoint required")
	}
	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.SlaveID
	if err := h.Connect(); err != nil {
		return nil, err
	}
	return &Mirror{Register: cfg.Register, client: modbus.NewClient(h), handler: h}, nil
}

// NewMirror creates a Mirror over a RegisterWriter.
func NewMirror(w RegisterWriter, register uint16) *Mirror {
	return &Mirror{Register: register, client: w}
}

// Close implements io.Closer.
func (m *Mirror) Close() error {
	if m.handler != nil {
		return m.handler.Close()
	}
	return nil
}

// HandleSample implements radar.SampleHandler.
func (m *Mirror) HandleSample(ctx context.Context, s radar.Sample) {
	regs := packRegisters([]uint16{uint16(s.Angle), s.Distance, s.Address})
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, err := m.client.WriteMultipleRegisters(m.Register, 3, regs); err != nil {
		glog.Warningf("mirror write failed: %v", err)
	}
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
