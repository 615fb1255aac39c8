package radar

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/modbus"
	"github.com/robotalks/radar.go/pkg/protocol"
	"github.com/robotalks/radar.go/pkg/uart"
)

// Dispatcher defaults.
const (
	DefaultFrameWait   = 100 * time.Millisecond
	DefaultMeasureWait = 1500 * time.Millisecond
	// MaxAppointData is the payload limit of an APPOINTDATA write.
	MaxAppointData = 10
)

// Dispatcher executes host frames.
type Dispatcher struct {
	Server *modbus.Server
	Status *Status
	Sweep  *Sweep
	// Line reports the baud rate of the host line.
	Line        uart.BaudRater
	FrameWait   time.Duration
	MeasureWait time.Duration
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(server *modbus.Server, status *Status, sweep *Sweep, line uart.BaudRater) *Dispatcher {
	return &Dispatcher{
		Server:      server,
		Status:      status,
		Sweep:       sweep,
		Line:        line,
		FrameWait:   DefaultFrameWait,
		MeasureWait: DefaultMeasureWait,
	}
}

// Run implements Runnable.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		req, err := d.Server.Wait(ctx, d.FrameWait)
		if err != nil {
			if errors.Is(err, protocol.ErrTimeout) {
				glog.V(5).Info("no host frame")
				continue
			}
			return err
		}
		d.Dispatch(ctx, req)
		d.Server.Done()
	}
}

// Dispatch executes one frame and sends the reply. The outcome is
// returned, an error has already been reported to the host.
func (d *Dispatcher) Dispatch(ctx context.Context, req *modbus.Request) error {
	var err error
	switch req.Op {
	case protocol.OpRead:
		err = d.read(req)
	case protocol.OpWrite:
		err = d.write(ctx, req)
	default:
		err = protocol.ErrFuncCode
	}
	if err != nil {
		glog.Warningf("host %s func 0x%02X failed: %v", req.Op, req.Func, err)
		d.Server.TransmitError(protocol.StatusOf(err))
	}
	return err
}

func (d *Dispatcher) read(req *modbus.Request) error {
	switch req.Func {
	case protocol.FuncSys:
		return &protocol.OperationError{Code: byte(protocol.StatusErrOpr)}
	case protocol.FuncScanRate:
		return d.Server.ReplyRead(req.Func, 1, uint16(d.Status.ScanRate()))
	case protocol.FuncBaudRate:
		baud := 0
		if d.Line != nil {
			baud = d.Line.BaudRate()
		}
		return d.Server.ReplyRead(req.Func, 1, uint16(BaudCode(baud)))
	case protocol.FuncIDSet:
		return d.Server.ReplyRead(req.Func, 2, d.Status.Address.Get())
	case protocol.FuncWorkMode:
		return d.Server.ReplyRead(req.Func, 1, uint16(d.Status.WorkMode()))
	case protocol.FuncMeasureMode:
		return d.Server.ReplyRead(req.Func, 1, uint16(d.Status.MeasureMode()))
	case protocol.FuncAppointData, protocol.FuncCaliMode:
		glog.Infof("host READ func 0x%02X not implemented", req.Func)
		return nil
	}
	return protocol.ErrFuncCode
}

func (d *Dispatcher) write(ctx context.Context, req *modbus.Request) error {
	data := req.Payload()
	switch req.Func {
	case protocol.FuncSys:
		if len(data) != 1 {
			return protocol.ErrData
		}
		switch data[0] {
		case SysRun:
			d.Sweep.Notify(StateRunning)
		case SysParamReset:
			d.Status.ResetParams()
		case SysReset:
			d.Sweep.Notify(StateResetting)
		case SysSuspend:
			d.Sweep.Notify(StateSuspended)
		default:
			return protocol.ErrData
		}
	case protocol.FuncScanRate:
		if len(data) != 1 || !d.Status.SetScanRate(data[0]) {
			return protocol.ErrData
		}
	case protocol.FuncWorkMode:
		if len(data) != 1 || !d.Status.SetWorkMode(data[0]) {
			return protocol.ErrData
		}
	case protocol.FuncMeasureMode:
		if len(data) != 1 || !d.Status.SetMeasureMode(data[0]) {
			return protocol.ErrData
		}
	case protocol.FuncIDSet:
		if len(data) != 2 {
			return protocol.ErrData
		}
		addr := binary.BigEndian.Uint16(data)
		if !modbus.ValidAddress(addr) {
			return protocol.ErrData
		}
		if err := d.Status.Address.Set(addr); err != nil {
			glog.Errorf("device address not saved: %v", err)
			return &protocol.OperationError{Code: byte(protocol.StatusErrDevice)}
		}
	case protocol.FuncAppointData:
		return d.appoint(ctx, data)
	default:
		return protocol.ErrFuncCode
	}
	return d.Server.ReplyWrite(req.Func)
}

// AppointTarget is one (steering gear, angle) pair of an APPOINTDATA write.
type AppointTarget struct {
	Index int
	Angle int
}

// EncodeAppointData encodes targets for an APPOINTDATA write.
func EncodeAppointData(targets ...AppointTarget) []byte {
	data := make([]byte, 0, len(targets)*2)
	for _, t := range targets {
		data = append(data, byte(t.Index<<1)|byte(t.Angle>>8)&1, byte(t.Angle))
	}
	return data
}

// DecodeAppointData decodes (steering gear, angle) pairs. The high 7 bits
// of the first byte select the steering gear, the low bit and the second
// byte form a 9-bit angle.
func DecodeAppointData(data []byte) ([]AppointTarget, error) {
	if len(data)%2 != 0 || len(data) > MaxAppointData {
		return nil, protocol.ErrData
	}
	targets := make([]AppointTarget, 0, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		targets = append(targets, AppointTarget{
			Index: int(data[i] >> 1),
			Angle: int(data[i]&1)<<8 | int(data[i+1]),
		})
	}
	return targets, nil
}

func (d *Dispatcher) appoint(ctx context.Context, data []byte) error {
	targets, err := DecodeAppointData(data)
	if err != nil {
		return err
	}
	for _, t := range targets {
		scope, err := d.Status.Actuators.Scope(t.Index)
		if err != nil || t.Angle > scope {
			return protocol.ErrData
		}
	}
	// a measurement already in flight belongs to an earlier round
	after := d.Status.Events.SpecialRound()
	d.Status.Events.Clear(MeasureReadyBit)
	d.Sweep.Point(targets)
	if err := d.Status.Events.WaitSpecial(ctx, after, d.MeasureWait); err != nil {
		glog.Warningf("no measurement for APPOINTDATA: %v", err)
		return &protocol.OperationError{Code: byte(protocol.StatusErrDevice)}
	}
	return d.Server.ReplyRead(protocol.FuncAppointData, 2, d.Status.Distance())
}
