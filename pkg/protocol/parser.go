package protocol

import (
	"encoding/binary"

	"github.com/golang/glog"
)

// Dialect selects the frame layout expected by Parse.
type Dialect int

const (
	// HostDialect parses requests sent by a master (0x51 header).
	HostDialect Dialect = iota
	// SensorDialect parses replies sent by a slave (0x55 header).
	SensorDialect
)

// Head returns the frame type byte of the dialect.
func (d Dialect) Head() byte {
	if d == SensorDialect {
		return SlaveHead
	}
	return MasterHead
}

// MinLen is the minimum length of a received frame.
func (d Dialect) MinLen() int {
	if d == SensorDialect {
		return 8
	}
	return 9
}

// MaxLen is the maximum length of a received frame.
func (d Dialect) MaxLen() int {
	return MaxFrameLen
}

func (d Dialect) String() string {
	if d == SensorDialect {
		return "sensor"
	}
	return "host"
}

func (d Dialect) lenValid(n int) bool {
	return n >= d.MinLen() && n <= d.MaxLen()
}

// Parse locates and validates one frame in b.
// The header may be preceded by noise bytes. For host WRITE frames the
// payload is copied into payload in reverse byte order; payload is
// allocated when it is too small.
func Parse(d Dialect, b []byte, payload []byte) (*Frame, error) {
	if !d.lenValid(len(b)) {
		return nil, ErrFrame
	}
	head, offset := d.Head(), -1
	for i := 0; i <= len(b)-2; i++ {
		if b[i] == head && b[i+1] == TypeCode {
			offset = i
			break
		}
	}
	if offset < 0 {
		return nil, ErrFrame
	}
	b = b[offset:]
	if !d.lenValid(len(b)) {
		return nil, ErrFrame
	}
	f := &Frame{
		Offset:  offset,
		Address: binary.BigEndian.Uint16(b[2:]),
		Op:      Opcode(b[4]),
	}
	var err error
	if d == SensorDialect {
		err = parseResponse(f, b)
	} else {
		err = parseRequest(f, b, payload)
	}
	return f, err
}

func verify(b []byte, n int) error {
	if Checksum(b[:n]) != binary.BigEndian.Uint16(b[n:]) {
		return ErrChecksum
	}
	return nil
}

func parseRequest(f *Frame, b []byte, payload []byte) error {
	switch f.Op {
	case OpRead:
		if err := verify(b, 7); err != nil {
			return err
		}
		f.Func, f.Len = b[5], int(b[6])
		if f.Len != 1 && f.Len != 2 {
			return ErrFrame
		}
	case OpWrite:
		n := int(b[6])
		if n+9 > len(b) {
			return ErrFrame
		}
		if err := verify(b, n+7); err != nil {
			return err
		}
		f.Func, f.Len = b[5], n
		if cap(payload) < n {
			payload = make([]byte, n)
		}
		f.Data = payload[:n]
		for i := 0; i < n; i++ {
			f.Data[i] = b[7+n-1-i]
		}
	default:
		return ErrFrame
	}
	return nil
}

func parseResponse(f *Frame, b []byte) error {
	switch f.Op {
	case OpRead:
		n := int(b[7])
		if n != 1 && n != 2 {
			return ErrFrame
		}
		if n+10 > len(b) {
			return ErrFrame
		}
		if err := verify(b, n+8); err != nil {
			return err
		}
		f.Status, f.Func, f.Len = StatusCode(b[5]), b[6], n
		if n == 1 {
			f.Value = uint16(b[8])
		} else {
			f.Value = binary.BigEndian.Uint16(b[8:])
		}
	case OpWrite:
		if err := verify(b, 6); err != nil {
			return err
		}
		f.Func = b[5]
	case OpError:
		if b[2] != ErrorMarker || b[3] != ErrorMarker {
			return ErrFrame
		}
		if err := verify(b, 6); err != nil {
			return err
		}
		f.Status = StatusCode(b[5])
		glog.Warningf("peer reported error code %d", b[5])
		return &OperationError{Code: b[5]}
	default:
		return ErrFrame
	}
	return nil
}
