package protocol

import (
	"encoding/binary"
	"io"
)

// Frame header bytes.
const (
	MasterHead byte = 0x51
	SlaveHead  byte = 0x55
	TypeCode   byte = 0x0B
)

// ErrorMarker fills the address and opcode fields of an error frame.
const ErrorMarker byte = 0xFF

// MaxFrameLen is the maximum length of a received frame for both dialects.
const MaxFrameLen = 270

// Opcode is the coarse message kind.
type Opcode byte

// Opcodes.
const (
	OpRead  Opcode = 0x00
	OpWrite Opcode = 0x01
	OpError Opcode = 0xFF
)

func (o Opcode) String() string {
	switch o {
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// StatusCode is the work status code carried by replies.
type StatusCode byte

// Status codes.
const (
	StatusNormal      StatusCode = 0x00
	StatusNoSensor    StatusCode = 0x01
	StatusErrAddress  StatusCode = 0x02
	StatusErrOpr      StatusCode = 0x03
	StatusErrFuncCode StatusCode = 0x04
	StatusErrLen      StatusCode = 0x05
	StatusErrCRC      StatusCode = 0x06
	StatusErrFrame    StatusCode = 0x07
	StatusErrBusy     StatusCode = 0x08
	StatusErrDevice   StatusCode = 0x09
	StatusErrData     StatusCode = 0x0A
)

// Host function codes.
const (
	FuncSys         byte = 0x00
	FuncScanRate    byte = 0x01
	FuncBaudRate    byte = 0x02
	FuncIDSet       byte = 0x03
	FuncAppointData byte = 0x05
	FuncWorkMode    byte = 0x06
	FuncMeasureMode byte = 0x07
	FuncCaliMode    byte = 0x08
)

// Frame contains the decoded fields of a validated frame.
type Frame struct {
	// Offset is the position of the header in the parsed buffer.
	Offset  int
	Address uint16
	Op      Opcode
	Status  StatusCode
	Func    byte
	// Len is the requested byte count of a host READ, the payload length of
	// a host WRITE, or the data length of a sensor READ response.
	Len int
	// Value holds the big-endian data of a READ response.
	Value uint16
	// Data holds a host WRITE payload in reverse byte order.
	Data []byte
}

func putChecksum(b []byte) []byte {
	n := len(b) - 2
	binary.BigEndian.PutUint16(b[n:], Checksum(b[:n]))
	return b
}

func header(head byte, addr uint16, op Opcode, size int) []byte {
	b := make([]byte, size)
	b[0], b[1] = head, TypeCode
	binary.BigEndian.PutUint16(b[2:], addr)
	b[4] = byte(op)
	return b
}

// ReadRequest encodes a READ request from a master.
func ReadRequest(addr uint16, fn byte, n byte) []byte {
	b := header(MasterHead, addr, OpRead, 9)
	b[5], b[6] = fn, n
	return putChecksum(b)
}

// WriteRequest encodes a WRITE request from a master, data in wire order.
func WriteRequest(addr uint16, fn byte, data ...byte) []byte {
	b := header(MasterHead, addr, OpWrite, len(data)+9)
	b[5], b[6] = fn, byte(len(data))
	copy(b[7:], data)
	return putChecksum(b)
}

// ReadResponse encodes a READ-style reply carrying 1 or 2 data bytes.
func ReadResponse(addr uint16, status StatusCode, fn byte, n int, value uint16) []byte {
	b := header(SlaveHead, addr, OpRead, n+10)
	b[5], b[6], b[7] = byte(status), fn, byte(n)
	if n == 1 {
		b[8] = byte(value)
	} else {
		binary.BigEndian.PutUint16(b[8:], value)
	}
	return putChecksum(b)
}

// WriteResponse encodes a WRITE acknowledgement.
func WriteResponse(addr uint16, fn byte) []byte {
	b := header(SlaveHead, addr, OpWrite, 8)
	b[5] = fn
	return putChecksum(b)
}

// ErrorResponse encodes the fixed 8-byte error frame.
func ErrorResponse(code StatusCode) []byte {
	b := []byte{SlaveHead, TypeCode, ErrorMarker, ErrorMarker, byte(OpError), byte(code), 0, 0}
	return putChecksum(b)
}

// WriteFrame writes an encoded frame in a single Write call.
func WriteFrame(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}
