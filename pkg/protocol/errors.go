package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrFrame indicates malformed or unsynchronized bytes.
	ErrFrame = errors.New("frame format error")
	// ErrChecksum indicates a structurally valid frame with a bad checksum.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrTimeout indicates no response arrived in time.
	ErrTimeout = errors.New("timeout")
	// ErrBusy indicates a previous frame is still being processed.
	ErrBusy = errors.New("busy")
	// ErrData indicates a semantically invalid payload.
	ErrData = errors.New("invalid data")
	// ErrFuncCode indicates an unsupported opcode/function code combination.
	ErrFuncCode = errors.New("unsupported function code")
)

// OperationError is an abnormal condition reported by the peer.
type OperationError struct {
	Code byte
}

// Error implements error.
func (e *OperationError) Error() string {
	return fmt.Sprintf("operation error %d", e.Code)
}

// StatusOf maps an outcome to the status code sent on the wire.
func StatusOf(err error) StatusCode {
	var opErr *OperationError
	switch {
	case err == nil:
		return StatusNormal
	case errors.Is(err, ErrFrame):
		return StatusErrFrame
	case errors.Is(err, ErrChecksum):
		return StatusErrCRC
	case errors.Is(err, ErrBusy):
		return StatusErrBusy
	case errors.Is(err, ErrData):
		return StatusErrData
	case errors.Is(err, ErrFuncCode):
		return StatusErrFuncCode
	case errors.As(err, &opErr):
		return StatusCode(opErr.Code)
	}
	return StatusErrDevice
}
