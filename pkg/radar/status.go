package radar

import (
	"sync/atomic"

	"github.com/robotalks/radar.go/pkg/actuator"
	"github.com/robotalks/radar.go/pkg/modbus"
)

// SYS command parameters.
const (
	SysRun        byte = 0x00
	SysParamReset byte = 0x01
	SysReset      byte = 0x02
	SysSuspend    byte = 0x03
)

// Scan rate codes, 0.1Hz to 100Hz.
const (
	ScanRate0_1Hz byte = iota
	ScanRate0_5Hz
	ScanRate1Hz
	ScanRate2Hz
	ScanRate5Hz
	ScanRate10Hz
	ScanRate20Hz
	ScanRate50Hz
	ScanRate80Hz
	ScanRate100Hz
)

// Measure modes.
const (
	MeasureGeneral byte = iota
	MeasureHighPrecision
	MeasureLong
	MeasureHighSpeed
)

// WorkModeNormal is the only work mode.
const WorkModeNormal byte = 0x00

// BaudUnknown is reported for a baud rate without a code.
const BaudUnknown byte = 0xFF

var baudCodes = map[int]byte{
	2400:   0,
	4800:   1,
	9600:   2,
	19200:  3,
	38400:  4,
	57600:  5,
	115200: 6,
	230400: 7,
	460800: 8,
	921600: 9,
}

// BaudCode translates a baud rate into its code.
func BaudCode(baud int) byte {
	if code, ok := baudCodes[baud]; ok {
		return code
	}
	return BaudUnknown
}

// Status is the state shared by the radar tasks.
type Status struct {
	Address   *modbus.AddressStore
	Actuators *actuator.Driver
	Events    *EventGroup

	scanRate    atomic.Uint32
	workMode    atomic.Uint32
	measureMode atomic.Uint32
	distance    atomic.Uint32
}

// NewStatus creates a Status with default modes.
func NewStatus(addr *modbus.AddressStore, actuators *actuator.Driver) *Status {
	s := &Status{Address: addr, Actuators: actuators, Events: &EventGroup{}}
	s.ResetParams()
	return s
}

// ResetParams restores the default modes.
func (s *Status) ResetParams() {
	s.scanRate.Store(uint32(ScanRate0_1Hz))
	s.workMode.Store(uint32(WorkModeNormal))
	s.measureMode.Store(uint32(MeasureGeneral))
}

// ScanRate returns the scan rate code.
func (s *Status) ScanRate() byte { return byte(s.scanRate.Load()) }

// WorkMode returns the work mode.
func (s *Status) WorkMode() byte { return byte(s.workMode.Load()) }

// MeasureMode returns the measure mode.
func (s *Status) MeasureMode() byte { return byte(s.measureMode.Load()) }

// Distance returns the last measured distance.
func (s *Status) Distance() uint16 { return uint16(s.distance.Load()) }

// SetScanRate sets the scan rate code.
func (s *Status) SetScanRate(code byte) bool {
	if code > ScanRate100Hz {
		return false
	}
	s.scanRate.Store(uint32(code))
	return true
}

// SetWorkMode sets the work mode.
func (s *Status) SetWorkMode(mode byte) bool {
	if mode != WorkModeNormal {
		return false
	}
	s.workMode.Store(uint32(mode))
	return true
}

// SetMeasureMode sets the measure mode.
func (s *Status) SetMeasureMode(mode byte) bool {
	if mode > MeasureHighSpeed {
		return false
	}
	s.measureMode.Store(uint32(mode))
	return true
}

// SetDistance records a measured distance.
func (s *Status) SetDistance(d uint16) {
	s.distance.Store(uint32(d))
}
