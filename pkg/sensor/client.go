// Package sensor talks to the distance sensor over its UART line.
package sensor

import (
	"context"
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/protocol"
)

// Function codes understood by the sensor.
const (
	FuncSys          byte = 0x00
	FuncBackRate     byte = 0x01
	FuncBaudRate     byte = 0x02
	FuncIDSet        byte = 0x03
	FuncMeasureData  byte = 0x05
	FuncOutputStatus byte = 0x07
	FuncMeasureMode  byte = 0x08
	FuncCaliMode     byte = 0x09
	FuncWorkMode     byte = 0x0A
	FuncErrorFrame   byte = 0x0B
	FuncVersion      byte = 0x0C
)

const (
	// BroadcastAddress reaches any sensor on the line.
	BroadcastAddress uint16 = 0xFFFF
	// WorkModeModbus is the request/response work mode.
	WorkModeModbus byte = 0x01
)

// Client is a sensor client. Received bytes must be fed to HandleData.
type Client struct {
	*protocol.Client
	// Address is the sensor id discovered by Init.
	Address uint16
}

// NewClient creates a sensor client writing requests to w.
func NewClient(w io.Writer) *Client {
	c := &Client{Client: protocol.NewClient(w, protocol.SensorDialect), Address: BroadcastAddress}
	c.Timeout = protocol.DefaultTimeout
	return c
}

// Init discovers the sensor id with a broadcast read and switches the
// sensor to MODBUS work mode.
func (c *Client) Init(ctx context.Context) error {
	id, err := c.Read(ctx, BroadcastAddress, FuncIDSet, 2)
	if err != nil {
		glog.Errorf("sensor id read failed: %v", err)
		return err
	}
	c.Address = id
	glog.Infof("sensor id 0x%04X", id)
	if err = c.Write(ctx, id, FuncWorkMode, WorkModeModbus); err != nil {
		glog.Errorf("sensor 0x%04X work mode change failed: %v", id, err)
		return err
	}
	return nil
}

// MeasureDistance reads one distance sample.
func (c *Client) MeasureDistance(ctx context.Context) (uint16, error) {
	distance, err := c.Read(ctx, c.Address, FuncMeasureData, 2)
	if err != nil {
		glog.V(2).Infof("sensor 0x%04X measure failed: %v", c.Address, err)
		return 0, err
	}
	glog.V(3).Infof("sensor 0x%04X distance %d", c.Address, distance)
	return distance, nil
}

// Version reads the firmware version of the sensor.
func (c *Client) Version(ctx context.Context) (uint16, error) {
	return c.Read(ctx, c.Address, FuncVersion, 2)
}
