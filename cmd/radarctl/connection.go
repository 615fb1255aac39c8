package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robotalks/radar.go/pkg/protocol"
	"github.com/robotalks/radar.go/pkg/transport/websocket"
	"github.com/robotalks/radar.go/pkg/uart"
)

const serialIdle = 10 * time.Millisecond

// Master is a host side connection to a radar.
type Master struct {
	*protocol.Client
	Info string

	line   *uart.Line
	cancel context.CancelFunc
	doneCh chan struct{}
}

// OpenMaster opens the serial or websocket connection from the flags.
func OpenMaster() (*Master, error) {
	var line *uart.Line
	var info string
	switch {
	case portName != "":
		l, err := uart.OpenSerialLine(0, portName, baudRate, serialIdle)
		if err != nil {
			return nil, err
		}
		line, info = l, fmt.Sprintf("%s @ %d baud", portName, baudRate)
	case wsURL != "":
		conn, err := websocket.Dial(wsURL, wsOrigin)
		if err != nil {
			return nil, fmt.Errorf("websocket %s: %w", wsURL, err)
		}
		line, info = uart.NewLine(0, conn), wsURL
	default:
		return nil, errors.New("--port or --url is required")
	}

	m := &Master{
		Client: protocol.NewClient(line, protocol.SensorDialect),
		Info:   info,
		line:   line,
		doneCh: make(chan struct{}),
	}
	m.Timeout = timeout
	line.SetHandler(m.Client)
	var ctx context.Context
	ctx, m.cancel = context.WithCancel(context.Background())
	go func() {
		defer close(m.doneCh)
		line.Run(ctx)
	}()
	return m, nil
}

// Close stops the line.
func (m *Master) Close() error {
	m.cancel()
	<-m.doneCh
	return nil
}
