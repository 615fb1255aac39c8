package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/actuator"
	"github.com/robotalks/radar.go/pkg/capture"
	"github.com/robotalks/radar.go/pkg/env"
	mirror "github.com/robotalks/radar.go/pkg/export/modbus"
	fx "github.com/robotalks/radar.go/pkg/framework"
	"github.com/robotalks/radar.go/pkg/modbus"
	"github.com/robotalks/radar.go/pkg/radar"
	"github.com/robotalks/radar.go/pkg/sensor"
	"github.com/robotalks/radar.go/pkg/telemetry/mqtt"
	"github.com/robotalks/radar.go/pkg/transport/websocket"
	"github.com/robotalks/radar.go/pkg/uart"
)

const (
	hostLineNum   = 0
	sensorLineNum = 1
	textLineNum   = 2

	sensorInitRetries = 3
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.MustNewConfig()
	glog.Infof("radar %s starting", conf.ID)

	addr := modbus.NewAddressStore(conf.StateFile)
	if err := addr.Load(); err != nil {
		glog.Exitf("load %s: %v", conf.StateFile, err)
	}

	actuators, err := actuator.NewDriver(conf.Timer, conf.DefaultAngle, nil, conf.Steerings...)
	if err != nil {
		glog.Exitln(err)
	}
	if err = actuators.ResetAngle(); err != nil {
		glog.Exitf("steering reset: %v", err)
	}

	runner := fx.NewRunner().HandleSignals()

	sensorLine, err := uart.OpenSerialLine(sensorLineNum, conf.SensorPort.Device, conf.SensorPort.BaudRate, conf.SensorPort.Idle)
	if err != nil {
		glog.Exitln(err)
	}
	sensorClient := sensor.NewClient(sensorLine)
	sensorLine.SetHandler(sensorClient)
	runner.Go(fx.NamedRun("sensor", sensorLine))
	if err = initSensor(runner.Context, sensorClient); err != nil {
		glog.Exitf("sensor init: %v", err)
	}
	if ver, err := sensorClient.Version(runner.Context); err != nil {
		glog.Warningf("sensor version: %v", err)
	} else {
		glog.Infof("sensor 0x%04X firmware %d.%d", sensorClient.Address, ver>>8, ver&0xFF)
	}

	status := radar.NewStatus(addr, actuators)
	sweep := radar.NewSweep(actuators, status.Events)
	sweep.Step = conf.SweepStep
	sweep.Interval = conf.SweepInterval
	sweep.Settle = conf.SettleDelay
	sweep.MeasureWhileSweeping = conf.MeasureWhileSweeping

	var lines uart.Lines
	var hostLine *uart.Line
	if conf.HostPort.Device != "" {
		if hostLine, err = uart.OpenSerialLine(hostLineNum, conf.HostPort.Device, conf.HostPort.BaudRate, conf.HostPort.Idle); err != nil {
			glog.Exitln(err)
		}
		lines.Add(hostLine)
	}

	var server *modbus.Server
	var dispatcher *radar.Dispatcher
	if hostLine != nil {
		server = modbus.NewServer(addr, hostLine)
		dispatcher = radar.NewDispatcher(server, status, sweep, hostLine)
	} else {
		server = modbus.NewServer(addr, nil)
		dispatcher = radar.NewDispatcher(server, status, sweep, nil)
	}
	dispatcher.MeasureWait = conf.MeasureWait

	var hostHandler uart.DataHandler = server
	if conf.CaptureFile != "" {
		f, err := os.Create(conf.CaptureFile)
		if err != nil {
			glog.Exitln(err)
		}
		defer f.Close()
		hostHandler = &capture.Tap{Writer: capture.NewWriter(f), Handler: server}
	}
	if hostLine != nil {
		lines.SetHandler(hostLineNum, hostHandler)
	}

	textCmds := &radar.TextCommands{Status: status, Sweep: sweep}
	if conf.TextPort.Device != "" {
		textLine, err := uart.OpenSerialLine(textLineNum, conf.TextPort.Device, conf.TextPort.BaudRate, conf.TextPort.Idle)
		if err != nil {
			glog.Exitln(err)
		}
		lines.Add(textLine)
		lines.SetHandler(textLineNum, textCmds)
	}

	measurer := &radar.Measurer{Sensor: sensorClient, Status: status}

	loop := fx.NewLoop()
	loop.Add(&lines)
	loop.AddRunnable(
		fx.NamedRun("sweep", sweep),
		fx.NamedRun("measure", measurer),
		fx.NamedRun("dispatch", dispatcher),
	)

	if conf.WebsocketAddr != "" {
		loop.AddRunnable(fx.NamedRun("websocket", &websocket.Server{Addr: conf.WebsocketAddr, Handler: hostHandler}))
	}

	if conf.MQTTBrokerURL != "" {
		pub, err := mqtt.NewPublisher(conf.MQTTBrokerURL, conf.ID)
		if err != nil {
			glog.Exitf("MQTT: %v", err)
		}
		pub.Status, pub.Sweep = status, sweep
		measurer.Handlers = append(measurer.Handlers, pub)
		loop.Add(pub)
		loop.AddRunnable(fx.NamedRun("mqtt-cmd", &mqtt.CommandLine{
			Queue:   pub.Queue,
			ID:      conf.ID,
			Handler: textCmds,
			Handled: loop.TriggerNext,
		}))
	}

	if conf.MirrorAddr != "" {
		m, err := mirror.Dial(mirror.Config{
			Endpoint: conf.MirrorAddr,
			SlaveID:  uint8(conf.MirrorSlaveID),
			Register: uint16(conf.MirrorRegister),
			Timeout:  time.Second,
		})
		if err != nil {
			glog.Exitf("mirror %s: %v", conf.MirrorAddr, err)
		}
		defer m.Close()
		measurer.Handlers = append(measurer.Handlers, m)
	}

	loop.RunOrFail(runner.Context)
	if err = runner.Wait(); err != nil {
		glog.Errorln(err)
		glog.Flush()
		os.Exit(1)
	}
}

// initSensor retries the sensor handshake a few times, the sensor may
// still be booting.
func initSensor(ctx context.Context, c *sensor.Client) (err error) {
	for i := 0; i < sensorInitRetries; i++ {
		if err = c.Init(ctx); err == nil || ctx.Err() != nil {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	return
}
