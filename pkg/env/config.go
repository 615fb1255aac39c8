// Package env provides the configuration of the radar programs.
package env

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/radar.go/pkg/actuator"
	fx "github.com/robotalks/radar.go/pkg/framework"
)

// PortConfig configures a serial line.
type PortConfig struct {
	Device   string        `yaml:"device"`
	BaudRate int           `yaml:"baud_rate"`
	Idle     time.Duration `yaml:"idle"`
}

// Config is the configuration of the radar daemon.
type Config struct {
	// ID names the radar in MQTT topics.
	ID         string     `yaml:"id"`
	HostPort   PortConfig `yaml:"host_port"`
	SensorPort PortConfig `yaml:"sensor_port"`
	// TextPort carries the text command interface, optional.
	TextPort PortConfig `yaml:"text_port"`
	// StateFile persists the device address.
	StateFile string `yaml:"state_file"`

	Timer        actuator.Timer            `yaml:"pwm_timer"`
	DefaultAngle int                       `yaml:"default_angle"`
	Steerings    []actuator.SteeringConfig `yaml:"steerings"`

	SweepStep            int           `yaml:"sweep_step"`
	SweepInterval        time.Duration `yaml:"sweep_interval"`
	SettleDelay          time.Duration `yaml:"settle_delay"`
	MeasureWait          time.Duration `yaml:"measure_wait"`
	MeasureWhileSweeping bool          `yaml:"measure_while_sweeping"`

	// MQTTBrokerURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt_url"`
	// WebsocketAddr serves the host protocol over websocket, e.g. :8080.
	WebsocketAddr string `yaml:"websocket_addr"`
	// CaptureFile records host line traffic.
	CaptureFile string `yaml:"capture_file"`
	// MirrorAddr mirrors samples to a Modbus TCP device, e.g. host:502.
	MirrorAddr     string `yaml:"mirror_addr"`
	MirrorSlaveID  int    `yaml:"mirror_slave_id"`
	MirrorRegister int    `yaml:"mirror_register"`

	// ConfigFile is a YAML file overlaying the defaults.
	ConfigFile string `yaml:"-"`
}

var defaultConfig = Config{
	HostPort:     PortConfig{Device: "/dev/ttyUSB0", BaudRate: 115200, Idle: 10 * time.Millisecond},
	SensorPort:   PortConfig{Device: "/dev/ttyUSB1", BaudRate: 115200, Idle: 10 * time.Millisecond},
	StateFile:    "radar-state.yaml",
	Timer:        actuator.Timer{Frequency: 50, Resolution: 13},
	DefaultAngle: 90,
	Steerings: []actuator.SteeringConfig{
		{Channel: 0, Scope: 180, MinHighUs: 500, MaxHighUs: 2500},
	},
	SweepStep:      5,
	SweepInterval:  20 * time.Millisecond,
	SettleDelay:    500 * time.Millisecond,
	MeasureWait:    1500 * time.Millisecond,
	MirrorSlaveID:  1,
	MirrorRegister: 0,
}

// explicit records flags set on the command line, they win over the file.
var explicit = make(map[string]bool)

func init() {
	if val := os.Getenv("RADAR_HOST_PORT"); val != "" {
		defaultConfig.HostPort.Device = val
	}
	if val := os.Getenv("RADAR_SENSOR_PORT"); val != "" {
		defaultConfig.SensorPort.Device = val
	}
	if val := os.Getenv("RADAR_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("RADAR_CONFIG"); val != "" {
		defaultConfig.ConfigFile = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ConfigFile, "config", defaultConfig.ConfigFile, "YAML configuration file")
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Radar ID, machine id by default")
	flag.StringVar(&defaultConfig.HostPort.Device, "host-port", defaultConfig.HostPort.Device, "Serial port of the host line")
	flag.IntVar(&defaultConfig.HostPort.BaudRate, "host-baud", defaultConfig.HostPort.BaudRate, "Baud rate of the host line")
	flag.StringVar(&defaultConfig.SensorPort.Device, "sensor-port", defaultConfig.SensorPort.Device, "Serial port of the distance sensor")
	flag.IntVar(&defaultConfig.SensorPort.BaudRate, "sensor-baud", defaultConfig.SensorPort.BaudRate, "Baud rate of the distance sensor")
	flag.StringVar(&defaultConfig.TextPort.Device, "text-port", defaultConfig.TextPort.Device, "Serial port of the text command interface")
	flag.StringVar(&defaultConfig.StateFile, "state", defaultConfig.StateFile, "File persisting the device address")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.WebsocketAddr, "websocket", defaultConfig.WebsocketAddr, "Serve the host line over websocket on this address")
	flag.StringVar(&defaultConfig.CaptureFile, "capture", defaultConfig.CaptureFile, "Record host line traffic to this file")
	flag.StringVar(&defaultConfig.MirrorAddr, "mirror", defaultConfig.MirrorAddr, "Mirror samples to this Modbus TCP device")
	flag.BoolVar(&defaultConfig.MeasureWhileSweeping, "measure-sweep", defaultConfig.MeasureWhileSweeping, "Measure after each sweep step")
}

// NewConfig creates a Config with default configurations. The config file
// is applied first and flags set on the command line override it.
func NewConfig() (*Config, error) {
	conf := defaultConfig
	conf.Steerings = append([]actuator.SteeringConfig(nil), defaultConfig.Steerings...)
	if conf.ConfigFile != "" {
		if err := conf.LoadFile(conf.ConfigFile); err != nil {
			return nil, err
		}
	}
	if conf.ID == "" {
		conf.ID = MachineID()
	}
	return &conf, nil
}

// MustNewConfig creates Config and fails on error.
func MustNewConfig() *Config {
	conf, err := NewConfig()
	if err == nil {
		err = conf.Validate()
	}
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

// LoadFile overlays a YAML file, keeping values of flags set explicitly.
func (c *Config) LoadFile(fn string) error {
	content, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	loaded := *c
	if err = yaml.Unmarshal(content, &loaded); err != nil {
		return fmt.Errorf("parse %s: %w", fn, err)
	}
	flagVars := map[string]func(){
		"id":            func() { loaded.ID = c.ID },
		"host-port":     func() { loaded.HostPort.Device = c.HostPort.Device },
		"host-baud":     func() { loaded.HostPort.BaudRate = c.HostPort.BaudRate },
		"sensor-port":   func() { loaded.SensorPort.Device = c.SensorPort.Device },
		"sensor-baud":   func() { loaded.SensorPort.BaudRate = c.SensorPort.BaudRate },
		"text-port":     func() { loaded.TextPort.Device = c.TextPort.Device },
		"state":         func() { loaded.StateFile = c.StateFile },
		"mqtt":          func() { loaded.MQTTBrokerURL = c.MQTTBrokerURL },
		"websocket":     func() { loaded.WebsocketAddr = c.WebsocketAddr },
		"capture":       func() { loaded.CaptureFile = c.CaptureFile },
		"mirror":        func() { loaded.MirrorAddr = c.MirrorAddr },
		"measure-sweep": func() { loaded.MeasureWhileSweeping = c.MeasureWhileSweeping },
	}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	for name, keep := range flagVars {
		if explicit[name] {
			keep()
		}
	}
	*c = loaded
	return nil
}

// Validate reports all invalid settings.
func (c *Config) Validate() error {
	var errs fx.AggregatedError
	if c.ID == "" {
		errs.Add(errors.New("radar id is required"))
	}
	if c.HostPort.Device == "" && c.WebsocketAddr == "" {
		errs.Add(errors.New("host port or websocket address is required"))
	}
	if c.SensorPort.Device == "" {
		errs.Add(errors.New("sensor port is required"))
	}
	for _, port := range []PortConfig{c.HostPort, c.SensorPort, c.TextPort} {
		if port.Device != "" && port.BaudRate <= 0 {
			errs.Addf("invalid baud rate %d for %s", port.BaudRate, port.Device)
		}
	}
	if n := len(c.Steerings); n == 0 || n > actuator.MaxSteerings {
		errs.Addf("steering count %d not in 1..%d", n, actuator.MaxSteerings)
	}
	for n, s := range c.Steerings {
		if s.Scope <= 0 {
			errs.Addf("steering %d: invalid scope %d", n+1, s.Scope)
		}
		if c.DefaultAngle < 0 || c.DefaultAngle > s.Scope {
			errs.Addf("steering %d: default angle %d out of scope", n+1, c.DefaultAngle)
		}
	}
	if c.SweepStep <= 0 {
		errs.Add(errors.New("sweep step must be positive"))
	}
	if c.MeasureWait <= c.SettleDelay {
		errs.Addf("measure wait %v must exceed settle delay %v", c.MeasureWait, c.SettleDelay)
	}
	if c.MirrorAddr != "" && (c.MirrorSlaveID < 0 || c.MirrorSlaveID > 247) {
		errs.Addf("mirror slave id %d out of range", c.MirrorSlaveID)
	}
	return errs.Aggregate()
}
