package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/radar.go/pkg/telemetry/mqtt"
)

// Terminal executes text command lines on a radar.
type Terminal interface {
	Exec(ctx context.Context, line string) (string, error)
	Close() error
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	BrokerURL   string
	Timeout     time.Duration

	Shell *ishell.Shell
	Term  Terminal
	// Target names the connected radar.
	Target string
}

// Reply is the JSON output of a command.
type Reply struct {
	Command string `json:"command"`
	Reply   string `json:"reply"`
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
	serialPrefix      = "serial:"
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	brokerURL  = "mqtt://localhost:1883/radar/"
	target     string
	serialBaud = 115200
	timeout    = 2 * time.Second

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	if val := os.Getenv("RADAR_MQTT_URL"); val != "" {
		brokerURL = val
	}
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&brokerURL, "mqtt", brokerURL, "MQTT broker URL.")
	flag.StringVar(&target, "connect", target, "Radar ID or serial:DEVICE to connect at start.")
	flag.IntVar(&serialBaud, "baud", serialBaud, "Baud rate of serial terminals.")
	flag.DurationVar(&timeout, "timeout", timeout, "Time to wait for a reply.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		BrokerURL:   brokerURL,
		Timeout:     timeout,

		Shell: ishell.New(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Term == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// DoCommand sends a command line and prints the reply.
func DoCommand(c *ishell.Context, line string) error {
	s := ShellFrom(c)
	if s.Term == nil {
		err := fmt.Errorf("not connected")
		c.Err(err)
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	reply, err := s.Term.Exec(ctx, line)
	if err != nil {
		c.Err(err)
		return err
	}
	if s.OutputJSON {
		out, err := json.Marshal(&Reply{Command: line, Reply: reply})
		if err != nil {
			c.Err(err)
			return err
		}
		c.Println(string(out))
		return nil
	}
	c.Println(reply)
	return nil
}

// Connect connects a radar by ID over MQTT, or a serial text port
// when target is serial:DEVICE.
func (s *Shell) Connect(target string) error {
	var term Terminal
	var err error
	if strings.HasPrefix(target, serialPrefix) {
		term, err = DialSerial(strings.TrimPrefix(target, serialPrefix), serialBaud)
	} else {
		var client *mqtt.TextClient
		if client, err = mqtt.DialText(s.BrokerURL, target); err == nil {
			client.Timeout = s.Timeout
			term = client
		}
	}
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Term, s.Target = term, target
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", target))
	return nil
}

// Disconnect disconnects current radar.
func (s *Shell) Disconnect() {
	if s.Term != nil {
		s.Term.Close()
		s.Term, s.Target = nil, ""
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Discover lists radars on the broker.
func (s *Shell) Discover() ([]mqtt.RadarInfo, error) {
	return mqtt.Discover(context.Background(), s.BrokerURL, 0)
}

// SelectRadar discovers radars and asks for a choice.
func (s *Shell) SelectRadar() (string, error) {
	infoList, err := s.Discover()
	if err != nil {
		return "", err
	}
	if len(infoList) == 0 {
		return "", fmt.Errorf("no radar discovered")
	}
	var index int
	if len(infoList) > 1 {
		if !s.Interactive {
			return "", fmt.Errorf("more than 1 radars discovered in non-interactive mode")
		}
		items := make([]string, len(infoList))
		for n, info := range infoList {
			items[n] = info.ID
		}
		index = s.Shell.MultiChoice(items, "Which one to connect?")
		if index < 0 {
			return "", fmt.Errorf("no radar selected")
		}
	}
	return infoList[index].ID, nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Disconnect()
	if target != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", target)
		}
		if err := s.Connect(target); err != nil {
			log.Fatalf("connect %q failed: %v", target, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// DiscoverCmd discovers radars.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			infoList, err := s.Discover()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(infoList) == 0 {
					// in case infoList is nil, make it empty slice.
					infoList = []mqtt.RadarInfo{}
				}
				out, err := json.Marshal(infoList)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(infoList) == 0 {
				c.Println("No radars found")
				return
			}
			for _, info := range infoList {
				c.Printf("%s: %s\n", info.ID, info.State)
			}
		},
	}

	// ConnectCmd connects a radar.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[ID | serial:DEVICE]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var target string
			if len(c.Args) > 0 {
				target = c.Args[0]
			} else {
				id, err := s.SelectRadar()
				if err != nil {
					c.Err(err)
					return
				}
				target = id
			}
			if err := s.Connect(target); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current radar.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New().Run(flag.Args()...)
}
