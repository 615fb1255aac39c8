package radar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/radar.go/pkg/cli/sh"
	"github.com/robotalks/radar.go/pkg/radar"
)

// CommandLine renders a text command with integer arguments.
func CommandLine(cmd radar.Command, args ...int) string {
	fields := make([]string, 0, len(args)+1)
	fields = append(fields, strconv.Itoa(int(cmd)))
	for _, arg := range args {
		fields = append(fields, strconv.Itoa(arg))
	}
	return strings.Join(fields, " ")
}

// parseArgs parses the ints of a command, names are used in errors.
func parseArgs(args []string, names ...string) ([]int, error) {
	if len(args) < len(names) {
		return nil, fmt.Errorf("%s required", strings.Join(names[len(args):], " "))
	}
	vals := make([]int, len(names))
	for n, name := range names {
		val, err := strconv.Atoi(args[n])
		if err != nil {
			return nil, fmt.Errorf("Invalid %s: %v", name, err)
		}
		vals[n] = val
	}
	return vals, nil
}

func simpleCmd(cmd radar.Command) func(c *ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		sh.DoCommand(c, CommandLine(cmd))
	})
}

var (
	// SuspendCmd suspends the sweep.
	SuspendCmd = ishell.Cmd{
		Name:    "suspend",
		Aliases: []string{"stop"},
		Help:    "",
		Func:    simpleCmd(radar.CmdSuspend),
	}

	// RunCmd starts the sweep.
	RunCmd = ishell.Cmd{
		Name:    "run",
		Aliases: []string{"start"},
		Help:    "",
		Func:    simpleCmd(radar.CmdRun),
	}

	// ModCmd queries the mode selection.
	ModCmd = ishell.Cmd{
		Name: "mod",
		Help: "",
		Func: simpleCmd(radar.CmdMod),
	}

	// ResetCmd stops the sweep and resets the steering gears.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "",
		Func: simpleCmd(radar.CmdReset),
	}

	// CalibrateCmd calibrates an endpoint of a steering gear.
	CalibrateCmd = ishell.Cmd{
		Name:    "calibrate",
		Aliases: []string{"cal"},
		Help:    "STEERING HIGH(us) max|min",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			vals, err := parseArgs(c.Args, "STEERING", "HIGH")
			if err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("ENDPOINT required"))
				return
			}
			var endpoint int
			switch strings.ToLower(c.Args[2]) {
			case "max", "1":
				endpoint = 1
			case "min", "0":
				endpoint = 0
			default:
				c.Err(fmt.Errorf("Invalid ENDPOINT: %s", c.Args[2]))
				return
			}
			sh.DoCommand(c, CommandLine(radar.CmdAngleCalibration, vals[0], vals[1], endpoint))
		}),
	}

	// AngleCmd turns a steering gear to an angle.
	AngleCmd = ishell.Cmd{
		Name:    "angle",
		Aliases: []string{"a"},
		Help:    "STEERING ANGLE(degrees)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			vals, err := parseArgs(c.Args, "STEERING", "ANGLE")
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, CommandLine(radar.CmdSpecifyAngle, vals...))
		}),
	}

	// RawCmd sends a text command as is.
	RawCmd = ishell.Cmd{
		Name:    "raw",
		Aliases: []string{"r"},
		Help:    "TOKENS...",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("TOKENS required"))
				return
			}
			sh.DoCommand(c, strings.Join(c.Args, " "))
		}),
	}
)

func init() {
	sh.AddCmds(
		&SuspendCmd,
		&RunCmd,
		&ModCmd,
		&ResetCmd,
		&CalibrateCmd,
		&AngleCmd,
		&RawCmd,
	)
}
