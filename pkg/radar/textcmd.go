package radar

import (
	"context"
	"io"
	"math"
	"strings"

	"github.com/golang/glog"
)

// Command is a text command.
type Command int

// Text commands.
const (
	CmdSuspend Command = iota + 1
	CmdRun
	CmdMod
	CmdAngleCalibration
	CmdReset
	CmdSpecifyAngle
)

// MaxCommandTokens limits the decoded tokens of a text command.
const MaxCommandTokens = 10

var commandNames = map[string]Command{
	"SUSPEND":           CmdSuspend,
	"RUN":               CmdRun,
	"MOD":               CmdMod,
	"ANGLE_CALIBRATION": CmdAngleCalibration,
	"RESET":             CmdReset,
	"SPECIFY_ANGLE":     CmdSpecifyAngle,
}

// Text replies.
const (
	ReplySuspend       = "Radar Suspend !"
	ReplyRun           = "Radar start !"
	ReplyMod           = "Choose radar mode !"
	ReplyCalibrated    = "Calibration done !"
	ReplyReset         = "Radar stop and reset action !"
	ReplySpecifyAngle  = "Specify Angle !"
	ReplyAngleChanged  = "angle change !"
	ReplyNotAvailable  = "Command is not available !"
	ReplyWrongArgs     = "wrong number of parameters !"
	ReplyNoSteering    = "no this sreering engine !"
	ReplyWrongAngle    = "wrong angle !"
	ReplyWrongTime     = "timeNum wrong !"
	ReplyWrongEndpoint = "last parameter error of steering gear !"
)

// TextCommands executes the text command interface.
type TextCommands struct {
	Status *Status
	Sweep  *Sweep
}

// ParseCommand splits a line into integer tokens. The first token may
// also be a command name. A token decodes from its leading digits, 0
// when there are none.
func ParseCommand(line string) []int {
	fields := strings.Fields(line)
	if len(fields) > MaxCommandTokens {
		fields = fields[:MaxCommandTokens]
	}
	codes := make([]int, len(fields))
	for n, field := range fields {
		if n == 0 {
			if cmd, ok := commandNames[strings.ToUpper(field)]; ok {
				codes[n] = int(cmd)
				continue
			}
		}
		codes[n] = leadingInt(field)
	}
	return codes
}

// leadingInt parses an optionally signed number prefix, "12abc" is 12.
func leadingInt(s string) int {
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	val := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		if val < math.MaxInt32/10 {
			val = val*10 + int(s[i]-'0')
		} else {
			val = math.MaxInt32
		}
	}
	if neg {
		return -val
	}
	return val
}

// Exec executes one command line and returns the reply.
func (c *TextCommands) Exec(line string) string {
	codes := ParseCommand(line)
	if len(codes) == 0 {
		return ""
	}
	var reply string
	switch Command(codes[0]) {
	case CmdSuspend:
		c.Sweep.Notify(StateSuspended)
		reply = ReplySuspend
	case CmdRun:
		c.Sweep.Notify(StateRunning)
		reply = ReplyRun
	case CmdMod:
		reply = ReplyMod
	case CmdAngleCalibration:
		reply = c.calibrate(codes)
	case CmdReset:
		c.Sweep.Notify(StateResetting)
		reply = ReplyReset
	case CmdSpecifyAngle:
		reply = ReplySpecifyAngle + "\n" + c.specifyAngle(codes)
	default:
		reply = ReplyNotAvailable
	}
	glog.Infof("text command %q: %s", line, reply)
	return reply
}

// calibrate handles <cmd> <steering> <high_us> <1|0>.
func (c *TextCommands) calibrate(codes []int) string {
	actuators := c.Status.Actuators
	if len(codes) != 4 {
		return ReplyWrongArgs
	}
	if codes[1] <= 0 || codes[1] > actuators.Count() {
		return ReplyNoSteering
	}
	if codes[2] <= 0 || codes[2] > actuators.Timer.PeriodUs() {
		return ReplyWrongTime
	}
	if codes[3] != 0 && codes[3] != 1 {
		return ReplyWrongEndpoint
	}
	c.Sweep.Notify(StateSuspended)
	if err := actuators.Calibrate(codes[1], codes[2], codes[3] == 1); err != nil {
		glog.Errorf("calibration failed: %v", err)
	}
	return ReplyCalibrated
}

// specifyAngle handles <cmd> <steering> <angle>.
func (c *TextCommands) specifyAngle(codes []int) string {
	actuators := c.Status.Actuators
	if len(codes) != 3 {
		return ReplyWrongArgs
	}
	if codes[1] <= 0 || codes[1] > actuators.Count() {
		return ReplyNoSteering
	}
	scope, _ := actuators.Scope(codes[1] - 1)
	if codes[2] < 0 || codes[2] > scope {
		return ReplyWrongAngle
	}
	c.Sweep.Notify(StateSuspended)
	if err := actuators.ChangeAngle(codes[1]-1, codes[2]); err != nil {
		glog.Errorf("angle change failed: %v", err)
	}
	return ReplyAngleChanged
}

// HandleData implements uart.DataHandler, one command per line.
func (c *TextCommands) HandleData(ctx context.Context, w io.Writer, data []byte) {
	for _, line := range strings.Split(string(data), "\n") {
		if reply := c.Exec(line); reply != "" {
			io.WriteString(w, reply+"\n")
		}
	}
}
