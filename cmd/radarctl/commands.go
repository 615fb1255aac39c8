package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robotalks/radar.go/pkg/protocol"
	"github.com/robotalks/radar.go/pkg/radar"
)

var funcNames = map[string]byte{
	"sys":         protocol.FuncSys,
	"scanrate":    protocol.FuncScanRate,
	"baudrate":    protocol.FuncBaudRate,
	"idset":       protocol.FuncIDSet,
	"appointdata": protocol.FuncAppointData,
	"workmode":    protocol.FuncWorkMode,
	"measuremode": protocol.FuncMeasureMode,
	"calimode":    protocol.FuncCaliMode,
}

var sysCodes = map[string]byte{
	"run":         radar.SysRun,
	"param-reset": radar.SysParamReset,
	"reset":       radar.SysReset,
	"suspend":     radar.SysSuspend,
}

// parseFunc accepts a function name or number.
func parseFunc(s string) (byte, error) {
	if fn, ok := funcNames[strings.ToLower(s)]; ok {
		return fn, nil
	}
	val, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid function %q", s)
	}
	return byte(val), nil
}

// parseBytes parses bytes written as numbers, 0x prefix for hex.
func parseBytes(args []string) ([]byte, error) {
	data := make([]byte, len(args))
	for n, arg := range args {
		val, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q", arg)
		}
		data[n] = byte(val)
	}
	return data, nil
}

// parseTargets parses STEERING:ANGLE pairs, steering gears numbered from 1.
func parseTargets(args []string) ([]radar.AppointTarget, error) {
	targets := make([]radar.AppointTarget, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid target %q, STEERING:ANGLE expected", arg)
		}
		steering, err := strconv.Atoi(parts[0])
		if err != nil || steering < 1 || steering > 0x7F {
			return nil, fmt.Errorf("invalid steering gear %q", parts[0])
		}
		angle, err := strconv.Atoi(parts[1])
		if err != nil || angle < 0 || angle > 0x1FF {
			return nil, fmt.Errorf("invalid angle %q", parts[1])
		}
		targets = append(targets, radar.AppointTarget{Index: steering - 1, Angle: angle})
	}
	return targets, nil
}

func withMaster(fn func(ctx context.Context, m *Master) error) error {
	m, err := OpenMaster()
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(context.Background(), m)
}

func funcUsage() string {
	names := make([]string, 0, len(funcNames))
	for name := range funcNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

var readLen uint8

var readCmd = &cobra.Command{
	Use:   "read FUNC",
	Short: "Read a register",
	Long:  "Issue a READ request. FUNC is a function code or one of: " + funcUsage(),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fn, err := parseFunc(args[0])
		if err != nil {
			return err
		}
		return withMaster(func(ctx context.Context, m *Master) error {
			val, err := m.Read(ctx, deviceAddr, fn, readLen)
			if err != nil {
				return err
			}
			fmt.Printf("0x%02X = %d (0x%04X)\n", fn, val, val)
			return nil
		})
	},
}

var writeCmd = &cobra.Command{
	Use:   "write FUNC BYTE...",
	Short: "Write a register",
	Long:  "Issue a WRITE request. FUNC is a function code or one of: " + funcUsage(),
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fn, err := parseFunc(args[0])
		if err != nil {
			return err
		}
		data, err := parseBytes(args[1:])
		if err != nil {
			return err
		}
		return withMaster(func(ctx context.Context, m *Master) error {
			if err := m.Write(ctx, deviceAddr, fn, data...); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		})
	},
}

var sysCmd = &cobra.Command{
	Use:       "sys run|param-reset|reset|suspend",
	Short:     "Send a system command",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"run", "param-reset", "reset", "suspend"},
	RunE: func(cmd *cobra.Command, args []string) error {
		code, ok := sysCodes[args[0]]
		if !ok {
			return fmt.Errorf("unknown system command %q", args[0])
		}
		return withMaster(func(ctx context.Context, m *Master) error {
			if err := m.Write(ctx, deviceAddr, protocol.FuncSys, code); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		})
	},
}

var appointCmd = &cobra.Command{
	Use:   "appoint STEERING:ANGLE...",
	Short: "Point steering gears and measure the distance",
	Args:  cobra.RangeArgs(1, radar.MaxAppointData/2),
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := parseTargets(args)
		if err != nil {
			return err
		}
		data := radar.EncodeAppointData(targets...)
		return withMaster(func(ctx context.Context, m *Master) error {
			f, err := m.Exchange(ctx, protocol.WriteRequest(deviceAddr, protocol.FuncAppointData, data...))
			if err != nil {
				return err
			}
			if f.Op != protocol.OpRead || f.Func != protocol.FuncAppointData {
				return protocol.ErrFrame
			}
			if f.Status != protocol.StatusNormal {
				return &protocol.OperationError{Code: byte(f.Status)}
			}
			fmt.Printf("distance %d\n", f.Value)
			return nil
		})
	},
}

func init() {
	readCmd.Flags().Uint8VarP(&readLen, "len", "n", 1, "Number of bytes to read (1 or 2)")
	rootCmd.AddCommand(readCmd, writeCmd, sysCmd, appointCmd)
}
