package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/robotalks/radar.go/pkg/capture"
	"github.com/robotalks/radar.go/pkg/protocol"
	"github.com/robotalks/radar.go/pkg/telemetry/mqtt"
)

// FormatFrame renders a frame parsed in dialect d for display.
func FormatFrame(d protocol.Dialect, b []byte) string {
	f, err := protocol.Parse(d, b, nil)
	if f == nil {
		return fmt.Sprintf("%s: % X", err, b)
	}
	var w strings.Builder
	fmt.Fprintf(&w, "%s addr=0x%04X", f.Op, f.Address)
	switch {
	case f.Op == protocol.OpError:
		fmt.Fprintf(&w, " code=%d", f.Status)
	case d == protocol.HostDialect && f.Op == protocol.OpWrite:
		// Data is stored in reverse order.
		data := make([]byte, len(f.Data))
		for i, v := range f.Data {
			data[len(data)-1-i] = v
		}
		fmt.Fprintf(&w, " func=0x%02X data=[% X]", f.Func, data)
	case d == protocol.HostDialect:
		fmt.Fprintf(&w, " func=0x%02X len=%d", f.Func, f.Len)
	case f.Op == protocol.OpRead:
		fmt.Fprintf(&w, " status=%d func=0x%02X value=%d", f.Status, f.Func, f.Value)
	default:
		fmt.Fprintf(&w, " func=0x%02X", f.Func)
	}
	if err != nil && f.Op != protocol.OpError {
		fmt.Fprintf(&w, " (%v)", err)
	}
	return w.String()
}

func parseDialect(s string) (protocol.Dialect, error) {
	switch strings.ToLower(s) {
	case "host", "master":
		return protocol.HostDialect, nil
	case "sensor", "slave", "reply":
		return protocol.SensorDialect, nil
	}
	return 0, fmt.Errorf("unknown dialect %q", s)
}

var decodeDialect string

var decodeCmd = &cobra.Command{
	Use:   "decode HEX...",
	Short: "Decode a frame given in hex",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := parseDialect(decodeDialect)
		if err != nil {
			return err
		}
		b, err := hex.DecodeString(strings.Join(args, ""))
		if err != nil {
			return err
		}
		fmt.Println(FormatFrame(d, b))
		return nil
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture FILE",
	Short: "Print a recorded host line capture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r := capture.NewReader(f)
		for {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			d := protocol.HostDialect
			if rec.Direction == capture.Sent {
				d = protocol.SensorDialect
			}
			fmt.Printf("[%s] %-8s %s\n", rec.Time.Format("15:04:05.000"), rec.Direction, FormatFrame(d, rec.Bytes))
		}
	},
}

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List radars publishing on the MQTT broker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		infoList, err := mqtt.Discover(context.Background(), mqttURL, discoverTimeout)
		if err != nil {
			return err
		}
		if len(infoList) == 0 {
			fmt.Println("No radars found")
			return nil
		}
		for _, info := range infoList {
			fmt.Printf("%s: %s\n", info.ID, info.State)
		}
		return nil
	},
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeDialect, "dialect", "d", "sensor", "host or sensor")
	discoverCmd.Flags().DurationVar(&discoverTimeout, "wait", mqtt.DefaultDiscoverTimeout, "Time to collect radars")
	rootCmd.AddCommand(decodeCmd, captureCmd, discoverCmd)
}
