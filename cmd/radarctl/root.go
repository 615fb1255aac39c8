package main

import (
	"flag"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serial connection flags
	portName string
	baudRate int

	// websocket connection flags
	wsURL    string
	wsOrigin string

	deviceAddr uint16
	timeout    time.Duration
	mqttURL    = "mqtt://localhost:1883/radar/"
)

var rootCmd = &cobra.Command{
	Use:   "radarctl",
	Short: "Radar host protocol master",
	Long: `radarctl talks to a radar as the host: it issues READ and WRITE
requests and prints the replies.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host:port/

The MQTT broker for discovery is taken from --mqtt or RADAR_MQTT_URL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// glog flags are set through pflag, mark the go flags parsed.
		return flag.CommandLine.Parse(nil)
	},
}

func init() {
	if val := os.Getenv("RADAR_MQTT_URL"); val != "" {
		mqttURL = val
	}

	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws://)")
	rootCmd.PersistentFlags().StringVar(&wsOrigin, "origin", "http://localhost/", "WebSocket origin")
	rootCmd.PersistentFlags().Uint16VarP(&deviceAddr, "addr", "a", 1, "Device address of the radar")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "Time to wait for a reply")
	rootCmd.PersistentFlags().StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL")
	// glog flags
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
