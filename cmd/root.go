// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X".
var version = "0.1.0"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "netscope",
	Short: "netscope - live packet capture streamed to WebSocket subscribers",
	Long: `netscope captures IPv4 traffic from a network interface, decodes Ethernet,
IPv4 and TCP/UDP/ICMP headers, labels each packet with an application protocol
(HTTP, HTTPS, DNS, TCP, UDP, ICMP) and streams one JSON record per packet to
every connected WebSocket subscriber.

Features:
  - Capture: libpcap, Linux AF_PACKET (TPACKET_V3) or pcap file replay
  - Subscribers: WebSocket clients, console and Kafka sinks
  - Terminal client: netscope watch
  - Prometheus metrics`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(validateCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
