package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/netscope/internal/capture"
)

var devicesSource string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capturable network interfaces",
	Long: `List network interfaces that can be passed to "serve -i".

The device marked with * is the one picked when no interface is given.

Examples:
  netscope devices               # As seen by libpcap
  netscope devices --source os   # As seen by the operating system (afpacket)`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			devs []capture.Device
			err  error
		)
		switch devicesSource {
		case "pcap":
			devs, err = capture.PCAPDevices()
		case "os":
			devs, err = capture.SystemDevices()
		default:
			exitWithError(fmt.Sprintf("unknown source %q (must be pcap/os)", devicesSource), nil)
		}
		if err != nil {
			exitWithError("failed to list devices", err)
		}
		printDevices(os.Stdout, devs)
	},
}

func init() {
	devicesCmd.Flags().StringVar(&devicesSource, "source", "pcap", "device source: pcap|os")
}

func printDevices(w io.Writer, devs []capture.Device) {
	if len(devs) == 0 {
		fmt.Fprintln(w, "No capture interfaces found")
		return
	}

	def, _ := capture.ResolveDevice("", devs)
	fmt.Fprintln(w, "Capture interfaces:")
	for i, d := range devs {
		mark := " "
		if d.Name == def.Name {
			mark = "*"
		}
		addrs := make([]string, 0, len(d.Addresses))
		for _, a := range d.Addresses {
			addrs = append(addrs, a.String())
		}
		var flags []string
		if d.Loopback {
			flags = append(flags, "loopback")
		}
		if !d.Up {
			flags = append(flags, "down")
		}
		desc := d.Description
		if len(flags) > 0 {
			desc = strings.TrimSpace(desc + " [" + strings.Join(flags, ",") + "]")
		}
		fmt.Fprintf(w, "%s%2d. %-20s %-40s %s\n", mark, i+1, d.Name, strings.Join(addrs, ", "), desc)
	}
}
