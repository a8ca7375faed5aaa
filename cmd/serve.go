package cmd

import (
	"github.com/spf13/cobra"

	"firestige.xyz/netscope/internal/config"
	"firestige.xyz/netscope/internal/daemon"
)

var serveFlags struct {
	config  string
	device  string
	typ     string
	file    string
	listen  string
	console string
	pidFile string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Capture traffic and serve records to subscribers",
	Long: `Capture traffic and stream decoded records to WebSocket subscribers.

A config file is optional; flags override values from the file and from
NETSCOPE_* environment variables.

Examples:
  netscope serve                           # First usable interface, ws://:3001/
  netscope serve -i eth0                   # Capture on eth0
  netscope serve -i 192.168.1.10           # Capture on the interface owning this address
  netscope serve --type afpacket -i eth0   # Linux AF_PACKET capture
  netscope serve --file trace.pcap         # Replay a capture file
  netscope serve -c netscope.yaml --console json`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := serveConfig(cmd)
		if err != nil {
			exitWithError("invalid configuration", err)
		}

		d := daemon.New(cfg, daemon.Options{
			ConfigPath: serveFlags.config,
			PIDFile:    serveFlags.pidFile,
		})
		if err := d.Start(); err != nil {
			exitWithError("failed to start", err)
		}
		if err := d.Run(); err != nil {
			exitWithError("stopped with error", err)
		}
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVarP(&serveFlags.config, "config", "c", "", "config file path (optional)")
	f.StringVarP(&serveFlags.device, "interface", "i", "", "interface name or IPv4 address (default: first usable)")
	f.StringVar(&serveFlags.typ, "type", "", "capture backend: pcap|afpacket|file")
	f.StringVar(&serveFlags.file, "file", "", "replay a pcap file instead of capturing live")
	f.StringVar(&serveFlags.listen, "listen", "", "WebSocket listen address (default :3001)")
	f.StringVar(&serveFlags.console, "console", "", "also print records to stdout: text|json")
	f.StringVar(&serveFlags.pidFile, "pid-file", "", "write the process ID to this file")
}

// serveConfig loads the config file and applies flag overrides.
func serveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(serveFlags.config)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("interface") {
		cfg.Capture.Device = serveFlags.device
	}
	if flags.Changed("type") {
		cfg.Capture.Type = serveFlags.typ
	}
	if flags.Changed("file") {
		cfg.Capture.Type = "file"
		cfg.Capture.File = serveFlags.file
	}
	if flags.Changed("listen") {
		cfg.Server.Listen = serveFlags.listen
	}
	if flags.Changed("console") {
		cfg.Sinks.Console.Enabled = true
		cfg.Sinks.Console.Format = serveFlags.console
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}
