package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/netscope/internal/config"
)

var validateFlags struct {
	config string
	print  bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without starting capture.

Examples:
  netscope validate -c netscope.yaml
  netscope validate -c netscope.yaml --print   # Also print the effective config`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(os.Stdout, validateFlags.config, validateFlags.print); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFlags.config, "config", "c", "", "config file to validate (required)")
	validateCmd.Flags().BoolVar(&validateFlags.print, "print", false, "print the effective configuration")
	validateCmd.MarkFlagRequired("config")
}

func runValidate(w io.Writer, path string, print bool) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "VALID: capture=%s listen=%s console=%t kafka=%t metrics=%t\n",
		cfg.Capture.Type, cfg.Server.Listen,
		cfg.Sinks.Console.Enabled, cfg.Sinks.Kafka.Enabled, cfg.Metrics.Enabled)

	if print {
		data, err := cfg.Marshal()
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		w.Write(data)
	}
	return nil
}
