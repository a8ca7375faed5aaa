package cmd

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"firestige.xyz/netscope/internal/client"
	"firestige.xyz/netscope/internal/tui"
)

var watchFlags struct {
	url       string
	history   int
	exportDir string
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a netscope server in the terminal",
	Long: `Connect to a netscope server as a subscriber and browse the live stream.

Keys: p pause, c clear, f cycle protocol filter, / search, e export JSON, q quit.

Examples:
  netscope watch
  netscope watch --url ws://10.0.0.5:3001/ --history 5000`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		conn, err := client.Dial(ctx, watchFlags.url)
		if err != nil {
			exitWithError("failed to connect", err)
		}

		events := make(chan client.Event, 256)
		go client.Stream(ctx, conn, events)

		model := tui.NewModel(watchFlags.url, events, watchFlags.history).WithExportDir(watchFlags.exportDir)
		if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
			exitWithError("terminal UI failed", err)
		}
	},
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchFlags.url, "url", client.DefaultURL, "server WebSocket URL")
	f.IntVar(&watchFlags.history, "history", client.DefaultHistorySize, "number of records kept")
	f.StringVar(&watchFlags.exportDir, "export-dir", ".", "directory for exported JSON files")
}
