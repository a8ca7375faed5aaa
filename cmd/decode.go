package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/netscope/pkg/payload"
)

var decodeFlags struct {
	protocol string
	hex      string
	file     string
	dump     bool
}

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a payload the way the pipeline would",
	Long: `Decode an application payload with the decoder selected by a protocol label.

The payload is read from --hex, from --file, or from stdin.

Examples:
  netscope decode -p HTTP --file request.bin
  netscope decode -p dns --hex "12 34 01 00 00 01"
  printf 'GET / HTTP/1.1\r\n\r\n' | netscope decode -p http --dump`,
	Run: func(cmd *cobra.Command, args []string) {
		data, err := decodeInput(os.Stdin)
		if err != nil {
			exitWithError("failed to read payload", err)
		}
		runDecode(os.Stdout, decodeFlags.protocol, data, decodeFlags.dump)
	},
}

func init() {
	f := decodeCmd.Flags()
	f.StringVarP(&decodeFlags.protocol, "protocol", "p", "", "protocol label: HTTP|HTTPS|DNS|TCP|UDP|ICMP|UNKNOWN (required)")
	f.StringVar(&decodeFlags.hex, "hex", "", "payload as hex digits; whitespace and colons are ignored")
	f.StringVar(&decodeFlags.file, "file", "", "read the raw payload from this file")
	f.BoolVar(&decodeFlags.dump, "dump", false, "also print a hex dump")
	decodeCmd.MarkFlagRequired("protocol")
	decodeCmd.MarkFlagsMutuallyExclusive("hex", "file")
}

func decodeInput(stdin io.Reader) ([]byte, error) {
	switch {
	case decodeFlags.hex != "":
		return parseHex(decodeFlags.hex)
	case decodeFlags.file != "":
		return os.ReadFile(decodeFlags.file)
	default:
		return io.ReadAll(stdin)
	}
}

func parseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", "\n", "", "\t", "", ":", "", "\r", "").Replace(s)
	clean = strings.TrimPrefix(strings.ToLower(clean), "0x")
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

func runDecode(w io.Writer, label string, data []byte, dump bool) {
	fmt.Fprintln(w, payload.DecodePayload(label, data))
	if dump {
		fmt.Fprint(w, payload.HexDump(data, 0, len(data)))
	}
}
