package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"firestige.xyz/netscope/internal/core"
)

// Export writes records to path as an indented JSON array.
func Export(path string, records []core.WireRecord) error {
	if records == nil {
		records = []core.WireRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write export %s: %w", path, err)
	}
	return nil
}
