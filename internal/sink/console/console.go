// Package console prints records to a terminal for debugging.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"firestige.xyz/netscope/internal/config"
	"firestige.xyz/netscope/internal/core"
)

const Name = "console"

// Sink writes one line per record in text or JSON form.
type Sink struct {
	format   string
	w        *bufio.Writer
	enc      *json.Encoder
	reported atomic.Uint64
}

// New creates a console sink writing to out, or stdout when out is nil.
func New(cfg config.ConsoleSinkConfig, out io.Writer) (*Sink, error) {
	format := cfg.Format
	if format == "" {
		format = "text"
	}
	if format != "json" && format != "text" {
		return nil, fmt.Errorf("invalid format %q, must be json or text", format)
	}
	if out == nil {
		out = os.Stdout
	}

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Sink{format: format, w: w, enc: enc}, nil
}

func (s *Sink) Name() string { return Name }

// Reported returns how many records were written.
func (s *Sink) Reported() uint64 { return s.reported.Load() }

func (s *Sink) Write(_ context.Context, record core.PacketRecord) error {
	s.reported.Add(1)
	if s.format == "json" {
		return s.enc.Encode(record)
	}
	_, err := io.WriteString(s.w, FormatText(record)+"\n")
	return err
}

func (s *Sink) Flush(context.Context) error {
	return s.w.Flush()
}

func (s *Sink) Close() error {
	return s.w.Flush()
}

// FormatText renders a one-line summary of a record.
func FormatText(r core.PacketRecord) string {
	src, dst := r.IP.SrcIP.String(), r.IP.DstIP.String()
	if sp, dp := core.Ports(r.Transport); sp >= 0 {
		src = fmt.Sprintf("%s:%d", src, sp)
		dst = fmt.Sprintf("%s:%d", dst, dp)
	}
	return fmt.Sprintf("[%s] %-7s %s → %s len=%d",
		r.Frame.Timestamp.Format("15:04:05.000"),
		r.Application.Protocol,
		src, dst,
		r.Frame.Length)
}
