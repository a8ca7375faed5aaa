// Package capture opens live interfaces and capture files as frame sources.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"

	"firestige.xyz/netscope/internal/config"
	"firestige.xyz/netscope/internal/core"
	"firestige.xyz/netscope/internal/metrics"
)

// Type selects the capture backend.
type Type string

const (
	TypePCAP     Type = "pcap"
	TypeAFPacket Type = "afpacket"
	TypeFile     Type = "file"
)

// ParseType parses a backend name; empty means pcap.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case "", TypePCAP:
		return TypePCAP, nil
	case TypeAFPacket:
		return TypeAFPacket, nil
	case TypeFile:
		return TypeFile, nil
	default:
		return "", fmt.Errorf("unknown capture type %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Options configures a frame source.
type Options struct {
	Type        Type
	Device      string // Interface name, IPv4 address, or empty for the first usable one
	File        string
	SnapLen     int
	BufferSize  int // Bytes
	Promiscuous bool
	Timeout     time.Duration
}

// OptionsFromConfig converts the capture section of the configuration.
func OptionsFromConfig(cfg config.CaptureConfig) (Options, error) {
	t, err := ParseType(cfg.Type)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Type:        t,
		Device:      cfg.Device,
		File:        cfg.File,
		SnapLen:     cfg.SnapLen,
		BufferSize:  cfg.BufferSizeMB * 1024 * 1024,
		Promiscuous: cfg.Promiscuous,
		Timeout:     time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}, nil
}

func (o *Options) applyDefaults() {
	if o.SnapLen <= 0 {
		o.SnapLen = config.MinSnapLen
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 10 * 1024 * 1024
	}
	if o.Timeout <= 0 {
		o.Timeout = 500 * time.Millisecond
	}
}

// Handler receives frames synchronously. frame.Data is only valid until the
// handler returns.
type Handler func(frame core.RawFrame)

// Stats reports source counters.
type Stats struct {
	Received  uint64 // Frames handed to the handler
	Dropped   uint64 // Dropped by the kernel or library
	IfDropped uint64 // Dropped by the interface
}

// Source produces link-layer frames.
type Source interface {
	// Name identifies the source, e.g. "pcap:eth0".
	Name() string
	LinkType() core.LinkType
	// Run reads frames until ctx is done, the source is closed, or input ends.
	Run(ctx context.Context, handler Handler) error
	Stats() (Stats, error)
	// Close stops Run and releases the handle. Safe to call more than once.
	Close() error
}

// Open creates the source described by opts.
func Open(ctx context.Context, opts Options) (Source, error) {
	opts.applyDefaults()
	switch opts.Type {
	case "", TypePCAP:
		return openPCAP(ctx, opts)
	case TypeAFPacket:
		return openAFPacket(ctx, opts)
	case TypeFile:
		if opts.File == "" {
			return nil, fmt.Errorf("%w: capture file path is required", core.ErrConfigInvalid)
		}
		return OpenFile(opts.File)
	default:
		return nil, fmt.Errorf("unknown capture type %q", opts.Type)
	}
}

type readFunc func() ([]byte, gopacket.CaptureInfo, error)

// base holds the run/close state shared by every backend. The handle is
// released exactly once, by Run on exit or by Close when Run is not active.
type base struct {
	kind     Type
	device   string
	linkType core.LinkType

	// transient reports read errors that should be retried.
	transient func(error) bool
	release   func() error

	mu       sync.Mutex
	running  bool
	closed   bool
	quit     chan struct{}
	once     sync.Once
	relErr   error
	received atomic.Uint64

	// hmu guards handle access against release.
	hmu      sync.Mutex
	released bool
}

func newBase(kind Type, device string, lt core.LinkType, release func() error) *base {
	return &base{
		kind:      kind,
		device:    device,
		linkType:  lt,
		release:   release,
		transient: func(error) bool { return false },
		quit:      make(chan struct{}),
	}
}

func (b *base) Name() string {
	return string(b.kind) + ":" + b.device
}

func (b *base) LinkType() core.LinkType {
	return b.linkType
}

func (b *base) run(ctx context.Context, read readFunc, handler Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.ErrSourceClosed
	}
	if b.running {
		b.mu.Unlock()
		return errors.New("capture: source is already running")
	}
	b.running = true
	b.mu.Unlock()
	defer b.releaseOnce()

	frames := metrics.CaptureFramesTotal.WithLabelValues(string(b.kind), b.device)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.quit:
			return nil
		default:
		}

		data, ci, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			if b.transient(err) {
				continue
			}
			return err
		}

		b.received.Add(1)
		frames.Inc()
		handler(core.RawFrame{
			Data:       data,
			Timestamp:  ci.Timestamp,
			CaptureLen: ci.CaptureLength,
			OrigLen:    ci.Length,
			LinkType:   b.linkType,
		})
	}
}

func (b *base) releaseOnce() error {
	b.once.Do(func() {
		b.hmu.Lock()
		defer b.hmu.Unlock()
		b.released = true
		if b.release != nil {
			b.relErr = b.release()
		}
	})
	return b.relErr
}

func (b *base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.quit)
	if !b.running {
		return b.releaseOnce()
	}
	return nil
}

// withHandle runs fn unless the handle has been released.
func (b *base) withHandle(fn func() error) error {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	if b.released {
		return core.ErrSourceClosed
	}
	return fn()
}

func (b *base) publishDrops(s Stats) {
	metrics.CaptureKernelDrops.WithLabelValues(string(b.kind), b.device).Set(float64(s.Dropped + s.IfDropped))
}
