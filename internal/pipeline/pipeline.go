// Package pipeline turns captured frames into records and publishes them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firestige.xyz/netscope/internal/capture"
	"firestige.xyz/netscope/internal/classifier"
	"firestige.xyz/netscope/internal/core"
	"firestige.xyz/netscope/internal/core/decoder"
	"firestige.xyz/netscope/internal/log"
	"firestige.xyz/netscope/internal/metrics"
	"firestige.xyz/netscope/pkg/payload"
)

// Publisher receives every assembled record. Publish must not block.
type Publisher interface {
	Publish(record core.PacketRecord) int
}

// Pipeline represents a single-threaded frame processing chain.
type Pipeline struct {
	source    capture.Source
	decoder   decoder.Decoder
	publisher Publisher
	metrics   *Metrics
	drops     *dropLimiter
	logger    log.Logger
}

// Config contains pipeline configuration.
type Config struct {
	Source    capture.Source
	Decoder   decoder.Decoder // Defaults to the standard Ethernet/IPv4 chain
	Publisher Publisher
	// DropLogInterval throttles per-reason drop logging (default 10s).
	DropLogInterval time.Duration
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.NewStandardDecoder()
	}
	if cfg.DropLogInterval <= 0 {
		cfg.DropLogInterval = 10 * time.Second
	}

	logger := log.GetLogger()
	if cfg.Source != nil {
		logger = logger.WithField("source", cfg.Source.Name())
	}

	return &Pipeline{
		source:    cfg.Source,
		decoder:   cfg.Decoder,
		publisher: cfg.Publisher,
		metrics:   NewMetrics(),
		drops:     newDropLimiter(cfg.DropLogInterval),
		logger:    logger,
	}
}

// Run drives the source until ctx is cancelled or the source ends. Frames are
// handled one at a time on the source's goroutine.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.source == nil {
		return errors.New("pipeline: no frame source")
	}

	p.logger.Info("pipeline starting")
	err := p.source.Run(ctx, p.HandleFrame)
	p.logger.WithFields(map[string]interface{}{
		"received":  p.metrics.Received.Load(),
		"published": p.metrics.Published.Load(),
		"dropped":   p.metrics.Dropped(),
	}).Info("pipeline stopped")

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	return nil
}

// HandleFrame processes one frame and publishes the record. Frames that do
// not decode are dropped and counted by reason.
func (p *Pipeline) HandleFrame(frame core.RawFrame) {
	start := time.Now()
	p.metrics.Received.Add(1)

	record, err := p.Process(frame)
	if err != nil {
		p.drop(err)
		return
	}

	if p.publisher != nil {
		p.publisher.Publish(record)
	}
	p.metrics.Published.Add(1)
	metrics.RecordsTotal.WithLabelValues(string(record.Application.Protocol)).Inc()
	metrics.PipelineLatencySeconds.Observe(time.Since(start).Seconds())
}

// Process decodes and assembles one frame without publishing it.
func (p *Pipeline) Process(frame core.RawFrame) (core.PacketRecord, error) {
	decoded, err := p.decoder.Decode(frame)
	if err != nil {
		return core.PacketRecord{}, err
	}
	p.metrics.Decoded.Add(1)
	return Assemble(frame, decoded), nil
}

func (p *Pipeline) drop(err error) {
	reason := dropReason(err)
	switch reason {
	case metrics.ReasonMalformed:
		p.metrics.Malformed.Add(1)
	case metrics.ReasonLinkType:
		p.metrics.LinkType.Add(1)
	case metrics.ReasonEtherType:
		p.metrics.EtherType.Add(1)
	default:
		p.metrics.Other.Add(1)
	}
	metrics.FramesDroppedTotal.WithLabelValues(reason).Inc()

	if p.logger.IsDebugEnabled() {
		if suppressed, ok := p.drops.Allow(reason, time.Now()); ok {
			p.logger.WithError(err).
				WithField("reason", reason).
				WithField("suppressed", suppressed).
				Debug("frame dropped")
		}
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, core.ErrMalformedHeader):
		return metrics.ReasonMalformed
	case errors.Is(err, core.ErrUnsupportedLinkType):
		return metrics.ReasonLinkType
	case errors.Is(err, core.ErrUnsupportedEtherType):
		return metrics.ReasonEtherType
	default:
		return metrics.ReasonOther
	}
}

// Assemble builds the immutable record for a decoded frame. The payload text
// and hex dump are fresh strings; nothing references frame.Data afterwards.
func Assemble(frame core.RawFrame, decoded decoder.Decoded) core.PacketRecord {
	data := frame.Data
	if frame.CaptureLen > 0 && frame.CaptureLen < len(data) {
		data = data[:frame.CaptureLen]
	}
	captured := len(data)

	offset := decoded.PayloadOffset
	if offset > captured {
		offset = captured
	}
	body := data[offset:]

	label := classifier.ClassifyTransport(decoded.Transport)

	length := frame.OrigLen
	if length < captured {
		length = captured
	}

	transport := decoded.Transport
	if transport == nil {
		transport = core.NoTransport{}
	}

	return core.PacketRecord{
		Frame: core.FrameMeta{
			Length:         length,
			CapturedLength: captured,
			Timestamp:      frame.Timestamp,
		},
		Ethernet:  decoded.Ethernet,
		IP:        decoded.IP,
		Transport: transport,
		Application: core.ApplicationInfo{
			Protocol:   label,
			Payload:    payload.Decode(label, body),
			RawPayload: payload.HexDump(data, offset, captured-offset),
		},
	}
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return p.metrics.Snapshot()
}
