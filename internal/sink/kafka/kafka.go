// Package kafka publishes records to a Kafka topic as JSON messages.
package kafka

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/netscope/internal/config"
	"firestige.xyz/netscope/internal/core"
	"firestige.xyz/netscope/internal/log"
	"firestige.xyz/netscope/internal/metrics"
)

const (
	Name = "kafka"

	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultMaxAttempts  = 3

	// writerBatchTimeout bounds how long a synchronous WriteMessages waits on
	// a partially filled partition batch. Batching by time is done by the
	// sink manager's flush ticker.
	writerBatchTimeout = 10 * time.Millisecond
)

// messageWriter is the subset of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink batches records and writes them synchronously.
type Sink struct {
	writer    messageWriter
	topic     string
	batchSize int
	pending   []kafka.Message

	reported atomic.Uint64
	errors   atomic.Uint64
}

// New creates a Kafka sink from configuration.
func New(cfg config.KafkaSinkConfig) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka sink requires brokers", core.ErrConfigInvalid)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: kafka sink requires a topic", core.ErrConfigInvalid)
	}
	codec, err := parseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	batchTimeout := cfg.BatchTimeoutDuration()
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    batchSize,
		BatchTimeout: writerBatchTimeout,
		MaxAttempts:  defaultMaxAttempts,
		Compression:  codec,
		RequiredAcks: kafka.RequireOne,
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"brokers":        cfg.Brokers,
		"topic":          cfg.Topic,
		"batch_size":     batchSize,
		"flush_interval": batchTimeout.String(),
		"compression":    cfg.Compression,
	}).Info("kafka sink configured")

	return newSink(w, cfg.Topic, batchSize), nil
}

func newSink(w messageWriter, topic string, batchSize int) *Sink {
	return &Sink{
		writer:    w,
		topic:     topic,
		batchSize: batchSize,
		pending:   make([]kafka.Message, 0, batchSize),
	}
}

func parseCompression(name string) (compress.Compression, error) {
	switch name {
	case "none", "":
		return 0, nil
	case "gzip":
		return compress.Gzip, nil
	case "snappy":
		return compress.Snappy, nil
	case "lz4":
		return compress.Lz4, nil
	case "zstd":
		return compress.Zstd, nil
	default:
		return 0, fmt.Errorf("%w: invalid compression type: %s", core.ErrConfigInvalid, name)
	}
}

func (s *Sink) Name() string { return Name }

// Reported returns how many records were delivered to Kafka.
func (s *Sink) Reported() uint64 { return s.reported.Load() }

// Errors returns how many records failed to serialize or deliver.
func (s *Sink) Errors() uint64 { return s.errors.Load() }

// Write queues record and sends the batch once it is full.
func (s *Sink) Write(ctx context.Context, record core.PacketRecord) error {
	msg, err := Message(record)
	if err != nil {
		s.errors.Add(1)
		return err
	}
	s.pending = append(s.pending, msg)
	if len(s.pending) >= s.batchSize {
		return s.Flush(ctx)
	}
	return nil
}

// Flush sends any queued messages. A failed batch is discarded.
func (s *Sink) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = make([]kafka.Message, 0, s.batchSize)

	metrics.SinkBatchSize.WithLabelValues(Name).Observe(float64(len(batch)))
	if err := s.writer.WriteMessages(ctx, batch...); err != nil {
		s.errors.Add(uint64(len(batch)))
		return fmt.Errorf("kafka write failed: %w", err)
	}
	s.reported.Add(uint64(len(batch)))
	return nil
}

func (s *Sink) Close() error {
	flushErr := s.Flush(context.Background())
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return flushErr
}

// Message converts a record to a Kafka message keyed by its address pair so
// one flow lands on one partition.
func Message(r core.PacketRecord) (kafka.Message, error) {
	value, err := r.MarshalJSON()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("serialize record failed: %w", err)
	}
	src, dst := core.Ports(r.Transport)
	return kafka.Message{
		Key:   []byte(fmt.Sprintf("%s:%d-%s:%d", r.IP.SrcIP, src, r.IP.DstIP, dst)),
		Value: value,
		Time:  r.Frame.Timestamp,
		Headers: []kafka.Header{
			{Key: "protocol", Value: []byte(r.Application.Protocol)},
		},
	}, nil
}
