package pipeline

import (
	"time"

	"firestige.xyz/netscope/internal/capture"
	"firestige.xyz/netscope/internal/core/decoder"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithSource sets the frame source.
func (b *Builder) WithSource(s capture.Source) *Builder {
	b.config.Source = s
	return b
}

// WithDecoder sets the header decoder chain.
func (b *Builder) WithDecoder(d decoder.Decoder) *Builder {
	b.config.Decoder = d
	return b
}

// WithPublisher sets where records are published.
func (b *Builder) WithPublisher(p Publisher) *Builder {
	b.config.Publisher = p
	return b
}

// WithDropLogInterval sets the per-reason drop log throttle.
func (b *Builder) WithDropLogInterval(d time.Duration) *Builder {
	b.config.DropLogInterval = d
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
