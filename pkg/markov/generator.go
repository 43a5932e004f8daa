package markov

import (
	"errors"
	"io"
	"log/slog"
)

// ErrInvalidOrder is returned by BuildModel when the order is less than 1.
var ErrInvalidOrder = errors.New("markov: order must be at least 1")

// TextGenerator is the main entry point for training and sampling a
// character-level Markov chain. It owns a single Chain which is never shared
// with another generator.
//
// Like Chain, a TextGenerator is not safe for concurrent use. Callers that
// generate from several goroutines must finish every BuildModel call first,
// or serialize access themselves.
type TextGenerator struct {
	chain  *Chain
	logger *slog.Logger
}

// generatorOptions is used by NewTextGenerator to configure defaults.
type generatorOptions struct {
	rnd    RandSource
	logger *slog.Logger
}

// Option configures a TextGenerator.
type Option func(*generatorOptions)

// WithRandSource sets the random source used to pick successors.
// Default: the process-seeded math/rand/v2 source.
func WithRandSource(src RandSource) Option {
	return func(o *generatorOptions) { o.rnd = src }
}

// WithLogger sets the logger. Default: all logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *generatorOptions) { o.logger = logger }
}

// NewTextGenerator creates a TextGenerator with an empty chain.
func NewTextGenerator(opts ...Option) *TextGenerator {
	options := &generatorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	g := &TextGenerator{
		chain:  NewChain(options.rnd),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	g.SetLogger(options.logger)
	return g
}

// Chain returns the chain owned by the generator. It is exposed for
// persistence and diagnostics; callers may add transitions to it directly.
func (g *TextGenerator) Chain() *Chain {
	return g.chain
}

// SetLogger sets the logger for the TextGenerator. By default, all logs are
// discarded. A nil logger is ignored.
func (g *TextGenerator) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}
