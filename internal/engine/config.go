package engine

import "fenrir/internal/common"

// DefaultDepthCap bounds the number of price levels materialized by a book
// snapshot and published with every BOOK_UPDATE, absent an explicit depth
// request.
const DefaultDepthCap = 50

// Config is the ambient, explicitly-constructed configuration for a
// MatchingEngine. Full configuration loading (files, env, flags) is a
// spec.md Non-goal at the feature level; this struct carries only the
// minimal ambient shape, built with functional options the way the
// teacher's cmd/main.go wires explicit values into engine.New/net.New.
type Config struct {
	Symbols  []common.Symbol
	DepthCap int
}

// Option configures a Config.
type Option func(*Config)

// WithDepthCap overrides the default snapshot depth cap.
func WithDepthCap(depth int) Option {
	return func(c *Config) { c.DepthCap = depth }
}

// NewConfig builds a Config for the given supported symbols.
func NewConfig(symbols []common.Symbol, opts ...Option) Config {
	cfg := Config{Symbols: symbols, DepthCap: DefaultDepthCap}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
