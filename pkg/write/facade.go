// Package write implements the write façade (spec §4.6): EnsureExists,
// GetOrCreate, Insert, Update, Upsert operations that combine the
// chunker, throttler, sanitizer, classifier, and cleaner into one
// retrying call against the cloud.
package write

import (
	"github.com/cuemby/cdf-extractor-utils/pkg/cdf"
	"github.com/cuemby/cdf-extractor-utils/pkg/clean"
	"github.com/rs/zerolog"
)

// RetryMode controls how a façade operation reacts to a classified error
// (spec §4.5's "Retry modes").
type RetryMode int

const (
	// RetryNone propagates the first classified error without attempting
	// to clean or retry.
	RetryNone RetryMode = iota
	// RetryOnError cleans offenders out of the batch and retries until
	// the batch is clean or empty, bounded by clean.Bound.
	RetryOnError
	// RetryOnFatal only backs off and retries TransientFatal classes;
	// any other classified error is surfaced immediately.
	RetryOnFatal
)

// Config bounds a Facade's chunk size, parallelism, and retry budget.
type Config struct {
	MaxItemsPerChunk        int
	MaxSeriesPerInsertChunk int // spec §6's N_dp_series
	MaxPointsPerInsertChunk int // spec §6's N_dp_points
	Parallelism             int
	ConfiguredMaxRetries    int
}

// DefaultConfig mirrors typical cloud per-endpoint limits for asset/time
// series/event create calls (spec §6 doesn't fix a number, so this uses
// the commonly documented 1000-item create batch size) and the insert
// endpoint's per-request series/points caps.
func DefaultConfig() Config {
	return Config{
		MaxItemsPerChunk:        1000,
		MaxSeriesPerInsertChunk: 10000,
		MaxPointsPerInsertChunk: 100000,
		Parallelism:             4,
		ConfiguredMaxRetries:    clean.DefaultMaxRetries,
	}
}

// Facade is the write façade bound to one set of cloud resources.
type Facade struct {
	Resources cdf.Resources
	Config    Config
	Log       zerolog.Logger
}

// New builds a Facade. log should already carry whatever request-scoped
// fields the caller wants on every façade log line; New adds a
// "component":"write" field on top.
func New(resources cdf.Resources, cfg Config, log zerolog.Logger) *Facade {
	return &Facade{
		Resources: resources,
		Config:    cfg,
		Log:       log.With().Str("component", "write").Logger(),
	}
}
