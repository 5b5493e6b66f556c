// Package sequence allocates gap-free, human-readable reference numbers.
//
// A counter is keyed by (name, year). The first call for a key creates the
// row at zero and increments it in the same atomic step, so every caller gets
// a distinct value and the first value of a year is always 1.
package sequence

import (
	"context"
	"fmt"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/metrics"
)

// Reference number prefixes issued by the portal
const (
	PrefixSEC11 = "SEC11"
	PrefixSEC19 = "SEC19"
	PrefixAward = "AWARD"
	PrefixPoss  = "POSS"
	PrefixSIA   = "SIA"
	PrefixDraw  = "DRAW"
)

// Counter is the storage port behind a Generator. Increment must create a
// missing (name, year) row at zero and return the incremented value atomically.
type Counter interface {
	Increment(ctx context.Context, name string, year int) (int64, error)
}

// CounterFunc adapts a function to Counter
type CounterFunc func(ctx context.Context, name string, year int) (int64, error)

func (f CounterFunc) Increment(ctx context.Context, name string, year int) (int64, error) {
	return f(ctx, name, year)
}

// Generator hands out sequence values
type Generator struct {
	counter Counter
	metrics *metrics.Metrics
}

// NewGenerator creates a generator over counter. m may be nil.
func NewGenerator(counter Counter, m *metrics.Metrics) *Generator {
	return &Generator{counter: counter, metrics: m}
}

// Next returns the next value for (name, year). Storage failures are returned
// wrapped and never retried.
func (g *Generator) Next(ctx context.Context, name string, year int) (int64, error) {
	if err := Validate(name, year); err != nil {
		return 0, err
	}
	v, err := g.counter.Increment(ctx, name, year)
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence %s/%d: %w", name, year, err)
	}
	g.metrics.RecordSequence(name)
	return v, nil
}

// NextFormatted is Next followed by Format
func (g *Generator) NextFormatted(ctx context.Context, name string, year int) (string, error) {
	v, err := g.Next(ctx, name, year)
	if err != nil {
		return "", err
	}
	return Format(name, year, v), nil
}

// Validate checks a (name, year) key
func Validate(name string, year int) error {
	if name == "" {
		return apperr.New(apperr.CodeInvalidArgument, "sequence name is required")
	}
	if year < 1 {
		return apperr.Newf(apperr.CodeInvalidArgument, "invalid sequence year %d", year)
	}
	return nil
}

// Format renders a reference number such as SEC11-2024-007. Values wider than
// three digits are printed in full.
func Format(prefix string, year int, value int64) string {
	return fmt.Sprintf("%s-%d-%03d", prefix, year, value)
}
