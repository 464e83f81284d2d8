// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package memgov watches process memory against a threshold and asks the
// runtime to hand memory back when the threshold is crossed.
package memgov

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/cardinalhq/tripload/internal/memgov")

	pressureCounter metric.Int64Counter
	reclaimDuration metric.Float64Histogram
)

func init() {
	var err error

	pressureCounter, err = meter.Int64Counter(
		"tripload.memory.pressure",
		metric.WithDescription("Number of times resident memory was found above the threshold"),
	)
	if err != nil {
		panic(err)
	}

	reclaimDuration, err = meter.Float64Histogram(
		"tripload.memory.reclaim.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of forced memory reclamation in seconds"),
	)
	if err != nil {
		panic(err)
	}
}

// DefaultThresholdPercent is the share of the host or cgroup memory limit
// used when no absolute threshold is configured.
const DefaultThresholdPercent = 80.0

// Config selects the pressure threshold. ThresholdBytes wins over
// ThresholdPercent when both are set.
type Config struct {
	ThresholdBytes   uint64  `mapstructure:"threshold_bytes"`
	ThresholdPercent float64 `mapstructure:"threshold_percent"`
	Disabled         bool    `mapstructure:"disabled"`
}

// DefaultConfig returns the governor defaults.
func DefaultConfig() Config {
	return Config{ThresholdPercent: DefaultThresholdPercent}
}

// ResourcePressureWarning is logged when resident memory exceeds the
// threshold. It is advisory and never fails an import.
type ResourcePressureWarning struct {
	RSSBytes       uint64
	ThresholdBytes uint64
}

func (w *ResourcePressureWarning) Error() string {
	return fmt.Sprintf("resident memory %d bytes exceeds threshold %d bytes", w.RSSBytes, w.ThresholdBytes)
}

// Governor reports memory pressure and forces reclamation.
// A nil *Governor never reports pressure.
type Governor struct {
	threshold uint64
	rss       func() (uint64, error)
	reclaim   func()

	checks   atomic.Int64
	pressure atomic.Int64
	reclaims atomic.Int64
}

// Option customizes a Governor.
type Option func(*Governor)

// WithRSSSampler replaces the resident memory sampler.
func WithRSSSampler(sample func() (uint64, error)) Option {
	return func(g *Governor) { g.rss = sample }
}

// WithReclaimer replaces the reclamation hook.
func WithReclaimer(fn func()) Option {
	return func(g *Governor) { g.reclaim = fn }
}

// hostLimit reports the cgroup limit, falling back to system memory.
var hostLimit = memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)

// New builds a Governor from cfg. It returns nil, nil when the governor
// is disabled.
func New(cfg Config, opts ...Option) (*Governor, error) {
	if cfg.Disabled {
		return nil, nil
	}

	threshold := cfg.ThresholdBytes
	if threshold == 0 {
		pct := cfg.ThresholdPercent
		if pct <= 0 {
			pct = DefaultThresholdPercent
		}
		if pct > 100 {
			return nil, fmt.Errorf("memory threshold percent %.1f is above 100", pct)
		}
		limit, err := hostLimit()
		if err != nil {
			return nil, fmt.Errorf("failed to determine host memory limit: %w", err)
		}
		if limit == 0 {
			return nil, errors.New("host memory limit is unknown; set an absolute threshold")
		}
		threshold = uint64(float64(limit) * pct / 100)
	}

	g := &Governor{
		threshold: threshold,
		reclaim:   debug.FreeOSMemory,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rss == nil {
		sample, err := selfRSSSampler()
		if err != nil {
			return nil, err
		}
		g.rss = sample
	}
	return g, nil
}

func selfRSSSampler() (func() (uint64, error), error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect own process: %w", err)
	}
	return func() (uint64, error) {
		mi, err := p.MemoryInfo()
		if err != nil {
			return 0, err
		}
		return mi.RSS, nil
	}, nil
}

// Threshold returns the resident memory threshold in bytes.
func (g *Governor) Threshold() uint64 {
	if g == nil {
		return 0
	}
	return g.threshold
}

// Check samples resident memory. It returns a *ResourcePressureWarning
// when the threshold is exceeded and nil otherwise. A failed sample is
// treated as no pressure.
func (g *Governor) Check(ctx context.Context) *ResourcePressureWarning {
	if g == nil {
		return nil
	}
	g.checks.Add(1)
	rss, err := g.rss()
	if err != nil {
		slog.Debug("Failed to sample resident memory", slog.Any("error", err))
		return nil
	}
	if rss <= g.threshold {
		return nil
	}
	g.pressure.Add(1)
	pressureCounter.Add(ctx, 1)
	return &ResourcePressureWarning{RSSBytes: rss, ThresholdBytes: g.threshold}
}

// IsUnderPressure reports whether resident memory is above the threshold.
func (g *Governor) IsUnderPressure() bool {
	return g.Check(context.Background()) != nil
}

// ForceReclaim runs a full collection and returns freed memory to the OS.
func (g *Governor) ForceReclaim() {
	if g == nil {
		return
	}
	g.reclaims.Add(1)
	start := time.Now()
	g.reclaim()
	reclaimDuration.Record(context.Background(), time.Since(start).Seconds())
}

// Stats counts governor activity.
type Stats struct {
	Checks   int64
	Pressure int64
	Reclaims int64
}

func (g *Governor) Stats() Stats {
	if g == nil {
		return Stats{}
	}
	return Stats{
		Checks:   g.checks.Load(),
		Pressure: g.pressure.Load(),
		Reclaims: g.reclaims.Load(),
	}
}
