package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/costpulse/azure-cost-exporter/internal/billing"
	"github.com/costpulse/azure-cost-exporter/internal/clock"
	"github.com/costpulse/azure-cost-exporter/internal/config"
	"github.com/costpulse/azure-cost-exporter/internal/costmap"
	"github.com/costpulse/azure-cost-exporter/internal/logger"
	"github.com/costpulse/azure-cost-exporter/internal/metrics"
	"github.com/costpulse/azure-cost-exporter/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetcher runs the polling cycle: clear both registries, query every
// target strictly sequentially, map the rows into observations, publish
// the rebuilt snapshots, sleep. Sequential processing bounds the load
// on the Cost Management API and keeps registry writes single-writer.
type Fetcher struct {
	client billing.Client
	cfg    *config.Config
	mapper *costmap.Mapper
	native *metrics.Registry
	usd    *metrics.Registry
	logger *logger.Logger
	clock  clock.Clock // Time provider for testing

	// Operational metrics
	queryFailures *prometheus.CounterVec
	cycleDuration prometheus.Gauge
	lastCycleTime prometheus.Gauge
	buildInfo     *prometheus.GaugeVec

	// State
	mu        sync.RWMutex
	lastCycle time.Time
	lastErr   error
	isReady   bool
	started   atomic.Bool // Prevent multiple run loops
}

// NewFetcher creates a Fetcher writing to the two registries and
// registers its operational metrics with reg.
func NewFetcher(client billing.Client, cfg *config.Config, native, usd *metrics.Registry, reg prometheus.Registerer, log *logger.Logger) *Fetcher {
	buildInfo := promauto.With(reg).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "azure_cost_exporter_build_info",
			Help: "Build version information",
		},
		[]string{"version", "git_commit", "build_date", "go_version"},
	)
	versionInfo := version.Info()
	buildInfo.With(prometheus.Labels{
		"version":    versionInfo["version"],
		"git_commit": versionInfo["git_commit"],
		"build_date": versionInfo["build_date"],
		"go_version": versionInfo["go_version"],
	}).Set(1)

	return &Fetcher{
		client: client,
		cfg:    cfg,
		mapper: costmap.New(cfg.GroupBy),
		native: native,
		usd:    usd,
		logger: log,
		clock:  clock.RealClock{}, // Use real system time by default
		queryFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "azure_cost_exporter_query_failures_total",
				Help: "Total number of failed cost queries per account since startup",
			},
			[]string{"tenant_id", "subscription"},
		),
		cycleDuration: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "azure_cost_exporter_cycle_duration_seconds",
				Help: "Duration of the last polling cycle in seconds",
			},
		),
		lastCycleTime: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "azure_cost_exporter_last_cycle_timestamp_seconds",
				Help: "Unix timestamp of the last completed polling cycle",
			},
		),
		buildInfo: buildInfo,
	}
}

// Run executes polling cycles until ctx is cancelled. It returns nil
// on cancellation and a non-nil error only for contract violations,
// which indicate a configuration/API schema mismatch and must stop the
// process instead of corrupting metric values.
func (f *Fetcher) Run(ctx context.Context) error {
	if !f.started.CompareAndSwap(false, true) {
		f.logger.Warn("Fetch loop already running, skipping")
		return nil
	}
	defer f.started.Store(false)

	interval := time.Duration(f.cfg.PollingInterval) * time.Second

	for {
		if err := f.runCycle(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			f.logger.Info("Stopping fetch loop")
			return nil
		case <-time.After(interval):
		}
	}
}

// runCycle performs one clear -> query all accounts -> publish pass
func (f *Fetcher) runCycle(ctx context.Context) error {
	start := f.clock.Now()
	window := billing.WindowEndingAt(start)

	f.logger.Info("Starting polling cycle",
		"targets", len(f.cfg.Targets),
		"window_start", window.Start.Format("2006-01-02"),
		"window_end", window.End.Format("2006-01-02"))

	// Stale series must disappear: every cycle rebuilds both
	// registries from scratch.
	f.native.Clear()
	f.usd.Clear()

	var cycleErrs []error

	for _, target := range f.cfg.Targets {
		if ctx.Err() != nil {
			f.logger.Info("Polling cycle interrupted", "reason", ctx.Err())
			return nil
		}

		rows, err := f.client.Query(ctx, target, window)
		if err != nil {
			if errors.Is(err, billing.ErrContract) {
				return fmt.Errorf("tenant %s subscription %s: %w", target.TenantID(), target.SubscriptionID(), err)
			}
			// Transient failure: skip this account for this cycle, the
			// next scheduled cycle is the retry.
			f.queryFailures.WithLabelValues(target.TenantID(), target.SubscriptionID()).Inc()
			f.logger.Error("Cost query failed, skipping account for this cycle",
				"tenant_id", target.TenantID(),
				"subscription", target.SubscriptionID(),
				"error", err)
			cycleErrs = append(cycleErrs, fmt.Errorf("subscription %s: %w", target.SubscriptionID(), err))
			continue
		}

		if err := f.mapper.Map(target, rows, window, f.native, f.usd); err != nil {
			return fmt.Errorf("tenant %s subscription %s: %w", target.TenantID(), target.SubscriptionID(), err)
		}
	}

	f.native.Publish()
	f.usd.Publish()

	duration := time.Since(start)
	f.cycleDuration.Set(duration.Seconds())
	f.lastCycleTime.Set(float64(f.clock.Now().Unix()))

	f.mu.Lock()
	f.lastCycle = f.clock.Now()
	f.lastErr = errors.Join(cycleErrs...)
	f.isReady = true
	f.mu.Unlock()

	f.logger.Info("Polling cycle complete",
		"duration_seconds", duration.Seconds(),
		"series", f.native.Size(),
		"failed_accounts", len(cycleErrs))

	return nil
}

// IsReady returns true once at least one polling cycle has completed
func (f *Fetcher) IsReady() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isReady
}

// LastError returns the per-account failures of the last cycle, nil if
// every account succeeded
func (f *Fetcher) LastError() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

// LastCycleTime returns the completion time of the last polling cycle
func (f *Fetcher) LastCycleTime() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastCycle
}

// SeriesCount returns the number of published native-currency series
func (f *Fetcher) SeriesCount() int {
	return f.native.Size()
}
