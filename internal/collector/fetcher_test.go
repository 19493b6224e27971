package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/costpulse/azure-cost-exporter/internal/billing"
	"github.com/costpulse/azure-cost-exporter/internal/clock"
	"github.com/costpulse/azure-cost-exporter/internal/config"
	"github.com/costpulse/azure-cost-exporter/internal/logger"
	"github.com/costpulse/azure-cost-exporter/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// testLogger creates a logger for testing (error level to suppress test output)
func testLogger() *logger.Logger {
	return logger.New("error")
}

// fakeBillingClient serves canned rows or errors per subscription
type fakeBillingClient struct {
	mu      sync.Mutex
	rows    map[string][]billing.Row
	errs    map[string]error
	queried []string
	windows []billing.Window
}

func (f *fakeBillingClient) Query(ctx context.Context, target config.Target, window billing.Window) ([]billing.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub := target.SubscriptionID()
	f.queried = append(f.queried, sub)
	f.windows = append(f.windows, window)

	if err := f.errs[sub]; err != nil {
		return nil, err
	}
	return f.rows[sub], nil
}

func (f *fakeBillingClient) queriedSubs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queried...)
}

func testConfig() *config.Config {
	return &config.Config{
		PollingInterval: 3600,
		MetricName:      "azure_daily_cost",
		MetricNameUSD:   "azure_daily_cost_usd",
		Targets: []config.Target{
			{config.KeyTenantID: "tenant-1", config.KeySubscription: "sub-1"},
			{config.KeyTenantID: "tenant-1", config.KeySubscription: "sub-2"},
		},
	}
}

// newTestFetcher builds a fetcher with fresh registries and a fixed
// clock placing the query window at 2024-01-15.
func newTestFetcher(t *testing.T, client billing.Client, cfg *config.Config) (*Fetcher, *metrics.Registry, *metrics.Registry) {
	t.Helper()

	schema := metrics.NewSchema(cfg.Targets[0], cfg.GroupBy)
	native := metrics.NewRegistry(cfg.MetricName, "native", schema)
	usd := metrics.NewRegistry(cfg.MetricNameUSD, "usd", schema)

	f := NewFetcher(client, cfg, native, usd, prometheus.NewRegistry(), testLogger())
	f.clock = clock.FixedClock{Time: time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC)}
	return f, native, usd
}

func TestRunCycle_PublishesBothRegistries(t *testing.T) {
	client := &fakeBillingClient{
		rows: map[string][]billing.Row{
			"sub-1": {{10.5, 11.0, 20240115, "EUR"}},
			"sub-2": {{2.0, 2.2, 20240115, "USD"}},
		},
	}
	f, native, usd := newTestFetcher(t, client, testConfig())

	if err := f.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle() error = %v, want nil", err)
	}

	if native.Size() != 2 {
		t.Errorf("native series: got %d, want 2", native.Size())
	}
	if usd.Size() != 2 {
		t.Errorf("usd series: got %d, want 2", usd.Size())
	}
	if !f.IsReady() {
		t.Error("fetcher should be ready after a completed cycle")
	}
	if f.LastError() != nil {
		t.Errorf("LastError() = %v, want nil", f.LastError())
	}
	if f.LastCycleTime().IsZero() {
		t.Error("LastCycleTime() should be set after a cycle")
	}
}

func TestRunCycle_AccountsProcessedSequentially(t *testing.T) {
	client := &fakeBillingClient{}
	f, _, _ := newTestFetcher(t, client, testConfig())

	if err := f.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle() error = %v, want nil", err)
	}

	queried := client.queriedSubs()
	if len(queried) != 2 || queried[0] != "sub-1" || queried[1] != "sub-2" {
		t.Errorf("queried = %v, want [sub-1 sub-2] in configuration order", queried)
	}
}

func TestRunCycle_QueryWindowIsPreviousDay(t *testing.T) {
	client := &fakeBillingClient{}
	f, _, _ := newTestFetcher(t, client, testConfig())

	if err := f.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle() error = %v, want nil", err)
	}

	window := client.windows[0]
	if want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC); !window.Start.Equal(want) {
		t.Errorf("window start: got %v, want %v", window.Start, want)
	}
	if want := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC); !window.End.Equal(want) {
		t.Errorf("window end: got %v, want %v", window.End, want)
	}
	if window.StartStamp() != 20240115 {
		t.Errorf("start stamp: got %d, want 20240115", window.StartStamp())
	}
}

func TestRunCycle_FailedAccountDoesNotBlockOthers(t *testing.T) {
	client := &fakeBillingClient{
		rows: map[string][]billing.Row{
			"sub-2": {{2.0, 2.2, 20240115, "USD"}},
		},
		errs: map[string]error{
			"sub-1": errors.New("429 too many requests"),
		},
	}
	f, native, _ := newTestFetcher(t, client, testConfig())

	if err := f.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle() error = %v, want nil (transient failures are contained)", err)
	}

	if queried := client.queriedSubs(); len(queried) != 2 {
		t.Errorf("queried = %v, want both subscriptions attempted", queried)
	}
	if native.Size() != 1 {
		t.Errorf("native series: got %d, want 1 (sub-2 only)", native.Size())
	}
	if f.LastError() == nil {
		t.Error("LastError() = nil, want the sub-1 failure recorded")
	}
	if !f.IsReady() {
		t.Error("fetcher should still be ready after a partial cycle")
	}

	failures := testutil.ToFloat64(f.queryFailures.WithLabelValues("tenant-1", "sub-1"))
	if failures != 1 {
		t.Errorf("query failure counter: got %v, want 1", failures)
	}
}

func TestRunCycle_ClearsStaleSeries(t *testing.T) {
	client := &fakeBillingClient{
		rows: map[string][]billing.Row{
			"sub-1": {{10.0, 10.0, 20240115, "EUR"}},
			"sub-2": {{2.0, 2.0, 20240115, "USD"}},
		},
	}
	f, native, _ := newTestFetcher(t, client, testConfig())

	if err := f.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle() error = %v, want nil", err)
	}
	if native.Size() != 2 {
		t.Fatalf("native series after first cycle: got %d, want 2", native.Size())
	}

	// sub-2 has no activity in the next window
	client.mu.Lock()
	delete(client.rows, "sub-2")
	client.mu.Unlock()

	if err := f.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle() error = %v, want nil", err)
	}
	if native.Size() != 1 {
		t.Errorf("native series after second cycle: got %d, want 1 (stale series must drop)", native.Size())
	}
}

func TestRunCycle_ContractViolationFromMapperIsFatal(t *testing.T) {
	client := &fakeBillingClient{
		rows: map[string][]billing.Row{
			"sub-1": {{"not-a-number", 1.0, 20240115, "EUR"}},
		},
	}
	f, _, _ := newTestFetcher(t, client, testConfig())

	err := f.runCycle(context.Background())
	if !errors.Is(err, billing.ErrContract) {
		t.Errorf("runCycle() error = %v, want billing.ErrContract", err)
	}
}

func TestRunCycle_ContractViolationFromClientIsFatal(t *testing.T) {
	client := &fakeBillingClient{
		errs: map[string]error{
			"sub-1": fmt.Errorf("%w: response is missing column CostUSD", billing.ErrContract),
		},
	}
	f, _, _ := newTestFetcher(t, client, testConfig())

	err := f.runCycle(context.Background())
	if !errors.Is(err, billing.ErrContract) {
		t.Errorf("runCycle() error = %v, want billing.ErrContract", err)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	client := &fakeBillingClient{}
	cfg := testConfig()
	f, _, _ := newTestFetcher(t, client, cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- f.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after context cancellation")
	}

	if !f.IsReady() {
		t.Error("first cycle should have completed before cancellation")
	}
}

func TestRun_SecondStartIsRejected(t *testing.T) {
	client := &fakeBillingClient{}
	f, _, _ := newTestFetcher(t, client, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = f.Run(ctx)
	}()
	time.Sleep(50 * time.Millisecond)

	// Second Run must return immediately without starting another loop
	done := make(chan error, 1)
	go func() {
		done <- f.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("second Run() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second Run() should return immediately")
	}
}
