package costmap

import (
	"fmt"

	"github.com/costpulse/azure-cost-exporter/internal/billing"
	"github.com/costpulse/azure-cost-exporter/internal/config"
	"github.com/costpulse/azure-cost-exporter/internal/metrics"
)

// Sink receives one gauge observation per call. metrics.Registry
// satisfies it; tests use in-memory fakes.
type Sink interface {
	Set(labels map[string]string, value float64) error
}

// Mapper converts the cost rows of one account's polling cycle into
// labeled observations for the native-currency and USD registries,
// applying the date filter, grouping and minor-cost merge rules.
type Mapper struct {
	groupBy config.GroupByPolicy
}

// New creates a Mapper for the given group-by policy
func New(groupBy config.GroupByPolicy) *Mapper {
	return &Mapper{groupBy: groupBy}
}

// minorCost accumulates below-threshold grouped costs for one account
// and cycle, flushed as a single synthetic observation.
type minorCost struct {
	cost    float64
	costUSD float64
}

// Map processes all rows returned for one account. Rows whose usage
// date differs from the window start are discarded: Azure may return
// adjacent-day rows at window boundaries due to timezone rounding, and
// dropping them is defined behavior, not an error. Malformed rows are
// a contract violation and abort the mapping.
func (m *Mapper) Map(target config.Target, rows []billing.Row, window billing.Window, native, usd Sink) error {
	wantDate := window.StartStamp()
	minLen := 4
	if m.groupBy.Enabled {
		minLen += len(m.groupBy.Groups)
	}

	var minor minorCost

	for i, row := range rows {
		if len(row) < minLen {
			return fmt.Errorf("%w: row %d has %d fields, policy requires %d", billing.ErrContract, i, len(row), minLen)
		}

		cost, err := asFloat(row[0])
		if err != nil {
			return fmt.Errorf("%w: row %d cost: %v", billing.ErrContract, i, err)
		}
		costUSD, err := asFloat(row[1])
		if err != nil {
			return fmt.Errorf("%w: row %d costUsd: %v", billing.ErrContract, i, err)
		}
		date, err := asInt(row[2])
		if err != nil {
			return fmt.Errorf("%w: row %d date: %v", billing.ErrContract, i, err)
		}
		currency, err := asString(row[3])
		if err != nil {
			return fmt.Errorf("%w: row %d currency: %v", billing.ErrContract, i, err)
		}

		if date != wantDate {
			continue
		}

		labels := baseLabels(target, currency)

		if !m.groupBy.Enabled {
			if err := setBoth(native, usd, labels, cost, costUSD); err != nil {
				return err
			}
			continue
		}

		for j, g := range m.groupBy.Groups {
			value, err := asString(row[4+j])
			if err != nil {
				return fmt.Errorf("%w: row %d group %s: %v", billing.ErrContract, i, g.Name, err)
			}
			labels[g.LabelName] = value
		}

		if m.groupBy.MergeMinorCost.Enabled && cost < m.groupBy.MergeMinorCost.Threshold {
			minor.cost += cost
			minor.costUSD += costUSD
			continue
		}

		if err := setBoth(native, usd, labels, cost, costUSD); err != nil {
			return err
		}
	}

	if m.groupBy.Enabled && minor.cost > 0 {
		// The merged bucket can span multiple currencies, so it carries
		// no Currency value.
		labels := baseLabels(target, "")
		for _, g := range m.groupBy.Groups {
			labels[g.LabelName] = m.groupBy.MergeMinorCost.TagValue
		}
		if err := setBoth(native, usd, labels, minor.cost, minor.costUSD); err != nil {
			return err
		}
	}

	return nil
}

// baseLabels builds the account's label set: descriptive target labels
// plus ChargeType and Currency.
func baseLabels(target config.Target, currency string) map[string]string {
	labels := make(map[string]string, len(target)+2)
	for k, v := range target {
		labels[k] = v
	}
	labels[config.LabelChargeType] = metrics.ChargeTypeActualCost
	labels[config.LabelCurrency] = currency
	return labels
}

func setBoth(native, usd Sink, labels map[string]string, cost, costUSD float64) error {
	if err := native.Set(labels, cost); err != nil {
		return err
	}
	return usd.Set(labels, costUSD)
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T (%v)", v, v)
	}
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		// JSON decoding delivers integers as float64
		if n != float64(int(n)) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T (%v)", v, v)
	}
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T (%v)", v, v)
	}
	return s, nil
}
