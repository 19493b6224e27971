package azure

import (
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"
	"github.com/costpulse/azure-cost-exporter/internal/billing"
	"github.com/costpulse/azure-cost-exporter/internal/config"
)

func groupedConfig() *config.Config {
	return &config.Config{
		APITimeout: 30,
		GroupBy: config.GroupByPolicy{
			Enabled: true,
			Groups: []config.GroupSpec{
				{Type: "Dimension", Name: "ServiceName", LabelName: "ServiceName"},
			},
		},
	}
}

func ungroupedConfig() *config.Config {
	return &config.Config{APITimeout: 30}
}

func column(name string) *armcostmanagement.QueryColumn {
	return &armcostmanagement.QueryColumn{Name: &name}
}

func queryResult(columns []*armcostmanagement.QueryColumn, rows [][]any) armcostmanagement.QueryResult {
	return armcostmanagement.QueryResult{
		Properties: &armcostmanagement.QueryProperties{
			Columns: columns,
			Rows:    rows,
		},
	}
}

func TestNormalize_ReordersIntoCanonicalLayout(t *testing.T) {
	c := &Client{cfg: groupedConfig()}

	// Response column order differs from the canonical row layout
	result := queryResult(
		[]*armcostmanagement.QueryColumn{
			column("Cost"), column("CostUSD"), column("UsageDate"), column("ServiceName"), column("Currency"),
		},
		[][]any{
			{10.5, 11.0, float64(20240115), "Virtual Machines", "EUR"},
		},
	)

	rows, err := c.normalize(result)
	if err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: got %d, want 1", len(rows))
	}

	want := billing.Row{10.5, 11.0, float64(20240115), "EUR", "Virtual Machines"}
	got := rows[0]
	if len(got) != len(want) {
		t.Fatalf("row length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row[%d]: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNormalize_UngroupedSkipsExtraColumns(t *testing.T) {
	c := &Client{cfg: ungroupedConfig()}

	result := queryResult(
		[]*armcostmanagement.QueryColumn{
			column("Cost"), column("CostUSD"), column("UsageDate"), column("ServiceName"), column("Currency"),
		},
		[][]any{
			{1.0, 1.1, float64(20240115), "Storage", "USD"},
		},
	)

	rows, err := c.normalize(result)
	if err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if len(rows[0]) != 4 {
		t.Errorf("row length: got %d, want 4 (no group values without a policy)", len(rows[0]))
	}
	if rows[0][3] != "USD" {
		t.Errorf("currency: got %v, want USD", rows[0][3])
	}
}

func TestNormalize_MissingRequiredColumn(t *testing.T) {
	c := &Client{cfg: ungroupedConfig()}

	result := queryResult(
		[]*armcostmanagement.QueryColumn{
			column("Cost"), column("UsageDate"), column("Currency"),
		},
		[][]any{},
	)

	_, err := c.normalize(result)
	if !errors.Is(err, billing.ErrContract) {
		t.Errorf("normalize() error = %v, want billing.ErrContract for missing CostUSD", err)
	}
}

func TestNormalize_MissingGroupColumn(t *testing.T) {
	c := &Client{cfg: groupedConfig()}

	result := queryResult(
		[]*armcostmanagement.QueryColumn{
			column("Cost"), column("CostUSD"), column("UsageDate"), column("Currency"),
		},
		[][]any{},
	)

	_, err := c.normalize(result)
	if !errors.Is(err, billing.ErrContract) {
		t.Errorf("normalize() error = %v, want billing.ErrContract for missing ServiceName", err)
	}
}

func TestNormalize_ShortRow(t *testing.T) {
	c := &Client{cfg: ungroupedConfig()}

	result := queryResult(
		[]*armcostmanagement.QueryColumn{
			column("Cost"), column("CostUSD"), column("UsageDate"), column("Currency"),
		},
		[][]any{
			{1.0, 1.1},
		},
	)

	_, err := c.normalize(result)
	if !errors.Is(err, billing.ErrContract) {
		t.Errorf("normalize() error = %v, want billing.ErrContract for a short row", err)
	}
}

func TestNormalize_EmptyResponse(t *testing.T) {
	c := &Client{cfg: ungroupedConfig()}

	tests := []struct {
		name   string
		result armcostmanagement.QueryResult
	}{
		{"nil properties", armcostmanagement.QueryResult{}},
		{"nil rows", armcostmanagement.QueryResult{Properties: &armcostmanagement.QueryProperties{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := c.normalize(tt.result)
			if err != nil {
				t.Errorf("normalize() error = %v, want nil", err)
			}
			if rows != nil {
				t.Errorf("rows: got %v, want nil", rows)
			}
		})
	}
}

func TestQueryDefinition_DailyActualCost(t *testing.T) {
	c := &Client{cfg: groupedConfig()}

	window := billing.Window{
		Start: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
	}
	def := c.queryDefinition(window)

	if *def.Type != armcostmanagement.ExportTypeActualCost {
		t.Errorf("query type: got %v, want ActualCost", *def.Type)
	}
	if *def.Timeframe != armcostmanagement.TimeframeTypeCustom {
		t.Errorf("timeframe: got %v, want Custom", *def.Timeframe)
	}
	if !def.TimePeriod.From.Equal(window.Start) || !def.TimePeriod.To.Equal(window.End) {
		t.Errorf("time period: got %v to %v, want %v to %v",
			def.TimePeriod.From, def.TimePeriod.To, window.Start, window.End)
	}
	if *def.Dataset.Granularity != armcostmanagement.GranularityTypeDaily {
		t.Errorf("granularity: got %v, want Daily", *def.Dataset.Granularity)
	}

	agg := def.Dataset.Aggregation
	if got := *agg["totalCost"].Name; got != "Cost" {
		t.Errorf("totalCost aggregation name: got %q, want Cost", got)
	}
	if got := *agg["totalCostUSD"].Name; got != "CostUSD" {
		t.Errorf("totalCostUSD aggregation name: got %q, want CostUSD", got)
	}

	if len(def.Dataset.Grouping) != 1 {
		t.Fatalf("grouping: got %d entries, want 1", len(def.Dataset.Grouping))
	}
	g := def.Dataset.Grouping[0]
	if *g.Name != "ServiceName" {
		t.Errorf("grouping name: got %q, want ServiceName", *g.Name)
	}
	if *g.Type != armcostmanagement.QueryColumnTypeDimension {
		t.Errorf("grouping type: got %v, want Dimension", *g.Type)
	}
}

func TestQueryDefinition_NoGroupingWhenDisabled(t *testing.T) {
	c := &Client{cfg: ungroupedConfig()}

	window := billing.WindowEndingAt(time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC))
	def := c.queryDefinition(window)

	if len(def.Dataset.Grouping) != 0 {
		t.Errorf("grouping: got %d entries, want 0", len(def.Dataset.Grouping))
	}
}
