package azure

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"
	"github.com/costpulse/azure-cost-exporter/internal/billing"
	"github.com/costpulse/azure-cost-exporter/internal/config"
	"github.com/costpulse/azure-cost-exporter/internal/logger"
)

// Column names of the Cost Management query response
const (
	columnCost     = "Cost"
	columnCostUSD  = "CostUSD"
	columnDate     = "UsageDate"
	columnCurrency = "Currency"
)

// Client queries the Azure Cost Management API for the configured
// targets. One query client is built per distinct tenant at startup
// from that tenant's client-secret credential.
type Client struct {
	clients map[string]*armcostmanagement.QueryClient // keyed by tenant id
	cfg     *config.Config
	logger  *logger.Logger
}

// Verify that Client implements billing.Client
var _ billing.Client = (*Client)(nil)

// NewClient creates Cost Management query clients for every tenant
// referenced by the configured targets.
func NewClient(cfg *config.Config, log *logger.Logger) (*Client, error) {
	clients := make(map[string]*armcostmanagement.QueryClient)

	for _, target := range cfg.Targets {
		tenant := target.TenantID()
		if _, ok := clients[tenant]; ok {
			continue
		}

		secret := cfg.Secrets[tenant]
		cred, err := azidentity.NewClientSecretCredential(tenant, secret.ClientID, secret.ClientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create credential for tenant %s: %w", tenant, err)
		}

		client, err := armcostmanagement.NewQueryClient(cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cost management client for tenant %s: %w", tenant, err)
		}
		clients[tenant] = client
	}

	return &Client{
		clients: clients,
		cfg:     cfg,
		logger:  log,
	}, nil
}

// Query runs the daily ActualCost query for one target and returns the
// response rows in canonical billing.Row order.
func (c *Client) Query(ctx context.Context, target config.Target, window billing.Window) ([]billing.Row, error) {
	client, ok := c.clients[target.TenantID()]
	if !ok {
		return nil, fmt.Errorf("no query client for tenant %s", target.TenantID())
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.APITimeout)*time.Second)
	defer cancel()

	c.logger.Debug("Querying Azure Cost Management API",
		"tenant_id", target.TenantID(),
		"subscription", target.SubscriptionID(),
		"start_date", window.Start.Format("2006-01-02"),
		"end_date", window.End.Format("2006-01-02"))

	scope := fmt.Sprintf("/subscriptions/%s", target.SubscriptionID())
	resp, err := client.Usage(ctx, scope, c.queryDefinition(window), nil)
	if err != nil {
		return nil, fmt.Errorf("cost query failed for window %s to %s: %w",
			window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"), err)
	}

	return c.normalize(resp.QueryResult)
}

// queryDefinition builds the daily ActualCost query over the window,
// aggregating both billing-currency and USD cost, grouped per policy.
func (c *Client) queryDefinition(window billing.Window) armcostmanagement.QueryDefinition {
	var grouping []*armcostmanagement.QueryGrouping
	if c.cfg.GroupBy.Enabled {
		for _, g := range c.cfg.GroupBy.Groups {
			groupType := armcostmanagement.QueryColumnType(g.Type)
			name := g.Name
			grouping = append(grouping, &armcostmanagement.QueryGrouping{
				Type: &groupType,
				Name: &name,
			})
		}
	}

	queryType := armcostmanagement.ExportTypeActualCost
	timeframe := armcostmanagement.TimeframeTypeCustom
	granularity := armcostmanagement.GranularityTypeDaily
	start := window.Start
	end := window.End

	return armcostmanagement.QueryDefinition{
		Type:      &queryType,
		Timeframe: &timeframe,
		TimePeriod: &armcostmanagement.QueryTimePeriod{
			From: &start,
			To:   &end,
		},
		Dataset: &armcostmanagement.QueryDataset{
			Granularity: &granularity,
			Aggregation: map[string]*armcostmanagement.QueryAggregation{
				"totalCost": {
					Name:     stringPtr(columnCost),
					Function: functionPtr(armcostmanagement.FunctionTypeSum),
				},
				"totalCostUSD": {
					Name:     stringPtr(columnCostUSD),
					Function: functionPtr(armcostmanagement.FunctionTypeSum),
				},
			},
			Grouping: grouping,
		},
	}
}

// normalize reorders response rows into the canonical billing.Row
// layout using the response's column index map. A response missing a
// required column, or a row shorter than its column set, violates the
// query contract.
func (c *Client) normalize(result armcostmanagement.QueryResult) ([]billing.Row, error) {
	if result.Properties == nil || result.Properties.Rows == nil {
		return nil, nil
	}

	columnMap := buildColumnMap(result.Properties.Columns)

	indices := make([]int, 0, 4+len(c.cfg.GroupBy.Groups))
	for _, name := range []string{columnCost, columnCostUSD, columnDate, columnCurrency} {
		idx, ok := columnMap[name]
		if !ok {
			return nil, fmt.Errorf("%w: response is missing column %s", billing.ErrContract, name)
		}
		indices = append(indices, idx)
	}
	if c.cfg.GroupBy.Enabled {
		for _, g := range c.cfg.GroupBy.Groups {
			idx, ok := columnMap[g.Name]
			if !ok {
				return nil, fmt.Errorf("%w: response is missing group column %s", billing.ErrContract, g.Name)
			}
			indices = append(indices, idx)
		}
	}

	rows := make([]billing.Row, 0, len(result.Properties.Rows))
	for i, raw := range result.Properties.Rows {
		row := make(billing.Row, 0, len(indices))
		for _, idx := range indices {
			if idx >= len(raw) {
				return nil, fmt.Errorf("%w: row %d has %d fields, response declares %d columns",
					billing.ErrContract, i, len(raw), len(result.Properties.Columns))
			}
			row = append(row, raw[idx])
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// buildColumnMap creates a map of column names to their indices
func buildColumnMap(columns []*armcostmanagement.QueryColumn) map[string]int {
	columnMap := make(map[string]int)
	for i, col := range columns {
		if col.Name != nil {
			columnMap[*col.Name] = i
		}
	}
	return columnMap
}

// Helper functions
func stringPtr(s string) *string {
	return &s
}

func functionPtr(f armcostmanagement.FunctionType) *armcostmanagement.FunctionType {
	return &f
}
