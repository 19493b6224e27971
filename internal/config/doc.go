// Package config provides configuration management for the Azure Cost Exporter.
//
// This package handles loading configuration from YAML files, applying
// environment variable overrides, setting defaults, and validating the
// configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// Supported environment variables:
//   - AZURE_COST_METRIC_NAME: Name of the billing-currency cost gauge
//   - AZURE_COST_METRIC_NAME_USD: Name of the USD cost gauge
//   - AZURE_COST_POLLING_INTERVAL: Polling interval in seconds (minimum: 60)
//   - AZURE_COST_HTTP_PORT: HTTP server port (1-65535)
//   - AZURE_COST_LOG_LEVEL: Log level (debug, info, warn, error)
//   - AZURE_COST_API_TIMEOUT: Azure API timeout in seconds
//   - AZURE_COST_CLIENT_ID / AZURE_COST_CLIENT_SECRET: Client credential
//     applied to every configured tenant, replacing secrets from the file
//
// Each target is a free-form label map that must contain TenantId and
// Subscription. The remaining keys become descriptive metric labels, so
// every target has to carry the identical key set; validation rejects
// heterogeneous targets because the metric label schema is fixed once
// at startup from the first target.
//
// Example configuration file (config.yaml):
//
//	polling_interval_seconds: 3600
//	metric_name: azure_daily_cost
//	metric_name_usd: azure_daily_cost_usd
//	http_port: 8080
//	log_level: "info"
//
//	group_by:
//	  enabled: true
//	  groups:
//	    - type: Dimension
//	      name: ServiceName
//	      label_name: ServiceName
//	  merge_minor_cost:
//	    enabled: true
//	    threshold: 10
//	    tag_value: Other
//
//	targets:
//	  - TenantId: "00000000-0000-0000-0000-000000000000"
//	    Subscription: "11111111-1111-1111-1111-111111111111"
//	    EnvironmentName: production
//
//	secrets:
//	  "00000000-0000-0000-0000-000000000000":
//	    client_id: "app-registration-id"
//	    client_secret: "app-registration-secret"
package config
