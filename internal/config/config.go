package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Configuration validation constants
const (
	MinPollingInterval = 60    // Minimum polling interval in seconds
	MinPort            = 1     // Minimum valid port number
	MaxPort            = 65535 // Maximum valid port number
	MaxAPITimeout      = 300   // Maximum Azure API timeout in seconds

	// Default values
	DefaultMetricName      = "azure_daily_cost"
	DefaultMetricNameUSD   = "azure_daily_cost_usd"
	DefaultPollingInterval = 3600 // 1 hour in seconds
	DefaultHTTPPort        = 8080
	DefaultLogLevel        = "info"
	DefaultAPITimeout      = 30 // API timeout in seconds
)

// Well-known target label keys. Every target must carry both.
const (
	KeyTenantID     = "TenantId"
	KeySubscription = "Subscription"
)

// Reserved label names injected by the exporter itself.
const (
	LabelChargeType = "ChargeType"
	LabelCurrency   = "Currency"
)

// Target is one Azure account to monitor: the TenantId/Subscription
// pair plus arbitrary descriptive labels attached to every metric.
type Target map[string]string

// TenantID returns the Azure tenant the target belongs to
func (t Target) TenantID() string {
	return t[KeyTenantID]
}

// SubscriptionID returns the Azure subscription to query
func (t Target) SubscriptionID() string {
	return t[KeySubscription]
}

// LabelKeys returns the target's label keys in sorted order
func (t Target) LabelKeys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GroupSpec describes one grouping dimension of the cost query
type GroupSpec struct {
	Type      string `yaml:"type"`       // Azure grouping type (Dimension, Tag)
	Name      string `yaml:"name"`       // Azure dimension name (ServiceName, ResourceGroup, ...)
	LabelName string `yaml:"label_name"` // Metric label the dimension value is bound to
}

// MergeMinorCost buckets grouped costs below the threshold under a
// single placeholder label value to bound series cardinality.
type MergeMinorCost struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"` // billing-currency cutoff, exclusive
	TagValue  string  `yaml:"tag_value"` // placeholder group label value for the merged bucket
}

// GroupByPolicy represents the grouping configuration
type GroupByPolicy struct {
	Enabled        bool           `yaml:"enabled"`
	Groups         []GroupSpec    `yaml:"groups"`
	MergeMinorCost MergeMinorCost `yaml:"merge_minor_cost"`
}

// Secret holds the client credentials for one tenant
type Secret struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Config represents the application configuration
type Config struct {
	PollingInterval int               `yaml:"polling_interval_seconds"`
	MetricName      string            `yaml:"metric_name"`
	MetricNameUSD   string            `yaml:"metric_name_usd"`
	HTTPPort        int               `yaml:"http_port"`
	LogLevel        string            `yaml:"log_level"`
	APITimeout      int               `yaml:"api_timeout_seconds"`
	GroupBy         GroupByPolicy     `yaml:"group_by"`
	Targets         []Target          `yaml:"targets"`
	Secrets         map[string]Secret `yaml:"secrets"`
}

// Load loads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 -- Config file path is provided by administrator via CLI flag, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment variable error: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for configuration
func applyDefaults(cfg *Config) {
	if cfg.MetricName == "" {
		cfg.MetricName = DefaultMetricName
	}
	if cfg.MetricNameUSD == "" {
		cfg.MetricNameUSD = DefaultMetricNameUSD
	}
	if cfg.PollingInterval == 0 {
		cfg.PollingInterval = DefaultPollingInterval
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.APITimeout == 0 {
		cfg.APITimeout = DefaultAPITimeout
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("AZURE_COST_METRIC_NAME"); val != "" {
		cfg.MetricName = val
	}
	if val := os.Getenv("AZURE_COST_METRIC_NAME_USD"); val != "" {
		cfg.MetricNameUSD = val
	}

	if val := os.Getenv("AZURE_COST_POLLING_INTERVAL"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid AZURE_COST_POLLING_INTERVAL: must be an integer, got %q", val)
		}
		cfg.PollingInterval = i
	}

	if val := os.Getenv("AZURE_COST_HTTP_PORT"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid AZURE_COST_HTTP_PORT: must be an integer, got %q", val)
		}
		cfg.HTTPPort = i
	}

	if val := os.Getenv("AZURE_COST_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}

	if val := os.Getenv("AZURE_COST_API_TIMEOUT"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid AZURE_COST_API_TIMEOUT: must be an integer, got %q", val)
		}
		cfg.APITimeout = i
	}

	// A single client id/secret pair supplied via environment applies to
	// every configured tenant. Useful for single-tenant deployments where
	// credentials must not live in the config file.
	clientID := os.Getenv("AZURE_COST_CLIENT_ID")
	clientSecret := os.Getenv("AZURE_COST_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		if cfg.Secrets == nil {
			cfg.Secrets = make(map[string]Secret)
		}
		for _, target := range cfg.Targets {
			cfg.Secrets[target.TenantID()] = Secret{
				ClientID:     clientID,
				ClientSecret: clientSecret,
			}
		}
	}

	return nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	if len(cfg.Targets) == 0 {
		return fmt.Errorf("no targets configured")
	}

	// All targets must carry the identical label key set: the metric
	// label schema is fixed once from the first target.
	schema := cfg.Targets[0].LabelKeys()
	for i, target := range cfg.Targets {
		if target.TenantID() == "" {
			return fmt.Errorf("target at index %d is missing %s", i, KeyTenantID)
		}
		if target.SubscriptionID() == "" {
			return fmt.Errorf("target at index %d is missing %s", i, KeySubscription)
		}
		if _, ok := target[LabelChargeType]; ok {
			return fmt.Errorf("target at index %d uses reserved label %s", i, LabelChargeType)
		}
		if _, ok := target[LabelCurrency]; ok {
			return fmt.Errorf("target at index %d uses reserved label %s", i, LabelCurrency)
		}
		if !sameKeys(schema, target.LabelKeys()) {
			return fmt.Errorf("target at index %d has label keys %v, want %v (all targets must share one key set)",
				i, target.LabelKeys(), schema)
		}
	}

	for _, target := range cfg.Targets {
		if _, ok := cfg.Secrets[target.TenantID()]; !ok {
			return fmt.Errorf("no secret configured for tenant %s", target.TenantID())
		}
	}
	for tenant, secret := range cfg.Secrets {
		if secret.ClientID == "" || secret.ClientSecret == "" {
			return fmt.Errorf("secret for tenant %s is missing client_id or client_secret", tenant)
		}
	}

	if err := validateGroupBy(cfg); err != nil {
		return err
	}

	if cfg.PollingInterval <= 0 {
		return fmt.Errorf("polling_interval_seconds must be positive, got %d", cfg.PollingInterval)
	}
	if cfg.PollingInterval < MinPollingInterval {
		return fmt.Errorf("polling_interval_seconds must be at least %d seconds", MinPollingInterval)
	}

	if cfg.HTTPPort < MinPort || cfg.HTTPPort > MaxPort {
		return fmt.Errorf("http_port must be between %d and %d", MinPort, MaxPort)
	}

	if cfg.APITimeout <= 0 {
		return fmt.Errorf("api_timeout_seconds must be positive, got %d", cfg.APITimeout)
	}
	if cfg.APITimeout > MaxAPITimeout {
		return fmt.Errorf("api_timeout_seconds should not exceed %d seconds, got %d", MaxAPITimeout, cfg.APITimeout)
	}

	return nil
}

// validateGroupBy validates the grouping and minor-cost merge policy
func validateGroupBy(cfg *Config) error {
	gb := cfg.GroupBy
	if !gb.Enabled {
		return nil
	}

	if len(gb.Groups) == 0 {
		return fmt.Errorf("group_by is enabled but no groups are configured")
	}

	seen := make(map[string]bool)
	targetKeys := make(map[string]bool)
	for _, k := range cfg.Targets[0].LabelKeys() {
		targetKeys[k] = true
	}

	for i, g := range gb.Groups {
		if g.Type == "" || g.Name == "" || g.LabelName == "" {
			return fmt.Errorf("group at index %d must set type, name and label_name", i)
		}
		if g.LabelName == LabelChargeType || g.LabelName == LabelCurrency {
			return fmt.Errorf("group at index %d uses reserved label %s", i, g.LabelName)
		}
		if targetKeys[g.LabelName] {
			return fmt.Errorf("group at index %d label %s collides with a target label", i, g.LabelName)
		}
		if seen[g.LabelName] {
			return fmt.Errorf("duplicate group label %s", g.LabelName)
		}
		seen[g.LabelName] = true
	}

	if gb.MergeMinorCost.Enabled {
		if gb.MergeMinorCost.Threshold <= 0 {
			return fmt.Errorf("merge_minor_cost threshold must be positive, got %v", gb.MergeMinorCost.Threshold)
		}
		if gb.MergeMinorCost.TagValue == "" {
			return fmt.Errorf("merge_minor_cost tag_value must not be empty")
		}
	}

	return nil
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
