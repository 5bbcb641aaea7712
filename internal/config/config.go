// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Arbitrage ArbitrageConfig `mapstructure:"arbitrage"`
	Risk      RiskConfig      `mapstructure:"risk"`
	MEV       MEVConfig       `mapstructure:"mev"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ChainConfig holds RPC node configuration.
type ChainConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	WebSocketURL   string        `mapstructure:"websocket_url"`
	Commitment     string        `mapstructure:"commitment"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	FeeCacheTTL    time.Duration `mapstructure:"fee_cache_ttl"`
}

// SourcesConfig holds price source configuration. Each source carries
// an independent rate budget.
type SourcesConfig struct {
	QuoteAPIURLs       []string      `mapstructure:"quote_api_urls"`
	StreamURL          string        `mapstructure:"stream_url"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"`
	Burst              int           `mapstructure:"burst"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	DegradationBackoff time.Duration `mapstructure:"degradation_backoff"`
	MaxBackoff         time.Duration `mapstructure:"max_backoff"`
}

// PricingConfig holds quote table behavior.
type PricingConfig struct {
	QuoteMaxAge        time.Duration `mapstructure:"quote_max_age"`
	ConfidenceHalfLife time.Duration `mapstructure:"confidence_half_life"`
	PoolAddresses      []string      `mapstructure:"pool_addresses"`
}

// ArbitrageConfig holds opportunity detection configuration.
type ArbitrageConfig struct {
	BaseToken                string        `mapstructure:"base_token"`
	MinNetProfit             string        `mapstructure:"min_net_profit"`
	MaxHops                  int           `mapstructure:"max_hops"`
	MaxVenuesExplored        int           `mapstructure:"max_venues_explored"`
	MaxLiquidityFractionBps  uint32        `mapstructure:"max_liquidity_fraction_bps"`
	TradeSizes               []string      `mapstructure:"trade_sizes"`
	OpportunityTTL           time.Duration `mapstructure:"opportunity_ttl"`
	DiscoveryInterval        time.Duration `mapstructure:"discovery_interval"`
	MaxConcurrentDiscoveries int           `mapstructure:"max_concurrent_discoveries"`
	FlashLoanEnabled         bool          `mapstructure:"flash_loan_enabled"`
	FlashLoanFeeBps          uint32        `mapstructure:"flash_loan_fee_bps"`
}

// RiskConfig holds the safety gate limits.
type RiskConfig struct {
	MaxTradeFractionOfCapitalBps uint32        `mapstructure:"max_trade_fraction_of_capital_bps"`
	AbsoluteMaxTradeAmount       string        `mapstructure:"absolute_max_trade_amount"`
	MaxSlippageBps               uint32        `mapstructure:"max_slippage_bps"`
	DailyLossLimit               string        `mapstructure:"daily_loss_limit"`
	LossWindow                   time.Duration `mapstructure:"loss_window"`
}

// MEVConfig holds protected submission settings.
type MEVConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	MinTip              uint64 `mapstructure:"min_tip"`
	MaxTip              uint64 `mapstructure:"max_tip"`
	MaxTipFractionBps   uint32 `mapstructure:"max_tip_fraction_bps"`
	RelayURL            string `mapstructure:"relay_url"`
	SandwichSizeCutoff  uint32 `mapstructure:"sandwich_size_cutoff_bps"`
	AbortOnCriticalRisk bool   `mapstructure:"abort_on_critical_risk"`
}

// ExecutionConfig holds the trade pipeline settings.
type ExecutionConfig struct {
	SimulationToleranceBps uint32        `mapstructure:"simulation_tolerance_bps"`
	SubmissionDeadline     time.Duration `mapstructure:"submission_deadline"`
	ConfirmPollInterval    time.Duration `mapstructure:"confirm_poll_interval"`
	ConfirmRetryBudget     int           `mapstructure:"confirm_retry_budget"`
	DrainTimeout           time.Duration `mapstructure:"drain_timeout"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// MinNetProfitDecimal parses the minimum net profit threshold.
func (c *ArbitrageConfig) MinNetProfitDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(c.MinNetProfit)
}

// TradeSizesDecimal parses candidate trade sizes.
func (c *ArbitrageConfig) TradeSizesDecimal() ([]decimal.Decimal, error) {
	result := make([]decimal.Decimal, len(c.TradeSizes))
	for i, s := range c.TradeSizes {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid trade size %q: %w", s, err)
		}
		result[i] = d
	}
	return result, nil
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("ARB")
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Chain
	v.BindEnv("chain.rpc_url", "ARB_RPC_URL", "RPC_URL")
	v.BindEnv("chain.websocket_url", "ARB_WS_URL", "WS_URL")
	v.BindEnv("chain.commitment", "ARB_COMMITMENT")

	// Sources
	v.BindEnv("sources.quote_api_urls", "ARB_QUOTE_API_URLS")
	v.BindEnv("sources.stream_url", "ARB_STREAM_URL")

	// Arbitrage
	v.BindEnv("arbitrage.base_token", "ARB_BASE_TOKEN")
	v.BindEnv("arbitrage.min_net_profit", "ARB_MIN_NET_PROFIT")
	v.BindEnv("arbitrage.discovery_interval", "ARB_DISCOVERY_INTERVAL")

	// Risk
	v.BindEnv("risk.daily_loss_limit", "ARB_DAILY_LOSS_LIMIT")
	v.BindEnv("risk.absolute_max_trade_amount", "ARB_MAX_TRADE_AMOUNT")

	// MEV
	v.BindEnv("mev.enabled", "ARB_MEV_ENABLED")
	v.BindEnv("mev.relay_url", "ARB_MEV_RELAY_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "solarb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Chain defaults
	v.SetDefault("chain.commitment", "confirmed")
	v.SetDefault("chain.request_timeout", "5s")
	v.SetDefault("chain.max_reconnects", 0) // infinite
	v.SetDefault("chain.initial_backoff", "1s")
	v.SetDefault("chain.max_backoff", "30s")
	v.SetDefault("chain.fee_cache_ttl", "2s")

	// Source defaults
	v.SetDefault("sources.requests_per_second", 10.0)
	v.SetDefault("sources.burst", 5)
	v.SetDefault("sources.request_timeout", "2s")
	v.SetDefault("sources.degradation_backoff", "1s")
	v.SetDefault("sources.max_backoff", "30s")

	// Pricing defaults
	v.SetDefault("pricing.quote_max_age", "3s")
	v.SetDefault("pricing.confidence_half_life", "1s")

	// Arbitrage defaults
	v.SetDefault("arbitrage.base_token", "USDC")
	v.SetDefault("arbitrage.min_net_profit", "1")
	v.SetDefault("arbitrage.max_hops", 3)
	v.SetDefault("arbitrage.max_venues_explored", 64)
	v.SetDefault("arbitrage.max_liquidity_fraction_bps", 100) // 1% of pool depth
	v.SetDefault("arbitrage.trade_sizes", []string{"10", "100", "1000"})
	v.SetDefault("arbitrage.opportunity_ttl", "2s")
	v.SetDefault("arbitrage.discovery_interval", "500ms")
	v.SetDefault("arbitrage.max_concurrent_discoveries", 4)
	v.SetDefault("arbitrage.flash_loan_enabled", false)
	v.SetDefault("arbitrage.flash_loan_fee_bps", 9)

	// Risk defaults
	v.SetDefault("risk.max_trade_fraction_of_capital_bps", 1000) // 10%
	v.SetDefault("risk.absolute_max_trade_amount", "10000")
	v.SetDefault("risk.max_slippage_bps", 50)
	v.SetDefault("risk.daily_loss_limit", "100")
	v.SetDefault("risk.loss_window", "24h")

	// MEV defaults
	v.SetDefault("mev.enabled", true)
	v.SetDefault("mev.min_tip", 1_000)
	v.SetDefault("mev.max_tip", 1_000_000)
	v.SetDefault("mev.max_tip_fraction_bps", 5000) // never tip more than half the profit
	v.SetDefault("mev.sandwich_size_cutoff_bps", 500)
	v.SetDefault("mev.abort_on_critical_risk", true)

	// Execution defaults
	v.SetDefault("execution.simulation_tolerance_bps", 100)
	v.SetDefault("execution.submission_deadline", "2s")
	v.SetDefault("execution.confirm_poll_interval", "400ms")
	v.SetDefault("execution.confirm_retry_budget", 30)
	v.SetDefault("execution.drain_timeout", "30s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "solarb")
	v.SetDefault("telemetry.trace_provider", "console")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}
	if c.Arbitrage.BaseToken == "" {
		return fmt.Errorf("arbitrage.base_token is required")
	}
	if c.Arbitrage.MaxHops < 2 {
		return fmt.Errorf("arbitrage.max_hops must be at least 2, got %d", c.Arbitrage.MaxHops)
	}
	if c.Arbitrage.MaxConcurrentDiscoveries < 1 {
		return fmt.Errorf("arbitrage.max_concurrent_discoveries must be positive")
	}
	if c.Arbitrage.MaxLiquidityFractionBps == 0 || c.Arbitrage.MaxLiquidityFractionBps > 10_000 {
		return fmt.Errorf("arbitrage.max_liquidity_fraction_bps must be in (0, 10000]")
	}
	if _, err := c.Arbitrage.MinNetProfitDecimal(); err != nil {
		return fmt.Errorf("invalid arbitrage.min_net_profit: %w", err)
	}
	if _, err := c.Arbitrage.TradeSizesDecimal(); err != nil {
		return err
	}
	if c.Risk.MaxTradeFractionOfCapitalBps == 0 || c.Risk.MaxTradeFractionOfCapitalBps > 10_000 {
		return fmt.Errorf("risk.max_trade_fraction_of_capital_bps must be in (0, 10000]")
	}
	if _, err := decimal.NewFromString(c.Risk.AbsoluteMaxTradeAmount); err != nil {
		return fmt.Errorf("invalid risk.absolute_max_trade_amount: %w", err)
	}
	if _, err := decimal.NewFromString(c.Risk.DailyLossLimit); err != nil {
		return fmt.Errorf("invalid risk.daily_loss_limit: %w", err)
	}
	if c.MEV.Enabled && c.MEV.RelayURL == "" {
		return fmt.Errorf("mev.relay_url is required when mev.enabled is true")
	}
	if c.MEV.MaxTip < c.MEV.MinTip {
		return fmt.Errorf("mev.max_tip must be >= mev.min_tip")
	}
	if c.Execution.ConfirmRetryBudget < 1 {
		return fmt.Errorf("execution.confirm_retry_budget must be positive")
	}
	return nil
}
