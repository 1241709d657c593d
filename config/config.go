package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"triflow/models"
)

type Config struct {
	Triflow   TriflowConfig     `yaml:"triflow"`
	Logging   LoggingConfig     `yaml:"logging"`
	Channels  ChannelsConfig    `yaml:"channels"`
	Source    SourceConfig      `yaml:"source"`
	Engine    EngineConfig      `yaml:"engine"`
	Triangles []models.Triangle `yaml:"triangles"`
	Notifier  NotifierConfig    `yaml:"notifier"`
	Execution ExecutionConfig   `yaml:"execution"`
	Export    ExportConfig      `yaml:"export"`
}

type TriflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type ChannelsConfig struct {
	StreamBuffer int `yaml:"stream_buffer"`
}

type SourceConfig struct {
	Binance BinanceSourceConfig `yaml:"binance"`
}

type BinanceSourceConfig struct {
	WsURL          string               `yaml:"ws_url"`
	KlineInterval  string               `yaml:"kline_interval"`
	BootstrapDepth int                  `yaml:"bootstrap_depth"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	APIKey         string               `yaml:"-"`
	APISecret      string               `yaml:"-"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

// EngineConfig carries the detection parameters. TrendBonus is the additive
// bias (percent) applied to the rotation direction matching the current
// trend; set it to 0 to evaluate without the bias.
type EngineConfig struct {
	TickInterval      time.Duration `yaml:"tick_interval"`
	StartingNotional  float64       `yaml:"starting_notional"`
	FeeRate           float64       `yaml:"fee_rate"`
	SlippageCeiling   float64       `yaml:"slippage_ceiling"`
	SlippageTolerance float64       `yaml:"slippage_tolerance"`
	VolatilityGate    float64       `yaml:"volatility_gate"`
	AnomalyCeiling    float64       `yaml:"anomaly_ceiling"`
	TrendBonus        float64       `yaml:"trend_bonus"`
	HistorySize       int           `yaml:"history_size"`
}

type NotifierConfig struct {
	URL         string        `yaml:"url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

type ExecutionConfig struct {
	Enabled bool `yaml:"enabled"`
}

type ExportConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Directory   string   `yaml:"directory"`
	Compression string   `yaml:"compression"`
	S3          S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Channels: ChannelsConfig{StreamBuffer: 1024},
		Source: SourceConfig{
			Binance: BinanceSourceConfig{
				WsURL:          "wss://stream.binance.com:9443/stream",
				KlineInterval:  "1m",
				BootstrapDepth: 5,
				RateLimit:      RateLimitConfig{RequestsPerSecond: 5, BurstSize: 5},
			},
		},
		Engine: EngineConfig{
			TickInterval:      10 * time.Millisecond,
			StartingNotional:  666.67,
			FeeRate:           0.001,
			SlippageCeiling:   0.01,
			SlippageTolerance: 0.01,
			VolatilityGate:    5,
			AnomalyCeiling:    5.0,
			TrendBonus:        0.2,
			HistorySize:       10,
		},
		Notifier: NotifierConfig{
			Timeout:     5 * time.Second,
			MaxAttempts: 3,
			Backoff:     time.Second,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Credentials come from the environment only, never the config file.
	config.Source.Binance.APIKey = strings.TrimSpace(os.Getenv("BINANCE_API_KEY"))
	config.Source.Binance.APISecret = strings.TrimSpace(os.Getenv("BINANCE_API_SECRET"))

	if config.Export.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Export.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Export.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Export.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Export.S3.Bucket = strings.TrimSpace(v)
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Triflow.Name == "" {
		return fmt.Errorf("triflow.name is required")
	}
	if cfg.Triflow.Version == "" {
		return fmt.Errorf("triflow.version is required")
	}

	if cfg.Channels.StreamBuffer <= 0 {
		return fmt.Errorf("channels.stream_buffer must be greater than 0")
	}

	if len(cfg.Triangles) == 0 {
		return fmt.Errorf("at least one triangle is required")
	}
	seen := make(map[string]struct{}, len(cfg.Triangles))
	for i, tri := range cfg.Triangles {
		if tri.Name == "" {
			return fmt.Errorf("triangles[%d].name is required", i)
		}
		if _, ok := seen[tri.Name]; ok {
			return fmt.Errorf("duplicate triangle name %q", tri.Name)
		}
		seen[tri.Name] = struct{}{}
		for j, pair := range tri.Pairs {
			if !strings.Contains(pair, "/") {
				return fmt.Errorf("triangles[%d].pairs[%d] %q: pairs must use BASE/QUOTE form", i, j, pair)
			}
		}
	}

	e := cfg.Engine
	if e.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be greater than 0")
	}
	if e.StartingNotional <= 0 {
		return fmt.Errorf("engine.starting_notional must be greater than 0")
	}
	if e.FeeRate < 0 || e.FeeRate >= 1 {
		return fmt.Errorf("engine.fee_rate must be in [0, 1)")
	}
	if e.SlippageCeiling <= 0 {
		return fmt.Errorf("engine.slippage_ceiling must be greater than 0")
	}
	if e.SlippageTolerance <= 0 {
		return fmt.Errorf("engine.slippage_tolerance must be greater than 0")
	}
	if e.VolatilityGate <= 0 {
		return fmt.Errorf("engine.volatility_gate must be greater than 0")
	}
	if e.AnomalyCeiling <= 0 {
		return fmt.Errorf("engine.anomaly_ceiling must be greater than 0")
	}
	if e.TrendBonus < 0 {
		return fmt.Errorf("engine.trend_bonus must not be negative")
	}
	if e.HistorySize <= 0 {
		return fmt.Errorf("engine.history_size must be greater than 0")
	}

	if cfg.Notifier.URL != "" {
		if cfg.Notifier.MaxAttempts <= 0 {
			return fmt.Errorf("notifier.max_attempts must be greater than 0")
		}
		if cfg.Notifier.Backoff <= 0 {
			return fmt.Errorf("notifier.backoff must be greater than 0")
		}
	}

	if cfg.Execution.Enabled {
		if cfg.Source.Binance.APIKey == "" || cfg.Source.Binance.APISecret == "" {
			return fmt.Errorf("execution is enabled but BINANCE_API_KEY/BINANCE_API_SECRET are not set")
		}
	}

	if cfg.Export.Enabled && cfg.Export.Directory == "" {
		return fmt.Errorf("export.directory is required when export is enabled")
	}
	if cfg.Export.S3.Enabled {
		if cfg.Export.S3.Bucket == "" {
			return fmt.Errorf("export.s3.bucket is required when s3 upload is enabled")
		}
		if cfg.Export.S3.Region == "" {
			return fmt.Errorf("export.s3.region is required when s3 upload is enabled")
		}
	}

	return nil
}
