// Package config loads and validates bid watcher configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source names, used as keys under "sources".
const (
	SourceTelecom   = "telecom"
	SourceTower     = "tower"
	SourceChinaPost = "chinapost"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	// Keywords is the path of the JSON keyword file.
	Keywords  string          `mapstructure:"keywords"`
	Timezone  string          `mapstructure:"timezone"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// NotifyConfig configures the WeCom webhooks.
type NotifyConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Key     string `mapstructure:"key"`
	// TestKey selects the ops webhook for lifecycle messages.
	TestKey string `mapstructure:"test_key"`
	// Mirror copies bid messages to the ops webhook as well.
	Mirror         bool `mapstructure:"mirror"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	MaxAttempts    int  `mapstructure:"max_attempts"`
}

// HTTPConfig configures the shared outbound HTTP policy.
type HTTPConfig struct {
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	RotateUserAgent  bool    `mapstructure:"rotate_user_agent"`
	RatePerSecond    float64 `mapstructure:"rate_per_second"`
	RateBurst        int     `mapstructure:"rate_burst"`
	// IPProbeURL, when set, is fetched at startup to log the egress address.
	IPProbeURL string `mapstructure:"ip_probe_url"`
}

// SchedulerConfig controls the run loop and the dedup store marks.
type SchedulerConfig struct {
	Mode         string        `mapstructure:"mode"`
	Duration     time.Duration `mapstructure:"duration"`
	Interval     time.Duration `mapstructure:"interval"`
	KeywordPause time.Duration `mapstructure:"keyword_pause"`
	HighWater    int           `mapstructure:"dedupe_high_water"`
	LowWater     int           `mapstructure:"dedupe_low_water"`
}

// SourcesConfig holds one block per portal.
type SourcesConfig struct {
	Telecom   SourceConfig `mapstructure:"telecom"`
	Tower     SourceConfig `mapstructure:"tower"`
	ChinaPost SourceConfig `mapstructure:"chinapost"`
}

// SourceConfig configures one portal. Empty URLs keep the production endpoints.
type SourceConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	HomeURL        string        `mapstructure:"home_url"`
	APIURL         string        `mapstructure:"api_url"`
	LinkBase       string        `mapstructure:"link_base"`
	PageSize       int           `mapstructure:"page_size"`
	Lookback       time.Duration `mapstructure:"lookback"`
	ScanPolicy     string        `mapstructure:"scan_policy"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
}

// MetricsConfig enables the status server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BIDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	// The deployment scripts export the webhook keys under these names.
	if err := v.BindEnv("notify.key", "BIDWATCH_NOTIFY_KEY", "key_main"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("notify.test_key", "BIDWATCH_NOTIFY_TEST_KEY", "key_test"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("keywords", "keyword.json")
	v.SetDefault("timezone", "Asia/Shanghai")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("notify.base_url", "https://qyapi.weixin.qq.com/cgi-bin/webhook/send")
	v.SetDefault("notify.key", "")
	v.SetDefault("notify.test_key", "")
	v.SetDefault("notify.mirror", false)
	v.SetDefault("notify.timeout_seconds", 60)
	v.SetDefault("notify.max_attempts", 3)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.backoff_max_ms", 8000)
	v.SetDefault("http.rotate_user_agent", true)
	v.SetDefault("http.rate_per_second", 2.0)
	v.SetDefault("http.rate_burst", 2)
	v.SetDefault("http.ip_probe_url", "")
	v.SetDefault("scheduler.mode", "duration")
	v.SetDefault("scheduler.duration", "5h")
	v.SetDefault("scheduler.interval", "5s")
	v.SetDefault("scheduler.keyword_pause", "5s")
	v.SetDefault("scheduler.dedupe_high_water", 20)
	v.SetDefault("scheduler.dedupe_low_water", 6)

	sourceDefaults(v, SourceTelecom, true, "75m", 120, 5)
	sourceDefaults(v, SourceTower, true, "15m", 120, 3)
	sourceDefaults(v, SourceChinaPost, false, "48h", 60, 5)

	v.SetDefault("metrics.addr", "")
}

func sourceDefaults(v *viper.Viper, name string, enabled bool, lookback string, timeoutSeconds, attempts int) {
	prefix := "sources." + name + "."
	v.SetDefault(prefix+"enabled", enabled)
	v.SetDefault(prefix+"home_url", "")
	v.SetDefault(prefix+"api_url", "")
	v.SetDefault(prefix+"link_base", "")
	v.SetDefault(prefix+"page_size", 0)
	v.SetDefault(prefix+"lookback", lookback)
	v.SetDefault(prefix+"scan_policy", "early_break")
	v.SetDefault(prefix+"timeout_seconds", timeoutSeconds)
	v.SetDefault(prefix+"max_attempts", attempts)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Notify.Key) == "" {
		return errors.New("notify.key must be set (BIDWATCH_NOTIFY_KEY or key_main)")
	}
	if c.Notify.TimeoutSeconds <= 0 {
		return fmt.Errorf("notify.timeout_seconds must be > 0")
	}
	switch strings.ToLower(c.Scheduler.Mode) {
	case "once", "duration", "forever":
	default:
		return fmt.Errorf("scheduler.mode must be once, duration or forever, got %q", c.Scheduler.Mode)
	}
	if strings.EqualFold(c.Scheduler.Mode, "duration") && c.Scheduler.Duration <= 0 {
		return fmt.Errorf("scheduler.duration must be > 0 in duration mode")
	}
	if c.Scheduler.Interval < 0 || c.Scheduler.KeywordPause < 0 {
		return fmt.Errorf("scheduler pauses must not be negative")
	}
	if c.Scheduler.LowWater <= 0 || c.Scheduler.HighWater < c.Scheduler.LowWater {
		return fmt.Errorf("scheduler dedupe marks must satisfy 0 < low <= high")
	}
	enabled := 0
	for name, src := range c.Sources.All() {
		if !src.Enabled {
			continue
		}
		enabled++
		if src.Lookback <= 0 {
			return fmt.Errorf("sources.%s.lookback must be > 0", name)
		}
		if src.TimeoutSeconds <= 0 {
			return fmt.Errorf("sources.%s.timeout_seconds must be > 0", name)
		}
		switch src.ScanPolicy {
		case "", "early_break", "full_scan":
		default:
			return fmt.Errorf("sources.%s.scan_policy must be early_break or full_scan", name)
		}
	}
	if enabled == 0 {
		return errors.New("at least one source must be enabled")
	}
	return nil
}

// All returns the source blocks keyed by name.
func (s SourcesConfig) All() map[string]SourceConfig {
	return map[string]SourceConfig{
		SourceTelecom:   s.Telecom,
		SourceTower:     s.Tower,
		SourceChinaPost: s.ChinaPost,
	}
}

// Backoff converts the HTTP backoff settings into durations.
func (c HTTPConfig) Backoff() (initial, maxDelay time.Duration) {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond, time.Duration(c.BackoffMaxMs) * time.Millisecond
}
