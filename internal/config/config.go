package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Strategy string

const (
	StrategyCostOptimized Strategy = "cost_optimized"
	StrategyFastest       Strategy = "fastest"
	StrategyMostAccurate  Strategy = "most_accurate"
)

// ProviderConfig is the per-provider block of the config file.
type ProviderConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Priority         int     `yaml:"priority"`
	CostLimitMonthly float64 `yaml:"cost_limit_monthly"`
	CostPerRequest   float64 `yaml:"cost_per_request"`

	// Feature flags consumed by individual providers.
	DocumentMode bool `yaml:"document_mode"` // google_vision DOCUMENT_TEXT_DETECTION
	Tables       bool `yaml:"tables"`        // aws_textract TABLES analysis
	Forms        bool `yaml:"forms"`         // aws_textract FORMS analysis
}

// QualityConfig holds the acceptance thresholds. Pricing and thresholds are
// deliberately configuration, not code: they encode business assumptions that
// change over time.
type QualityConfig struct {
	ConfidenceHigh    float64 `yaml:"confidence_high"`
	ConfidenceDefault float64 `yaml:"confidence_default"`
	ConfidenceLow     float64 `yaml:"confidence_low"`
	MinTextLength     int     `yaml:"min_text_length"`
}

// SecurityConfig tunes the input validator. PII masking defaults on; the
// size limit is a ceiling on inputs accepted for processing, not a provider
// limit.
type SecurityConfig struct {
	MaxFileSizeMB int  `yaml:"max_file_size_mb"`
	MaskPII       bool `yaml:"mask_pii"`
}

type LedgerConfig struct {
	// Driver selects the usage store backend: "sqlite" (file under the
	// config dir) or "pgx" (DSN required).
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Config struct {
	LogLevel string `yaml:"log_level"`

	// ConfigDir holds credential files, the audit log, the vault salt and
	// the default sqlite ledger. Created 0700 on first use.
	ConfigDir string `yaml:"config_dir"`

	SelectionStrategy Strategy `yaml:"selection_strategy"`
	FallbackEnabled   bool     `yaml:"fallback_enabled"`
	MaxRetries        int      `yaml:"max_retries"`
	TimeoutSeconds    int      `yaml:"timeout_seconds"`
	RateLimitRPS      float64  `yaml:"rate_limit_rps"`

	Quality   QualityConfig             `yaml:"quality"`
	Security  SecurityConfig            `yaml:"security"`
	Ledger    LedgerConfig              `yaml:"ledger"`
	Providers map[string]ProviderConfig `yaml:"providers"`

	MasterKey string `yaml:"-"` // never read from file; env or explicit only
}

// Defaults mirrors the documented fallback configuration used when no file is
// present or the file is malformed.
func Defaults() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		LogLevel:          mustEnv("OCRKIT_LOG_LEVEL", "info"),
		ConfigDir:         mustEnv("OCRKIT_CONFIG_DIR", filepath.Join(home, ".ocrkit")),
		SelectionStrategy: StrategyCostOptimized,
		FallbackEnabled:   true,
		MaxRetries:        3,
		TimeoutSeconds:    30,
		RateLimitRPS:      5,
		Quality: QualityConfig{
			ConfidenceHigh:    90,
			ConfidenceDefault: 70,
			ConfidenceLow:     50,
			MinTextLength:     5,
		},
		Security: SecurityConfig{
			MaxFileSizeMB: 50,
			MaskPII:       true,
		},
		Ledger: LedgerConfig{Driver: "sqlite"},
		Providers: map[string]ProviderConfig{
			"local":         {Enabled: true, Priority: 1},
			"google_vision": {Enabled: false, Priority: 2, CostLimitMonthly: 100, CostPerRequest: 0.0015},
			"aws_textract":  {Enabled: false, Priority: 3, CostLimitMonthly: 100, CostPerRequest: 0.0015},
			"azure_vision":  {Enabled: false, Priority: 4, CostLimitMonthly: 100, CostPerRequest: 0.001},
		},
		MasterKey: os.Getenv("OCRKIT_MASTER_KEY"),
	}
}

// Load reads the config file at path, merged over Defaults. A missing file is
// not an error; a malformed file is logged and defaults are used. Bad config
// never hard-crashes the process.
func Load(path string) Config {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv("OCRKIT_CONFIG")
	}
	if path == "" {
		path = filepath.Join(cfg.ConfigDir, "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("config_read_failed", "path", path, "error", err)
		}
		return cfg
	}

	// yaml.v3 accepts JSON input as well, so a config.json carried over from
	// an older installation still parses.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		slog.Warn("config_parse_failed", "path", path, "error", err)
		return Defaults()
	}
	return cfg.normalize()
}

func (c Config) normalize() Config {
	def := Defaults()
	out := c
	if out.ConfigDir == "" {
		out.ConfigDir = def.ConfigDir
	}
	switch out.SelectionStrategy {
	case StrategyCostOptimized, StrategyFastest, StrategyMostAccurate:
	default:
		out.SelectionStrategy = StrategyCostOptimized
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = def.MaxRetries
	}
	if out.TimeoutSeconds <= 0 {
		out.TimeoutSeconds = def.TimeoutSeconds
	}
	if out.RateLimitRPS <= 0 {
		out.RateLimitRPS = def.RateLimitRPS
	}
	if out.Quality.ConfidenceHigh <= 0 {
		out.Quality.ConfidenceHigh = def.Quality.ConfidenceHigh
	}
	if out.Quality.ConfidenceDefault <= 0 {
		out.Quality.ConfidenceDefault = def.Quality.ConfidenceDefault
	}
	if out.Quality.ConfidenceLow <= 0 {
		out.Quality.ConfidenceLow = def.Quality.ConfidenceLow
	}
	if out.Quality.MinTextLength <= 0 {
		out.Quality.MinTextLength = def.Quality.MinTextLength
	}
	if out.Security.MaxFileSizeMB <= 0 {
		out.Security.MaxFileSizeMB = def.Security.MaxFileSizeMB
	}
	if out.Ledger.Driver == "" {
		out.Ledger.Driver = def.Ledger.Driver
	}
	if out.Providers == nil {
		out.Providers = def.Providers
	}
	if out.MasterKey == "" {
		out.MasterKey = os.Getenv("OCRKIT_MASTER_KEY")
	}
	return out
}

// Provider returns the block for name, falling back to the documented default
// for known providers and a zero-value disabled block otherwise.
func (c Config) Provider(name string) ProviderConfig {
	if pc, ok := c.Providers[name]; ok {
		return pc
	}
	if pc, ok := Defaults().Providers[name]; ok {
		return pc
	}
	return ProviderConfig{}
}

// SQLiteDSN is the default ledger location when no DSN is configured.
func (c Config) SQLiteDSN() string {
	if c.Ledger.DSN != "" {
		return c.Ledger.DSN
	}
	return fmt.Sprintf("file:%s", filepath.Join(c.ConfigDir, "usage.db"))
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
