package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg.SelectionStrategy != StrategyCostOptimized {
		t.Fatalf("strategy = %q, want cost_optimized", cfg.SelectionStrategy)
	}
	if cfg.MaxRetries != 3 || cfg.TimeoutSeconds != 30 {
		t.Fatalf("defaults not applied: retries=%d timeout=%d", cfg.MaxRetries, cfg.TimeoutSeconds)
	}
	if !cfg.Providers["local"].Enabled {
		t.Fatalf("local provider should default to enabled")
	}
	if !cfg.Security.MaskPII || cfg.Security.MaxFileSizeMB != 50 {
		t.Fatalf("security defaults not applied: %+v", cfg.Security)
	}
}

func TestLoadSecurityBlockOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
security:
  mask_pii: false
  max_file_size_mb: 10
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Load(path)
	if cfg.Security.MaskPII {
		t.Fatalf("mask_pii: false not honored")
	}
	if cfg.Security.MaxFileSizeMB != 10 {
		t.Fatalf("max_file_size_mb = %d, want 10", cfg.Security.MaxFileSizeMB)
	}
}

func TestLoadMalformedFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("selection_strategy: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Load(path)
	if cfg.SelectionStrategy != StrategyCostOptimized {
		t.Fatalf("malformed file must fall back to defaults, got %q", cfg.SelectionStrategy)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
selection_strategy: most_accurate
max_retries: 5
quality:
  confidence_high: 95
providers:
  azure_vision:
    enabled: true
    priority: 2
    cost_per_request: 0.001
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Load(path)
	if cfg.SelectionStrategy != StrategyMostAccurate {
		t.Fatalf("strategy = %q, want most_accurate", cfg.SelectionStrategy)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("max_retries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.Quality.ConfidenceHigh != 95 {
		t.Fatalf("confidence_high = %v, want 95", cfg.Quality.ConfidenceHigh)
	}
	if !cfg.Providers["azure_vision"].Enabled || cfg.Providers["azure_vision"].Priority != 2 {
		t.Fatalf("azure_vision block not applied: %+v", cfg.Providers["azure_vision"])
	}
	// quality fields not present in the file keep their defaults
	if cfg.Quality.MinTextLength != 5 {
		t.Fatalf("min_text_length = %d, want default 5", cfg.Quality.MinTextLength)
	}
}

func TestLoadJSONConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"selection_strategy": "fastest", "timeout_seconds": 10}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Load(path)
	if cfg.SelectionStrategy != StrategyFastest {
		t.Fatalf("strategy = %q, want fastest", cfg.SelectionStrategy)
	}
	if cfg.TimeoutSeconds != 10 {
		t.Fatalf("timeout_seconds = %d, want 10", cfg.TimeoutSeconds)
	}
}
