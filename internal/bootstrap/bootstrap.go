package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docstream/ocrkit/internal/config"
	"github.com/docstream/ocrkit/internal/core/ports"
	"github.com/docstream/ocrkit/internal/core/usecase"
	"github.com/docstream/ocrkit/internal/infrastructure/ledger/sqlstore"
	"github.com/docstream/ocrkit/internal/infrastructure/provider/azurevision"
	"github.com/docstream/ocrkit/internal/infrastructure/provider/googlevision"
	"github.com/docstream/ocrkit/internal/infrastructure/provider/tesseract"
	"github.com/docstream/ocrkit/internal/infrastructure/provider/textract"
	"github.com/docstream/ocrkit/internal/infrastructure/resilience"
	"github.com/docstream/ocrkit/internal/infrastructure/security"
	"github.com/docstream/ocrkit/internal/infrastructure/vault"
	"github.com/docstream/ocrkit/internal/observability/logging"
	"github.com/docstream/ocrkit/internal/observability/metrics"
)

// App wires the full pipeline: vault-backed credentials, configured
// providers, the usage ledger and the orchestrator on top.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Vault        *vault.Vault
	Ledger       ports.UsageLedger
	Validator    ports.Validator
	Metrics      *metrics.ManagerMetrics
	Orchestrator *usecase.Orchestrator

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("ocrkit", cfg.LogLevel)

	v, err := vault.New(vault.Options{
		Dir:          cfg.ConfigDir,
		MasterSecret: cfg.MasterKey,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init credential vault: %w", err)
	}

	clock := ports.SystemClock{}
	store, err := sqlstore.Open(cfg.Ledger.Driver, cfg.SQLiteDSN(), clock)
	if err != nil {
		return nil, fmt.Errorf("open usage ledger: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure ledger schema: %w", err)
	}

	validator := security.NewValidator(int64(cfg.Security.MaxFileSizeMB)*1024*1024, cfg.Security.MaskPII)
	managerMetrics := metrics.NewManagerMetrics()

	registry := usecase.NewRegistry()
	registerProviders(registry, cfg, v, logger)

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorOptions{
		Registry:        registry,
		Validator:       validator,
		Ledger:          store,
		Metrics:         managerMetrics,
		Logger:          logger,
		Strategy:        cfg.SelectionStrategy,
		Quality:         cfg.Quality,
		FallbackEnabled: cfg.FallbackEnabled,
		MaxRetries:      cfg.MaxRetries,
		CallTimeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
	})

	return &App{
		Config:       cfg,
		Logger:       logger,
		Vault:        v,
		Ledger:       store,
		Validator:    validator,
		Metrics:      managerMetrics,
		Orchestrator: orchestrator,

		closeFn: func() {
			if err := registry.Cleanup(); err != nil {
				logger.Warn("provider_cleanup_failed", "error", err)
			}
			_ = store.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// FreeTiers reports the free-tier request allowance per cloud provider,
// keyed the way the ledger keys usage.
func FreeTiers() map[string]int64 {
	return map[string]int64{
		googlevision.Name: googlevision.FreeTierMonthly,
		textract.Name:     textract.FreeTierMonthly,
		azurevision.Name:  azurevision.FreeTierMonthly,
	}
}

// registerProviders builds every enabled provider whose credentials resolve.
// A cloud provider without credentials is skipped with a log line rather
// than registered in a permanently failing state.
func registerProviders(registry *usecase.Registry, cfg config.Config, v *vault.Vault, logger *slog.Logger) {
	executor := cloudExecutor(cfg)

	if pc := cfg.Provider(tesseract.Name); pc.Enabled {
		registry.Register(tesseract.New(), pc.Priority, pc.CostPerRequest)
	}

	if pc := cfg.Provider(googlevision.Name); pc.Enabled {
		creds := credentials(v, googlevision.Name, logger)
		if creds["api_key"] == "" {
			logger.Warn("provider_skipped", "provider", googlevision.Name, "reason", "no credentials")
		} else {
			registry.Register(googlevision.New(googlevision.Options{
				APIKey:         creds["api_key"],
				DocumentMode:   pc.DocumentMode,
				CostPerRequest: pc.CostPerRequest,
				Executor:       executor,
			}), pc.Priority, pc.CostPerRequest)
		}
	}

	if pc := cfg.Provider(textract.Name); pc.Enabled {
		creds := credentials(v, textract.Name, logger)
		if creds["access_key_id"] == "" || creds["secret_access_key"] == "" {
			logger.Warn("provider_skipped", "provider", textract.Name, "reason", "no credentials")
		} else {
			registry.Register(textract.New(textract.Options{
				Region:          creds["region"],
				AccessKeyID:     creds["access_key_id"],
				SecretAccessKey: creds["secret_access_key"],
				Tables:          pc.Tables,
				Forms:           pc.Forms,
				Executor:        executor,
			}), pc.Priority, pc.CostPerRequest)
		}
	}

	if pc := cfg.Provider(azurevision.Name); pc.Enabled {
		creds := credentials(v, azurevision.Name, logger)
		if creds["subscription_key"] == "" || creds["endpoint"] == "" {
			logger.Warn("provider_skipped", "provider", azurevision.Name, "reason", "no credentials")
		} else {
			registry.Register(azurevision.New(azurevision.Options{
				SubscriptionKey: creds["subscription_key"],
				Endpoint:        creds["endpoint"],
				CostPerRequest:  pc.CostPerRequest,
				Executor:        executor,
			}), pc.Priority, pc.CostPerRequest)
		}
	}
}

func credentials(v *vault.Vault, service string, logger *slog.Logger) map[string]string {
	creds, err := v.Get(service)
	if err != nil {
		logger.Warn("credential_lookup_failed", "provider", service, "error", err)
		return nil
	}
	return creds
}

// cloudExecutor is shared by all cloud providers so the configured rate
// limit paces billable calls globally, not per provider.
func cloudExecutor(cfg config.Config) *resilience.Executor {
	rc := resilience.DefaultConfig()
	rc.RateLimitRPS = cfg.RateLimitRPS
	if rc.RateLimitRPS > 0 && rc.RateLimitBurst <= 0 {
		rc.RateLimitBurst = 1
	}
	return resilience.NewExecutor(rc)
}
