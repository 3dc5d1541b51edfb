package ports

import (
	"context"
	"time"

	"github.com/docstream/ocrkit/internal/core/domain"
)

// Provider is the capability contract every OCR engine satisfies, local or
// cloud. ExtractText never panics past this boundary: all failures surface as
// a Result with Success=false and ErrorMessage set.
type Provider interface {
	Name() string
	Kind() domain.ProviderKind

	// IsAvailable is a pure configuration/credential presence check. Local
	// providers must not perform network I/O; cloud providers must avoid
	// billable calls.
	IsAvailable() bool

	// Authenticate performs a minimal, non-billable round trip for cloud
	// providers. Local providers return nil.
	Authenticate(ctx context.Context) error

	ExtractText(ctx context.Context, filePath, language string) domain.Result

	// EstimateCost is a pure function of the provider pricing table and any
	// enabled feature flags. Local providers return 0.
	EstimateCost(filePath string) float64

	SupportedLanguages() []string

	// Cleanup releases held resources. Idempotent; no-op is valid.
	Cleanup() error
}

// CredentialVault is the encrypted, audited store of per-provider secrets.
// Get resolves environment overrides before the encrypted entry.
type CredentialVault interface {
	Store(service string, secrets map[string]string) error
	Get(service string) (map[string]string, error)
	Delete(service string) error
	Rotate(service string, secrets map[string]string) error
	ListServices() ([]string, error)
	Validate(service string) bool
}

// UsageLedger is the durable record of every processing attempt. Write
// failures are logged by callers and never abort an otherwise-successful
// OCR result.
type UsageLedger interface {
	RecordUsage(ctx context.Context, rec domain.UsageRecord) error
	CurrentMonthCost(ctx context.Context) (float64, error)
	CurrentMonthRequests(ctx context.Context) (int64, error)
	CostByProvider(ctx context.Context, windowDays int) (map[string]float64, error)
	UsageStats(ctx context.Context, windowDays int) (domain.UsageStats, error)
	SetBudget(ctx context.Context, provider string, monthlyLimit float64) error
	Budgets(ctx context.Context) (map[string]float64, error)
	CleanupOlderThan(ctx context.Context, days int) (int64, error)
}

// Validator gatekeeps every path and every piece of extracted text.
type Validator interface {
	ValidateInputPath(path string) error
	ValidateOutputPath(path string) error
	SanitizeOutput(text string) string
	SafeFilename(name string) string
}

// Clock is injectable time for deterministic ledger and vault tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
