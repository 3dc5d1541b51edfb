package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/docstream/ocrkit/internal/config"
	"github.com/docstream/ocrkit/internal/core/domain"
)

type fakeProvider struct {
	name       string
	kind       domain.ProviderKind
	available  bool
	confidence float64
	text       string
	cost       float64
	fail       bool
	calls      int
	onExtract  func()
}

func (f *fakeProvider) Name() string                       { return f.name }
func (f *fakeProvider) Kind() domain.ProviderKind          { return f.kind }
func (f *fakeProvider) IsAvailable() bool                  { return f.available }
func (f *fakeProvider) Authenticate(context.Context) error { return nil }
func (f *fakeProvider) EstimateCost(string) float64        { return f.cost }
func (f *fakeProvider) SupportedLanguages() []string       { return []string{"en"} }
func (f *fakeProvider) Cleanup() error                     { return nil }

func (f *fakeProvider) ExtractText(ctx context.Context, filePath, language string) domain.Result {
	f.calls++
	if f.onExtract != nil {
		f.onExtract()
	}
	if f.fail {
		return domain.FailedResult(f.name, language, "extraction failed")
	}
	return domain.Result{
		Text:            f.text,
		Confidence:      f.confidence,
		Success:         true,
		DurationSeconds: 0.01,
		Provider:        f.name,
		Language:        language,
	}
}

type captureLedger struct {
	records []domain.UsageRecord
}

func (l *captureLedger) RecordUsage(_ context.Context, rec domain.UsageRecord) error {
	l.records = append(l.records, rec)
	return nil
}
func (l *captureLedger) CurrentMonthCost(context.Context) (float64, error)   { return 0, nil }
func (l *captureLedger) CurrentMonthRequests(context.Context) (int64, error) { return 0, nil }
func (l *captureLedger) CostByProvider(context.Context, int) (map[string]float64, error) {
	return nil, nil
}
func (l *captureLedger) UsageStats(context.Context, int) (domain.UsageStats, error) {
	return domain.UsageStats{}, nil
}
func (l *captureLedger) SetBudget(context.Context, string, float64) error { return nil }
func (l *captureLedger) Budgets(context.Context) (map[string]float64, error) {
	return nil, nil
}
func (l *captureLedger) CleanupOlderThan(context.Context, int) (int64, error) { return 0, nil }

type passValidator struct {
	rejectInput bool
}

func (v passValidator) ValidateInputPath(string) error {
	if v.rejectInput {
		return domain.WrapError(domain.ErrValidation, "validate input", context.Canceled)
	}
	return nil
}
func (passValidator) ValidateOutputPath(string) error { return nil }
func (passValidator) SanitizeOutput(text string) string {
	return strings.ReplaceAll(text, "<script>", "")
}
func (passValidator) SafeFilename(name string) string { return name }

func newTestOrchestrator(ledger *captureLedger, strategy config.Strategy, providers ...*fakeProvider) *Orchestrator {
	registry := NewRegistry()
	for i, p := range providers {
		registry.Register(p, i+1, p.cost)
	}
	o := NewOrchestrator(OrchestratorOptions{
		Registry:        registry,
		Validator:       passValidator{},
		Ledger:          ledger,
		Strategy:        strategy,
		FallbackEnabled: true,
		MaxRetries:      2,
		RetryDelay:      time.Millisecond,
		CallTimeout:     time.Second,
	})
	return o
}

func TestOfflineOnlyWithoutLocalInvokesNoCloudProvider(t *testing.T) {
	cloud := &fakeProvider{name: "google_vision", kind: domain.KindCloud, available: true, confidence: 99, text: "cloud text"}
	o := newTestOrchestrator(&captureLedger{}, config.StrategyCostOptimized, cloud)

	result := o.Process(context.Background(), "doc.png", "en", domain.Requirements{OfflineOnly: true})

	if result.Success {
		t.Fatalf("expected selection failure")
	}
	if cloud.calls != 0 {
		t.Fatalf("cloud provider invoked %d times, want 0", cloud.calls)
	}
	if !strings.Contains(result.ErrorMessage, "offline-only") {
		t.Fatalf("error = %q", result.ErrorMessage)
	}
}

func TestHighAccuracyAcceptsNinetyFiveRejectsEightyFive(t *testing.T) {
	low := &fakeProvider{name: "local", kind: domain.KindLocal, available: true, confidence: 85, text: "eighty five percent text"}
	high := &fakeProvider{name: "google_vision", kind: domain.KindCloud, available: true, confidence: 95, text: "ninety five percent text", cost: 0.0015}
	o := newTestOrchestrator(&captureLedger{}, config.StrategyCostOptimized, low, high)

	result := o.Process(context.Background(), "doc.png", "en", domain.Requirements{Accuracy: domain.AccuracyHigh})

	if !result.Success {
		t.Fatalf("Process failed: %s", result.ErrorMessage)
	}
	if result.Provider != "google_vision" {
		t.Fatalf("provider = %q, want google_vision", result.Provider)
	}
	if !result.UsedFallback {
		t.Fatalf("expected fallback")
	}
	if low.calls != 1 {
		t.Fatalf("rejected primary retried: calls = %d", low.calls)
	}

	// 95 must be accepted without fallback when it is the primary.
	direct := newTestOrchestrator(&captureLedger{}, config.StrategyCostOptimized,
		&fakeProvider{name: "local", kind: domain.KindLocal, available: true, confidence: 95, text: "plenty of text here"})
	res := direct.Process(context.Background(), "doc.png", "en", domain.Requirements{Accuracy: domain.AccuracyHigh})
	if !res.Success || res.UsedFallback {
		t.Fatalf("confidence 95 should be accepted directly: %+v", res)
	}
}

func TestEndToEndCostOptimizedHighAccuracyFallback(t *testing.T) {
	local := &fakeProvider{name: "local", kind: domain.KindLocal, available: true, confidence: 60, text: "low quality extraction"}
	cloud := &fakeProvider{name: "google_vision", kind: domain.KindCloud, available: true, confidence: 92, text: "high quality extraction", cost: 0.0015}
	ledger := &captureLedger{}
	o := newTestOrchestrator(ledger, config.StrategyCostOptimized, local, cloud)

	result := o.Process(context.Background(), "invoice.png", "en", domain.Requirements{Accuracy: domain.AccuracyHigh})

	if !result.Success {
		t.Fatalf("Process failed: %s", result.ErrorMessage)
	}
	if result.Provider != "google_vision" || !result.UsedFallback {
		t.Fatalf("provider = %q usedFallback = %v", result.Provider, result.UsedFallback)
	}
	if local.calls != 1 || cloud.calls != 1 {
		t.Fatalf("calls local=%d cloud=%d, want 1 each", local.calls, cloud.calls)
	}

	if len(ledger.records) != 2 {
		t.Fatalf("usage records = %d, want 2 (one per attempt)", len(ledger.records))
	}
	if ledger.records[0].Provider != "local" || ledger.records[0].Cost != 0 {
		t.Fatalf("local record = %+v, want cost 0", ledger.records[0])
	}
	if ledger.records[1].Provider != "google_vision" || ledger.records[1].Cost != 0.0015 {
		t.Fatalf("cloud record = %+v, want cost 0.0015", ledger.records[1])
	}
}

func TestValidationFailureInvokesNothing(t *testing.T) {
	local := &fakeProvider{name: "local", kind: domain.KindLocal, available: true, confidence: 95, text: "some text"}
	ledger := &captureLedger{}
	registry := NewRegistry()
	registry.Register(local, 1, 0)
	o := NewOrchestrator(OrchestratorOptions{
		Registry:  registry,
		Validator: passValidator{rejectInput: true},
		Ledger:    ledger,
	})

	result := o.Process(context.Background(), "../etc/passwd", "en", domain.Requirements{})

	if result.Success {
		t.Fatalf("expected validation failure")
	}
	if local.calls != 0 {
		t.Fatalf("provider invoked after validation failure")
	}
	if len(ledger.records) != 0 {
		t.Fatalf("validation failures must not be billed or recorded")
	}
}

func TestExhaustedProvidersReturnSuggestions(t *testing.T) {
	local := &fakeProvider{name: "local", kind: domain.KindLocal, available: true, fail: true}
	o := newTestOrchestrator(&captureLedger{}, config.StrategyCostOptimized, local)

	result := o.Process(context.Background(), "doc.png", "en", domain.Requirements{})

	if result.Success {
		t.Fatalf("expected terminal failure")
	}
	if len(result.Suggestions) == 0 {
		t.Fatalf("expected troubleshooting suggestions")
	}
	// primary attempt plus maxRetries fallback attempts... the primary is
	// excluded from fallback, so exactly one call is made.
	if local.calls != 1 {
		t.Fatalf("calls = %d, want 1", local.calls)
	}
}

func TestFallbackRetriesEachProviderUpToMaxRetries(t *testing.T) {
	primary := &fakeProvider{name: "local", kind: domain.KindLocal, available: true, fail: true}
	backup := &fakeProvider{name: "azure_vision", kind: domain.KindCloud, available: true, fail: true, cost: 0.001}
	o := newTestOrchestrator(&captureLedger{}, config.StrategyCostOptimized, primary, backup)

	result := o.Process(context.Background(), "doc.png", "en", domain.Requirements{})

	if result.Success {
		t.Fatalf("expected failure")
	}
	if primary.calls != 1 {
		t.Fatalf("primary calls = %d, want 1", primary.calls)
	}
	if backup.calls != 2 {
		t.Fatalf("backup calls = %d, want maxRetries=2", backup.calls)
	}
}

func TestCancellationReportedDistinctlyDuringFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &fakeProvider{name: "local", kind: domain.KindLocal, available: true, fail: true, onExtract: cancel}
	backup := &fakeProvider{name: "google_vision", kind: domain.KindCloud, available: true, confidence: 95, text: "backup text", cost: 0.0015}
	o := newTestOrchestrator(&captureLedger{}, config.StrategyCostOptimized, primary, backup)

	result := o.Process(ctx, "doc.png", "en", domain.Requirements{})

	if result.Success {
		t.Fatalf("expected failure after cancellation")
	}
	if backup.calls != 0 {
		t.Fatalf("fallback provider invoked %d times after cancellation, want 0", backup.calls)
	}
	if !strings.Contains(result.ErrorMessage, "canceled") {
		t.Fatalf("error = %q, want cancellation reported", result.ErrorMessage)
	}
	if len(result.Suggestions) != 0 {
		t.Fatalf("cancellation carried troubleshooting suggestions: %v", result.Suggestions)
	}
}

func TestAcceptedTextIsSanitized(t *testing.T) {
	local := &fakeProvider{name: "local", kind: domain.KindLocal, available: true, confidence: 95, text: "hello <script>world"}
	o := newTestOrchestrator(&captureLedger{}, config.StrategyCostOptimized, local)

	result := o.Process(context.Background(), "doc.png", "en", domain.Requirements{})
	if !result.Success {
		t.Fatalf("Process failed: %s", result.ErrorMessage)
	}
	if strings.Contains(result.Text, "<script>") {
		t.Fatalf("text not sanitized: %q", result.Text)
	}
}
