package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docstream/ocrkit/internal/config"
	"github.com/docstream/ocrkit/internal/core/domain"
	"github.com/docstream/ocrkit/internal/core/ports"
	"github.com/docstream/ocrkit/internal/infrastructure/provider/docmeta"
	"github.com/docstream/ocrkit/internal/observability/metrics"
)

// Orchestrator turns one input file into extracted text: validate, select a
// provider by strategy, gate the result on quality, fall back across the
// remaining providers, and record every attempt in the usage ledger.
type Orchestrator struct {
	registry  *Registry
	validator ports.Validator
	ledger    ports.UsageLedger
	metrics   *metrics.ManagerMetrics
	logger    *slog.Logger

	strategy        config.Strategy
	quality         config.QualityConfig
	fallbackEnabled bool
	maxRetries      int
	callTimeout     time.Duration
	retryDelay      time.Duration
}

type OrchestratorOptions struct {
	Registry  *Registry
	Validator ports.Validator
	Ledger    ports.UsageLedger
	Metrics   *metrics.ManagerMetrics
	Logger    *slog.Logger

	Strategy        config.Strategy
	Quality         config.QualityConfig
	FallbackEnabled bool
	MaxRetries      int
	CallTimeout     time.Duration
	RetryDelay      time.Duration
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Quality == (config.QualityConfig{}) {
		opts.Quality = config.Defaults().Quality
	}
	return &Orchestrator{
		registry:        opts.Registry,
		validator:       opts.Validator,
		ledger:          opts.Ledger,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		strategy:        opts.Strategy,
		quality:         opts.Quality,
		fallbackEnabled: opts.FallbackEnabled,
		maxRetries:      opts.MaxRetries,
		callTimeout:     opts.CallTimeout,
		retryDelay:      opts.RetryDelay,
	}
}

func (o *Orchestrator) Registry() *Registry { return o.registry }

// Process runs the full pipeline for one file. It never returns an error:
// every failure mode is expressed in the Result so callers handle exactly one
// shape.
func (o *Orchestrator) Process(ctx context.Context, filePath, language string, req domain.Requirements) domain.Result {
	if o.validator != nil {
		if err := o.validator.ValidateInputPath(filePath); err != nil {
			o.logger.Warn("input_rejected", "path", filePath, "error", err)
			return domain.FailedResult("", language, fmt.Sprintf("security validation failed: %v", err))
		}
	}

	info := docmeta.Inspect(filePath)

	tried := make(map[string]bool)
	primary, err := o.selectProvider(info, req)
	if err != nil {
		if req.OfflineOnly {
			return domain.FailedResult("", language, err.Error())
		}
		o.logger.Warn("primary_selection_failed", "error", err)
	} else {
		tried[primary] = true
		result := o.attempt(ctx, primary, filePath, language, info)
		if qualityAcceptable(o.quality, req.Accuracy, result) {
			return o.finish(result, false, 0)
		}
		o.logger.Warn("primary_rejected",
			"provider", primary,
			"success", result.Success,
			"confidence", result.Confidence,
			"error", result.ErrorMessage,
		)
	}

	if o.fallbackEnabled {
		if result, ok := o.fallback(ctx, filePath, language, req, info, tried); ok {
			return result
		}
	}

	// A canceled caller is not a provider problem; the suggestions would
	// only mislead.
	if err := ctx.Err(); err != nil {
		return domain.FailedResult("", language, fmt.Sprintf("processing canceled: %v", err))
	}

	return domain.Result{
		Success:      false,
		ErrorMessage: "all OCR providers failed",
		Language:     language,
		Suggestions:  o.troubleshootingSuggestions(),
	}
}

// fallback walks the remaining providers in priority order, giving each up to
// maxRetries attempts with a short pause between them.
func (o *Orchestrator) fallback(
	ctx context.Context,
	filePath, language string,
	req domain.Requirements,
	info docmeta.Info,
	tried map[string]bool,
) (domain.Result, bool) {
	for _, name := range o.registry.FallbackOrder() {
		if tried[name] || !o.providerAvailable(name) {
			continue
		}
		if req.OfflineOnly && o.registry.descriptor(name).Kind != domain.KindLocal {
			continue
		}

		for attempt := 1; attempt <= o.maxRetries; attempt++ {
			if ctx.Err() != nil {
				return domain.Result{}, false
			}

			result := o.attempt(ctx, name, filePath, language, info)
			if qualityAcceptable(o.quality, req.Accuracy, result) {
				if o.metrics != nil {
					o.metrics.ObserveFallback()
				}
				return o.finish(result, true, attempt), true
			}
			o.logger.Warn("fallback_attempt_failed",
				"provider", name,
				"attempt", attempt,
				"max_retries", o.maxRetries,
				"error", result.ErrorMessage,
			)

			if attempt < o.maxRetries {
				timer := time.NewTimer(o.retryDelay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return domain.Result{}, false
				case <-timer.C:
				}
			}
		}
	}
	return domain.Result{}, false
}

// attempt runs one provider call with the per-call timeout and records it in
// the ledger and metrics. Bookkeeping failures are logged, never propagated:
// a usable OCR result always wins over a missed ledger row.
func (o *Orchestrator) attempt(ctx context.Context, name, filePath, language string, info docmeta.Info) domain.Result {
	provider, ok := o.registry.Provider(name)
	if !ok {
		return domain.FailedResult(name, language, fmt.Sprintf("provider %s not registered", name))
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	if o.metrics != nil {
		o.metrics.StartAttempt()
	}
	start := time.Now()
	result := provider.ExtractText(callCtx, filePath, language)
	duration := time.Since(start)
	if result.DurationSeconds == 0 {
		result.DurationSeconds = duration.Seconds()
	}
	result.Provider = name

	// A provider-reported success is billable even if the quality gate later
	// rejects it; the call still happened.
	var cost float64
	if result.Success {
		cost = provider.EstimateCost(filePath)
	}

	o.registry.RecordAttempt(name, result.Success, result.DurationSeconds)
	if o.metrics != nil {
		o.metrics.FinishAttempt(name, duration, result.Success, cost)
	}
	if o.ledger != nil {
		rec := domain.UsageRecord{
			Provider:        name,
			InputPath:       filePath,
			InputSizeMB:     info.SizeMB,
			DurationSeconds: result.DurationSeconds,
			Cost:            cost,
			Success:         result.Success,
			Confidence:      result.Confidence,
			CharacterCount:  len(result.Text),
		}
		if err := o.ledger.RecordUsage(ctx, rec); err != nil {
			o.logger.Error("usage_record_failed", "provider", name, "error", err)
		}
	}
	return result
}

func (o *Orchestrator) finish(result domain.Result, usedFallback bool, attempt int) domain.Result {
	result.UsedFallback = usedFallback
	result.FallbackAttempt = attempt
	if o.validator != nil {
		result.Text = o.validator.SanitizeOutput(result.Text)
	}
	return result
}

func (o *Orchestrator) troubleshootingSuggestions() []string {
	descriptors := o.registry.Descriptors()

	var suggestions []string
	if len(descriptors) == 0 {
		suggestions = append(suggestions, "No OCR providers are configured. Check your installation and configuration.")
	}

	hasLocal, hasCloud := false, false
	for _, d := range descriptors {
		switch d.Kind {
		case domain.KindLocal:
			hasLocal = true
		case domain.KindCloud:
			hasCloud = true
		}
	}
	if !hasLocal {
		suggestions = append(suggestions, "Local OCR provider (Tesseract) is not available. Install required dependencies.")
	}
	if !hasCloud {
		suggestions = append(suggestions, "No cloud OCR providers are configured. Consider setting up Google Vision, AWS Textract, or Azure Vision.")
	}

	suggestions = append(suggestions,
		"Check image quality and format. Ensure the image contains readable text.",
		"Verify network connectivity if using cloud providers.",
		"Check API credentials and quotas for cloud services.",
	)
	return suggestions
}
