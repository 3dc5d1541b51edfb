// Package azurevision drives the Azure Computer Vision Read v3.2 API. Read is
// asynchronous: a submit returns 202 with an Operation-Location header that is
// polled until the analysis succeeds or fails.
package azurevision

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/docstream/ocrkit/internal/core/domain"
	"github.com/docstream/ocrkit/internal/infrastructure/provider/cloudapi"
	"github.com/docstream/ocrkit/internal/infrastructure/resilience"
)

const (
	Name            = "azure_vision"
	FreeTierMonthly = 5000

	defaultCost = 0.001 // $1.00 per 1000 transactions

	headerSubscriptionKey = "Ocp-Apim-Subscription-Key"
)

type Options struct {
	SubscriptionKey string
	Endpoint        string // e.g. https://<region>.api.cognitive.microsoft.com
	CostPerRequest  float64
	Executor        *resilience.Executor
	HTTPClient      *http.Client

	// PollInterval is the wait between read-result polls, PollTimeout the
	// overall cap on one read operation.
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type Provider struct {
	opts Options
}

func New(opts Options) *Provider {
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")
	if opts.CostPerRequest <= 0 {
		opts.CostPerRequest = defaultCost
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 60 * time.Second
	}
	return &Provider{opts: opts}
}

func (p *Provider) Name() string              { return Name }
func (p *Provider) Kind() domain.ProviderKind { return domain.KindCloud }

func (p *Provider) IsAvailable() bool {
	return p.opts.SubscriptionKey != "" && p.opts.Endpoint != ""
}

// Authenticate lists the vision models, which validates the key and endpoint
// without consuming read quota.
func (p *Provider) Authenticate(ctx context.Context) error {
	if !p.IsAvailable() {
		return domain.WrapError(domain.ErrCredential, "azure_vision auth", fmt.Errorf("subscription key or endpoint not configured"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.opts.Endpoint+"/vision/v3.2/models", nil)
	if err != nil {
		return domain.WrapError(domain.ErrCredential, "azure_vision auth", err)
	}
	req.Header.Set(headerSubscriptionKey, p.opts.SubscriptionKey)
	if _, err := cloudapi.Do(p.opts.HTTPClient, req, nil, Name, "auth"); err != nil {
		return domain.WrapError(domain.ErrCredential, "azure_vision auth", err)
	}
	return nil
}

func (p *Provider) ExtractText(ctx context.Context, filePath, language string) domain.Result {
	start := time.Now()
	if !p.IsAvailable() {
		return failed(language, "azure_vision provider not available", start)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return failed(language, fmt.Sprintf("read input: %v", err), start)
	}

	var read readResultResponse
	call := func(ctx context.Context) error {
		location, err := p.submitRead(ctx, content, language)
		if err != nil {
			return err
		}
		result, err := p.pollRead(ctx, location)
		if err != nil {
			return err
		}
		read = *result
		return nil
	}
	if p.opts.Executor != nil {
		err = p.opts.Executor.Execute(ctx, Name, call, cloudapi.Classify)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return failed(language, cloudapi.WrapTemporary("azure_vision read", err).Error(), start)
	}

	text, confidence, meta := parseReadResult(read)
	return domain.Result{
		Text:            text,
		Confidence:      confidence,
		Success:         true,
		DurationSeconds: time.Since(start).Seconds(),
		Provider:        Name,
		Language:        language,
		Metadata:        meta,
	}
}

func (p *Provider) EstimateCost(string) float64 { return p.opts.CostPerRequest }

func (p *Provider) SupportedLanguages() []string {
	return []string{"en", "ru", "de", "fr", "es", "it", "pt", "nl", "pl", "zh", "ja", "ko", "ar"}
}

func (p *Provider) Cleanup() error { return nil }

func (p *Provider) submitRead(ctx context.Context, content []byte, language string) (string, error) {
	endpoint := p.opts.Endpoint + "/vision/v3.2/read/analyze"
	if language != "" {
		endpoint += "?language=" + url.QueryEscape(language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("create read request: %w", err)
	}
	req.Header.Set(headerSubscriptionKey, p.opts.SubscriptionKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := cloudapi.Do(p.opts.HTTPClient, req, nil, Name, "read submit")
	if err != nil {
		return "", err
	}
	location := resp.Header.Get("Operation-Location")
	if location == "" {
		return "", fmt.Errorf("azure_vision read submit: missing Operation-Location header")
	}
	return location, nil
}

func (p *Provider) pollRead(ctx context.Context, location string) (*readResultResponse, error) {
	deadline := time.Now().Add(p.opts.PollTimeout)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, fmt.Errorf("create poll request: %w", err)
		}
		req.Header.Set(headerSubscriptionKey, p.opts.SubscriptionKey)

		var result readResultResponse
		if _, err := cloudapi.Do(p.opts.HTTPClient, req, &result, Name, "read poll"); err != nil {
			return nil, err
		}

		switch result.Status {
		case "succeeded":
			return &result, nil
		case "failed":
			return nil, fmt.Errorf("azure_vision read operation failed")
		case "notStarted", "running":
		default:
			return nil, fmt.Errorf("azure_vision read: unknown operation status %q", result.Status)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("azure_vision read: operation timed out")
		}
		timer := time.NewTimer(p.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

type readResultResponse struct {
	Status        string         `json:"status"`
	AnalyzeResult *analyzeResult `json:"analyzeResult"`
}

type analyzeResult struct {
	ReadResults []readPage `json:"readResults"`
}

type readPage struct {
	Page  int        `json:"page"`
	Lines []readLine `json:"lines"`
}

type readLine struct {
	Text  string     `json:"text"`
	Words []readWord `json:"words"`
}

type readWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// parseReadResult joins line texts with newlines and averages word
// confidences, scaled to a percentage.
func parseReadResult(read readResultResponse) (string, float64, map[string]any) {
	if read.AnalyzeResult == nil {
		return "", 0, map[string]any{"page_count": 0, "line_count": 0, "word_count": 0}
	}

	var lines []string
	var confSum float64
	var wordCount int
	for _, pg := range read.AnalyzeResult.ReadResults {
		for _, line := range pg.Lines {
			lines = append(lines, line.Text)
			for _, w := range line.Words {
				confSum += w.Confidence
				wordCount++
			}
		}
	}

	var confidence float64
	if wordCount > 0 {
		confidence = confSum / float64(wordCount) * 100
	}
	return strings.Join(lines, "\n"), confidence, map[string]any{
		"page_count": len(read.AnalyzeResult.ReadResults),
		"line_count": len(lines),
		"word_count": wordCount,
	}
}

func failed(language, message string, start time.Time) domain.Result {
	r := domain.FailedResult(Name, language, message)
	r.DurationSeconds = time.Since(start).Seconds()
	return r
}
