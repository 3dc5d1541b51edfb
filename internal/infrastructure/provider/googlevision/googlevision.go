// Package googlevision calls the Google Cloud Vision images:annotate REST
// endpoint. Plain text detection carries no per-word confidence, so results
// default to 95; document mode averages the reported block, paragraph and
// word confidences instead.
package googlevision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
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
	Name            = "google_vision"
	FreeTierMonthly = 1000

	defaultEndpoint = "https://vision.googleapis.com"
	defaultCost     = 0.0015 // $1.50 per 1000 requests
	defaultConf     = 95.0
)

type Options struct {
	APIKey         string
	Endpoint       string // override for tests
	DocumentMode   bool   // DOCUMENT_TEXT_DETECTION instead of TEXT_DETECTION
	CostPerRequest float64
	Executor       *resilience.Executor
	HTTPClient     *http.Client
}

type Provider struct {
	opts Options
}

func New(opts Options) *Provider {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")
	if opts.CostPerRequest <= 0 {
		opts.CostPerRequest = defaultCost
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Provider{opts: opts}
}

func (p *Provider) Name() string              { return Name }
func (p *Provider) Kind() domain.ProviderKind { return domain.KindCloud }

func (p *Provider) IsAvailable() bool { return p.opts.APIKey != "" }

// Authenticate posts an empty annotate batch. The API validates the key
// without billing any image units.
func (p *Provider) Authenticate(ctx context.Context) error {
	if p.opts.APIKey == "" {
		return domain.WrapError(domain.ErrCredential, "google_vision auth", fmt.Errorf("api key not configured"))
	}
	_, err := p.annotate(ctx, annotateRequest{Requests: []imageRequest{}})
	if err != nil {
		return domain.WrapError(domain.ErrCredential, "google_vision auth", err)
	}
	return nil
}

func (p *Provider) ExtractText(ctx context.Context, filePath, language string) domain.Result {
	start := time.Now()
	if !p.IsAvailable() {
		return failed(language, "google_vision provider not available", start)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return failed(language, fmt.Sprintf("read input: %v", err), start)
	}

	feature := "TEXT_DETECTION"
	if p.opts.DocumentMode {
		feature = "DOCUMENT_TEXT_DETECTION"
	}
	req := annotateRequest{Requests: []imageRequest{{
		Image:    imageContent{Content: base64.StdEncoding.EncodeToString(content)},
		Features: []featureSpec{{Type: feature}},
	}}}
	if language != "" {
		req.Requests[0].ImageContext = &imageContext{LanguageHints: []string{language}}
	}

	var resp annotateResponse
	call := func(ctx context.Context) error {
		r, err := p.annotate(ctx, req)
		if err != nil {
			return err
		}
		resp = *r
		return nil
	}
	if p.opts.Executor != nil {
		err = p.opts.Executor.Execute(ctx, Name, call, cloudapi.Classify)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return failed(language, cloudapi.WrapTemporary("google_vision annotate", err).Error(), start)
	}

	if len(resp.Responses) == 0 {
		return failed(language, "empty annotate response", start)
	}
	ann := resp.Responses[0]
	if ann.Error != nil && ann.Error.Message != "" {
		return failed(language, ann.Error.Message, start)
	}

	text, confidence, meta := parseAnnotation(ann, p.opts.DocumentMode)
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
	return []string{"en", "ru", "de", "fr", "es", "it", "pt", "nl", "pl", "uk", "zh", "ja", "ko", "ar"}
}

func (p *Provider) Cleanup() error { return nil }

func (p *Provider) annotate(ctx context.Context, payload annotateRequest) (*annotateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal annotate request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/images:annotate?key=%s", p.opts.Endpoint, url.QueryEscape(p.opts.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create annotate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out annotateResponse
	if _, err := cloudapi.Do(p.opts.HTTPClient, req, &out, Name, "annotate"); err != nil {
		return nil, err
	}
	return &out, nil
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image        imageContent  `json:"image"`
	Features     []featureSpec `json:"features"`
	ImageContext *imageContext `json:"imageContext,omitempty"`
}

type imageContent struct {
	Content string `json:"content"`
}

type featureSpec struct {
	Type string `json:"type"`
}

type imageContext struct {
	LanguageHints []string `json:"languageHints"`
}

type annotateResponse struct {
	Responses []annotation `json:"responses"`
}

type annotation struct {
	Error              *apiError      `json:"error"`
	TextAnnotations    []textAnnot    `json:"textAnnotations"`
	FullTextAnnotation *fullTextAnnot `json:"fullTextAnnotation"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type textAnnot struct {
	Description string `json:"description"`
}

type fullTextAnnot struct {
	Text  string `json:"text"`
	Pages []page `json:"pages"`
}

type page struct {
	Blocks []block `json:"blocks"`
}

type block struct {
	Confidence float64     `json:"confidence"`
	Paragraphs []paragraph `json:"paragraphs"`
}

type paragraph struct {
	Confidence float64 `json:"confidence"`
	Words      []word  `json:"words"`
}

type word struct {
	Confidence float64 `json:"confidence"`
}

func parseAnnotation(ann annotation, documentMode bool) (string, float64, map[string]any) {
	if documentMode && ann.FullTextAnnotation != nil {
		var confidences []float64
		var wordCount int
		for _, pg := range ann.FullTextAnnotation.Pages {
			for _, blk := range pg.Blocks {
				confidences = append(confidences, blk.Confidence*100)
				for _, par := range blk.Paragraphs {
					confidences = append(confidences, par.Confidence*100)
					for _, w := range par.Words {
						confidences = append(confidences, w.Confidence*100)
						wordCount++
					}
				}
			}
		}
		conf := defaultConf
		if len(confidences) > 0 {
			var sum float64
			for _, c := range confidences {
				sum += c
			}
			conf = sum / float64(len(confidences))
		}
		return ann.FullTextAnnotation.Text, conf, map[string]any{
			"detection_type": "document",
			"word_count":     wordCount,
		}
	}

	if len(ann.TextAnnotations) == 0 {
		return "", 0, map[string]any{"detection_type": "text", "word_count": 0}
	}
	// The first annotation is the full text; the rest are individual words.
	return ann.TextAnnotations[0].Description, defaultConf, map[string]any{
		"detection_type": "text",
		"word_count":     len(ann.TextAnnotations) - 1,
	}
}

func failed(language, message string, start time.Time) domain.Result {
	r := domain.FailedResult(Name, language, message)
	r.DurationSeconds = time.Since(start).Seconds()
	return r
}
