// Package tesseract is the local OCR provider. It costs nothing per request
// and works offline, which makes it the default first choice for standard
// documents.
package tesseract

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/docstream/ocrkit/internal/core/domain"
)

const Name = "local"

// ISO 639-1 codes mapped to the traineddata names Tesseract expects.
// Unknown codes pass through untouched so three-letter codes keep working.
var languageCodes = map[string]string{
	"en": "eng",
	"ru": "rus",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
	"pt": "por",
	"nl": "nld",
	"pl": "pol",
	"uk": "ukr",
	"zh": "chi_sim",
	"ja": "jpn",
	"ko": "kor",
	"ar": "ara",
}

type Provider struct {
	clientFactory func() *gosseract.Client

	mu        sync.Mutex
	languages []string
}

func New() *Provider {
	return &Provider{clientFactory: gosseract.NewClient}
}

func (p *Provider) Name() string              { return Name }
func (p *Provider) Kind() domain.ProviderKind { return domain.KindLocal }

func (p *Provider) IsAvailable() bool {
	available := true
	func() {
		defer func() {
			if recover() != nil {
				available = false
			}
		}()
		c := p.clientFactory()
		if c == nil {
			available = false
			return
		}
		c.Close()
	}()
	return available
}

func (p *Provider) Authenticate(context.Context) error { return nil }

func (p *Provider) ExtractText(ctx context.Context, filePath, language string) (result domain.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = domain.FailedResult(Name, language, fmt.Sprintf("tesseract panic: %v", r))
			result.DurationSeconds = time.Since(start).Seconds()
		}
	}()

	if err := ctx.Err(); err != nil {
		return failed(language, err.Error(), start)
	}

	c := p.clientFactory()
	defer c.Close()

	if err := c.SetImage(filePath); err != nil {
		return failed(language, fmt.Sprintf("set image: %v", err), start)
	}
	if lang := TessLanguage(language); lang != "" {
		if err := c.SetLanguage(lang); err != nil {
			return failed(language, fmt.Sprintf("set language %s: %v", lang, err), start)
		}
	}

	text, err := c.Text()
	if err != nil {
		return failed(language, fmt.Sprintf("recognize text: %v", err), start)
	}
	text = strings.TrimSpace(text)
	confidence, wordCount := wordConfidence(c)

	return domain.Result{
		Text:            text,
		Confidence:      confidence,
		Success:         true,
		DurationSeconds: time.Since(start).Seconds(),
		Provider:        Name,
		Language:        language,
		Metadata: map[string]any{
			"word_count": wordCount,
			"engine":     "tesseract",
		},
	}
}

func (p *Provider) EstimateCost(string) float64 { return 0 }

// SupportedLanguages reports installed traineddata, cached after the first
// successful read. Falls back to the static map when the binding cannot list
// the tessdata directory.
func (p *Provider) SupportedLanguages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.languages != nil {
		return append([]string(nil), p.languages...)
	}

	langs, err := gosseract.GetAvailableLanguages()
	if err != nil || len(langs) == 0 {
		langs = make([]string, 0, len(languageCodes))
		for _, code := range languageCodes {
			langs = append(langs, code)
		}
	}
	sort.Strings(langs)
	p.languages = langs
	return append([]string(nil), p.languages...)
}

func (p *Provider) Cleanup() error { return nil }

// TessLanguage resolves a user-facing language code to a traineddata name.
func TessLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return ""
	}
	if mapped, ok := languageCodes[language]; ok {
		return mapped
	}
	return language
}

// wordConfidence averages word-level confidences as reported by the engine,
// already on a 0..100 scale.
func wordConfidence(c *gosseract.Client) (float64, int) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0, 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes)), len(boxes)
}

func failed(language, message string, start time.Time) domain.Result {
	r := domain.FailedResult(Name, language, message)
	r.DurationSeconds = time.Since(start).Seconds()
	return r
}
