// Package textract wraps AWS Textract through the v2 SDK. Pricing is per
// page, and the FORMS/TABLES analysis features carry their own surcharges,
// so the cost estimate multiplies by the document page count.
package textract

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"

	"github.com/docstream/ocrkit/internal/core/domain"
	"github.com/docstream/ocrkit/internal/infrastructure/provider/docmeta"
	"github.com/docstream/ocrkit/internal/infrastructure/resilience"
)

const (
	Name            = "aws_textract"
	FreeTierMonthly = 1000

	costPer1000Pages       = 1.50
	costPer1000PagesForms  = 50.00
	costPer1000PagesTables = 15.00

	defaultRegion = "us-east-1"
)

// API is the Textract surface the provider needs; satisfied by
// *textract.Client and by test fakes.
type API interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
	AnalyzeDocument(ctx context.Context, params *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

// IdentityAPI is the STS surface used by Authenticate; satisfied by
// *sts.Client and by test fakes.
type IdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Tables          bool
	Forms           bool
	Executor        *resilience.Executor
	Client          API         // test override; built from credentials when nil
	Identity        IdentityAPI // test override; built from credentials when nil
}

type Provider struct {
	opts Options

	initOnce sync.Once
	client   API
	initErr  error
}

func New(opts Options) *Provider {
	if opts.Region == "" {
		opts.Region = defaultRegion
	}
	return &Provider{opts: opts, client: opts.Client}
}

func (p *Provider) Name() string              { return Name }
func (p *Provider) Kind() domain.ProviderKind { return domain.KindCloud }

func (p *Provider) IsAvailable() bool {
	if p.opts.Client != nil {
		return true
	}
	return p.opts.AccessKeyID != "" && p.opts.SecretAccessKey != ""
}

// Authenticate calls STS GetCallerIdentity, which is free and never touches
// the Textract API. It distinguishes invalid keys (an API error back from
// STS) from an unreachable service (a transport error).
func (p *Provider) Authenticate(ctx context.Context) error {
	if !p.IsAvailable() {
		return domain.WrapError(domain.ErrCredential, "aws_textract auth", fmt.Errorf("access keys not configured"))
	}

	identity := p.opts.Identity
	if identity == nil {
		if p.opts.Client != nil {
			return nil
		}
		cfg, err := p.awsConfig(ctx)
		if err != nil {
			return domain.WrapError(domain.ErrCredential, "aws_textract auth", err)
		}
		identity = sts.NewFromConfig(cfg)
	}

	if _, err := identity.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return domain.WrapError(domain.ErrCredential, "aws_textract auth",
				fmt.Errorf("credentials rejected: %w", err))
		}
		return domain.WrapError(domain.ErrTemporary, "aws_textract auth",
			fmt.Errorf("identity service unreachable: %w", err))
	}
	return nil
}

func (p *Provider) ExtractText(ctx context.Context, filePath, language string) domain.Result {
	start := time.Now()
	if !p.IsAvailable() {
		return failed(language, "aws_textract provider not available", start)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return failed(language, fmt.Sprintf("read input: %v", err), start)
	}

	client, err := p.api(ctx)
	if err != nil {
		return failed(language, fmt.Sprintf("init textract client: %v", err), start)
	}

	var blocks []types.Block
	var detectionType string
	call := func(ctx context.Context) error {
		doc := &types.Document{Bytes: content}
		if features := p.featureTypes(); len(features) > 0 {
			out, err := client.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
				Document:     doc,
				FeatureTypes: features,
			})
			if err != nil {
				return err
			}
			blocks, detectionType = out.Blocks, "analysis"
			return nil
		}
		out, err := client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{Document: doc})
		if err != nil {
			return err
		}
		blocks, detectionType = out.Blocks, "text"
		return nil
	}
	if p.opts.Executor != nil {
		err = p.opts.Executor.Execute(ctx, Name, call, classify)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return failed(language, err.Error(), start)
	}

	text, confidence, wordCount := parseBlocks(blocks)
	return domain.Result{
		Text:            text,
		Confidence:      confidence,
		Success:         true,
		DurationSeconds: time.Since(start).Seconds(),
		Provider:        Name,
		Language:        language,
		Metadata: map[string]any{
			"detection_type": detectionType,
			"word_count":     wordCount,
			"block_count":    len(blocks),
		},
	}
}

// EstimateCost multiplies the per-page rate by the page count; multi-page
// PDFs cost proportionally more, images count as one page.
func (p *Provider) EstimateCost(filePath string) float64 {
	perPage := costPer1000Pages / 1000
	if p.opts.Forms {
		perPage += costPer1000PagesForms / 1000
	}
	if p.opts.Tables {
		perPage += costPer1000PagesTables / 1000
	}
	pages := docmeta.Inspect(filePath).Pages
	if pages < 1 {
		pages = 1
	}
	return perPage * float64(pages)
}

func (p *Provider) SupportedLanguages() []string {
	// Textract officially supports Latin-script languages only.
	return []string{"en", "es", "it", "pt", "fr", "de"}
}

func (p *Provider) Cleanup() error { return nil }

func (p *Provider) featureTypes() []types.FeatureType {
	var features []types.FeatureType
	if p.opts.Tables {
		features = append(features, types.FeatureTypeTables)
	}
	if p.opts.Forms {
		features = append(features, types.FeatureTypeForms)
	}
	return features
}

func (p *Provider) api(ctx context.Context) (API, error) {
	p.initOnce.Do(func() {
		if p.client != nil {
			return
		}
		cfg, err := p.awsConfig(ctx)
		if err != nil {
			p.initErr = err
			return
		}
		p.client = textract.NewFromConfig(cfg)
	})
	return p.client, p.initErr
}

func (p *Provider) awsConfig(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(p.opts.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.opts.AccessKeyID, p.opts.SecretAccessKey, ""),
		),
	)
}

// parseBlocks joins LINE blocks into the text body and averages confidence
// over LINE and WORD blocks alike.
func parseBlocks(blocks []types.Block) (string, float64, int) {
	var lines []string
	var confSum float64
	var confCount, wordCount int
	for _, b := range blocks {
		switch b.BlockType {
		case types.BlockTypeLine:
			lines = append(lines, aws.ToString(b.Text))
		case types.BlockTypeWord:
			wordCount++
		default:
			continue
		}
		if b.Confidence != nil {
			confSum += float64(*b.Confidence)
			confCount++
		}
	}
	var confidence float64
	if confCount > 0 {
		confidence = confSum / float64(confCount)
	}
	return strings.Join(lines, "\n"), confidence, wordCount
}

func classify(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ProvisionedThroughputExceededException",
			"InternalServerError", "ServiceUnavailableException", "LimitExceededException":
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func failed(language, message string, start time.Time) domain.Result {
	r := domain.FailedResult(Name, language, message)
	r.DurationSeconds = time.Since(start).Seconds()
	return r
}
