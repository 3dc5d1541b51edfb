package usecase

import (
	"github.com/docstream/ocrkit/internal/config"
	"github.com/docstream/ocrkit/internal/core/domain"
)

// qualityThreshold maps the requested accuracy to a confidence floor.
func qualityThreshold(q config.QualityConfig, accuracy domain.Accuracy) float64 {
	switch accuracy {
	case domain.AccuracyHigh:
		return q.ConfidenceHigh
	case domain.AccuracyLow:
		return q.ConfidenceLow
	default:
		return q.ConfidenceDefault
	}
}

// qualityAcceptable decides whether a provider-reported success is good
// enough to return. A rejection here drives fallback exactly like a provider
// failure would.
func qualityAcceptable(q config.QualityConfig, accuracy domain.Accuracy, result domain.Result) bool {
	if !result.Success {
		return false
	}
	if result.Confidence < qualityThreshold(q, accuracy) {
		return false
	}
	return len(result.Text) >= q.MinTextLength
}
