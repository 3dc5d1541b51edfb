package domain

import "time"

// UsageRecord is an append-only fact about one processing attempt. Records are
// never updated; only an explicit retention cleanup removes rows older than a
// caller-specified horizon.
type UsageRecord struct {
	ID              string    `json:"id" db:"id"`
	Timestamp       time.Time `json:"timestamp" db:"ts"`
	Provider        string    `json:"provider" db:"provider"`
	InputPath       string    `json:"input_path" db:"input_path"`
	InputSizeMB     float64   `json:"input_size_mb" db:"input_size_mb"`
	DurationSeconds float64   `json:"duration_seconds" db:"duration_seconds"`
	Cost            float64   `json:"cost" db:"cost"`
	Success         bool      `json:"success" db:"success"`
	Confidence      float64   `json:"confidence" db:"confidence"`
	CharacterCount  int       `json:"character_count" db:"character_count"`
}

// ProviderUsage aggregates the ledger per provider over a window.
type ProviderUsage struct {
	Provider       string  `json:"provider" db:"provider"`
	Requests       int64   `json:"requests" db:"requests"`
	Cost           float64 `json:"cost" db:"cost"`
	AvgDuration    float64 `json:"avg_processing_time" db:"avg_duration"`
	AvgConfidence  float64 `json:"avg_confidence" db:"avg_confidence"`
	CostPerRequest float64 `json:"cost_per_request" db:"-"`
}

// UsageStats is the window-wide aggregate behind reports and recommendations.
type UsageStats struct {
	PeriodDays        int                      `json:"period_days"`
	TotalRequests     int64                    `json:"total_requests"`
	TotalCost         float64                  `json:"total_cost"`
	AvgCostPerRequest float64                  `json:"avg_cost_per_request"`
	SuccessfulCount   int64                    `json:"successful_requests"`
	SuccessRate       float64                  `json:"success_rate"`
	AvgDuration       float64                  `json:"avg_processing_time"`
	AvgConfidence     float64                  `json:"avg_confidence"`
	TotalCharacters   int64                    `json:"total_characters"`
	ByProvider        map[string]ProviderUsage `json:"by_provider"`
}

type RecommendationType string

const (
	RecommendCostReduction  RecommendationType = "cost_reduction"
	RecommendAccuracyVsCost RecommendationType = "accuracy_vs_cost"
	RecommendFreeTier       RecommendationType = "free_tier_optimization"
	RecommendBatching       RecommendationType = "performance_optimization"
)

// Recommendation is advisory only; it never blocks processing.
type Recommendation struct {
	Type             RecommendationType `json:"type"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	PotentialSavings float64            `json:"potential_savings"`
	Action           string             `json:"action"`
}

type AlertLevel string

const (
	AlertBudgetWarning  AlertLevel = "budget_warning"
	AlertBudgetExceeded AlertLevel = "budget_exceeded"
)

// BudgetAlert is computed on demand from the ledger against a per-provider
// monthly ceiling; alerts are never pushed.
type BudgetAlert struct {
	Level        AlertLevel `json:"type"`
	Provider     string     `json:"provider"`
	Budget       float64    `json:"budget"`
	CurrentCost  float64    `json:"current_cost"`
	UsagePercent float64    `json:"usage_percent"`
	Message      string     `json:"message"`
}
