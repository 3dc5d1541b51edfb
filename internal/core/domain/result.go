package domain

type Accuracy string

const (
	AccuracyLow    Accuracy = "low"
	AccuracyMedium Accuracy = "medium"
	AccuracyHigh   Accuracy = "high"
)

type Speed string

const (
	SpeedFast   Speed = "fast"
	SpeedMedium Speed = "medium"
	SpeedSlow   Speed = "slow"
)

type CostPreference string

const (
	CostMinimize CostPreference = "minimize"
	CostBalanced CostPreference = "balanced"
	CostPremium  CostPreference = "premium"
)

// Requirements steer provider selection for a single processing call.
// OfflineOnly is a hard constraint: no paid provider may be contacted.
type Requirements struct {
	Accuracy       Accuracy       `json:"accuracy,omitempty"`
	Speed          Speed          `json:"speed,omitempty"`
	CostPreference CostPreference `json:"cost_preference,omitempty"`
	OfflineOnly    bool           `json:"offline_only,omitempty"`
	CloudPreferred bool           `json:"cloud_preferred,omitempty"`
}

// Result is the outcome of one provider invocation. Created once per attempt
// and never mutated afterwards.
type Result struct {
	Text            string         `json:"text"`
	Confidence      float64        `json:"confidence"`
	Success         bool           `json:"success"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
	Provider        string         `json:"provider,omitempty"`
	Language        string         `json:"language,omitempty"`
	UsedFallback    bool           `json:"used_fallback,omitempty"`
	FallbackAttempt int            `json:"fallback_attempt,omitempty"`
	Suggestions     []string       `json:"suggestions,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// FailedResult builds a failure result that never crosses the provider
// boundary as a panic or error value.
func FailedResult(provider, language, message string) Result {
	return Result{
		Success:      false,
		ErrorMessage: message,
		Provider:     provider,
		Language:     language,
	}
}
