package domain

type ProviderKind string

const (
	KindLocal ProviderKind = "local"
	KindCloud ProviderKind = "cloud"
)

// Descriptor identifies one registered OCR provider. It is immutable for the
// process lifetime; re-registering a name replaces the descriptor wholesale.
type Descriptor struct {
	Name           string       `json:"name"`
	Kind           ProviderKind `json:"kind"`
	Priority       int          `json:"priority"`
	CostPerRequest float64      `json:"cost_per_request"`
	Available      bool         `json:"available"`
}

// PerformanceStats is rebuilt incrementally on every completed attempt and is
// not persisted beyond the process lifetime. AverageDurationSeconds is
// computed over successful requests only.
type PerformanceStats struct {
	TotalRequests          int64   `json:"total_requests"`
	SuccessfulRequests     int64   `json:"successful_requests"`
	FailedRequests         int64   `json:"failed_requests"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
}
