package domain

import "time"

// AuditEntry records one credential vault operation. Entries are append-only
// and never rewritten; the completeness of the trail is itself a security
// property, so every vault call emits exactly one entry regardless of outcome.
// Key material and secret values never appear here.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Service   string    `json:"service"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
	Actor     string    `json:"actor"`
}
