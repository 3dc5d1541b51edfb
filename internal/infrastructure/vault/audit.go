package vault

import (
	"bufio"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/docstream/ocrkit/internal/core/domain"
	"github.com/docstream/ocrkit/internal/core/ports"
)

// auditLog appends one immutable entry per vault operation to a JSONL file.
// Entries carry only action and service names, never key material or
// decrypted secrets. A failed audit write is logged and never propagated:
// bookkeeping must not block the operation it records.
type auditLog struct {
	mu     sync.Mutex
	path   string
	actor  string
	clock  ports.Clock
	logger *slog.Logger
}

func newAuditLog(path string, clock ports.Clock, logger *slog.Logger) *auditLog {
	actor := os.Getenv("USER")
	if actor == "" {
		actor = "unknown"
	}
	return &auditLog{path: path, actor: actor, clock: clock, logger: logger}
}

func (a *auditLog) record(action, service string, success bool, detail string) {
	entry := domain.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: a.clock.Now().UTC(),
		Action:    action,
		Service:   service,
		Success:   success,
		Detail:    detail,
		Actor:     a.actor,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		a.logger.Error("audit_marshal_failed", "action", action, "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		a.logger.Error("audit_write_failed", "action", action, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		a.logger.Error("audit_write_failed", "action", action, "error", err)
	}
}

// entries returns audit entries from the last N days, newest first. Lines
// that fail to parse are skipped; the log is append-only and a torn tail
// write must not hide the rest of the trail.
func (a *auditLog) entries(days int) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.Open(a.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	cutoff := a.clock.Now().AddDate(0, 0, -days)
	var out []domain.AuditEntry

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry domain.AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
