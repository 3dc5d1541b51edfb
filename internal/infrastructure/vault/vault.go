package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/docstream/ocrkit/internal/core/domain"
	"github.com/docstream/ocrkit/internal/core/ports"
)

const (
	credExt   = ".cred"
	backupExt = ".cred.backup"
	auditFile = "audit.log"
)

var serviceNamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// entry is the plaintext shape sealed into a .cred file. It exists in memory
// only for the duration of an access call.
type entry struct {
	Service     string            `json:"service"`
	Credentials map[string]string `json:"credentials"`
	CreatedAt   time.Time         `json:"created_at"`
	Version     int               `json:"version"`
}

type Options struct {
	Dir          string // defaults to ~/.ocrkit
	MasterSecret string // explicit > OCRKIT_MASTER_KEY > host identity
	Clock        ports.Clock
	Logger       *slog.Logger
}

// Vault stores per-provider secrets encrypted on disk with owner-only
// permissions, and appends one audit entry for every operation regardless of
// outcome.
type Vault struct {
	dir    string
	cipher *boxCipher
	audit  *auditLog
	logger *slog.Logger
}

func New(opts Options) (*Vault, error) {
	dir := opts.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".ocrkit")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}

	secret := opts.MasterSecret
	if secret == "" {
		secret = os.Getenv("OCRKIT_MASTER_KEY")
	}
	if secret == "" {
		secret = hostIdentitySecret()
		logger.Warn("vault_master_key_fallback",
			"detail", "deriving master secret from local user/host identity; set OCRKIT_MASTER_KEY for real protection")
	}

	cipher, err := newBoxCipher(dir, secret)
	if err != nil {
		return nil, err
	}

	return &Vault{
		dir:    dir,
		cipher: cipher,
		audit:  newAuditLog(filepath.Join(dir, auditFile), clock, logger),
		logger: logger,
	}, nil
}

// hostIdentitySecret is the last-resort master secret. It offers no real
// secrecy and its use is logged at construction time.
func hostIdentitySecret() string {
	user := os.Getenv("USER")
	host, _ := os.Hostname()
	return fmt.Sprintf("%s@%s/ocrkit", user, host)
}

func (v *Vault) credPath(service string) string {
	return filepath.Join(v.dir, service+credExt)
}

func (v *Vault) Store(service string, secrets map[string]string) error {
	if err := v.store(service, secrets, 1); err != nil {
		v.audit.record("store_credentials", service, false, err.Error())
		return err
	}
	v.audit.record("store_credentials", service, true, "")
	return nil
}

func (v *Vault) store(service string, secrets map[string]string, version int) error {
	if !serviceNamePattern.MatchString(service) {
		return domain.WrapError(domain.ErrCredential, "store credentials", fmt.Errorf("invalid service name %q", service))
	}
	if len(secrets) == 0 {
		return domain.WrapError(domain.ErrCredential, "store credentials", errors.New("empty credentials"))
	}

	plaintext, err := json.Marshal(entry{
		Service:     service,
		Credentials: secrets,
		CreatedAt:   time.Now().UTC(),
		Version:     version,
	})
	if err != nil {
		return domain.WrapError(domain.ErrCredential, "store credentials", err)
	}

	sealed, err := v.cipher.seal(plaintext)
	if err != nil {
		return domain.WrapError(domain.ErrCredential, "store credentials", err)
	}
	if err := os.WriteFile(v.credPath(service), sealed, 0o600); err != nil {
		return domain.WrapError(domain.ErrCredential, "store credentials", err)
	}
	return nil
}

// Get returns the secrets for service, or (nil, nil) when none exist.
// Environment overrides for known services take precedence and bypass the
// encrypted store entirely.
func (v *Vault) Get(service string) (map[string]string, error) {
	if creds := credentialsFromEnv(service); creds != nil {
		v.audit.record("get_credentials", service, true, "from_environment")
		return creds, nil
	}

	e, err := v.readEntry(service)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			v.audit.record("get_credentials", service, false, "not_found")
			return nil, nil
		}
		v.audit.record("get_credentials", service, false, err.Error())
		return nil, domain.WrapError(domain.ErrCredential, "get credentials", err)
	}

	v.audit.record("get_credentials", service, true, "from_store")
	return e.Credentials, nil
}

func (v *Vault) readEntry(service string) (*entry, error) {
	sealed, err := os.ReadFile(v.credPath(service))
	if err != nil {
		return nil, err
	}
	plaintext, err := v.cipher.open(sealed)
	if err != nil {
		return nil, fmt.Errorf("decrypt entry: %w", err)
	}
	var e entry
	if err := json.Unmarshal(plaintext, &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &e, nil
}

func (v *Vault) Delete(service string) error {
	err := os.Remove(v.credPath(service))
	if err != nil {
		detail := "not_found"
		if !errors.Is(err, fs.ErrNotExist) {
			detail = err.Error()
		}
		v.audit.record("delete_credentials", service, false, detail)
		return domain.WrapError(domain.ErrCredential, "delete credentials", err)
	}
	v.audit.record("delete_credentials", service, true, "")
	return nil
}

// Rotate snapshots the current encrypted file to a .backup suffix before
// overwriting with the new secrets, bumping the entry version.
func (v *Vault) Rotate(service string, secrets map[string]string) error {
	version := 1
	if current, err := v.readEntry(service); err == nil {
		version = current.Version + 1
		src := v.credPath(service)
		if err := copyFile(src, filepath.Join(v.dir, service+backupExt)); err != nil {
			v.audit.record("rotate_credentials", service, false, err.Error())
			return domain.WrapError(domain.ErrCredential, "rotate credentials", fmt.Errorf("backup: %w", err))
		}
	}

	if err := v.store(service, secrets, version); err != nil {
		v.audit.record("rotate_credentials", service, false, "store_failed")
		return err
	}
	v.audit.record("rotate_credentials", service, true, "")
	return nil
}

func (v *Vault) ListServices() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(v.dir, "*"+credExt))
	if err != nil {
		v.audit.record("list_services", "all", false, err.Error())
		return nil, domain.WrapError(domain.ErrCredential, "list services", err)
	}

	var services []string
	for _, m := range matches {
		base := filepath.Base(m)
		if strings.HasSuffix(base, backupExt) {
			continue
		}
		services = append(services, strings.TrimSuffix(base, credExt))
	}
	sort.Strings(services)

	v.audit.record("list_services", "all", true, fmt.Sprintf("found_%d", len(services)))
	return services, nil
}

// Validate checks that credentials exist and contain the service-specific
// required keys. Unknown services pass if any credentials exist.
func (v *Vault) Validate(service string) bool {
	creds, err := v.Get(service)
	if err != nil || creds == nil {
		return false
	}
	for _, key := range requiredKeys[service] {
		if creds[key] == "" {
			return false
		}
	}
	return true
}

// AuditLog returns audit entries from the last N days, newest first.
func (v *Vault) AuditLog(days int) ([]domain.AuditEntry, error) {
	return v.audit.entries(days)
}

// CleanupBackups removes rotation backups older than the given horizon and
// returns the number removed.
func (v *Vault) CleanupBackups(days int) (int, error) {
	matches, err := filepath.Glob(filepath.Join(v.dir, "*"+backupExt))
	if err != nil {
		return 0, domain.WrapError(domain.ErrCredential, "cleanup backups", err)
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(m); err == nil {
			removed++
		}
	}
	v.audit.record("cleanup_backups", "all", true, fmt.Sprintf("cleaned_%d", removed))
	return removed, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}
