package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docstream/ocrkit/internal/core/domain"
)

// minimal valid PNG header followed by padding, enough for content sniffing
var pngHead = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestValidateInputPathAcceptsPNG(t *testing.T) {
	v := NewValidator(0, false)
	path := writeTempFile(t, "scan.png", pngHead)
	if err := v.ValidateInputPath(path); err != nil {
		t.Fatalf("ValidateInputPath() error = %v", err)
	}
}

func TestValidateInputPathRejectsTraversal(t *testing.T) {
	v := NewValidator(0, false)
	err := v.ValidateInputPath("uploads/../../etc/passwd.png")
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateInputPathRejectsDisallowedExtension(t *testing.T) {
	v := NewValidator(0, false)
	path := writeTempFile(t, "tool.exe", []byte("MZ payload"))
	err := v.ValidateInputPath(path)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for .exe, got %v", err)
	}
}

func TestValidateInputPathRejectsExecutableContentRegardlessOfExtension(t *testing.T) {
	v := NewValidator(0, false)
	path := writeTempFile(t, "innocent.png", append([]byte("MZ"), make([]byte, 64)...))
	err := v.ValidateInputPath(path)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for executable content, got %v", err)
	}
	if !strings.Contains(err.Error(), "application/x-msdownload") {
		t.Fatalf("error should name the detected type, got %v", err)
	}
}

func TestValidateInputPathRejectsControlCharacters(t *testing.T) {
	v := NewValidator(0, false)
	err := v.ValidateInputPath("file\x00name.png")
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for NUL byte, got %v", err)
	}
}

func TestValidateInputPathRejectsOversizedFile(t *testing.T) {
	v := NewValidator(128, false)
	path := writeTempFile(t, "big.png", append(append([]byte{}, pngHead...), make([]byte, 256)...))
	err := v.ValidateInputPath(path)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for oversized file, got %v", err)
	}
}

func TestValidateInputPathToleratesTiffEquivalence(t *testing.T) {
	v := NewValidator(0, false)
	tiffHead := append([]byte("II*\x00"), make([]byte, 32)...)
	for _, name := range []string{"scan.tiff", "scan.tif"} {
		path := writeTempFile(t, name, tiffHead)
		if err := v.ValidateInputPath(path); err != nil {
			t.Fatalf("ValidateInputPath(%s) error = %v", name, err)
		}
	}
}

func TestValidateOutputPathCreatesParents(t *testing.T) {
	v := NewValidator(0, false)
	path := filepath.Join(t.TempDir(), "nested", "deeper", "out.txt")
	if err := v.ValidateOutputPath(path); err != nil {
		t.Fatalf("ValidateOutputPath() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("parent directory not created: %v", err)
	}
}

func TestSanitizeOutputStripsScriptTagPreservingText(t *testing.T) {
	v := NewValidator(0, false)
	got := v.SanitizeOutput("invoice total <script>alert('x')</script>due now")
	if strings.Contains(got, "script") || strings.Contains(got, "alert") {
		t.Fatalf("script content not removed: %q", got)
	}
	if !strings.Contains(got, "invoice total") || !strings.Contains(got, "due now") {
		t.Fatalf("surrounding text not preserved: %q", got)
	}
}

func TestSanitizeOutputStripsURISchemesAndHandlers(t *testing.T) {
	v := NewValidator(0, false)
	got := v.SanitizeOutput(`click javascript:run() or onload= here`)
	if strings.Contains(strings.ToLower(got), "javascript:") || strings.Contains(got, "onload=") {
		t.Fatalf("dangerous substrings survived: %q", got)
	}
}

func TestSanitizeOutputMasksPII(t *testing.T) {
	v := NewValidator(0, true)

	got := v.SanitizeOutput("contact alice@example.com card 4111-1111-1111-1234 ssn 123-45-6789")
	if strings.Contains(got, "alice@example.com") {
		t.Fatalf("email not masked: %q", got)
	}
	if !strings.Contains(got, "a***@example.com") {
		t.Fatalf("email should keep first character and domain: %q", got)
	}
	if strings.Contains(got, "4111-1111-1111") {
		t.Fatalf("card digits not masked: %q", got)
	}
	if !strings.Contains(got, "1234") {
		t.Fatalf("card should keep last four digits: %q", got)
	}
	if !strings.Contains(got, "***-45-****") {
		t.Fatalf("ssn should keep middle group: %q", got)
	}
}

func TestSanitizeOutputPIIMaskingDisabled(t *testing.T) {
	v := NewValidator(0, false)
	got := v.SanitizeOutput("contact alice@example.com")
	if !strings.Contains(got, "alice@example.com") {
		t.Fatalf("masking disabled but email altered: %q", got)
	}
}

func TestSafeFilename(t *testing.T) {
	v := NewValidator(0, false)

	if got := v.SafeFilename(`re<port>:2024/q1|?.pdf`); strings.ContainsAny(got, `<>:"/\|?*`) {
		t.Fatalf("unsafe characters survived: %q", got)
	}
	if got := v.SafeFilename("..."); got != "sanitized_file" {
		t.Fatalf("empty result not defaulted: %q", got)
	}
	long := strings.Repeat("a", 300) + ".txt"
	if got := v.SafeFilename(long); len(got) > 255 || !strings.HasSuffix(got, ".txt") {
		t.Fatalf("length cap failed: len=%d suffix=%q", len(got), filepath.Ext(got))
	}
}
