package security

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/docstream/ocrkit/internal/core/domain"
)

const DefaultMaxFileSize = 50 * 1024 * 1024

// allowedExtensions maps OCR-processable extensions to the content type the
// file is expected to sniff as.
var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

var dangerousContentTypes = map[string]struct{}{
	"application/x-msdownload": {},
	"application/x-executable": {},
	"text/html":                {},
}

// Validator gatekeeps file paths entering the system and extracted text
// leaving it.
type Validator struct {
	maxFileSize int64
	maskPII     bool
}

func NewValidator(maxFileSize int64, maskPII bool) *Validator {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Validator{maxFileSize: maxFileSize, maskPII: maskPII}
}

// ValidateInputPath rejects paths that do not exist, traverse parent
// directories, contain NUL or non-whitespace control characters, carry a
// disallowed extension, exceed the size limit, or whose sniffed content type
// contradicts the extension.
func (v *Validator) ValidateInputPath(path string) error {
	if err := checkPathCharacters(path); err != nil {
		return domain.WrapError(domain.ErrValidation, "validate input path", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.WrapError(domain.ErrValidation, "validate input path", fmt.Errorf("file does not exist: %s", path))
	}
	if info.IsDir() {
		return domain.WrapError(domain.ErrValidation, "validate input path", fmt.Errorf("not a regular file: %s", path))
	}

	ext := strings.ToLower(filepath.Ext(path))
	expectedType, ok := allowedExtensions[ext]
	if !ok {
		return domain.WrapError(domain.ErrValidation, "validate input path", fmt.Errorf("unsupported file type: %s", ext))
	}

	if info.Size() > v.maxFileSize {
		return domain.WrapError(domain.ErrValidation, "validate input path",
			fmt.Errorf("file too large: %.1fMB (max: %.0fMB)",
				float64(info.Size())/(1024*1024), float64(v.maxFileSize)/(1024*1024)))
	}

	if err := checkContentType(path, expectedType); err != nil {
		return domain.WrapError(domain.ErrValidation, "validate input path", err)
	}
	return nil
}

// ValidateOutputPath applies the traversal and control-character checks and
// creates missing parent directories.
func (v *Validator) ValidateOutputPath(path string) error {
	if err := checkPathCharacters(path); err != nil {
		return domain.WrapError(domain.ErrValidation, "validate output path", err)
	}

	parent := filepath.Dir(path)
	if parent != "" && parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return domain.WrapError(domain.ErrValidation, "validate output path",
				fmt.Errorf("cannot create output directory: %w", err))
		}
	}
	return nil
}

func checkPathCharacters(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("empty path")
	}
	for _, segment := range strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if segment == ".." {
			return errors.New("directory traversal detected in path")
		}
	}
	for _, r := range path {
		if r == 0 || (r < 0x20 && r != '\t') {
			return errors.New("invalid characters detected in path")
		}
	}
	return nil
}

// checkContentType sniffs the file head and rejects known-dangerous or
// mismatched types. jpeg/jpg and tiff/tif collapse to the same expected type
// so the documented equivalences hold by construction; an inconclusive sniff
// (octet-stream or plain text) is tolerated.
func checkContentType(path, expectedType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot read file: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return fmt.Errorf("cannot read file: %w", err)
	}
	detected := detectContentType(head[:n])

	if _, bad := dangerousContentTypes[baseType(detected)]; bad {
		return fmt.Errorf("dangerous content type: %s", detected)
	}

	base := baseType(detected)
	if base == "application/octet-stream" || strings.HasPrefix(base, "text/") {
		return nil
	}
	if base != expectedType {
		return fmt.Errorf("content type mismatch: extension suggests %s, file is %s", expectedType, base)
	}
	return nil
}

// detectContentType extends stdlib sniffing with signatures it lacks: TIFF
// images and PE/ELF executables.
func detectContentType(head []byte) string {
	switch {
	case len(head) >= 4 && (bytes.HasPrefix(head, []byte("II*\x00")) || bytes.HasPrefix(head, []byte("MM\x00*"))):
		return "image/tiff"
	case len(head) >= 2 && bytes.HasPrefix(head, []byte("MZ")):
		return "application/x-msdownload"
	case len(head) >= 4 && bytes.HasPrefix(head, []byte("\x7fELF")):
		return "application/x-executable"
	default:
		return http.DetectContentType(head)
	}
}

func baseType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}

var scriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)data:text/html`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
}

// SanitizeOutput strips script-like substrings, HTML-escapes the remainder
// and, when enabled, masks recognizable PII with partial redaction.
func (v *Validator) SanitizeOutput(text string) string {
	if text == "" {
		return ""
	}

	sanitized := text
	for _, pattern := range scriptPatterns {
		sanitized = pattern.ReplaceAllString(sanitized, "")
	}
	sanitized = html.EscapeString(sanitized)

	if v.maskPII {
		sanitized = maskPII(sanitized)
	}
	return sanitized
}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b(\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	cardPattern  = regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)
)

// maskPII applies partial redaction that preserves enough of the original for
// human correlation: the first email local-part character, the SSN group
// boundaries, the last four digits of phone and card numbers.
func maskPII(text string) string {
	out := emailPattern.ReplaceAllStringFunc(text, func(match string) string {
		at := strings.IndexByte(match, '@')
		if at < 1 {
			return strings.Repeat("*", len(match))
		}
		return match[:1] + "***@" + match[at+1:]
	})

	out = ssnPattern.ReplaceAllStringFunc(out, func(match string) string {
		parts := strings.Split(match, "-")
		return "***-" + parts[1] + "-****"
	})

	// Cards before phones: a 16-digit card would otherwise partially match
	// the phone pattern.
	out = cardPattern.ReplaceAllStringFunc(out, maskAllButLastFourDigits)
	out = phonePattern.ReplaceAllStringFunc(out, maskAllButLastFourDigits)
	return out
}

func maskAllButLastFourDigits(match string) string {
	digits := 0
	for _, r := range match {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	seen := 0
	var b strings.Builder
	for _, r := range match {
		if r >= '0' && r <= '9' {
			seen++
			if seen <= digits-4 {
				b.WriteByte('*')
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
var nonPrintableChars = regexp.MustCompile(`[^\x20-\x7E]`)

// SafeFilename strips characters unsafe for a filesystem and caps length,
// guaranteeing a non-empty result.
func (v *Validator) SafeFilename(name string) string {
	safe := unsafeFilenameChars.ReplaceAllString(name, "_")
	safe = nonPrintableChars.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, ". ")

	if safe == "" {
		return "sanitized_file"
	}
	if len(safe) > 255 {
		ext := filepath.Ext(safe)
		safe = safe[:255-len(ext)] + ext
	}
	return safe
}
