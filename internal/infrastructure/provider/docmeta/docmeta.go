// Package docmeta inspects OCR inputs without fully decoding them: pixel
// dimensions, on-disk size and PDF page counts feed provider selection
// heuristics and per-page cost estimates.
package docmeta

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/ledongthuc/pdf"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	largeSizeMB    = 5.0
	largeDimension = 2000
)

type Info struct {
	Width       int
	Height      int
	SizeMB      float64
	Pages       int
	AspectRatio float64

	// IsLarge holds for inputs over 5MB or with either dimension over
	// 2000px; such inputs favor cloud processing headroom.
	IsLarge bool

	// IsDocumentShaped holds for aspect ratios in [0.7, 1.5], the typical
	// scanned-document range; it steers structured-document providers.
	IsDocumentShaped bool
}

// Inspect never fails: unreadable or unparseable inputs fall back to the
// conservative defaults the selection heuristics expect (document-shaped,
// single page, not large).
func Inspect(path string) Info {
	info := Info{Pages: 1, AspectRatio: 1.0, IsDocumentShaped: true}

	if stat, err := os.Stat(path); err == nil {
		info.SizeMB = float64(stat.Size()) / (1024 * 1024)
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		if pages := pdfPageCount(path); pages > 0 {
			info.Pages = pages
		}
	} else if w, h, ok := imageDimensions(path); ok {
		info.Width, info.Height = w, h
		if h > 0 {
			info.AspectRatio = float64(w) / float64(h)
		}
		info.IsDocumentShaped = info.AspectRatio >= 0.7 && info.AspectRatio <= 1.5
	}

	info.IsLarge = info.SizeMB > largeSizeMB || info.Width > largeDimension || info.Height > largeDimension
	return info
}

func imageDimensions(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

func pdfPageCount(path string) int {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	return reader.NumPage()
}
