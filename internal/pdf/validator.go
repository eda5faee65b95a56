package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/autoslides/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// ValidateDocument checks that data looks like a PDF before handing it to MuPDF.
func ValidateDocument(data []byte) error {
	if len(data) == 0 {
		return domain.DocumentDecodeError("document is empty", nil)
	}

	// Some exporters prepend a BOM or whitespace; the header must appear early.
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, pdfMagic) {
		return domain.DocumentDecodeError("document is not a PDF (missing %PDF header)", nil)
	}
	return nil
}

// MaxPageSide caps either side of a rendered page, in pixels.
const MaxPageSide = 16384

// ValidateScale checks the resize factor.
func ValidateScale(scale float64) error {
	if !domain.ValidScale(scale) {
		return domain.ValidationError(fmt.Sprintf("scale must be a finite number in (0, %v], got %v", domain.MaxRenderScale, scale), nil)
	}
	return nil
}

// ValidatePageSize checks a page size in pixels before a bitmap of that size
// is allocated.
func ValidatePageSize(w, h float64) error {
	if w > MaxPageSide || h > MaxPageSide {
		return domain.ValidationError(fmt.Sprintf("page of %.0fx%.0f pixels exceeds %d per side", w, h, MaxPageSide), nil)
	}
	return nil
}

// ReadFile loads a local PDF after checking the path.
func ReadFile(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return nil, domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return nil, domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext != ".pdf" {
		return nil, domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", ext), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("cannot read file: %s", path), err)
	}
	return data, nil
}
