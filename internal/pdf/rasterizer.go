package pdf

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
)

// NativeDPI renders a page at one pixel per PDF point.
const NativeDPI = 72.0

// Rasterizer renders PDF pages to bitmaps using go-fitz
type Rasterizer struct {
	dpi    float64
	logger *observability.Logger
}

// Option configures a Rasterizer.
type Option func(*Rasterizer)

// WithDPI overrides the base rendering resolution.
func WithDPI(dpi float64) Option {
	return func(r *Rasterizer) {
		if dpi > 0 {
			r.dpi = dpi
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *observability.Logger) Option {
	return func(r *Rasterizer) {
		r.logger = logger
	}
}

// NewRasterizer creates a new rasterizer rendering at NativeDPI by default
func NewRasterizer(opts ...Option) *Rasterizer {
	r := &Rasterizer{dpi: NativeDPI}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = observability.Nop()
	}
	return r
}

// PageCount returns the number of pages in the document.
func (r *Rasterizer) PageCount(data []byte) (int, error) {
	doc, err := r.open(data)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	return doc.NumPage(), nil
}

// RenderPage renders one zero-based page, resized uniformly by scale.
func (r *Rasterizer) RenderPage(ctx context.Context, data []byte, index int, scale float64) (domain.RasterPage, error) {
	if err := ValidateScale(scale); err != nil {
		return domain.RasterPage{}, err
	}

	doc, err := r.open(data)
	if err != nil {
		return domain.RasterPage{}, err
	}
	defer doc.Close()

	if index < 0 || index >= doc.NumPage() {
		return domain.RasterPage{}, domain.PageIndexError(
			fmt.Sprintf("page %d out of range [0, %d)", index, doc.NumPage()), nil)
	}

	return r.render(ctx, doc, index, scale)
}

// RenderAll renders every page in ascending order. Any page failure fails the
// whole document and no pages are returned.
func (r *Rasterizer) RenderAll(ctx context.Context, data []byte, scale float64) ([]domain.RasterPage, error) {
	if err := ValidateScale(scale); err != nil {
		return nil, err
	}

	doc, err := r.open(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.DocumentDecodeError("document has no pages", nil)
	}

	pages := make([]domain.RasterPage, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		page, err := r.render(ctx, doc, i, scale)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	r.logger.Debug().
		Int("pages", pageCount).
		Float64("scale", scale).
		Msg("Rasterized document")

	return pages, nil
}

func (r *Rasterizer) open(data []byte) (*fitz.Document, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.DocumentDecodeError("failed to open document", err)
	}
	return doc, nil
}

func (r *Rasterizer) render(ctx context.Context, doc *fitz.Document, index int, scale float64) (domain.RasterPage, error) {
	select {
	case <-ctx.Done():
		return domain.RasterPage{}, ctx.Err()
	default:
	}

	bound, err := doc.Bound(index)
	if err != nil {
		return domain.RasterPage{}, domain.DocumentDecodeError(fmt.Sprintf("failed to measure page %d", index+1), err)
	}
	nw := float64(bound.Dx()) * r.dpi / NativeDPI
	nh := float64(bound.Dy()) * r.dpi / NativeDPI
	if err := ValidatePageSize(nw, nh); err != nil {
		return domain.RasterPage{}, err
	}
	if err := ValidatePageSize(nw*scale, nh*scale); err != nil {
		return domain.RasterPage{}, err
	}

	img, err := doc.ImageDPI(index, r.dpi)
	if err != nil {
		return domain.RasterPage{}, domain.DocumentDecodeError(fmt.Sprintf("failed to render page %d", index+1), err)
	}

	scaled := Scale(img, scale)
	bounds := scaled.Bounds()

	return domain.RasterPage{
		Index:  index,
		Image:  scaled,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// ScaledSize returns round(w*scale) x round(h*scale), never below one pixel.
func ScaledSize(w, h int, scale float64) (int, int) {
	sw := int(math.Round(float64(w) * scale))
	sh := int(math.Round(float64(h) * scale))
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}
	return sw, sh
}

// Scale resamples img by a uniform factor. A factor of 1 returns img unchanged.
func Scale(img image.Image, scale float64) image.Image {
	if scale == 1 {
		return img
	}

	src := img.Bounds()
	w, h := ScaledSize(src.Dx(), src.Dy(), scale)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	return dst
}
