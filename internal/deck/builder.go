// Package deck assembles rasterized report pages into a widescreen slide deck.
package deck

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"path/filepath"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
	"github.com/spherical/autoslides/internal/pptx"
)

// Builder lays one full-bleed picture per page onto a 16:9 canvas.
type Builder struct {
	width  int64
	height int64
	logger *observability.Logger
}

// NewBuilder creates a builder for the widescreen 10 x 5.625 inch canvas.
func NewBuilder(logger *observability.Logger) *Builder {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Builder{
		width:  pptx.WidescreenWidth,
		height: pptx.WidescreenHeight,
		logger: logger.WithComponent("deck"),
	}
}

// Compose builds the in-memory deck. Slide i holds page i stretched to the
// full canvas; no page is skipped or reordered. The caller closes the result.
func (b *Builder) Compose(ctx context.Context, pages []domain.RasterPage) (*pptx.Presentation, error) {
	pres := pptx.New(b.width, b.height)

	for i, page := range pages {
		select {
		case <-ctx.Done():
			pres.Close()
			return nil, ctx.Err()
		default:
		}

		if page.Image == nil {
			pres.Close()
			return nil, domain.DeckWriteError(fmt.Sprintf("page %d has no image", i+1), nil)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, page.Image); err != nil {
			pres.Close()
			return nil, domain.DeckWriteError(fmt.Sprintf("failed to encode page %d", i+1), err)
		}

		err := pres.AddSlide().AddPicture(&pptx.Picture{
			Name:   fmt.Sprintf("Page %d", page.Index+1),
			Frame:  pres.FullBleed(),
			Image:  buf.Bytes(),
			Format: "png",
		})
		if err != nil {
			pres.Close()
			return nil, err
		}
	}

	return pres, nil
}

// Build composes the deck and saves it to path, replacing any existing file.
// On failure the returned path is empty and the error is a DeckWriteError.
func (b *Builder) Build(ctx context.Context, pages []domain.RasterPage, path string) (string, error) {
	if len(pages) == 0 {
		return "", domain.DeckWriteError("no pages to place", nil)
	}

	pres, err := b.Compose(ctx, pages)
	if err != nil {
		return "", err
	}
	defer pres.Close()

	if err := pres.Save(path); err != nil {
		b.logger.Error().
			Str("file", filepath.Base(path)).
			Err(err).
			Msg("Deck write failed")
		return "", err
	}

	b.logger.Info().
		Str("file", filepath.Base(path)).
		Int("slides", len(pres.Slides)).
		Msg("Deck written")

	return path, nil
}
