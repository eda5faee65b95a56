package pptx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/unidoc/unioffice"
	"github.com/unidoc/unioffice/presentation"
	"github.com/unidoc/unioffice/schema/soo/pml"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
)

func init() {
	SetLogger(nil)
}

// SetLogger routes the package codec's diagnostics to logger at debug level.
func SetLogger(logger *observability.Logger) {
	if logger == nil {
		logger = observability.Nop()
	}
	l := logger.WithComponent("pptx")
	unioffice.Log = func(format string, args ...interface{}) {
		l.Debug().Msgf(format, args...)
	}
}

// Presentation is an ordered list of slides sharing one canvas size. Call Close
// once the deck has been saved to release its scratch files.
type Presentation struct {
	Width  int64
	Height int64
	Slides []*Slide

	doc      *presentation.Presentation
	mediaDir string
	staged   int

	// Reopened media the codec renames to .png on write.
	unstable []string
}

// New creates an empty presentation with the given canvas size in EMU.
func New(width, height int64) *Presentation {
	return &Presentation{Width: width, Height: height, doc: presentation.New()}
}

// AddSlide appends an empty slide and returns it.
func (p *Presentation) AddSlide() *Slide {
	s := &Slide{x: p.doc.AddSlide(), pres: p, media: make(map[string]media)}
	p.Slides = append(p.Slides, s)
	return s
}

// FullBleed returns the frame covering the whole canvas.
func (p *Presentation) FullBleed() Rect {
	return Rect{Width: p.Width, Height: p.Height}
}

// Close removes the scratch files backing pictures. The presentation cannot be
// written afterwards.
func (p *Presentation) Close() error {
	var errs []error
	for _, dir := range []string{p.mediaDir, p.doc.TmpPath} {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	p.mediaDir = ""
	p.doc.TmpPath = ""
	return errors.Join(errs...)
}

// stage writes picture bytes where the codec can pick them up on save.
func (p *Presentation) stage(data []byte, format string) (string, error) {
	if p.mediaDir == "" {
		dir, err := os.MkdirTemp("", "autoslides-media-")
		if err != nil {
			return "", err
		}
		p.mediaDir = dir
	}
	p.staged++
	path := filepath.Join(p.mediaDir, fmt.Sprintf("image%d.%s", p.staged, format))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Open reads a PPTX file from disk.
func Open(path string) (*Presentation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.DeckReadError(fmt.Sprintf("failed to read deck %s", path), err)
	}
	return Decode(data)
}

// Decode parses a PPTX package held in memory.
func Decode(data []byte) (*Presentation, error) {
	doc, err := presentation.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.DeckReadError("deck is not a valid package", err)
	}
	p := &Presentation{doc: doc}

	x := doc.X()
	if x.SldIdLst == nil {
		x.SldIdLst = pml.NewCT_SlideIdList()
	}
	if x.SldSz != nil {
		p.Width = int64(x.SldSz.CxAttr)
		p.Height = int64(x.SldSz.CyAttr)
	}

	idx, err := indexMedia(data, x)
	if err != nil {
		p.Close()
		return nil, domain.DeckReadError("failed to index deck media", err)
	}
	p.unstable = idx.unstable

	for i, sl := range doc.Slides() {
		m := make(map[string]media)
		if i < len(idx.slides) && idx.slides[i] != nil {
			m = idx.slides[i]
		}
		p.Slides = append(p.Slides, &Slide{x: sl, pres: p, media: m})
	}
	return p, nil
}

// Write encodes the presentation as a PPTX package.
func (p *Presentation) Write(w io.Writer) error {
	if p.Width < minCanvas || p.Width > maxCanvas || p.Height < minCanvas || p.Height > maxCanvas {
		return domain.DeckWriteError(fmt.Sprintf("invalid canvas %dx%d", p.Width, p.Height), nil)
	}
	if len(p.unstable) > 0 {
		return domain.DeckWriteError(fmt.Sprintf("deck media cannot be rewritten in place: %s", strings.Join(p.unstable, ", ")), nil)
	}

	sz := pml.NewCT_SlideSize()
	sz.CxAttr = int32(p.Width)
	sz.CyAttr = int32(p.Height)
	p.doc.X().SldSz = sz

	if err := p.doc.Save(w); err != nil {
		return domain.DeckWriteError("failed to encode deck", err)
	}
	return nil
}

// Save writes the presentation to path, replacing any existing file. The
// package is written to a temporary file in the same directory and renamed
// into place, so readers never observe a partial deck.
func (p *Presentation) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return domain.DeckWriteError(fmt.Sprintf("failed to create temp file in %s", dir), err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := p.Write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return domain.DeckWriteError("failed to flush deck", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.DeckWriteError("failed to close deck", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return domain.DeckWriteError("failed to set deck permissions", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return domain.DeckWriteError(fmt.Sprintf("failed to move deck into place at %s", path), err)
	}
	committed = true
	return nil
}
