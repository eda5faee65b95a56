// Package narrative annotates deck slides with model-written summaries that
// read as one continuous story.
package narrative

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
	"github.com/spherical/autoslides/internal/pptx"
)

// OverlayName identifies summary text boxes on a slide.
const OverlayName = "Narrative Summary"

// Mode selects how a failing slide affects the rest of the deck.
type Mode string

const (
	// ModeStrict aborts the deck on the first slide failure and leaves the file untouched.
	ModeStrict Mode = "strict"
	// ModeTolerant records the failure, leaves that slide without an overlay and continues.
	ModeTolerant Mode = "tolerant"
)

// OverlayPolicy decides what happens when a deck already carries summaries.
type OverlayPolicy string

const (
	PolicyReplace OverlayPolicy = "replace"
	PolicyReject  OverlayPolicy = "reject"
)

// Style describes the summary text box.
type Style struct {
	Frame     pptx.Rect
	FillColor string
	FontSize  int
	WordWrap  bool
	AutoFit   pptx.AutoFit
}

// DefaultStyle is a light blue band across the top of a 16:9 slide.
func DefaultStyle() Style {
	return Style{
		Frame: pptx.Rect{
			X:      pptx.Inches(0.3),
			Y:      pptx.Inches(0.5),
			Width:  pptx.Inches(9.37),
			Height: pptx.Inches(0.7),
		},
		FillColor: "ECF0FE",
		FontSize:  pptx.Points(12),
		WordWrap:  true,
		AutoFit:   pptx.AutoFitShrink,
	}
}

// Options controls one summarization run.
type Options struct {
	Skip    []int // 1-based slide numbers
	Mode    Mode
	Policy  OverlayPolicy
	Timeout time.Duration // per model call, zero for none
}

// SlideSummary is the text generated for one slide.
type SlideSummary struct {
	Slide int    `json:"slide"`
	Text  string `json:"text"`
}

// SlideFailure records a slide left without a summary in tolerant mode.
type SlideFailure struct {
	Slide int
	Err   error
}

// Result is the outcome of a summarization run.
type Result struct {
	Slides    int
	Summaries []SlideSummary
	Failures  []SlideFailure
	Story     string
}

// Texts returns the summaries in slide order.
func (r Result) Texts() []string {
	out := make([]string, len(r.Summaries))
	for i, s := range r.Summaries {
		out[i] = s.Text
	}
	return out
}

// Summarizer walks a deck's slides in order and overlays a summary on each.
type Summarizer struct {
	model  domain.VisionModel
	style  Style
	logger *observability.Logger
}

// NewSummarizer creates a summarizer backed by model.
func NewSummarizer(model domain.VisionModel, logger *observability.Logger) *Summarizer {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Summarizer{
		model:  model,
		style:  DefaultStyle(),
		logger: logger.WithComponent("narrative"),
	}
}

// WithStyle returns a copy of s that draws overlays with style.
func (s *Summarizer) WithStyle(style Style) *Summarizer {
	cp := *s
	cp.style = style
	return &cp
}

// Summarize annotates the deck at path and overwrites it once all slides are
// done. When the run fails the file is left as it was.
func (s *Summarizer) Summarize(ctx context.Context, path string, opts Options) (Result, error) {
	pres, err := pptx.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer pres.Close()

	result, err := s.Annotate(ctx, pres, opts)
	if err != nil {
		s.logger.WithContext(ctx).Error().
			Str("file", filepath.Base(path)).
			Err(err).
			Msg("Summarization aborted, deck left unchanged")
		return result, err
	}

	if err := pres.Save(path); err != nil {
		return result, err
	}

	s.logger.WithContext(ctx).Info().
		Str("file", filepath.Base(path)).
		Int("summaries", len(result.Summaries)).
		Int("failed_slides", len(result.Failures)).
		Msg("Summaries added")

	return result, nil
}

// Annotate summarizes pres in memory. The story is threaded through the slides
// in ascending order; skipped and failed slides add nothing to it.
func (s *Summarizer) Annotate(ctx context.Context, pres *pptx.Presentation, opts Options) (Result, error) {
	if opts.Mode == "" {
		opts.Mode = ModeStrict
	}
	if opts.Policy == "" {
		opts.Policy = PolicyReplace
	}
	if opts.Mode != ModeStrict && opts.Mode != ModeTolerant {
		return Result{}, domain.ValidationError(fmt.Sprintf("unknown summary mode %q", opts.Mode), nil)
	}

	if err := s.prepare(pres, opts.Policy); err != nil {
		return Result{}, err
	}

	skip := make(map[int]bool, len(opts.Skip))
	for _, n := range opts.Skip {
		skip[n] = true
	}

	result := Result{Slides: len(pres.Slides)}
	story := ""

	for i, slide := range pres.Slides {
		n := i + 1
		if skip[n] {
			continue
		}

		summary, err := s.summarizeSlide(ctx, slide, n, story, opts.Timeout)
		if err != nil {
			if opts.Mode == ModeStrict || ctx.Err() != nil {
				result.Story = story
				return result, fmt.Errorf("slide %d: %w", n, err)
			}
			s.logger.Warn().
				Int("slide", n).
				Err(err).
				Msg("Summary unavailable for slide")
			result.Failures = append(result.Failures, SlideFailure{Slide: n, Err: err})
			continue
		}

		slide.AddTextBox(s.overlay(summary))
		story = Advance(story, n, summary)
		result.Summaries = append(result.Summaries, SlideSummary{Slide: n, Text: summary})
	}

	result.Story = story
	return result, nil
}

// prepare applies the overlay policy so no slide ends up with two summaries.
func (s *Summarizer) prepare(pres *pptx.Presentation, policy OverlayPolicy) error {
	switch policy {
	case PolicyReject:
		for i, slide := range pres.Slides {
			if slide.CountNamed(OverlayName) > 0 {
				return domain.ValidationError(fmt.Sprintf("slide %d already has a summary", i+1), nil)
			}
		}
	case PolicyReplace:
		removed := 0
		for _, slide := range pres.Slides {
			removed += slide.RemoveNamed(OverlayName)
		}
		if removed > 0 {
			s.logger.Debug().Int("removed", removed).Msg("Replacing existing summaries")
		}
	default:
		return domain.ValidationError(fmt.Sprintf("unknown overlay policy %q", policy), nil)
	}
	return nil
}

func (s *Summarizer) summarizeSlide(ctx context.Context, slide *pptx.Slide, n int, story string, timeout time.Duration) (string, error) {
	pic := slide.FirstPicture()
	if pic == nil {
		return "", domain.ExtractionError(fmt.Sprintf("slide %d has no picture", n), nil)
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.model.Generate(callCtx, BuildPrompt(n, story), pic.Image, mimeType(pic.Format))
	if err != nil {
		if !domain.IsType(err, domain.ErrorTypeModelInference) {
			err = domain.ModelInferenceFailure("model call failed", err)
		}
		return "", err
	}

	s.logger.Debug().
		Int("slide", n).
		Dur("elapsed", time.Since(start)).
		Msg("Slide summarized")

	return CleanResponse(text), nil
}

func (s *Summarizer) overlay(text string) *pptx.TextBox {
	return &pptx.TextBox{
		Name:      OverlayName,
		Frame:     s.style.Frame,
		FillColor: s.style.FillColor,
		FontSize:  s.style.FontSize,
		WordWrap:  s.style.WordWrap,
		AutoFit:   s.style.AutoFit,
		Text:      text,
	}
}

func mimeType(format string) string {
	if format == "jpeg" {
		return "image/jpeg"
	}
	return "image/png"
}
