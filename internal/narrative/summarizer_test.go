package narrative

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/pptx"
)

type fakeModel struct {
	mu      sync.Mutex
	prompts []string
	mimes   []string
	reply   func(call int, prompt string) (string, error)
}

func (m *fakeModel) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mimes = append(m.mimes, mimeType)
	call := len(m.prompts)
	m.mu.Unlock()

	if len(image) == 0 {
		return "", errors.New("no image")
	}
	if m.reply != nil {
		return m.reply(call, prompt)
	}
	return fmt.Sprintf("\n\r\nSummary %d.", call), nil
}

func slideNumber(prompt string) int {
	var n int
	fmt.Sscanf(prompt, "This is slide %d", &n)
	return n
}

func pageImage(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if format == "jpeg" {
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	} else {
		require.NoError(t, png.Encode(&buf, img))
	}
	return buf.Bytes()
}

func writeDeck(t *testing.T, slides int) string {
	t.Helper()
	pres := pptx.New(pptx.WidescreenWidth, pptx.WidescreenHeight)
	defer pres.Close()
	for i := 0; i < slides; i++ {
		require.NoError(t, pres.AddSlide().AddPicture(&pptx.Picture{
			Name:   fmt.Sprintf("Page %d", i+1),
			Frame:  pres.FullBleed(),
			Image:  pageImage(t, "png"),
			Format: "png",
		}))
	}
	path := filepath.Join(t.TempDir(), "deck.pptx")
	require.NoError(t, pres.Save(path))
	return path
}

func openDeck(t *testing.T, path string) *pptx.Presentation {
	t.Helper()
	pres, err := pptx.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { pres.Close() })
	return pres
}

func TestCleanResponse(t *testing.T) {
	assert.Equal(t, "  Hello\n", CleanResponse("\n\r\n  Hello\n"))
	assert.Equal(t, "\tTabbed", CleanResponse("\r\tTabbed"))
	assert.Equal(t, "", CleanResponse("\n\n"))
}

func TestAdvance(t *testing.T) {
	story := Advance("", 2, "Revenue rose.")
	story = Advance(story, 4, "ROAS held.")
	assert.Equal(t, " Slide 2: Revenue rose. Slide 4: ROAS held.", story)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(7, " Slide 2: Revenue rose.")
	assert.True(t, strings.HasPrefix(p, "This is slide 7 of a presentation."))
	assert.Contains(t, p, `The story so far: " Slide 2: Revenue rose.".`)
	assert.Contains(t, p, "no more than 50 words")
	assert.Contains(t, p, "Try not to repeat information")
	assert.Contains(t, p, "professional")
}

func TestSummarize_EndToEndSkipKeepsNumbering(t *testing.T) {
	path := writeDeck(t, 3)
	model := &fakeModel{}
	s := NewSummarizer(model, nil)

	result, err := s.Summarize(context.Background(), path, Options{Skip: []int{2}})
	require.NoError(t, err)

	assert.Equal(t, []SlideSummary{{Slide: 1, Text: "Summary 1."}, {Slide: 3, Text: "Summary 2."}}, result.Summaries)
	assert.Equal(t, " Slide 1: Summary 1. Slide 3: Summary 2.", result.Story)
	assert.Equal(t, []string{"Summary 1.", "Summary 2."}, result.Texts())
	assert.Equal(t, []string{"image/png", "image/png"}, model.mimes)

	// The second call saw exactly the first slide's segment.
	require.Len(t, model.prompts, 2)
	assert.Contains(t, model.prompts[0], `The story so far: "".`)
	assert.Contains(t, model.prompts[1], `The story so far: " Slide 1: Summary 1.".`)
	assert.Equal(t, 3, slideNumber(model.prompts[1]))

	pres := openDeck(t, path)
	require.Len(t, pres.Slides, 3)

	for i, want := range []int{1, 0, 1} {
		slide := pres.Slides[i]
		assert.Len(t, slide.Pictures(), 1, "slide %d", i+1)
		assert.Equal(t, want, slide.CountNamed(OverlayName), "slide %d", i+1)
	}

	overlay := pres.Slides[0].TextBoxes()[0]
	assert.Equal(t, "Summary 1.", overlay.Text)
	assert.LessOrEqual(t, len(strings.Fields(overlay.Text)), 50)
	assert.Equal(t, DefaultStyle().Frame, overlay.Frame)
	assert.Equal(t, "ECF0FE", overlay.FillColor)
	assert.Equal(t, 1200, overlay.FontSize)
	assert.True(t, overlay.WordWrap)
	assert.Equal(t, pptx.AutoFitShrink, overlay.AutoFit)
}

func TestSummarize_DefaultSkipListOnTenSlides(t *testing.T) {
	path := writeDeck(t, 10)
	model := &fakeModel{reply: func(call int, prompt string) (string, error) {
		return fmt.Sprintf("s%d", slideNumber(prompt)), nil
	}}

	result, err := NewSummarizer(model, nil).Summarize(context.Background(), path, Options{Skip: []int{1, 5, 8}})
	require.NoError(t, err)

	assert.Equal(t, " Slide 2: s2 Slide 3: s3 Slide 4: s4 Slide 6: s6 Slide 7: s7 Slide 9: s9 Slide 10: s10", result.Story)

	var visited []int
	for _, p := range model.prompts {
		visited = append(visited, slideNumber(p))
	}
	assert.Equal(t, []int{2, 3, 4, 6, 7, 9, 10}, visited)

	// Story seen by slide 9 ends at slide 7.
	assert.Contains(t, model.prompts[5], `Slide 7: s7".`)
	assert.NotContains(t, model.prompts[5], "Slide 8")
}

func TestSummarize_StrictFailureLeavesDeckUnchanged(t *testing.T) {
	path := writeDeck(t, 3)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	model := &fakeModel{reply: func(call int, prompt string) (string, error) {
		if call == 2 {
			return "", errors.New("quota exceeded")
		}
		return "ok", nil
	}}

	result, err := NewSummarizer(model, nil).Summarize(context.Background(), path, Options{Mode: ModeStrict})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeModelInference))
	assert.Contains(t, err.Error(), "slide 2")
	assert.Equal(t, " Slide 1: ok", result.Story)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAnnotate_MissingPicture(t *testing.T) {
	newDeck := func() *pptx.Presentation {
		pres := pptx.New(pptx.WidescreenWidth, pptx.WidescreenHeight)
		t.Cleanup(func() { pres.Close() })
		require.NoError(t, pres.AddSlide().AddPicture(&pptx.Picture{Image: pageImage(t, "png"), Format: "png"}))
		pres.AddSlide() // no picture
		require.NoError(t, pres.AddSlide().AddPicture(&pptx.Picture{Image: pageImage(t, "jpeg"), Format: "jpeg"}))
		return pres
	}

	t.Run("strict", func(t *testing.T) {
		model := &fakeModel{}
		_, err := NewSummarizer(model, nil).Annotate(context.Background(), newDeck(), Options{Mode: ModeStrict})
		require.Error(t, err)
		assert.True(t, domain.IsType(err, domain.ErrorTypeExtraction))
		assert.Len(t, model.prompts, 1)
	})

	t.Run("tolerant", func(t *testing.T) {
		model := &fakeModel{reply: func(call int, prompt string) (string, error) {
			return fmt.Sprintf("s%d", slideNumber(prompt)), nil
		}}
		pres := newDeck()
		result, err := NewSummarizer(model, nil).Annotate(context.Background(), pres, Options{Mode: ModeTolerant})
		require.NoError(t, err)

		require.Len(t, result.Failures, 1)
		assert.Equal(t, 2, result.Failures[0].Slide)
		assert.True(t, domain.IsType(result.Failures[0].Err, domain.ErrorTypeExtraction))
		assert.Equal(t, " Slide 1: s1 Slide 3: s3", result.Story)
		assert.Equal(t, 0, pres.Slides[1].CountNamed(OverlayName))
		assert.Equal(t, 1, pres.Slides[2].CountNamed(OverlayName))
		assert.Equal(t, "image/jpeg", model.mimes[1])
	})
}

func TestSummarize_TolerantModelFailure(t *testing.T) {
	path := writeDeck(t, 3)
	model := &fakeModel{reply: func(call int, prompt string) (string, error) {
		if slideNumber(prompt) == 2 {
			return "", errors.New("503")
		}
		return fmt.Sprintf("s%d", slideNumber(prompt)), nil
	}}

	result, err := NewSummarizer(model, nil).Summarize(context.Background(), path, Options{Mode: ModeTolerant})
	require.NoError(t, err)
	assert.Equal(t, " Slide 1: s1 Slide 3: s3", result.Story)
	require.Len(t, result.Failures, 1)
	assert.True(t, domain.IsType(result.Failures[0].Err, domain.ErrorTypeModelInference))

	pres := openDeck(t, path)
	assert.Equal(t, 1, pres.Slides[0].CountNamed(OverlayName))
	assert.Equal(t, 0, pres.Slides[1].CountNamed(OverlayName))
	assert.Equal(t, 1, pres.Slides[2].CountNamed(OverlayName))
}

func TestSummarize_RerunReplacesOverlays(t *testing.T) {
	path := writeDeck(t, 2)
	s := NewSummarizer(&fakeModel{}, nil)

	_, err := s.Summarize(context.Background(), path, Options{Policy: PolicyReplace})
	require.NoError(t, err)
	result, err := s.Summarize(context.Background(), path, Options{Policy: PolicyReplace})
	require.NoError(t, err)

	// The rerun starts from an empty story.
	assert.Equal(t, " Slide 1: Summary 3. Slide 2: Summary 4.", result.Story)

	pres := openDeck(t, path)
	for i, slide := range pres.Slides {
		boxes := slide.TextBoxes()
		require.Len(t, boxes, 1, "slide %d", i+1)
		assert.Equal(t, fmt.Sprintf("Summary %d.", i+3), boxes[0].Text)
	}
}

func TestSummarize_RerunRejected(t *testing.T) {
	path := writeDeck(t, 2)
	model := &fakeModel{}
	s := NewSummarizer(model, nil)

	_, err := s.Summarize(context.Background(), path, Options{Policy: PolicyReject})
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), path, Options{Policy: PolicyReject})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	assert.Len(t, model.prompts, 2)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSummarize_UnknownModeRejected(t *testing.T) {
	path := writeDeck(t, 2)
	model := &fakeModel{}
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = NewSummarizer(model, nil).Summarize(context.Background(), path, Options{Mode: "lenient"})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "lenient")
	assert.Empty(t, model.prompts)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSummarize_ModelTimeout(t *testing.T) {
	path := writeDeck(t, 1)
	model := &blockingModel{}

	_, err := NewSummarizer(model, nil).Summarize(context.Background(), path, Options{Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeModelInference))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type blockingModel struct{}

func (blockingModel) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSummarize_MissingDeck(t *testing.T) {
	_, err := NewSummarizer(&fakeModel{}, nil).Summarize(context.Background(), filepath.Join(t.TempDir(), "none.pptx"), Options{})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDeckRead))
}
