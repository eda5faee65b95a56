// Package pptx adapts unioffice presentations to the deck pipeline: an ordered
// slide list whose slides carry pictures and styled text boxes. Opened decks are
// edited in place, so shapes this package does not model keep their ids,
// relationships and placeholder bindings.
package pptx

import "math"

// EMUPerInch is the number of English Metric Units in one inch.
const EMUPerInch = 914400

// Widescreen 16:9 canvas, 10 x 5.625 inches.
const (
	WidescreenWidth  int64 = 10 * EMUPerInch
	WidescreenHeight int64 = 5625 * EMUPerInch / 1000
)

// PresentationML bounds for either side of the slide canvas.
const (
	minCanvas int64 = 914400
	maxCanvas int64 = 51206400
)

// Inches converts inches to EMU.
func Inches(in float64) int64 {
	return int64(math.Round(in * EMUPerInch))
}

// Points converts a font size in points to the hundredths used by DrawingML.
func Points(pt float64) int {
	return int(math.Round(pt * 100))
}

// Rect positions a shape on the slide, in EMU.
type Rect struct {
	X, Y, Width, Height int64
}

// AutoFit controls how text reacts to overflowing its box.
type AutoFit int

const (
	AutoFitNone   AutoFit = iota
	AutoFitShrink         // shrink text on overflow
	AutoFitResize         // resize shape to fit text
)

// Picture describes an embedded raster image. Values returned by a slide are
// snapshots; changing them does not touch the deck.
type Picture struct {
	Name   string
	Frame  Rect
	Image  []byte
	Format string // png or jpeg
}

// TextBox describes a single-paragraph text shape. Newlines in Text become line
// breaks inside that paragraph.
type TextBox struct {
	Name      string
	Frame     Rect
	FillColor string // RRGGBB, empty for no fill
	FontSize  int    // hundredths of a point, 0 inherits
	WordWrap  bool
	AutoFit   AutoFit
	Text      string
}
