package pptx

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/unidoc/unioffice"
	"github.com/unidoc/unioffice/color"
	"github.com/unidoc/unioffice/common"
	"github.com/unidoc/unioffice/presentation"
	"github.com/unidoc/unioffice/schema/soo/dml"
	"github.com/unidoc/unioffice/schema/soo/pml"

	"github.com/spherical/autoslides/internal/domain"
)

// Slide is one slide of a presentation.
type Slide struct {
	x     presentation.Slide
	pres  *Presentation
	media map[string]media
}

func (s *Slide) tree() *pml.CT_GroupShape {
	return s.x.X().CSld.SpTree
}

// lastChoice returns the shape-tree entry the codec appended most recently.
func (s *Slide) lastChoice() *pml.CT_GroupShapeChoice {
	c := s.tree().Choice
	return c[len(c)-1]
}

// AddPicture embeds p on the slide. The image must decode as PNG or JPEG.
func (s *Slide) AddPicture(p *Picture) error {
	if len(p.Image) == 0 {
		return domain.DeckWriteError(fmt.Sprintf("picture %q has no image data", p.Name), nil)
	}
	if _, err := mediaExt(p.Format); err != nil {
		return domain.DeckWriteError(fmt.Sprintf("picture %q", p.Name), err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(p.Image))
	if err != nil {
		return domain.DeckWriteError(fmt.Sprintf("picture %q is not a readable image", p.Name), err)
	}
	if _, err := mediaExt(format); err != nil {
		return domain.DeckWriteError(fmt.Sprintf("picture %q", p.Name), err)
	}

	path, err := s.pres.stage(p.Image, format)
	if err != nil {
		return domain.DeckWriteError(fmt.Sprintf("failed to stage picture %q", p.Name), err)
	}
	ref, err := s.pres.doc.AddImage(common.Image{
		Size:   image.Pt(cfg.Width, cfg.Height),
		Format: format,
		Path:   path,
	})
	if err != nil {
		return domain.DeckWriteError(fmt.Sprintf("failed to add picture %q", p.Name), err)
	}

	id := nextShapeID(s.tree())
	s.x.AddImage(ref)
	pic := s.lastChoice().Pic[0]
	pic.NvPicPr.CNvPr.IdAttr = id
	pic.NvPicPr.CNvPr.NameAttr = p.Name
	setFrame(pic.SpPr, p.Frame)

	if embed := pic.BlipFill.Blip.EmbedAttr; embed != nil {
		s.media[*embed] = media{data: append([]byte(nil), p.Image...), format: format}
	}
	return nil
}

// AddTextBox appends a text box built from t.
func (s *Slide) AddTextBox(t *TextBox) {
	id := nextShapeID(s.tree())
	tb := s.x.AddTextBox()
	sp := s.lastChoice().Sp[0]

	sp.NvSpPr.CNvPr.IdAttr = id
	sp.NvSpPr.CNvPr.NameAttr = t.Name
	sp.NvSpPr.CNvSpPr.TxBoxAttr = unioffice.Bool(true)
	setFrame(sp.SpPr, t.Frame)
	if t.FillColor != "" {
		tb.Properties().SetSolidFill(color.FromHex(t.FillColor))
	} else {
		tb.Properties().SetNoFill()
	}

	body := sp.TxBody.BodyPr
	body.WrapAttr = dml.ST_TextWrappingTypeNone
	if t.WordWrap {
		body.WrapAttr = dml.ST_TextWrappingTypeSquare
	}
	body.RtlColAttr = unioffice.Bool(false)
	body.SpAutoFit = nil
	switch t.AutoFit {
	case AutoFitShrink:
		body.NormAutofit = dml.NewCT_TextNormalAutofit()
	case AutoFitResize:
		body.SpAutoFit = dml.NewCT_TextShapeAutofit()
	default:
		body.NoAutofit = dml.NewCT_TextNoAutofit()
	}

	para := tb.AddParagraph()
	runProps := func(rp *dml.CT_TextCharacterProperties) {
		rp.LangAttr = unioffice.String("en-US")
		if t.FontSize > 0 {
			rp.SzAttr = unioffice.Int32(int32(t.FontSize))
		}
	}
	if t.Text == "" {
		para.X().EndParaRPr = dml.NewCT_TextCharacterProperties()
		runProps(para.X().EndParaRPr)
		return
	}
	for i, line := range strings.Split(t.Text, "\n") {
		if i > 0 {
			para.AddBreak()
		}
		if line == "" {
			continue
		}
		r := para.AddRun()
		r.SetText(line)
		r.Properties()
		runProps(r.X().R.RPr)
	}
}

// Pictures returns the slide's pictures in declaration order.
func (s *Slide) Pictures() []*Picture {
	var out []*Picture
	for _, c := range s.tree().Choice {
		for _, pic := range c.Pic {
			out = append(out, s.picture(pic))
		}
	}
	return out
}

// FirstPicture returns the first picture in declaration order, or nil.
func (s *Slide) FirstPicture() *Picture {
	for _, c := range s.tree().Choice {
		if len(c.Pic) > 0 {
			return s.picture(c.Pic[0])
		}
	}
	return nil
}

// TextBoxes returns the slide's text-bearing shapes in declaration order,
// placeholders included.
func (s *Slide) TextBoxes() []*TextBox {
	var out []*TextBox
	for _, c := range s.tree().Choice {
		for _, sp := range c.Sp {
			if sp.TxBody != nil {
				out = append(out, textBoxOf(sp))
			}
		}
	}
	return out
}

// CountNamed returns how many top-level shapes carry the given name.
func (s *Slide) CountNamed(name string) int {
	n := 0
	for _, c := range s.tree().Choice {
		for _, props := range choiceProps(c) {
			if props != nil && props.NameAttr == name {
				n++
			}
		}
	}
	return n
}

// RemoveNamed drops every top-level shape with the given name and reports how
// many went.
func (s *Slide) RemoveNamed(name string) int {
	named := func(p *dml.CT_NonVisualDrawingProps) bool {
		return p != nil && p.NameAttr == name
	}
	removed := 0
	tree := s.tree()
	kept := tree.Choice[:0]
	for _, c := range tree.Choice {
		c.Sp = filterShapes(c.Sp, func(sp *pml.CT_Shape) bool { return named(spProps(sp)) }, &removed)
		c.Pic = filterShapes(c.Pic, func(p *pml.CT_Picture) bool { return named(picProps(p)) }, &removed)
		c.GrpSp = filterShapes(c.GrpSp, func(g *pml.CT_GroupShape) bool { return named(groupProps(g)) }, &removed)
		c.GraphicFrame = filterShapes(c.GraphicFrame, func(f *pml.CT_GraphicalObjectFrame) bool { return named(frameProps(f)) }, &removed)
		c.CxnSp = filterShapes(c.CxnSp, func(cx *pml.CT_Connector) bool { return named(connectorProps(cx)) }, &removed)
		if len(c.Sp)+len(c.Pic)+len(c.GrpSp)+len(c.GraphicFrame)+len(c.CxnSp)+len(c.ContentPart) > 0 {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(tree.Choice); i++ {
		tree.Choice[i] = nil
	}
	tree.Choice = kept
	return removed
}

func filterShapes[T any](in []T, drop func(T) bool, removed *int) []T {
	out := in[:0]
	for _, v := range in {
		if drop(v) {
			*removed++
			continue
		}
		out = append(out, v)
	}
	return out
}

func (s *Slide) picture(pic *pml.CT_Picture) *Picture {
	out := &Picture{}
	if props := picProps(pic); props != nil {
		out.Name = props.NameAttr
	}
	out.Frame = frameOf(pic.SpPr)
	if pic.BlipFill != nil && pic.BlipFill.Blip != nil && pic.BlipFill.Blip.EmbedAttr != nil {
		if m, ok := s.media[*pic.BlipFill.Blip.EmbedAttr]; ok {
			out.Image = m.data
			out.Format = m.format
		}
	}
	return out
}

func textBoxOf(sp *pml.CT_Shape) *TextBox {
	tb := &TextBox{Frame: frameOf(sp.SpPr)}
	if props := spProps(sp); props != nil {
		tb.Name = props.NameAttr
	}
	if sp.SpPr != nil && sp.SpPr.SolidFill != nil && sp.SpPr.SolidFill.SrgbClr != nil {
		tb.FillColor = strings.ToUpper(sp.SpPr.SolidFill.SrgbClr.ValAttr)
	}
	if body := sp.TxBody.BodyPr; body != nil {
		tb.WordWrap = body.WrapAttr != dml.ST_TextWrappingTypeNone
		switch {
		case body.NormAutofit != nil:
			tb.AutoFit = AutoFitShrink
		case body.SpAutoFit != nil:
			tb.AutoFit = AutoFitResize
		}
	} else {
		tb.WordWrap = true
	}

	size := func(rp *dml.CT_TextCharacterProperties) {
		if tb.FontSize == 0 && rp != nil && rp.SzAttr != nil {
			tb.FontSize = int(*rp.SzAttr)
		}
	}
	var text strings.Builder
	for i, p := range sp.TxBody.P {
		if i > 0 {
			text.WriteByte('\n')
		}
		for _, run := range p.EG_TextRun {
			switch {
			case run.R != nil:
				text.WriteString(run.R.T)
				size(run.R.RPr)
			case run.Fld != nil:
				if run.Fld.T != nil {
					text.WriteString(*run.Fld.T)
				}
				size(run.Fld.RPr)
			case run.Br != nil:
				text.WriteByte('\n')
			}
		}
		size(p.EndParaRPr)
	}
	tb.Text = text.String()
	return tb
}

func spProps(sp *pml.CT_Shape) *dml.CT_NonVisualDrawingProps {
	if sp.NvSpPr == nil {
		return nil
	}
	return sp.NvSpPr.CNvPr
}

func picProps(p *pml.CT_Picture) *dml.CT_NonVisualDrawingProps {
	if p.NvPicPr == nil {
		return nil
	}
	return p.NvPicPr.CNvPr
}

func groupProps(g *pml.CT_GroupShape) *dml.CT_NonVisualDrawingProps {
	if g.NvGrpSpPr == nil {
		return nil
	}
	return g.NvGrpSpPr.CNvPr
}

func frameProps(f *pml.CT_GraphicalObjectFrame) *dml.CT_NonVisualDrawingProps {
	if f.NvGraphicFramePr == nil {
		return nil
	}
	return f.NvGraphicFramePr.CNvPr
}

func connectorProps(c *pml.CT_Connector) *dml.CT_NonVisualDrawingProps {
	if c.NvCxnSpPr == nil {
		return nil
	}
	return c.NvCxnSpPr.CNvPr
}

func choiceProps(c *pml.CT_GroupShapeChoice) []*dml.CT_NonVisualDrawingProps {
	var out []*dml.CT_NonVisualDrawingProps
	for _, sp := range c.Sp {
		out = append(out, spProps(sp))
	}
	for _, p := range c.Pic {
		out = append(out, picProps(p))
	}
	for _, g := range c.GrpSp {
		out = append(out, groupProps(g))
	}
	for _, f := range c.GraphicFrame {
		out = append(out, frameProps(f))
	}
	for _, cx := range c.CxnSp {
		out = append(out, connectorProps(cx))
	}
	return out
}

// nextShapeID returns one past the highest drawing id anywhere in the tree,
// nested groups included.
func nextShapeID(tree *pml.CT_GroupShape) uint32 {
	highest := uint32(1)
	var walk func(g *pml.CT_GroupShape)
	walk = func(g *pml.CT_GroupShape) {
		if p := groupProps(g); p != nil && p.IdAttr > highest {
			highest = p.IdAttr
		}
		for _, c := range g.Choice {
			for _, p := range choiceProps(c) {
				if p != nil && p.IdAttr > highest {
					highest = p.IdAttr
				}
			}
			for _, child := range c.GrpSp {
				walk(child)
			}
		}
	}
	walk(tree)
	return highest + 1
}

// setFrame writes r in EMU directly; the codec's distance helpers go through
// float points and can drift by one EMU.
func setFrame(spPr *dml.CT_ShapeProperties, r Rect) {
	xfrm := dml.NewCT_Transform2D()
	xfrm.Off = dml.NewCT_Point2D()
	xfrm.Off.XAttr.ST_CoordinateUnqualified = unioffice.Int64(r.X)
	xfrm.Off.YAttr.ST_CoordinateUnqualified = unioffice.Int64(r.Y)
	xfrm.Ext = dml.NewCT_PositiveSize2D()
	xfrm.Ext.CxAttr = r.Width
	xfrm.Ext.CyAttr = r.Height
	spPr.Xfrm = xfrm
}

func frameOf(spPr *dml.CT_ShapeProperties) Rect {
	if spPr == nil || spPr.Xfrm == nil {
		return Rect{}
	}
	var r Rect
	if off := spPr.Xfrm.Off; off != nil {
		if off.XAttr.ST_CoordinateUnqualified != nil {
			r.X = *off.XAttr.ST_CoordinateUnqualified
		}
		if off.YAttr.ST_CoordinateUnqualified != nil {
			r.Y = *off.YAttr.ST_CoordinateUnqualified
		}
	}
	if ext := spPr.Xfrm.Ext; ext != nil {
		r.Width = ext.CxAttr
		r.Height = ext.CyAttr
	}
	return r
}

func mediaExt(format string) (string, error) {
	switch strings.ToLower(format) {
	case "png", "":
		return "png", nil
	case "jpeg", "jpg":
		return "jpeg", nil
	default:
		return "", fmt.Errorf("unsupported image format %q", format)
	}
}
