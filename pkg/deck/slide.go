package deck

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/slidesmith/slidesmith/pkg/errors"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n"

// Drawing namespaces declared on every generated slide part.
const slideRootOpen = `<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
	` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
	` xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">`

// Slide is a mutable slide instance created from exactly one layout of the
// same presentation. It accumulates content and is rendered to XML at save
// time. A slide is never deleted once added; MoveSlide changes its position.
type Slide struct {
	prs      *Presentation
	layout   *Layout
	partName string
	rels     []xmlRelationship

	placeholders []*Placeholder
	extras       []shapeRenderer // synthesized textboxes and pictures, in creation order
	background   *[3]uint8
}

// shapeRenderer is a synthesized shape that can emit its sp/pic element.
type shapeRenderer interface {
	renderShape(b *bytes.Buffer, id int)
}

// Layout returns the layout this slide was instantiated from.
func (s *Slide) Layout() *Layout {
	return s.layout
}

// Placeholders returns the slide's placeholder instances in slot order.
// Removed placeholders stay in the list but render nothing.
func (s *Slide) Placeholders() []*Placeholder {
	return s.placeholders
}

// SetBackgroundRGB overrides the inherited background with an opaque solid
// fill of the given color.
func (s *Slide) SetBackgroundRGB(r, g, b uint8) {
	s.background = &[3]uint8{r, g, b}
}

// textFrame holds text content and the formatting the composer controls.
type textFrame struct {
	text      string
	alignLeft bool
	wordWrap  bool
	insets    *[2]EMU // left, top
}

func (tf *textFrame) setText(text string)     { tf.text = text }
func (tf *textFrame) setAlignLeft()           { tf.alignLeft = true }
func (tf *textFrame) setWordWrap(wrap bool)   { tf.wordWrap = wrap }
func (tf *textFrame) setInsets(left, top EMU) { tf.insets = &[2]EMU{left, top} }

// Placeholder is a slide-owned copy of a layout slot. Geometry is inherited
// from the layout by the rendering application; the copy carries the resolved
// frame so callers can read it (picture replacement needs exact bounds).
type Placeholder struct {
	slot    Slot
	frame   textFrame
	removed bool
}

// Kind returns the placeholder's classification.
func (p *Placeholder) Kind() Kind { return p.slot.Kind }

// Name returns the author-assigned shape name from the layout.
func (p *Placeholder) Name() string { return p.slot.Name }

// Frame returns the resolved bounding box and whether one exists.
func (p *Placeholder) Frame() (Rect, bool) {
	return p.slot.Frame, p.slot.HasFrame()
}

// SetText replaces the placeholder's text. Newlines split into paragraphs.
func (p *Placeholder) SetText(text string) { p.frame.setText(text) }

// AlignLeft left-aligns every paragraph of the placeholder.
func (p *Placeholder) AlignLeft() { p.frame.setAlignLeft() }

// SetWordWrap enables or disables word wrapping.
func (p *Placeholder) SetWordWrap(wrap bool) { p.frame.setWordWrap(wrap) }

// SetInsets overrides the left and top text insets.
func (p *Placeholder) SetInsets(left, top EMU) { p.frame.setInsets(left, top) }

// Remove drops the placeholder from the slide. Used when a picture takes
// over a picture placeholder's bounds.
func (p *Placeholder) Remove() { p.removed = true }

// TextBox is a synthesized text shape at fixed geometry, used when a layout
// offers no suitable placeholder.
type TextBox struct {
	rect  Rect
	frame textFrame
	seq   int
}

// SetText replaces the textbox text. Newlines split into paragraphs.
func (t *TextBox) SetText(text string) { t.frame.setText(text) }

// AlignLeft left-aligns every paragraph of the textbox.
func (t *TextBox) AlignLeft() { t.frame.setAlignLeft() }

// SetWordWrap enables or disables word wrapping.
func (t *TextBox) SetWordWrap(wrap bool) { t.frame.setWordWrap(wrap) }

// SetInsets overrides the left and top text insets.
func (t *TextBox) SetInsets(left, top EMU) { t.frame.setInsets(left, top) }

// AddTextBox appends a new empty textbox with the given bounds.
func (s *Slide) AddTextBox(rect Rect) *TextBox {
	t := &TextBox{rect: rect, seq: len(s.extras) + 1}
	s.extras = append(s.extras, t)
	return t
}

// Picture is an image shape backed by a media part of the package.
type Picture struct {
	rect Rect
	rid  string
	seq  int
}

// Frame returns the picture's bounding box.
func (pc *Picture) Frame() Rect { return pc.rect }

// AddPicture stores the image bytes as a media part and appends a picture
// shape with the given bounds. The extension must be on the image allow-list.
func (s *Slide) AddPicture(data []byte, ext string, rect Rect) (*Picture, error) {
	ext = strings.ToLower(ext)
	if _, ok := imageContentTypes[ext]; !ok {
		return nil, errors.New(errors.ErrCodeInvalidImage, "unsupported image extension %q", ext)
	}

	mediaPart := fmt.Sprintf("ppt/media/image%d.%s", s.prs.nextMediaNumber(), ext)
	s.prs.addPart(mediaPart, data)
	s.prs.mediaExts[ext] = true

	rid := fmt.Sprintf("rId%d", len(s.rels)+1)
	s.rels = append(s.rels, xmlRelationship{
		ID:     rid,
		Type:   relTypeImage,
		Target: "../media/" + layoutBase(mediaPart),
	})

	pc := &Picture{rect: rect, rid: rid, seq: len(s.extras) + 1}
	s.extras = append(s.extras, pc)
	return pc, nil
}

// ================================================================
// Rendering
// ================================================================

// render serializes the slide to its part XML.
func (s *Slide) render() []byte {
	var b bytes.Buffer
	b.WriteString(xmlHeader)
	b.WriteString(slideRootOpen)
	b.WriteString("<p:cSld>")

	if s.background != nil {
		fmt.Fprintf(&b,
			`<p:bg><p:bgPr><a:solidFill><a:srgbClr val="%02X%02X%02X"/></a:solidFill><a:effectLst/></p:bgPr></p:bg>`,
			s.background[0], s.background[1], s.background[2])
	}

	b.WriteString(`<p:spTree>`)
	b.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>`)
	b.WriteString(`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/>` +
		`<a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`)

	id := 2
	for _, ph := range s.placeholders {
		if ph.removed {
			continue
		}
		ph.renderShape(&b, id)
		id++
	}
	for _, ex := range s.extras {
		ex.renderShape(&b, id)
		id++
	}

	b.WriteString("</p:spTree></p:cSld>")
	b.WriteString("<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>")
	return b.Bytes()
}

func (p *Placeholder) renderShape(b *bytes.Buffer, id int) {
	fmt.Fprintf(b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/>`, id, escapeXML(p.slot.Name))
	b.WriteString(`<p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr><p:nvPr><p:ph`)
	if p.slot.RawType != "" {
		fmt.Fprintf(b, ` type="%s"`, p.slot.RawType)
	}
	if p.slot.Idx != "" {
		fmt.Fprintf(b, ` idx="%s"`, p.slot.Idx)
	}
	b.WriteString(`/></p:nvPr></p:nvSpPr><p:spPr/>`)
	p.frame.renderTxBody(b)
	b.WriteString("</p:sp>")
}

func (t *TextBox) renderShape(b *bytes.Buffer, id int) {
	fmt.Fprintf(b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="TextBox %d"/>`, id, t.seq)
	b.WriteString(`<p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`)
	b.WriteString("<p:spPr>")
	renderXfrm(b, t.rect)
	b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:noFill/></p:spPr>`)
	t.frame.renderTxBody(b)
	b.WriteString("</p:sp>")
}

func (pc *Picture) renderShape(b *bytes.Buffer, id int) {
	fmt.Fprintf(b, `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="Picture %d"/>`, id, pc.seq)
	b.WriteString(`<p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>`)
	fmt.Fprintf(b, `<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`, pc.rid)
	b.WriteString("<p:spPr>")
	renderXfrm(b, pc.rect)
	b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`)
}

func renderXfrm(b *bytes.Buffer, r Rect) {
	fmt.Fprintf(b, `<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`,
		r.Left, r.Top, r.Width, r.Height)
}

func (tf *textFrame) renderTxBody(b *bytes.Buffer) {
	b.WriteString("<p:txBody><a:bodyPr")
	if tf.wordWrap {
		b.WriteString(` wrap="square"`)
	}
	if tf.insets != nil {
		fmt.Fprintf(b, ` lIns="%d" tIns="%d"`, tf.insets[0], tf.insets[1])
	}
	b.WriteString("/><a:lstStyle/>")

	if tf.text == "" {
		b.WriteString("<a:p><a:endParaRPr/></a:p>")
	} else {
		for _, line := range strings.Split(tf.text, "\n") {
			b.WriteString("<a:p>")
			if tf.alignLeft {
				b.WriteString(`<a:pPr algn="l"/>`)
			}
			fmt.Fprintf(b, "<a:r><a:t>%s</a:t></a:r></a:p>", escapeXML(line))
		}
	}
	b.WriteString("</p:txBody>")
}

// renderRelationships serializes a .rels part.
func renderRelationships(rels []xmlRelationship) []byte {
	var b bytes.Buffer
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, r := range rels {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="%s" Target="%s"/>`, r.ID, r.Type, r.Target)
	}
	b.WriteString("</Relationships>")
	return b.Bytes()
}

// escapeXML escapes text for inclusion in element content or attributes.
func escapeXML(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
