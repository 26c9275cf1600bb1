// Package deck reads and mutates PPTX presentation packages.
//
// A .pptx file is a zip archive of XML parts tied together by relationship
// files. This package keeps every part as raw bytes and touches only what a
// mutation needs: template parts written by foreign tools survive a load/save
// round trip untouched. Structured parsing is limited to the read side
// (masters, layouts, placeholder slots); new slide parts are generated whole,
// and edits to shared parts (slide ordering, relationships, content types)
// are spliced into the original bytes.
//
// # Model
//
// The exposed tree mirrors the document format: a Presentation owns one
// Master (additional masters are out of scope), the Master owns ordered
// Layouts, each Layout carries typed placeholder Slots, and new Slides are
// instantiated from exactly one Layout of the same Presentation.
//
// # Usage
//
//	prs, err := deck.Open(data)
//	if err != nil { ... }
//	slide, _ := prs.AddSlide(prs.Layouts()[0])
//	slide.Placeholders()[0].SetText("Hello")
//	out, err := prs.Save()
//
// All geometry is expressed in EMU (914400 per inch).
package deck

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/slidesmith/slidesmith/pkg/errors"
)

// Well-known part names.
const (
	contentTypesPart = "[Content_Types].xml"
	presentationPart = "ppt/presentation.xml"
)

// Relationship type URIs.
const (
	relTypeSlide       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relTypeSlideLayout = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	relTypeSlideMaster = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster"
	relTypeImage       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// slideContentType is the content type registered for each new slide part.
const slideContentType = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"

// imageContentTypes maps allow-listed image extensions to their MIME types.
var imageContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
}

// slideRef is one entry of the presentation's slide ordering list. Reordering
// operates on these opaque references only.
type slideRef struct {
	id  int    // sldId id attribute
	rid string // relationship ID into the presentation rels
}

// Presentation is an in-memory PPTX package. Each instance is request-scoped
// and not safe for concurrent use.
type Presentation struct {
	parts map[string][]byte
	order []string // original zip entry order
	added []string // parts created by this instance, in creation order

	presRels []xmlRelationship
	newRels  []xmlRelationship
	slides   []slideRef
	pending  []*Slide
	master   *Master

	mediaExts map[string]bool // extensions needing a content-type default
}

// Regular expressions for splicing shared parts. Namespace prefixes vary by
// producer, so tags match any prefix; new elements reuse the detected one.
var (
	sldIDTag       = regexp.MustCompile(`<(?:[A-Za-z0-9]+:)?sldId\b([^>]*?)/?>`)
	sldMasterIDTag = regexp.MustCompile(`<(?:[A-Za-z0-9]+:)?sldMasterId\b([^>]*?)/?>`)
	idAttr         = regexp.MustCompile(`(?:^|\s)id="(\d+)"`)
	sldIDLstBlock  = regexp.MustCompile(`(?s)<(?:[A-Za-z0-9]+:)?sldIdLst(?:\s[^>]*)?>.*?</(?:[A-Za-z0-9]+:)?sldIdLst>|<(?:[A-Za-z0-9]+:)?sldIdLst\s*/>`)
	masterLstClose = regexp.MustCompile(`</(?:[A-Za-z0-9]+:)?sldMasterIdLst>`)
	presPrefix     = regexp.MustCompile(`<([A-Za-z0-9]+):presentation[\s>]`)
	slidePartName  = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	mediaPartName  = regexp.MustCompile(`^ppt/media/image(\d+)\.[A-Za-z0-9]+$`)
	relIDNum       = regexp.MustCompile(`^rId(\d+)$`)
)

// Open parses a PPTX package from its raw bytes. It returns a DOC_PARSE error
// when the bytes are not a zip archive or lack the presentation part.
func Open(data []byte) (*Presentation, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDocParse, err, "invalid or corrupted PowerPoint file")
	}

	p := &Presentation{
		parts:     make(map[string][]byte, len(zr.File)),
		mediaExts: make(map[string]bool),
	}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDocParse, err, "cannot read part %s", f.Name)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			rc.Close()
			return nil, errors.Wrap(errors.ErrCodeDocParse, err, "cannot read part %s", f.Name)
		}
		rc.Close()
		p.parts[f.Name] = buf.Bytes()
		p.order = append(p.order, f.Name)
	}

	presXML, ok := p.parts[presentationPart]
	if !ok {
		return nil, errors.New(errors.ErrCodeDocParse, "not a PowerPoint presentation: missing %s", presentationPart)
	}

	if relsData, ok := p.parts[relsPartFor(presentationPart)]; ok {
		if p.presRels, err = parseRelationships(relsData); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDocParse, err, "invalid presentation relationships")
		}
	}

	p.slides = parseSlideRefs(presXML)

	masterPart, err := p.firstMasterPart(presXML)
	if err != nil {
		return nil, err
	}
	if p.master, err = p.parseMaster(masterPart); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDocParse, err, "invalid slide master")
	}

	return p, nil
}

// parseSlideRefs extracts the sldIdLst entries in document order.
func parseSlideRefs(presXML []byte) []slideRef {
	var refs []slideRef
	for _, tag := range sldIDTag.FindAllSubmatch(presXML, -1) {
		attrs := tag[1]
		idM := idAttr.FindSubmatch(attrs)
		ridM := relIDAttr.FindSubmatch(attrs)
		if idM == nil || ridM == nil {
			continue
		}
		id, err := strconv.Atoi(string(idM[1]))
		if err != nil {
			continue
		}
		refs = append(refs, slideRef{id: id, rid: string(ridM[1])})
	}
	return refs
}

// firstMasterPart resolves the first entry of sldMasterIdLst to a part name.
func (p *Presentation) firstMasterPart(presXML []byte) (string, error) {
	for _, tag := range sldMasterIDTag.FindAllSubmatch(presXML, -1) {
		ridM := relIDAttr.FindSubmatch(tag[1])
		if ridM == nil {
			continue
		}
		if rel, ok := p.relByID(string(ridM[1])); ok {
			return relTarget(presentationPart, rel.Target), nil
		}
	}
	return "", errors.New(errors.ErrCodeDocParse, "presentation has no slide master")
}

func (p *Presentation) relByID(id string) (xmlRelationship, bool) {
	for _, r := range p.presRels {
		if r.ID == id {
			return r, true
		}
	}
	return xmlRelationship{}, false
}

// Master returns the first slide master of the presentation.
func (p *Presentation) Master() *Master {
	return p.master
}

// Layouts returns the master's layouts in their stored order.
func (p *Presentation) Layouts() []*Layout {
	return p.master.Layouts
}

// SlideCount returns the number of slides in the ordering list, including
// slides added by this instance.
func (p *Presentation) SlideCount() int {
	return len(p.slides)
}

// AddSlide instantiates a new slide from the given layout and appends it to
// the end of the slide sequence. Use MoveSlide to reposition it.
func (p *Presentation) AddSlide(layout *Layout) (*Slide, error) {
	if layout == nil {
		return nil, errors.New(errors.ErrCodeInternal, "cannot add slide from nil layout")
	}

	partName := fmt.Sprintf("ppt/slides/slide%d.xml", p.nextSlideNumber())
	rid := p.nextPresRelID()

	s := &Slide{
		prs:      p,
		layout:   layout,
		partName: partName,
		rels: []xmlRelationship{{
			ID:     "rId1",
			Type:   relTypeSlideLayout,
			Target: "../slideLayouts/" + layoutBase(layout.partName),
		}},
	}
	for _, slot := range layout.Slots {
		if slot.Kind == KindOther {
			continue // dates, footers and friends stay inherited
		}
		s.placeholders = append(s.placeholders, &Placeholder{slot: *slot})
	}

	rel := xmlRelationship{ID: rid, Type: relTypeSlide, Target: "slides/" + layoutBase(partName)}
	p.presRels = append(p.presRels, rel)
	p.newRels = append(p.newRels, rel)
	p.slides = append(p.slides, slideRef{id: p.nextSlideID(), rid: rid})
	p.pending = append(p.pending, s)

	return s, nil
}

// MoveSlide removes the slide reference at index from and reinserts it at
// index to. The operation is atomic: either the whole reorder applies or the
// ordering list is untouched.
func (p *Presentation) MoveSlide(from, to int) error {
	if from < 0 || from >= len(p.slides) {
		return errors.New(errors.ErrCodeInvalidPosition, "slide index %d out of range [0,%d)", from, len(p.slides))
	}
	if to < 0 {
		return errors.New(errors.ErrCodeInvalidPosition, "target position %d is negative", to)
	}
	ref := p.slides[from]
	rest := append(append([]slideRef{}, p.slides[:from]...), p.slides[from+1:]...)
	if to > len(rest) {
		to = len(rest)
	}
	p.slides = append(append(append([]slideRef{}, rest[:to]...), ref), rest[to:]...)
	return nil
}

// nextSlideNumber picks the next free N for ppt/slides/slideN.xml.
func (p *Presentation) nextSlideNumber() int {
	max := 0
	for name := range p.parts {
		if m := slidePartName.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > max {
				max = n
			}
		}
	}
	for _, s := range p.pending {
		if m := slidePartName.FindStringSubmatch(s.partName); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > max {
				max = n
			}
		}
	}
	return max + 1
}

// nextSlideID picks a fresh sldId value. The format reserves values below 256.
func (p *Presentation) nextSlideID() int {
	max := 255
	for _, ref := range p.slides {
		if ref.id > max {
			max = ref.id
		}
	}
	return max + 1
}

// nextPresRelID picks the next free rId in the presentation rels.
func (p *Presentation) nextPresRelID() string {
	max := 0
	for _, r := range p.presRels {
		if m := relIDNum.FindStringSubmatch(r.ID); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > max {
				max = n
			}
		}
	}
	return fmt.Sprintf("rId%d", max+1)
}

// nextMediaNumber picks the next free K for ppt/media/imageK.<ext>.
func (p *Presentation) nextMediaNumber() int {
	max := 0
	for name := range p.parts {
		if m := mediaPartName.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > max {
				max = n
			}
		}
	}
	return max + 1
}

// addPart registers a new part created by this instance.
func (p *Presentation) addPart(name string, data []byte) {
	if _, exists := p.parts[name]; !exists {
		p.added = append(p.added, name)
	}
	p.parts[name] = data
}

// Save serializes the package back to PPTX bytes: pending slides are
// rendered, shared parts are spliced, and the zip is rebuilt preserving the
// original entry order.
func (p *Presentation) Save() ([]byte, error) {
	for _, s := range p.pending {
		p.addPart(s.partName, s.render())
		p.addPart(relsPartFor(s.partName), renderRelationships(s.rels))
	}

	if err := p.updateContentTypes(); err != nil {
		return nil, err
	}
	if err := p.updatePresentation(); err != nil {
		return nil, err
	}
	p.updatePresRels()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := append(append([]string{}, p.order...), sortedNames(p.added)...)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeSaveFailed, err, "cannot write part %s", name)
		}
		if _, err := w.Write(p.parts[name]); err != nil {
			return nil, errors.Wrap(errors.ErrCodeSaveFailed, err, "cannot write part %s", name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSaveFailed, err, "cannot finalize package")
	}
	return buf.Bytes(), nil
}

// updateContentTypes registers new slide parts and media extension defaults.
func (p *Presentation) updateContentTypes() error {
	ct, ok := p.parts[contentTypesPart]
	if !ok {
		return errors.New(errors.ErrCodeSaveFailed, "package has no %s", contentTypesPart)
	}

	var inserts bytes.Buffer
	for _, s := range p.pending {
		if !bytes.Contains(ct, []byte(`PartName="/`+s.partName+`"`)) {
			fmt.Fprintf(&inserts, `<Override PartName="/%s" ContentType="%s"/>`, s.partName, slideContentType)
		}
	}
	for _, ext := range sortedKeys(p.mediaExts) {
		if !bytes.Contains(ct, []byte(`Extension="`+ext+`"`)) {
			fmt.Fprintf(&inserts, `<Default Extension="%s" ContentType="%s"/>`, ext, imageContentTypes[ext])
		}
	}
	if inserts.Len() == 0 {
		return nil
	}

	idx := bytes.LastIndex(ct, []byte("</Types>"))
	if idx < 0 {
		return errors.New(errors.ErrCodeSaveFailed, "malformed %s", contentTypesPart)
	}
	p.parts[contentTypesPart] = spliceAt(ct, idx, inserts.Bytes())
	return nil
}

// updatePresentation rewrites the sldIdLst block to match the current slide
// ordering list.
func (p *Presentation) updatePresentation() error {
	presXML := p.parts[presentationPart]

	prefix := "p"
	if m := presPrefix.FindSubmatch(presXML); m != nil {
		prefix = string(m[1])
	}

	var block bytes.Buffer
	fmt.Fprintf(&block, "<%s:sldIdLst>", prefix)
	for _, ref := range p.slides {
		fmt.Fprintf(&block, `<%s:sldId id="%d" r:id="%s"/>`, prefix, ref.id, ref.rid)
	}
	fmt.Fprintf(&block, "</%s:sldIdLst>", prefix)

	if loc := sldIDLstBlock.FindIndex(presXML); loc != nil {
		p.parts[presentationPart] = spliceRange(presXML, loc[0], loc[1], block.Bytes())
		return nil
	}
	if loc := masterLstClose.FindIndex(presXML); loc != nil {
		p.parts[presentationPart] = spliceAt(presXML, loc[1], block.Bytes())
		return nil
	}
	return errors.New(errors.ErrCodeSaveFailed, "presentation.xml has no slide list anchor")
}

// updatePresRels splices relationships created by this instance before the
// closing tag, leaving foreign relationships byte-identical.
func (p *Presentation) updatePresRels() {
	if len(p.newRels) == 0 {
		return
	}
	relsPart := relsPartFor(presentationPart)
	data, ok := p.parts[relsPart]
	if !ok {
		p.addPart(relsPart, renderRelationships(p.newRels))
		return
	}
	var inserts bytes.Buffer
	for _, r := range p.newRels {
		fmt.Fprintf(&inserts, `<Relationship Id="%s" Type="%s" Target="%s"/>`, r.ID, r.Type, r.Target)
	}
	if idx := bytes.LastIndex(data, []byte("</Relationships>")); idx >= 0 {
		p.parts[relsPart] = spliceAt(data, idx, inserts.Bytes())
	}
}

func errMissingPart(name string) error {
	return fmt.Errorf("missing part: %s", name)
}

func layoutBase(part string) string {
	return path.Base(part)
}

func spliceAt(data []byte, idx int, insert []byte) []byte {
	out := make([]byte, 0, len(data)+len(insert))
	out = append(out, data[:idx]...)
	out = append(out, insert...)
	return append(out, data[idx:]...)
}

func spliceRange(data []byte, from, to int, replacement []byte) []byte {
	out := make([]byte, 0, len(data)-(to-from)+len(replacement))
	out = append(out, data[:from]...)
	out = append(out, replacement...)
	return append(out, data[to:]...)
}

func sortedNames(names []string) []string {
	out := append([]string{}, names...)
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
