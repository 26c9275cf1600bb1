package deck

import (
	"encoding/xml"
	"path"
	"regexp"
)

// Layout is a reusable slide blueprint belonging to the template's master.
// Its name is free text under the template author's control and therefore
// unreliable; the slot composition is what the matcher falls back on.
type Layout struct {
	Index    int    // ordinal within the master's layout list
	Name     string // p:cSld name attribute
	Slots    []*Slot
	partName string
}

// Master is the top-level container for a set of layouts sharing a theme.
// Only the first master of a document is exposed; additional masters are a
// stated non-goal.
type Master struct {
	Layouts  []*Layout
	slots    []*Slot
	partName string
}

// ================================================================
// Part XML structures (local-name matching; prefixes vary by producer)
// ================================================================

type xmlRelationships struct {
	Rels []xmlRelationship `xml:"Relationship"`
}

type xmlRelationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type xmlCommonSlideData struct {
	CSld struct {
		Name   string `xml:"name,attr"`
		SpTree struct {
			Shapes   []xmlSp  `xml:"sp"`
			Pictures []xmlPic `xml:"pic"`
		} `xml:"spTree"`
	} `xml:"cSld"`
}

type xmlSp struct {
	NvSpPr struct {
		CNvPr xmlCNvPr `xml:"cNvPr"`
		NvPr  xmlNvPr  `xml:"nvPr"`
	} `xml:"nvSpPr"`
	SpPr xmlSpPr `xml:"spPr"`
}

type xmlPic struct {
	NvPicPr struct {
		CNvPr xmlCNvPr `xml:"cNvPr"`
		NvPr  xmlNvPr  `xml:"nvPr"`
	} `xml:"nvPicPr"`
	SpPr xmlSpPr `xml:"spPr"`
}

type xmlCNvPr struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type xmlNvPr struct {
	Ph *xmlPh `xml:"ph"`
}

type xmlPh struct {
	Type string `xml:"type,attr"`
	Idx  string `xml:"idx,attr"`
}

type xmlSpPr struct {
	Xfrm *xmlXfrm `xml:"xfrm"`
}

type xmlXfrm struct {
	Off *xmlOff `xml:"off"`
	Ext *xmlExt `xml:"ext"`
}

type xmlOff struct {
	X int64 `xml:"x,attr"`
	Y int64 `xml:"y,attr"`
}

type xmlExt struct {
	CX int64 `xml:"cx,attr"`
	CY int64 `xml:"cy,attr"`
}

// ================================================================
// Parsing
// ================================================================

// relIDAttr extracts the r:id attribute from an element's raw attribute text.
var relIDAttr = regexp.MustCompile(`r:id="([^"]+)"`)

// layoutIDTag matches sldLayoutId elements in master XML, capturing the
// attribute text so layout order follows the master's sldLayoutIdLst.
var layoutIDTag = regexp.MustCompile(`<(?:[A-Za-z0-9]+:)?sldLayoutId\b([^>]*?)/?>`)

// parseRelationships decodes a .rels part into an ID → relationship map
// while preserving declaration order.
func parseRelationships(data []byte) ([]xmlRelationship, error) {
	var rels xmlRelationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, err
	}
	return rels.Rels, nil
}

// relTarget resolves a relationship target against the directory of the part
// that owns the .rels file (e.g. "../slideLayouts/slideLayout2.xml" relative
// to "ppt/slideMasters" becomes "ppt/slideLayouts/slideLayout2.xml").
func relTarget(ownerPart, target string) string {
	return path.Clean(path.Join(path.Dir(ownerPart), target))
}

// parseSlots extracts placeholder slots from a layout or master part.
// Shapes without a p:ph child are ordinary artwork and are not slots.
// Slot order is shape-tree order for text shapes followed by picture frames.
func parseSlots(data []byte) ([]*Slot, error) {
	var csld xmlCommonSlideData
	if err := xml.Unmarshal(data, &csld); err != nil {
		return nil, err
	}

	var slots []*Slot
	for _, sp := range csld.CSld.SpTree.Shapes {
		if sp.NvSpPr.NvPr.Ph == nil {
			continue
		}
		slots = append(slots, newSlot(sp.NvSpPr.CNvPr, sp.NvSpPr.NvPr.Ph, sp.SpPr))
	}
	for _, pic := range csld.CSld.SpTree.Pictures {
		if pic.NvPicPr.NvPr.Ph == nil {
			continue
		}
		slots = append(slots, newSlot(pic.NvPicPr.CNvPr, pic.NvPicPr.NvPr.Ph, pic.SpPr))
	}
	return slots, nil
}

func newSlot(cnv xmlCNvPr, ph *xmlPh, sppr xmlSpPr) *Slot {
	s := &Slot{
		Kind:    classifyPlaceholder(ph.Type),
		Name:    cnv.Name,
		RawType: ph.Type,
		Idx:     ph.Idx,
	}
	if sppr.Xfrm != nil && sppr.Xfrm.Off != nil && sppr.Xfrm.Ext != nil {
		s.Frame = Rect{
			Left:   EMU(sppr.Xfrm.Off.X),
			Top:    EMU(sppr.Xfrm.Off.Y),
			Width:  EMU(sppr.Xfrm.Ext.CX),
			Height: EMU(sppr.Xfrm.Ext.CY),
		}
	}
	return s
}

// parseMaster builds the Master with its ordered layouts. Layout order
// follows the master's sldLayoutIdLst; layouts referenced there but missing
// from the package are skipped rather than failing the whole parse.
func (p *Presentation) parseMaster(masterPart string) (*Master, error) {
	masterXML, ok := p.parts[masterPart]
	if !ok {
		return nil, errMissingPart(masterPart)
	}

	m := &Master{partName: masterPart}
	var err error
	if m.slots, err = parseSlots(masterXML); err != nil {
		return nil, err
	}

	relsPart := relsPartFor(masterPart)
	var rels []xmlRelationship
	if data, ok := p.parts[relsPart]; ok {
		if rels, err = parseRelationships(data); err != nil {
			return nil, err
		}
	}
	relByID := make(map[string]xmlRelationship, len(rels))
	for _, r := range rels {
		relByID[r.ID] = r
	}

	for _, tag := range layoutIDTag.FindAllSubmatch(masterXML, -1) {
		idMatch := relIDAttr.FindSubmatch(tag[1])
		if idMatch == nil {
			continue
		}
		rel, ok := relByID[string(idMatch[1])]
		if !ok {
			continue
		}
		layoutPart := relTarget(masterPart, rel.Target)
		layoutXML, ok := p.parts[layoutPart]
		if !ok {
			continue
		}

		layout := &Layout{
			Index:    len(m.Layouts),
			partName: layoutPart,
		}
		var csld xmlCommonSlideData
		if err := xml.Unmarshal(layoutXML, &csld); err != nil {
			continue // malformed layout part, tolerate
		}
		layout.Name = csld.CSld.Name
		if layout.Slots, err = parseSlots(layoutXML); err != nil {
			continue
		}
		resolveInheritedFrames(layout, m)
		m.Layouts = append(m.Layouts, layout)
	}

	return m, nil
}

// resolveInheritedFrames fills in geometry for layout slots that omit their
// own xfrm by matching the master's slot with the same idx (or the master
// title slot for title placeholders, which carry no idx).
func resolveInheritedFrames(layout *Layout, m *Master) {
	for _, slot := range layout.Slots {
		if slot.HasFrame() {
			continue
		}
		for _, ms := range m.slots {
			if !ms.HasFrame() {
				continue
			}
			if slot.Kind == KindTitle && ms.Kind == KindTitle {
				slot.Frame = ms.Frame
				break
			}
			if slot.Idx != "" && slot.Idx == ms.Idx {
				slot.Frame = ms.Frame
				break
			}
		}
	}
}

// relsPartFor returns the .rels part name for a given part
// (e.g. "ppt/slideMasters/slideMaster1.xml" →
// "ppt/slideMasters/_rels/slideMaster1.xml.rels").
func relsPartFor(part string) string {
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}
