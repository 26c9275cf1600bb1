package compose

import "github.com/slidesmith/slidesmith/pkg/deck"

// PlaceholderInfo describes one placeholder slot for template authors.
type PlaceholderInfo struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// LayoutInfo describes one concrete layout of a template.
type LayoutInfo struct {
	Index        int               `json:"index"`
	Name         string            `json:"name"`
	Excluded     bool              `json:"excluded,omitempty"`
	Placeholders []PlaceholderInfo `json:"placeholders"`
}

// Reflection is the read-only view of a template that layout matching
// operates on, plus the layout each abstract type would resolve to. It backs
// the debug endpoint and the inspect command.
type Reflection struct {
	SlideCount int                   `json:"slide_count"`
	Layouts    []LayoutInfo          `json:"layouts"`
	Resolved   map[LayoutType]string `json:"resolved"`
}

// Inspect reflects a template's layouts and previews resolution for every
// known layout type.
func (m *Matcher) Inspect(prs *deck.Presentation) Reflection {
	ref := Reflection{
		SlideCount: prs.SlideCount(),
		Resolved:   make(map[LayoutType]string),
	}

	for i, l := range prs.Layouts() {
		info := LayoutInfo{Index: i, Name: l.Name, Excluded: excludedName(l.Name)}
		for _, slot := range l.Slots {
			info.Placeholders = append(info.Placeholders, PlaceholderInfo{
				Type: slot.Kind.String(),
				Name: slot.Name,
			})
		}
		ref.Layouts = append(ref.Layouts, info)
	}

	for _, t := range Types() {
		if l, err := m.Resolve(prs.Layouts(), t); err == nil {
			ref.Resolved[t] = l.Name
		}
	}
	return ref
}
