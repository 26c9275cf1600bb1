package compose

import (
	"strings"

	"github.com/charmbracelet/log"

	"github.com/slidesmith/slidesmith/pkg/deck"
	"github.com/slidesmith/slidesmith/pkg/errors"
)

// Matcher resolves an abstract layout type to one concrete layout of a
// template. Resolution is a chain of four strategies tried in order: exact
// display-name match, keyword scoring, structural scoring, and a generic
// fallback. The first strategy producing a candidate wins, so resolution is
// deterministic for a given template.
//
// The Matcher is stateless except for its logger; one instance can serve
// any number of templates.
type Matcher struct {
	Logger *log.Logger
}

// NewMatcher creates a matcher. If logger is nil, the default logger is used.
func NewMatcher(logger *log.Logger) *Matcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Matcher{Logger: logger}
}

// Resolve picks the best concrete layout for the requested type. It returns
// a NO_LAYOUTS error when the template has no layouts at all; in every other
// case some layout is returned.
func (m *Matcher) Resolve(layouts []*deck.Layout, t LayoutType) (*deck.Layout, error) {
	spec, ok := Spec(t)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidLayoutType, "unknown layout type %q", t)
	}
	if len(layouts) == 0 {
		return nil, errors.New(errors.ErrCodeNoLayouts, "template has no slide layouts")
	}

	candidates := make([]*deck.Layout, 0, len(layouts))
	for _, l := range layouts {
		if excludedName(l.Name) {
			m.Logger.Debug("layout excluded from matching", "layout", l.Name)
			continue
		}
		candidates = append(candidates, l)
	}

	if l := matchExactName(candidates, spec); l != nil {
		m.Logger.Info("layout resolved by exact name", "type", t, "layout", l.Name)
		return l, nil
	}
	if l := matchKeywords(candidates, spec); l != nil {
		m.Logger.Info("layout resolved by keywords", "type", t, "layout", l.Name)
		return l, nil
	}
	if l := matchStructure(candidates, t); l != nil {
		m.Logger.Info("layout resolved by structure", "type", t, "layout", l.Name)
		return l, nil
	}

	l := m.fallback(layouts, candidates)
	m.Logger.Warn("no layout matched, using fallback", "type", t, "layout", l.Name)
	return l, nil
}

// matchExactName returns the first candidate whose name equals the type's
// display name, ignoring case.
func matchExactName(candidates []*deck.Layout, spec TypeSpec) *deck.Layout {
	want := strings.ToLower(spec.DisplayName)
	for _, l := range candidates {
		if strings.ToLower(l.Name) == want {
			return l
		}
	}
	return nil
}

// matchKeywords scores each candidate by how many of the type's keywords
// occur in its lowercase name and returns the strict winner. Ties keep the
// first-encountered layout.
func matchKeywords(candidates []*deck.Layout, spec TypeSpec) *deck.Layout {
	var best *deck.Layout
	bestScore := 0
	for _, l := range candidates {
		lower := strings.ToLower(l.Name)
		score := 0
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = l
		}
	}
	return best
}

// layoutShape summarizes a layout's placeholder composition for the
// structural tier. OTHER slots count toward the total but satisfy nothing.
type layoutShape struct {
	hasTitle   bool
	bodyCount  int
	hasPicture bool
	total      int
}

func shapeOf(l *deck.Layout) layoutShape {
	var s layoutShape
	for _, slot := range l.Slots {
		s.total++
		switch slot.Kind {
		case deck.KindTitle:
			s.hasTitle = true
		case deck.KindBody, deck.KindObject:
			s.bodyCount++
		case deck.KindPicture:
			s.hasPicture = true
		}
	}
	return s
}

// structureScore rates how well a layout's composition fits the requested
// type. Zero means ineligible. The base constants (100, 200, 50) are tuning
// values: layouts with fewer placeholders score higher within a band, and
// title_image strongly prefers layouts with no body placeholders at all.
func structureScore(t LayoutType, s layoutShape) int {
	switch t {
	case TypeTitleContent:
		if s.hasTitle && s.bodyCount >= 1 && !s.hasPicture {
			return 100 - s.total
		}
	case TypeTitleTwoContent:
		if s.hasTitle && s.bodyCount >= 2 {
			return 100 - s.total
		}
	case TypeTitleImageContent:
		if s.hasTitle && s.bodyCount >= 1 && s.hasPicture {
			return 100 - s.total
		}
	case TypeTitleImage:
		if s.hasTitle && s.hasPicture && s.bodyCount == 0 {
			return 200 - s.total
		}
		if s.hasTitle && s.hasPicture {
			return 50 - s.total
		}
	}
	return 0
}

// matchStructure returns the candidate with the strictly highest positive
// structural score. Ties keep the first-encountered layout.
func matchStructure(candidates []*deck.Layout, t LayoutType) *deck.Layout {
	var best *deck.Layout
	bestScore := 0
	for _, l := range candidates {
		if score := structureScore(t, shapeOf(l)); score > bestScore {
			bestScore = score
			best = l
		}
	}
	return best
}

// fallback guarantees progress when no tier matched: the first non-excluded
// layout carrying both a title and a body, else ordinal index 1 (index 0 is
// conventionally a blank or title-only layout), else index 0.
func (m *Matcher) fallback(all, candidates []*deck.Layout) *deck.Layout {
	for _, l := range candidates {
		s := shapeOf(l)
		if s.hasTitle && s.bodyCount >= 1 {
			return l
		}
	}
	if len(all) > 1 {
		return all[1]
	}
	return all[0]
}
