// Package compose resolves abstract layout requests against the layouts of an
// uploaded template and builds the populated slide. It is the core of the
// service: templates arrive with arbitrary, author-controlled layout names,
// so resolution runs a tiered matching strategy over names, keywords and
// placeholder structure, and population falls back to synthesized shapes
// whenever the chosen layout lacks a suitable placeholder.
package compose

import "strings"

// LayoutType identifies one of the abstract slide archetypes a caller can
// request. The set is fixed at compile time.
type LayoutType string

const (
	TypeTitleContent      LayoutType = "title_content"
	TypeTitleTwoContent   LayoutType = "title_two_content"
	TypeTitleImageContent LayoutType = "title_image_content"
	TypeTitleImage        LayoutType = "title_image"
)

// TypeSpec describes one abstract layout type: the display name used for
// exact-name matching, keyword hints for fuzzy name matching, and the
// structural requirements the composer enforces.
type TypeSpec struct {
	DisplayName    string
	Keywords       []string
	RequiresImage  bool
	ContentBoxes   int
	PreferSimplest bool
}

// catalog is the immutable layout-type table, built once at process start.
var catalog = map[LayoutType]TypeSpec{
	TypeTitleContent: {
		DisplayName:  "Title and Content",
		Keywords:     []string{"title", "content", "body", "text", "only"},
		ContentBoxes: 1,
	},
	TypeTitleTwoContent: {
		DisplayName:  "Title and Two Content",
		Keywords:     []string{"two", "comparison", "columns", "divided"},
		ContentBoxes: 2,
	},
	TypeTitleImageContent: {
		DisplayName:   "Title Image and Content",
		Keywords:      []string{"picture", "image", "content", "photo", "text"},
		RequiresImage: true,
		ContentBoxes:  1,
	},
	TypeTitleImage: {
		DisplayName:    "Title and Image",
		Keywords:       []string{"picture", "image", "photo", "blank"},
		RequiresImage:  true,
		ContentBoxes:   0,
		PreferSimplest: true,
	},
}

// typeOrder lists the catalog keys in a stable, documentation-friendly order.
var typeOrder = []LayoutType{
	TypeTitleContent,
	TypeTitleTwoContent,
	TypeTitleImageContent,
	TypeTitleImage,
}

// Spec returns the catalog entry for a layout type.
func Spec(t LayoutType) (TypeSpec, bool) {
	spec, ok := catalog[t]
	return spec, ok
}

// Types returns all known layout types in stable order.
func Types() []LayoutType {
	out := make([]LayoutType, len(typeOrder))
	copy(out, typeOrder)
	return out
}

// excludedNamePatterns marks decorative or branded layouts (cover pages,
// section dividers, thank-you slides) that must never be substituted for a
// generic content layout, no matter how well they score.
var excludedNamePatterns = []string{
	"mango", "cover", "branded", "anvil", "thank", "section", "divider",
}

// excludedName reports whether a layout name matches a decorative pattern.
// Matching is case-insensitive substring containment.
func excludedName(name string) bool {
	lower := strings.ToLower(name)
	for _, pat := range excludedNamePatterns {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	return false
}
