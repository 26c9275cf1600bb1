package deck

// Kind classifies a placeholder slot. The set is closed: slots whose OOXML
// type attribute is unknown, malformed, or irrelevant to content placement
// (dates, footers, slide numbers, subtitles, charts) classify as KindOther
// and are skipped by content insertion without aborting any scan.
type Kind int

// Placeholder kinds.
const (
	KindOther Kind = iota
	KindTitle
	KindBody
	KindObject
	KindPicture
)

// String returns the display name of the kind, matching the names shown by
// the layout inspector.
func (k Kind) String() string {
	switch k {
	case KindTitle:
		return "TITLE"
	case KindBody:
		return "BODY"
	case KindObject:
		return "OBJECT"
	case KindPicture:
		return "PICTURE"
	default:
		return "OTHER"
	}
}

// classifyPlaceholder maps the raw p:ph type attribute to a Kind. A missing
// attribute defaults to "obj" per the OOXML schema.
func classifyPlaceholder(rawType string) Kind {
	switch rawType {
	case "title", "ctrTitle":
		return KindTitle
	case "body":
		return KindBody
	case "", "obj":
		return KindObject
	case "pic":
		return KindPicture
	default:
		return KindOther
	}
}

// Slot is a typed, positioned placeholder region on a layout. Slots are
// read-only; instantiating a slide from a layout copies them into mutable
// slide placeholders.
type Slot struct {
	Kind    Kind
	Name    string // author-assigned shape name
	RawType string // p:ph type attribute as written ("" when absent)
	Idx     string // p:ph idx attribute as written ("" when absent)
	Frame   Rect   // resolved geometry; zero when neither layout nor master carries one
}

// HasFrame reports whether the slot resolved to a concrete bounding box.
func (s *Slot) HasFrame() bool {
	return !s.Frame.IsZero()
}
