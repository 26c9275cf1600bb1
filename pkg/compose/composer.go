package compose

import (
	"github.com/charmbracelet/log"

	"github.com/slidesmith/slidesmith/pkg/deck"
	"github.com/slidesmith/slidesmith/pkg/errors"
)

// Fixed geometry for synthesized shapes. Positions assume the conventional
// 10x7.5 inch slide; templates with other sizes still get readable results
// because everything sits in the upper-left content region.
var (
	singleBodyBox = deck.Rect{
		Left: deck.Inches(0.5), Top: deck.Inches(1.8),
		Width: deck.Inches(9), Height: deck.Inches(5),
	}
	leftBodyBox = deck.Rect{
		Left: deck.Inches(0.5), Top: deck.Inches(1.8),
		Width: deck.Inches(4.2), Height: deck.Inches(5),
	}
	rightBodyBox = deck.Rect{
		Left: deck.Inches(5.2), Top: deck.Inches(1.8),
		Width: deck.Inches(4.2), Height: deck.Inches(5),
	}
)

// Fallback image placement: right side of the slide, capped in both
// dimensions, aspect ratio preserved.
var (
	imageFallbackLeft = deck.Inches(6.5)
	imageFallbackTop  = deck.Inches(1.5)
	imageMaxHeight    = deck.Inches(5)
	imageMaxWidth     = deck.Inches(3)
)

// Text insets applied when writing into a body placeholder.
var placeholderInset = deck.Inches(0.1)

// Payload is the caller-supplied content for one new slide.
type Payload struct {
	Type     LayoutType
	Title    string
	Body     string
	Body2    string
	Image    []byte
	ImageExt string // lowercase, without dot
	Position int
}

// Validate checks the payload against the requested type's requirements.
func (p Payload) Validate() error {
	spec, ok := Spec(p.Type)
	if !ok {
		return errors.New(errors.ErrCodeInvalidLayoutType, "unknown layout type %q", p.Type)
	}
	if spec.ContentBoxes > 0 && p.Body == "" {
		return errors.New(errors.ErrCodeInvalidInput, "content text is required for layout type %q", p.Type)
	}
	if spec.ContentBoxes == 2 && p.Body2 == "" {
		return errors.New(errors.ErrCodeInvalidInput, "second content text is required for layout type %q", p.Type)
	}
	return errors.ValidatePosition(p.Position)
}

// Composer builds one populated slide per request. Population is strictly
// sequential (instantiate, background, reposition, title, body, image) and
// every step after instantiation is best-effort: a failed sub-step is logged
// and the remaining steps still run, so the caller never loses content that
// could have been placed.
type Composer struct {
	Matcher *Matcher
	Logger  *log.Logger
}

// NewComposer creates a composer. Nil arguments fall back to defaults.
func NewComposer(m *Matcher, logger *log.Logger) *Composer {
	if logger == nil {
		logger = log.Default()
	}
	if m == nil {
		m = NewMatcher(logger)
	}
	return &Composer{Matcher: m, Logger: logger}
}

// Compose resolves the layout, appends a new slide, moves it to the clamped
// requested position and fills it from the payload.
func (c *Composer) Compose(prs *deck.Presentation, p Payload) (*deck.Slide, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	layout, err := c.Matcher.Resolve(prs.Layouts(), p.Type)
	if err != nil {
		return nil, err
	}
	c.Logger.Info("composing slide", "type", p.Type, "layout", layout.Name, "position", p.Position)

	total := prs.SlideCount()
	slide, err := prs.AddSlide(layout)
	if err != nil {
		return nil, err
	}

	slide.SetBackgroundRGB(255, 255, 255)

	// Reposition only when the slide must land before the current end. The
	// move is atomic: on failure the slide simply stays last.
	if p.Position < total {
		if err := prs.MoveSlide(prs.SlideCount()-1, p.Position); err != nil {
			c.Logger.Warn("could not reposition slide", "err", err)
		}
	}

	c.setTitle(slide, p.Title)

	if p.Type == TypeTitleTwoContent && p.Body != "" && p.Body2 != "" {
		c.setTwoContent(slide, p.Body, p.Body2)
	} else if p.Body != "" {
		if err := c.setSingleContent(slide, p.Body); err != nil {
			return nil, err
		}
	}

	if len(p.Image) > 0 {
		c.setImage(slide, p.Image, p.ImageExt)
	}

	return slide, nil
}

// setTitle writes the title into the layout's title placeholder. A missing
// title placeholder is tolerated; no substitute shape is created.
func (c *Composer) setTitle(slide *deck.Slide, title string) {
	if title == "" {
		return
	}
	for _, ph := range slide.Placeholders() {
		if ph.Kind() == deck.KindTitle {
			ph.SetText(title)
			return
		}
	}
	c.Logger.Warn("layout has no title placeholder, title dropped")
}

// bodyPlaceholders returns the slide's BODY and OBJECT placeholders in order.
func bodyPlaceholders(slide *deck.Slide) []*deck.Placeholder {
	var out []*deck.Placeholder
	for _, ph := range slide.Placeholders() {
		if ph.Kind() == deck.KindBody || ph.Kind() == deck.KindObject {
			out = append(out, ph)
		}
	}
	return out
}

// setTwoContent places the two texts into the first two body placeholders,
// or synthesizes a side-by-side pair of textboxes when the layout does not
// expose two.
func (c *Composer) setTwoContent(slide *deck.Slide, body, body2 string) {
	bodies := bodyPlaceholders(slide)
	if len(bodies) >= 2 {
		bodies[0].SetText(body)
		bodies[0].AlignLeft()
		bodies[1].SetText(body2)
		bodies[1].AlignLeft()
		return
	}

	c.Logger.Info("layout lacks two body placeholders, synthesizing textboxes")
	left := slide.AddTextBox(leftBodyBox)
	left.SetText(body)
	left.AlignLeft()
	right := slide.AddTextBox(rightBodyBox)
	right.SetText(body2)
	right.AlignLeft()
}

// setSingleContent writes the body text into the first body placeholder, or
// synthesizes a full-width textbox below the title band. Losing the body
// text entirely is the one failure composition does not tolerate.
func (c *Composer) setSingleContent(slide *deck.Slide, body string) error {
	bodies := bodyPlaceholders(slide)
	if len(bodies) > 0 {
		ph := bodies[0]
		ph.SetText(body)
		ph.AlignLeft()
		ph.SetWordWrap(true)
		ph.SetInsets(placeholderInset, placeholderInset)
		return nil
	}

	c.Logger.Info("layout has no body placeholder, synthesizing textbox")
	box := slide.AddTextBox(singleBodyBox)
	if box == nil {
		return errors.New(errors.ErrCodeContentLoss, "could not add content to slide")
	}
	box.SetText(body)
	box.AlignLeft()
	box.SetWordWrap(true)
	box.SetInsets(0, 0)
	return nil
}

// setImage places the image into the layout's picture placeholder bounds,
// or falls back to a fixed spot on the right with aspect-preserving sizing.
// Image failures never abort the operation.
func (c *Composer) setImage(slide *deck.Slide, data []byte, ext string) {
	for _, ph := range slide.Placeholders() {
		if ph.Kind() != deck.KindPicture {
			continue
		}
		frame, ok := ph.Frame()
		if !ok {
			continue
		}
		ph.Remove()
		if _, err := slide.AddPicture(data, ext, frame); err != nil {
			c.Logger.Warn("could not use picture placeholder", "err", err)
			break
		}
		c.Logger.Info("image placed in picture placeholder", "name", ph.Name())
		return
	}

	w, h, err := deck.ImageSize(data)
	if err != nil || w == 0 || h == 0 {
		c.Logger.Warn("could not read image dimensions, image skipped", "err", err)
		return
	}

	height := imageMaxHeight
	width := deck.EMU(int64(height) * int64(w) / int64(h))
	if width > imageMaxWidth {
		width = imageMaxWidth
		height = deck.EMU(int64(width) * int64(h) / int64(w))
	}

	rect := deck.Rect{Left: imageFallbackLeft, Top: imageFallbackTop, Width: width, Height: height}
	if _, err := slide.AddPicture(data, ext, rect); err != nil {
		c.Logger.Warn("could not add image", "err", err)
		return
	}
	c.Logger.Info("image placed on right side", "width", width, "height", height)
}
