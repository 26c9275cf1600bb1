package compose

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/slidesmith/slidesmith/pkg/deck"
	"github.com/slidesmith/slidesmith/pkg/errors"
)

// ================================================================
// Fixture builder
// ================================================================

const testNSAttrs = ` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
	` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
	` xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

// testPH renders a minimal placeholder shape for a fixture layout.
func testPH(typ, idx string, frame *deck.Rect) string {
	var b strings.Builder
	b.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="4" name="Placeholder"/><p:cNvSpPr/><p:nvPr><p:ph`)
	if typ != "" {
		b.WriteString(` type="` + typ + `"`)
	}
	if idx != "" {
		b.WriteString(` idx="` + idx + `"`)
	}
	b.WriteString(`/></p:nvPr></p:nvSpPr><p:spPr>`)
	if frame != nil {
		fmt.Fprintf(&b, `<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`,
			frame.Left, frame.Top, frame.Width, frame.Height)
	}
	b.WriteString(`</p:spPr><p:txBody><a:bodyPr/><a:p/></p:txBody></p:sp>`)
	return b.String()
}

type testLayout struct {
	name   string
	shapes string
}

// buildTemplate assembles a minimal PPTX package with the given layouts and
// slideCount empty existing slides.
func buildTemplate(t *testing.T, layouts []testLayout, slideCount int) []byte {
	t.Helper()

	const (
		relSlide  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
		relLayout = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
		relMaster = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster"
	)

	var ct strings.Builder
	ct.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	ct.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	ct.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	ct.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	ct.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	for i := 0; i < slideCount; i++ {
		fmt.Fprintf(&ct, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i+1)
	}
	ct.WriteString(`</Types>`)

	var presRels strings.Builder
	presRels.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	presRels.WriteString(`<Relationship Id="rId1" Type="` + relMaster + `" Target="slideMasters/slideMaster1.xml"/>`)
	for i := 0; i < slideCount; i++ {
		fmt.Fprintf(&presRels, `<Relationship Id="rId%d" Type="%s" Target="slides/slide%d.xml"/>`, i+2, relSlide, i+1)
	}
	presRels.WriteString(`</Relationships>`)

	var pres strings.Builder
	pres.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	pres.WriteString(`<p:presentation` + testNSAttrs + `>`)
	pres.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	if slideCount > 0 {
		pres.WriteString(`<p:sldIdLst>`)
		for i := 0; i < slideCount; i++ {
			fmt.Fprintf(&pres, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+2)
		}
		pres.WriteString(`</p:sldIdLst>`)
	}
	pres.WriteString(`<p:sldSz cx="9144000" cy="6858000"/></p:presentation>`)

	var master strings.Builder
	master.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	master.WriteString(`<p:sldMaster` + testNSAttrs + `><p:cSld><p:spTree>`)
	titleFrame := deck.Rect{Left: deck.Inches(0.5), Top: deck.Inches(0.3), Width: deck.Inches(9), Height: deck.Inches(1.25)}
	master.WriteString(testPH("title", "", &titleFrame))
	master.WriteString(`</p:spTree></p:cSld><p:sldLayoutIdLst>`)
	for i := range layouts {
		fmt.Fprintf(&master, `<p:sldLayoutId id="%d" r:id="rId%d"/>`, 2147483649+i, i+1)
	}
	master.WriteString(`</p:sldLayoutIdLst></p:sldMaster>`)

	var masterRels strings.Builder
	masterRels.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i := range layouts {
		fmt.Fprintf(&masterRels, `<Relationship Id="rId%d" Type="%s" Target="../slideLayouts/slideLayout%d.xml"/>`, i+1, relLayout, i+1)
	}
	masterRels.WriteString(`</Relationships>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, data string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		io.WriteString(w, data)
	}

	write("[Content_Types].xml", ct.String())
	write("_rels/.rels", `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/></Relationships>`)
	write("ppt/presentation.xml", pres.String())
	write("ppt/_rels/presentation.xml.rels", presRels.String())
	write("ppt/slideMasters/slideMaster1.xml", master.String())
	write("ppt/slideMasters/_rels/slideMaster1.xml.rels", masterRels.String())
	for i, l := range layouts {
		write(fmt.Sprintf("ppt/slideLayouts/slideLayout%d.xml", i+1),
			`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
				`<p:sldLayout`+testNSAttrs+`><p:cSld name="`+l.name+`"><p:spTree>`+l.shapes+
				`</p:spTree></p:cSld></p:sldLayout>`)
	}
	for i := 0; i < slideCount; i++ {
		write(fmt.Sprintf("ppt/slides/slide%d.xml", i+1),
			`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
				`<p:sld`+testNSAttrs+`><p:cSld><p:spTree/></p:cSld></p:sld>`)
		write(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1),
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="`+relLayout+`" Target="../slideLayouts/slideLayout1.xml"/></Relationships>`)
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// zipParts reads a saved deck back into a part map for assertions.
func zipParts(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	parts := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		parts[f.Name] = string(b)
	}
	return parts
}

func testComposer() *Composer {
	return NewComposer(nil, log.New(io.Discard))
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func titleContentLayouts() []testLayout {
	bodyFrame := deck.Rect{Left: deck.Inches(0.5), Top: deck.Inches(1.75), Width: deck.Inches(9), Height: deck.Inches(4.95)}
	return []testLayout{
		{name: "Mango Cover", shapes: testPH("title", "", nil) + testPH("body", "1", &bodyFrame)},
		{name: "Title and Content", shapes: testPH("title", "", nil) + testPH("body", "1", &bodyFrame)},
	}
}

// ================================================================
// Compose
// ================================================================

func TestComposeEndToEnd(t *testing.T) {
	// Template with a decorative cover layout and a plain content layout:
	// the slide must land at position 0, use the content layout, and carry
	// both texts.
	prs, err := deck.Open(buildTemplate(t, titleContentLayouts(), 2))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = testComposer().Compose(prs, Payload{
		Type:     TypeTitleContent,
		Title:    "Q3 Review",
		Body:     "Revenue up 12%",
		Position: 0,
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if prs.SlideCount() != 3 {
		t.Fatalf("slide count = %d, want 3", prs.SlideCount())
	}

	out, err := prs.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	parts := zipParts(t, out)

	// First sldId in the ordering must reference the new slide part.
	ids := regexp.MustCompile(`<p:sldId [^>]*r:id="(rId\d+)"`).FindAllStringSubmatch(parts["ppt/presentation.xml"], -1)
	if len(ids) != 3 {
		t.Fatalf("sldId count = %d, want 3", len(ids))
	}
	relPattern := fmt.Sprintf(`Id="%s" [^>]*Target="slides/slide3.xml"`, ids[0][1])
	if !regexp.MustCompile(relPattern).MatchString(parts["ppt/_rels/presentation.xml.rels"]) {
		t.Errorf("first slide in order should be the new part, rId %s", ids[0][1])
	}

	slideXML := parts["ppt/slides/slide3.xml"]
	if !strings.Contains(slideXML, "Q3 Review") {
		t.Error("title text missing from new slide")
	}
	if !strings.Contains(slideXML, "Revenue up 12%") {
		t.Error("body text missing from new slide")
	}
	if !strings.Contains(parts["ppt/slides/_rels/slide3.xml.rels"], "slideLayout2.xml") {
		t.Error("new slide should reference the content layout, not the cover")
	}
}

func TestComposePositionClamped(t *testing.T) {
	prs, err := deck.Open(buildTemplate(t, titleContentLayouts(), 1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = testComposer().Compose(prs, Payload{
		Type:     TypeTitleContent,
		Body:     "text",
		Position: 99,
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if prs.SlideCount() != 2 {
		t.Errorf("slide count = %d, want 2", prs.SlideCount())
	}
}

func TestComposeTwoContentPlaceholders(t *testing.T) {
	layouts := []testLayout{{
		name: "Title and Two Content",
		shapes: testPH("title", "", nil) +
			testPH("body", "1", nil) +
			testPH("body", "2", nil),
	}}
	prs, err := deck.Open(buildTemplate(t, layouts, 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = testComposer().Compose(prs, Payload{
		Type:  TypeTitleTwoContent,
		Body:  "First column",
		Body2: "Second column",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	out, err := prs.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	slideXML := zipParts(t, out)["ppt/slides/slide1.xml"]

	first := strings.Index(slideXML, "First column")
	second := strings.Index(slideXML, "Second column")
	if first < 0 || second < 0 || second < first {
		t.Errorf("texts misplaced: first=%d second=%d", first, second)
	}
	if strings.Contains(slideXML, `txBox="1"`) {
		t.Error("no textbox should be synthesized when two body placeholders exist")
	}
}

func TestComposeTwoContentSynthesis(t *testing.T) {
	// One body placeholder only: exactly two textboxes at the fixed
	// side-by-side geometry, body placeholder left empty.
	layouts := []testLayout{{
		name:   "Title and Two Content",
		shapes: testPH("title", "", nil) + testPH("body", "1", nil),
	}}
	prs, err := deck.Open(buildTemplate(t, layouts, 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = testComposer().Compose(prs, Payload{
		Type:  TypeTitleTwoContent,
		Body:  "Left",
		Body2: "Right",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	out, err := prs.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	slideXML := zipParts(t, out)["ppt/slides/slide1.xml"]

	if got := strings.Count(slideXML, `txBox="1"`); got != 2 {
		t.Errorf("synthesized textbox count = %d, want 2", got)
	}
	if !strings.Contains(slideXML, "<a:t>Left</a:t>") || !strings.Contains(slideXML, "<a:t>Right</a:t>") {
		t.Error("both texts must appear in the synthesized boxes")
	}
	// Non-overlapping: right box starts past the left box's extent.
	if !strings.Contains(slideXML, fmt.Sprintf(`x="%d"`, leftBodyBox.Left)) ||
		!strings.Contains(slideXML, fmt.Sprintf(`x="%d"`, rightBodyBox.Left)) {
		t.Error("textboxes should sit at the fixed side-by-side offsets")
	}
}

func TestComposeSingleContentSynthesis(t *testing.T) {
	layouts := []testLayout{{
		name:   "Title Only",
		shapes: testPH("title", "", nil),
	}}
	prs, err := deck.Open(buildTemplate(t, layouts, 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = testComposer().Compose(prs, Payload{
		Type: TypeTitleContent,
		Body: "fallback body",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	out, err := prs.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	slideXML := zipParts(t, out)["ppt/slides/slide1.xml"]

	if got := strings.Count(slideXML, `txBox="1"`); got != 1 {
		t.Errorf("synthesized textbox count = %d, want 1", got)
	}
	if !strings.Contains(slideXML, "<a:t>fallback body</a:t>") {
		t.Error("body text must land in the synthesized box")
	}
}

func TestComposeImageReplacesPicturePlaceholder(t *testing.T) {
	picFrame := deck.Rect{Left: deck.Inches(5), Top: deck.Inches(1.5), Width: deck.Inches(4), Height: deck.Inches(3)}
	layouts := []testLayout{{
		name:   "Title and Image",
		shapes: testPH("title", "", nil) + testPH("pic", "1", &picFrame),
	}}
	prs, err := deck.Open(buildTemplate(t, layouts, 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = testComposer().Compose(prs, Payload{
		Type:     TypeTitleImage,
		Title:    "Photo",
		Image:    pngImage(t, 4, 3),
		ImageExt: "png",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	out, err := prs.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	parts := zipParts(t, out)
	slideXML := parts["ppt/slides/slide1.xml"]

	// Picture sits at the placeholder's exact bounds; the placeholder is gone.
	want := fmt.Sprintf(`<a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/>`,
		picFrame.Left, picFrame.Top, picFrame.Width, picFrame.Height)
	if !strings.Contains(slideXML, want) {
		t.Errorf("picture bounds missing, want %s in:\n%s", want, slideXML)
	}
	if strings.Contains(slideXML, `type="pic"`) {
		t.Error("picture placeholder should be removed from the slide")
	}
	if _, ok := parts["ppt/media/image1.png"]; !ok {
		t.Error("media part missing")
	}
}

func TestComposeImageFallbackPreservesAspect(t *testing.T) {
	// No picture placeholder: a 4:3 image capped at 5in height would be
	// 6.67in wide, so width clamps to 3in and height scales to 2.25in.
	prs, err := deck.Open(buildTemplate(t, titleContentLayouts(), 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = testComposer().Compose(prs, Payload{
		Type:     TypeTitleImageContent,
		Body:     "caption",
		Image:    pngImage(t, 4, 3),
		ImageExt: "png",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	out, err := prs.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	slideXML := zipParts(t, out)["ppt/slides/slide1.xml"]

	wantH := deck.EMU(int64(imageMaxWidth) * 3 / 4)
	want := fmt.Sprintf(`<a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/>`,
		imageFallbackLeft, imageFallbackTop, imageMaxWidth, wantH)
	if !strings.Contains(slideXML, want) {
		t.Errorf("fallback picture bounds missing, want %s in:\n%s", want, slideXML)
	}
}

func TestComposeBadImageIsNonFatal(t *testing.T) {
	prs, err := deck.Open(buildTemplate(t, titleContentLayouts(), 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = testComposer().Compose(prs, Payload{
		Type:     TypeTitleContent,
		Body:     "still here",
		Image:    []byte("not an image"),
		ImageExt: "png",
	})
	if err != nil {
		t.Fatalf("Compose should tolerate a broken image: %v", err)
	}
	if prs.SlideCount() != 1 {
		t.Errorf("slide count = %d, want 1", prs.SlideCount())
	}
}

func TestPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		code    errors.Code
	}{
		{"valid", Payload{Type: TypeTitleContent, Body: "x"}, ""},
		{"image only type needs no body", Payload{Type: TypeTitleImage}, ""},
		{"unknown type", Payload{Type: "nope", Body: "x"}, errors.ErrCodeInvalidLayoutType},
		{"missing body", Payload{Type: TypeTitleContent}, errors.ErrCodeInvalidInput},
		{"missing second body", Payload{Type: TypeTitleTwoContent, Body: "x"}, errors.ErrCodeInvalidInput},
		{"negative position", Payload{Type: TypeTitleContent, Body: "x", Position: -1}, errors.ErrCodeInvalidPosition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.code == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}
