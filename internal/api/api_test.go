package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/slidesmith/slidesmith/internal/config"
	"github.com/slidesmith/slidesmith/pkg/cache"
	"github.com/slidesmith/slidesmith/pkg/deck"
)

// miniDeck builds a single-slide deck whose only layout is a title+content
// layout named "Title and Content".
func miniDeck(t *testing.T) []byte {
	t.Helper()

	const ns = ` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

	entries := []struct{ name, data string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>` +
			`<Override PartName="/ppt/slides/slide1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>` +
			`</Types>`},
		{"_rels/.rels", `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/></Relationships>`},
		{"ppt/presentation.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<p:presentation` + ns + `>` +
			`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>` +
			`<p:sldIdLst><p:sldId id="256" r:id="rId2"/></p:sldIdLst>` +
			`<p:sldSz cx="9144000" cy="6858000"/></p:presentation>`},
		{"ppt/_rels/presentation.xml.rels", `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>` +
			`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide1.xml"/></Relationships>`},
		{"ppt/slideMasters/slideMaster1.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<p:sldMaster` + ns + `><p:cSld><p:spTree/></p:cSld>` +
			`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst></p:sldMaster>`},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/></Relationships>`},
		{"ppt/slideLayouts/slideLayout1.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<p:sldLayout` + ns + `><p:cSld name="Title and Content"><p:spTree>` +
			`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:cNvSpPr/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr><p:spPr/><p:txBody><a:bodyPr/><a:p/></p:txBody></p:sp>` +
			`<p:sp><p:nvSpPr><p:cNvPr id="3" name="Content 2"/><p:cNvSpPr/><p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr><p:spPr/><p:txBody><a:bodyPr/><a:p/></p:txBody></p:sp>` +
			`</p:spTree></p:cSld></p:sldLayout>`},
		{"ppt/slides/slide1.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<p:sld` + ns + `><p:cSld><p:spTree/></p:cSld></p:sld>`},
		{"ppt/slides/_rels/slide1.xml.rels", `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/></Relationships>`},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.data)); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func testServer(t *testing.T) *Server {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(config.Default(), log.New(io.Discard), c)
}

// postForm builds a multipart request with the given field values and files.
func postForm(t *testing.T, path string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, value := range fields {
		if err := mw.WriteField(field, value); err != nil {
			t.Fatal(err)
		}
	}
	for name, data := range files {
		field := deckField
		if name == "photo.png" {
			field = imageField
		}
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(t).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestAddSlide(t *testing.T) {
	req := postForm(t, "/api/add-slide",
		map[string]string{
			"layout_type": "title_content",
			"title":       "Q3 Review",
			"text":        "Revenue up 12%",
			"position":    "0",
		},
		map[string][]byte{"quarterly.pptx": miniDeck(t)})

	rec := httptest.NewRecorder()
	testServer(t).Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="quarterly_updated.pptx"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("request id header missing")
	}

	prs, err := deck.Open(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("returned blob is not a deck: %v", err)
	}
	if prs.SlideCount() != 2 {
		t.Errorf("slide count = %d, want 2", prs.SlideCount())
	}
}

func TestAddSlideValidation(t *testing.T) {
	validDeck := miniDeck(t)
	tests := []struct {
		name   string
		fields map[string]string
		files  map[string][]byte
	}{
		{
			name:   "missing deck",
			fields: map[string]string{"layout_type": "title_content", "text": "x"},
		},
		{
			name:   "wrong extension",
			fields: map[string]string{"layout_type": "title_content", "text": "x"},
			files:  map[string][]byte{"deck.docx": validDeck},
		},
		{
			name:   "unknown layout type",
			fields: map[string]string{"layout_type": "fancy", "text": "x"},
			files:  map[string][]byte{"deck.pptx": validDeck},
		},
		{
			name:   "missing body text",
			fields: map[string]string{"layout_type": "title_content"},
			files:  map[string][]byte{"deck.pptx": validDeck},
		},
		{
			name:   "negative position",
			fields: map[string]string{"layout_type": "title_content", "text": "x", "position": "-1"},
			files:  map[string][]byte{"deck.pptx": validDeck},
		},
		{
			name:   "non-numeric position",
			fields: map[string]string{"layout_type": "title_content", "text": "x", "position": "soon"},
			files:  map[string][]byte{"deck.pptx": validDeck},
		},
		{
			name:   "corrupt deck",
			fields: map[string]string{"layout_type": "title_content", "text": "x"},
			files:  map[string][]byte{"deck.pptx": []byte("not a zip")},
		},
	}

	srv := testServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, postForm(t, "/api/add-slide", tt.fields, tt.files))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error == "" {
				t.Errorf("error envelope missing: %s", rec.Body.String())
			}
		})
	}
}

func TestDebugLayouts(t *testing.T) {
	srv := testServer(t)

	first := httptest.NewRecorder()
	srv.Router().ServeHTTP(first, postForm(t, "/api/debug-layouts", nil,
		map[string][]byte{"deck.pptx": miniDeck(t)}))
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", first.Code, first.Body.String())
	}

	var ref struct {
		SlideCount int `json:"slide_count"`
		Layouts    []struct {
			Name         string `json:"name"`
			Placeholders []struct {
				Type string `json:"type"`
			} `json:"placeholders"`
		} `json:"layouts"`
		Resolved map[string]string `json:"resolved"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &ref); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ref.Layouts) != 1 || ref.Layouts[0].Name != "Title and Content" {
		t.Fatalf("layouts = %+v", ref.Layouts)
	}
	if got := ref.Layouts[0].Placeholders; len(got) != 2 || got[0].Type != "TITLE" || got[1].Type != "BODY" {
		t.Errorf("placeholders = %+v", got)
	}
	if ref.Resolved["title_content"] != "Title and Content" {
		t.Errorf("resolved = %v", ref.Resolved)
	}

	// Second identical upload is served from cache with the same body.
	second := httptest.NewRecorder()
	srv.Router().ServeHTTP(second, postForm(t, "/api/debug-layouts", nil,
		map[string][]byte{"deck.pptx": miniDeck(t)}))
	if second.Code != http.StatusOK {
		t.Fatalf("cached status = %d", second.Code)
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("cached response should be byte-identical")
	}
}

func TestSlideCount(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(t).Router().ServeHTTP(rec, postForm(t, "/api/get-slide-count", nil,
		map[string][]byte{"deck.pptx": miniDeck(t)}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		TotalSlides int    `json:"total_slides"`
		Filename    string `json:"filename"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalSlides != 1 {
		t.Errorf("total_slides = %d, want 1", body.TotalSlides)
	}
	if body.Filename != "deck.pptx" {
		t.Errorf("filename = %q, want %q", body.Filename, "deck.pptx")
	}
}

func TestOutputFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"deck.pptx", "deck_updated.pptx"},
		{"Quarterly Report.PPTX", "Quarterly Report_updated.pptx"},
		{"noext", "noext_updated.pptx"},
	}
	for _, tt := range tests {
		if got := outputFilename(tt.in); got != tt.want {
			t.Errorf("outputFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
