package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slidesmith/slidesmith/pkg/buildinfo"
	"github.com/slidesmith/slidesmith/pkg/cache"
	"github.com/slidesmith/slidesmith/pkg/compose"
	"github.com/slidesmith/slidesmith/pkg/deck"
	"github.com/slidesmith/slidesmith/pkg/errors"
)

const (
	deckField  = "file"
	imageField = "image"

	pptxMIME = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

	// multipartMemory is how much of a parsed form stays in memory before
	// spilling to temp files.
	multipartMemory = 32 << 20

	inspectionTTL = 24 * time.Hour
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// readDeck extracts and validates the uploaded deck from a multipart form.
func (s *Server) readDeck(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	// The form as a whole may carry the deck plus an image; anything beyond
	// the combined limit is cut off before parsing.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxDeckBytes()+s.cfg.MaxImageBytes()+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid multipart form")
	}

	f, header, err := r.FormFile(deckField)
	if err != nil {
		return "", nil, errors.New(errors.ErrCodeInvalidInput, "no PowerPoint file uploaded")
	}
	defer f.Close()

	if err := errors.ValidateDeckFilename(header.Filename); err != nil {
		return "", nil, err
	}
	if err := errors.ValidateSize(header.Size, s.cfg.MaxDeckBytes(), "PowerPoint file"); err != nil {
		return "", nil, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "cannot read upload")
	}
	return header.Filename, data, nil
}

// readImage extracts the optional image upload. A missing image field is not
// an error.
func (s *Server) readImage(r *http.Request) ([]byte, string, error) {
	f, header, err := r.FormFile(imageField)
	if err == http.ErrMissingFile {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidImage, err, "cannot read image upload")
	}
	defer f.Close()

	if err := errors.ValidateImageFilename(header.Filename); err != nil {
		return nil, "", err
	}
	if err := errors.ValidateSize(header.Size, s.cfg.MaxImageBytes(), "Image"); err != nil {
		return nil, "", err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidImage, err, "cannot read image upload")
	}
	return data, errors.ImageExtension(header.Filename), nil
}

func (s *Server) handleAddSlide(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	name, deckBytes, err := s.readDeck(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	position := 0
	if raw := r.FormValue("position"); raw != "" {
		position, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, errors.New(errors.ErrCodeInvalidInput, "position must be a valid number"))
			return
		}
	}

	imageBytes, imageExt, err := s.readImage(r)
	if err != nil {
		writeError(w, err)
		return
	}

	payload := compose.Payload{
		Type:     compose.LayoutType(r.FormValue("layout_type")),
		Title:    r.FormValue("title"),
		Body:     r.FormValue("text"),
		Body2:    r.FormValue("text2"),
		Image:    imageBytes,
		ImageExt: imageExt,
		Position: position,
	}
	if err := payload.Validate(); err != nil {
		writeError(w, err)
		return
	}

	prs, err := deck.Open(deckBytes)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := s.composer.Compose(prs, payload); err != nil {
		writeError(w, err)
		return
	}

	out, err := prs.Save()
	if err != nil {
		logger.Error("save failed", "err", err)
		writeError(w, err)
		return
	}

	outName := outputFilename(name)
	logger.Info("slide added", "deck", name, "type", payload.Type, "bytes", len(out))

	w.Header().Set("Content-Type", pptxMIME)
	w.Header().Set("Content-Disposition", `attachment; filename="`+outName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	_, _ = w.Write(out)
}

func (s *Server) handleDebugLayouts(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	_, deckBytes, err := s.readDeck(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	key := cache.InspectionKey(deckBytes)
	if cached, hit, err := s.cache.Get(r.Context(), key); err == nil && hit {
		logger.Debug("inspection cache hit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(cached)
		return
	}

	prs, err := deck.Open(deckBytes)
	if err != nil {
		writeError(w, err)
		return
	}

	ref := s.composer.Matcher.Inspect(prs)
	body, err := json.Marshal(ref)
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "cannot serialize reflection"))
		return
	}
	if err := s.cache.Set(r.Context(), key, body, inspectionTTL); err != nil {
		logger.Warn("inspection cache write failed", "err", err)
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) handleSlideCount(w http.ResponseWriter, r *http.Request) {
	name, deckBytes, err := s.readDeck(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	prs, err := deck.Open(deckBytes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_slides": prs.SlideCount(),
		"filename":     name,
	})
}

// outputFilename derives the download name: base_updated.pptx.
func outputFilename(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name + "_updated.pptx"
}
