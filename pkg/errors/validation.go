package errors

import (
	"strings"
	"unicode"
)

// allowedImageExtensions is the set of image formats accepted for slide insertion.
var allowedImageExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"bmp":  true,
}

// AllowedImageExtensions returns the accepted image extensions in display order.
func AllowedImageExtensions() []string {
	return []string{"png", "jpg", "jpeg", "gif", "bmp"}
}

// ValidateDeckFilename validates an uploaded presentation filename.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters or null bytes
//   - No path separators (must be a simple basename)
//   - Must carry a .pptx extension
func ValidateDeckFilename(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "no file selected")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "filename contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidInput, "filename cannot contain path separators")
	}

	if !strings.HasSuffix(strings.ToLower(name), ".pptx") {
		return New(ErrCodeInvalidInput, "file must be a .pptx PowerPoint file")
	}

	return nil
}

// ValidateImageFilename validates an uploaded image filename against the
// extension allow-list (png, jpg, jpeg, gif, bmp).
func ValidateImageFilename(name string) error {
	ext := ImageExtension(name)
	if ext == "" {
		return New(ErrCodeInvalidImage, "image filename has no extension")
	}
	if !allowedImageExtensions[ext] {
		return New(ErrCodeInvalidImage, "invalid image format %q (allowed: %s)",
			ext, strings.Join(AllowedImageExtensions(), ", "))
	}
	return nil
}

// ImageExtension returns the lowercase extension of an image filename
// without the leading dot, or "" if the name has no extension.
func ImageExtension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// ValidateSize checks an upload size against a limit. The label names the
// upload kind in the error message ("PowerPoint file", "Image").
func ValidateSize(size, limit int64, label string) error {
	if size > limit {
		return New(ErrCodeTooLarge, "%s too large: %.2fMB (max: %dMB)",
			label, float64(size)/(1024*1024), limit/(1024*1024))
	}
	return nil
}

// ValidatePosition checks that a requested insertion position is non-negative.
// Clamping against the slide count happens later in the composer; negative
// values are rejected outright at the boundary.
func ValidatePosition(pos int) error {
	if pos < 0 {
		return New(ErrCodeInvalidPosition, "position cannot be negative")
	}
	return nil
}
