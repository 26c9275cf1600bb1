package deck

import (
	"bytes"
	"image"

	// Decoders for the image extension allow-list. BMP has no stdlib decoder.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"github.com/slidesmith/slidesmith/pkg/errors"
)

// ImageSize probes the pixel dimensions of an image without decoding the
// full bitmap. Supported formats match the upload allow-list: png, jpeg,
// gif and bmp.
func ImageSize(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, errors.Wrap(errors.ErrCodeInvalidImage, err, "cannot read image dimensions")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, errors.New(errors.ErrCodeInvalidImage, "image has degenerate dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}
