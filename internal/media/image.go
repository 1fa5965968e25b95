package media

import (
	"bytes"
	"image"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP format support

	"github.com/jthoms1/the-collector/internal/apperr"
)

// ImageInfo holds the header-level facts about an image.
type ImageInfo struct {
	Width  int
	Height int
	Format string
	// ExifOrientation is the embedded rotation code (1-8), 1 when absent.
	ExifOrientation int
}

// Orientation classifies the image from its upright dimensions.
func (i *ImageInfo) Orientation() Orientation {
	return Classify(i.Width, i.Height, i.ExifOrientation)
}

// Probe reads dimensions, format and rotation hint without decoding pixels.
func Probe(data []byte) (*ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDecode, err, "Unsupported or corrupt image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, apperr.Newf(apperr.CodeDecode, "Image has invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}

	return &ImageInfo{
		Width:           cfg.Width,
		Height:          cfg.Height,
		Format:          format,
		ExifOrientation: readExifOrientation(data),
	}, nil
}

// readExifOrientation returns the EXIF orientation tag, or 1 when the image
// carries no EXIF block or the tag is missing or out of range.
func readExifOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}
