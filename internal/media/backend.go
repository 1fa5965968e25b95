package media

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/jthoms1/the-collector/internal/apperr"
)

// Backend decodes originals for rendering derivatives.
type Backend interface {
	Name() string
	// Open fully decodes data and rotates it upright.
	Open(data []byte) (Source, error)
}

// Source is a decoded, upright image ready for rendering.
type Source interface {
	// Render fits the image inside bound x bound without upscaling and
	// encodes it as JPEG. It may be called concurrently.
	Render(bound, quality int) ([]byte, error)
	Close()
}

// Backend names accepted by BackendFor.
const (
	BackendImaging = "imaging"
	BackendVips    = "vips"
)

// BackendFor returns the named backend, initializing libvips when requested.
func BackendFor(name string) (Backend, error) {
	switch name {
	case "", BackendImaging:
		return ImagingBackend{}, nil
	case BackendVips:
		if err := InitVips(); err != nil {
			return nil, err
		}
		return VipsBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown derivation backend %q", name)
	}
}

// ImagingBackend renders with disintegration/imaging in pure Go.
type ImagingBackend struct{}

func (ImagingBackend) Name() string { return BackendImaging }

func (ImagingBackend) Open(data []byte) (Source, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDecode, err, "Failed to decode image")
	}
	return &imagingSource{img: img}, nil
}

type imagingSource struct {
	img image.Image
}

func (s *imagingSource) Render(bound, quality int) ([]byte, error) {
	// Fit returns a copy unchanged when the image already fits.
	resized := imaging.Fit(s.img, bound, bound, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *imagingSource) Close() {}
