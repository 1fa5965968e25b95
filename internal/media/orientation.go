package media

import (
	"fmt"
	"strings"
)

// Orientation is the layout class of an image, derived from its upright aspect ratio.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
	Square    Orientation = "square"
)

const (
	landscapeRatio = 1.10
	portraitRatio  = 0.90
)

// ParseOrientation validates an orientation value and returns its stored
// lower-case form.
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(strings.ToLower(strings.TrimSpace(s))); o {
	case Portrait, Landscape, Square:
		return o, nil
	default:
		return "", fmt.Errorf("invalid orientation %q", s)
	}
}

// SwapsDimensions reports whether an EXIF orientation code (1-8) describes
// pixels stored rotated by 90 or 270 degrees.
func SwapsDimensions(exifOrientation int) bool {
	return exifOrientation >= 5 && exifOrientation <= 8
}

// EffectiveDimensions returns the upright width and height.
func EffectiveDimensions(width, height, exifOrientation int) (int, int) {
	if SwapsDimensions(exifOrientation) {
		return height, width
	}
	return width, height
}

// Classify returns the orientation for declared dimensions and an optional
// EXIF orientation code (0 or 1 when absent). Ratios inside 0.90..1.10 are square.
func Classify(width, height, exifOrientation int) Orientation {
	w, h := EffectiveDimensions(width, height, exifOrientation)
	if w <= 0 || h <= 0 {
		return Square
	}

	ratio := float64(w) / float64(h)
	switch {
	case ratio > landscapeRatio:
		return Landscape
	case ratio < portraitRatio:
		return Portrait
	default:
		return Square
	}
}
