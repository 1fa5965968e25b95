package media

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jthoms1/the-collector/internal/apperr"
	"github.com/jthoms1/the-collector/internal/filesystem"
)

// Size selects one member of an asset set.
type Size string

const (
	SizeOriginal Size = "original"
	SizeMedium   Size = "medium"
	SizeThumb    Size = "thumb"
)

const (
	// ThumbBound caps the longest edge of the thumbnail derivative.
	ThumbBound = 480
	// MediumBound caps the longest edge of the medium derivative.
	MediumBound = 1024
	// JPEGQuality is the encode quality for both derivatives.
	JPEGQuality = 85

	derivativeExt = ".jpeg"
)

// Category folders under the content directory.
const (
	CategoryCards  = "Cards"
	CategoryComics = "Comics"
)

// Categories lists every category folder.
var Categories = []string{CategoryCards, CategoryComics}

// Derivatives lists the generated sizes in the order they are produced.
var Derivatives = []Size{SizeThumb, SizeMedium}

// Bound returns the longest-edge cap for a derivative size, or 0 for the original.
func (s Size) Bound() int {
	switch s {
	case SizeThumb:
		return ThumbBound
	case SizeMedium:
		return MediumBound
	default:
		return 0
	}
}

// ParseSize parses a size token. An empty token selects the original.
func ParseSize(token string) (Size, error) {
	switch Size(strings.ToLower(strings.TrimSpace(token))) {
	case "", SizeOriginal:
		return SizeOriginal, nil
	case SizeMedium:
		return SizeMedium, nil
	case SizeThumb:
		return SizeThumb, nil
	default:
		return "", apperr.Validation("Invalid size %q. Allowed: original, medium, thumb", token)
	}
}

// DerivativePath returns the sibling path of a derivative for an original
// path: "{base}_{size}.jpeg" whatever the original's extension. It works for
// public paths and filesystem paths alike. SizeOriginal returns the input.
func DerivativePath(original string, size Size) string {
	if size == SizeOriginal || size == "" {
		return original
	}
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	return base + "_" + string(size) + derivativeExt
}

// ResolveSize maps an original path and a size token to the file to serve.
func ResolveSize(original, token string) (string, error) {
	size, err := ParseSize(token)
	if err != nil {
		return "", err
	}
	return DerivativePath(original, size), nil
}

// AssetSet returns the original followed by its derivatives.
func AssetSet(original string) []string {
	set := []string{original}
	for _, size := range Derivatives {
		set = append(set, DerivativePath(original, size))
	}
	return set
}

// ContentPath converts a public asset path such as "/Cards/x.png" to a
// location under contentDir, rejecting paths that escape it.
func ContentPath(contentDir, publicPath string) (string, error) {
	rel := strings.TrimPrefix(filepath.ToSlash(publicPath), "/")
	if rel == "" {
		return "", apperr.Validation("empty asset path")
	}
	full := filepath.Join(contentDir, filepath.FromSlash(rel))
	if !filesystem.IsSubPath(contentDir, full) || filepath.Clean(full) == filepath.Clean(contentDir) {
		return "", apperr.Validation("asset path %q is outside the content directory", publicPath)
	}
	return full, nil
}

// ValidateAssetPath accepts only the public path of an original stored in a
// category folder: "/{category}/{file}" where file has an image extension
// and is not named like a derivative.
func ValidateAssetPath(publicPath string) error {
	rest, rooted := strings.CutPrefix(publicPath, "/")
	category, name, _ := strings.Cut(rest, "/")
	if !rooted || !IsCategory(category) || strings.ContainsAny(name, `/\`) || strings.Trim(name, ".") == "" {
		return apperr.Validation("Invalid image path %q. Expected /%s/<file>", publicPath, strings.Join(Categories, "|"))
	}
	if !IsImageName(name) {
		return apperr.Validation("Invalid image path %q. Allowed extensions: %s", publicPath, strings.Join(imageExtensionList(), ", "))
	}
	if looksGenerated(name) {
		return apperr.Validation("Invalid image path %q. Derivatives cannot be registered", publicPath)
	}
	return nil
}

// IsCategory reports whether name is a category folder.
func IsCategory(name string) bool {
	for _, c := range Categories {
		if name == c {
			return true
		}
	}
	return false
}

// PublicPath is the inverse of ContentPath.
func PublicPath(contentDir, fullPath string) (string, error) {
	rel, err := filepath.Rel(contentDir, fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", fullPath, err)
	}
	if !filesystem.IsSubPath(contentDir, fullPath) {
		return "", fmt.Errorf("%s is outside %s", fullPath, contentDir)
	}
	return "/" + filepath.ToSlash(rel), nil
}

// imageExtensions are the original extensions the pipeline accepts from disk.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

func imageExtensionList() []string {
	exts := make([]string, 0, len(imageExtensions))
	for ext := range imageExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsImageName reports whether name has an accepted image extension.
func IsImageName(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// DirectoryListing separates the image files of one directory into originals
// and generated derivatives.
type DirectoryListing struct {
	Originals []string
	// Derivatives are files generated from an original present in the listing.
	Derivatives []string
	// Orphans are files named like a derivative whose original is absent.
	Orphans []string
}

// ClassifyNames sorts a directory's file names. A file counts as a
// derivative only when it is exactly the name generated from another file
// in the same listing; names that merely look generated but have no original
// are reported as orphans instead of being treated as new originals.
func ClassifyNames(names []string) DirectoryListing {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	generated := make(map[string]bool)
	for _, n := range names {
		if !IsImageName(n) {
			continue
		}
		for _, size := range Derivatives {
			d := DerivativePath(n, size)
			if d != n && present[d] {
				generated[d] = true
			}
		}
	}

	var listing DirectoryListing
	for _, n := range names {
		switch {
		case !IsImageName(n):
			continue
		case generated[n]:
			listing.Derivatives = append(listing.Derivatives, n)
		case looksGenerated(n):
			listing.Orphans = append(listing.Orphans, n)
		default:
			listing.Originals = append(listing.Originals, n)
		}
	}

	sort.Strings(listing.Originals)
	sort.Strings(listing.Derivatives)
	sort.Strings(listing.Orphans)
	return listing
}

func looksGenerated(name string) bool {
	for _, size := range Derivatives {
		if strings.HasSuffix(name, "_"+string(size)+derivativeExt) {
			return true
		}
	}
	return false
}
