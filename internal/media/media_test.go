package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jthoms1/the-collector/internal/apperr"
)

// encodeTestImage returns a solid-colour image encoded in format.
func encodeTestImage(t testing.TB, width, height int, format string) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func decodedBounds(t *testing.T, path string) (int, int) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("failed to decode %s: %v", path, err)
	}
	if format != "jpeg" {
		t.Errorf("%s format = %s, want jpeg", filepath.Base(path), format)
	}
	return cfg.Width, cfg.Height
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		exif   int
		want   Orientation
	}{
		{"landscape", 800, 600, 1, Landscape},
		{"portrait", 600, 800, 1, Portrait},
		{"near square", 1000, 950, 1, Square},
		{"exact square", 500, 500, 0, Square},
		{"rotated landscape becomes portrait", 1000, 900, 6, Portrait},
		{"rotate 180 keeps dimensions", 800, 600, 3, Landscape},
		{"mirrored transpose swaps", 600, 800, 5, Landscape},
		{"upper band edge is square", 1100, 1000, 1, Square},
		{"lower band edge is square", 900, 1000, 1, Square},
		{"zero height", 100, 0, 1, Square},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.width, tt.height, tt.exif); got != tt.want {
				t.Errorf("Classify(%d, %d, %d) = %s, want %s", tt.width, tt.height, tt.exif, got, tt.want)
			}
		})
	}
}

func TestParseOrientation(t *testing.T) {
	for s, want := range map[string]Orientation{
		"portrait":  Portrait,
		"Landscape": Landscape,
		" square ":  Square,
	} {
		got, err := ParseOrientation(s)
		if err != nil || got != want {
			t.Errorf("ParseOrientation(%q) = %q, %v; want %q", s, got, err, want)
		}
	}
	for _, bad := range []string{"diagonal", ""} {
		if _, err := ParseOrientation(bad); err == nil {
			t.Errorf("ParseOrientation(%q) should fail", bad)
		}
	}
}

func TestDerivativePath(t *testing.T) {
	tests := []struct {
		original string
		size     Size
		want     string
	}{
		{"/Cards/17000-ab12cd.png", SizeThumb, "/Cards/17000-ab12cd_thumb.jpeg"},
		{"/Cards/17000-ab12cd.png", SizeMedium, "/Cards/17000-ab12cd_medium.jpeg"},
		{"/Cards/17000-ab12cd.png", SizeOriginal, "/Cards/17000-ab12cd.png"},
		{"/Comics/1-zzzzzz.jpg", SizeThumb, "/Comics/1-zzzzzz_thumb.jpeg"},
		{"/Comics/1-zzzzzz.webp", SizeMedium, "/Comics/1-zzzzzz_medium.jpeg"},
		{"data/Cards/a.jpeg", SizeThumb, "data/Cards/a_thumb.jpeg"},
	}

	for _, tt := range tests {
		if got := DerivativePath(tt.original, tt.size); got != tt.want {
			t.Errorf("DerivativePath(%q, %s) = %q, want %q", tt.original, tt.size, got, tt.want)
		}
	}
}

func TestResolveSize(t *testing.T) {
	got, err := ResolveSize("/Cards/x.png", "")
	if err != nil || got != "/Cards/x.png" {
		t.Errorf("ResolveSize default = %q, %v", got, err)
	}

	got, err = ResolveSize("/Cards/x.png", "MEDIUM")
	if err != nil || got != "/Cards/x_medium.jpeg" {
		t.Errorf("ResolveSize medium = %q, %v", got, err)
	}

	_, err = ResolveSize("/Cards/x.png", "huge")
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("ResolveSize(huge) error = %v, want validation", err)
	}
}

func TestAssetSet(t *testing.T) {
	want := []string{"/Cards/a.gif", "/Cards/a_thumb.jpeg", "/Cards/a_medium.jpeg"}
	if got := AssetSet("/Cards/a.gif"); !reflect.DeepEqual(got, want) {
		t.Errorf("AssetSet = %v, want %v", got, want)
	}
}

func TestContentPath(t *testing.T) {
	root := t.TempDir()

	got, err := ContentPath(root, "/Cards/a.png")
	if err != nil {
		t.Fatalf("ContentPath error = %v", err)
	}
	if want := filepath.Join(root, "Cards", "a.png"); got != want {
		t.Errorf("ContentPath = %q, want %q", got, want)
	}

	back, err := PublicPath(root, got)
	if err != nil || back != "/Cards/a.png" {
		t.Errorf("PublicPath = %q, %v", back, err)
	}

	for _, bad := range []string{"", "/", "/../etc/passwd", "../../x.png"} {
		if _, err := ContentPath(root, bad); err == nil {
			t.Errorf("ContentPath(%q) should fail", bad)
		}
	}
}

func TestValidateAssetPath(t *testing.T) {
	for _, ok := range []string{"/Cards/1-aaaaaa.png", "/Comics/17000-ab12cd.JPG", "/Cards/cover.webp"} {
		if err := ValidateAssetPath(ok); err != nil {
			t.Errorf("ValidateAssetPath(%q) = %v", ok, err)
		}
	}

	for _, bad := range []string{
		"",
		"Cards/a.png",
		"/data/collection.db",
		"/Stamps/a.png",
		"/cards/a.png",
		"/Cards/",
		"/Cards/..",
		"/Cards/../data/x.png",
		"/Cards/sub/a.png",
		"/Cards/a\\b.png",
		"/Cards/notes.txt",
		"/Cards/1-aaaaaa_thumb.jpeg",
		"/Comics/1-aaaaaa_medium.jpeg",
	} {
		err := ValidateAssetPath(bad)
		if !apperr.IsCode(err, apperr.CodeValidation) {
			t.Errorf("ValidateAssetPath(%q) = %v, want validation error", bad, err)
		}
	}
}

func TestClassifyNames(t *testing.T) {
	names := []string{
		"1-aaaaaa.png",
		"1-aaaaaa_thumb.jpeg",
		"1-aaaaaa_medium.jpeg",
		"2-bbbbbb.jpeg",
		"2-bbbbbb_thumb.jpeg",
		"3-cccccc_medium.jpeg",
		"notes.txt",
	}

	got := ClassifyNames(names)

	if want := []string{"1-aaaaaa.png", "2-bbbbbb.jpeg"}; !reflect.DeepEqual(got.Originals, want) {
		t.Errorf("Originals = %v, want %v", got.Originals, want)
	}
	if want := []string{"1-aaaaaa_medium.jpeg", "1-aaaaaa_thumb.jpeg", "2-bbbbbb_thumb.jpeg"}; !reflect.DeepEqual(got.Derivatives, want) {
		t.Errorf("Derivatives = %v, want %v", got.Derivatives, want)
	}
	if want := []string{"3-cccccc_medium.jpeg"}; !reflect.DeepEqual(got.Orphans, want) {
		t.Errorf("Orphans = %v, want %v", got.Orphans, want)
	}
}

func TestProbe(t *testing.T) {
	tests := []struct {
		format string
		width  int
		height int
	}{
		{"jpeg", 64, 48},
		{"png", 30, 90},
		{"gif", 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			info, err := Probe(encodeTestImage(t, tt.width, tt.height, tt.format))
			if err != nil {
				t.Fatalf("Probe error = %v", err)
			}
			if info.Width != tt.width || info.Height != tt.height {
				t.Errorf("Probe = %dx%d, want %dx%d", info.Width, info.Height, tt.width, tt.height)
			}
			if info.Format != tt.format {
				t.Errorf("Format = %s, want %s", info.Format, tt.format)
			}
			if info.ExifOrientation != 1 {
				t.Errorf("ExifOrientation = %d, want 1 without EXIF", info.ExifOrientation)
			}
		})
	}
}

func TestProbeRejectsNonImage(t *testing.T) {
	_, err := Probe([]byte("definitely not an image"))
	if !apperr.IsCode(err, apperr.CodeDecode) {
		t.Errorf("Probe error = %v, want decode error", err)
	}
}

func TestDeriveWritesAssetSet(t *testing.T) {
	dir := t.TempDir()
	engine := NewEngine(nil)

	d, err := engine.Derive(encodeTestImage(t, 2000, 1500, "png"), dir, "17000-ab12cd.png")
	if err != nil {
		t.Fatalf("Derive error = %v", err)
	}

	if d.Orientation != Landscape {
		t.Errorf("Orientation = %s, want landscape", d.Orientation)
	}
	if d.Width != 2000 || d.Height != 1500 {
		t.Errorf("dimensions = %dx%d, want 2000x1500", d.Width, d.Height)
	}
	if d.ThumbFilename != "17000-ab12cd_thumb.jpeg" || d.MediumFilename != "17000-ab12cd_medium.jpeg" {
		t.Errorf("derivative names = %s, %s", d.ThumbFilename, d.MediumFilename)
	}

	if w, h := decodedBounds(t, d.ThumbPath); w != 480 || h != 360 {
		t.Errorf("thumb = %dx%d, want 480x360", w, h)
	}
	if w, h := decodedBounds(t, d.MediumPath); w != 1024 || h != 768 {
		t.Errorf("medium = %dx%d, want 1024x768", w, h)
	}

	stored, err := os.ReadFile(d.OriginalPath)
	if err != nil {
		t.Fatalf("original missing: %v", err)
	}
	if !bytes.HasPrefix(stored, []byte("\x89PNG")) {
		t.Error("original should be stored unchanged")
	}
}

func TestDeriveDoesNotUpscale(t *testing.T) {
	dir := t.TempDir()

	d, err := NewEngine(ImagingBackend{}).Derive(encodeTestImage(t, 300, 200, "jpeg"), dir, "small.jpg")
	if err != nil {
		t.Fatalf("Derive error = %v", err)
	}

	for _, p := range []string{d.ThumbPath, d.MediumPath} {
		if w, h := decodedBounds(t, p); w != 300 || h != 200 {
			t.Errorf("%s = %dx%d, want 300x200", filepath.Base(p), w, h)
		}
	}
}

func TestDeriveDecodeErrorLeavesNothing(t *testing.T) {
	dir := t.TempDir()

	_, err := NewEngine(nil).Derive([]byte("GIF89a but not really"), dir, "bad.gif")
	if !apperr.IsCode(err, apperr.CodeDecode) {
		t.Fatalf("Derive error = %v, want decode error", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("directory should be empty, found %d entries", len(entries))
	}
}

func TestDerivePartialFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	engine := NewEngine(nil)

	var writes atomic.Int32
	engine.writeFile = func(path string, data []byte, perm os.FileMode) error {
		writes.Add(1)
		if strings.HasSuffix(path, "_medium.jpeg") {
			return errors.New("disk full")
		}
		return os.WriteFile(path, data, perm)
	}

	_, err := engine.Derive(encodeTestImage(t, 800, 600, "jpeg"), dir, "partial.jpg")
	if !apperr.IsCode(err, apperr.CodePartialDerivative) {
		t.Fatalf("Derive error = %v, want partial derivative error", err)
	}

	ae, _ := apperr.As(err)
	if ae.Details()["medium"] != "failed" {
		t.Errorf("details = %v, want medium failure recorded", ae.Details())
	}
	if writes.Load() != 3 {
		t.Errorf("writes = %d, want 3", writes.Load())
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		t.Errorf("left behind: %s", e.Name())
	}
}

func TestRegenerateKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "1-aaaaaa.jpg")
	data := encodeTestImage(t, 600, 800, "jpeg")
	if err := os.WriteFile(original, data, 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := NewEngine(nil).Regenerate(original)
	if err != nil {
		t.Fatalf("Regenerate error = %v", err)
	}
	if d.Orientation != Portrait {
		t.Errorf("Orientation = %s, want portrait", d.Orientation)
	}
	if w, h := decodedBounds(t, d.ThumbPath); w != 360 || h != 480 {
		t.Errorf("thumb = %dx%d, want 360x480", w, h)
	}

	after, err := os.ReadFile(original)
	if err != nil || !bytes.Equal(after, data) {
		t.Error("original should be untouched")
	}
}

func TestBackendFor(t *testing.T) {
	b, err := BackendFor("")
	if err != nil || b.Name() != BackendImaging {
		t.Errorf("BackendFor(\"\") = %v, %v", b, err)
	}
	if _, err := BackendFor("magick"); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestVipsBackendIfAvailable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping libvips test in short mode")
	}

	backend, err := BackendFor(BackendVips)
	if err != nil {
		t.Skipf("libvips not available: %v", err)
	}

	dir := t.TempDir()
	d, err := NewEngine(backend).Derive(encodeTestImage(t, 1600, 1200, "jpeg"), dir, "v.jpg")
	if err != nil {
		t.Fatalf("Derive error = %v", err)
	}
	if w, h := decodedBounds(t, d.ThumbPath); w != 480 || h != 360 {
		t.Errorf("thumb = %dx%d, want 480x360", w, h)
	}
}

func BenchmarkDerive(b *testing.B) {
	data := encodeTestImage(b, 2400, 1800, "jpeg")
	engine := NewEngine(nil)
	dir := b.TempDir()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Derive(data, dir, "bench.jpg"); err != nil {
			b.Fatal(err)
		}
	}
}
