package ingest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jthoms1/the-collector/internal/apperr"
	"github.com/jthoms1/the-collector/internal/media"
	"github.com/jthoms1/the-collector/internal/workers"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, width, height)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	svc := NewService(media.NewEngine(nil), workers.NewPool(2, nil), dir, 0)
	svc.now = func() time.Time { return time.UnixMilli(17000) }
	return svc, dir
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestFolder(t *testing.T) {
	tests := map[string]string{
		"comics":  CategoryComics,
		"COMICS":  CategoryComics,
		" Comics": CategoryComics,
		"cards":   CategoryCards,
		"":        CategoryCards,
		"stamps":  CategoryCards,
	}
	for in, want := range tests {
		if got := Folder(in); got != want {
			t.Errorf("Folder(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestIngest(t *testing.T) {
	svc, dir := newTestService(t)

	res, err := svc.Ingest(context.Background(), Upload{
		Filename:    "scan.png",
		ContentType: "image/png",
		Size:        -1,
		Type:        "comics",
		Body:        bytes.NewReader(encodePNG(t, 600, 800)),
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if !res.Success {
		t.Error("Success should be true")
	}
	if !regexp.MustCompile(`^17000-[0-9a-z]{6}\.png$`).MatchString(res.Filename) {
		t.Errorf("Filename = %s", res.Filename)
	}
	base := strings.TrimSuffix(res.Filename, ".png")
	if res.Path != "/Comics/"+res.Filename ||
		res.ThumbPath != "/Comics/"+base+"_thumb.jpeg" ||
		res.MediumPath != "/Comics/"+base+"_medium.jpeg" {
		t.Errorf("paths = %s, %s, %s", res.Path, res.ThumbPath, res.MediumPath)
	}
	if res.Orientation != media.Portrait || res.Width != 600 || res.Height != 800 {
		t.Errorf("metadata = %s %dx%d", res.Orientation, res.Width, res.Height)
	}

	for _, p := range []string{res.Path, res.ThumbPath, res.MediumPath} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p))); err != nil {
			t.Errorf("%s not written: %v", p, err)
		}
	}
}

func TestIngestSniffsUndeclaredType(t *testing.T) {
	svc, dir := newTestService(t)

	res, err := svc.Ingest(context.Background(), Upload{
		Filename:    "noext",
		ContentType: "application/octet-stream",
		Size:        -1,
		Body:        bytes.NewReader(encodeJPEG(t, 100, 100)),
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if !strings.HasSuffix(res.Filename, ".jpg") {
		t.Errorf("missing extension should default to .jpg, got %s", res.Filename)
	}
	if res.Orientation != media.Square {
		t.Errorf("Orientation = %s, want square", res.Orientation)
	}
	if countFiles(t, filepath.Join(dir, CategoryCards)) != 3 {
		t.Error("expected an asset set in Cards")
	}
}

func TestIngestValidation(t *testing.T) {
	big := bytes.Repeat([]byte{0xFF}, 12*1024*1024)

	tests := []struct {
		name string
		up   Upload
	}{
		{"disallowed type", Upload{Filename: "a.pdf", ContentType: "application/pdf", Size: 10, Body: strings.NewReader("%PDF-1.4")}},
		{"declared oversize", Upload{Filename: "a.jpg", ContentType: "image/jpeg", Size: int64(len(big)), Body: bytes.NewReader(big)}},
		{"undeclared oversize", Upload{Filename: "a.jpg", ContentType: "image/jpeg", Size: -1, Body: bytes.NewReader(big)}},
		{"sniffed non-image", Upload{Filename: "a.bin", Size: -1, Body: strings.NewReader("plain text, not a picture")}},
		{"malformed content type", Upload{Filename: "a.jpg", ContentType: "image/", Size: 1, Body: strings.NewReader("x")}},
		{"no body", Upload{Filename: "a.jpg", ContentType: "image/jpeg"}},
		{"empty body", Upload{Filename: "a.jpg", ContentType: "image/jpeg", Body: strings.NewReader("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, dir := newTestService(t)
			_, err := svc.Ingest(context.Background(), tt.up)
			if !apperr.IsCode(err, apperr.CodeValidation) {
				t.Fatalf("error = %v, want validation", err)
			}
			if n := countFiles(t, dir); n != 0 {
				t.Errorf("%d file(s) written for a rejected upload", n)
			}
		})
	}
}

func TestIngestDecodeError(t *testing.T) {
	svc, dir := newTestService(t)

	_, err := svc.Ingest(context.Background(), Upload{
		Filename:    "fake.jpg",
		ContentType: "image/jpeg",
		Size:        -1,
		Body:        strings.NewReader("these bytes only claim to be a jpeg"),
	})
	if !apperr.IsCode(err, apperr.CodeDecode) {
		t.Fatalf("error = %v, want decode error", err)
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("%d file(s) left behind", n)
	}
}

func TestGenerateFilename(t *testing.T) {
	svc, _ := newTestService(t)
	svc.random = bytes.NewReader(make([]byte, 64))

	tests := []struct {
		original string
		ext      string
	}{
		{"photo.PNG", ".PNG"},
		{"photo.webp", ".webp"},
		{"photo", ".jpg"},
		{"photo.tar.gz", ".jpg"},
		{"scan.heic", ".jpg"},
		{"weird.<script>", ".jpg"},
	}

	for _, tt := range tests {
		name, err := svc.generateFilename(tt.original)
		if err != nil {
			t.Fatal(err)
		}
		if want := "17000-000000" + tt.ext; name != want {
			t.Errorf("generateFilename(%q) = %s, want %s", tt.original, name, want)
		}
	}
}

func TestGenerateFilenameIsUnique(t *testing.T) {
	svc := NewService(media.NewEngine(nil), workers.NewPool(1, nil), t.TempDir(), 0)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		name, err := svc.generateFilename("x.jpg")
		if err != nil {
			t.Fatal(err)
		}
		if seen[name] {
			t.Fatalf("duplicate filename %s", name)
		}
		seen[name] = true
	}
}

type recordingStore struct {
	mu           sync.Mutex
	orientations map[string]media.Orientation
}

func (s *recordingStore) SetOrientationByPath(_ context.Context, path string, o media.Orientation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orientations[path] == o {
		return 0, nil
	}
	s.orientations[path] = o
	return 1, nil
}

func TestRegenerator(t *testing.T) {
	dir := t.TempDir()
	cards := filepath.Join(dir, CategoryCards)
	if err := os.MkdirAll(cards, 0o755); err != nil {
		t.Fatal(err)
	}

	write := func(name string, data []byte) {
		if err := os.WriteFile(filepath.Join(cards, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("1-aaaaaa.png", encodePNG(t, 900, 300))
	write("2-bbbbbb.jpg", encodeJPEG(t, 300, 900))
	write("2-bbbbbb_thumb.jpeg", []byte("stale"))
	write("3-cccccc_medium.jpeg", encodeJPEG(t, 10, 10))
	write("4-dddddd.gif", []byte("broken"))

	store := &recordingStore{orientations: map[string]media.Orientation{
		"/Cards/1-aaaaaa.png": media.Landscape,
	}}
	regen := NewRegenerator(media.NewEngine(nil), workers.NewPool(2, nil), dir, store)

	report, err := regen.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Processed != 2 || report.Failed != 1 || report.Updated != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Orphans) != 1 || report.Orphans[0] != "/Cards/3-cccccc_medium.jpeg" {
		t.Errorf("orphans = %v", report.Orphans)
	}
	if store.orientations["/Cards/2-bbbbbb.jpg"] != media.Portrait {
		t.Errorf("orientation for 2-bbbbbb = %s", store.orientations["/Cards/2-bbbbbb.jpg"])
	}

	thumb, err := os.ReadFile(filepath.Join(cards, "2-bbbbbb_thumb.jpeg"))
	if err != nil || string(thumb) == "stale" {
		t.Error("stale thumbnail should be rewritten")
	}
	if _, err := os.Stat(filepath.Join(cards, "1-aaaaaa_medium.jpeg")); err != nil {
		t.Errorf("missing derivative should be created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cards, "4-dddddd.gif")); err != nil {
		t.Error("an undecodable original must not be removed")
	}
}
