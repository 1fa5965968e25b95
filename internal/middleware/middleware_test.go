package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/jthoms1/the-collector/internal/logging"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	t.Setenv("LOG_FORMAT", "json")
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(os.Stderr) })
	return &buf
}

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	if rw.statusCode != http.StatusOK || rw.wroteHeader {
		t.Fatalf("unexpected initial state: %+v", rw)
	}

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("status code should not change after first WriteHeader, got %d", rw.statusCode)
	}

	n, err := rw.Write([]byte("hello"))
	if err != nil || n != 5 || rw.bytesWritten != 5 {
		t.Errorf("Write = %d, %v (bytesWritten %d)", n, err, rw.bytesWritten)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/items/1", http.NoBody))

	if seen == "" {
		t.Fatal("request id missing from context")
	}
	if got := w.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header = %q, context = %q", got, seen)
	}
	if len(seen) != 36 {
		t.Errorf("generated id %q is not a UUID", seen)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		reuse   bool
	}{
		{"well formed", "abc-123.def_4", true},
		{"injection attempt", "abc\nforged", false},
		{"too long", strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequestID(okHandler(""))
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set(RequestIDHeader, tt.inbound)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			if (got == tt.inbound) != tt.reuse {
				t.Errorf("inbound %q produced %q", tt.inbound, got)
			}
		})
	}
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		config        LoggingConfig
		expectLogging bool
	}{
		{"logs API requests", "/api/items/1/images", DefaultLoggingConfig(), true},
		{"skips assets by default", "/Cards/17000-ab12cd.png", DefaultLoggingConfig(), false},
		{"logs assets when enabled", "/Comics/1-a.png", LoggingConfig{AssetPrefixes: []string{"/Comics/"}, LogStaticFiles: true}, true},
		{"logs health checks when enabled", "/health", LoggingConfig{LogHealthChecks: true}, true},
		{"skips health checks when disabled", "/readyz", LoggingConfig{LogHealthChecks: false}, false},
		{"skips configured paths", "/metrics", LoggingConfig{SkipPaths: []string{"/metrics"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			handler := RequestID(Logger(tt.config)(okHandler("ok")))

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			req.Header.Set(RequestIDHeader, "req-42")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			logged := strings.Contains(buf.String(), tt.path)
			if logged != tt.expectLogging {
				t.Errorf("logged = %v, want %v (output %q)", logged, tt.expectLogging, buf.String())
			}
			if logged && !strings.Contains(buf.String(), `"request_id":"req-42"`) {
				t.Errorf("log line missing request id: %s", buf.String())
			}
		})
	}
}

func TestFormatW3C(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/upload?x=1", http.NoBody)
	req.RemoteAddr = "10.0.0.9:5555"
	req.Header.Set("User-Agent", "curl/8.0 (test)")
	rw := newResponseWriter(httptest.NewRecorder())
	rw.WriteHeader(http.StatusCreated)
	_, _ = rw.Write([]byte("12345"))

	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	line := formatW3C(req, rw, 15*time.Millisecond, now)

	want := `2026-03-01 12:30:00 10.0.0.9 POST /api/upload x=1 201 5 15 - "curl/8.0 (test)" -`
	if line != want {
		t.Errorf("line =\n%s\nwant\n%s", line, want)
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := map[string]string{
		"plain":            "plain",
		"a\nb\rc":          "a b c",
		"\x1b[31mred":      "[31mred",
		"null\x00byte":     "nullbyte",
		"tab\tkept":        "tab\tkept",
		"bell\x07stripped": "bellstripped",
	}
	for in, want := range tests {
		if got := sanitizeLogField(in); got != want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "192.168.1.5:4000"
	if ip := getClientIP(req); ip != "192.168.1.5" {
		t.Errorf("RemoteAddr ip = %s", ip)
	}

	req.Header.Set("X-Real-IP", "10.1.1.1")
	if ip := getClientIP(req); ip != "10.1.1.1" {
		t.Errorf("X-Real-IP ip = %s", ip)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.1.1.1")
	if ip := getClientIP(req); ip != "203.0.113.7" {
		t.Errorf("X-Forwarded-For ip = %s", ip)
	}
}

func TestCompressionMiddleware(t *testing.T) {
	tests := []struct {
		name              string
		responseBody      string
		contentType       string
		acceptEncoding    string
		method            string
		expectCompression bool
	}{
		{"compresses large JSON", strings.Repeat(`{"key":"value"}`, 200), "application/json; charset=utf-8", "gzip", http.MethodGet, true},
		{"skips small responses", `{"ok":true}`, "application/json", "gzip", http.MethodGet, false},
		{"skips images", strings.Repeat("data", 500), "image/jpeg", "gzip", http.MethodGet, false},
		{"respects client without gzip", strings.Repeat("data", 500), "application/json", "", http.MethodGet, false},
		{"skips HEAD", strings.Repeat("data", 500), "application/json", "gzip", http.MethodHead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte(tt.responseBody))
			}))

			req := httptest.NewRequest(tt.method, "/api/items/1", http.NoBody)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusAccepted {
				t.Errorf("status = %d, want 202", w.Code)
			}

			compressed := w.Header().Get("Content-Encoding") == "gzip"
			if compressed != tt.expectCompression {
				t.Fatalf("compressed = %v, want %v", compressed, tt.expectCompression)
			}

			body := w.Body.Bytes()
			if compressed {
				gz, err := gzip.NewReader(bytes.NewReader(body))
				if err != nil {
					t.Fatal(err)
				}
				body, err = io.ReadAll(gz)
				if err != nil {
					t.Fatal(err)
				}
			}
			if tt.method != http.MethodHead && string(body) != tt.responseBody {
				t.Error("body mismatch after decompression")
			}
		})
	}
}

func TestCompressionWithMultipleWrites(t *testing.T) {
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		for i := 0; i < 100; i++ {
			_, _ = w.Write([]byte(`{"chunk":"0123456789"},`))
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	gz, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("response not gzipped: %v", err)
	}
	body, _ := io.ReadAll(gz)
	if want := strings.Repeat(`{"chunk":"0123456789"},`, 100); string(body) != want {
		t.Error("decompressed body mismatch")
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/items/12/images/7":      "/api/items/{id}/images/{id}",
		"/api/items/12/images":        "/api/items/{id}/images",
		"/api/upload":                 "/api/upload",
		"/Cards/17000-ab12cd.png":     "/Cards/{file}",
		"/Comics/1-aaaaaa_thumb.jpeg": "/Comics/{file}",
		"/health":                     "/health",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRouteLabelUsesTemplate(t *testing.T) {
	var label string
	router := mux.NewRouter()
	router.HandleFunc("/api/items/{id}/images/{imageId}", func(_ http.ResponseWriter, r *http.Request) {
		label = routeLabel(r)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/items/3/images/9", http.NoBody))

	if label != "/api/items/{id}/images/{imageId}" {
		t.Errorf("label = %q", label)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"records API request", "/api/items/1", http.StatusOK},
		{"records errors", "/api/items/999", http.StatusNotFound},
		{"skips metrics endpoint", "/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func BenchmarkLoggingMiddleware(b *testing.B) {
	logging.SetOutput(io.Discard)
	defer logging.SetOutput(os.Stderr)

	handler := Logger(DefaultLoggingConfig())(okHandler("ok"))
	req := httptest.NewRequest(http.MethodGet, "/api/items/1", http.NoBody)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkNormalizePath(b *testing.B) {
	for i := 0; i < b.N; i++ {
		normalizePath("/api/items/12/images/7")
	}
}
