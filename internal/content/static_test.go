package content

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/muurk/gemd/internal/gemini"
)

func mustRequest(t *testing.T, line string) *gemini.Request {
	t.Helper()
	req, err := gemini.ParseRequestLine([]byte(line + gemini.Terminator))
	if err != nil {
		t.Fatalf("ParseRequestLine(%q) error = %v", line, err)
	}
	return req
}

func readBody(t *testing.T, resp *gemini.Response) string {
	t.Helper()
	if resp.Body == nil {
		return ""
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(data)
}

func TestStatic_DefaultPage(t *testing.T) {
	s := NewStatic("", "")

	resp, err := s.ServeGemini(mustRequest(t, "gemini://example.org/"))
	if err != nil {
		t.Fatalf("ServeGemini() error = %v", err)
	}

	if resp.Header.Status != gemini.StatusSuccess {
		t.Errorf("Status = %v, want %v", resp.Header.Status, gemini.StatusSuccess)
	}
	if resp.Header.Meta != "text/gemini" {
		t.Errorf("Meta = %q, want text/gemini", resp.Header.Meta)
	}
	if got := readBody(t, resp); got != DefaultPage {
		t.Errorf("body = %q, want %q", got, DefaultPage)
	}
}

func TestStatic_FileIgnoresPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.gmi")
	if err := os.WriteFile(path, []byte("# Capsule\n=> /other Other\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewStatic(path, "")

	for _, url := range []string{"gemini://example.org/", "gemini://example.org/deep/path?q"} {
		resp, err := s.ServeGemini(mustRequest(t, url))
		if err != nil {
			t.Fatalf("ServeGemini(%s) error = %v", url, err)
		}
		if resp.Header.Meta != "text/gemini" {
			t.Errorf("Meta = %q, want text/gemini", resp.Header.Meta)
		}
		if got := readBody(t, resp); got != "# Capsule\n=> /other Other\n" {
			t.Errorf("body = %q", got)
		}
	}
}

func TestStatic_MIMEOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.gmi")
	if err := os.WriteFile(path, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	resp, err := NewStatic(path, "text/gemini; lang=en").ServeGemini(mustRequest(t, "gemini://example.org/"))
	if err != nil {
		t.Fatalf("ServeGemini() error = %v", err)
	}
	readBody(t, resp)
	if resp.Header.Meta != "text/gemini; lang=en" {
		t.Errorf("Meta = %q", resp.Header.Meta)
	}
}

func TestStatic_MissingFile(t *testing.T) {
	s := NewStatic(filepath.Join(t.TempDir(), "absent.gmi"), "")

	resp, err := s.ServeGemini(mustRequest(t, "gemini://example.org/"))
	if err != nil {
		t.Fatalf("ServeGemini() error = %v", err)
	}
	if resp.Header.Status != gemini.StatusNotFound {
		t.Errorf("Status = %v, want %v", resp.Header.Status, gemini.StatusNotFound)
	}
	if resp.Body != nil {
		t.Error("Body should be nil for not found")
	}
}

func TestMIMEForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"index.gmi", "text/gemini"},
		{"INDEX.GEMINI", "text/gemini"},
		{"README", "text/gemini"},
		{"photo.png", "image/png"},
		{"blob.unknownext", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := MIMEForPath(tt.path); got != tt.want {
				t.Errorf("MIMEForPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
