package diag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/internal/browser/browsertest"
)

func TestCapture_WritesScreenshotAndHTML(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, true, nil)
	p := browsertest.New()
	p.Load(`<html lang="en"><body><p id="x">Bakery</p></body></html>`)

	c.Capture(context.Background(), p, "error_007")

	png, err := os.ReadFile(filepath.Join(dir, "error_007.png"))
	if err != nil || !strings.HasPrefix(string(png), "\x89PNG") {
		t.Errorf("screenshot = %q, %v", png, err)
	}
	html, err := os.ReadFile(filepath.Join(dir, "error_007.html"))
	if err != nil || !strings.Contains(string(html), "Bakery") {
		t.Errorf("html = %q, %v", html, err)
	}
}

func TestSnapshot_HTMLOnly(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, true, nil)
	p := browsertest.New()
	p.Load(`<html><body>page</body></html>`)

	c.Snapshot(context.Background(), p, "output_page_3")

	if _, err := os.Stat(filepath.Join(dir, "output_page_3.html")); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "output_page_3.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("snapshot wrote a screenshot: %v", err)
	}
}

func TestCapture_StaticPageSkipsScreenshot(t *testing.T) {
	dir := t.TempDir()
	New(dir, true, nil).Capture(context.Background(), browser.NewStatic(), "error_1")

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".png") {
			t.Errorf("unexpected %s", e.Name())
		}
	}
}

func TestSafePath(t *testing.T) {
	base := "/tmp/diag"
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"error_007.png", "/tmp/diag/error_007.png", false},
		{"pages/output_page_1.html", "/tmp/diag/pages/output_page_1.html", false},
		{"../etc/passwd", "", true},
		{"", "", true},
		{"/abs.html", "/tmp/diag/abs.html", false},
	}
	for _, tt := range tests {
		got, err := SafePath(base, tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("SafePath(%q) = %q, %v", tt.name, got, err)
		}
		if tt.wantErr && !errors.Is(err, ErrPathTraversal) {
			t.Errorf("SafePath(%q) err = %v, want ErrPathTraversal", tt.name, err)
		}
	}
}
