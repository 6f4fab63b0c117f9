// Package diag stores failure artifacts: a screenshot and the HTML of the
// page, named after the code or the listing page. Artifacts are written
// for people and never read back.
package diag

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/baextract/portal/internal/browser"
)

// ErrPathTraversal is returned when an artifact name escapes the directory.
var ErrPathTraversal = errors.New("diag: path traversal detected")

// SafePath joins base and name and verifies the result stays under base.
func SafePath(base, name string) (string, error) {
	if name == "" || strings.Contains(name, "..") {
		return "", ErrPathTraversal
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+name))
	if !strings.HasPrefix(cleaned, filepath.Clean(base)+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// Capturer writes artifacts under a directory.
type Capturer struct {
	dir         string
	screenshots bool
	logger      *slog.Logger
}

// New creates a Capturer writing to dir. Screenshots are skipped when
// screenshots is false or the page cannot take them.
func New(dir string, screenshots bool, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{dir: dir, screenshots: screenshots, logger: logger}
}

// Dir returns the artifact directory.
func (c *Capturer) Dir() string { return c.dir }

// Capture stores name.png and name.html. Errors are logged.
func (c *Capturer) Capture(ctx context.Context, page browser.Page, name string) {
	if c.screenshots {
		if png, err := page.Screenshot(ctx); err == nil {
			c.write(name+".png", png)
		} else if !errors.Is(err, browser.ErrUnsupported) {
			c.logger.Warn("diag: screenshot", "name", name, "error", err)
		}
	}
	c.Snapshot(ctx, page, name)
}

// Snapshot stores name.html only.
func (c *Capturer) Snapshot(ctx context.Context, page browser.Page, name string) {
	html, err := page.HTML(ctx)
	if err != nil {
		c.logger.Warn("diag: html snapshot", "name", name, "error", err)
		return
	}
	c.write(name+".html", []byte(html))
}

func (c *Capturer) write(name string, data []byte) {
	path, err := SafePath(c.dir, name)
	if err != nil {
		c.logger.Warn("diag: reject artifact name", "name", name, "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		c.logger.Warn("diag: mkdir", "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.logger.Warn("diag: write artifact", "path", path, "error", err)
		return
	}
	c.logger.Debug("diag: artifact saved", "path", path, "bytes", len(data))
}
