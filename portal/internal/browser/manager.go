// Package browser drives the portal through a real Chrome (go-rod) or, at
// the HTTP-only level, through plain requests parsed with the dom package.
//
// Manager owns the Chrome process: launch or remote connect, heap and age
// monitoring, and recycling between records. Tab is the rod-backed Page.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// StealthLevel controls the browser automation mode.
type StealthLevel int

const (
	LevelHTTP     StealthLevel = 0 // no browser, plain HTTP + static DOM
	LevelHeadless StealthLevel = 1 // rod headless + stealth
	LevelHeadful  StealthLevel = 2 // rod headful on Xvfb or the host display
)

// ParseStealth maps a config string to a level. Unknown values are headless.
func ParseStealth(s string) StealthLevel {
	switch s {
	case "http":
		return LevelHTTP
	case "headful", "visible":
		return LevelHeadful
	}
	return LevelHeadless
}

func (l StealthLevel) String() string {
	switch l {
	case LevelHTTP:
		return "http"
	case LevelHeadful:
		return "headful"
	}
	return "headless"
}

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Bin overrides the Chrome binary. Empty = launcher lookup/download.
	Bin string

	// NoSandbox disables the Chrome sandbox (containers running as root).
	NoSandbox bool

	// MemoryLimit in bytes. The tab heap above this marks the browser stale.
	// Default: 1GB.
	MemoryLimit int64

	// RecycleInterval is the maximum lifetime of a Chrome process before it
	// is marked stale. Default: 2h.
	RecycleInterval time.Duration

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// Stealth sets the automation mode. Default: LevelHeadless.
	Stealth StealthLevel

	// XvfbDisplay for headful mode. Empty = use the host display (--visible).
	XvfbDisplay string

	// ClickTimeout bounds how long a pointer click waits for the element to
	// become interactable. Default: 5s.
	ClickTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 2 * time.Hour
	}
	if c.ClickTimeout <= 0 {
		c.ClickTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager manages the Chrome lifecycle.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	startAt time.Time
	stale   bool
	closed  bool
}

// NewManager creates a browser Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance) and starts the
// monitor goroutine, which stops with ctx.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}

	b, err := m.launch(ctx)
	if err != nil {
		return nil, err
	}
	m.browser = b
	m.startAt = time.Now()

	go m.monitorLoop(ctx)

	return b, nil
}

// Browser returns the current rod browser handle. Thread-safe.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// NewPage opens a fresh stealth tab on the current browser.
func (m *Manager) NewPage(ctx context.Context) (Page, error) {
	return OpenTab(ctx, m)
}

// Stale reports whether the monitor asked for a recycle (age or heap).
func (m *Manager) Stale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stale
}

// Recycle kills Chrome and starts a new one. Every open Tab becomes unusable;
// callers must close their tabs first and open new ones afterwards.
func (m *Manager) Recycle(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}

	log := m.cfg.Logger
	log.Info("browser: recycling", "uptime", time.Since(m.startAt))

	if err := m.cleanup(); err != nil {
		log.Warn("browser: cleanup during recycle", "error", err)
	}
	b, err := m.launch(ctx)
	if err != nil {
		return fmt.Errorf("browser: relaunch: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()
	m.stale = false

	log.Info("browser: recycled")
	return nil
}

// Close shuts down Chrome and Xvfb.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, error) {
	log := m.cfg.Logger

	if m.cfg.Stealth == LevelHeadful && m.cfg.XvfbDisplay != "" {
		if err := m.startXvfb(ctx); err != nil {
			return nil, fmt.Errorf("browser: xvfb: %w", err)
		}
	}

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Context(ctx)
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}

		if m.cfg.Stealth == LevelHeadful {
			l = l.Headless(false)
			if m.cfg.XvfbDisplay != "" {
				l = l.Env("DISPLAY=" + m.cfg.XvfbDisplay)
			}
		} else {
			l = l.Headless(true)
		}
		if m.cfg.NoSandbox {
			l = l.NoSandbox(true)
		}

		l = l.Set("disable-blink-features", "AutomationControlled").
			Set("window-size", fmt.Sprintf("%d,%d", windowWidth, windowHeight))

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "stealth", m.cfg.Stealth.String())
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return b, nil
}

func (m *Manager) cleanup() error {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
	return nil
}

// monitorLoop marks the browser stale when it outlives RecycleInterval or
// a tab heap exceeds MemoryLimit. The recycle itself happens between
// records, where no tab is mid-interaction.
func (m *Manager) monitorLoop(ctx context.Context) {
	log := m.cfg.Logger
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			closed, b, startAt, stale := m.closed, m.browser, m.startAt, m.stale
			m.mu.RUnlock()
			if closed {
				return
			}
			if b == nil || stale {
				continue
			}

			if time.Since(startAt) > m.cfg.RecycleInterval {
				log.Info("browser: recycle interval reached")
				m.markStale()
				continue
			}

			used, err := jsHeapUsage(b)
			if err != nil {
				log.Debug("browser: heap check failed", "error", err)
				continue
			}
			if used > m.cfg.MemoryLimit {
				log.Info("browser: memory limit exceeded", "used", used, "limit", m.cfg.MemoryLimit)
				m.markStale()
			}
		}
	}
}

func (m *Manager) markStale() {
	m.mu.Lock()
	m.stale = true
	m.mu.Unlock()
}

// jsHeapUsage returns the largest used JS heap across open tabs.
func jsHeapUsage(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		return 0, fmt.Errorf("no pages for heap check")
	}

	var peak int64
	for _, p := range pages {
		res, err := p.Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
		if err != nil {
			continue
		}
		if v := int64(res.Value.Int()); v > peak {
			peak = v
		}
	}
	return peak, nil
}
