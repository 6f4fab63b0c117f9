package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Launch window size, shared by Chrome and the virtual screen.
const (
	windowWidth  = 1920
	windowHeight = 1080
)

// xvfbSocket is the unix socket an X server listens on for display (":99").
func xvfbSocket(display string) string {
	n := strings.TrimPrefix(display, ":")
	if i := strings.IndexByte(n, '.'); i >= 0 {
		n = n[:i]
	}
	return filepath.Join("/tmp/.X11-unix", "X"+n)
}

// startXvfb runs a virtual screen on cfg.XvfbDisplay and waits until its
// socket appears, at most 5s.
func (m *Manager) startXvfb(ctx context.Context) error {
	if m.xvfb != nil {
		return nil
	}
	display := m.cfg.XvfbDisplay
	screen := fmt.Sprintf("%dx%dx24", windowWidth, windowHeight)
	cmd := exec.Command("Xvfb", display, "-screen", "0", screen, "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	m.xvfb = cmd

	sock := xvfbSocket(display)
	ready := Await(ctx, 50*time.Millisecond, 5*time.Second, func() bool {
		_, err := os.Stat(sock)
		return err == nil
	})
	if !ready {
		m.stopXvfb()
		return fmt.Errorf("xvfb %s not ready: %w", display, ErrTimeout)
	}
	m.cfg.Logger.Info("browser: xvfb started", "display", display, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if m.xvfb.Process != nil {
		_ = m.xvfb.Process.Kill()
		_ = m.xvfb.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb stopped", "display", m.cfg.XvfbDisplay)
	m.xvfb = nil
}
