// Package lang forces the portal's display language.
package lang

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/record"
)

// Options configures a Controller.
type Options struct {
	// Toggle is the language switch link.
	Toggle browser.Locator
	// Codes are the document lang values of the primary and secondary
	// language.
	Codes [2]string

	ToggleTimeout time.Duration // wait for the toggle to be visible
	Poll          time.Duration // lang attribute polling interval
	Deadline      time.Duration // bound on the switch itself
	Settle        time.Duration // quiescence wait after a switch

	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.ToggleTimeout <= 0 {
		o.ToggleTimeout = 10 * time.Second
	}
	if o.Poll <= 0 {
		o.Poll = 250 * time.Millisecond
	}
	if o.Deadline <= 0 {
		o.Deadline = 10 * time.Second
	}
	if o.Settle <= 0 {
		o.Settle = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Controller switches a page between the two display languages.
type Controller struct {
	opts Options
}

// New creates a Controller.
func New(opts Options) *Controller {
	opts.defaults()
	return &Controller{opts: opts}
}

// Code returns the document lang value of l.
func (c *Controller) Code(l record.Language) string {
	return c.opts.Codes[l]
}

// Ensure leaves page displaying target. It returns true without any
// interaction when the page already shows target, and false when the
// toggle is missing or the switch does not complete in time. On true the
// page has settled.
func (c *Controller) Ensure(ctx context.Context, page browser.Page, target record.Language) bool {
	want := c.opts.Codes[target]
	log := c.opts.Logger.With("lang", want)

	if c.is(ctx, page, want) {
		return true
	}

	toggle := c.opts.Toggle
	if err := page.WaitFor(ctx, toggle, browser.Visible, c.opts.ToggleTimeout); err != nil {
		log.Warn("lang: toggle not available", "error", err)
		return false
	}
	if err := page.ScrollIntoView(ctx, toggle); err != nil {
		log.Debug("lang: scroll to toggle", "error", err)
	}
	if err := browser.ClickOrForce(ctx, page, toggle); err != nil {
		log.Warn("lang: toggle click failed", "error", err)
		return false
	}

	if !browser.Await(ctx, c.opts.Poll, c.opts.Deadline, func() bool { return c.is(ctx, page, want) }) {
		log.Warn("lang: switch did not complete", "deadline", c.opts.Deadline)
		return false
	}
	if err := page.Settle(ctx, c.opts.Settle); err != nil {
		log.Debug("lang: settle after switch", "error", err)
	}
	log.Debug("lang: switched")
	return true
}

func (c *Controller) is(ctx context.Context, page browser.Page, want string) bool {
	cur, err := page.Lang(ctx)
	if err != nil {
		return false
	}
	return Matches(cur, want)
}

// Matches compares a document lang value with a language code, accepting
// region subtags ("en-US" matches "en").
func Matches(value, code string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	code = strings.ToLower(code)
	return value == code || strings.HasPrefix(value, code+"-")
}
