// Package extract reads the fields of a loaded activity detail page.
//
// Absence is meaningful on the portal: a missing location table means no
// location rows, a missing eligibility list means no requirements, and the
// approvals accordion may be replaced by a "no approval needed" note. Only
// the activity code is mandatory.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/record"
)

// Locators is the part of the locator table the extractor reads.
type Locators struct {
	Code            browser.Locator
	Name            browser.Locator
	LocationBody    browser.Locator
	EligibilityList browser.Locator
	NoApproval      browser.Locator
	// ApprovalsHeading lists the accordion heading in each language.
	ApprovalsHeading []browser.Locator
	// ApprovalHeader and ApprovalAgency are templates indexed by "{i}".
	ApprovalHeader browser.Locator
	ApprovalAgency browser.Locator
}

// Options configures an Extractor.
type Options struct {
	Locators     Locators
	Anchor       time.Duration // visible wait for code and name
	Eligibility  time.Duration // wait for the eligibility list
	Agency       time.Duration // wait for an expanded accordion body
	MaxApprovals int
	Logger       *slog.Logger
}

func (o *Options) defaults() {
	if o.Anchor <= 0 {
		o.Anchor = 10 * time.Second
	}
	if o.Eligibility <= 0 {
		o.Eligibility = 3 * time.Second
	}
	if o.Agency <= 0 {
		o.Agency = 2 * time.Second
	}
	if o.MaxApprovals <= 0 {
		o.MaxApprovals = 12
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Extractor reads record fields from a detail page.
type Extractor struct {
	opts Options
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	opts.defaults()
	return &Extractor{opts: opts}
}

// Code reads the activity code. A missing or empty code field is an error
// wrapping browser.ErrNotFound.
func (e *Extractor) Code(ctx context.Context, page browser.Page) (string, error) {
	code, err := e.anchor(ctx, page, e.opts.Locators.Code)
	if err != nil {
		return "", fmt.Errorf("extract: code: %w", err)
	}
	return code, nil
}

// Name reads the activity name in the language currently displayed.
func (e *Extractor) Name(ctx context.Context, page browser.Page) (string, error) {
	name, err := e.anchor(ctx, page, e.opts.Locators.Name)
	if err != nil {
		return "", fmt.Errorf("extract: name: %w", err)
	}
	return name, nil
}

func (e *Extractor) anchor(ctx context.Context, page browser.Page, loc browser.Locator) (string, error) {
	if err := page.WaitFor(ctx, loc, browser.Visible, e.opts.Anchor); err != nil {
		return "", fmt.Errorf("%w: %s: %v", browser.ErrNotFound, loc, err)
	}
	text, err := page.Text(ctx, loc)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s is empty", browser.ErrNotFound, loc)
	}
	return text, nil
}

// Locations reads the location/fee table row by row. Rows whose three
// cells are all empty are skipped; an absent table yields an empty slice.
func (e *Extractor) Locations(ctx context.Context, page browser.Page) ([]record.Location, error) {
	body := e.opts.Locators.LocationBody
	rows, err := page.Count(ctx, body.Child("tr", 0))
	if err != nil {
		return nil, fmt.Errorf("extract: locations: %w", err)
	}

	locs := []record.Location{}
	for i := 1; i <= rows; i++ {
		cells, err := page.Texts(ctx, body.Child("tr", i).Child("td", 0))
		if err != nil {
			return nil, fmt.Errorf("extract: location row %d: %w", i, err)
		}
		var c [3]string
		for j := 0; j < len(c) && j < len(cells); j++ {
			c[j] = strings.TrimSpace(cells[j])
		}
		if c[0] == "" && c[1] == "" && c[2] == "" {
			continue
		}
		locs = append(locs, record.Location{Main: c[0], Sub: c[1], Fee: c[2]})
	}
	return locs, nil
}

// Eligibility reads the eligibility list items. A missing or empty list
// yields the single "no requirements" sentinel.
func (e *Extractor) Eligibility(ctx context.Context, page browser.Page, s record.Sentinels) []string {
	list := e.opts.Locators.EligibilityList
	none := []string{s.NoRequirements}
	if err := page.WaitFor(ctx, list, browser.Attached, e.opts.Eligibility); err != nil {
		return none
	}
	items, err := page.Texts(ctx, list.Child("li", 0))
	if err != nil {
		e.opts.Logger.Debug("extract: eligibility items", "error", err)
		return none
	}
	var notes []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			notes = append(notes, it)
		}
	}
	if len(notes) == 0 {
		return none
	}
	return notes
}
