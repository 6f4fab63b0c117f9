package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/record"
)

// Approvals is the resolved approvals section.
type Approvals struct {
	Status  record.Status
	Entries []record.Approval
	// Note is the sentinel text when Status is none or error.
	Note string
}

// Approvals reads the required-approvals accordion. It never fails: an
// unexpected error resolves to status error with the error sentinel.
func (e *Extractor) Approvals(ctx context.Context, page browser.Page, t record.Text) Approvals {
	entries, err := e.approvals(ctx, page, t)
	switch {
	case err != nil:
		e.opts.Logger.Warn("extract: approvals", "error", err)
		return Approvals{Status: record.StatusError, Note: t.Sentinels.ApprovalsError}
	case len(entries) == 0:
		return Approvals{Status: record.StatusNone, Note: t.Sentinels.NoApprovals}
	}
	return Approvals{Status: record.StatusData, Entries: entries}
}

func (e *Extractor) approvals(ctx context.Context, page browser.Page, t record.Text) ([]record.Approval, error) {
	loc := e.opts.Locators
	if err := page.ScrollTo(ctx, 0.5); err != nil {
		return nil, fmt.Errorf("scroll: %w", err)
	}

	heading := false
	for _, h := range loc.ApprovalsHeading {
		n, err := page.Count(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("heading: %w", err)
		}
		if n > 0 {
			heading = true
			break
		}
	}
	if !heading {
		if n, _ := page.Count(ctx, loc.NoApproval); n > 0 {
			note, err := page.Text(ctx, loc.NoApproval)
			if err == nil && NoApprovalNote(note) {
				return nil, nil
			}
		}
	}

	var entries []record.Approval
	for i := 0; i < e.opts.MaxApprovals; i++ {
		header := loc.ApprovalHeader.Nth(i)
		n, err := page.Count(ctx, header)
		if err != nil {
			return nil, fmt.Errorf("header %d: %w", i, err)
		}
		if n == 0 {
			break
		}

		title, err := page.Text(ctx, header)
		if err != nil {
			e.opts.Logger.Debug("extract: read approval title", "index", i, "error", err)
		}
		title = StripIndex(title)
		if title == "" {
			title = fmt.Sprintf(t.Sentinels.ApprovalTitle, i+1)
		}

		if err := browser.ClickOrForce(ctx, page, header); err != nil {
			e.opts.Logger.Debug("extract: expand approval", "index", i, "error", err)
		}

		agency := t.Sentinels.NotSpecified
		body := loc.ApprovalAgency.Nth(i)
		if page.WaitFor(ctx, body, browser.Visible, e.opts.Agency) == nil {
			if s, err := page.Text(ctx, body); err == nil && strings.TrimSpace(s) != "" {
				agency = strings.TrimSpace(s)
			}
		}

		entries = append(entries, record.Approval{Index: i + 1, Title: title, Agency: agency})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// NoApprovalNote reports whether the fallback element's text is the "no
// approval needed" note rather than a numbered approval: non-empty, and no
// digit 1 to 6 among its first ten characters.
func NoApprovalNote(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for i, r := range []rune(text) {
		if i == 10 {
			break
		}
		if r >= '1' && r <= '6' {
			return false
		}
	}
	return true
}

// StripIndex removes a leading "N." enumeration from an accordion title:
// the title must start with a digit and have a dot within its first five
// characters.
func StripIndex(title string) string {
	title = strings.TrimSpace(title)
	r, _ := utf8.DecodeRuneInString(title)
	if !unicode.IsDigit(r) {
		return title
	}
	rs := []rune(title)
	for i := 0; i < len(rs) && i < 5; i++ {
		if rs[i] == '.' {
			return strings.TrimSpace(string(rs[i+1:]))
		}
	}
	return title
}
