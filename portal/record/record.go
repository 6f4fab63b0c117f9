// Package record defines the values produced by the extraction engine:
// activity records, per-code results, and their cell/JSON renderings.
package record

import (
	"errors"
	"slices"
	"strings"
)

// Language is one of the two display languages the portal toggles between.
type Language int

const (
	Primary Language = iota
	Secondary
)

func (l Language) String() string {
	if l == Secondary {
		return "secondary"
	}
	return "primary"
}

// Other returns the opposite language.
func (l Language) Other() Language {
	if l == Primary {
		return Secondary
	}
	return Primary
}

// Location is one row of the location/fee table.
type Location struct {
	Main string `json:"main_location"`
	Sub  string `json:"sub_location"`
	Fee  string `json:"fee"`
}

// Approval is one entry of the required-approvals accordion (1-based index).
type Approval struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Agency string `json:"agency"`
}

// Status says how an optional section resolved.
type Status string

const (
	StatusData  Status = "data"
	StatusNone  Status = "none"
	StatusError Status = "error"
)

// ErrEmptyCode is returned by Builder.Build when no code was read.
var ErrEmptyCode = errors.New("record: empty activity code")

// ActivityRecord is one extracted business activity. Build it with Builder;
// accessors return copies so a record never changes after construction.
type ActivityRecord struct {
	code            string
	names           map[Language]string
	locations       []Location
	eligibility     []string
	approvals       []Approval
	approvalsStatus Status
	approvalsNote   string
}

func (r ActivityRecord) Code() string { return r.code }

// Name returns the activity name read in lang ("" when not read).
func (r ActivityRecord) Name(lang Language) string { return r.names[lang] }

// Names returns a copy of the per-language names.
func (r ActivityRecord) Names() map[Language]string {
	out := make(map[Language]string, len(r.names))
	for k, v := range r.names {
		out[k] = v
	}
	return out
}

func (r ActivityRecord) Locations() []Location { return slices.Clone(r.locations) }

// EligibilityNotes is never empty for a built record: absent notes become
// the "no requirements" sentinel.
func (r ActivityRecord) EligibilityNotes() []string { return slices.Clone(r.eligibility) }

func (r ActivityRecord) Approvals() []Approval { return slices.Clone(r.approvals) }

// ApprovalsStatus reports whether approvals hold data, none, or an error;
// ApprovalsNote carries the sentinel text for the latter two.
func (r ActivityRecord) ApprovalsStatus() Status { return r.approvalsStatus }

func (r ActivityRecord) ApprovalsNote() string { return r.approvalsNote }

// Builder accumulates fields for one ActivityRecord.
type Builder struct {
	r ActivityRecord
}

// NewBuilder starts a record for code (trimmed, kept verbatim otherwise).
func NewBuilder(code string) *Builder {
	return &Builder{r: ActivityRecord{
		code:  strings.TrimSpace(code),
		names: make(map[Language]string, 2),
	}}
}

func (b *Builder) Name(lang Language, name string) *Builder {
	b.r.names[lang] = name
	return b
}

func (b *Builder) Locations(locs []Location) *Builder {
	b.r.locations = slices.Clone(locs)
	return b
}

func (b *Builder) Eligibility(notes []string) *Builder {
	b.r.eligibility = slices.Clone(notes)
	return b
}

// Approvals sets the accordion entries with their resolution status.
func (b *Builder) Approvals(status Status, entries []Approval, note string) *Builder {
	b.r.approvalsStatus = status
	b.r.approvals = slices.Clone(entries)
	b.r.approvalsNote = note
	return b
}

// Build validates and returns the record. A record without a code is invalid.
func (b *Builder) Build() (ActivityRecord, error) {
	if b.r.code == "" {
		return ActivityRecord{}, ErrEmptyCode
	}
	r := b.r
	r.names = r.Names()
	if r.locations == nil {
		r.locations = []Location{}
	}
	if r.approvalsStatus == "" {
		r.approvalsStatus = StatusNone
	}
	return r, nil
}
