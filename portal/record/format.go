package record

import (
	"fmt"
	"strings"
)

// Sentinels are the fixed texts that stand in for "checked, nothing there"
// and "checked, could not tell". They are per display language.
type Sentinels struct {
	NoRequirements string `yaml:"no_requirements"`
	NotSpecified   string `yaml:"not_specified"`
	NoApprovals    string `yaml:"no_approvals"`
	ApprovalsError string `yaml:"approvals_error"`
	// Unavailable replaces a name whose language could not be reached.
	Unavailable string `yaml:"unavailable"`
	// ApprovalTitle is a fmt pattern for an untitled accordion entry.
	ApprovalTitle string `yaml:"approval_title"`
}

// Labels prefix the lines of multi-value cells.
type Labels struct {
	Main     string `yaml:"main"`
	Sub      string `yaml:"sub"`
	Fee      string `yaml:"fee"`
	Approval string `yaml:"approval"`
	Agency   string `yaml:"agency"`
}

// Text is the locale text used while extracting and formatting.
type Text struct {
	Sentinels Sentinels `yaml:"sentinels"`
	Labels    Labels    `yaml:"labels"`
}

// DefaultText returns the portal's texts for a language code (en or ar).
// Unknown codes get English.
func DefaultText(lang string) Text {
	if lang == "ar" {
		return Text{
			Sentinels: Sentinels{
				NoRequirements: "لا يوجد تفاصيل",
				NotSpecified:   "غير محدد",
				NoApprovals:    "هذا النشاط لا يتطلب موافقة",
				ApprovalsError: "خطأ في استخراج الموافقات",
				Unavailable:    "تعذر التبديل إلى اللغة",
				ApprovalTitle:  "الموافقة %d",
			},
			Labels: Labels{
				Main:     "تصنيف الموقع",
				Sub:      "نوع الموقع",
				Fee:      "الرسوم",
				Approval: "الموافقة",
				Agency:   "الجهة",
			},
		}
	}
	return Text{
		Sentinels: Sentinels{
			NoRequirements: "No Business Requirements",
			NotSpecified:   "Not specified",
			NoApprovals:    "No Approvals Needed",
			ApprovalsError: "Error extracting approvals",
			Unavailable:    "Language unavailable",
			ApprovalTitle:  "Approval %d",
		},
		Labels: Labels{
			Main:     "Main Location",
			Sub:      "Sub Location",
			Fee:      "Fee",
			Approval: "Approval",
			Agency:   "Agency",
		},
	}
}

// Row is the flat, cell-ready rendering of a record.
type Row struct {
	Code          string
	PrimaryName   string
	SecondaryName string
	Locations     string
	Eligibility   string
	Approvals     string
}

// FormatRow renders r with the labels of the primary language.
func FormatRow(r ActivityRecord, t Text) Row {
	return Row{
		Code:          r.Code(),
		PrimaryName:   r.Name(Primary),
		SecondaryName: r.Name(Secondary),
		Locations:     FormatLocations(r.Locations(), t.Labels),
		Eligibility:   strings.Join(r.EligibilityNotes(), "\n"),
		Approvals:     FormatApprovals(r, t.Labels),
	}
}

// FormatLocations renders "Main Location 1: ..\nSub Location 1: ..\nFee 1: .."
// blocks separated by a blank line. No rows yields "".
func FormatLocations(locs []Location, l Labels) string {
	parts := make([]string, 0, len(locs))
	for i, loc := range locs {
		n := i + 1
		parts = append(parts, fmt.Sprintf("%s %d: %s\n%s %d: %s\n%s %d: %s",
			l.Main, n, loc.Main, l.Sub, n, loc.Sub, l.Fee, n, loc.Fee))
	}
	return strings.Join(parts, "\n\n")
}

// FormatApprovals renders the approvals cell, or the sentinel note when the
// section resolved to none or error.
func FormatApprovals(r ActivityRecord, l Labels) string {
	if r.ApprovalsStatus() != StatusData {
		return r.ApprovalsNote()
	}
	entries := r.Approvals()
	parts := make([]string, 0, len(entries))
	for _, a := range entries {
		parts = append(parts, fmt.Sprintf("%s %d: %s\n%s %d: %s",
			l.Approval, a.Index, a.Title, l.Agency, a.Index, a.Agency))
	}
	return strings.Join(parts, "\n\n")
}
