package portaltest

import (
	"strings"
	"testing"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/internal/dom"
)

func query(t *testing.T, doc, expr string) []string {
	t.Helper()
	root, err := dom.ParseString(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	loc := browser.ParseLocator(expr)
	var out []string
	for _, n := range dom.Query(root, loc.Expr, loc.Kind == browser.XPath) {
		out = append(out, strings.TrimSpace(dom.Text(n)))
	}
	return out
}

func TestDefaultLocatorsResolve(t *testing.T) {
	loc := Config().Locators
	detail := Detail{
		Code:        "007",
		Name:        "Bakery",
		Locations:   [][3]string{{"Commercial", "Shop", "500"}},
		Eligibility: []string{"Qatari nationals"},
		Note:        "No approvals",
		Heading:     true,
		Approvals:   [][2]string{{"1. Fire Safety", "Civil Defence"}},
	}.HTML()
	listing := Listing{Codes: []string{"1000", "1001"}, Page: 1, Pages: 2, Total: "35", Chip: true}.HTML()
	home := Home("en", Candidate{Code: "007", Name: "Bakery"})

	tests := []struct {
		name string
		doc  string
		expr string
		want string
	}{
		{"code", detail, loc.Code, "007"},
		{"name", detail, loc.Name, "Bakery"},
		{"location body", detail, loc.LocationBody, "Commercial"},
		{"eligibility", detail, loc.EligibilityList, "Qatari nationals"},
		{"no approval", detail, loc.NoApproval, "No approvals"},
		{"approvals heading", detail, loc.ApprovalsHeading[0], "Required Approvals"},
		{"approval header", detail, browser.ParseLocator(loc.ApprovalHeader).Nth(0).Expr, "1. Fire Safety"},
		{"approval agency", detail, browser.ParseLocator(loc.ApprovalAgency).Nth(0).Expr, "Civil Defence"},
		{"lang toggle", detail, loc.LangToggle, "عربي"},
		{"footer link", detail, loc.FooterLink, "Business Activities"},
		{"search result", home, loc.SearchFirst, "007 Bakery"},
		{"footer input", listing, loc.FooterInput, ""},
		{"search chip", listing, loc.SearchChip, "x"},
		{"listing items", listing, loc.ListingItems, "1000"},
		{"page indicator", listing, loc.PageIndicator, "Page 1 / 2"},
		{"total", listing, loc.TotalCount, "35"},
		{"next link", listing, loc.NextLink, "Next"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := query(t, tt.doc, tt.expr)
			if len(got) == 0 {
				t.Fatalf("%s resolved to nothing", tt.expr)
			}
			if !strings.Contains(got[0], tt.want) {
				t.Errorf("%s = %q, want it to contain %q", tt.expr, got[0], tt.want)
			}
		})
	}
}
