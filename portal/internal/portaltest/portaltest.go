// Package portaltest renders documents shaped like the portal's pages, so
// the default locator table can be exercised against scripted pages.
package portaltest

import (
	"fmt"
	"html"
	"strings"

	"github.com/hazyhaar/baextract/portal/internal/config"
)

// Config returns the default configuration.
func Config() *config.Config { return config.Default() }

// Detail describes an activity detail page.
type Detail struct {
	Lang        string
	Code        string
	Name        string
	Locations   [][3]string
	Eligibility []string
	// Heading renders the "required approvals" heading in Lang.
	Heading bool
	// Approvals are (title, agency) accordion entries.
	Approvals [][2]string
	// Note is the text of the fallback no-approval element.
	Note string
}

// skeleton wraps the main section content at
// /html/body/div[4]/div/div/section/div[2]/main/section[3]/div/div/div.
func skeleton(lang, inner, tail string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html lang="%s"><head><title>portal</title></head><body>`, lang)
	b.WriteString(`<div>header</div><div>nav</div><div>banner</div>`)
	b.WriteString(`<div><div><div><section><div>crumbs</div><div><main>`)
	b.WriteString(`<section>hero</section><section>tabs</section><section><div><div>`)
	b.WriteString(inner)
	b.WriteString(`</div></div></section></main></div></section></div></div></div>`)
	b.WriteString(`<a id="swChangeLangLink"><div>` + other(lang) + `</div></a>`)
	b.WriteString(tail)
	b.WriteString(footer)
	b.WriteString(`</body></html>`)
	return b.String()
}

const footer = `<footer><section><div><div><div>about</div><div><ul>` +
	`<li><a href="/services">Services</a></li>` +
	`<li><a id="footer-ba" href="/business-activities">Business Activities</a></li>` +
	`</ul></div></div></div></section></footer>`

func other(lang string) string {
	if lang == "ar" {
		return "English"
	}
	return "عربي"
}

func esc(s string) string { return html.EscapeString(s) }

// HTML renders the detail page.
func (d Detail) HTML() string {
	lang := d.Lang
	if lang == "" {
		lang = "en"
	}
	var b strings.Builder
	b.WriteString(`<div><div>`)
	fmt.Fprintf(&b, `<div><div>Activity Code</div><div>%s</div></div>`, esc(d.Code))
	b.WriteString(`<div><div>ISIC</div><div>-</div></div>`)
	fmt.Fprintf(&b, `<div><div>Activity Name</div><div>%s</div></div>`, esc(d.Name))
	b.WriteString(`<div>a</div><div>b</div><div>c</div><div>d</div>`)

	b.WriteString(`<div><div>Locations</div><div>`)
	if d.Locations != nil {
		b.WriteString(`<table><thead><tr><th>Main</th><th>Sub</th><th>Fee</th></tr></thead><tbody>`)
		for _, l := range d.Locations {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%s</td></tr>`, esc(l[0]), esc(l[1]), esc(l[2]))
		}
		b.WriteString(`</tbody></table>`)
	}
	b.WriteString(`</div></div>`)

	b.WriteString(`<div><div>Eligibility</div><div>`)
	if d.Eligibility != nil {
		b.WriteString(`<table><tbody><tr><td>Who can apply</td></tr><tr><td><ul>`)
		for _, e := range d.Eligibility {
			fmt.Fprintf(&b, `<li> %s </li>`, esc(e))
		}
		b.WriteString(`</ul></td></tr></tbody></table>`)
	}
	b.WriteString(`</div></div>`)

	fmt.Fprintf(&b, `<div><div>Approvals</div><div>%s</div></div>`, esc(d.Note))
	b.WriteString(`</div></div>`)

	var tail strings.Builder
	if d.Heading {
		if lang == "ar" {
			tail.WriteString(`<h4>الموافقات المطلوبة</h4>`)
		} else {
			tail.WriteString(`<h4>Required Approvals</h4>`)
		}
	}
	for i, a := range d.Approvals {
		fmt.Fprintf(&tail, `<div id="heading%d"><button>%s</button></div>`, i, esc(a[0]))
		fmt.Fprintf(&tail, `<div id="collapse%d"><div><div><div><div>Agency</div><div>%s</div></div></div></div></div>`, i, esc(a[1]))
	}
	return skeleton(lang, b.String(), tail.String())
}

// Candidate is one entry of the header search result list.
type Candidate struct {
	Code, Name string
}

// Home renders the home page with the header search widget; results fill
// the business list.
func Home(lang string, results ...Candidate) string {
	var b strings.Builder
	b.WriteString(`<div><span id="searchIconId">search</span>`)
	b.WriteString(`<a id="nav-business-tab">Business Activities</a>`)
	b.WriteString(`<input id="searchInput" type="text"/><ul id="businessList">`)
	for _, c := range results {
		fmt.Fprintf(&b, `<li><a href="/details?bacode=%s"><div>%s %s</div></a></li>`, esc(c.Code), esc(c.Code), esc(c.Name))
	}
	b.WriteString(`</ul></div>`)
	return skeleton(lang, b.String(), "")
}

// Listing describes the footer search page and its paginated results.
type Listing struct {
	Lang string
	// Codes are the codes of the current page, rendered both as result
	// links and as listing items.
	Codes []string
	// Page and Pages feed the "Page X / Y" indicator; zero omits it.
	Page, Pages int
	// Total is the result counter text; empty omits it.
	Total string
	// NextDisabled marks the next control disabled; NoNext omits it.
	NextDisabled bool
	NoNext       bool
	// NoButton omits the search button.
	NoButton bool
	// Chip renders the removable search chip.
	Chip bool
}

// HTML renders the listing page.
func (l Listing) HTML() string {
	lang := l.Lang
	if lang == "" {
		lang = "en"
	}
	var b strings.Builder
	b.WriteString(`<div><div><div><input type="text"/>`)
	if l.Chip {
		b.WriteString(`<div><div><span>x</span></div></div>`)
	}
	b.WriteString(`</div></div></div>`)
	b.WriteString(`<div>filters</div>`)

	b.WriteString(`<div>`)
	if !l.NoButton {
		b.WriteString(`<button type="button"> Search </button>`)
	}
	b.WriteString(`<div id="pills-activities">`)
	if l.Total != "" {
		fmt.Fprintf(&b, `<div class="result-search-info"><span>%s</span> results</div>`, esc(l.Total))
	}
	b.WriteString(`<select id="page_num_select"><option>10</option><option>30</option><option>50</option></select>`)
	for _, c := range l.Codes {
		fmt.Fprintf(&b, `<a class="ba-link" href="/wps/portal/investors/information-center/ba/details?bacode=%s">`, esc(c))
		fmt.Fprintf(&b, `<div class="orange-text ng-binding">%s</div></a>`, esc(c))
	}
	if l.Pages > 0 {
		fmt.Fprintf(&b, `<div class="page-number">Page %d / %d</div>`, l.Page, l.Pages)
	}
	if !l.NoNext {
		class := "page-item"
		if l.NextDisabled {
			class += " disabled"
		}
		fmt.Fprintf(&b, `<ul class="pagination"><li ng-click="nextPage()" class="%s"><div class="page-link">Next</div></li></ul>`, class)
	}
	b.WriteString(`</div></div>`)
	return skeleton(lang, b.String(), "")
}
