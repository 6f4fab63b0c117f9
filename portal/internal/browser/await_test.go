package browser

import (
	"context"
	"testing"
	"time"
)

func TestAwait_ImmediateTrue(t *testing.T) {
	calls := 0
	ok := Await(context.Background(), time.Hour, time.Hour, func() bool {
		calls++
		return true
	})
	if !ok || calls != 1 {
		t.Errorf("ok=%v calls=%d, want true after one check", ok, calls)
	}
}

func TestAwait_BecomesTrue(t *testing.T) {
	n := 0
	ok := Await(context.Background(), 5*time.Millisecond, time.Second, func() bool {
		n++
		return n >= 3
	})
	if !ok {
		t.Fatal("expected condition to be met")
	}
}

func TestAwait_Deadline(t *testing.T) {
	start := time.Now()
	ok := Await(context.Background(), 5*time.Millisecond, 40*time.Millisecond, func() bool { return false })
	if ok {
		t.Fatal("expected false at deadline")
	}
	if el := time.Since(start); el < 40*time.Millisecond || el > time.Second {
		t.Errorf("elapsed %v outside the bound", el)
	}
}

func TestAwait_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if Await(ctx, time.Millisecond, time.Hour, func() bool { return false }) {
		t.Fatal("cancelled context must report false")
	}
}

func TestLocator(t *testing.T) {
	l := ByXPath("//*[@id='heading0']/button")
	if l.At(2).Index != 2 || l.Index != 0 {
		t.Error("At must return a copy")
	}
	if got := l.At(1).String(); got != "xpath://*[@id='heading0']/button#1" {
		t.Errorf("String = %q", got)
	}
	if !(Locator{}).IsZero() {
		t.Error("zero locator")
	}
}

func TestParseLocator(t *testing.T) {
	tests := []struct {
		in   string
		want Locator
	}{
		{"#pills-activities", ByCSS("#pills-activities")},
		{"css: div.page-number", ByCSS("div.page-number")},
		{"//*[@id='searchIconId']", ByXPath("//*[@id='searchIconId']")},
		{"/html/body/footer", ByXPath("/html/body/footer")},
		{"xpath:li[2]", ByXPath("li[2]")},
	}
	for _, tt := range tests {
		if got := ParseLocator(tt.in); got != tt.want {
			t.Errorf("ParseLocator(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	tmpl := ParseLocator("//*[@id='collapse{i}']/div")
	if got := tmpl.Nth(11).Expr; got != "//*[@id='collapse11']/div" {
		t.Errorf("Nth = %q", got)
	}
}

func TestLocatorChild(t *testing.T) {
	body := ByXPath("/html/body/table/tbody")
	if got := body.Child("tr", 2).Child("td", 3).Expr; got != "/html/body/table/tbody/tr[2]/td[3]" {
		t.Errorf("xpath child = %q", got)
	}
	if got := ByCSS("table tbody").Child("tr", 0).Expr; got != "table tbody > tr" {
		t.Errorf("css child = %q", got)
	}
	if got := ByCSS("ul").Child("li", 4).Expr; got != "ul > li:nth-of-type(4)" {
		t.Errorf("css nth child = %q", got)
	}
}

func TestXvfbSocket(t *testing.T) {
	tests := map[string]string{
		":99":  "/tmp/.X11-unix/X99",
		":1.0": "/tmp/.X11-unix/X1",
		"7":    "/tmp/.X11-unix/X7",
	}
	for display, want := range tests {
		if got := xvfbSocket(display); got != want {
			t.Errorf("xvfbSocket(%q) = %q, want %q", display, got, want)
		}
	}
}
