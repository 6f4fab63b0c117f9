package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newPortal(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html lang="en"><body>
			<a id="ba" href="/search">Business activities</a>
			<select id="size"><option>10</option><option>30</option></select>
		</body></html>`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html lang="en"><body>
			<form action="/results" method="get"><input id="q" name="q" value=""><button>Search</button></form>
			<div id="echo">%s</div>
		</body></html>`, r.URL.Query().Get("q"))
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html lang="ar"><body><div id="pills-activities">
			<a class="ba-link" href="/details?bacode=%s">hit</a>
		</div></body></html>`, r.URL.Query().Get("q"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStatic_NavigateClickSubmit(t *testing.T) {
	srv := newPortal(t)
	ctx := context.Background()
	p := NewStatic()

	if err := p.Navigate(ctx, srv.URL+"/home"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if lang, _ := p.Lang(ctx); lang != "en" {
		t.Errorf("lang = %q, want en", lang)
	}
	if err := p.SelectOption(ctx, ByCSS("#size"), "30"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := p.SelectOption(ctx, ByCSS("#size"), "50"); !errors.Is(err, ErrNotFound) {
		t.Errorf("select missing option: got %v, want ErrNotFound", err)
	}

	if err := p.Click(ctx, ByXPath("//a[@id='ba']")); err != nil {
		t.Fatalf("click link: %v", err)
	}
	if got := p.URL(); got != srv.URL+"/search" {
		t.Errorf("URL = %q", got)
	}

	if err := p.Fill(ctx, ByCSS("#q"), "007"); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := p.Press(ctx, ByCSS("#q"), KeyEnter); err != nil {
		t.Fatalf("press enter: %v", err)
	}
	hrefs, err := p.Attributes(ctx, ByCSS("#pills-activities a.ba-link"), "href")
	if err != nil {
		t.Fatal(err)
	}
	if len(hrefs) != 1 || hrefs[0] != "/details?bacode=007" {
		t.Errorf("hrefs = %v, want the leading-zero code preserved", hrefs)
	}
	if lang, _ := p.Lang(ctx); lang != "ar" {
		t.Errorf("lang after submit = %q, want ar", lang)
	}
}

func TestStatic_WaitAndUnsupported(t *testing.T) {
	srv := newPortal(t)
	ctx := context.Background()
	p := NewStatic()
	if err := p.Navigate(ctx, srv.URL+"/home"); err != nil {
		t.Fatal(err)
	}

	if err := p.WaitFor(ctx, ByCSS("#ba"), Visible, time.Second); err != nil {
		t.Errorf("WaitFor present element: %v", err)
	}
	start := time.Now()
	err := p.WaitFor(ctx, ByCSS("#nope"), Attached, 10*time.Second)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("WaitFor absent: got %v, want ErrTimeout", err)
	}
	if time.Since(start) > time.Second {
		t.Error("static WaitFor should not sleep")
	}
	if _, err := p.Screenshot(ctx); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Screenshot: got %v, want ErrUnsupported", err)
	}
	if _, err := p.Text(ctx, ByCSS("#nope")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Text absent: got %v, want ErrNotFound", err)
	}
}

func TestStatic_HTTPError(t *testing.T) {
	srv := newPortal(t)
	p := NewStatic(WithStaticClient(NewStatic().client.SetRetryCount(0)))
	if err := p.Navigate(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatal("expected error for 404")
	}
}
