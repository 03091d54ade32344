package cards

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"wildmap/location"
)

type popupCall struct {
	lat, lng float64
}

type recordingSelector struct {
	calls []popupCall
	found bool
}

func (s *recordingSelector) OpenPopup(lat, lng float64) bool {
	s.calls = append(s.calls, popupCall{lat, lng})
	return s.found
}

var birds = []location.Record{
	{Title: "Eagle", Latitude: 8.36, Longitude: 124.87, Description: "Bird", Brief: "Big", Photo: "e.jpg", Details: "Nests high"},
	{Title: "Falcon", Latitude: 8.37, Longitude: 124.88, Description: "Fast"},
}

func newTestRenderer(t *testing.T, opts ...Option) (*Renderer, *recordingSelector) {
	t.Helper()
	c, err := NewContainer("location-container")
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	sel := &recordingSelector{found: true}
	return NewRenderer(c, sel, opts...), sel
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestNewContainerMissing(t *testing.T) {
	if _, err := NewContainer(""); !errors.Is(err, ErrNoContainer) {
		t.Errorf("expected ErrNoContainer, got %v", err)
	}
}

func TestRenderBuildsCards(t *testing.T) {
	r, _ := newTestRenderer(t)
	r.Render(birds[:1])

	doc := parse(t, r.Container().HTML())
	cards := doc.Find(".location-card")
	if cards.Length() != 1 {
		t.Fatalf("expected 1 card, got %d", cards.Length())
	}
	if got := cards.Find("h5.card-title").Text(); got != "Eagle" {
		t.Errorf("expected title Eagle, got %q", got)
	}
	if got := cards.Find("p.card-text").Text(); got != "Big" {
		t.Errorf("expected brief Big, got %q", got)
	}
	if src, _ := cards.Find("img").Attr("src"); src != "e.jpg" {
		t.Errorf("expected photo e.jpg, got %q", src)
	}
	if cards.Find(".card-details").Length() != 0 {
		t.Error("plain cards must not carry details")
	}
}

func TestRenderDefaults(t *testing.T) {
	r, _ := newTestRenderer(t)
	r.Render(birds[1:])

	card := r.Container().Cards()[0]
	if card.Brief != noBrief {
		t.Errorf("expected default brief, got %q", card.Brief)
	}
	doc := parse(t, r.Container().HTML())
	if doc.Find("img").Length() != 0 {
		t.Error("expected no image for a record without a photo")
	}
}

func TestRenderEscapesTitle(t *testing.T) {
	r, _ := newTestRenderer(t)
	r.Render([]location.Record{{Title: "<script>alert(1)</script>"}})

	html := r.Container().HTML()
	if strings.Contains(html, "<script>") {
		t.Errorf("title was not escaped: %s", html)
	}
	doc := parse(t, html)
	if got := doc.Find("h5.card-title").Text(); got != "<script>alert(1)</script>" {
		t.Errorf("unexpected title text %q", got)
	}
}

func TestRenderReplacesCards(t *testing.T) {
	r, _ := newTestRenderer(t)
	r.Render(birds)
	r.Render(location.Filter(birds, "fal"))

	doc := parse(t, r.Container().HTML())
	titles := doc.Find("h5.card-title")
	if titles.Length() != 1 || titles.Text() != "Falcon" {
		t.Errorf("expected only Falcon, got %d cards", titles.Length())
	}

	r.Render(nil)
	if len(r.Container().Cards()) != 0 || r.Container().HTML() != "" {
		t.Error("expected an empty container")
	}
}

func TestClickOpensPopup(t *testing.T) {
	r, sel := newTestRenderer(t)
	r.Render(birds)

	eagle := r.Container().Cards()[0]
	if !r.Click(eagle.ID) {
		t.Fatal("expected the click to open a popup")
	}
	if len(sel.calls) != 1 || sel.calls[0] != (popupCall{8.36, 124.87}) {
		t.Errorf("unexpected popup calls %+v", sel.calls)
	}
}

func TestClickStaleCard(t *testing.T) {
	r, sel := newTestRenderer(t)
	r.Render(birds)
	stale := r.Container().Cards()[0].ID

	r.Render(birds)
	if r.Click(stale) {
		t.Error("a card from a previous render must not be clickable")
	}
	if r.Click("nope") {
		t.Error("unknown card ids must be ignored")
	}
	if len(sel.calls) != 0 {
		t.Errorf("expected no popup calls, got %d", len(sel.calls))
	}

	fresh := r.Container().Cards()
	if fresh[0].ID == stale {
		t.Error("card ids must not be reused across renders")
	}
}

func TestClickMissingMarker(t *testing.T) {
	r, sel := newTestRenderer(t)
	sel.found = false
	r.Render(birds)

	if r.Click(r.Container().Cards()[1].ID) {
		t.Error("expected false when no marker sits at the card's coordinates")
	}
	if len(sel.calls) != 1 {
		t.Errorf("expected the selector to be asked once, got %d", len(sel.calls))
	}
}

func TestDetailedStrategy(t *testing.T) {
	r, _ := newTestRenderer(t, WithStrategy(Detailed))
	r.Render(birds[:1])

	doc := parse(t, r.Container().HTML())
	details := doc.Find(".location-card .card-details")
	if details.Length() != 1 {
		t.Fatalf("expected a details block, got %d", details.Length())
	}
	if !strings.Contains(details.Text(), "Additional Info: Nests high") {
		t.Errorf("unexpected details %q", details.Text())
	}
}

func TestNotice(t *testing.T) {
	r, _ := newTestRenderer(t)
	r.Container().SetNotice("Error loading location data")
	r.Render(nil)

	doc := parse(t, r.Container().HTML())
	if got := doc.Find("p.notice").Text(); got != "Error loading location data" {
		t.Errorf("unexpected notice %q", got)
	}
}
