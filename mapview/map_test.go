package mapview

import (
	"context"
	"errors"
	"strings"
	"testing"

	"wildmap/location"
)

// fakeWidget records what the map asked of it
type fakeWidget struct {
	container string
	center    LatLng
	zoom      int
	tiles     []TileLayer
	markers   map[Handle]*Marker
	open      Handle
	removed   int
	mountErr  error
}

func newFakeWidget() *fakeWidget {
	return &fakeWidget{markers: map[Handle]*Marker{}}
}

func (f *fakeWidget) Mount(id string) error {
	if f.mountErr != nil {
		return f.mountErr
	}
	f.container = id
	return nil
}
func (f *fakeWidget) SetView(c LatLng, z int)  { f.center, f.zoom = c, z }
func (f *fakeWidget) AddTileLayer(t TileLayer) { f.tiles = append(f.tiles, t) }
func (f *fakeWidget) AddMarker(m *Marker)      { f.markers[m.Handle] = m }
func (f *fakeWidget) RemoveMarker(h Handle) {
	delete(f.markers, h)
	f.removed++
	if f.open == h {
		f.open = ""
	}
}
func (f *fakeWidget) OpenPopup(h Handle) { f.open = h }

type staticSource struct {
	records []location.Record
	err     error
}

func (s staticSource) Fetch(ctx context.Context) ([]location.Record, error) { return s.records, s.err }
func (s staticSource) String() string                                      { return "static" }

func newTestMap(t *testing.T) (*Map, *fakeWidget) {
	t.Helper()
	w := newFakeWidget()
	m, err := New(w, "map", LatLng{Lat: 8.360004, Lng: 124.868419}, 14, Options{
		Tiles: TileLayer{URL: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", MaxZoom: 19},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m, w
}

func TestNewInitialisesWidget(t *testing.T) {
	m, w := newTestMap(t)

	if w.container != "map" {
		t.Errorf("expected widget mounted on map, got %q", w.container)
	}
	if w.zoom != 14 || w.center.Lat != 8.360004 {
		t.Errorf("unexpected initial view %+v @ %d", w.center, w.zoom)
	}
	if len(w.tiles) != 1 {
		t.Errorf("expected one tile layer, got %d", len(w.tiles))
	}
	if m.Camera().Zoom != 14 {
		t.Errorf("expected camera zoom 14, got %d", m.Camera().Zoom)
	}
}

func TestNewMissingContainer(t *testing.T) {
	if _, err := New(newFakeWidget(), "", LatLng{}, 10, Options{}); !errors.Is(err, ErrNoContainer) {
		t.Errorf("expected ErrNoContainer, got %v", err)
	}

	w := newFakeWidget()
	w.mountErr = errors.New("no such element")
	if _, err := New(w, "map", LatLng{}, 10, Options{}); err == nil {
		t.Error("expected the mount error to propagate")
	}
}

func TestAddMarkerBuildsPopup(t *testing.T) {
	m, w := newTestMap(t)

	h := m.AddMarker(8.36, 124.87, "Eagle <Philippine>", "Bird", "images/eagle.jpg", "Critically Endangered", "https://example.com/eagle")
	if h == "" {
		t.Fatal("expected a handle")
	}
	mk, ok := w.markers[h]
	if !ok {
		t.Fatal("expected the marker to be on the widget")
	}
	if mk.Variant != VariantStandard {
		t.Errorf("expected standard variant, got %s", mk.Variant)
	}
	for _, want := range []string{
		"Eagle &lt;Philippine&gt;",
		"Bird",
		"Critically Endangered",
		"images/eagle.jpg",
		"https://example.com/eagle",
		"124.87",
		"8.36",
	} {
		if !strings.Contains(mk.Popup, want) {
			t.Errorf("popup missing %q: %s", want, mk.Popup)
		}
	}
}

func TestAddMarkerOutOfRange(t *testing.T) {
	m, w := newTestMap(t)

	h := m.AddMarker(123, 500, "Nowhere", "", "", "", "")
	if _, ok := w.markers[h]; !ok {
		t.Error("out of range coordinates must still be passed to the widget")
	}
	if !m.OpenPopup(123, 500) {
		t.Error("expected the out of range marker to be found")
	}
}

func TestOpenPopup(t *testing.T) {
	m, w := newTestMap(t)
	m.AddMarker(8.37, 124.88, "Falcon", "", "", "", "")
	h := m.AddMarker(8.36, 124.87, "Eagle", "Bird", "", "", "")

	if !m.OpenPopup(8.36, 124.87) {
		t.Fatal("expected the marker to be found")
	}
	cam := m.Camera()
	if cam.Center.Lat != 8.36 || cam.Center.Lng != 124.87 || cam.Zoom != DefaultPopupZoom {
		t.Errorf("unexpected camera %+v", cam)
	}
	if w.open != h {
		t.Errorf("expected popup %s to be open, got %s", h, w.open)
	}
	if m.OpenMarker() == nil || m.OpenMarker().Title != "Eagle" {
		t.Errorf("expected Eagle to be the open marker")
	}
}

func TestOpenPopupFirstMatch(t *testing.T) {
	m, w := newTestMap(t)
	first := m.AddMarker(8.36, 124.87, "Eagle", "", "", "", "")
	m.AddMarker(8.36, 124.87, "Eagle again", "", "", "", "")

	m.OpenPopup(8.36, 124.87)
	if w.open != first {
		t.Errorf("expected the first placed marker to win")
	}
}

func TestOpenPopupMiss(t *testing.T) {
	m, w := newTestMap(t)
	m.AddMarker(8.36, 124.87, "Eagle", "", "", "", "")
	before := m.Camera()

	if m.OpenPopup(8.360001, 124.87) {
		t.Error("expected no match for a near miss")
	}
	if m.Camera() != before {
		t.Errorf("camera changed on a miss: %+v", m.Camera())
	}
	if w.open != "" {
		t.Errorf("no popup should be open")
	}
}

func TestRemoveMarkersClearsAllVariants(t *testing.T) {
	m, w := newTestMap(t)
	m.AddMarker(8.360004, 124.868419, "Regular Marker", "", "", "", "")
	m.AddCustomMarker(8.361004, 124.869419, "Custom Marker", "images/custom.png")
	m.OpenPopup(8.360004, 124.868419)

	m.RemoveMarkers()

	if len(m.Markers()) != 0 {
		t.Errorf("expected no markers, got %d", len(m.Markers()))
	}
	if len(w.markers) != 0 || w.removed != 2 {
		t.Errorf("expected both markers detached from the widget, %d left, %d removed", len(w.markers), w.removed)
	}
	if m.OpenMarker() != nil {
		t.Error("expected no open marker")
	}
	if m.OpenPopup(8.360004, 124.868419) || m.OpenPopup(8.361004, 124.869419) {
		t.Error("OpenPopup after RemoveMarkers must be a no-op")
	}
	if len(m.Within(LatLng{Lat: -90, Lng: -180}, LatLng{Lat: 90, Lng: 180})) != 0 {
		t.Error("expected the index to be cleared")
	}
}

func TestAddCustomMarker(t *testing.T) {
	m, w := newTestMap(t)
	h := m.AddCustomMarker(8.361004, 124.869419, "Custom <b>", "images/custom.png")

	mk := w.markers[h]
	if mk.Variant != VariantCustom {
		t.Errorf("expected custom variant, got %s", mk.Variant)
	}
	if mk.Icon == nil || mk.Icon.URL != "images/custom.png" {
		t.Errorf("expected the custom icon, got %+v", mk.Icon)
	}
	if mk.Popup != "Custom &lt;b&gt;" {
		t.Errorf("unexpected popup %q", mk.Popup)
	}
}

func TestMoveToLocation(t *testing.T) {
	m, w := newTestMap(t)
	m.AddMarker(8.36, 124.87, "Eagle", "", "", "", "")
	m.AddCustomMarker(8.37, 124.88, "Custom", "")

	h := m.MoveToLocation(10.3, 123.9, "Cebu")

	markers := m.Markers()
	if len(markers) != 1 || markers[0].Handle != h {
		t.Fatalf("expected a single new marker, got %d", len(markers))
	}
	if markers[0].Popup != "Cebu" {
		t.Errorf("expected message popup, got %q", markers[0].Popup)
	}
	if cam := m.Camera(); cam.Center.Lat != 10.3 || cam.Center.Lng != 123.9 || cam.Zoom != DefaultPopupZoom {
		t.Errorf("unexpected camera %+v", cam)
	}
	if len(w.markers) != 1 {
		t.Errorf("expected one marker on the widget, got %d", len(w.markers))
	}
}

func TestLoadMarkersFromSource(t *testing.T) {
	m, w := newTestMap(t)
	records := []location.Record{
		{Title: "Eagle", Latitude: 8.36, Longitude: 124.87, Description: "Bird"},
		{Title: "Falcon", Latitude: 8.37, Longitude: 124.88},
	}

	if err := m.LoadMarkersFromSource(context.Background(), staticSource{records: records}); err != nil {
		t.Fatalf("LoadMarkersFromSource failed: %v", err)
	}
	markers := m.Markers()
	if len(markers) != 2 || markers[0].Title != "Eagle" || markers[1].Title != "Falcon" {
		t.Fatalf("expected markers in record order, got %d", len(markers))
	}
	if len(w.markers) != 2 {
		t.Errorf("expected 2 markers on the widget, got %d", len(w.markers))
	}

	err := m.LoadMarkersFromSource(context.Background(), staticSource{err: errors.New("boom")})
	if err == nil {
		t.Error("expected the fetch error")
	}
	if len(m.Markers()) != 2 {
		t.Errorf("a failed load must leave existing markers, got %d", len(m.Markers()))
	}
}

func TestWithin(t *testing.T) {
	m, _ := newTestMap(t)
	m.AddMarker(8.38, 124.89, "Owl", "", "", "", "")
	m.AddMarker(51.5, -0.12, "London", "", "", "", "")
	m.AddMarker(8.36, 124.87, "Eagle", "", "", "", "")

	got := m.Within(LatLng{Lat: 8, Lng: 124}, LatLng{Lat: 9, Lng: 125})
	if len(got) != 2 {
		t.Fatalf("expected 2 markers in the box, got %d", len(got))
	}
	if got[0].Title != "Owl" || got[1].Title != "Eagle" {
		t.Errorf("expected insertion order, got %s, %s", got[0].Title, got[1].Title)
	}
}
