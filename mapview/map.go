// Package mapview owns a map widget and the markers placed on it.
//
// A Map is a mutable collection of markers plus a camera. It is not safe for
// concurrent use: it belongs to one session and every call is made from that
// session's goroutine.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/asim/quadtree"
	"github.com/google/uuid"

	"wildmap/app"
	"wildmap/location"
)

// DefaultPopupZoom is the close zoom level used when a popup is opened
const DefaultPopupZoom = 18

// Variant tags how a marker was placed
type Variant string

const (
	VariantStandard Variant = "standard"
	VariantCustom   Variant = "custom"
)

// Handle is an opaque reference to a placed marker
type Handle string

// Marker is a placed marker and the data its popup was built from
type Marker struct {
	Handle      Handle  `json:"id"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Image       string  `json:"image,omitempty"`
	Status      string  `json:"status,omitempty"`
	Link        string  `json:"link,omitempty"`
	Variant     Variant `json:"variant"`
	Icon        *Icon   `json:"icon,omitempty"`
	Popup       string  `json:"popup"`

	seq int
}

// Options configures a Map
type Options struct {
	Tiles TileLayer
	// PopupZoom is the zoom used by OpenPopup and MoveToLocation
	PopupZoom int
	// Icon is used for markers added with AddMarker
	Icon *Icon
}

// ErrNoContainer is returned when the map has nowhere to render
var ErrNoContainer = errors.New("map container not found")

// Map is the map view
type Map struct {
	widget  Widget
	opts    Options
	camera  Camera
	markers []*Marker
	index   *quadtree.QuadTree
	open    Handle
	seq     int
}

// New creates a map bound to containerID, sets the initial camera and
// attaches the base tile layer.
func New(w Widget, containerID string, center LatLng, zoom int, opts Options) (*Map, error) {
	if containerID == "" {
		return nil, ErrNoContainer
	}
	if err := w.Mount(containerID); err != nil {
		return nil, fmt.Errorf("mount %s: %w", containerID, err)
	}
	if opts.PopupZoom == 0 {
		opts.PopupZoom = DefaultPopupZoom
	}

	m := &Map{
		widget: w,
		opts:   opts,
		camera: Camera{Center: center, Zoom: zoom},
	}
	m.resetIndex()

	w.SetView(center, zoom)
	w.AddTileLayer(opts.Tiles)
	return m, nil
}

// resetIndex creates an empty quadtree covering the whole world
func (m *Map) resetIndex() {
	center := quadtree.NewPoint(0, 0, nil)
	half := quadtree.NewPoint(90, 180, nil)
	m.index = quadtree.New(quadtree.NewAABB(center, half), 0, nil)
}

// AddMarker places a standard marker with a popup built from the given
// fields. Coordinates are passed through unchecked.
func (m *Map) AddMarker(lat, lng float64, title, description, imageURL, status, link string) Handle {
	mk := &Marker{
		Lat:         lat,
		Lng:         lng,
		Title:       title,
		Description: description,
		Image:       imageURL,
		Status:      status,
		Link:        link,
		Variant:     VariantStandard,
		Icon:        m.opts.Icon,
	}
	mk.Popup = popupHTML(mk)
	return m.place(mk)
}

// AddCustomMarker places a marker with its own icon and a plain message popup
func (m *Map) AddCustomMarker(lat, lng float64, message, iconURL string) Handle {
	mk := &Marker{
		Lat:     lat,
		Lng:     lng,
		Title:   message,
		Variant: VariantCustom,
		Popup:   messagePopupHTML(message),
	}
	if iconURL != "" {
		mk.Icon = &Icon{URL: iconURL}
	}
	return m.place(mk)
}

func (m *Map) addMessageMarker(lat, lng float64, message string) Handle {
	mk := &Marker{
		Lat:     lat,
		Lng:     lng,
		Title:   message,
		Variant: VariantStandard,
		Popup:   messagePopupHTML(message),
	}
	return m.place(mk)
}

func (m *Map) place(mk *Marker) Handle {
	mk.Handle = Handle(uuid.New().String())
	mk.seq = m.seq
	m.seq++

	m.markers = append(m.markers, mk)
	// out of range coordinates stay on the map but are not indexed
	m.index.Insert(quadtree.NewPoint(mk.Lat, mk.Lng, mk))
	m.widget.AddMarker(mk)
	return mk.Handle
}

// AddRecords places one marker per record, in order
func (m *Map) AddRecords(records []location.Record) {
	for _, r := range records {
		m.AddMarker(r.Latitude, r.Longitude, r.Title, r.Description, r.Image, r.Status, r.Link)
	}
}

// OpenPopup finds the first marker placed at exactly lat, lng, moves the
// camera to it at the popup zoom and opens its popup. It reports whether a
// marker was found; a miss changes nothing.
func (m *Map) OpenPopup(lat, lng float64) bool {
	mk := m.find(lat, lng)
	if mk == nil {
		return false
	}
	m.setView(LatLng{Lat: lat, Lng: lng}, m.opts.PopupZoom)
	m.open = mk.Handle
	m.widget.OpenPopup(mk.Handle)
	return true
}

func (m *Map) find(lat, lng float64) *Marker {
	for _, mk := range m.markers {
		if mk.Lat == lat && mk.Lng == lng {
			return mk
		}
	}
	return nil
}

// RemoveMarkers detaches every marker, of every variant, and clears the
// collection.
func (m *Map) RemoveMarkers() {
	for _, mk := range m.markers {
		m.widget.RemoveMarker(mk.Handle)
	}
	m.markers = nil
	m.open = ""
	m.resetIndex()
}

// MoveToLocation recenters on lat, lng, clears all markers and places a
// single marker there with message as its popup.
func (m *Map) MoveToLocation(lat, lng float64, message string) Handle {
	m.setView(LatLng{Lat: lat, Lng: lng}, m.opts.PopupZoom)
	m.RemoveMarkers()
	return m.addMessageMarker(lat, lng, message)
}

// LoadMarkersFromSource fetches records and places a marker for each one.
// On failure the error is logged and markers already on the map stay.
func (m *Map) LoadMarkersFromSource(ctx context.Context, src location.Source) error {
	records, err := src.Fetch(ctx)
	if err != nil {
		app.Log("mapview", "Error loading markers: %v", err)
		return err
	}
	m.AddRecords(records)
	return nil
}

func (m *Map) setView(center LatLng, zoom int) {
	m.camera = Camera{Center: center, Zoom: zoom}
	m.widget.SetView(center, zoom)
}

// Camera returns the current camera
func (m *Map) Camera() Camera { return m.camera }

// Markers returns the placed markers in insertion order
func (m *Map) Markers() []*Marker {
	out := make([]*Marker, len(m.markers))
	copy(out, m.markers)
	return out
}

// OpenMarker returns the marker whose popup was last opened, or nil
func (m *Map) OpenMarker() *Marker {
	if m.open == "" {
		return nil
	}
	for _, mk := range m.markers {
		if mk.Handle == m.open {
			return mk
		}
	}
	return nil
}

// Within returns the markers inside the box spanned by sw and ne, in
// insertion order.
func (m *Map) Within(sw, ne LatLng) []*Marker {
	center := quadtree.NewPoint((sw.Lat+ne.Lat)/2, (sw.Lng+ne.Lng)/2, nil)
	half := quadtree.NewPoint((ne.Lat-sw.Lat)/2, (ne.Lng-sw.Lng)/2, nil)
	points := m.index.Search(quadtree.NewAABB(center, half))

	result := make([]*Marker, 0, len(points))
	for _, pt := range points {
		if mk, ok := pt.Data().(*Marker); ok {
			result = append(result, mk)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].seq < result[j].seq
	})
	return result
}
