// Package leaflet is the browser side of the map widget. The server keeps a
// copy of what the Leaflet map should show and hands it to the page either as
// a bootstrap script or as a stream of commands.
package leaflet

import (
	"encoding/json"
	"fmt"
	"regexp"

	"wildmap/mapview"
)

// Ops sent to the browser
const (
	OpView   = "view"
	OpTiles  = "tiles"
	OpAdd    = "add"
	OpRemove = "remove"
	OpOpen   = "open"
)

// Command is one change to apply to the Leaflet map
type Command struct {
	Op     string             `json:"op"`
	Center *mapview.LatLng    `json:"center,omitempty"`
	Zoom   int                `json:"zoom"`
	Tiles  *mapview.TileLayer `json:"tiles,omitempty"`
	Marker *mapview.Marker    `json:"marker,omitempty"`
	ID     mapview.Handle     `json:"id,omitempty"`
}

// State is everything needed to draw the map from scratch
type State struct {
	Container string              `json:"container"`
	Center    mapview.LatLng      `json:"center"`
	Zoom      int                 `json:"zoom"`
	Tiles     []mapview.TileLayer `json:"tiles"`
	Markers   []*mapview.Marker   `json:"markers"`
	Open      mapview.Handle      `json:"open,omitempty"`
}

var containerID = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_:.-]*$`)

// Widget implements mapview.Widget
type Widget struct {
	state   State
	pending []Command
}

// New returns an unmounted widget
func New() *Widget {
	return &Widget{}
}

func (w *Widget) Mount(id string) error {
	if !containerID.MatchString(id) {
		return fmt.Errorf("invalid container id %q", id)
	}
	w.state.Container = id
	return nil
}

func (w *Widget) SetView(center mapview.LatLng, zoom int) {
	w.state.Center = center
	w.state.Zoom = zoom
	c := center
	w.push(Command{Op: OpView, Center: &c, Zoom: zoom})
}

func (w *Widget) AddTileLayer(layer mapview.TileLayer) {
	w.state.Tiles = append(w.state.Tiles, layer)
	l := layer
	w.push(Command{Op: OpTiles, Tiles: &l})
}

func (w *Widget) AddMarker(m *mapview.Marker) {
	w.state.Markers = append(w.state.Markers, m)
	w.push(Command{Op: OpAdd, Marker: m})
}

func (w *Widget) RemoveMarker(h mapview.Handle) {
	for i, m := range w.state.Markers {
		if m.Handle == h {
			w.state.Markers = append(w.state.Markers[:i], w.state.Markers[i+1:]...)
			break
		}
	}
	if w.state.Open == h {
		w.state.Open = ""
	}
	w.push(Command{Op: OpRemove, ID: h})
}

func (w *Widget) OpenPopup(h mapview.Handle) {
	w.state.Open = h
	w.push(Command{Op: OpOpen, ID: h})
}

func (w *Widget) push(c Command) {
	w.pending = append(w.pending, c)
}

// Flush returns the commands queued since the last Flush or Script
func (w *Widget) Flush() []Command {
	cmds := w.pending
	w.pending = nil
	return cmds
}

// Snapshot returns a copy of the current state
func (w *Widget) Snapshot() State {
	s := w.state
	s.Tiles = append([]mapview.TileLayer(nil), w.state.Tiles...)
	s.Markers = append([]*mapview.Marker(nil), w.state.Markers...)
	return s
}

// Script renders the page fragment that loads Leaflet and draws the current
// state. Queued commands are dropped since the state already contains them.
func (w *Widget) Script() (string, error) {
	b, err := json.Marshal(w.Snapshot())
	if err != nil {
		return "", fmt.Errorf("encode map state: %w", err)
	}
	w.pending = nil

	return fmt.Sprintf(`<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css" integrity="sha256-p4NxAoJBhIIN+hmNHrzRCf9tD/miZyoHS5obTRR9BMY=" crossorigin="">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js" integrity="sha256-20nQCchB9co0qIjJZRGuk2/Z9VM+kNiyxNV/XN/WPeE=" crossorigin=""></script>
<script src="/wildmap.js"></script>
<script>Wildmap.mount(%s);</script>`, b), nil
}
