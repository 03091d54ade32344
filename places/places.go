// Package places serves the map page. Every page load opens a Session that
// owns the map, the location list and the cards, and the page keeps talking
// to it over a websocket.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"wildmap/app"
	"wildmap/leaflet"
	"wildmap/location"
	"wildmap/mapview"
)

// sessions not used for this long are closed
const sessionTTL = 30 * time.Minute

var (
	mutex    sync.RWMutex
	sessions = map[string]*Session{}

	config           = app.DefaultMapConfig()
	locationSource   location.Source
	markerSource     location.Source
	janitorStartOnce sync.Once
)

// Load configures the places package and starts the session janitor
func Load(cfg app.MapConfig, locations, markers location.Source) {
	mutex.Lock()
	config = cfg
	locationSource = locations
	markerSource = markers
	mutex.Unlock()

	janitorStartOnce.Do(func() { go janitor() })
	app.Log("places", "Places loaded: locations from %s, markers from %s", locations, markers)
}

func sources() (app.MapConfig, location.Source, location.Source) {
	mutex.RLock()
	defer mutex.RUnlock()
	return config, locationSource, markerSource
}

func janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		expireSessions(sessionTTL)
	}
}

// expireSessions closes and forgets sessions idle for longer than ttl.
// Sessions with a connected page are kept however long it stays quiet.
func expireSessions(ttl time.Duration) int {
	mutex.Lock()
	defer mutex.Unlock()

	n := 0
	for id, s := range sessions {
		if s.Closed() || (!s.Attached() && s.Idle() > ttl) {
			s.Close()
			delete(sessions, id)
			n++
		}
	}
	if n > 0 {
		app.Log("places", "Expired %d sessions (%d open)", n, len(sessions))
	}
	return n
}

// Open creates and loads a session and makes it reachable by id
func Open(ctx context.Context) (*Session, error) {
	cfg, locations, markers := sources()
	if locations == nil || markers == nil {
		return nil, fmt.Errorf("places not loaded")
	}

	s, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx, locations, markers); err != nil {
		app.Log("places", "session %s: %v", s.ID, err)
	}

	mutex.Lock()
	sessions[s.ID] = s
	mutex.Unlock()
	return s, nil
}

// Get returns the open session with the given id
func Get(id string) (*Session, bool) {
	mutex.RLock()
	defer mutex.RUnlock()
	s, ok := sessions[id]
	if !ok || s.Closed() {
		return nil, false
	}
	return s, true
}

// Handler serves the map page at /
func Handler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s, err := Open(r.Context())
	if err != nil {
		app.Log("places", "Open session: %v", err)
		app.ServerError(w, r, "Could not open the map.")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	lat, lng, hasPoint := parsePoint(r.URL.Query())

	var body string
	var renderErr error
	err = s.Do(r.Context(), func() {
		if q != "" {
			s.Store.SetQuery(q)
		}
		if hasPoint {
			s.Map.OpenPopup(lat, lng)
		}
		body, renderErr = renderPage(s, q)
		s.dirty = false
	})
	if err == nil {
		err = renderErr
	}
	if err != nil {
		app.Log("places", "Render page: %v", err)
		app.ServerError(w, r, "Could not render the map.")
		return
	}

	app.Respond(w, r, app.Response{
		Title:       "Map",
		Description: "Wildlife locations on a map",
		HTML:        body,
	})
}

// renderPage renders the search bar, the map and the card list. Must run on
// the session goroutine.
func renderPage(s *Session, q string) (string, error) {
	cfg, _, _ := sources()

	script, err := s.Widget.Script()
	if err != nil {
		return "", err
	}

	socket, _ := json.Marshal("/places/ws?session=" + url.QueryEscape(s.ID))
	search, _ := json.Marshal(cfg.SearchID)
	list, _ := json.Marshal(cfg.CardsID)

	var b strings.Builder
	b.WriteString(`<div class="places-page">`)
	b.WriteString(app.SearchBar("/", cfg.SearchID, "Search locations", q))
	fmt.Fprintf(&b, `<div id="%s" class="map"></div>`, cfg.MapID)
	b.WriteString(app.ListID(cfg.CardsID, s.Cards.Container().HTML()))
	fmt.Fprintf(&b, `<p class="share"><a href="/places/qr?session=%s">Share</a></p>`, url.QueryEscape(s.ID))
	b.WriteString(`</div>`)
	b.WriteString(script)
	fmt.Fprintf(&b, "\n<script>Wildmap.connect(%s, %s, %s);</script>", socket, search, list)
	return b.String(), nil
}

// LocationsHandler serves GET /locations?q= as JSON
func LocationsHandler(w http.ResponseWriter, r *http.Request) {
	_, locations, _ := sources()
	if locations == nil {
		app.ServerError(w, r, "Locations not loaded")
		return
	}

	records, err := locations.Fetch(r.Context())
	if err != nil {
		app.Log("places", "Error loading location data: %v", err)
		app.RespondError(w, http.StatusBadGateway, "Error loading location data")
		return
	}

	q := r.URL.Query().Get("q")
	results := location.Filter(records, q)
	if results == nil {
		results = []location.Record{}
	}
	app.RespondJSON(w, map[string]interface{}{
		"results": results,
		"count":   len(results),
		"query":   q,
	})
}

// MarkersHandler serves GET /markers as JSON. With ?session= it lists the
// markers of that session, otherwise those loaded from the marker source.
// ?bbox=minLat,minLng,maxLat,maxLng limits the result to a box.
func MarkersHandler(w http.ResponseWriter, r *http.Request) {
	var sw, ne mapview.LatLng
	bbox := r.URL.Query().Get("bbox")
	if bbox != "" {
		var err error
		sw, ne, err = parseBBox(bbox)
		if err != nil {
			app.BadRequest(w, r, err.Error())
			return
		}
	}

	list := func(m *mapview.Map) []*mapview.Marker {
		if bbox == "" {
			return m.Markers()
		}
		return m.Within(sw, ne)
	}

	var results []*mapview.Marker
	if id := r.URL.Query().Get("session"); id != "" {
		s, ok := Get(id)
		if !ok {
			app.RespondError(w, http.StatusNotFound, "Session not found")
			return
		}
		if err := s.Do(r.Context(), func() { results = list(s.Map) }); err != nil {
			app.ServerError(w, r, err.Error())
			return
		}
	} else {
		cfg, _, markers := sources()
		if markers == nil {
			app.ServerError(w, r, "Markers not loaded")
			return
		}
		m, err := mapview.New(leaflet.New(), cfg.MapID, mapview.LatLng{Lat: cfg.Center[0], Lng: cfg.Center[1]}, cfg.Zoom, mapview.Options{})
		if err != nil {
			app.ServerError(w, r, err.Error())
			return
		}
		if err := m.LoadMarkersFromSource(r.Context(), markers); err != nil {
			app.RespondError(w, http.StatusBadGateway, "Error loading markers")
			return
		}
		results = list(m)
	}

	if results == nil {
		results = []*mapview.Marker{}
	}
	app.RespondJSON(w, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// MoveHandler serves POST /places/move. It recenters a session's map on a
// point and leaves a single marker there, or with custom=true adds a marker
// with the given icon and leaves the rest of the map alone.
func MoveHandler(w http.ResponseWriter, r *http.Request) {
	var ev ClientEvent
	var id string

	if app.SendsJSON(r) {
		var req struct {
			Session string `json:"session"`
			ClientEvent
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			app.BadRequest(w, r, "Invalid JSON")
			return
		}
		id, ev = req.Session, req.ClientEvent
	} else {
		if err := r.ParseForm(); err != nil {
			app.BadRequest(w, r, "Invalid form")
			return
		}
		id = r.Form.Get("session")
		lat, lng, ok := parsePoint(r.Form)
		if !ok {
			app.BadRequest(w, r, "Please provide valid lat and lng.")
			return
		}
		custom, _ := strconv.ParseBool(r.Form.Get("custom"))
		ev = ClientEvent{
			Lat:     lat,
			Lng:     lng,
			Message: r.Form.Get("message"),
			Custom:  custom,
			Icon:    r.Form.Get("icon"),
		}
	}
	ev.Type = EventMove

	s, ok := Get(id)
	if !ok {
		app.RespondError(w, http.StatusNotFound, "Session not found")
		return
	}

	var marker *mapview.Marker
	var herr error
	err := s.Do(r.Context(), func() {
		herr = s.handle(ev)
		// the marker just placed is always the last one
		if ms := s.Map.Markers(); len(ms) > 0 {
			marker = ms[len(ms)-1]
		}
	})
	if err == nil {
		err = herr
	}
	if err != nil {
		app.ServerError(w, r, err.Error())
		return
	}

	if app.WantsJSON(r) || app.SendsJSON(r) {
		app.RespondJSON(w, map[string]interface{}{"marker": marker})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// parsePoint reads lat and lng from v
func parsePoint(v url.Values) (float64, float64, bool) {
	latStr, lngStr := v.Get("lat"), v.Get("lng")
	if latStr == "" || lngStr == "" {
		return 0, 0, false
	}
	lat, latErr := strconv.ParseFloat(latStr, 64)
	lng, lngErr := strconv.ParseFloat(lngStr, 64)
	if latErr != nil || lngErr != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// parseBBox parses minLat,minLng,maxLat,maxLng
func parseBBox(s string) (mapview.LatLng, mapview.LatLng, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return mapview.LatLng{}, mapview.LatLng{}, fmt.Errorf("bbox must be minLat,minLng,maxLat,maxLng")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return mapview.LatLng{}, mapview.LatLng{}, fmt.Errorf("invalid bbox value %q", p)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return mapview.LatLng{}, mapview.LatLng{}, fmt.Errorf("bbox minimum exceeds maximum")
	}
	return mapview.LatLng{Lat: v[0], Lng: v[1]}, mapview.LatLng{Lat: v[2], Lng: v[3]}, nil
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Count returns the number of open sessions
func Count() int {
	mutex.RLock()
	defer mutex.RUnlock()
	return len(sessions)
}

// Shutdown closes every open session
func Shutdown() {
	mutex.Lock()
	defer mutex.Unlock()
	for id, s := range sessions {
		s.Close()
		delete(sessions, id)
	}
}
