package places

import (
	"fmt"

	"wildmap/leaflet"
)

// Event types sent by the browser
const (
	EventQuery  = "query"
	EventSelect = "select"
	EventMove   = "move"
)

// Event types sent to the browser
const (
	EventCards  = "cards"
	EventWidget = "widget"
	EventState  = "state"
	EventError  = "error"
)

// ClientEvent is a message from the page
type ClientEvent struct {
	Type string `json:"type"`
	// query
	Query string `json:"q,omitempty"`
	// select
	Card string `json:"card,omitempty"`
	// move; a custom move adds a marker with its own icon and keeps the
	// others and the camera as they are
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
	Message string  `json:"message,omitempty"`
	Custom  bool    `json:"custom,omitempty"`
	Icon    string  `json:"icon,omitempty"`
}

// Event is a message to the page
type Event struct {
	Type     string            `json:"type"`
	HTML     string            `json:"html,omitempty"`
	Query    string            `json:"q,omitempty"`
	Commands []leaflet.Command `json:"commands,omitempty"`
	State    *leaflet.State    `json:"state,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// handle applies a client event and publishes the result. Must run on the
// session goroutine.
func (s *Session) handle(ev ClientEvent) error {
	defer s.publish()

	switch ev.Type {
	case EventQuery:
		s.Store.SetQuery(ev.Query)
	case EventSelect:
		// a card from an older render, or one without a marker, does nothing
		s.Cards.Click(ev.Card)
	case EventMove:
		msg := ev.Message
		if msg == "" {
			msg = fmt.Sprintf("%s, %s", trimFloat(ev.Lat), trimFloat(ev.Lng))
		}
		if ev.Custom {
			s.Map.AddCustomMarker(ev.Lat, ev.Lng, msg, ev.Icon)
		} else {
			s.Map.MoveToLocation(ev.Lat, ev.Lng, msg)
		}
	default:
		return fmt.Errorf("unknown event %q", ev.Type)
	}
	return nil
}
