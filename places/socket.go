package places

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"wildmap/app"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SocketHandler handles the live connection of a map page at
// /places/ws?session=<id>. The browser sends query, select and move events;
// the session answers with cards and widget updates.
func SocketHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := Get(r.URL.Query().Get("session"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.Log("places", "WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates := make(chan []Event, 32)
	var initial Event
	if err := s.Do(r.Context(), func() {
		s.subscribe(updates)
		initial = s.state()
	}); err != nil {
		return
	}
	s.attach()
	defer s.detach()
	defer s.Post(func() {
		if s.sub == updates {
			s.subscribe(nil)
		}
	})

	app.Log("places", "Session connected: %s", s.ID)

	quit := make(chan struct{})
	defer close(quit)

	incoming := make(chan ClientEvent)
	readErr := make(chan error, 1)
	go func() {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			s.touch()
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var ev ClientEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				ev = ClientEvent{Type: "invalid"}
			}
			select {
			case incoming <- ev:
			case <-quit:
				return
			}
		}
	}()

	write := func(events ...Event) error {
		for _, ev := range events {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(initial); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-incoming:
			var herr error
			if err := s.Do(r.Context(), func() { herr = s.handle(ev) }); err != nil {
				return
			}
			if herr != nil {
				if err := write(Event{Type: EventError, Error: herr.Error()}); err != nil {
					return
				}
			}
		case events := <-updates:
			if err := write(events...); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				app.Log("places", "Session %s read error: %v", s.ID, err)
			}
			return
		case <-s.done:
			return
		}
	}
}
