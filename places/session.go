package places

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"wildmap/app"
	"wildmap/cards"
	"wildmap/leaflet"
	"wildmap/location"
	"wildmap/mapview"
)

// ErrClosed is returned when work is posted to a closed session
var ErrClosed = errors.New("session closed")

// loadNotice is shown above the card list when the location fetch failed
const loadNotice = "Error loading location data"

// Session is one open map page: a map, a store and the cards rendered from
// it. Only the session goroutine touches them; everything else goes through
// Post or Do.
type Session struct {
	ID string

	Map    *mapview.Map
	Store  *location.Store
	Cards  *cards.Renderer
	Widget *leaflet.Widget

	posts    chan func()
	done     chan struct{}
	once     sync.Once
	lastSeen atomic.Int64
	sockets  atomic.Int32

	// owned by the session goroutine
	dirty bool
	sub   chan []Event
}

// renderTracker marks the session dirty when the card list is redrawn
type renderTracker struct {
	s *Session
}

func (t renderTracker) Render(records []location.Record) {
	t.s.Cards.Render(records)
	t.s.dirty = true
}

// NewSession builds the map, store and card list described by cfg and starts
// the session goroutine.
func NewSession(cfg app.MapConfig) (*Session, error) {
	w := leaflet.New()

	opts := mapview.Options{
		Tiles: mapview.TileLayer{
			URL:         cfg.Tiles.URL,
			MaxZoom:     cfg.Tiles.MaxZoom,
			Attribution: cfg.Tiles.Attribution,
		},
		PopupZoom: cfg.PopupZoom,
	}
	if cfg.Icon.URL != "" {
		opts.Icon = &mapview.Icon{
			URL:         cfg.Icon.URL,
			Size:        cfg.Icon.Size,
			Anchor:      cfg.Icon.Anchor,
			PopupAnchor: cfg.Icon.PopupAnchor,
		}
	}

	center := mapview.LatLng{Lat: cfg.Center[0], Lng: cfg.Center[1]}
	m, err := mapview.New(w, cfg.MapID, center, cfg.Zoom, opts)
	if err != nil {
		return nil, err
	}

	container, err := cards.NewContainer(cfg.CardsID)
	if err != nil {
		return nil, err
	}
	var cardOpts []cards.Option
	if cfg.Detailed {
		cardOpts = append(cardOpts, cards.WithStrategy(cards.Detailed))
	}

	s := &Session{
		ID:     uuid.New().String(),
		Map:    m,
		Cards:  cards.NewRenderer(container, m, cardOpts...),
		Widget: w,
		posts:  make(chan func(), 16),
		done:   make(chan struct{}),
	}
	s.Store = location.NewStore(renderTracker{s})
	s.touch()

	go s.run()
	return s, nil
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.posts:
			fn()
		case <-s.done:
			return
		}
	}
}

// Post queues fn to run on the session goroutine. It reports false if the
// session is closed.
func (s *Session) Post(fn func()) bool {
	if s.Closed() {
		return false
	}
	select {
	case s.posts <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Do runs fn on the session goroutine and waits for it to finish
func (s *Session) Do(ctx context.Context, fn func()) error {
	s.touch()
	finished := make(chan struct{})
	if !s.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the session goroutine
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

// Closed reports whether Close has been called
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// Idle returns how long since the session was last used
func (s *Session) Idle() time.Duration {
	return time.Since(time.Unix(0, s.lastSeen.Load()))
}

func (s *Session) attach() {
	s.sockets.Add(1)
	s.touch()
}

// detach restarts the idle clock from the moment the page went away
func (s *Session) detach() {
	s.sockets.Add(-1)
	s.touch()
}

// Attached reports whether a page is connected to the session
func (s *Session) Attached() bool {
	return s.sockets.Load() > 0
}

// fetched replays the outcome of a fetch made off the session goroutine
type fetched struct {
	src     location.Source
	records []location.Record
	err     error
}

func (f fetched) Fetch(ctx context.Context) ([]location.Record, error) { return f.records, f.err }
func (f fetched) String() string                                      { return f.src.String() }

// Load fetches the card list and the markers concurrently. The fetches are
// independent: a failure of one leaves the other alone. Results are applied
// on the session goroutine before Load returns. The returned error joins
// both failures and is only for logging.
func (s *Session) Load(ctx context.Context, locations, markers location.Source) error {
	var g errgroup.Group
	var locErr, markErr error

	g.Go(func() error {
		records, err := locations.Fetch(ctx)
		f := fetched{src: locations, records: records, err: err}
		locErr = s.Do(ctx, func() {
			if s.Store.FetchAll(ctx, f) != nil {
				s.Cards.Container().SetNotice(loadNotice)
			} else {
				s.Cards.Container().SetNotice("")
			}
		})
		if locErr == nil {
			locErr = err
		}
		return nil
	})

	g.Go(func() error {
		records, err := markers.Fetch(ctx)
		f := fetched{src: markers, records: records, err: err}
		markErr = s.Do(ctx, func() {
			s.Map.LoadMarkersFromSource(ctx, f)
		})
		if markErr == nil {
			markErr = err
		}
		return nil
	})

	g.Wait()

	if locErr != nil {
		locErr = fmt.Errorf("locations from %s: %w", locations, locErr)
	}
	if markErr != nil {
		markErr = fmt.Errorf("markers from %s: %w", markers, markErr)
	}
	return errors.Join(locErr, markErr)
}

// subscribe routes every later update of the session to ch, replacing any
// earlier subscriber. Pass nil to unsubscribe. Must run on the session
// goroutine.
func (s *Session) subscribe(ch chan []Event) {
	s.sub = ch
}

// pending collects the queued widget commands and, if the card list changed,
// its new html. Must run on the session goroutine.
func (s *Session) pending() []Event {
	var events []Event
	if s.dirty {
		events = append(events, Event{Type: EventCards, HTML: s.Cards.Container().HTML()})
		s.dirty = false
	}
	if cmds := s.Widget.Flush(); len(cmds) > 0 {
		events = append(events, Event{Type: EventWidget, Commands: cmds})
	}
	return events
}

// publish sends pending updates to the subscriber. With no subscriber, or
// one that is not keeping up, they are dropped; a reconnecting client
// receives the full state instead. Must run on the session goroutine.
func (s *Session) publish() {
	events := s.pending()
	if len(events) == 0 || s.sub == nil {
		return
	}
	select {
	case s.sub <- events:
	default:
		app.Log("places", "session %s: dropped %d updates", s.ID, len(events))
	}
}

// state is the full picture sent when a socket connects. Must run on the
// session goroutine.
func (s *Session) state() Event {
	s.pending()
	snap := s.Widget.Snapshot()
	return Event{
		Type:  EventState,
		State: &snap,
		HTML:  s.Cards.Container().HTML(),
		Query: s.Store.Query(),
	}
}
