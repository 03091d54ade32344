package cards

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/mrz1836/go-sanitize"

	"wildmap/location"
)

const (
	noDescription = "No description available"
	noBrief       = "Brief info not available"
)

// Selector is what a card click drives
type Selector interface {
	OpenPopup(lat, lng float64) bool
}

// Strategy appends extra markup to a card after it is built
type Strategy func(c *Card) template.HTML

// Detailed appends an "Additional Info" block carrying the record's details
func Detailed(c *Card) template.HTML {
	return template.HTML(RenderHTML(TypeDetails, c))
}

// Card is one rendered record
type Card struct {
	ID          string
	Title       string
	Lat         float64
	Lng         float64
	Description string
	Brief       string
	Photo       string
	Image       string
	Link        string
	Details     string
	Extra       template.HTML

	onClick func() bool
}

func newCard(id string, r location.Record) *Card {
	c := &Card{
		ID:          id,
		Title:       r.Title,
		Lat:         r.Latitude,
		Lng:         r.Longitude,
		Description: r.Description,
		Brief:       r.Brief,
		Photo:       sanitize.URL(r.Photo),
		Image:       sanitize.URL(r.Image),
		Link:        sanitize.URL(r.Link),
		Details:     r.Details,
	}
	if c.Description == "" {
		c.Description = noDescription
	}
	if c.Brief == "" {
		c.Brief = noBrief
	}
	return c
}

// Click runs the card's click handler
func (c *Card) Click() bool {
	if c.onClick == nil {
		return false
	}
	return c.onClick()
}

// ErrNoContainer is returned when there is no card list to render into
var ErrNoContainer = errors.New("card container not found")

// Container is the card list element
type Container struct {
	id     string
	cards  []*Card
	html   []string
	notice string
}

// NewContainer returns an empty container for the element with the given id
func NewContainer(id string) (*Container, error) {
	if id == "" {
		return nil, ErrNoContainer
	}
	return &Container{id: id}, nil
}

// ID returns the element id
func (c *Container) ID() string { return c.id }

// Clear removes every card
func (c *Container) Clear() {
	c.cards = nil
	c.html = nil
}

// Append adds a built card
func (c *Container) Append(card *Card, html string) {
	c.cards = append(c.cards, card)
	c.html = append(c.html, html)
}

// Cards returns the cards in order
func (c *Container) Cards() []*Card {
	out := make([]*Card, len(c.cards))
	copy(out, c.cards)
	return out
}

// SetNotice sets a message shown above the cards, e.g. a load failure
func (c *Container) SetNotice(msg string) { c.notice = msg }

// Notice returns the current notice
func (c *Container) Notice() string { return c.notice }

// HTML returns the inner html of the container
func (c *Container) HTML() string {
	var b strings.Builder
	if c.notice != "" {
		b.WriteString(`<p class="notice text-error">` + template.HTMLEscapeString(c.notice) + `</p>`)
	}
	for _, h := range c.html {
		b.WriteString(h)
	}
	return b.String()
}

// Renderer rebuilds the container from a list of records
type Renderer struct {
	container *Container
	selector  Selector
	strategy  Strategy
	next      int
}

// Option configures a Renderer
type Option func(*Renderer)

// WithStrategy extends every card with s
func WithStrategy(s Strategy) Option {
	return func(r *Renderer) { r.strategy = s }
}

// NewRenderer returns a renderer drawing into c whose cards drive s
func NewRenderer(c *Container, s Selector, opts ...Option) *Renderer {
	r := &Renderer{container: c, selector: s}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render clears the container and builds one card per record, in order.
// Card ids are never reused, so a click on a discarded card finds nothing.
func (r *Renderer) Render(records []location.Record) {
	r.container.Clear()
	for _, rec := range records {
		r.next++
		card := newCard(fmt.Sprintf("%s-%d", r.container.id, r.next), rec)
		if r.strategy != nil {
			card.Extra = r.strategy(card)
		}
		lat, lng := card.Lat, card.Lng
		card.onClick = func() bool {
			return r.selector.OpenPopup(lat, lng)
		}
		r.container.Append(card, RenderHTML(TypeLocation, card))
	}
}

// Click clicks the card with the given id. It reports whether the card
// exists and its marker was found.
func (r *Renderer) Click(cardID string) bool {
	for _, c := range r.container.cards {
		if c.ID == cardID {
			return c.Click()
		}
	}
	return false
}

// Container returns the container being rendered into
func (r *Renderer) Container() *Container { return r.container }
