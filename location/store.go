package location

import (
	"context"

	"wildmap/app"
)

// Renderer receives the filtered list every time it changes
type Renderer interface {
	Render(records []Record)
}

// Store holds the full list of records and the subset matching the current
// query. It is not safe for concurrent use; a Store belongs to one session
// and is only touched from that session's goroutine.
type Store struct {
	all      []Record
	filtered []Record
	query    string
	err      error
	renderer Renderer
}

// NewStore returns an empty store rendering into r
func NewStore(r Renderer) *Store {
	return &Store{renderer: r}
}

// FetchAll loads every record from src. On failure the error is logged, both
// lists are left empty and the empty list is rendered.
func (s *Store) FetchAll(ctx context.Context, src Source) error {
	records, err := src.Fetch(ctx)
	if err != nil {
		s.Fail(err)
		return err
	}
	s.Load(records)
	return nil
}

// Load replaces the record list with records, resets the query and renders
// the full list.
func (s *Store) Load(records []Record) {
	s.all = records
	s.filtered = records
	s.query = ""
	s.err = nil
	s.render()
}

// Fail records a failed fetch
func (s *Store) Fail(err error) {
	app.Log("location", "Error loading location data: %v", err)
	s.all = nil
	s.filtered = nil
	s.err = err
	s.render()
}

// SetQuery recomputes the filtered list for query and renders it
func (s *Store) SetQuery(query string) {
	s.query = query
	s.filtered = Filter(s.all, query)
	s.render()
}

func (s *Store) render() {
	if s.renderer != nil {
		s.renderer.Render(s.filtered)
	}
}

// All returns the full record list
func (s *Store) All() []Record { return s.all }

// Filtered returns the records matching the current query
func (s *Store) Filtered() []Record { return s.filtered }

// Query returns the current query
func (s *Store) Query() string { return s.query }

// Err returns the error from the last failed fetch, if any
func (s *Store) Err() error { return s.err }
