package app

import (
	"html"
	"strings"
)

// UI layout helpers for consistent rendering.
// Use these wrappers + wildmap.css classes.

// SearchBar renders a search form whose text input carries the given id so
// the client can listen for input events on it.
func SearchBar(action, inputID, placeholder, query string) string {
	var b strings.Builder
	b.WriteString(`<form class="search-bar" action="`)
	b.WriteString(action)
	b.WriteString(`" method="GET"><input type="text" name="q" id="`)
	b.WriteString(html.EscapeString(inputID))
	b.WriteString(`" autocomplete="off" placeholder="`)
	b.WriteString(html.EscapeString(placeholder))
	b.WriteString(`" value="`)
	b.WriteString(html.EscapeString(query))
	b.WriteString(`"><noscript><button type="submit">Search</button></noscript></form>`)
	return b.String()
}

// ListID wraps content in a card-list container with an id
func ListID(id, content string) string {
	return `<div class="card-list" id="` + html.EscapeString(id) + `">` + content + `</div>`
}

// Empty renders an empty state message
func Empty(message string) string {
	return `<p class="empty">` + html.EscapeString(message) + `</p>`
}

// Notice renders a visible error banner
func Notice(message string) string {
	return `<p class="notice text-error">` + html.EscapeString(message) + `</p>`
}

// CardDiv wraps content in a card container
func CardDiv(content string) string {
	return `<div class="card">` + content + `</div>`
}

// Meta renders metadata text
func Meta(content string) string {
	return `<div class="card-meta">` + content + `</div>`
}
