package mapview

import (
	"fmt"
	"html"
	"strings"

	"github.com/mrz1836/go-sanitize"
)

// popupHTML builds the popup shown for a location marker
func popupHTML(m *Marker) string {
	var b strings.Builder
	b.WriteString(`<div class="popup-content">`)
	b.WriteString(`<h3>` + html.EscapeString(m.Title) + `</h3>`)
	if img := sanitize.URL(m.Image); img != "" {
		b.WriteString(`<img src="` + html.EscapeString(img) + `" class="popup-img" alt="` + html.EscapeString(m.Title) + `">`)
	}
	b.WriteString(`<p><strong>Description:</strong> ` + html.EscapeString(m.Description) + `</p>`)
	b.WriteString(`<p><strong>Conservation Status:</strong> ` + html.EscapeString(m.Status) + `</p>`)
	b.WriteString(fmt.Sprintf(`<p><strong>Longitude:</strong> %s <strong>Latitude:</strong> %s</p>`,
		formatCoord(m.Lng), formatCoord(m.Lat)))
	if link := sanitize.URL(m.Link); link != "" {
		b.WriteString(`<a href="` + html.EscapeString(link) + `" target="_blank" rel="noopener">Learn more</a>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

// messagePopupHTML is the popup for a marker placed with a plain message
func messagePopupHTML(message string) string {
	return html.EscapeString(message)
}

func formatCoord(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}
