// Package cards renders location records as clickable cards. Each card, when
// clicked, asks the map to open the popup at the card's coordinates.
package cards

import (
	"embed"
	"html/template"
	"strings"
	"sync"

	"wildmap/app"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	templates     map[string]*template.Template
	templatesOnce sync.Once
)

// Card templates
const (
	TypeLocation = "location"
	TypeDetails  = "details"
)

// loadTemplates loads all card templates from embedded files
func loadTemplates() {
	templates = make(map[string]*template.Template)

	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		app.Log("cards", "read templates: %v", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".html")
		content, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			continue
		}

		tmpl, err := template.New(name).Parse(string(content))
		if err != nil {
			app.Log("cards", "parse template %s: %v", name, err)
			continue
		}

		templates[name] = tmpl
	}
}

// RenderHTML renders a card template with the given data
func RenderHTML(cardType string, data any) string {
	templatesOnce.Do(loadTemplates)

	tmpl, ok := templates[cardType]
	if !ok {
		return "<!-- unknown card type: " + cardType + " -->"
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		app.Log("cards", "render %s: %v", cardType, err)
		return "<!-- render error -->"
	}

	return buf.String()
}
