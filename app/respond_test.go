package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		accept string
		want   bool
	}{
		{"browser", "/", "text/html", false},
		{"accept header", "/", "application/json", true},
		{"format param", "/?format=json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			req.Header.Set("Accept", tt.accept)
			if got := WantsJSON(req); got != tt.want {
				t.Errorf("WantsJSON = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	w := httptest.NewRecorder()
	RespondError(w, http.StatusNotFound, "Session not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["error"] != "Session not found" {
		t.Errorf("Unexpected body: %v", body)
	}
}

func TestBadRequestHTML(t *testing.T) {
	req := httptest.NewRequest("GET", "/markers", nil)
	w := httptest.NewRecorder()
	BadRequest(w, req, "bad <bbox>")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bad &lt;bbox&gt;") {
		t.Error("Expected the escaped message in the page")
	}
}

func TestRoute(t *testing.T) {
	h := Route(RouteOpts{
		JSON:    func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("json")) },
		HTML:    func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("html")) },
		Methods: []string{"POST"},
	})

	req := httptest.NewRequest("GET", "/places/move", nil)
	w := httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/places/move", nil)
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	h(w, req)
	if w.Body.String() != "json" {
		t.Errorf("Expected the JSON handler, got %q", w.Body.String())
	}

	req = httptest.NewRequest("POST", "/places/move", nil)
	w = httptest.NewRecorder()
	h(w, req)
	if w.Body.String() != "html" {
		t.Errorf("Expected the HTML handler, got %q", w.Body.String())
	}
}

func TestSearchBarEscapes(t *testing.T) {
	html := SearchBar("/", "searchLocation", "Search", `"><script>`)
	if strings.Contains(html, "<script>") {
		t.Error("Expected the query to be escaped")
	}
	if !strings.Contains(html, `id="searchLocation"`) {
		t.Error("Expected the input id")
	}
}
