package app

import (
	"encoding/json"
	"net/http"
	"strings"
)

// WantsJSON reports whether the client asked for a JSON response
func WantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// SendsJSON reports whether the request body is JSON
func SendsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// Respond writes a full html page
func Respond(w http.ResponseWriter, r *http.Request, resp Response) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(RenderHTML(resp.Title, resp.Description, resp.HTML)))
}

// RespondJSON writes v as a JSON document
func RespondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Log("app", "json encode: %v", err)
	}
}

// RespondError writes a JSON error with the given status
func RespondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func respondStatus(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if WantsJSON(r) || SendsJSON(r) {
		RespondError(w, status, msg)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(RenderHTML(http.StatusText(status), msg, Empty(msg))))
}

// BadRequest responds with 400
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	respondStatus(w, r, http.StatusBadRequest, msg)
}

// ServerError responds with 500
func ServerError(w http.ResponseWriter, r *http.Request, msg string) {
	respondStatus(w, r, http.StatusInternalServerError, msg)
}

// MethodNotAllowed responds with 405
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondStatus(w, r, http.StatusMethodNotAllowed, "Method not allowed")
}
