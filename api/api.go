package api

import (
	"fmt"
	"net/http"

	"wildmap/app"
)

type Endpoint struct {
	Name        string
	Path        string
	Method      string
	Params      []*Param
	Response    []*Value
	Description string
}

type Param struct {
	Name        string
	Value       string
	Description string
}

type Value struct {
	Type   string
	Params []*Param
}

var Endpoints = []*Endpoint{{
	Name:        "Locations",
	Path:        "/locations",
	Method:      "GET",
	Description: "List the locations shown as cards, optionally filtered",
	Params: []*Param{
		{
			Name:        "q",
			Value:       "string",
			Description: "Case-insensitive substring matched against title and description",
		},
	},
	Response: []*Value{
		{
			Type: "JSON",
			Params: []*Param{
				{
					Name:        "results",
					Value:       "array",
					Description: "Location records with title, latitude, longitude, descript, image, status, link, brief, photo",
				},
				{
					Name:        "count",
					Value:       "number",
					Description: "Number of results returned",
				},
				{
					Name:        "query",
					Value:       "string",
					Description: "The query used",
				},
			},
		},
	},
}, {
	Name:        "Markers",
	Path:        "/markers",
	Method:      "GET",
	Description: "List map markers",
	Params: []*Param{
		{
			Name:        "bbox",
			Value:       "string",
			Description: "Optional box as minLat,minLng,maxLat,maxLng",
		},
		{
			Name:        "session",
			Value:       "string",
			Description: "Optional map session id; without it the markers come straight from the marker source",
		},
	},
	Response: []*Value{
		{
			Type: "JSON",
			Params: []*Param{
				{
					Name:        "results",
					Value:       "array",
					Description: "Markers with id, lat, lng, title, variant, icon and popup",
				},
				{
					Name:        "count",
					Value:       "number",
					Description: "Number of results returned",
				},
			},
		},
	},
}, {
	Name:        "Move",
	Path:        "/places/move",
	Method:      "POST",
	Description: "Recenter a map session on a point and leave a single marker there",
	Params: []*Param{
		{
			Name:        "session",
			Value:       "string",
			Description: "Map session id",
		},
		{
			Name:        "lat",
			Value:       "number",
			Description: "Latitude",
		},
		{
			Name:        "lng",
			Value:       "number",
			Description: "Longitude",
		},
		{
			Name:        "message",
			Value:       "string",
			Description: "Popup text for the marker, defaults to the coordinates",
		},
		{
			Name:        "custom",
			Value:       "bool",
			Description: "Add a marker with its own icon and keep the existing markers and view",
		},
		{
			Name:        "icon",
			Value:       "string",
			Description: "Icon URL for a custom marker",
		},
	},
	Response: []*Value{
		{
			Type: "JSON",
			Params: []*Param{
				{
					Name:        "marker",
					Value:       "object",
					Description: "The placed marker",
				},
			},
		},
	},
}, {
	Name:        "Share",
	Path:        "/places/qr",
	Method:      "GET",
	Description: "QR code linking back to the map. The link is also returned in the X-Share-URL header.",
	Params: []*Param{
		{
			Name:        "session",
			Value:       "string",
			Description: "Map session id; its query and open popup are used",
		},
		{
			Name:        "lat, lng, q",
			Value:       "string",
			Description: "Used as given when there is no session",
		},
	},
	Response: []*Value{
		{
			Type: "PNG",
		},
	},
}, {
	Name:        "Status",
	Path:        "/status",
	Method:      "GET",
	Description: "Server health, recent fetches and logs",
	Response: []*Value{
		{
			Type: "JSON",
			Params: []*Param{
				{
					Name:        "healthy",
					Value:       "bool",
					Description: "False when the last fetch failed or the fetch history is unavailable",
				},
				{
					Name:        "fetches",
					Value:       "object",
					Description: "Totals and the most recent fetches",
				},
			},
		},
	},
}}

// Register an endpoint
func Register(ep *Endpoint) {
	Endpoints = append(Endpoints, ep)
}

// Markdown API document
func Markdown() string {
	var data string

	data += "# API Documentation\n\n"
	data += "Every endpoint answers JSON when sent `Accept: application/json` or `?format=json`.\n\n"
	data += "The map page talks to its session over a websocket at `/places/ws?session=ID`. "
	data += "It sends `query`, `select` and `move` events and receives `state`, `cards`, `widget` and `error` events.\n\n"
	data += "Tools are also available over the Model Context Protocol at `/mcp`.\n\n"
	data += "---\n\n"
	data += "## Endpoints\n\n"

	for _, endpoint := range Endpoints {
		data += "## " + endpoint.Name
		data += fmt.Sprintln()
		data += fmt.Sprintln()
		data += fmt.Sprintln(endpoint.Description)
		data += fmt.Sprintln()
		data += fmt.Sprintf("```%s %s```", endpoint.Method, endpoint.Path)
		data += fmt.Sprintln()

		if endpoint.Params != nil {
			data += fmt.Sprintln("#### Request")
			data += fmt.Sprintln()
			data += "| Field | Type | Description |"
			data += fmt.Sprintln()
			data += "| ----- | ---- | ----------- |"
			data += fmt.Sprintln()

			for _, param := range endpoint.Params {
				data += fmt.Sprintf("|	%s	|	%s	|	%s	|", param.Name, param.Value, param.Description)
				data += fmt.Sprintln()
			}
			data += fmt.Sprintln()
		}

		if endpoint.Response != nil {
			data += fmt.Sprintln("#### Response")
			data += fmt.Sprintln()
			for _, resp := range endpoint.Response {
				data += fmt.Sprintf("Format: %s", resp.Type)
				data += fmt.Sprintln()
				if len(resp.Params) == 0 {
					continue
				}
				data += fmt.Sprintln()
				data += "| Field | Type | Description |"
				data += fmt.Sprintln()
				data += "| ----- | ---- | ----------- |"
				data += fmt.Sprintln()
				for _, param := range resp.Params {
					data += fmt.Sprintf("|	%s	|	%s	|	%s	|", param.Name, param.Value, param.Description)
					data += fmt.Sprintln()
				}
			}
			data += fmt.Sprintln()
		}

		data += fmt.Sprintln()
	}

	return data
}

// Handler renders the API documentation at /api
func Handler(w http.ResponseWriter, r *http.Request) {
	if app.WantsJSON(r) {
		app.RespondJSON(w, Endpoints)
		return
	}
	app.Respond(w, r, app.Response{
		Title:       "API",
		Description: "Wildmap API documentation",
		HTML:        app.RenderString(Markdown()),
	})
}
