package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"wildmap/app"
)

// MCP protocol version
const MCPVersion = "2025-03-26"

// JSON-RPC types
type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCP types
type mcpInitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      mcpClientInfo  `json:"clientInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

type mcpClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type mcpInitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ServerInfo      mcpServerInfo   `json:"serverInfo"`
	Capabilities    mcpCapabilities `json:"capabilities"`
}

type mcpServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type mcpCapabilities struct {
	Tools *mcpToolCapability `json:"tools,omitempty"`
}

type mcpToolCapability struct{}

type mcpToolsListResult struct {
	Tools []mcpTool `json:"tools"`
}

type mcpTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema mcpInputSchema `json:"inputSchema"`
}

type mcpInputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]mcpProperty `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

type mcpProperty struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type mcpToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type mcpToolResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Tool defines an MCP tool with its HTTP mapping. A tool with Handle set is
// answered directly instead of through Mux.
type Tool struct {
	Name        string
	Description string
	Method      string
	Path        string
	Params      []ToolParam
	Handle      func(args map[string]any) (string, error)
}

// ToolParam defines a parameter for an MCP tool
type ToolParam struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Mux serves the HTTP requests tools are mapped to
var Mux http.Handler = http.DefaultServeMux

// tools is the list of MCP tools derived from API endpoints
var tools = []Tool{
	{
		Name:        "search_locations",
		Description: "List wildlife locations, optionally filtered by a case-insensitive query on title and description",
		Method:      "GET",
		Path:        "/locations",
		Params: []ToolParam{
			{Name: "q", Type: "string", Description: "Search query", Required: false},
		},
	},
	{
		Name:        "list_markers",
		Description: "List map markers, optionally within a bounding box",
		Method:      "GET",
		Path:        "/markers",
		Params: []ToolParam{
			{Name: "bbox", Type: "string", Description: "minLat,minLng,maxLat,maxLng", Required: false},
			{Name: "session", Type: "string", Description: "Map session id", Required: false},
		},
	},
	{
		Name:        "move_map",
		Description: "Recenter an open map on a point and leave a single marker there, or add a custom marker without clearing the map",
		Method:      "POST",
		Path:        "/places/move",
		Params: []ToolParam{
			{Name: "session", Type: "string", Description: "Map session id", Required: true},
			{Name: "lat", Type: "number", Description: "Latitude", Required: true},
			{Name: "lng", Type: "number", Description: "Longitude", Required: true},
			{Name: "message", Type: "string", Description: "Popup text", Required: false},
			{Name: "custom", Type: "boolean", Description: "Add a custom marker and keep the existing ones", Required: false},
			{Name: "icon", Type: "string", Description: "Icon URL for a custom marker", Required: false},
		},
	},
	{
		Name:        "status",
		Description: "Server health and recent fetches",
		Method:      "GET",
		Path:        "/status",
	},
}

// RegisterTool adds a tool
func RegisterTool(t Tool) {
	tools = append(tools, t)
}

// mcpPostHandler handles JSON-RPC requests
func mcpPostHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, nil, -32700, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req jsonrpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, -32700, "Parse error")
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch req.Method {
	case "initialize":
		handleInitialize(w, req)
	case "notifications/initialized":
		// Client acknowledgement, no response needed
		w.WriteHeader(http.StatusNoContent)
	case "tools/list":
		handleToolsList(w, req)
	case "tools/call":
		handleToolsCall(w, r, req)
	case "ping":
		writeResult(w, req.ID, map[string]any{})
	default:
		writeError(w, req.ID, -32601, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func handleInitialize(w http.ResponseWriter, req jsonrpcRequest) {
	result := mcpInitializeResult{
		ProtocolVersion: MCPVersion,
		ServerInfo: mcpServerInfo{
			Name:    "wildmap",
			Version: "1.0.0",
		},
		Capabilities: mcpCapabilities{
			Tools: &mcpToolCapability{},
		},
	}
	writeResult(w, req.ID, result)
}

func handleToolsList(w http.ResponseWriter, req jsonrpcRequest) {
	mcpTools := make([]mcpTool, 0, len(tools))
	for _, t := range tools {
		tool := mcpTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: mcpInputSchema{
				Type:       "object",
				Properties: make(map[string]mcpProperty),
			},
		}
		var required []string
		for _, p := range t.Params {
			tool.InputSchema.Properties[p.Name] = mcpProperty{
				Type:        p.Type,
				Description: p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		if len(required) > 0 {
			tool.InputSchema.Required = required
		}
		mcpTools = append(mcpTools, tool)
	}
	writeResult(w, req.ID, mcpToolsListResult{Tools: mcpTools})
}

func handleToolsCall(w http.ResponseWriter, originalReq *http.Request, req jsonrpcRequest) {
	var params mcpToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, req.ID, -32602, "Invalid params")
		return
	}

	// Find the tool
	var tool *Tool
	for i := range tools {
		if tools[i].Name == params.Name {
			tool = &tools[i]
			break
		}
	}
	if tool == nil {
		writeError(w, req.ID, -32602, fmt.Sprintf("Unknown tool: %s", params.Name))
		return
	}

	if tool.Handle != nil {
		text, err := tool.Handle(params.Arguments)
		result := mcpToolResult{Content: []mcpContent{{Type: "text", Text: text}}}
		if err != nil {
			app.Log("api", "tool %s: %v", tool.Name, err)
			result.IsError = true
		}
		writeResult(w, req.ID, result)
		return
	}

	// Build the internal HTTP request
	path := tool.Path
	var bodyReader io.Reader

	if tool.Method == "GET" {
		// Add params as query string
		query := url.Values{}
		for k, v := range params.Arguments {
			query.Set(k, fmt.Sprintf("%v", v))
		}
		if len(query) > 0 {
			path += "?" + query.Encode()
		}
	} else {
		// POST: send params as JSON body
		bodyJSON, _ := json.Marshal(params.Arguments)
		bodyReader = strings.NewReader(string(bodyJSON))
	}

	internalReq, err := http.NewRequestWithContext(originalReq.Context(), tool.Method, path, bodyReader)
	if err != nil {
		writeError(w, req.ID, -32603, "Failed to create request")
		return
	}

	// Set JSON headers
	internalReq.Header.Set("Accept", "application/json")
	internalReq.Header.Set("Content-Type", "application/json")
	internalReq.Host = originalReq.Host

	recorder := httptest.NewRecorder()
	Mux.ServeHTTP(recorder, internalReq)

	result := mcpToolResult{
		Content: []mcpContent{{
			Type: "text",
			Text: recorder.Body.String(),
		}},
	}
	if recorder.Code >= 400 {
		result.IsError = true
	}
	writeResult(w, req.ID, result)
}

func writeResult(w http.ResponseWriter, id any, result any) {
	json.NewEncoder(w).Encode(jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func writeError(w http.ResponseWriter, id any, code int, message string) {
	json.NewEncoder(w).Encode(jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}
