package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMCPHandler_GETReturnsPage(t *testing.T) {
	req := httptest.NewRequest("GET", "/mcp", nil)
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "MCP") {
		t.Error("Expected MCP page content in GET response")
	}
	if !strings.Contains(body, "tools/list") {
		t.Error("Expected tools/list example in MCP page")
	}
}

func TestMCPHandler_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest("DELETE", "/mcp", nil)
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}

	var resp jsonrpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil {
		t.Fatal("Expected error response")
	}
}

func TestMCPHandler_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/mcp", strings.NewReader("not json"))
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	var resp jsonrpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil {
		t.Fatal("Expected error response")
	}
	if resp.Error.Code != -32700 {
		t.Errorf("Expected parse error code -32700, got %d", resp.Error.Code)
	}
}

func TestMCPHandler_Initialize(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"test","version":"1.0"},"capabilities":{}}}`
	req := httptest.NewRequest("POST", "/api/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	var resp jsonrpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %s", resp.Error.Message)
	}
	if resp.ID != float64(1) {
		t.Errorf("Expected ID 1, got %v", resp.ID)
	}

	// Check result fields
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatal("Expected result to be an object")
	}
	if result["protocolVersion"] != MCPVersion {
		t.Errorf("Expected protocol version %s, got %v", MCPVersion, result["protocolVersion"])
	}
	serverInfo, ok := result["serverInfo"].(map[string]any)
	if !ok {
		t.Fatal("Expected serverInfo to be an object")
	}
	if serverInfo["name"] != "wildmap" {
		t.Errorf("Expected server name 'wildmap', got %v", serverInfo["name"])
	}
}

func TestMCPHandler_ToolsList(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`
	req := httptest.NewRequest("POST", "/api/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	var resp jsonrpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %s", resp.Error.Message)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatal("Expected result to be an object")
	}
	toolsList, ok := result["tools"].([]any)
	if !ok {
		t.Fatal("Expected tools to be an array")
	}
	if len(toolsList) == 0 {
		t.Error("Expected at least one tool")
	}

	// Verify expected tools exist
	expectedTools := map[string]bool{
		"search_locations": false, "list_markers": false,
		"move_map": false, "status": false,
	}
	for _, item := range toolsList {
		tool, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := tool["name"].(string)
		if _, exists := expectedTools[name]; exists {
			expectedTools[name] = true
		}

		// Verify tool has required fields
		if _, ok := tool["description"]; !ok {
			t.Errorf("Tool %s missing description", name)
		}
		if _, ok := tool["inputSchema"]; !ok {
			t.Errorf("Tool %s missing inputSchema", name)
		}
	}
	for name, found := range expectedTools {
		if !found {
			t.Errorf("Expected tool %q not found in tools list", name)
		}
	}
}

func TestMCPHandler_ToolsCallUnknown(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"unknown_tool","arguments":{}}}`
	req := httptest.NewRequest("POST", "/api/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	var resp jsonrpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil {
		t.Fatal("Expected error for unknown tool")
	}
	if !strings.Contains(resp.Error.Message, "unknown_tool") {
		t.Errorf("Expected error to mention tool name, got: %s", resp.Error.Message)
	}
}

func TestMCPHandler_Ping(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":4,"method":"ping"}`
	req := httptest.NewRequest("POST", "/api/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	var resp jsonrpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %s", resp.Error.Message)
	}
	if resp.ID != float64(4) {
		t.Errorf("Expected ID 4, got %v", resp.ID)
	}
}

func TestMCPHandler_MethodNotFound(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":5,"method":"unknown/method"}`
	req := httptest.NewRequest("POST", "/api/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	var resp jsonrpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil {
		t.Fatal("Expected error for unknown method")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("Expected method not found code -32601, got %d", resp.Error.Code)
	}
}

func TestMCPHandler_ToolsCallInvalidParams(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":"invalid"}`
	req := httptest.NewRequest("POST", "/api/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	var resp jsonrpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Expected invalid params code -32602, got %d", resp.Error.Code)
	}
}

func TestMCPHandler_ToolsCallDispatches(t *testing.T) {
	var gotQuery, gotAccept string
	mux := http.NewServeMux()
	mux.HandleFunc("/locations", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":1}`))
	})
	orig := Mux
	Mux = mux
	defer func() { Mux = orig }()

	body := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"search_locations","arguments":{"q":"eagle"}}}`
	req := httptest.NewRequest("POST", "/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	if gotQuery != "eagle" {
		t.Errorf("Expected q forwarded as query string, got %q", gotQuery)
	}
	if gotAccept != "application/json" {
		t.Errorf("Expected a JSON request, got Accept %q", gotAccept)
	}

	var resp jsonrpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	result, _ := resp.Result.(map[string]any)
	content, _ := result["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("Expected one content item, got %v", resp.Result)
	}
	if text := content[0].(map[string]any)["text"]; text != `{"count":1}` {
		t.Errorf("Unexpected tool output %v", text)
	}
}

func TestMCPHandler_ToolsCallPostsJSON(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/places/move", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Session not found"}`))
	})
	orig := Mux
	Mux = mux
	defer func() { Mux = orig }()

	body := `{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"move_map","arguments":{"session":"abc","lat":1.5,"lng":2.5}}}`
	req := httptest.NewRequest("POST", "/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	if got["session"] != "abc" || got["lat"] != 1.5 {
		t.Errorf("Expected arguments as JSON body, got %v", got)
	}

	var resp jsonrpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	result, _ := resp.Result.(map[string]any)
	if isError, _ := result["isError"].(bool); !isError {
		t.Error("Expected isError=true for a 404 from the endpoint")
	}
}

func TestMCPHandler_NotificationsInitialized(t *testing.T) {
	body := `{"jsonrpc":"2.0","method":"notifications/initialized"}`
	req := httptest.NewRequest("POST", "/api/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
}

func TestToolInputSchemaRequired(t *testing.T) {
	// Verify that tools with required params have them listed
	for _, tool := range tools {
		schema := mcpInputSchema{
			Type:       "object",
			Properties: make(map[string]mcpProperty),
		}
		var required []string
		for _, p := range tool.Params {
			schema.Properties[p.Name] = mcpProperty{
				Type:        p.Type,
				Description: p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}

		if tool.Name == "move_map" {
			if strings.Join(required, ",") != "session,lat,lng" {
				t.Errorf("move_map should require session, lat and lng, got %v", required)
			}
			if schema.Properties["custom"].Type != "boolean" || schema.Properties["icon"].Type != "string" {
				t.Errorf("move_map should take custom and icon, got %+v", schema.Properties)
			}
		}
		if tool.Name == "search_locations" && len(required) != 0 {
			t.Errorf("search_locations should have no required params, got %v", required)
		}
	}
}

func TestMCPHandler_CustomHandler(t *testing.T) {
	// Register a tool with a custom handler
	origTools := make([]Tool, len(tools))
	copy(origTools, tools)
	RegisterTool(Tool{
		Name:        "test_custom",
		Description: "Custom handler test",
		Params: []ToolParam{
			{Name: "msg", Type: "string", Required: true},
		},
		Handle: func(args map[string]any) (string, error) {
			msg, _ := args["msg"].(string)
			return `{"echo":"` + msg + `"}`, nil
		},
	})
	defer func() { tools = origTools }()

	body := `{"jsonrpc":"2.0","id":13,"method":"tools/call","params":{"name":"test_custom","arguments":{"msg":"hello"}}}`
	req := httptest.NewRequest("POST", "/api/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	var resp jsonrpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %s", resp.Error.Message)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatal("Expected result to be an object")
	}
	content, ok := result["content"].([]any)
	if !ok || len(content) == 0 {
		t.Fatal("Expected content array")
	}
	first, ok := content[0].(map[string]any)
	if !ok {
		t.Fatal("Expected content item to be an object")
	}
	text, _ := first["text"].(string)
	if !strings.Contains(text, "hello") {
		t.Errorf("Expected echoed message, got: %s", text)
	}
}

func TestMCPHandler_CustomHandlerError(t *testing.T) {
	origTools := make([]Tool, len(tools))
	copy(origTools, tools)
	RegisterTool(Tool{
		Name:        "test_custom_err",
		Description: "Custom handler error test",
		Handle: func(args map[string]any) (string, error) {
			return `{"error":"something went wrong"}`, fmt.Errorf("something went wrong")
		},
	})
	defer func() { tools = origTools }()

	body := `{"jsonrpc":"2.0","id":14,"method":"tools/call","params":{"name":"test_custom_err","arguments":{}}}`
	req := httptest.NewRequest("POST", "/api/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()

	MCPHandler(w, req)

	var resp jsonrpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// Custom handler errors return as tool result with isError=true, not JSON-RPC error
	if resp.Error != nil {
		t.Fatalf("Expected tool result, not JSON-RPC error")
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatal("Expected result object")
	}
	isError, _ := result["isError"].(bool)
	if !isError {
		t.Error("Expected isError=true for custom handler error")
	}
}

func TestRegisterTool(t *testing.T) {
	origLen := len(tools)
	origTools := make([]Tool, len(tools))
	copy(origTools, tools)

	RegisterTool(Tool{
		Name:        "test_register",
		Description: "Test tool registration",
	})
	defer func() { tools = origTools }()

	if len(tools) != origLen+1 {
		t.Errorf("Expected %d tools after registration, got %d", origLen+1, len(tools))
	}

	found := false
	for _, tool := range tools {
		if tool.Name == "test_register" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Registered tool not found in tools list")
	}
}
