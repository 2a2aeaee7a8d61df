package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/idle"
	"github.com/wricardo/kiosk-shell/kiosk/record"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// show_view waits for the first page load
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Kiosk Shell",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Kiosk Shell - MCP Interface

This is a thin client that proxies all requests to the kiosk REST API server.

The kiosk shows one web page at a time from a fixed catalog. Each catalog
entry has an id; views are created on first show and kept hidden afterwards.
After a period without activity every view is destroyed and the kiosk
returns to its home screen.

AVAILABLE TOOLS:
- list_pages: List catalog pages
- list_views: List created views and which one is visible
- show_view / hide_view: Show or hide a page by id
- navigate_view: Load a URL inside a view
- navigation_control: Go back or forward inside a view
- can_go_back / current_url: Query a view
- remove_elements: Remove elements matching a CSS selector
- destroy_all_views: Tear every view down
- idle_status, set_idle_timeout, start_idle_timer, stop_idle_timer, suppress_idle
- get_kiosk, set_kiosk, reset_kiosk: The persisted kiosk record`),
	)

	c.registerTools()
}

func idArg(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	empty := mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}}
	byID := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"id": idArg("Catalog page id"),
		},
		Required: []string{"id"},
	}

	// Catalog and views
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_pages",
		Description: "List the pages configured in the kiosk catalog",
		InputSchema: empty,
	}, c.handleListPages)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_views",
		Description: "List created views with their state and visibility",
		InputSchema: empty,
	}, c.handleListViews)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "show_view",
		Description: "Show a catalog page, creating its view on first use",
		InputSchema: byID,
	}, c.handleShowView)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "hide_view",
		Description: "Hide a view without destroying it",
		InputSchema: byID,
	}, c.handleHideView)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "navigate_view",
		Description: "Load a URL inside an existing view",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id":  idArg("Catalog page id"),
				"url": idArg("Absolute URL to load"),
			},
			Required: []string{"id", "url"},
		},
	}, c.handleNavigateView)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "navigation_control",
		Description: "Go back or forward in a view's history",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": idArg("Catalog page id"),
				"action": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"back", "forward"},
					"description": "Direction to move in history",
				},
			},
			Required: []string{"id", "action"},
		},
	}, c.handleNavigationControl)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "can_go_back",
		Description: "Report whether a view has history to go back to",
		InputSchema: byID,
	}, c.handleCanGoBack)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "current_url",
		Description: "Get the URL currently displayed by a view",
		InputSchema: byID,
	}, c.handleCurrentURL)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "remove_elements",
		Description: "Remove every element matching a CSS selector from a view",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id":       idArg("Catalog page id"),
				"selector": idArg("CSS selector"),
			},
			Required: []string{"id", "selector"},
		},
	}, c.handleRemoveElements)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "destroy_all_views",
		Description: "Destroy every view and return the kiosk to its home screen",
		InputSchema: empty,
	}, c.handleDestroyAll)

	// Idle timer
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "idle_status",
		Description: "Get the idle timer status",
		InputSchema: empty,
	}, c.handleIdleStatus)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_idle_timeout",
		Description: "Set the idle timeout in milliseconds",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"timeout_ms": map[string]interface{}{
					"type":        "number",
					"description": "Timeout in milliseconds, must be positive",
				},
			},
			Required: []string{"timeout_ms"},
		},
	}, c.handleSetIdleTimeout)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_idle_timer",
		Description: "Arm the idle timer",
		InputSchema: empty,
	}, c.handleStartIdle)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "stop_idle_timer",
		Description: "Disarm the idle timer",
		InputSchema: empty,
	}, c.handleStopIdle)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "suppress_idle",
		Description: "Suppress or allow the idle timer",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"suppressed": map[string]interface{}{
					"type":        "boolean",
					"description": "True to suppress idle resets",
				},
			},
			Required: []string{"suppressed"},
		},
	}, c.handleSuppressIdle)

	// Kiosk record
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_kiosk",
		Description: "Get the persisted kiosk record",
		InputSchema: empty,
	}, c.handleGetKiosk)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_kiosk",
		Description: "Save the kiosk record",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": idArg("Kiosk name"),
				"mode": idArg("Kiosk mode, \"did\" reserves the top band of the screen"),
			},
			Required: []string{"name"},
		},
	}, c.handleSetKiosk)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_kiosk",
		Description: "Delete the kiosk record",
		InputSchema: empty,
	}, c.handleResetKiosk)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func viewPath(id, suffix string) string {
	return fmt.Sprintf("/api/views/%s/%s", id, suffix)
}

// Tool handlers

func (c *Client) handleListPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int            `json:"count"`
		Pages []catalog.Page `json:"pages"`
	}

	if err := c.apiCall(ctx, "GET", "/api/pages", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Catalog Pages (%d):\n\n", response.Count)
	for _, p := range response.Pages {
		result += fmt.Sprintf("- %s: %s (%s)\n", p.ID, p.Label, p.URL)
	}
	return mcp.NewToolResultText(result), nil
}

// viewSummary mirrors the REST view listing; state stays a string here
type viewSummary struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	State   string `json:"state"`
	Visible bool   `json:"visible"`
	URL     string `json:"url"`
}

func (c *Client) handleListViews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count   int           `json:"count"`
		Visible string        `json:"visible"`
		Views   []viewSummary `json:"views"`
	}

	if err := c.apiCall(ctx, "GET", "/api/views", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Views (%d):\n\n", response.Count)
	for _, v := range response.Views {
		marker := " "
		if v.Visible {
			marker = "*"
		}
		result += fmt.Sprintf("%s %s [%s] %s\n", marker, v.ID, v.State, v.URL)
	}
	if response.Visible == "" {
		result += "\nNo view is visible\n"
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleShowView(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := arguments(request)["id"].(string)

	if err := c.apiCall(ctx, "POST", viewPath(id, "show"), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("View %s is visible", id)), nil
}

func (c *Client) handleHideView(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := arguments(request)["id"].(string)

	if err := c.apiCall(ctx, "POST", viewPath(id, "hide"), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("View %s is hidden", id)), nil
}

func (c *Client) handleNavigateView(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	id, _ := args["id"].(string)
	url, _ := args["url"].(string)

	body := map[string]string{"url": url}
	if err := c.apiCall(ctx, "POST", viewPath(id, "navigate"), body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("View %s loaded %s", id, url)), nil
}

func (c *Client) handleNavigationControl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	id, _ := args["id"].(string)
	action, _ := args["action"].(string)

	body := map[string]string{"action": action}
	if err := c.apiCall(ctx, "POST", viewPath(id, "control"), body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("View %s: %s", id, action)), nil
}

func (c *Client) handleCanGoBack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := arguments(request)["id"].(string)

	var response struct {
		CanGoBack bool `json:"can_go_back"`
	}
	if err := c.apiCall(ctx, "GET", viewPath(id, "can-go-back"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("can_go_back: %t", response.CanGoBack)), nil
}

func (c *Client) handleCurrentURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := arguments(request)["id"].(string)

	var response struct {
		URL *string `json:"url"`
	}
	if err := c.apiCall(ctx, "GET", viewPath(id, "url"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if response.URL == nil {
		return mcp.NewToolResultText(fmt.Sprintf("View %s has no URL yet", id)), nil
	}
	return mcp.NewToolResultText(*response.URL), nil
}

func (c *Client) handleRemoveElements(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	id, _ := args["id"].(string)
	selector, _ := args["selector"].(string)

	body := map[string]string{"selector": selector}
	if err := c.apiCall(ctx, "POST", viewPath(id, "remove-elements"), body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed %q from %s", selector, id)), nil
}

func (c *Client) handleDestroyAll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := c.apiCall(ctx, "DELETE", "/api/views", nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("All views destroyed"), nil
}

// Idle handlers

func (c *Client) idleCall(ctx context.Context, method, path string, body interface{}) (*mcp.CallToolResult, error) {
	var st idle.Status
	if err := c.apiCall(ctx, method, path, body, &st); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatIdleStatus(st)), nil
}

func (c *Client) handleIdleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.idleCall(ctx, "GET", "/api/idle", nil)
}

func (c *Client) handleSetIdleTimeout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// JSON numbers arrive as float64
	ms, _ := arguments(request)["timeout_ms"].(float64)
	return c.idleCall(ctx, "PUT", "/api/idle/timeout", map[string]int64{"timeout_ms": int64(ms)})
}

func (c *Client) handleStartIdle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.idleCall(ctx, "POST", "/api/idle/start", nil)
}

func (c *Client) handleStopIdle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.idleCall(ctx, "POST", "/api/idle/stop", nil)
}

func (c *Client) handleSuppressIdle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	suppressed, _ := arguments(request)["suppressed"].(bool)
	return c.idleCall(ctx, "PUT", "/api/idle/suppress", map[string]bool{"suppressed": suppressed})
}

// Record handlers

func (c *Client) handleGetKiosk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var info record.Info
	if err := c.apiCall(ctx, "GET", "/api/kiosk", nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatKiosk(info)), nil
}

func (c *Client) handleSetKiosk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	name, _ := args["name"].(string)
	mode, _ := args["mode"].(string)

	var info record.Info
	if err := c.apiCall(ctx, "PUT", "/api/kiosk", record.Info{Name: name, Mode: mode}, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatKiosk(info)), nil
}

func (c *Client) handleResetKiosk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := c.apiCall(ctx, "DELETE", "/api/kiosk", nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Kiosk record deleted"), nil
}

func formatIdleStatus(st idle.Status) string {
	return fmt.Sprintf("Idle timer: timeout=%s armed=%t suppressed=%t",
		time.Duration(st.TimeoutMS)*time.Millisecond, st.Armed, st.Suppressed)
}

func formatKiosk(info record.Info) string {
	mode := info.Mode
	if mode == "" {
		mode = "(default)"
	}
	return fmt.Sprintf("Kiosk: %s\nMode: %s", info.Name, mode)
}
