// Package mcp exposes the kiosk REST API as Model Context Protocol tools.
//
// The Client registers one tool per REST operation and forwards every call
// to a running kiosk server over HTTP, so an agent driving the kiosk sees
// exactly what an operator using the REST API sees.
//
// MCP Tools:
//   - list_pages, list_views
//   - show_view, hide_view, destroy_all_views
//   - navigate_view, navigation_control, can_go_back, current_url
//   - remove_elements
//   - idle_status, set_idle_timeout, start_idle_timer, stop_idle_timer, suppress_idle
//   - get_kiosk, set_kiosk, reset_kiosk
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer()) for local MCP clients
//   - HTTP: the kiosk server mounts the same tools on /mcp
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
