package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rmax-ai/alertgraph/pkg/api"
	"github.com/rmax-ai/alertgraph/pkg/catalog"
	"github.com/rmax-ai/alertgraph/pkg/registry"
	"github.com/rmax-ai/alertgraph/pkg/store"
)

// newBackend starts a real API server over a JSON file store.
func newBackend(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	repo := store.NewFileStore(filepath.Join(t.TempDir(), "alerts.json"), logger)
	reg := registry.New(repo, catalog.Default(), registry.WithLogger(logger))
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	ts := httptest.NewServer(api.NewServer(reg, logger, "").Handler())
	t.Cleanup(ts.Close)
	return ts, reg
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPServer_ReadStats(t *testing.T) {
	ts, _ := newBackend(t)
	s := NewServer(ts.URL)

	req := mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "alertgraph://stats"},
	}
	result, err := s.handleReadStats(context.Background(), req)
	if err != nil {
		t.Fatalf("handleReadStats failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 resource content, got %d", len(result))
	}
	content, ok := result[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents")
	}
	if content.MIMEType != "application/json" || content.URI != "alertgraph://stats" {
		t.Errorf("unexpected resource metadata %+v", content)
	}

	var stats registry.Stats
	if err := json.Unmarshal([]byte(content.Text), &stats); err != nil {
		t.Fatalf("failed to parse stats JSON: %v", err)
	}
	if stats.Nodes != 20 {
		t.Errorf("expected 20 seeded nodes, got %d", stats.Nodes)
	}
}

func TestMCPServer_ReadCatalog(t *testing.T) {
	ts, _ := newBackend(t)
	s := NewServer(ts.URL)

	result, err := s.handleReadCatalog(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "alertgraph://catalog"},
	})
	if err != nil {
		t.Fatalf("handleReadCatalog failed: %v", err)
	}
	content := result[0].(mcp.TextResourceContents)
	if !strings.Contains(content.Text, "Panamá Oeste") {
		t.Errorf("expected regions in catalog, got %s", content.Text)
	}
}

func TestMCPServer_CreateAndSearch(t *testing.T) {
	ts, reg := newBackend(t)
	s := NewServer(ts.URL)
	ctx := context.Background()

	user, err := reg.RegisterUser(ctx, "Ana", "Herrera")
	if err != nil {
		t.Fatal(err)
	}

	result, err := s.handleCreateAlert(ctx, callTool("create_alert", map[string]interface{}{
		"user_id":     user.ID,
		"category":    "accident",
		"description": "Choque en la vía",
		"location":    "Chitré",
	}))
	if err != nil {
		t.Fatalf("handleCreateAlert failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "ALERTA_ACCIDENT_") {
		t.Errorf("unexpected create output %q", toolText(t, result))
	}

	for _, by := range []struct{ by, value string }{
		{"category", "accident"},
		{"region", "Herrera"},
		{"user", user.ID},
	} {
		result, err := s.handleSearchAlerts(ctx, callTool("search_alerts", map[string]interface{}{
			"by": by.by, "value": by.value,
		}))
		if err != nil {
			t.Fatalf("handleSearchAlerts(%s) failed: %v", by.by, err)
		}
		text := toolText(t, result)
		if result.IsError || !strings.HasPrefix(text, "1 alerts found") {
			t.Errorf("%s: unexpected output %q", by.by, text)
		}
		if !strings.Contains(text, "Location: Chitré") {
			t.Errorf("%s: expected location in output %q", by.by, text)
		}
	}
}

func TestMCPServer_SearchErrors(t *testing.T) {
	ts, _ := newBackend(t)
	s := NewServer(ts.URL)
	ctx := context.Background()

	result, err := s.handleSearchAlerts(ctx, callTool("search_alerts", map[string]interface{}{
		"by": "category", "value": "fire",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError || !strings.Contains(toolText(t, result), "unknown_category") {
		t.Errorf("expected unknown_category error, got %q", toolText(t, result))
	}

	result, _ = s.handleSearchAlerts(ctx, callTool("search_alerts", map[string]interface{}{
		"by": "weather", "value": "x",
	}))
	if !result.IsError {
		t.Error("expected error for unsupported search")
	}

	result, _ = s.handleSearchAlerts(ctx, callTool("search_alerts", map[string]interface{}{
		"by": "region", "value": "Darién",
	}))
	if result.IsError || toolText(t, result) != "No alerts found" {
		t.Errorf("unexpected empty search output %q", toolText(t, result))
	}
}

func TestMCPServer_Prompt(t *testing.T) {
	s := NewServer("http://127.0.0.1:1")

	req := mcp.GetPromptRequest{}
	req.Params.Name = promptName
	result, err := s.handleGetPrompt(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetPrompt failed: %v", err)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(result.Messages))
	}

	req.Params.Name = "other"
	if _, err := s.handleGetPrompt(context.Background(), req); err == nil {
		t.Error("expected error for unknown prompt")
	}
}
