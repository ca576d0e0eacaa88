package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/alertgraph/pkg/client"
	"github.com/rmax-ai/alertgraph/pkg/graph"
)

const promptName = "alertgraph-aware"

// Server adapts alertgraph-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"alertgraph",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"alertgraph://stats",
		"Alert Statistics",
		mcp.WithResourceDescription("Graph size, registered users and active alerts per category"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadStats)

	s.mcpServer.AddResource(mcp.NewResource(
		"alertgraph://catalog",
		"Alert Catalog",
		mcp.WithResourceDescription("Known alert categories and regions"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadCatalog)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"search_alerts",
		mcp.WithDescription("Find active alerts by category, by region, or filed by a user."),
		mcp.WithString("by", mcp.Required(), mcp.Enum("category", "region", "user"), mcp.Description("What to search by")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Category key (e.g. 'crime'), region name (e.g. 'Colón') or user id (e.g. 'USER_1')")),
	), s.handleSearchAlerts)

	s.mcpServer.AddTool(mcp.NewTool(
		"create_alert",
		mcp.WithDescription("File a new community alert on behalf of a registered user."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("The reporting user's id")),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category key: emergency, crime, accident or traffic")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What happened")),
		mcp.WithString("location", mcp.Description("Where it happened")),
		mcp.WithString("region", mcp.Description("Region name; defaults to the user's region")),
	), s.handleCreateAlert)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		promptName,
		mcp.WithPromptDescription("Explains alertgraph concepts (users, categories, regions, alerts)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadStats(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := s.apiClient.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats: %w", err)
	}
	return jsonResource(request.Params.URI, stats)
}

func (s *Server) handleReadCatalog(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cat, err := s.apiClient.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	return jsonResource(request.Params.URI, cat)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSearchAlerts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	by := mcp.ParseString(request, "by", "")
	value := mcp.ParseString(request, "value", "")
	if value == "" {
		return mcp.NewToolResultError("value is required"), nil
	}

	var (
		res client.SearchResult
		err error
	)
	switch by {
	case "category":
		res, err = s.apiClient.SearchByCategory(ctx, value)
	case "region":
		res, err = s.apiClient.SearchByRegion(ctx, value)
	case "user":
		res, err = s.apiClient.SearchByUser(ctx, value)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unsupported search %q: use category, region or user", by)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", describe(err))), nil
	}

	return mcp.NewToolResultText(formatAlerts(res.Alerts)), nil
}

func (s *Server) handleCreateAlert(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := client.AlertInput{
		UserID:      mcp.ParseString(request, "user_id", ""),
		Category:    mcp.ParseString(request, "category", ""),
		Description: mcp.ParseString(request, "description", ""),
		Location:    mcp.ParseString(request, "location", ""),
		Region:      mcp.ParseString(request, "region", ""),
	}

	alert, err := s.apiClient.CreateAlert(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", describe(err))), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Alert created: %s\nCategory: %s\nRegion: %s", alert.ID, alert.Category, alert.Region)), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != promptName {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with alertgraph, a community alert registry.

Concepts:
- User: a registered community member living in one region (ids look like USER_1).
- Category: the kind of alert (emergency, crime, accident, traffic).
- Region: a province or comarca, e.g. 'Colón' or 'Panamá Oeste'. Names are matched exactly.
- Alert: a report filed by a user, attached to one category and one region.

Read alertgraph://catalog for the valid categories and regions before filing alerts.
Use 'search_alerts' to find active alerts and 'create_alert' to file new ones.
Only file an alert when the user clearly describes a real incident.
`

	return mcp.NewGetPromptResult(
		promptName,
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}

// formatAlerts renders search results one per block, like the alert listing
// of the interactive menu.
func formatAlerts(matches []graph.Match) string {
	if len(matches) == 0 {
		return "No alerts found"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d alerts found\n", len(matches))
	for i, m := range matches {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, m.ID)
		a, ok := m.Payload.(graph.Alert)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "   Description: %s\n", orNA(a.Description))
		fmt.Fprintf(&b, "   Location: %s\n", orNA(a.Location))
		fmt.Fprintf(&b, "   Region: %s\n", orNA(a.Region))
		if !a.CreatedAt.IsZero() {
			fmt.Fprintf(&b, "   Date: %s\n", a.CreatedAt.Format("2006-01-02 15:04:05"))
		} else {
			b.WriteString("   Date: N/A\n")
		}
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return err.Error()
}
