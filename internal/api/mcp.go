package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rhizhq/rhiz/internal/ingest"
	"github.com/rhizhq/rhiz/internal/outreach"
	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     *storage.Store
	Matcher   ContactMatcher
	OwnerID   string
	QuietDays int
}

func (d MCPDeps) owner() string {
	if d.OwnerID == "" {
		return DefaultOwner
	}
	return d.OwnerID
}

// NewMCPServer creates an MCP server with the rhiz tools and resources registered.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"rhiz",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("rhiz tracks relationship health: log interactions, read trust tiers, find the right contact for a goal."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("log_interaction",
			mcp.WithDescription("Record an interaction with a contact. The contact's trust insight is recomputed in the background."),
			mcp.WithString("contact_id", mcp.Description("Contact ID"), mcp.Required()),
			mcp.WithString("direction", mcp.Description("initiated, received or neutral"), mcp.Required(),
				mcp.Enum(string(scoring.DirectionInitiated), string(scoring.DirectionReceived), string(scoring.DirectionNeutral))),
			mcp.WithString("occurred_at", mcp.Description("RFC3339 timestamp (default now)")),
			mcp.WithNumber("sentiment", mcp.Description("Sentiment score in [0,1]")),
			mcp.WithString("sentiment_label", mcp.Description("positive, neutral or negative")),
			mcp.WithString("outcome", mcp.Description("Free-text outcome")),
		),
		mcpLogInteraction(deps),
	)

	s.AddTool(
		mcp.NewTool("get_trust",
			mcp.WithDescription("Return the current trust insight (tier, score, signals) for a contact."),
			mcp.WithString("contact_id", mcp.Description("Contact ID"), mcp.Required()),
		),
		mcpGetTrust(deps),
	)

	s.AddTool(
		mcp.NewTool("match_contacts",
			mcp.WithDescription("Find the contacts whose profiles best match a goal description."),
			mcp.WithString("text", mcp.Description("Goal description"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpMatchContacts(deps),
	)

	s.AddTool(
		mcp.NewTool("suggest_outreach",
			mcp.WithDescription("List contacts worth reconnecting with, most valuable first."),
			mcp.WithNumber("quiet_days", mcp.Description("Minimum days of silence")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of suggestions (default 5)")),
		),
		mcpSuggestOutreach(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"rhiz://tiers",
			"Trust Tiers",
			mcp.WithResourceDescription("Number of contacts in each trust tier"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTiers(deps),
	)

	return s
}

func mcpLogInteraction(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		contactID, err := req.RequireString("contact_id")
		if err != nil {
			return mcpError("contact_id is required"), nil
		}
		dir, err := req.RequireString("direction")
		if err != nil {
			return mcpError("direction is required"), nil
		}

		at := time.Now().UTC()
		if s := req.GetString("occurred_at", ""); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return mcpError(fmt.Sprintf("occurred_at must be RFC3339: %v", err)), nil
			}
			at = t
		}

		var sentiment *float64
		if _, ok := req.GetArguments()["sentiment"]; ok {
			v := req.GetFloat("sentiment", 0)
			sentiment = &v
		}

		ix, err := storage.NewInteraction(uuid.New().String(), contactID,
			scoring.Direction(strings.ToLower(dir)), at, sentiment,
			req.GetString("sentiment_label", ""), req.GetString("outcome", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if err := deps.Store.SaveInteraction(ix); err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		if err := ingest.EnqueueRecompute(deps.Store, contactID); err != nil {
			return mcpError(fmt.Sprintf("saved interaction but failed to queue recompute: %v", err)), nil
		}
		return mcpJSON(ix)
	}
}

func mcpGetTrust(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		contactID, err := req.RequireString("contact_id")
		if err != nil {
			return mcpError("contact_id is required"), nil
		}
		in, err := deps.Store.GetTrustInsight(contactID)
		if err != nil {
			return mcpError(fmt.Sprintf("no trust insight for %s: %v", contactID, err)), nil
		}
		return mcpJSON(in)
	}
}

func mcpMatchContacts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			return mcpError("text is required"), nil
		}
		limit := clampLimit(req.GetInt("limit", 5))

		ms, err := deps.Matcher.MatchGoal(ctx, deps.owner(), text, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("matching failed: %v", err)), nil
		}

		type matchResult struct {
			ContactID  string       `json:"contact_id"`
			Name       string       `json:"name"`
			Role       string       `json:"role,omitempty"`
			Company    string       `json:"company,omitempty"`
			Similarity float64      `json:"similarity"`
			Tier       scoring.Tier `json:"tier,omitempty"`
		}
		results := make([]matchResult, len(ms))
		for i, m := range ms {
			results[i] = matchResult{
				ContactID:  m.Contact.ID,
				Name:       m.Contact.Name,
				Role:       m.Contact.Role,
				Company:    m.Contact.Company,
				Similarity: m.Similarity,
				Tier:       m.Tier,
			}
		}
		return mcpJSON(results)
	}
}

func mcpSuggestOutreach(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cands, err := outreach.Candidates(deps.Store, deps.owner())
		if err != nil {
			return mcpError(err.Error()), nil
		}
		sugg := outreach.Suggest(cands, outreach.Options{
			QuietDays: req.GetInt("quiet_days", deps.QuietDays),
			Limit:     clampLimit(req.GetInt("limit", 5)),
		})
		if sugg == nil {
			sugg = []outreach.Suggestion{}
		}
		return mcpJSON(sugg)
	}
}

func mcpResourceTiers(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		counts, err := deps.Store.TierCounts(deps.owner())
		if err != nil {
			return nil, fmt.Errorf("counting tiers: %w", err)
		}
		b, err := json.Marshal(counts)
		if err != nil {
			return nil, fmt.Errorf("marshalling tier counts: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func clampLimit(n int) int {
	if n <= 0 {
		return 5
	}
	if n > 50 {
		return 50
	}
	return n
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
