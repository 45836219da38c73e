package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rhizhq/rhiz/internal/matching"
	"github.com/rhizhq/rhiz/internal/outreach"
	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store, *mockMatcher) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m := &mockMatcher{}
	return MCPDeps{Store: store, Matcher: m, OwnerID: "u1"}, store, m
}

func seedContact(t *testing.T, store *storage.Store, id, name string) {
	t.Helper()
	if err := store.SaveContact(storage.Contact{ID: id, OwnerID: "u1", Name: name}); err != nil {
		t.Fatalf("SaveContact: %v", err)
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_LogInteraction(t *testing.T) {
	deps, store, _ := newTestMCPDeps(t)
	seedContact(t, store, "c1", "Ada")

	result, err := mcpLogInteraction(deps)(context.Background(), makeCallToolRequest("log_interaction", map[string]interface{}{
		"contact_id":  "c1",
		"direction":   "Received",
		"occurred_at": "2026-03-01T09:30:00Z",
		"sentiment":   0.8,
		"outcome":     "intro call",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var ix storage.Interaction
	if err := json.Unmarshal([]byte(toolText(t, result)), &ix); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if ix.Direction != scoring.DirectionReceived || ix.Sentiment == nil || *ix.Sentiment != 0.8 {
		t.Errorf("interaction = %+v", ix)
	}

	history, err := store.ListInteractions("c1", time.Time{})
	if err != nil || len(history) != 1 {
		t.Fatalf("history = %v, %v", history, err)
	}
	if n, _ := store.PendingJobCount(storage.JobTrustRecompute); n != 1 {
		t.Errorf("pending recompute jobs = %d, want 1", n)
	}
}

func TestMCPTool_LogInteraction_Errors(t *testing.T) {
	deps, store, _ := newTestMCPDeps(t)
	seedContact(t, store, "c1", "Ada")

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing contact", map[string]interface{}{"direction": "initiated"}},
		{"missing direction", map[string]interface{}{"contact_id": "c1"}},
		{"bad direction", map[string]interface{}{"contact_id": "c1", "direction": "up"}},
		{"unknown contact", map[string]interface{}{"contact_id": "ghost", "direction": "initiated"}},
		{"bad timestamp", map[string]interface{}{"contact_id": "c1", "direction": "initiated", "occurred_at": "soon"}},
		{"bad label", map[string]interface{}{"contact_id": "c1", "direction": "initiated", "sentiment_label": "meh"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := mcpLogInteraction(deps)(context.Background(), makeCallToolRequest("log_interaction", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Errorf("expected tool error, got %s", toolText(t, result))
			}
		})
	}
}

func TestMCPTool_GetTrust(t *testing.T) {
	deps, store, _ := newTestMCPDeps(t)
	seedContact(t, store, "c1", "Ada")

	result, _ := mcpGetTrust(deps)(context.Background(), makeCallToolRequest("get_trust", map[string]interface{}{"contact_id": "c1"}))
	if !result.IsError {
		t.Error("expected error before any insight exists")
	}

	if err := store.SaveTrustInsight(storage.TrustInsight{ContactID: "c1", Tier: scoring.TierDormant, Score: 0.45, ComputedAt: time.Now()}); err != nil {
		t.Fatalf("SaveTrustInsight: %v", err)
	}
	result, _ = mcpGetTrust(deps)(context.Background(), makeCallToolRequest("get_trust", map[string]interface{}{"contact_id": "c1"}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if text := toolText(t, result); !strings.Contains(text, `"tier":"dormant"`) {
		t.Errorf("result = %s", text)
	}
}

func TestMCPTool_MatchContacts(t *testing.T) {
	deps, _, m := newTestMCPDeps(t)
	m.matches = []matching.Match{
		{Contact: storage.Contact{ID: "c1", Name: "Ada", Company: "Engines"}, Similarity: 0.91, Tier: scoring.TierRooted},
	}

	result, _ := mcpMatchContacts(deps)(context.Background(), makeCallToolRequest("match_contacts", map[string]interface{}{
		"text":  "analytical engine expertise",
		"limit": float64(500),
	}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if m.lastK != 50 {
		t.Errorf("limit = %d, want clamped to 50", m.lastK)
	}
	text := toolText(t, result)
	if !strings.Contains(text, `"contact_id":"c1"`) || !strings.Contains(text, `"tier":"rooted"`) {
		t.Errorf("result = %s", text)
	}

	result, _ = mcpMatchContacts(deps)(context.Background(), makeCallToolRequest("match_contacts", map[string]interface{}{}))
	if !result.IsError {
		t.Error("expected error for missing text")
	}
}

func TestMCPTool_SuggestOutreach(t *testing.T) {
	deps, store, _ := newTestMCPDeps(t)
	seedContact(t, store, "c1", "Ada")
	seedContact(t, store, "c2", "Bea")
	for _, ti := range []storage.TrustInsight{
		{ContactID: "c1", Tier: scoring.TierGrowing, Score: 0.7, DaysSinceLast: 45},
		{ContactID: "c2", Tier: scoring.TierFrayed, Score: 0.2, DaysSinceLast: 200},
	} {
		ti.ComputedAt = time.Now()
		if err := store.SaveTrustInsight(ti); err != nil {
			t.Fatalf("SaveTrustInsight: %v", err)
		}
	}

	result, _ := mcpSuggestOutreach(deps)(context.Background(), makeCallToolRequest("suggest_outreach", map[string]interface{}{}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	var sugg []outreach.Suggestion
	if err := json.Unmarshal([]byte(toolText(t, result)), &sugg); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(sugg) != 1 || sugg[0].Contact.ID != "c1" {
		t.Errorf("suggestions = %+v", sugg)
	}

	result, _ = mcpSuggestOutreach(deps)(context.Background(), makeCallToolRequest("suggest_outreach", map[string]interface{}{"quiet_days": float64(60)}))
	if text := toolText(t, result); text != "[]" {
		t.Errorf("with quiet_days=60 got %s, want []", text)
	}
}

func TestMCPResource_Tiers(t *testing.T) {
	deps, store, _ := newTestMCPDeps(t)
	seedContact(t, store, "c1", "Ada")
	if err := store.SaveTrustInsight(storage.TrustInsight{ContactID: "c1", Tier: scoring.TierRooted, Score: 0.9, ComputedAt: time.Now()}); err != nil {
		t.Fatalf("SaveTrustInsight: %v", err)
	}

	contents, err := mcpResourceTiers(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "rhiz://tiers"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	var counts map[string]int
	if err := json.Unmarshal([]byte(tc.Text), &counts); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if counts["rooted"] != 1 || counts["frayed"] != 0 || len(counts) != 4 {
		t.Errorf("counts = %v", counts)
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps, "test"); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
