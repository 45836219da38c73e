package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhizhq/rhiz/internal/api"
	"github.com/rhizhq/rhiz/internal/config"
	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAddContact(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /contacts": `{"id":"c-123","owner_id":"local","name":"Ada","relationship_type":"mentor"}`,
	})

	c, err := addContact(ctx, ts.client(), api.ContactRequest{Name: "Ada", RelationshipType: "mentor"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != "c-123" || c.Name != "Ada" {
		t.Errorf("contact = %+v", c)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/contacts" {
		t.Errorf("request = %s %s, want POST /contacts", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["name"] != "Ada" || body["relationship_type"] != "mentor" {
		t.Errorf("body = %v", body)
	}
}

func TestListContacts_Query(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /contacts": `[{"id":"c-1","name":"Ada"},{"id":"c-2","name":"Grace"}]`,
	})

	contacts, err := listContacts(ctx, ts.client(), 20, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(contacts))
	}
	if got := ts.requests[0].Path; got != "/contacts?limit=20&offset=40" {
		t.Errorf("path = %q", got)
	}
}

func TestUploadBio_EncodesPDF(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /contacts/c-1/bio": `{"id":"c-1","name":"Ada","notes":"bio text"}`,
	})

	pdf := []byte("%PDF-1.4 fake")
	c, err := uploadBio(ctx, ts.client(), "c-1", pdf, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Notes != "bio text" {
		t.Errorf("notes = %q", c.Notes)
	}

	var req api.BioRequest
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &req); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if !req.Replace {
		t.Error("replace not sent")
	}
	decoded, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil || !bytes.Equal(decoded, pdf) {
		t.Errorf("content round trip failed: %q, %v", decoded, err)
	}
}

func TestListHistory_SinceEncoded(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /contacts/c-1/interactions": `[{"id":"ix-1","contact_id":"c-1","direction":"received","occurred_at":"2025-01-01T00:00:00Z"}]`,
	})

	history, err := listHistory(ctx, ts.client(), "c-1", "2025-01-01T00:00:00+01:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 || history[0].Direction != scoring.DirectionReceived {
		t.Errorf("history = %+v", history)
	}
	if got := ts.requests[0].Path; !strings.Contains(got, "since=2025-01-01T00%3A00%3A00%2B01%3A00") {
		t.Errorf("since not URL-encoded: %q", got)
	}
}

func TestLogInteraction(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /contacts/c-1/interactions": `{"id":"ix-9","contact_id":"c-1","direction":"initiated"}`,
	})

	s := 0.8
	ix, err := logInteraction(ctx, ts.client(), "c-1", api.InteractionRequest{
		Direction:  "initiated",
		OccurredAt: "2025-03-01T09:30:00Z",
		Sentiment:  &s,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ix.ID != "ix-9" {
		t.Errorf("id = %q", ix.ID)
	}

	var body api.InteractionRequest
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body.Sentiment == nil || *body.Sentiment != 0.8 {
		t.Errorf("sentiment = %v", body.Sentiment)
	}
}

func TestLogCommand_MissingDirection(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"log", "c-1"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing direction")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestTrustRecompute_NeedsTarget(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"trust", "recompute"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error with neither id nor --all")
	}
}

func TestUnknownFormat(t *testing.T) {
	defer func() {
		rootCmd.SetArgs(nil)
		outputFormat = formatText
	}()

	rootCmd.SetArgs([]string{"--format", "xml", "config", "show"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "xml") {
		t.Fatalf("err = %v, want unknown format error", err)
	}
}

func TestGetMatches_K(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /goals/g-1/matches": `[{"contact":{"id":"c-1","name":"Ada"},"similarity":0.91,"tier":"rooted","trust_score":0.8}]`,
	})

	matches, err := getMatches(ctx, ts.client(), "/goals/g-1/matches", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Tier != scoring.TierRooted {
		t.Errorf("matches = %+v", matches)
	}
	if got := ts.requests[0].Path; got != "/goals/g-1/matches?k=3" {
		t.Errorf("path = %q", got)
	}

	var buf bytes.Buffer
	writeMatches(&buf, matches)
	if !strings.Contains(buf.String(), "0.910") || !strings.Contains(buf.String(), "Ada") {
		t.Errorf("table output = %q", buf.String())
	}
}

func TestGetSuggestions_DefaultsOmitted(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /outreach/suggestions": `[]`,
	})

	if _, err := getSuggestions(ctx, ts.client(), 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ts.requests[0].Path; got != "/outreach/suggestions" {
		t.Errorf("path = %q, want no query", got)
	}

	if _, err := getSuggestions(ctx, ts.client(), 30, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ts.requests[1].Path; got != "/outreach/suggestions?limit=5&quiet_days=30" {
		t.Errorf("path = %q", got)
	}
}

func TestExportData(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /contacts":                  `[{"id":"c-1","name":"Ada"}]`,
		"GET /contacts/c-1/interactions": `[{"id":"ix-1","contact_id":"c-1","direction":"initiated"},{"id":"ix-2","contact_id":"c-1","direction":"received"}]`,
		"GET /trust":                     `[{"contact_id":"c-1","tier":"growing","score":0.5}]`,
	})

	var buf bytes.Buffer
	n, err := exportData(ctx, ts.client(), &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Errorf("records = %d, want 4", n)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 JSONL lines, got %d", len(lines))
	}
	wantTypes := []string{"contact", "interaction", "interaction", "trust_insight"}
	for i, line := range lines {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("invalid JSONL line %d: %v", i, err)
		}
		if record["type"] != wantTypes[i] {
			t.Errorf("line %d type = %v, want %s", i, record["type"], wantTypes[i])
		}
	}
}

func TestExportData_ContactError(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	var buf bytes.Buffer
	if _, err := exportData(ctx, ts.client(), &buf); err == nil {
		t.Fatal("expected error when contacts cannot be listed")
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := ts.client().get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestRender_Formats(t *testing.T) {
	old := outputFormat
	defer func() { outputFormat = old }()

	in := storage.TrustInsight{ContactID: "c-1", Tier: scoring.TierDormant, DaysSinceLast: 90}

	outputFormat = formatJSON
	var buf bytes.Buffer
	if err := render(&buf, in, nil); err != nil {
		t.Fatalf("render json: %v", err)
	}
	if !strings.Contains(buf.String(), `"days_since_last": 90`) {
		t.Errorf("json output = %q", buf.String())
	}

	outputFormat = formatYAML
	buf.Reset()
	if err := render(&buf, in, nil); err != nil {
		t.Fatalf("render yaml: %v", err)
	}
	if !strings.Contains(buf.String(), "daysSinceLast: 90") {
		t.Errorf("yaml output = %q", buf.String())
	}

	outputFormat = formatText
	buf.Reset()
	if err := render(&buf, in, func(w io.Writer) { writeInsight(w, in) }); err != nil {
		t.Fatalf("render text: %v", err)
	}
	if !strings.Contains(buf.String(), "90 days ago") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = "my-secret-token"

	if _, err := client.get(ctx, "/health"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		w.Write([]byte(`{"error":{"message":"contact name is required","type":"invalid_request_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "test",
		httpClient: ts.Client(),
	}

	resp, err := client.post(ctx, "/contacts", api.ContactRequest{})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 422 response")
	}
	if !strings.Contains(err.Error(), "422") || !strings.Contains(err.Error(), "name is required") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Ollama.ChatModel = "llama3.2"

	found := false
	for _, k := range config.ShowAll(cfg) {
		if k.Key == "server.port" && k.Value == "4000" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4000 in ShowAll output")
	}
}

func TestTierSummary(t *testing.T) {
	insights := []storage.TrustInsight{
		{Tier: scoring.TierFrayed},
		{Tier: scoring.TierRooted},
		{Tier: scoring.TierRooted},
	}
	if got, want := tierSummary(insights), "rooted 2, frayed 1"; got != want {
		t.Errorf("tierSummary = %q, want %q", got, want)
	}
	if got := tierSummary(nil); got != "none computed" {
		t.Errorf("tierSummary(nil) = %q", got)
	}
}

func TestDaysLabel(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{-1, "never"},
		{0, "today"},
		{1, "1 day ago"},
		{45, "45 days ago"},
	}
	for _, tt := range tests {
		if got := daysLabel(tt.days); got != tt.want {
			t.Errorf("daysLabel(%d) = %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestCountLabel(t *testing.T) {
	tests := []struct {
		count, limit int
		want         string
	}{
		{5, 100, "5"},
		{0, 100, "0"},
		{100, 100, "100+"},
		{150, 100, "150+"},
	}
	for _, tt := range tests {
		got := countLabel(tt.count, tt.limit)
		if got != tt.want {
			t.Errorf("countLabel(%d, %d) = %q, want %q", tt.count, tt.limit, got, tt.want)
		}
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	path := pidFilePath(t.TempDir())
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid <= 0 {
		t.Errorf("pid = %d", pid)
	}
	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error after removal")
	}
}
