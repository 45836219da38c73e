package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhizhq/rhiz/internal/api"
	"github.com/rhizhq/rhiz/internal/config"
	"github.com/rhizhq/rhiz/internal/matching"
	"github.com/rhizhq/rhiz/internal/outreach"
	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
	"github.com/rhizhq/rhiz/internal/trust"
)

// --- contacts ---

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Manage contacts",
}

var contactsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a contact",
	Long: `Add a contact, or update one when --id is given.

Examples:
  rhiz contacts add "Ada Lovelace" --role Engineer --company Analytical --type mentor
  rhiz contacts add "Ada Lovelace" --id 3f2c... --notes "met at the conference"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := api.ContactRequest{Name: args[0]}
		req.ID, _ = cmd.Flags().GetString("id")
		req.Role, _ = cmd.Flags().GetString("role")
		req.Company, _ = cmd.Flags().GetString("company")
		req.RelationshipType, _ = cmd.Flags().GetString("type")
		req.Notes, _ = cmd.Flags().GetString("notes")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		c, err := addContact(cmd.Context(), client, req)
		if err != nil {
			return err
		}
		return render(os.Stdout, c, func(w io.Writer) {
			printSuccess("Saved contact %s (%s)", c.Name, c.ID)
		})
	},
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		contacts, err := listContacts(cmd.Context(), client, limit, offset)
		if err != nil {
			return err
		}
		return render(os.Stdout, contacts, func(w io.Writer) {
			writeContactTable(w, contacts)
		})
	},
}

var contactsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var c storage.Contact
		if err := client.getJSON(cmd.Context(), "/contacts/"+url.PathEscape(args[0]), &c); err != nil {
			return err
		}
		return render(os.Stdout, c, func(w io.Writer) {
			writeContact(w, c)
		})
	},
}

var contactsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a contact and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/contacts/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted contact %s", args[0])
		return nil
	},
}

var contactsBioCmd = &cobra.Command{
	Use:   "bio <id> <file.pdf>",
	Short: "Attach the text of a PDF bio to a contact's notes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		replace, _ := cmd.Flags().GetBool("replace")

		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		c, err := uploadBio(cmd.Context(), client, args[0], data, replace)
		if err != nil {
			return err
		}
		return render(os.Stdout, c, func(w io.Writer) {
			printSuccess("Updated notes for %s from %s", c.Name, args[1])
		})
	},
}

var contactsHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List a contact's interactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetString("since")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		history, err := listHistory(cmd.Context(), client, args[0], since)
		if err != nil {
			return err
		}
		return render(os.Stdout, history, func(w io.Writer) {
			writeHistory(w, history)
		})
	},
}

func init() {
	contactsAddCmd.Flags().String("id", "", "update the contact with this id")
	contactsAddCmd.Flags().String("role", "", "role or title")
	contactsAddCmd.Flags().String("company", "", "company or organization")
	contactsAddCmd.Flags().String("type", "", "relationship type: personal, professional, mentor, investor, other")
	contactsAddCmd.Flags().String("notes", "", "free-form notes")
	contactsListCmd.Flags().Int("limit", 50, "maximum number of contacts to list")
	contactsListCmd.Flags().Int("offset", 0, "number of contacts to skip")
	contactsBioCmd.Flags().Bool("replace", false, "replace existing notes instead of appending")
	contactsHistoryCmd.Flags().String("since", "", "only interactions at or after this RFC3339 time")

	contactsCmd.AddCommand(contactsAddCmd, contactsListCmd, contactsShowCmd)
	contactsCmd.AddCommand(contactsRmCmd, contactsBioCmd, contactsHistoryCmd)
}

func addContact(ctx context.Context, c *apiClient, req api.ContactRequest) (storage.Contact, error) {
	var out storage.Contact
	err := c.postJSON(ctx, "/contacts", req, &out)
	return out, err
}

func listContacts(ctx context.Context, c *apiClient, limit, offset int) ([]storage.Contact, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var out []storage.Contact
	err := c.getJSON(ctx, "/contacts?"+q.Encode(), &out)
	return out, err
}

func uploadBio(ctx context.Context, c *apiClient, id string, pdf []byte, replace bool) (storage.Contact, error) {
	req := api.BioRequest{
		Content: base64.StdEncoding.EncodeToString(pdf),
		Replace: replace,
	}
	var out storage.Contact
	err := c.postJSON(ctx, "/contacts/"+url.PathEscape(id)+"/bio", req, &out)
	return out, err
}

func listHistory(ctx context.Context, c *apiClient, id, since string) ([]storage.Interaction, error) {
	path := "/contacts/" + url.PathEscape(id) + "/interactions"
	if since != "" {
		path += "?" + url.Values{"since": {since}}.Encode()
	}
	var out []storage.Interaction
	err := c.getJSON(ctx, path, &out)
	return out, err
}

func writeContactTable(w io.Writer, contacts []storage.Contact) {
	if len(contacts) == 0 {
		fmt.Fprintln(w, "No contacts found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tTIER\tCOMPANY")
	for _, c := range contacts {
		tier := string(c.Tier)
		if tier == "" {
			tier = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", shortID(c.ID), truncate(c.Name, 30), c.RelationshipType, tier, truncate(c.Company, 24))
	}
	tw.Flush()
}

func writeContact(w io.Writer, c storage.Contact) {
	fmt.Fprintf(w, "%s\n", colorize(colorBold, c.Name))
	fmt.Fprintf(w, "  id:       %s\n", c.ID)
	fmt.Fprintf(w, "  type:     %s\n", c.RelationshipType)
	if c.Role != "" {
		fmt.Fprintf(w, "  role:     %s\n", c.Role)
	}
	if c.Company != "" {
		fmt.Fprintf(w, "  company:  %s\n", c.Company)
	}
	if c.Tier != "" {
		fmt.Fprintf(w, "  tier:     %s\n", c.Tier)
	}
	fmt.Fprintf(w, "  updated:  %s\n", c.UpdatedAt.Local().Format(time.DateTime))
	if c.Notes != "" {
		fmt.Fprintf(w, "\n%s\n", c.Notes)
	}
}

func writeHistory(w io.Writer, history []storage.Interaction) {
	if len(history) == 0 {
		fmt.Fprintln(w, "No interactions found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tDIRECTION\tSENTIMENT\tOUTCOME")
	for _, ix := range history {
		sentiment := "-"
		if ix.Sentiment != nil {
			sentiment = strconv.FormatFloat(*ix.Sentiment, 'f', 2, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ix.OccurredAt.Local().Format(time.DateTime), ix.Direction, sentiment, truncate(ix.Outcome, 40))
	}
	tw.Flush()
}

// --- log ---

var logCmd = &cobra.Command{
	Use:   "log <contact-id>",
	Short: "Record an interaction with a contact",
	Long: `Record an interaction with a contact.

Examples:
  rhiz log 3f2c... --direction initiated
  rhiz log 3f2c... --direction received --at 2025-03-01T09:30:00Z --label positive --outcome "intro to Bob"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := interactionRequestFromFlags(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ix, err := logInteraction(cmd.Context(), client, args[0], req)
		if err != nil {
			return err
		}
		return render(os.Stdout, ix, func(w io.Writer) {
			printSuccess("Logged %s interaction %s", ix.Direction, shortID(ix.ID))
		})
	},
}

func init() {
	logCmd.Flags().String("direction", "", "initiated, received or neutral (required)")
	logCmd.Flags().String("at", "", "when it happened, RFC3339 (default: now)")
	logCmd.Flags().Float64("sentiment", 0, "sentiment score in [0,1]")
	logCmd.Flags().String("label", "", "sentiment label: positive, neutral or negative")
	logCmd.Flags().String("outcome", "", "free-form outcome")
}

func interactionRequestFromFlags(cmd *cobra.Command) (api.InteractionRequest, error) {
	var req api.InteractionRequest
	dir, _ := cmd.Flags().GetString("direction")
	if dir == "" {
		return req, fmt.Errorf("--direction is required")
	}
	if _, err := scoring.ParseDirection(dir); err != nil {
		return req, err
	}
	req.Direction = dir

	req.OccurredAt, _ = cmd.Flags().GetString("at")
	if req.OccurredAt == "" {
		req.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	if cmd.Flags().Changed("sentiment") {
		v, _ := cmd.Flags().GetFloat64("sentiment")
		req.Sentiment = &v
	}
	req.SentimentLabel, _ = cmd.Flags().GetString("label")
	req.Outcome, _ = cmd.Flags().GetString("outcome")
	return req, nil
}

func logInteraction(ctx context.Context, c *apiClient, contactID string, req api.InteractionRequest) (storage.Interaction, error) {
	var out storage.Interaction
	err := c.postJSON(ctx, "/contacts/"+url.PathEscape(contactID)+"/interactions", req, &out)
	return out, err
}

// --- trust ---

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Inspect and recompute trust tiers",
}

var trustShowCmd = &cobra.Command{
	Use:   "show <contact-id>",
	Short: "Show a contact's trust signals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var in storage.TrustInsight
		if err := client.getJSON(cmd.Context(), "/contacts/"+url.PathEscape(args[0])+"/trust", &in); err != nil {
			return err
		}
		return render(os.Stdout, in, func(w io.Writer) {
			writeInsight(w, in)
		})
	},
}

var trustRecomputeCmd = &cobra.Command{
	Use:   "recompute [contact-id]",
	Short: "Recompute trust for one contact, or all with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return fmt.Errorf("give a contact id or --all, not both")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if all {
			var sum trust.Summary
			if err := client.postJSON(cmd.Context(), "/trust/recompute", nil, &sum); err != nil {
				return err
			}
			return render(os.Stdout, sum, func(w io.Writer) {
				printSuccess("Recomputed %d/%d contacts (%d failed) in %s", sum.Updated, sum.Total, sum.Failed, sum.Duration.Round(time.Millisecond))
			})
		}

		var in storage.TrustInsight
		if err := client.postJSON(cmd.Context(), "/contacts/"+url.PathEscape(args[0])+"/trust/recompute", nil, &in); err != nil {
			return err
		}
		return render(os.Stdout, in, func(w io.Writer) {
			writeInsight(w, in)
		})
	},
}

var trustListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trust insights, optionally filtered by tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, _ := cmd.Flags().GetString("tier")
		if tier != "" {
			if _, err := scoring.ParseTier(tier); err != nil {
				return err
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		insights, err := listInsights(cmd.Context(), client, tier)
		if err != nil {
			return err
		}
		return render(os.Stdout, insights, func(w io.Writer) {
			writeInsightTable(w, insights)
		})
	},
}

func init() {
	trustRecomputeCmd.Flags().Bool("all", false, "recompute every contact")
	trustListCmd.Flags().String("tier", "", "only this tier: rooted, growing, dormant, frayed")
	trustCmd.AddCommand(trustShowCmd, trustRecomputeCmd, trustListCmd)
}

func listInsights(ctx context.Context, c *apiClient, tier string) ([]storage.TrustInsight, error) {
	path := "/trust"
	if tier != "" {
		path += "?" + url.Values{"tier": {tier}}.Encode()
	}
	var out []storage.TrustInsight
	err := c.getJSON(ctx, path, &out)
	return out, err
}

func writeInsight(w io.Writer, in storage.TrustInsight) {
	fmt.Fprintf(w, "%s %s (score %.2f)\n", colorize(colorBold, "tier:"), in.Tier, in.Score)
	fmt.Fprintf(w, "  response:     %.2f\n", in.Response)
	fmt.Fprintf(w, "  frequency:    %.2f\n", in.Frequency)
	fmt.Fprintf(w, "  reciprocity:  %.2f\n", in.Reciprocity)
	fmt.Fprintf(w, "  sentiment:    %.2f\n", in.Sentiment)
	fmt.Fprintf(w, "  last contact: %s\n", daysLabel(in.DaysSinceLast))
	fmt.Fprintf(w, "  computed:     %s\n", in.ComputedAt.Local().Format(time.DateTime))
}

func writeInsightTable(w io.Writer, insights []storage.TrustInsight) {
	if len(insights) == 0 {
		fmt.Fprintln(w, "No trust insights found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTACT\tTIER\tSCORE\tLAST CONTACT")
	for _, in := range insights {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", shortID(in.ContactID), in.Tier, in.Score, daysLabel(in.DaysSinceLast))
	}
	tw.Flush()
}

func daysLabel(days int) string {
	switch {
	case days < 0:
		return "never"
	case days == 0:
		return "today"
	case days == 1:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}

// tierSummary renders per-tier counts in rank order, e.g. "rooted 3, growing 1".
func tierSummary(insights []storage.TrustInsight) string {
	counts := make(map[scoring.Tier]int)
	for _, in := range insights {
		counts[in.Tier]++
	}
	var parts []string
	for _, t := range scoring.Tiers {
		if n := counts[t]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", t, n))
		}
	}
	if len(parts) == 0 {
		return "none computed"
	}
	return strings.Join(parts, ", ")
}

// --- matching ---

var matchCmd = &cobra.Command{
	Use:   "match <text>",
	Short: "Find contacts relevant to free text",
	Long: `Find contacts whose profiles are semantically close to the given text.

Examples:
  rhiz match "raising a seed round for a climate startup"
  rhiz match "someone who knows Kubernetes operators" --k 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var matches []matching.Match
		req := api.MatchRequest{Text: strings.Join(args, " "), K: k}
		if err := client.postJSON(cmd.Context(), "/match", req, &matches); err != nil {
			return err
		}
		return render(os.Stdout, matches, func(w io.Writer) {
			writeMatches(w, matches)
		})
	},
}

var similarCmd = &cobra.Command{
	Use:   "similar <contact-id>",
	Short: "Find contacts similar to a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		matches, err := getMatches(cmd.Context(), client, "/contacts/"+url.PathEscape(args[0])+"/similar", k)
		if err != nil {
			return err
		}
		return render(os.Stdout, matches, func(w io.Writer) {
			writeMatches(w, matches)
		})
	},
}

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Manage goals and match contacts against them",
}

var goalsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, _ := cmd.Flags().GetString("description")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var g storage.Goal
		if err := client.postJSON(cmd.Context(), "/goals", api.GoalRequest{Title: args[0], Description: desc}, &g); err != nil {
			return err
		}
		return render(os.Stdout, g, func(w io.Writer) {
			printSuccess("Added goal %s (%s)", g.Title, g.ID)
		})
	},
}

var goalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var goals []storage.Goal
		if err := client.getJSON(cmd.Context(), fmt.Sprintf("/goals?limit=%d", limit), &goals); err != nil {
			return err
		}
		return render(os.Stdout, goals, func(w io.Writer) {
			if len(goals) == 0 {
				fmt.Fprintln(w, "No goals found.")
				return
			}
			for _, g := range goals {
				fmt.Fprintf(w, "  %s  %s\n", colorize(colorCyan, shortID(g.ID)), truncate(g.Title, 70))
			}
		})
	},
}

var goalsMatchCmd = &cobra.Command{
	Use:   "match <goal-id>",
	Short: "Rank contacts against a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		matches, err := getMatches(cmd.Context(), client, "/goals/"+url.PathEscape(args[0])+"/matches", k)
		if err != nil {
			return err
		}
		return render(os.Stdout, matches, func(w io.Writer) {
			writeMatches(w, matches)
		})
	},
}

func init() {
	matchCmd.Flags().Int("k", 0, "number of matches (default: matching.top_k)")
	similarCmd.Flags().Int("k", 0, "number of matches (default: matching.top_k)")
	goalsAddCmd.Flags().String("description", "", "longer description of the goal")
	goalsListCmd.Flags().Int("limit", 50, "maximum number of goals to list")
	goalsMatchCmd.Flags().Int("k", 0, "number of matches (default: matching.top_k)")
	goalsCmd.AddCommand(goalsAddCmd, goalsListCmd, goalsMatchCmd)
}

func getMatches(ctx context.Context, c *apiClient, path string, k int) ([]matching.Match, error) {
	if k > 0 {
		path += "?" + url.Values{"k": {strconv.Itoa(k)}}.Encode()
	}
	var out []matching.Match
	err := c.getJSON(ctx, path, &out)
	return out, err
}

func writeMatches(w io.Writer, matches []matching.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matches found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SIMILARITY\tNAME\tTIER\tTRUST\tID")
	for _, m := range matches {
		tier := string(m.Tier)
		if tier == "" {
			tier = "-"
		}
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%.2f\t%s\n", m.Similarity, truncate(m.Contact.Name, 30), tier, m.TrustScore, shortID(m.Contact.ID))
	}
	tw.Flush()
}

// --- outreach ---

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest contacts worth reaching out to",
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetInt("quiet-days")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		sugg, err := getSuggestions(cmd.Context(), client, quiet, limit)
		if err != nil {
			return err
		}
		return render(os.Stdout, sugg, func(w io.Writer) {
			writeSuggestions(w, sugg)
		})
	},
}

var draftCmd = &cobra.Command{
	Use:   "draft <contact-id>",
	Short: "Draft an outreach message with the local model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		purpose, _ := cmd.Flags().GetString("purpose")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Drafting message...")
		var d outreach.Draft
		if err := client.postJSON(cmd.Context(), "/contacts/"+url.PathEscape(args[0])+"/outreach/draft", api.DraftRequest{Purpose: purpose}, &d); err != nil {
			return err
		}
		return render(os.Stdout, d, func(w io.Writer) {
			if d.Subject != "" {
				fmt.Fprintf(w, "%s %s\n\n", colorize(colorBold, "Subject:"), d.Subject)
			}
			fmt.Fprintln(w, d.Message)
		})
	},
}

func init() {
	suggestCmd.Flags().Int("quiet-days", 0, "minimum days since last contact (default: outreach.quiet_days)")
	suggestCmd.Flags().Int("limit", 10, "maximum number of suggestions")
	draftCmd.Flags().String("purpose", "", "what the message is for")
}

func getSuggestions(ctx context.Context, c *apiClient, quietDays, limit int) ([]outreach.Suggestion, error) {
	q := url.Values{}
	if quietDays > 0 {
		q.Set("quiet_days", strconv.Itoa(quietDays))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/outreach/suggestions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []outreach.Suggestion
	err := c.getJSON(ctx, path, &out)
	return out, err
}

func writeSuggestions(w io.Writer, sugg []outreach.Suggestion) {
	if len(sugg) == 0 {
		fmt.Fprintln(w, "Nobody needs a nudge right now.")
		return
	}
	for _, s := range sugg {
		fmt.Fprintf(w, "%s  %s (%s)\n", colorize(colorCyan, fmt.Sprintf("%.2f", s.Priority)), s.Contact.Name, s.Tier)
		fmt.Fprintf(w, "      %s\n", s.Reason)
	}
}

// --- data ---

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Export stored data",
}

var dataExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export contacts, interactions and trust insights as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var writer io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		n, err := exportData(cmd.Context(), client, writer)
		if err != nil {
			return err
		}
		if output != "" {
			printSuccess("Exported %d records to %s", n, output)
		}
		return nil
	},
}

func init() {
	dataExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	dataCmd.AddCommand(dataExportCmd)
}

const exportPageSize = 100

type exportRecord struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// exportData writes one JSON object per line and returns the record count.
func exportData(ctx context.Context, c *apiClient, w io.Writer) (int, error) {
	enc := json.NewEncoder(w)
	n := 0
	emit := func(kind string, v any) error {
		if err := enc.Encode(exportRecord{Type: kind, Data: v}); err != nil {
			return fmt.Errorf("writing %s: %w", kind, err)
		}
		n++
		return nil
	}

	var ids []string
	for offset := 0; ; {
		page, err := listContacts(ctx, c, exportPageSize, offset)
		if err != nil {
			return n, fmt.Errorf("exporting contacts: %w", err)
		}
		for _, contact := range page {
			if err := emit("contact", contact); err != nil {
				return n, err
			}
			ids = append(ids, contact.ID)
		}
		if len(page) < exportPageSize {
			break
		}
		offset += len(page)
	}

	for _, id := range ids {
		history, err := listHistory(ctx, c, id, "")
		if err != nil {
			return n, fmt.Errorf("exporting interactions for %s: %w", id, err)
		}
		for _, ix := range history {
			if err := emit("interaction", ix); err != nil {
				return n, err
			}
		}
	}

	insights, err := listInsights(ctx, c, "")
	if err != nil {
		return n, fmt.Errorf("exporting trust insights: %w", err)
	}
	for _, in := range insights {
		if err := emit("trust_insight", in); err != nil {
			return n, err
		}
	}
	return n, nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		return render(os.Stdout, keys, func(w io.Writer) {
			for _, k := range keys {
				fmt.Fprintf(w, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
			}
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configSetCmd.ValidArgs = config.ValidKeys()
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
