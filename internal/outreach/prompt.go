package outreach

import (
	"fmt"
	"strings"

	"github.com/rhizhq/rhiz/internal/engine"
	"github.com/rhizhq/rhiz/internal/storage"
)

const systemPrompt = `You help the user reconnect with people in their network. Write a short, warm, specific outreach message in the user's voice. Your output must be ONLY a single valid JSON object with the fields "subject" and "message". Do not include any other text, prose, or markdown.

Rules:
- Keep the message under 120 words.
- Reference the person's role or company when known; never invent shared history.
- Match the tone to the relationship: casual for personal ties, concise for professional ones.
- If the relationship has cooled, acknowledge the gap lightly without apologising at length.`

// BuildPrompt constructs the chat messages for drafting an outreach message.
func BuildPrompt(c storage.Contact, in storage.TrustInsight, purpose string) []engine.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[Contact]\nName: %s\n", c.Name)
	if c.Role != "" {
		fmt.Fprintf(&sb, "Role: %s\n", c.Role)
	}
	if c.Company != "" {
		fmt.Fprintf(&sb, "Company: %s\n", c.Company)
	}
	fmt.Fprintf(&sb, "Relationship: %s\n", c.RelationshipType)
	if c.Notes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", c.Notes)
	}

	if in.Tier != "" {
		fmt.Fprintf(&sb, "\n[Relationship state]\nTier: %s\n", in.Tier)
		if in.DaysSinceLast >= 0 {
			fmt.Fprintf(&sb, "Days since last contact: %d\n", in.DaysSinceLast)
		}
	}

	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		purpose = "catch up and keep the relationship warm"
	}
	fmt.Fprintf(&sb, "\n[Purpose]\n%s", purpose)

	return []engine.Message{
		engine.System(systemPrompt),
		engine.User(sb.String()),
	}
}

func draftSchema() *engine.Schema {
	return engine.ObjectSchema().
		Field("subject", "short subject line", false).
		Field("message", "the outreach message body", true)
}
