package outreach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rhizhq/rhiz/internal/engine"
	"github.com/rhizhq/rhiz/internal/storage"
)

const draftTimeout = 30 * time.Second

// ErrEmptyDraft is returned when the model produces no usable text.
var ErrEmptyDraft = errors.New("model returned an empty draft")

// Chatter is the part of engine.Engine the drafter uses.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error)
}

type Draft struct {
	ContactID string `json:"contact_id" yaml:"contactID"`
	Subject   string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Message   string `json:"message" yaml:"message"`
}

// Drafter asks the local chat model for an outreach message.
type Drafter struct {
	chat    Chatter
	model   string
	timeout time.Duration
}

func NewDrafter(chat Chatter, model string) *Drafter {
	return &Drafter{chat: chat, model: model, timeout: draftTimeout}
}

// Draft writes a message to c for the given purpose. A reply that is not the
// requested JSON is used verbatim as the message body.
func (d *Drafter) Draft(ctx context.Context, c storage.Contact, in storage.TrustInsight, purpose string) (Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	raw, err := d.chat.Chat(ctx, d.model, BuildPrompt(c, in, purpose), draftSchema())
	if err != nil {
		return Draft{}, fmt.Errorf("drafting message for %s: %w", c.ID, err)
	}

	out := Draft{ContactID: c.ID}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		slog.Debug("draft reply is not JSON, using raw text", "contact_id", c.ID)
		out.Message = raw
	}
	out.ContactID = c.ID
	out.Subject = strings.TrimSpace(out.Subject)
	out.Message = strings.TrimSpace(out.Message)
	if out.Message == "" {
		return Draft{}, ErrEmptyDraft
	}
	return out, nil
}
