package engine

// Chat roles understood by the backend.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System and User build the two turns every Rhiz prompt is made of.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Schema constrains a chat reply to a flat JSON object, e.g. an outreach
// draft with a subject and a message.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes one field of the reply object.
type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ObjectSchema starts an empty object schema; add fields with Field.
func ObjectSchema() *Schema {
	return &Schema{Type: "object", Properties: map[string]SchemaProperty{}}
}

// Field adds a string field and returns s for chaining.
func (s *Schema) Field(name, description string, required bool) *Schema {
	s.Properties[name] = SchemaProperty{Type: "string", Description: description}
	if required {
		s.Required = append(s.Required, name)
	}
	return s
}

// PullProgress reports download progress while a missing model is fetched
// at startup.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// Percent is the completed share in [0,100], or -1 when the total is unknown.
func (p PullProgress) Percent() float64 {
	if p.Total <= 0 {
		return -1
	}
	pct := float64(p.Completed) / float64(p.Total) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
