package engine

import "testing"

func TestObjectSchema_Fields(t *testing.T) {
	s := ObjectSchema().
		Field("subject", "short subject line", false).
		Field("message", "body", true)

	if s.Type != "object" {
		t.Errorf("Type = %q, want object", s.Type)
	}
	if len(s.Properties) != 2 || s.Properties["message"].Type != "string" {
		t.Errorf("Properties = %+v", s.Properties)
	}
	if len(s.Required) != 1 || s.Required[0] != "message" {
		t.Errorf("Required = %v, want [message]", s.Required)
	}
}

func TestMessageBuilders(t *testing.T) {
	if m := System("rules"); m.Role != RoleSystem || m.Content != "rules" {
		t.Errorf("System = %+v", m)
	}
	if m := User("hi"); m.Role != RoleUser || m.Content != "hi" {
		t.Errorf("User = %+v", m)
	}
}

func TestPullProgress_Percent(t *testing.T) {
	tests := []struct {
		p    PullProgress
		want float64
	}{
		{PullProgress{Status: "pulling manifest"}, -1},
		{PullProgress{Total: 200, Completed: 50}, 25},
		{PullProgress{Total: 100, Completed: 100}, 100},
		{PullProgress{Total: 100, Completed: 150}, 100},
	}
	for _, tt := range tests {
		if got := tt.p.Percent(); got != tt.want {
			t.Errorf("Percent(%+v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
