package engine

import (
	"testing"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/backend"
	"github.com/rhuss/chorus/pkg/provider"
)

func TestBuildChatRequest(t *testing.T) {
	history := []api.Message{
		{Role: api.RoleSystem, Content: "stale"},
		{Role: api.RoleUser, Content: "weather?"},
		{Role: api.RoleFunction, Name: "get_current_weather", Content: `{"city":"Oslo"}`},
		{Role: api.RoleUser, Content: "thanks"},
	}
	defs := []provider.FunctionDefinition{{Name: "get_current_weather"}}

	d := backend.Descriptor{ModelID: "gpt-4o", SupportsToolCalls: true}
	req := buildChatRequest("be brief", d, history, defs)

	if req.Model != "gpt-4o" {
		t.Errorf("Model = %q", req.Model)
	}
	if len(req.Messages) != 4 {
		t.Fatalf("Messages = %+v", req.Messages)
	}
	if req.Messages[0] != (api.Message{Role: api.RoleSystem, Content: "be brief"}) {
		t.Errorf("system = %+v", req.Messages[0])
	}
	if req.Messages[2].Name != "get_current_weather" {
		t.Errorf("function message lost its name: %+v", req.Messages[2])
	}
	if len(req.Functions) != 1 {
		t.Errorf("Functions = %+v", req.Functions)
	}

	d.SupportsToolCalls = false
	if req := buildChatRequest("x", d, history, defs); req.Functions != nil {
		t.Errorf("Functions offered to a backend without tool calls: %+v", req.Functions)
	}
}
