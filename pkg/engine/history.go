package engine

import (
	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/backend"
	"github.com/rhuss/chorus/pkg/provider"
)

// buildChatRequest assembles the upstream request for a turn: the system
// prompt followed by the committed log (which already ends with the user
// message of the turn). Tools are only offered to backends that accept
// them.
func buildChatRequest(systemPrompt string, d backend.Descriptor, history []api.Message, defs []provider.FunctionDefinition) *provider.ChatRequest {
	msgs := make([]api.Message, 0, len(history)+1)
	msgs = append(msgs, api.Message{Role: api.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		// A stored system message would compete with the configured prompt.
		if m.Role == api.RoleSystem {
			continue
		}
		msgs = append(msgs, m)
	}

	req := &provider.ChatRequest{Model: d.ModelID, Messages: msgs}
	if d.SupportsToolCalls && len(defs) > 0 {
		req.Functions = defs
	}
	return req
}
