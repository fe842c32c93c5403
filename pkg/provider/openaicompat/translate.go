package openaicompat

import (
	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/provider"
)

// TranslateToChat converts a ChatRequest into a streaming Chat Completions
// request body.
func TranslateToChat(req *provider.ChatRequest) ChatCompletionRequest {
	cr := ChatCompletionRequest{
		Model:  req.Model,
		Stream: true,
	}

	for _, m := range req.Messages {
		cm := ChatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		if m.Role == api.RoleFunction {
			cm.Name = m.Name
		}
		cr.Messages = append(cr.Messages, cm)
	}

	if len(req.Functions) > 0 {
		cr.Functions = req.Functions
		cr.FunctionCall = "auto"
	}

	return cr
}
