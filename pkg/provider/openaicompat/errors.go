package openaicompat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rhuss/chorus/pkg/api"
)

// MapHTTPError converts a non-2xx response into an *api.Error. A body that
// carries a structured error object is a provider rejection; anything else
// is a transport failure.
func MapHTTPError(providerName string, resp *http.Response) *api.Error {
	chatErr := ExtractError(resp.Body)
	if chatErr == nil {
		return api.NewTransportError(providerName,
			fmt.Sprintf("unexpected backend response (HTTP %d)", resp.StatusCode))
	}
	return rejection(providerName, resp.StatusCode, chatErr)
}

// MapNetworkError converts a connection-level failure into an *api.Error.
func MapNetworkError(providerName string, err error) *api.Error {
	return api.Normalize(providerName, err)
}

// ExtractError parses a Chat Completions error body. It returns nil when
// the body is not a structured error.
func ExtractError(body io.Reader) *ChatError {
	if body == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(body, 8192))
	if err != nil || len(data) == 0 {
		return nil
	}
	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil || errResp.Error == nil || errResp.Error.Message == "" {
		return nil
	}
	return errResp.Error
}

func rejection(providerName string, status int, e *ChatError) *api.Error {
	return api.NewProviderRejection(providerName, status, e.Message, isPolicyViolation(e))
}

func isPolicyViolation(e *ChatError) bool {
	code, _ := e.Code.(string)
	if code == "content_policy_violation" || code == "content_filter" {
		return true
	}
	return strings.Contains(e.Type, "content_policy") ||
		strings.Contains(strings.ToLower(e.Message), "safety system")
}
