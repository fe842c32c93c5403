package mcp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestHTTPClientFor_NoAuth(t *testing.T) {
	c, err := httpClientFor(ServerConfig{Name: "plain"})
	if err != nil {
		t.Fatalf("httpClientFor: %v", err)
	}
	if c != nil {
		t.Error("expected nil client when no headers or auth are configured")
	}
}

func TestHTTPClientFor_StaticHeaders(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Api-Key")
	}))
	defer srv.Close()

	c, err := httpClientFor(ServerConfig{Headers: map[string]string{"X-Api-Key": "k1"}})
	if err != nil {
		t.Fatalf("httpClientFor: %v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got != "k1" {
		t.Errorf("X-Api-Key = %q, want k1", got)
	}
}

func TestHTTPClientFor_OAuthClientCredentials(t *testing.T) {
	var tokenRequests atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenRequests.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if gt := r.PostForm.Get("grant_type"); gt != "client_credentials" {
			t.Errorf("grant_type = %q", gt)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	var auth, key []string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		key = append(key, r.Header.Get("X-Tenant"))
	}))
	defer api.Close()

	c, err := httpClientFor(ServerConfig{
		Headers: map[string]string{"X-Tenant": "acme"},
		Auth: AuthConfig{
			Type:         authOAuthClientCredentials,
			TokenURL:     tokenSrv.URL,
			ClientID:     "id",
			ClientSecret: "secret",
			Scopes:       []string{"tools"},
		},
	})
	if err != nil {
		t.Fatalf("httpClientFor: %v", err)
	}

	for range 2 {
		resp, err := c.Get(api.URL)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
	}

	for i := range auth {
		if !strings.EqualFold(auth[i], "Bearer tok-1") {
			t.Errorf("request %d Authorization = %q", i, auth[i])
		}
		if key[i] != "acme" {
			t.Errorf("request %d X-Tenant = %q", i, key[i])
		}
	}
	if n := tokenRequests.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1 (token should be cached)", n)
	}
}

func TestHTTPClientFor_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
	}{
		{"unknown auth", ServerConfig{Auth: AuthConfig{Type: "kerberos"}}},
		{"oauth without token url", ServerConfig{Auth: AuthConfig{Type: authOAuthClientCredentials, ClientID: "id"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := httpClientFor(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTransportFor(t *testing.T) {
	if _, err := transportFor(ServerConfig{Name: "x", URL: "http://localhost", Transport: "websocket"}); err == nil {
		t.Error("expected error for unsupported transport")
	}
	if _, err := transportFor(ServerConfig{Name: "x"}); err == nil {
		t.Error("expected error for missing url")
	}
	tr, err := transportFor(ServerConfig{Name: "x", URL: "http://localhost/sse", Transport: "sse"})
	if err != nil {
		t.Fatalf("transportFor: %v", err)
	}
	if _, ok := tr.(*mcp.SSEClientTransport); !ok {
		t.Errorf("transport = %T, want *mcp.SSEClientTransport", tr)
	}
}
