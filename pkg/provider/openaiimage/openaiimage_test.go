package openaiimage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhuss/chorus/pkg/api"
)

func TestGenerateImage(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		reply    string
		wantSize string
		wantURL  string
	}{
		{
			name:     "dall-e-3 url",
			model:    "dall-e-3",
			reply:    `{"data":[{"url":"https://cdn/img.png","revised_prompt":"a red fox"}]}`,
			wantSize: "1024x1024",
			wantURL:  "https://cdn/img.png",
		},
		{
			name:     "dall-e-2 base64",
			model:    "dall-e-2",
			reply:    `{"data":[{"b64_json":"iVBORw0K"}]}`,
			wantSize: "512x512",
			wantURL:  "data:image/png;base64,iVBORw0K",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got generationRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/images/generations" {
					t.Errorf("path = %q", r.URL.Path)
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				fmt.Fprint(w, tt.reply)
			}))
			defer srv.Close()

			img, err := New(srv.URL, "sk", time.Second).GenerateImage(context.Background(), "a fox", tt.model)
			if err != nil {
				t.Fatalf("GenerateImage: %v", err)
			}
			if img.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", img.URL, tt.wantURL)
			}
			if got.N != 1 || got.Size != tt.wantSize || got.Model != tt.model {
				t.Errorf("request = %+v", got)
			}
		})
	}
}

func TestGenerateImageErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   api.ErrorKind
		wantPolicy bool
	}{
		{"policy", 400, `{"error":{"message":"Your request was rejected as a result of our safety system.","type":"invalid_request_error","code":"content_policy_violation"}}`, api.ErrorKindProviderRejection, true},
		{"empty data", 200, `{"data":[]}`, api.ErrorKindSchemaMismatch, false},
		{"not json", 200, `<html>`, api.ErrorKindSchemaMismatch, false},
		{"gateway", 504, `upstream timeout`, api.ErrorKindTransport, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL, "", time.Second).GenerateImage(context.Background(), "p", "dall-e-3")
			var apiErr *api.Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v", err)
			}
			if apiErr.Kind != tt.wantKind || apiErr.PolicyViolation != tt.wantPolicy {
				t.Errorf("got %+v", apiErr)
			}
		})
	}
}
