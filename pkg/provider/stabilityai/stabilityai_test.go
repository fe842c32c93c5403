package stabilityai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhuss/chorus/pkg/api"
)

func TestGenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/core" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if r.FormValue("prompt") != "a castle" || r.FormValue("output_format") != "png" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		fmt.Fprint(w, `{"image":"AAAA","finish_reason":"SUCCESS","seed":42}`)
	}))
	defer srv.Close()

	img, err := New(srv.URL, "sk", time.Second).GenerateImage(context.Background(), "a castle", "core")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if img.URL != "data:image/png;base64,AAAA" {
		t.Errorf("URL = %q", img.URL)
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
		{"filtered", 200, `{"image":"","finish_reason":"CONTENT_FILTERED"}`, api.ErrorKindProviderRejection, true},
		{"moderation 403", 403, `{"name":"content_moderation","errors":["Your request was flagged"]}`, api.ErrorKindProviderRejection, true},
		{"bad key", 401, `{"name":"unauthorized","errors":["missing authorization header"]}`, api.ErrorKindProviderRejection, false},
		{"bad gateway", 502, `<html>`, api.ErrorKindTransport, false},
		{"missing image", 200, `{"finish_reason":"SUCCESS"}`, api.ErrorKindSchemaMismatch, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL, "", time.Second).GenerateImage(context.Background(), "p", "core")
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
