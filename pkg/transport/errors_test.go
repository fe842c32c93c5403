package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/chorus/pkg/api"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		kind       api.ErrorKind
		wantStatus int
	}{
		{api.ErrorKindInvalidRequest, http.StatusBadRequest},
		{api.ErrorKindNotFound, http.StatusNotFound},
		{api.ErrorKindToolNotFound, http.StatusNotFound},
		{api.ErrorKindTurnInFlight, http.StatusConflict},
		{api.ErrorKindBackendUnsupported, http.StatusUnprocessableEntity},
		{api.ErrorKindTransport, http.StatusBadGateway},
		{api.ErrorKindProviderRejection, http.StatusBadGateway},
		{api.ErrorKindSchemaMismatch, http.StatusBadGateway},
		{api.ErrorKind("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got := HTTPStatusFromError(&api.Error{Kind: tt.kind, Message: "test"})
			if got != tt.wantStatus {
				t.Errorf("HTTPStatusFromError(%q) = %d, want %d", tt.kind, got, tt.wantStatus)
			}
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteErrorResponse(rec, api.NewInvalidRequestError("text is required"), http.StatusBadRequest)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error == nil || body.Error.Kind != api.ErrorKindInvalidRequest || body.Error.Message != "text is required" {
		t.Errorf("body = %+v", body.Error)
	}
}

func TestWriteAPIErrorNormalizesPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteAPIError(rec, errors.New("boom"))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	var body api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Kind != api.ErrorKindTransport || body.Error.Message != "boom" {
		t.Errorf("body = %+v", body.Error)
	}
}
