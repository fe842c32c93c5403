package transport

import (
	"encoding/json"
	"net/http"

	"github.com/rhuss/chorus/pkg/api"
)

// HTTPStatusFromError maps an error kind to the corresponding HTTP status
// code. Upstream failures surface as 502 since the caller's request was
// well formed.
func HTTPStatusFromError(err *api.Error) int {
	switch err.Kind {
	case api.ErrorKindInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorKindNotFound, api.ErrorKindToolNotFound:
		return http.StatusNotFound
	case api.ErrorKindTurnInFlight:
		return http.StatusConflict
	case api.ErrorKindBackendUnsupported:
		return http.StatusUnprocessableEntity
	case api.ErrorKindTransport, api.ErrorKindProviderRejection, api.ErrorKindSchemaMismatch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.Error, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError normalizes err and writes it with the status derived from
// its kind.
func WriteAPIError(w http.ResponseWriter, err error) {
	apiErr := api.Normalize("", err)
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}
