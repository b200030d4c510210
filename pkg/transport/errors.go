package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/animadocs/ragd/pkg/api"
	"github.com/animadocs/ragd/pkg/pipeline"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP
// status code. Transport-level errors (body too large, unsupported
// content type, method not allowed) are handled separately by the
// handlers.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeConflict:
		return http.StatusConflict
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case api.ErrorTypeServerError, api.ErrorTypeModelError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status
// code from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// writePipelineError converts errors surfaced by the pipeline into API
// error responses. Sentinel errors get dedicated statuses; anything else
// is an internal server error.
func writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNotReady):
		WriteAPIError(w, api.NewUnavailableError("index is not ready yet"))
	case errors.Is(err, pipeline.ErrRebuildInProgress):
		WriteAPIError(w, api.NewConflictError("an index rebuild is already in progress"))
	case errors.Is(err, pipeline.ErrNoDocuments):
		WriteAPIError(w, api.NewServerError("no documents found in the configured source directories"))
	default:
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			WriteAPIError(w, apiErr)
			return
		}
		WriteAPIError(w, api.NewServerError(err.Error()))
	}
}

// writeJSON serializes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
