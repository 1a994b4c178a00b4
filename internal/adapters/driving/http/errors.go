package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/errkind"
	"github.com/sspi-index/sspi-engine/internal/logger"
)

// errorBody is the JSON envelope of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps an error to its HTTP status and reported kind.
func statusFor(err error) (int, string) {
	kind := errkind.KindOf(err)
	for _, target := range []error{
		domain.ErrNotFound,
		domain.ErrUnknownDataset,
		domain.ErrUnknownIndicator,
		domain.ErrUnknownCollection,
		domain.ErrUnknownCountryGroup,
	} {
		if errors.Is(err, target) {
			if kind == errkind.Internal {
				kind = "not_found"
			}
			return http.StatusNotFound, kind
		}
	}

	switch kind {
	case "query":
		return http.StatusBadRequest, kind
	case "configuration", "data":
		return http.StatusUnprocessableEntity, kind
	case "integrity":
		return http.StatusConflict, kind
	case "upstream":
		return http.StatusBadGateway, kind
	case "authorization":
		return http.StatusUnauthorized, kind
	}
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrUnsafeFilter) {
		return http.StatusBadRequest, "query"
	}
	return http.StatusInternalServerError, kind
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		logger.Debug("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encoding response: %v", err)
	}
}
