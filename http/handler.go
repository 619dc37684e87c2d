package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadmesh/mesh"
	"github.com/aukilabs/quadmesh/models"
	"github.com/aukilabs/quadmesh/voxel"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeInvalidParameter = "http_invalid_parameter"
	ErrTypeFeatureDisabled  = "http_feature_disabled"
)

func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func HandleReadyCheck(readinessCheck func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readinessCheck() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func HandleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(version))
	}
}

// HandleWithCORS allows cross-origin requests to the given handler and
// answers preflight requests.
func HandleWithCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusCode(err)
	if status >= http.StatusInternalServerError {
		logs.Error(err)
	} else {
		logs.WithTag("status", status).Debug(err.Error())
	}

	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Type:  errors.Type(err),
	})
}

func statusCode(err error) int {
	switch errors.Type(err) {
	case models.ErrTypeMeshNotFound:
		return http.StatusNotFound

	case mesh.ErrTypeInvalidSTL,
		voxel.ErrTypeInvalidLattice,
		voxel.ErrTypeInvalidBounds,
		ErrTypeInvalidParameter:
		return http.StatusBadRequest

	case ErrTypeFeatureDisabled:
		return http.StatusForbidden

	default:
		return http.StatusInternalServerError
	}
}
