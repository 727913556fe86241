package accesserrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// StatusCode maps an error to the HTTP status code spec §7 assigns it.
// NotFound and AlreadyExists share the 404/409 split on Kind; anything not
// recognized as an *Error falls back to 500.
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists, KindCycleDetected:
		return http.StatusConflict
	case KindMonotonicityViolated, KindFlushFailed, KindDrainTimeout, KindNextEventRetrievalFailed:
		return http.StatusInternalServerError
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindPostprocessingFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Response is the JSON body written for a failed request.
type Response struct {
	Error   bool   `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WriteHTTP maps err to a status code per spec §7 and writes a JSON body,
// logging server errors (5xx) at error level and client errors at warn.
func WriteHTTP(w http.ResponseWriter, log *zap.Logger, err error) {
	status := StatusCode(err)
	body := Response{Error: true, Kind: "INTERNAL", Message: err.Error()}
	if e, ok := As(err); ok {
		body.Kind = string(e.Kind)
		body.Message = e.Message
		if e.Cause != nil {
			body.Message = e.Message + ": " + e.Cause.Error()
		}
	}

	if status >= 500 {
		log.Error("request failed", zap.Int("status", status), zap.String("kind", body.Kind), zap.Error(err))
	} else {
		log.Warn("request rejected", zap.Int("status", status), zap.String("kind", body.Kind))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
