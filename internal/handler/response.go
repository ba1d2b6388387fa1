package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/chamahub/backend/internal/contextkeys"
	"github.com/chamahub/backend/internal/domain"
)

const maxBodyBytes = 1 << 20

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("failed to encode JSON response: %v", err)
		}
	}
}

// Error writes an error JSON response, using AppError status codes when available.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := domain.AsAppError(err); ok {
		if appErr.Code >= http.StatusInternalServerError {
			log.Printf("[HTTP] %s %s (request=%s): %v", r.Method, r.URL.Path, requestID(r), err)
		}
		JSON(w, appErr.Code, map[string]string{"error": appErr.Message, "kind": string(appErr.Kind)})
		return
	}
	log.Printf("[HTTP] unhandled error on %s %s (request=%s): %v", r.Method, r.URL.Path, requestID(r), err)
	JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// DecodeJSON decodes a JSON request body into the given struct.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrBadRequest("invalid JSON body")
	}
	return nil
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(contextkeys.RequestID).(string)
	return id
}
