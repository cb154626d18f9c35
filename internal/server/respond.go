package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"filehost/internal/filehost"
)

// maxJSONBody bounds the size of JSON request bodies.
const maxJSONBody = 1 << 20

// errBadRequest marks malformed requests that never reach the service.
var errBadRequest = errors.New("malformed request")

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor classifies a service error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, filehost.ErrInvalidPath),
		errors.Is(err, filehost.ErrNoFiles),
		errors.Is(err, filehost.ErrMissingField),
		errors.Is(err, filehost.ErrPasswordTooLong),
		errors.Is(err, filehost.ErrPayloadTooLarge),
		errors.Is(err, filehost.ErrTooManyFiles),
		errors.Is(err, filehost.ErrUnsupportedType),
		errors.Is(err, filehost.ErrDuplicateDirectory),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, filehost.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, filehost.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends {"error": msg}. Internal errors are logged and replaced
// by a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// credential returns the password supplied with the request. The X-Password
// header wins over the password query parameter, which wins over the body
// field. Empty values count as absent.
func credential(r *http.Request, bodyPassword string) *string {
	if v := r.Header.Get("X-Password"); v != "" {
		return &v
	}
	if v := r.URL.Query().Get("password"); v != "" {
		return &v
	}
	if bodyPassword != "" {
		return &bodyPassword
	}
	return nil
}
