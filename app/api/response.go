// Package api holds the JSON helpers shared by the HTTP handlers.
package api

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/evimeria/evimeria-api/internal/logging"
)

// ErrorResponse is the body of every non 2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

func OK(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusOK, payload)
}

func Created(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusCreated, payload)
}

// Error writes {"error": message}. message is shown to the client as is, so
// callers pass a fixed text rather than err.Error().
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DecodeJSON reads a request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Pagination reads offset and limit query parameters. Invalid values fall
// back to the defaults; limit is clamped to [1, maxLimit].
func Pagination(r *http.Request, defaultLimit, maxLimit int) (offset, limit int) {
	limit = defaultLimit

	if oStr := r.URL.Query().Get("offset"); oStr != "" {
		if o, err := strconv.Atoi(oStr); err == nil && o >= 0 {
			offset = o
		}
	}

	if lStr := r.URL.Query().Get("limit"); lStr != "" {
		if l, err := strconv.Atoi(lStr); err == nil {
			switch {
			case l < 1:
				limit = 1
			case l > maxLimit:
				limit = maxLimit
			default:
				limit = l
			}
		}
	}
	return offset, limit
}
