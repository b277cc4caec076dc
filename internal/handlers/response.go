package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/milestones/internal/roster"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps roster error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, roster.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, roster.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, roster.ErrNoSelection):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeRosterError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error.Printf("Roster operation failed: %v", err)
		writeError(w, status, "Storage failure")
		return
	}
	writeError(w, status, err.Error())
}

func studentID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		logger.Debug.Printf("Invalid student id in path: %s", r.URL.Path)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Debug.Printf("Invalid request body on %s: %v", r.URL.Path, err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
