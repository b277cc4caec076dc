package handlers

import (
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/milestones/internal/app"
	"github.com/shrimpsizemoose/milestones/internal/models"
)

// StudentsHandler serves the whole-document endpoint used by the browser
// client: GET returns the roster, POST replaces it. GET keeps pending info
// edits rather than re-reading storage over them.
type StudentsHandler struct {
	service *app.Service
}

func NewStudentsHandler(service *app.Service) *StudentsHandler {
	return &StudentsHandler{service: service}
}

type studentsPayload struct {
	Students []models.Student `json:"students"`
}

func (h *StudentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodPost:
		h.handlePost(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method "+r.Method+" Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *StudentsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.Roster.Reload(r.Context())
	if err != nil {
		logger.Error.Printf("Failed to fetch students: %v", err)
		writeError(w, http.StatusInternalServerError, "Error fetching students")
		return
	}
	writeJSON(w, http.StatusOK, studentsPayload{Students: students})
}

func (h *StudentsHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	var payload studentsPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	if payload.Students == nil {
		payload.Students = []models.Student{}
	}

	if err := h.service.Roster.Replace(r.Context(), payload.Students); err != nil {
		if status := statusFor(err); status != http.StatusInternalServerError {
			writeError(w, status, err.Error())
			return
		}
		logger.Error.Printf("Failed to save students: %v", err)
		writeError(w, http.StatusInternalServerError, "Error saving students")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Students saved successfully"})
}
