package handlers

import (
	"net/http"

	"github.com/shrimpsizemoose/milestones/internal/app"
	"github.com/shrimpsizemoose/milestones/internal/models"
	"github.com/shrimpsizemoose/milestones/internal/scoring"
)

type RosterHandler struct {
	service *app.Service
}

func NewRosterHandler(service *app.Service) *RosterHandler {
	return &RosterHandler{service: service}
}

func (h *RosterHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var info models.StudentInfo
	if !decodeBody(w, r, &info) {
		return
	}

	student, err := h.service.Roster.Add(r.Context(), info)
	if err != nil {
		writeRosterError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

func (h *RosterHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid student id")
		return
	}

	removed, err := h.service.Roster.Remove(r.Context(), id)
	if err != nil {
		writeRosterError(w, err)
		return
	}
	if removed {
		h.service.Sessions.ClearStudent(id)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *RosterHandler) HandleUpdateInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid student id")
		return
	}

	var info models.StudentInfo
	if !decodeBody(w, r, &info) {
		return
	}

	student, err := h.service.Roster.UpdateInfo(id, info)
	if err != nil {
		writeRosterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (h *RosterHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Roster.Save(r.Context()); err != nil {
		writeRosterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Students saved successfully"})
}

// HandleSummary reports the stored ratings of one student. Nothing is
// marked as recently changed outside an editing session.
func (h *RosterHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid student id")
		return
	}

	student, err := h.service.Roster.Get(id)
	if err != nil {
		writeRosterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoring.Summarize(student.AssessmentData, nil))
}

type categoryInfo struct {
	Name       models.Category `json:"name"`
	Skills     []models.Skill  `json:"skills"`
	Guidelines []string        `json:"guidelines"`
}

func (h *RosterHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	categories := make([]categoryInfo, 0, len(models.Categories))
	for _, c := range models.Categories {
		categories = append(categories, categoryInfo{
			Name:       c,
			Skills:     c.Skills(),
			Guidelines: c.Guidelines(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"skills":     models.Skills,
		"ratings":    models.RatingLevels,
	})
}
