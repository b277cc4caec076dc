package handlers

import (
	"net/http"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/milestones/internal/app"
	"github.com/shrimpsizemoose/milestones/internal/models"
	"github.com/shrimpsizemoose/milestones/internal/roster"
)

// SessionHandler drives the editing session bound to the request cookie.
type SessionHandler struct {
	service *app.Service
	now     func() time.Time
}

func NewSessionHandler(service *app.Service) *SessionHandler {
	return &SessionHandler{service: service, now: time.Now}
}

type rateRequest struct {
	Category models.Category `json:"category"`
	Value    models.Rating   `json:"value"`
}

type annotateRequest struct {
	Category models.Category `json:"category"`
	Text     string          `json:"text"`
}

type imageRequest struct {
	Image *string `json:"image"`
}

type sessionState struct {
	StudentID *int64            `json:"studentId"`
	Ratings   models.Ratings    `json:"assessmentData"`
	Changed   []models.Category `json:"recentChanges"`
}

// session returns the caller's editing session. Without one it answers 409,
// the same as a session with no student selected.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*roster.Session, bool) {
	sess, ok := h.service.LookupSession(r)
	if !ok {
		writeError(w, http.StatusConflict, roster.ErrNoSelection.Error())
		return nil, false
	}
	return sess, true
}

func state(sess *roster.Session) sessionState {
	st := sessionState{Ratings: sess.Ratings(), Changed: []models.Category{}}
	if id, ok := sess.StudentID(); ok {
		st.StudentID = &id
	}
	changed := sess.Changed()
	for _, c := range models.Categories {
		if changed.Has(c) {
			st.Changed = append(st.Changed, c)
		}
	}
	return st
}

func (h *SessionHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.service.LookupSession(r)
	if !ok {
		writeJSON(w, http.StatusOK, state(roster.NewSession()))
		return
	}
	writeJSON(w, http.StatusOK, state(sess))
}

func (h *SessionHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
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

	sess, err := h.service.OpenSession(w, r)
	if err != nil {
		logger.Error.Printf("Failed to open editing session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to open session")
		return
	}
	sess.Select(student)
	writeJSON(w, http.StatusOK, state(sess))
}

func (h *SessionHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	changed, err := sess.Rate(req.Category, req.Value, h.now())
	if err != nil {
		writeRosterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

func (h *SessionHandler) HandleAnnotate(w http.ResponseWriter, r *http.Request) {
	var req annotateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Annotate(req.Category, req.Text, h.now()); err != nil {
		writeRosterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state(sess))
}

func (h *SessionHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.SetImage(req.Image); err != nil {
		writeRosterError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	summary, err := sess.Summary()
	if err != nil {
		writeRosterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *SessionHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	student, err := sess.Commit(r.Context(), h.service.Roster)
	if err != nil {
		writeRosterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}
