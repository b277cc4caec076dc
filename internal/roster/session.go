package roster

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/milestones/internal/metrics"
	"github.com/shrimpsizemoose/milestones/internal/models"
	"github.com/shrimpsizemoose/milestones/internal/scoring"
)

const sessionIDPrefix = "ms-"

// ErrNoSelection is returned by session operations that need a selected student.
var ErrNoSelection = errors.New("no student selected")

// Session is one assessor's working state: the selected student, an
// unsaved copy of their ratings and the categories changed since selection.
type Session struct {
	mu        sync.Mutex
	studentID int64
	selected  bool
	ratings   models.Ratings
	image     *string
	changed   models.CategorySet
}

func NewSession() *Session {
	return &Session{
		ratings: models.Ratings{},
		changed: models.CategorySet{},
	}
}

// Select loads the student's stored ratings into the buffer and resets the
// recently changed set.
func (s *Session) Select(student models.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.studentID = student.ID
	s.selected = true
	s.ratings = student.AssessmentData.Clone()
	s.image = nil
	if student.Image != nil {
		img := *student.Image
		s.image = &img
	}
	s.changed = models.CategorySet{}
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.studentID = 0
	s.selected = false
	s.ratings = models.Ratings{}
	s.image = nil
	s.changed = models.CategorySet{}
}

// StudentID returns the selected student, if any.
func (s *Session) StudentID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.studentID, s.selected
}

// Rate applies value to the buffered record of category. RatingUnset clears
// the rating and keeps the old value as history. The returned flag is true
// when the value differs from the previous one; only then is the category
// marked as recently changed.
func (s *Session) Rate(category models.Category, value models.Rating, now time.Time) (bool, error) {
	if !category.Valid() {
		return false, validationError("Rate", fmt.Errorf("unknown category %q", category))
	}
	if !value.Valid() {
		return false, validationError("Rate", fmt.Errorf("unknown rating %q", value))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selected {
		return false, ErrNoSelection
	}

	rec, changed := models.ApplyRating(s.ratings.Get(category), value, now)
	s.ratings[category] = rec
	if changed {
		s.changed[category] = true
	}

	metrics.RatingUpdatesTotal.WithLabelValues(string(category), strconv.FormatBool(changed)).Inc()
	logger.Debug.Printf("Student %d: %s rated %s (changed=%v)", s.studentID, category, value, changed)
	return changed, nil
}

// Annotate stores free text for category, typically alongside an Other rating.
func (s *Session) Annotate(category models.Category, text string, now time.Time) error {
	if !category.Valid() {
		return validationError("Annotate", fmt.Errorf("unknown category %q", category))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selected {
		return ErrNoSelection
	}
	s.ratings[category] = models.ApplyOtherText(s.ratings.Get(category), text, now)
	return nil
}

// SetImage replaces the buffered image reference. nil clears it.
func (s *Session) SetImage(image *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selected {
		return ErrNoSelection
	}
	s.image = nil
	if image != nil {
		img := *image
		s.image = &img
	}
	return nil
}

func (s *Session) Ratings() models.Ratings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratings.Clone()
}

// Changed returns a copy of the categories whose value changed since the
// student was selected.
func (s *Session) Changed() models.CategorySet {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(models.CategorySet, len(s.changed))
	for c, v := range s.changed {
		out[c] = v
	}
	return out
}

// Summary computes the distribution and skill profile of the buffer.
func (s *Session) Summary() (scoring.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selected {
		return scoring.Summary{}, ErrNoSelection
	}
	return scoring.Summarize(s.ratings, s.changed), nil
}

// Commit writes the buffer to the selected student through r. The buffer
// and the recently changed set are kept so the assessor can continue.
func (s *Session) Commit(ctx context.Context, r *Roster) (models.Student, error) {
	s.mu.Lock()
	id, selected := s.studentID, s.selected
	ratings := s.ratings.Clone()
	var image *string
	if s.image != nil {
		img := *s.image
		image = &img
	}
	s.mu.Unlock()

	if !selected {
		return models.Student{}, ErrNoSelection
	}
	return r.SaveAssessment(ctx, id, ratings, image)
}

// Sessions maps session ids to their working state. Entries idle for longer
// than the sweep limit are dropped by Sweep.
type Sessions struct {
	mu   sync.Mutex
	byID map[string]*sessionEntry
	now  func() time.Time
}

type sessionEntry struct {
	session  *Session
	lastUsed time.Time
}

func NewSessions() *Sessions {
	return &Sessions{
		byID: make(map[string]*sessionEntry),
		now:  time.Now,
	}
}

// Get returns the session for id and marks it as used, or false when the
// id is unknown or was swept.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	entry.lastUsed = s.now()
	return entry.session, true
}

// New registers an empty session under a random id.
func (s *Sessions) New() (string, *Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return "", nil, err
	}

	sess := NewSession()
	s.mu.Lock()
	s.byID[id] = &sessionEntry{session: sess, lastUsed: s.now()}
	s.mu.Unlock()

	return id, sess, nil
}

// ClearStudent deselects studentID in every session, used after a removal.
func (s *Sessions) ClearStudent(studentID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.byID {
		if id, ok := entry.session.StudentID(); ok && id == studentID {
			entry.session.Clear()
		}
	}
}

// Sweep drops sessions not used within maxIdle and returns how many were
// removed. Unsaved buffers of dropped sessions are lost.
func (s *Sessions) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for id, entry := range s.byID {
		if entry.lastUsed.Before(cutoff) {
			delete(s.byID, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug.Printf("Swept %d idle editing sessions, %d left", removed, len(s.byID))
	}
	return removed
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func generateSessionID() (string, error) {
	randomBytes := make([]byte, 16)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return sessionIDPrefix + hex.EncodeToString(randomBytes), nil
}
