// Package roster owns the in-memory list of students and keeps it in sync
// with the stored roster document. Every write replaces the whole document.
package roster

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/milestones/internal/metrics"
	"github.com/shrimpsizemoose/milestones/internal/models"
)

// Persister is the whole-document storage the roster is written to.
type Persister interface {
	Load(ctx context.Context) ([]models.Student, error)
	Save(ctx context.Context, students []models.Student) error
}

type Roster struct {
	mu       sync.Mutex
	store    Persister
	students []models.Student
	dirty    bool
	now      func() time.Time
}

type Option func(*Roster)

// WithClock replaces time.Now, which is used to assign student ids.
func WithClock(now func() time.Time) Option {
	return func(r *Roster) {
		r.now = now
	}
}

func New(store Persister, opts ...Option) *Roster {
	r := &Roster{
		store:    store,
		students: []models.Student{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replaces the in-memory roster with the stored document, discarding
// pending info edits. On failure the in-memory roster is left as it was.
func (r *Roster) Load(ctx context.Context) ([]models.Student, error) {
	students, err := r.store.Load(ctx)
	if err != nil {
		logger.Error.Printf("Failed to load roster: %v", err)
		return nil, storageError("Load", err)
	}
	if students == nil {
		students = []models.Student{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.students = students
	r.dirty = false
	metrics.RosterSize.Set(float64(len(students)))

	return cloneAll(students), nil
}

// Reload reads the stored document like Load unless info edits are pending,
// in which case the in-memory roster is returned untouched so the edits
// survive until the next save.
func (r *Roster) Reload(ctx context.Context) ([]models.Student, error) {
	r.mu.Lock()
	if r.dirty {
		out := cloneAll(r.students)
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	students, err := r.store.Load(ctx)
	if err != nil {
		logger.Error.Printf("Failed to reload roster: %v", err)
		return nil, storageError("Reload", err)
	}
	if students == nil {
		students = []models.Student{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// an edit may have landed while the store was read
	if !r.dirty {
		r.students = students
		metrics.RosterSize.Set(float64(len(students)))
	}
	return cloneAll(r.students), nil
}

func (r *Roster) Students() []models.Student {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAll(r.students)
}

func (r *Roster) Get(id int64) (models.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return models.Student{}, notFoundError("Get", id)
	}
	return r.students[idx].Clone(), nil
}

// Dirty reports whether info edits are waiting for a save.
func (r *Roster) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// Add validates info, appends a new student with a fresh id and writes the
// roster. Nothing is written when validation fails.
func (r *Roster) Add(ctx context.Context, info models.StudentInfo) (models.Student, error) {
	if err := info.Validate(); err != nil {
		return models.Student{}, validationError("Add", err)
	}
	birthday, err := models.ParseDate(info.Birthday)
	if err != nil {
		return models.Student{}, validationError("Add", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	student := models.Student{
		ID:             r.nextID(),
		Name:           info.Name,
		Birthday:       birthday,
		Info:           info.Info,
		AssessmentData: models.Ratings{},
	}

	next := append(slices.Clone(r.students), student)
	if err := r.persist(ctx, "Add", next); err != nil {
		return models.Student{}, err
	}

	logger.Info.Printf("Added student %d (%s)", student.ID, student.Name)
	return student.Clone(), nil
}

// Remove deletes the student and writes the roster. An unknown id is a
// no-op reported as false.
func (r *Roster) Remove(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		logger.Debug.Printf("Remove: student %d not in roster", id)
		return false, nil
	}

	next := slices.Delete(slices.Clone(r.students), idx, idx+1)
	if err := r.persist(ctx, "Remove", next); err != nil {
		return false, err
	}

	logger.Info.Printf("Removed student %d", id)
	return true, nil
}

// UpdateInfo edits name, birthday and info in memory only. The change is
// written by the next Save or SaveAssessment.
func (r *Roster) UpdateInfo(id int64, info models.StudentInfo) (models.Student, error) {
	if err := info.Validate(); err != nil {
		return models.Student{}, validationError("UpdateInfo", err)
	}
	birthday, err := models.ParseDate(info.Birthday)
	if err != nil {
		return models.Student{}, validationError("UpdateInfo", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return models.Student{}, notFoundError("UpdateInfo", id)
	}

	next := slices.Clone(r.students)
	student := next[idx].Clone()
	student.Name = info.Name
	student.Birthday = birthday
	student.Info = info.Info
	next[idx] = student

	r.students = next
	r.dirty = true
	return student.Clone(), nil
}

// SaveAssessment stores the rating set and image on the student and writes
// the roster.
func (r *Roster) SaveAssessment(ctx context.Context, id int64, ratings models.Ratings, image *string) (models.Student, error) {
	for c, rec := range ratings {
		if !c.Valid() || !rec.Value.Valid() || !rec.PreviousValue.Valid() {
			return models.Student{}, validationError("SaveAssessment", fmt.Errorf("invalid rating for %q", c))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return models.Student{}, notFoundError("SaveAssessment", id)
	}

	next := slices.Clone(r.students)
	student := next[idx].Clone()
	student.AssessmentData = ratings.Clone()
	student.Image = nil
	if image != nil {
		img := *image
		student.Image = &img
	}
	next[idx] = student

	if err := r.persist(ctx, "SaveAssessment", next); err != nil {
		return models.Student{}, err
	}

	logger.Debug.Printf("Saved assessment for student %d (%d categories)", id, len(ratings))
	return student.Clone(), nil
}

// Save writes the in-memory roster as it is.
func (r *Roster) Save(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persist(ctx, "Save", slices.Clone(r.students))
}

// Replace overwrites the roster with a client supplied one. Ids must be
// unique and every student must validate.
func (r *Roster) Replace(ctx context.Context, students []models.Student) error {
	seen := make(map[int64]bool, len(students))
	for i := range students {
		if err := students[i].Validate(); err != nil {
			return validationError("Replace", err)
		}
		if seen[students[i].ID] {
			return validationError("Replace", fmt.Errorf("duplicate student id %d", students[i].ID))
		}
		seen[students[i].ID] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persist(ctx, "Replace", cloneAll(students))
}

// persist writes next and commits it in memory only when the write succeeds.
// Callers hold r.mu.
func (r *Roster) persist(ctx context.Context, op string, next []models.Student) error {
	if err := r.store.Save(ctx, next); err != nil {
		metrics.RosterWritesTotal.WithLabelValues(op, "error").Inc()
		logger.Error.Printf("%s: failed to write roster: %v", op, err)
		return storageError(op, err)
	}
	metrics.RosterWritesTotal.WithLabelValues(op, "ok").Inc()
	metrics.RosterSize.Set(float64(len(next)))

	r.students = next
	r.dirty = false
	return nil
}

// nextID derives an id from the clock, bumped past every existing id.
// Callers hold r.mu.
func (r *Roster) nextID() int64 {
	id := r.now().UnixMilli()
	for _, s := range r.students {
		if s.ID >= id {
			id = s.ID + 1
		}
	}
	return id
}

func (r *Roster) indexOf(id int64) int {
	return slices.IndexFunc(r.students, func(s models.Student) bool {
		return s.ID == id
	})
}

func cloneAll(students []models.Student) []models.Student {
	out := make([]models.Student, len(students))
	for i, s := range students {
		out[i] = s.Clone()
	}
	return out
}
