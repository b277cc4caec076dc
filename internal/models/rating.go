package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Rating is the level recorded for one category. The zero value means unset.
type Rating string

const (
	RatingUnset          Rating = ""
	RatingAdvanced       Rating = "Advanced"
	RatingAgeAppropriate Rating = "Age Appropriate"
	RatingNeedsSupport   Rating = "Needs Support"
	RatingOther          Rating = "Other"
)

// RatingLevels lists the settable ratings in distribution order.
var RatingLevels = []Rating{
	RatingAdvanced,
	RatingAgeAppropriate,
	RatingNeedsSupport,
	RatingOther,
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func ParseRating(s string) (Rating, error) {
	r := Rating(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown rating %q", s)
	}
	return r, nil
}

func (r Rating) Valid() bool {
	switch r {
	case RatingUnset, RatingAdvanced, RatingAgeAppropriate, RatingNeedsSupport, RatingOther:
		return true
	}
	return false
}

// Weight is the contribution of the rating to every mapped skill.
// Other and unset ratings are qualitative and weigh nothing.
func (r Rating) Weight() int {
	switch r {
	case RatingAdvanced:
		return 3
	case RatingAgeAppropriate:
		return 2
	case RatingNeedsSupport:
		return 1
	default:
		return 0
	}
}

func (r *Rating) UnmarshalText(text []byte) error {
	parsed, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RatingRecord is the current rating of a category plus one previous snapshot.
type RatingRecord struct {
	Value       Rating
	OtherValue  string
	LastUpdated time.Time

	// Set only when the last write changed Value.
	PreviousValue      Rating
	PreviousUpdateTime *time.Time
}

// HasHistory reports whether the last write recorded a previous snapshot.
func (r RatingRecord) HasHistory() bool {
	return r.PreviousValue != RatingUnset || r.PreviousUpdateTime != nil
}

// ApplyRating writes value into a copy of existing and reports whether the
// value changed. A changed write snapshots the old value and timestamp,
// replacing any older snapshot; an unchanged write records no history.
func ApplyRating(existing *RatingRecord, value Rating, now time.Time) (RatingRecord, bool) {
	var (
		prevValue Rating
		prevTime  time.Time
	)
	if existing != nil {
		prevValue = existing.Value
		prevTime = existing.LastUpdated
	}

	next := RatingRecord{
		Value:       value,
		LastUpdated: stamp(now),
	}

	changed := prevValue != value
	if changed {
		next.PreviousValue = prevValue
		if !prevTime.IsZero() {
			t := prevTime
			next.PreviousUpdateTime = &t
		}
	}
	return next, changed
}

// ApplyOtherText sets the free-text annotation. History is never touched.
func ApplyOtherText(existing *RatingRecord, text string, now time.Time) RatingRecord {
	var next RatingRecord
	if existing != nil {
		next = existing.clone()
	}
	next.OtherValue = text
	next.LastUpdated = stamp(now)
	return next
}

func (r RatingRecord) clone() RatingRecord {
	out := r
	if r.PreviousUpdateTime != nil {
		t := *r.PreviousUpdateTime
		out.PreviousUpdateTime = &t
	}
	return out
}

// stamp drops sub-millisecond precision so records survive a JSON round trip.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// ratingRecordJSON is the stored shape. An annotated but unrated category
// carries no value key.
type ratingRecordJSON struct {
	Value              Rating `json:"value,omitempty"`
	OtherValue         string `json:"otherValue,omitempty"`
	LastUpdated        string `json:"lastUpdated,omitempty"`
	PreviousValue      Rating `json:"previousValue,omitempty"`
	PreviousUpdateTime string `json:"previousUpdateTime,omitempty"`
}

func (r RatingRecord) MarshalJSON() ([]byte, error) {
	out := ratingRecordJSON{
		Value:         r.Value,
		OtherValue:    r.OtherValue,
		PreviousValue: r.PreviousValue,
	}
	if !r.LastUpdated.IsZero() {
		out.LastUpdated = r.LastUpdated.UTC().Format(timestampLayout)
	}
	if r.PreviousUpdateTime != nil {
		out.PreviousUpdateTime = r.PreviousUpdateTime.UTC().Format(timestampLayout)
	}
	return json.Marshal(out)
}

func (r *RatingRecord) UnmarshalJSON(data []byte) error {
	var in ratingRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	rec := RatingRecord{
		Value:         in.Value,
		OtherValue:    in.OtherValue,
		PreviousValue: in.PreviousValue,
	}
	if in.LastUpdated != "" {
		t, err := time.Parse(time.RFC3339Nano, in.LastUpdated)
		if err != nil {
			return fmt.Errorf("invalid lastUpdated: %w", err)
		}
		rec.LastUpdated = t.UTC()
	}
	if in.PreviousUpdateTime != "" {
		t, err := time.Parse(time.RFC3339Nano, in.PreviousUpdateTime)
		if err != nil {
			return fmt.Errorf("invalid previousUpdateTime: %w", err)
		}
		t = t.UTC()
		rec.PreviousUpdateTime = &t
	}

	*r = rec
	return nil
}

// Ratings is a student's assessment data. A missing key means not yet rated.
type Ratings map[Category]RatingRecord

func (r Ratings) Clone() Ratings {
	out := make(Ratings, len(r))
	for c, rec := range r {
		out[c] = rec.clone()
	}
	return out
}

// Get returns the record for c, or nil when c has not been rated.
func (r Ratings) Get(c Category) *RatingRecord {
	rec, ok := r[c]
	if !ok {
		return nil
	}
	return &rec
}

func (r Ratings) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[Category]RatingRecord(r))
}
