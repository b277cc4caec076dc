package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const DateLayout = "2006-01-02"

var validate = validator.New()

// Date is a calendar day serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("birthday must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type Student struct {
	ID             int64   `json:"id" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	Birthday       Date    `json:"birthday"`
	Info           string  `json:"info"`
	AssessmentData Ratings `json:"assessmentData"`
	Image          *string `json:"image"`
}

func (s *Student) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("student %d: name is empty", s.ID)
	}
	if s.Birthday.IsZero() {
		return fmt.Errorf("student %d: birthday is missing", s.ID)
	}
	for c, rec := range s.AssessmentData {
		if !c.Valid() {
			return fmt.Errorf("student %d: unknown category %q", s.ID, c)
		}
		if !rec.Value.Valid() || !rec.PreviousValue.Valid() {
			return fmt.Errorf("student %d: invalid rating in %s", s.ID, c)
		}
	}
	return nil
}

func (s Student) Clone() Student {
	out := s
	if s.AssessmentData != nil {
		out.AssessmentData = s.AssessmentData.Clone()
	}
	if s.Image != nil {
		img := *s.Image
		out.Image = &img
	}
	return out
}

// Age returns completed years and remaining months at now.
func (s Student) Age(now time.Time) (years, months int) {
	b := s.Birthday.Time
	years = now.Year() - b.Year()
	months = int(now.Month()) - int(b.Month())
	if now.Day() < b.Day() {
		months--
	}
	if months < 0 {
		years--
		months += 12
	}
	return years, months
}

// StudentInfo carries the descriptive fields used to add or edit a student.
type StudentInfo struct {
	Name     string `json:"name" validate:"required"`
	Birthday string `json:"birthday" validate:"required,datetime=2006-01-02"`
	Info     string `json:"info"`
}

func (i *StudentInfo) Validate() error {
	i.Name = strings.TrimSpace(i.Name)
	i.Birthday = strings.TrimSpace(i.Birthday)
	return validate.Struct(i)
}
