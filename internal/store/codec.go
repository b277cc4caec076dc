package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shrimpsizemoose/milestones/internal/models"
)

// EncodeRoster serializes the roster as a JSON array.
func EncodeRoster(students []models.Student) ([]byte, error) {
	if students == nil {
		students = []models.Student{}
	}
	data, err := json.Marshal(students)
	if err != nil {
		return nil, fmt.Errorf("failed to encode roster: %w", err)
	}
	return data, nil
}

// DecodeRoster parses a stored roster document. Empty and null documents
// decode to an empty roster. A document stored as a JSON string holding the
// array (a doubly encoded value) is unwrapped first.
func DecodeRoster(data []byte) ([]models.Student, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []models.Student{}, nil
	}

	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("failed to decode roster: %w", err)
		}
		return DecodeRoster([]byte(inner))
	}

	var students []models.Student
	if err := json.Unmarshal(data, &students); err != nil {
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, nil
}
