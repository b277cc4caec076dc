package roster

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any mutation or write.
	ErrValidation = errors.New("validation failed")

	// ErrStorage marks a failed read or write of the roster document.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound marks an operation on a student id that is not in the roster.
	ErrNotFound = errors.New("student not found")
)

// Error carries the failed operation and its kind. Test the kind with
// errors.Is(err, ErrValidation) and friends.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("roster.%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("roster.%s: %v", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func validationError(op string, err error) error {
	return &Error{Op: op, Kind: ErrValidation, Err: err}
}

func storageError(op string, err error) error {
	return &Error{Op: op, Kind: ErrStorage, Err: err}
}

func notFoundError(op string, id int64) error {
	return &Error{Op: op, Kind: ErrNotFound, Err: fmt.Errorf("id %d", id)}
}
