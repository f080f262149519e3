package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence marks failures reading or writing the SQLite mirror.
	ErrPersistence = errors.New("queue persistence error")
	// ErrDuplicateJob is returned when a job id is already present.
	ErrDuplicateJob = errors.New("job already exists")
)

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
