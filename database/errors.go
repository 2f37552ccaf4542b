package database

import (
	"errors"
	"fmt"
)

// Sentinel errors for the storage layer. Callers match with errors.Is.
var (
	// ErrNotFound is returned when a dataset (or its isolated table) does
	// not exist, including the case where it was deleted concurrently.
	ErrNotFound = errors.New("dataset not found")

	// ErrEngine wraps failures reported by the storage engine itself.
	ErrEngine = errors.New("storage engine error")
)

// ServiceError carries the service and operation that produced an error.
// Formats as [Service.Operation] message.
type ServiceError struct {
	Service   string
	Operation string
	Err       error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s.%s] %v", e.Service, e.Operation, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WrapError creates an error with service context. Returns nil if err is nil.
func WrapError(service, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Service: service, Operation: operation, Err: err}
}
