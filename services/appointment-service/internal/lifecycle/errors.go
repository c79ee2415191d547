package lifecycle

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/storage"
)

// Every error returned by Service wraps exactly one of these.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("appointment not found")
	ErrPersistence = errors.New("appointment store unavailable")
	ErrGateway     = errors.New("notification delivery failed")
)

var errSmsNotDelivered = errors.New("sms not delivered")

// ValidationError carries a message that is safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

func gateway(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrGateway, err)
}

// storeError maps storage errors onto the lifecycle taxonomy.
func storeError(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return persistence(op, err)
}
