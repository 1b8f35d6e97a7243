package dispatcher

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// service errors, mapped to HTTP statuses by the api package
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrProcessingInFlight = errors.New("message is being processed")
	ErrQueueFull          = errors.New("dispatch queue is full")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// DeliveryError records why the mail transport rejected one recipient.
// It is stored on the recipient row and never returned to API callers.
type DeliveryError struct {
	RecipientID uuid.UUID
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to recipient %s: %v", e.RecipientID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
