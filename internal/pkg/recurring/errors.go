package recurring

import (
	"errors"
	"fmt"
)

var (
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrCardNotFound          = errors.New("card not found")
	ErrBankAccountNotFound   = errors.New("bank account not found")
	ErrInvalidFrequency      = errors.New("invalid frequency")
	ErrSubscriptionCancelled = errors.New("subscription is cancelled")
	ErrAlreadyPaid           = errors.New("charge for this date is already paid")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
