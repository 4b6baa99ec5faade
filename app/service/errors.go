package service

import "errors"

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPaymentValidation = errors.New("payment validation failed")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrPaymentLocked     = errors.New("payment is being processed")
	ErrMissingFlowState  = errors.New("payment has no redirect flow")
	ErrMissingMandate    = errors.New("payment has no mandate")
)

// ValidationError carries the user-facing reason a payment was rejected
// before any provider call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrPaymentValidation
}
