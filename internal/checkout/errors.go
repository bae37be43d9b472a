package checkout

import "errors"

var (
	ErrPaymentTimeout    = errors.New("payment not confirmed in time, verify it manually")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrDeadlinePassed    = errors.New("registration deadline has passed")
	ErrInvalidTransition = errors.New("invalid flow transition")
	ErrMissingField      = errors.New("required field is missing")
	ErrPendingNotFound   = errors.New("pending transaction not found")
)
